package job

import (
	"time"

	"github.com/loykin/chronicle/internal/history"
)

// Status is the lifecycle state of an ingestion job.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Finished reports whether s is terminal.
func (s Status) Finished() bool { return s == StatusCompleted || s == StatusFailed }

// Summary is the final tally of one completed ingestion.
type Summary struct {
	TotalRecords            int `json:"totalRecords"`
	ValidRecords            int `json:"validRecords"`
	DuplicateRecords        int `json:"duplicateRecords"`
	SuccessfulInsertions    int `json:"successfulInsertions"`
	FailedInsertions        int `json:"failedInsertions"`
	SuccessfulParentUpdates int `json:"successfulParentUpdates"`
	FailedParentUpdates     int `json:"failedParentUpdates"`
	InvalidParentRecords    int `json:"invalidParentRecords"`
}

// Job is the progress and result record of one ingestion invocation.
// Counters only grow and Errors is append-only while the job runs.
type Job struct {
	ID             string     `json:"jobId"`
	Source         string     `json:"filePath,omitempty"`
	Status         Status     `json:"status"`
	ProcessedLines int        `json:"processedLines"`
	ErrorLines     int        `json:"errorLines"`
	TotalLines     int        `json:"totalLines"`
	Errors         []string   `json:"errors"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Summary        *Summary   `json:"summary,omitempty"`
}

// AddError appends msg to the error list and counts one error line.
func (j *Job) AddError(msg string) {
	j.ErrorLines++
	j.Errors = append(j.Errors, msg)
}

// Complete marks the job COMPLETED with the given summary.
func (j *Job) Complete(s Summary, at time.Time) {
	j.Status = StatusCompleted
	j.Summary = &s
	j.EndTime = &at
}

// Fail marks the job FAILED and appends the fatal error.
func (j *Job) Fail(err error, at time.Time) {
	j.Status = StatusFailed
	j.Errors = append(j.Errors, "Fatal error: "+err.Error())
	j.EndTime = &at
}

func (j *Job) clone() Job {
	c := *j
	c.Errors = append([]string(nil), j.Errors...)
	if c.Errors == nil {
		c.Errors = []string{}
	}
	if j.Summary != nil {
		s := *j.Summary
		c.Summary = &s
	}
	if j.EndTime != nil {
		e := *j.EndTime
		c.EndTime = &e
	}
	return c
}

func (j *Job) record() history.Record {
	r := history.Record{
		JobID:          j.ID,
		Source:         j.Source,
		Status:         string(j.Status),
		TotalLines:     j.TotalLines,
		ProcessedLines: j.ProcessedLines,
		ErrorLines:     j.ErrorLines,
		ErrorCount:     len(j.Errors),
		StartedAt:      j.StartTime,
		EndedAt:        j.EndTime,
	}
	if n := len(j.Errors); n > 0 {
		r.LastError = j.Errors[n-1]
	}
	return r
}
