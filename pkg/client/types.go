package client

import "time"

// IngestResponse is returned when an ingestion job was accepted.
type IngestResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// JobSummary is the final tally of a completed ingestion job.
type JobSummary struct {
	TotalRecords            int `json:"totalRecords"`
	ValidRecords            int `json:"validRecords"`
	DuplicateRecords        int `json:"duplicateRecords"`
	SuccessfulInsertions    int `json:"successfulInsertions"`
	FailedInsertions        int `json:"failedInsertions"`
	SuccessfulParentUpdates int `json:"successfulParentUpdates"`
	FailedParentUpdates     int `json:"failedParentUpdates"`
	InvalidParentRecords    int `json:"invalidParentRecords"`
}

// JobStatus represents the state of one ingestion job
type JobStatus struct {
	JobID          string      `json:"jobId"`
	FilePath       string      `json:"filePath,omitempty"`
	Status         string      `json:"status"`
	ProcessedLines int         `json:"processedLines"`
	ErrorLines     int         `json:"errorLines"`
	TotalLines     int         `json:"totalLines"`
	Errors         []string    `json:"errors"`
	StartTime      time.Time   `json:"startTime"`
	EndTime        *time.Time  `json:"endTime,omitempty"`
	Summary        *JobSummary `json:"summary,omitempty"`
}

// Finished reports whether the job reached COMPLETED or FAILED.
func (j JobStatus) Finished() bool { return j.Status == "COMPLETED" || j.Status == "FAILED" }

// Event is a stored historical event.
type Event struct {
	ID              string    `json:"event_id"`
	Name            string    `json:"event_name"`
	Start           time.Time `json:"start_date"`
	End             time.Time `json:"end_date"`
	DurationMinutes int64     `json:"duration_minutes"`
	ParentID        *string   `json:"parent_id"`
	ResearchValue   *int64    `json:"research_value,omitempty"`
	Description     *string   `json:"description,omitempty"`
}

// SearchQuery represents query parameters for the search endpoint.
// Zero values are omitted from the request.
type SearchQuery struct {
	Name           string
	StartDateAfter *time.Time
	EndDateBefore  *time.Time
	SortBy         string
	SortOrder      string
	Page           int
	Limit          int
}

// SearchResult is one page of search results.
type SearchResult struct {
	TotalEvents int64   `json:"totalEvents"`
	Page        int     `json:"page"`
	Limit       int     `json:"limit"`
	Events      []Event `json:"events"`
}

// TimelineNode is one event of a hierarchy with its children.
type TimelineNode struct {
	ID              string          `json:"event_id"`
	Name            string          `json:"event_name"`
	Description     *string         `json:"description"`
	Start           time.Time       `json:"start_date"`
	End             time.Time       `json:"end_date"`
	DurationMinutes int64           `json:"duration_minutes"`
	ParentID        *string         `json:"parent_id"`
	Children        []*TimelineNode `json:"children"`
}

// EventSummary is the short form of an event used by insight endpoints.
type EventSummary struct {
	ID    string    `json:"event_id"`
	Name  string    `json:"event_name"`
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Overlap is a pair of events whose intervals intersect.
type Overlap struct {
	Pair            [2]EventSummary `json:"overlappingEventPairs"`
	DurationMinutes int64           `json:"overlap_duration_minutes"`
}

// Gap is the largest idle interval found in a window.
type Gap struct {
	Start           time.Time `json:"startOfGap"`
	End             time.Time `json:"endOfGap"`
	DurationMinutes int64     `json:"durationMinutes"`
	Preceding       struct {
		ID   string    `json:"event_id"`
		Name string    `json:"event_name"`
		End  time.Time `json:"end_date"`
	} `json:"precedingEvent"`
	Succeeding struct {
		ID    string    `json:"event_id"`
		Name  string    `json:"event_name"`
		Start time.Time `json:"start_date"`
	} `json:"succeedingEvent"`
}

// GapResult is the answer of the temporal gap endpoint.
type GapResult struct {
	LargestGap *Gap   `json:"largestGap"`
	Message    string `json:"message"`
}

// PathStep is one event on an influence path.
type PathStep struct {
	ID              string `json:"event_id"`
	Name            string `json:"event_name"`
	DurationMinutes int64  `json:"duration_minutes"`
}

// PathResult is the answer of the event influence endpoint.
type PathResult struct {
	SourceEventID        string     `json:"sourceEventId"`
	TargetEventID        string     `json:"targetEventId"`
	ShortestPath         []PathStep `json:"shortestPath"`
	TotalDurationMinutes int64      `json:"totalDurationMinutes"`
	Message              string     `json:"message"`
}

// Health is the answer of /healthz.
type Health struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
