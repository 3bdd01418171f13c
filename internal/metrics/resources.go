package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	processCPUPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chronicle",
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "CPU usage of the chronicle process in percent.",
		},
	)
	processRSSBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chronicle",
			Subsystem: "process",
			Name:      "memory_rss_bytes",
			Help:      "Resident set size of the chronicle process.",
		},
	)
	processThreads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chronicle",
			Subsystem: "process",
			Name:      "threads",
			Help:      "OS threads used by the chronicle process.",
		},
	)
)

// Resources is one sample of the daemon's own resource usage.
type Resources struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	Timestamp  time.Time `json:"timestamp"`
}

// SampleResources reads CPU, memory and thread usage of the current process.
func SampleResources() (Resources, error) {
	pid := int32(os.Getpid())
	proc, err := process.NewProcess(pid)
	if err != nil {
		return Resources{}, fmt.Errorf("failed to create process handle: %w", err)
	}

	// CPU percentage may need a previous call for accurate calculation
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		slog.Debug("Failed to get CPU percent", "pid", pid, "error", err)
		cpuPercent = 0
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return Resources{}, fmt.Errorf("failed to get memory info: %w", err)
	}

	numThreads, err := proc.NumThreads()
	if err != nil {
		slog.Debug("Failed to get thread count", "pid", pid, "error", err)
		numThreads = 0
	}

	return Resources{
		PID:        pid,
		CPUPercent: cpuPercent,
		MemoryMB:   float64(memInfo.RSS) / 1024 / 1024,
		MemoryRSS:  memInfo.RSS,
		NumThreads: numThreads,
		Timestamp:  time.Now().UTC(),
	}, nil
}

func setResources(r Resources) {
	if regOK.Load() {
		processCPUPercent.Set(r.CPUPercent)
		processRSSBytes.Set(float64(r.MemoryRSS))
		processThreads.Set(float64(r.NumThreads))
	}
}

// StartResourceSampler updates the process gauges every interval until ctx is done.
func StartResourceSampler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if r, err := SampleResources(); err == nil {
				setResources(r)
			} else {
				slog.Debug("Resource sample failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
