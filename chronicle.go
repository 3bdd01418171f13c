package chronicle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/chronicle/internal/analytics"
	cfg "github.com/loykin/chronicle/internal/config"
	"github.com/loykin/chronicle/internal/history"
	hfactory "github.com/loykin/chronicle/internal/history/factory"
	"github.com/loykin/chronicle/internal/ingest"
	"github.com/loykin/chronicle/internal/job"
	"github.com/loykin/chronicle/internal/logger"
	"github.com/loykin/chronicle/internal/metrics"
	iapi "github.com/loykin/chronicle/internal/server"
	"github.com/loykin/chronicle/internal/store"
	sfactory "github.com/loykin/chronicle/internal/store/factory"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Job = job.Job

type JobSummary = job.Summary

type Query = store.Query

type Page = store.Page

type TimelineNode = analytics.TimelineNode

type Overlap = analytics.Overlap

type GapResult = analytics.GapResult

type PathResult = analytics.PathResult

type HistorySink = history.Sink

// App wires the event store, the ingestion runner and the analytics service.
type App struct {
	conf     *cfg.Config
	store    store.Store
	tracker  *job.Tracker
	pipeline *ingest.Pipeline
	runner   *job.Runner
	service  *analytics.Service
	sinks    []history.Sink

	cancel context.CancelFunc
}

// LoadConfig reads a TOML config file; an empty path yields the defaults.
func LoadConfig(path string) (*Config, error) { return cfg.LoadConfig(path) }

// DefaultConfig returns the built-in configuration.
func DefaultConfig() (*Config, error) { return cfg.Default() }

// SetupLogger installs the [log] section as the process wide slog default.
// Close the returned closer to flush the log file.
func SetupLogger(c *Config) (io.Closer, error) { return logger.Setup(c.Log.Slog()) }

// New opens the store, ensures its schema and starts the background workers.
// Call Shutdown to release everything.
func New(ctx context.Context, c *Config) (*App, error) {
	if c == nil {
		return nil, errors.New("nil config")
	}
	st, err := sfactory.New(sfactory.Options{DSN: c.Store.DSN, MaxOpenConns: c.Store.MaxOpenConns})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	a := &App{conf: c, store: st, tracker: job.NewTracker(c.Jobs.TTL)}
	if c.History.Enabled {
		for _, dsn := range c.History.SinkDSNs() {
			s, err := hfactory.NewSinkFromDSN(dsn)
			if err != nil {
				a.closeSinks()
				_ = st.Close()
				return nil, fmt.Errorf("history sink %q: %w", dsn, err)
			}
			a.sinks = append(a.sinks, s)
		}
		a.tracker.SetHistorySinks(a.sinks...)
	}

	a.pipeline = ingest.NewPipeline(st, a.tracker, c.Ingest.MaxLineBytes)
	a.runner = job.NewRunner(a.tracker, a.pipeline, job.RunnerConfig{
		MaxConcurrent: c.Ingest.MaxConcurrentJobs,
		Timeout:       c.Ingest.Timeout,
	})
	a.service = analytics.NewService(st)

	bg, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.tracker.StartCleanupWorker(bg, c.Jobs.CleanupInterval)
	if c.Metrics.Enabled {
		metrics.StartResourceSampler(bg, c.Metrics.ResourceInterval)
	}
	slog.Info("Chronicle initialized", "store", storeKind(c.Store.DSN), "history_sinks", len(a.sinks))
	return a, nil
}

// Submit starts a background ingestion of path and returns the job id.
func (a *App) Submit(path string) (string, error) { return a.runner.Submit(path) }

// Ingest runs one ingestion synchronously and returns the finished job.
func (a *App) Ingest(ctx context.Context, path string) (Job, error) {
	id := job.IDPrefix + uuid.NewString()
	if _, err := a.tracker.Create(id, path); err != nil {
		return Job{}, err
	}
	runErr := a.pipeline.Run(ctx, id, path)
	j, _ := a.tracker.Get(id)
	return j, runErr
}

// JobStatus returns a snapshot of the job with the given id.
func (a *App) JobStatus(id string) (Job, bool) { return a.tracker.Get(id) }

// Jobs lists every tracked job, oldest first.
func (a *App) Jobs() []Job { return a.tracker.List() }

func (a *App) Search(ctx context.Context, q Query) (Page, error) { return a.service.Search(ctx, q) }

func (a *App) Timeline(ctx context.Context, rootID string) (*TimelineNode, error) {
	return a.service.Timeline(ctx, rootID)
}

func (a *App) Overlaps(ctx context.Context) ([]Overlap, error) { return a.service.Overlaps(ctx) }

func (a *App) TemporalGap(ctx context.Context, startDate, endDate string) (GapResult, error) {
	return a.service.TemporalGap(ctx, startDate, endDate)
}

func (a *App) InfluencePath(ctx context.Context, sourceID, targetID string) (PathResult, error) {
	return a.service.InfluencePath(ctx, sourceID, targetID)
}

// Handler returns the HTTP API mounted under basePath for embedding in
// another server or router.
func (a *App) Handler(basePath string) http.Handler {
	return iapi.NewRouter(a.deps(), basePath).Handler()
}

// NewHTTPServer starts an HTTP server exposing the API on addr.
func (a *App) NewHTTPServer(addr, basePath string) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, a.deps())
}

func (a *App) deps() iapi.Deps {
	return iapi.Deps{
		Runner:  a.runner,
		Tracker: a.tracker,
		Service: a.service,
		Store:   a.store,
		// a dedicated metrics listener takes /metrics off the API server
		Metrics: a.conf.Metrics.Enabled && a.conf.Metrics.Listen == "",
	}
}

// Shutdown stops accepting ingestion jobs, waits for the running ones until
// ctx expires and closes the store and history sinks.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.runner.Shutdown(ctx)
	a.cancel()
	a.closeSinks()
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (a *App) closeSinks() {
	for _, s := range a.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("Failed to close history sink", "error", err)
			}
		}
	}
}

// Migrate creates the event schema behind dsn and returns.
func Migrate(ctx context.Context, dsn string) error {
	st, err := sfactory.NewFromDSN(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	return st.EnsureSchema(ctx)
}

func storeKind(dsn string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(dsn)), "postgres") {
		return "postgres"
	}
	return "sqlite"
}

// Metrics helpers (public facade)
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
