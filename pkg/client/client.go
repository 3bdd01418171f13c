package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client provides HTTP client functionality to communicate with a chronicle server
type Client struct {
	baseURL string
	origin  string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger // Optional logger for client operations
	TLS      *TLSClientConfig
	Insecure bool // Skip TLS verification
}

// TLSClientConfig holds TLS configuration for client
type TLSClientConfig struct {
	CACert     string // CA certificate file path
	ServerName string // Server name for verification
}

// APIError is returned for every non-2xx answer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new chronicle API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if config.TLS != nil || config.Insecure {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			config.Logger.Error("TLS setup failed", "error", err)
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	base := strings.TrimRight(config.BaseURL, "/")
	origin := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}
	return &Client{
		baseURL: base,
		origin:  origin,
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// Healthz queries the server health endpoint. A degraded server answers
// with an APIError carrying status 503.
func (c *Client) Healthz(ctx context.Context) (Health, error) {
	var h Health
	err := c.get(ctx, c.origin+"/healthz", &h)
	return h, err
}

// IsReachable checks if the server is running and healthy
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.Healthz(ctx)
	if err != nil {
		c.logger.Debug("Server unreachable", "error", err)
		return false
	}
	return true
}

// Ingest asks the server to ingest the file at path. The path is resolved
// on the server host.
func (c *Client) Ingest(ctx context.Context, path string) (IngestResponse, error) {
	c.logger.Debug("Submitting ingestion", "path", path)
	data, err := json.Marshal(map[string]string{"filePath": path})
	if err != nil {
		return IngestResponse{}, fmt.Errorf("marshal request: %w", err)
	}
	var out IngestResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/events/ingest", data, &out); err != nil {
		return IngestResponse{}, err
	}
	c.logger.Debug("Ingestion accepted", "job", out.JobID)
	return out, nil
}

// Status returns the current state of an ingestion job.
func (c *Client) Status(ctx context.Context, jobID string) (JobStatus, error) {
	var out JobStatus
	err := c.get(ctx, c.baseURL+"/events/ingestion-status/"+url.PathEscape(jobID), &out)
	return out, err
}

// WaitForJob polls Status every interval until the job finishes or ctx is done.
func (c *Client) WaitForJob(ctx context.Context, jobID string, interval time.Duration) (JobStatus, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		j, err := c.Status(ctx, jobID)
		if err != nil {
			return JobStatus{}, err
		}
		if j.Finished() {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Search returns one page of events matching q.
func (c *Client) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	var out SearchResult
	err := c.get(ctx, c.baseURL+"/events/search"+encodeQuery(q.values()), &out)
	return out, err
}

// Timeline returns the hierarchy rooted at rootID.
func (c *Client) Timeline(ctx context.Context, rootID string) (*TimelineNode, error) {
	var out TimelineNode
	if err := c.get(ctx, c.baseURL+"/timeline/"+url.PathEscape(rootID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Overlaps returns every pair of overlapping events.
func (c *Client) Overlaps(ctx context.Context) ([]Overlap, error) {
	var out []Overlap
	err := c.get(ctx, c.baseURL+"/insights/overlapping-events", &out)
	return out, err
}

// TemporalGaps returns the largest gap between events inside [start, end].
func (c *Client) TemporalGaps(ctx context.Context, start, end string) (GapResult, error) {
	v := url.Values{}
	v.Set("startDate", start)
	v.Set("endDate", end)
	var out GapResult
	err := c.get(ctx, c.baseURL+"/insights/temporal-gaps"+encodeQuery(v), &out)
	return out, err
}

// InfluencePath returns the shortest duration-weighted path between two events.
func (c *Client) InfluencePath(ctx context.Context, sourceID, targetID string) (PathResult, error) {
	v := url.Values{}
	v.Set("sourceEventId", sourceID)
	v.Set("targetEventId", targetID)
	var out PathResult
	err := c.get(ctx, c.baseURL+"/insights/event-influence"+encodeQuery(v), &out)
	return out, err
}

func (q SearchQuery) values() url.Values {
	v := url.Values{}
	if q.Name != "" {
		v.Set("name", q.Name)
	}
	if q.StartDateAfter != nil {
		v.Set("start_date_after", q.StartDateAfter.UTC().Format(time.RFC3339))
	}
	if q.EndDateBefore != nil {
		v.Set("end_date_before", q.EndDateBefore.UTC().Format(time.RFC3339))
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", q.SortOrder)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func encodeQuery(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// setupClientTLS configures TLS settings for HTTP client
func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true // #nosec G402 -- explicit opt-in
		return tlsConfig, nil
	}
	if config.TLS == nil {
		return tlsConfig, nil
	}
	if config.TLS.ServerName != "" {
		tlsConfig.ServerName = config.TLS.ServerName
	}
	if config.TLS.CACert != "" {
		caCert, err := os.ReadFile(config.TLS.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

// do performs HTTP request with common error handling and decodes a 2xx
// body into out.
func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", url)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		c.logger.Debug("Failed to decode error response", "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode}
	}
	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return &APIError{StatusCode: resp.StatusCode, Message: errorResp.Error}
}
