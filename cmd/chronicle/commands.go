package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/loykin/chronicle"
	"github.com/loykin/chronicle/internal/event"
	"github.com/loykin/chronicle/pkg/client"
)

func newClient(f APIFlags) *client.Client {
	return client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout})
}

// localConfig loads the config file and applies a DSN override.
func localConfig(configPath, dsn string) (*chronicle.Config, error) {
	cfg, err := chronicle.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if dsn != "" {
		cfg.Store.DSN = dsn
	}
	return cfg, nil
}

func runMigrate(cmd *cobra.Command, configPath, dsn string) error {
	cfg, err := localConfig(configPath, dsn)
	if err != nil {
		return err
	}
	if err := chronicle.Migrate(cmd.Context(), cfg.Store.DSN); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
	return nil
}

func runLoad(cmd *cobra.Command, configPath string, f LoadFlags) error {
	cfg, err := localConfig(configPath, f.DSN)
	if err != nil {
		return err
	}
	cfg.History.Enabled = false
	app, err := chronicle.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	j, runErr := app.Ingest(cmd.Context(), f.FilePath)
	printJSON(cmd.OutOrStdout(), j)
	if runErr != nil {
		return fmt.Errorf("ingestion failed: %w", runErr)
	}
	return nil
}

func runIngest(cmd *cobra.Command, f IngestFlags) error {
	c := newClient(f.APIFlags)
	resp, err := c.Ingest(cmd.Context(), f.FilePath)
	if err != nil {
		return err
	}
	if !f.Wait {
		printJSON(cmd.OutOrStdout(), resp)
		return nil
	}
	j, err := c.WaitForJob(cmd.Context(), resp.JobID, f.PollInterval)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), j)
	if j.Status != "COMPLETED" {
		return fmt.Errorf("job %s finished with status %s", j.JobID, j.Status)
	}
	return nil
}

func runStatus(cmd *cobra.Command, f APIFlags, jobID string) error {
	j, err := newClient(f).Status(cmd.Context(), jobID)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), j)
	return nil
}

func runSearch(cmd *cobra.Command, f SearchFlags) error {
	q := client.SearchQuery{
		Name:      f.Name,
		SortBy:    f.SortBy,
		SortOrder: f.SortOrder,
		Page:      f.Page,
		Limit:     f.Limit,
	}
	if f.After != "" {
		t, err := event.ParseTime(f.After)
		if err != nil {
			return fmt.Errorf("invalid --after: %w", err)
		}
		q.StartDateAfter = &t
	}
	if f.Before != "" {
		t, err := event.ParseTime(f.Before)
		if err != nil {
			return fmt.Errorf("invalid --before: %w", err)
		}
		q.EndDateBefore = &t
	}
	page, err := newClient(f.APIFlags).Search(cmd.Context(), q)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), page)
	return nil
}

func runTimeline(cmd *cobra.Command, f APIFlags, rootID string) error {
	tl, err := newClient(f).Timeline(cmd.Context(), rootID)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), tl)
	return nil
}

func runOverlaps(cmd *cobra.Command, f APIFlags) error {
	out, err := newClient(f).Overlaps(cmd.Context())
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), out)
	return nil
}

func runGaps(cmd *cobra.Command, f APIFlags, start, end string) error {
	res, err := newClient(f).TemporalGaps(cmd.Context(), start, end)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), res)
	return nil
}

func runPath(cmd *cobra.Command, f APIFlags, source, target string) error {
	res, err := newClient(f).InfluencePath(cmd.Context(), source, target)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), res)
	return nil
}

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}
