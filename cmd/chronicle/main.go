package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string
}

// APIFlags selects the remote server used by client commands
type APIFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

func (f *APIFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", defaultAPIUrl, "server URL including base path (e.g. http://host:8080/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}

// IngestFlags holds flags for the ingest command
type IngestFlags struct {
	APIFlags
	FilePath     string
	Wait         bool
	PollInterval time.Duration
}

// LoadFlags holds flags for the local load command
type LoadFlags struct {
	FilePath string
	DSN      string
}

// SearchFlags holds flags for the search command
type SearchFlags struct {
	APIFlags
	Name      string
	After     string
	Before    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

const defaultAPIUrl = "http://127.0.0.1:8080/api"

// buildRoot creates the root command with every subcommand attached
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createMigrateCommand(globalFlags),
		createLoadCommand(globalFlags),
		createIngestCommand(),
		createStatusCommand(),
		createSearchCommand(),
		createTimelineCommand(),
		createOverlapsCommand(),
		createGapsCommand(),
		createPathCommand(),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "chronicle",
		Short: "Historical event catalog with ingestion and temporal analytics",
		Long: `Chronicle ingests pipe-delimited historical event files into a hierarchical
catalog and answers timeline, overlap, gap and influence path queries.

Examples:
  chronicle serve --config=config.toml
  chronicle ingest --file=/data/events.txt --wait
  chronicle timeline --root=<event-id>
  chronicle gaps --start=2023-01-01T00:00:00Z --end=2023-12-31T23:59:59Z`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

// createServeCommand creates the serve subcommand
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the chronicle API server",
		Long: `Start the HTTP API server. Configuration is read from the given TOML
file (or --config) and CHRONICLE_* environment variables.

Examples:
  chronicle serve
  chronicle serve config.toml
  CHRONICLE_STORE_DSN=postgres://localhost/chronicle chronicle serve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			return runServe(cmd.Context(), path)
		},
	}
}

// createMigrateCommand creates the migrate subcommand
func createMigrateCommand(globalFlags *GlobalFlags) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the event schema in the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, globalFlags.ConfigPath, dsn)
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "store DSN (overrides [store].dsn)")
	return cmd
}

// createLoadCommand creates the load subcommand
func createLoadCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &LoadFlags{}
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Ingest a file directly into the store without a server",
		Long: `Run one ingestion synchronously against the configured store and print
the finished job.

Examples:
  chronicle load --file=./events.txt
  chronicle load --file=./events.txt --dsn=sqlite:///tmp/chronicle.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, globalFlags.ConfigPath, *flags)
		},
	}
	cmd.Flags().StringVar(&flags.FilePath, "file", "", "path to the event file (required)")
	cmd.Flags().StringVar(&flags.DSN, "dsn", "", "store DSN (overrides [store].dsn)")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
	return cmd
}

// createIngestCommand creates the ingest subcommand
func createIngestCommand() *cobra.Command {
	flags := &IngestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Submit a file for background ingestion on a server",
		Long: `Submit a file for ingestion. The path is resolved on the server host.

Examples:
  chronicle ingest --file=/data/events.txt
  chronicle ingest --file=/data/events.txt --wait --api-url=http://remote:8080/api`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, *flags)
		},
	}
	cmd.Flags().StringVar(&flags.FilePath, "file", "", "path to the event file on the server (required)")
	cmd.Flags().BoolVar(&flags.Wait, "wait", false, "poll until the job finishes")
	cmd.Flags().DurationVar(&flags.PollInterval, "poll-interval", 500*time.Millisecond, "status poll interval with --wait")
	flags.bind(cmd)
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
	return cmd
}

// createStatusCommand creates the status subcommand
func createStatusCommand() *cobra.Command {
	flags := &APIFlags{}
	var jobID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of an ingestion job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, *flags, jobID)
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job id returned by ingest (required)")
	flags.bind(cmd)
	if err := cmd.MarkFlagRequired("job"); err != nil {
		panic(err)
	}
	return cmd
}

// createSearchCommand creates the search subcommand
func createSearchCommand() *cobra.Command {
	flags := &SearchFlags{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search events by name and date range",
		Long: `Search events with filtering, sorting and pagination.

Examples:
  chronicle search --name=council
  chronicle search --after=2024-01-01T00:00:00Z --sort-by=duration_minutes --sort-order=desc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, *flags)
		},
	}
	cmd.Flags().StringVar(&flags.Name, "name", "", "case-insensitive name fragment")
	cmd.Flags().StringVar(&flags.After, "after", "", "only events starting at or after this timestamp")
	cmd.Flags().StringVar(&flags.Before, "before", "", "only events ending at or before this timestamp")
	cmd.Flags().StringVar(&flags.SortBy, "sort-by", "", "event_name, start_date, end_date or duration_minutes")
	cmd.Flags().StringVar(&flags.SortOrder, "sort-order", "", "asc or desc")
	cmd.Flags().IntVar(&flags.Page, "page", 0, "page number (1-based)")
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "page size")
	flags.bind(cmd)
	return cmd
}

// createTimelineCommand creates the timeline subcommand
func createTimelineCommand() *cobra.Command {
	flags := &APIFlags{}
	var rootID string
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print the hierarchy below an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(cmd, *flags, rootID)
		},
	}
	cmd.Flags().StringVar(&rootID, "root", "", "root event id (required)")
	flags.bind(cmd)
	if err := cmd.MarkFlagRequired("root"); err != nil {
		panic(err)
	}
	return cmd
}

// createOverlapsCommand creates the overlaps subcommand
func createOverlapsCommand() *cobra.Command {
	flags := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "overlaps",
		Short: "List every pair of overlapping events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverlaps(cmd, *flags)
		},
	}
	flags.bind(cmd)
	return cmd
}

// createGapsCommand creates the gaps subcommand
func createGapsCommand() *cobra.Command {
	flags := &APIFlags{}
	var start, end string
	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "Find the largest gap between events in a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGaps(cmd, *flags, start, end)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "window start timestamp (required)")
	cmd.Flags().StringVar(&end, "end", "", "window end timestamp (required)")
	flags.bind(cmd)
	for _, f := range []string{"start", "end"} {
		if err := cmd.MarkFlagRequired(f); err != nil {
			panic(err)
		}
	}
	return cmd
}

// createPathCommand creates the path subcommand
func createPathCommand() *cobra.Command {
	flags := &APIFlags{}
	var source, target string
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Find the shortest duration-weighted path between two events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPath(cmd, *flags, source, target)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source event id (required)")
	cmd.Flags().StringVar(&target, "target", "", "target event id (required)")
	flags.bind(cmd)
	for _, f := range []string{"source", "target"} {
		if err := cmd.MarkFlagRequired(f); err != nil {
			panic(err)
		}
	}
	return cmd
}
