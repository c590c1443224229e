package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/config"
	"github.com/roach88/cascade/internal/harness"
	"github.com/roach88/cascade/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Config   string

	// SessionGenerator overrides session ID generation (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	SessionGenerator store.SessionGenerator
}

// RunSummary is the JSON payload of the run command.
type RunSummary struct {
	Scenario   string       `json:"scenario"`
	SessionID  string       `json:"session_id,omitempty"`
	Mode       string       `json:"mode"`
	Passed     bool         `json:"passed"`
	Transcript string       `json:"transcript"`
	Entries    int          `json:"entries"`
	Windows    []WindowView `json:"windows"`
	Errors     []string     `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print its transcript",
		Long: `Run a scenario through the instrumented runtime and print the console
transcript it produces. Scenario assertions decide the exit code.

With --db, entries and windows are also persisted as a new session.

Exit codes:
  0 - Scenario ran and every assertion passed
  1 - One or more assertions or steps failed
  2 - Command error (missing scenario, bad config, database error)

Examples:
  cascade run ./scenarios/dashboard.yaml
  cascade run ./scenarios/dashboard.yaml --db ./cascade.db
  cascade run ./scenarios/dashboard.yaml --config ./cascade.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for persisting the session")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to cascade.cue (used when the scenario has no config)")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if _, err := os.Stat(path); err != nil {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenario not found: %s", path), nil)
	}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeScenario, "failed to load scenario", err)
	}

	runOpts := []harness.RunOption{
		harness.WithLogger(logger),
		harness.WithContext(cmd.Context()),
	}

	cfg := config.Default()
	if opts.Config != "" {
		cfg, err = config.Load(opts.Config)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeConfigInvalid, "invalid config", err)
		}
		runOpts = append(runOpts, harness.WithConfig(cfg))
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store
	}
	if dbPath != "" {
		out.VerboseLog("opening database %s", dbPath)
		st, err := store.Open(dbPath)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		gen := opts.SessionGenerator
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		runOpts = append(runOpts, harness.WithStore(st, gen))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to run scenario", err)
	}

	if opts.Format == "json" {
		windows := make([]WindowView, len(result.Windows))
		for i, w := range result.Windows {
			windows[i] = windowView(w)
		}
		var failure *CLIError
		if !result.Passed() {
			failure = &CLIError{
				Code:    ErrCodeScenarioFailed,
				Message: fmt.Sprintf("scenario %s failed", result.Scenario),
				Details: result.Errors,
			}
		}
		if err := out.Report(RunSummary{
			Scenario:   result.Scenario,
			SessionID:  result.SessionID,
			Mode:       string(result.Mode),
			Passed:     result.Passed(),
			Transcript: result.Transcript,
			Entries:    len(result.Entries),
			Windows:    windows,
			Errors:     result.Errors,
		}, result.SessionID, failure); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprint(w, result.Transcript)
		fmt.Fprintln(w)
		printRunSummary(w, result)
	}

	if !result.Passed() {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", result.Scenario))
	}
	return nil
}

func printRunSummary(w io.Writer, r *harness.Result) {
	status := "PASS"
	if !r.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s %s (%s mode, %d entries, %d windows)\n",
		status, r.Scenario, r.Mode, len(r.Entries), len(r.Windows))
	if r.SessionID != "" {
		fmt.Fprintf(w, "  session: %s\n", r.SessionID)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
