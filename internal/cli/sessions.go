package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/printer"
	"github.com/roach88/cascade/internal/store"
)

// StoreOptions holds flags shared by commands that read a database.
type StoreOptions struct {
	*RootOptions
	Database string
	Session  string
}

// SessionView is one session in command output.
type SessionView struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Mode      string            `json:"mode"`
	StartedAt string            `json:"started_at"`
	Entries   int               `json:"entries"`
	Windows   int               `json:"windows"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// EntryView is one entry in command output.
type EntryView struct {
	Seq         int64   `json:"seq"`
	TimestampMS float64 `json:"timestamp_ms"`
	Severity    string  `json:"severity"`
	Location    string  `json:"location"`
	Component   string  `json:"component"`
	Message     string  `json:"message"`
}

// WindowView is one window in command output.
type WindowView struct {
	Label     string  `json:"label"`
	Source    string  `json:"source"`
	StartMS   float64 `json:"start_ms"`
	EndMS     float64 `json:"end_ms"`
	Mutations int     `json:"mutations"`
	Others    int     `json:"others"`
}

// ShowResult is the JSON payload of the show command.
type ShowResult struct {
	Session SessionView  `json:"session"`
	Entries []EntryView  `json:"entries"`
	Windows []WindowView `json:"windows"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Long: `List every session persisted in a cascade database, newest first.

Examples:
  cascade sessions --db ./cascade.db
  cascade sessions --db ./cascade.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one session's entries and windows",
		Long: `Show the entries and windows recorded for one session, in emission
order.

Examples:
  cascade show --db ./cascade.db --session 0190b6c2-...
  cascade show --db ./cascade.db --session 0190b6c2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

// openStore opens an existing database. Reading commands never create one.
func openStore(out *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}

func runSessions(opts *StoreOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	st, err := openStore(out, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.ListSessions(cmd.Context())
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to list sessions", err)
	}

	views := make([]SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = sessionView(s)
	}
	if opts.Format == "json" {
		return out.Success(views)
	}

	w := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	for _, v := range views {
		fmt.Fprintf(w, "%s  %-24s %-9s %4d entries %3d windows  %s\n",
			v.ID, v.Name, v.Mode, v.Entries, v.Windows, v.StartedAt)
	}
	return nil
}

func runShow(opts *StoreOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openStore(out, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.GetSession(ctx, opts.Session)
	if errors.Is(err, store.ErrSessionNotFound) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("session not found: %s", opts.Session), nil)
	}
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to read session", err)
	}
	entries, err := st.ReadEntries(ctx, opts.Session)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to read entries", err)
	}
	windows, err := st.ReadWindows(ctx, opts.Session)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to read windows", err)
	}

	result := ShowResult{
		Session: sessionView(sess),
		Entries: make([]EntryView, len(entries)),
		Windows: make([]WindowView, len(windows)),
	}
	result.Session.Entries = len(entries)
	result.Session.Windows = len(windows)
	for i, e := range entries {
		result.Entries[i] = entryView(e)
	}
	for i, w := range windows {
		result.Windows[i] = windowView(w)
	}

	if opts.Format == "json" {
		return out.Success(result)
	}
	printShow(cmd.OutOrStdout(), result, entries, windows)
	return nil
}

func printShow(w io.Writer, r ShowResult, entries []ir.Entry, windows []ir.Window) {
	fmt.Fprintf(w, "Session %s (%s, %s mode)\n", r.Session.ID, r.Session.Name, r.Session.Mode)
	fmt.Fprintf(w, "Started: %s\n\n", r.Session.StartedAt)

	fmt.Fprintf(w, "Windows (%d):\n", len(windows))
	for _, win := range windows {
		fmt.Fprintf(w, "  %8.1fms  %s\n", millis(win.Start), printer.GroupLabel(win))
	}

	fmt.Fprintf(w, "\nEntries (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  %4d %8.1fms  %s\n", e.Seq, millis(e.Timestamp), printer.Format(e, 1, 1))
	}
}

func sessionView(s store.Session) SessionView {
	return SessionView{
		ID:        s.ID,
		Name:      s.Name,
		Mode:      s.Mode,
		StartedAt: s.StartedAt.Format(time.RFC3339),
		Entries:   s.Entries,
		Windows:   s.Windows,
		Meta:      s.Meta,
	}
}

func entryView(e ir.Entry) EntryView {
	return EntryView{
		Seq:         e.Seq,
		TimestampMS: millis(e.Timestamp),
		Severity:    string(e.Severity),
		Location:    e.Location,
		Component:   e.Component,
		Message:     e.Message,
	}
}

func windowView(w ir.Window) WindowView {
	return WindowView{
		Label:     w.Label,
		Source:    string(w.Source),
		StartMS:   millis(w.Start),
		EndMS:     millis(w.End),
		Mutations: w.Mutations,
		Others:    w.Others,
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
