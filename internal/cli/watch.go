package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// DefaultWatchDebounce coalesces the burst of events an editor save makes.
const DefaultWatchDebounce = 200 * time.Millisecond

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RunOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RunOptions: &RunOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch <scenario.yaml>",
		Short: "Re-run a scenario whenever it changes",
		Long: `Run a scenario, then run it again every time the scenario file (or the
--config file) is saved. Failures are reported and watching continues.
Press Ctrl-C to stop.

Examples:
  cascade watch ./scenarios/dashboard.yaml
  cascade watch ./scenarios/dashboard.yaml --config ./cascade.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database; each run becomes a session")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to cascade.cue (also watched)")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", DefaultWatchDebounce, "quiet period before re-running")

	return cmd
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario not found: %s", path))
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths := []string{path}
	if opts.Config != "" {
		paths = append(paths, opts.Config)
	}

	runs := 0
	return watchFiles(ctx, paths, opts.Debounce, logger, func() {
		runs++
		fmt.Fprintf(cmd.OutOrStdout(), "── run %d: %s ──\n", runs, path)
		if err := runScenario(opts.RunOptions, path, cmd); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		}
	})
}

// watchFiles calls run once, then again after each quiet period following
// a write to any of paths, until ctx is done.
func watchFiles(ctx context.Context, paths []string, debounce time.Duration, logger *slog.Logger, run func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create watcher", err)
	}
	defer watcher.Close()

	// Editors often replace files, so watch directories and filter by name.
	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to resolve path", err)
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to watch %s", dir), err)
		}
		dirs[dir] = true
	}

	run()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(event.Name)] || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)

		case <-fire:
			fire = nil
			run()
		}
	}
}
