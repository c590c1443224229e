package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/config"
)

// ConfigSummary is the JSON payload of a successful validate.
type ConfigSummary struct {
	Path              string `json:"path"`
	SlowEffectMS      int64  `json:"slow_effect_ms"`
	FlushDebounceMS   int64  `json:"flush_debounce_ms"`
	LongTaskMS        int64  `json:"long_task_ms"`
	SlowInteractionMS int64  `json:"slow_interaction_ms"`
	Mode              string `json:"mode"`
	Store             string `json:"store,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate a cascade config file",
		Long: `Validate a cascade.cue file against the config schema and print the
resolved settings, defaults included.

Examples:
  cascade validate ./cascade.cue
  cascade validate ./cascade.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := formatter(opts, cmd)

	if _, err := os.Stat(path); err != nil {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("config not found: %s", path), nil)
	}

	cfg, err := config.Load(path)
	if err != nil {
		var details []string
		var ve *config.ValidationError
		if errors.As(err, &ve) {
			for _, e := range unwrapAll(err) {
				details = append(details, e.Error())
			}
		}
		_ = out.Error(ErrCodeConfigInvalid, "config invalid", details)
		return WrapExitError(ExitFailure, "config invalid", err)
	}

	summary := ConfigSummary{
		Path:              path,
		SlowEffectMS:      cfg.SlowEffect.Milliseconds(),
		FlushDebounceMS:   cfg.FlushDebounce.Milliseconds(),
		LongTaskMS:        cfg.LongTask.Milliseconds(),
		SlowInteractionMS: cfg.SlowInteraction.Milliseconds(),
		Mode:              cfg.Mode,
		Store:             cfg.Store,
	}
	if opts.Format == "json" {
		return out.Success(summary)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s is valid\n", path)
	fmt.Fprintf(w, "  slow_effect_ms:      %d\n", summary.SlowEffectMS)
	fmt.Fprintf(w, "  flush_debounce_ms:   %d\n", summary.FlushDebounceMS)
	fmt.Fprintf(w, "  long_task_ms:        %d\n", summary.LongTaskMS)
	fmt.Fprintf(w, "  slow_interaction_ms: %d\n", summary.SlowInteractionMS)
	fmt.Fprintf(w, "  mode:                %s\n", summary.Mode)
	if summary.Store != "" {
		fmt.Fprintf(w, "  store:               %s\n", summary.Store)
	}
	return nil
}

// unwrapAll flattens an errors.Join tree into its leaves.
func unwrapAll(err error) []error {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range multi.Unwrap() {
			out = append(out, unwrapAll(e)...)
		}
		return out
	}
	return []error{err}
}
