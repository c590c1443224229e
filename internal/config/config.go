// Package config loads cascade settings from an optional CUE file.
//
// The embedded schema supplies defaults, so an empty file (or no file)
// yields the default configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// Output modes.
const (
	ModeGrouped   = "grouped"
	ModeImmediate = "immediate"
)

// Config holds thresholds and output settings.
type Config struct {
	SlowEffect      time.Duration
	FlushDebounce   time.Duration
	LongTask        time.Duration
	SlowInteraction time.Duration
	Mode            string
	Store           string
}

// raw mirrors the CUE field names.
type raw struct {
	SlowEffectMS      int    `json:"slow_effect_ms"`
	FlushDebounceMS   int    `json:"flush_debounce_ms"`
	LongTaskMS        int    `json:"long_task_ms"`
	SlowInteractionMS int    `json:"slow_interaction_ms"`
	Mode              string `json:"mode"`
	Store             string `json:"store,omitempty"`
}

func (r raw) config() Config {
	return Config{
		SlowEffect:      time.Duration(r.SlowEffectMS) * time.Millisecond,
		FlushDebounce:   time.Duration(r.FlushDebounceMS) * time.Millisecond,
		LongTask:        time.Duration(r.LongTaskMS) * time.Millisecond,
		SlowInteraction: time.Duration(r.SlowInteractionMS) * time.Millisecond,
		Mode:            r.Mode,
		Store:           r.Store,
	}
}

// ValidationError describes one constraint violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the configuration an empty file produces.
func Default() Config {
	c, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return c
}

// Load reads and validates the file at path. A missing file yields
// Default().
func Load(path string) (Config, error) {
	src, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, src)
}

// Parse validates src against the schema and decodes it. On failure the
// error joins one *ValidationError per violation.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}

	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return Config{}, validationErrors(err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := unknownFields(def, file); err != nil {
		return Config{}, err
	}

	v := def.Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, validationErrors(err)
	}

	var r raw
	if err := v.Decode(&r); err != nil {
		return Config{}, validationErrors(err)
	}
	return r.config(), nil
}

// unknownFields rejects top-level fields the schema does not declare.
func unknownFields(def, file cue.Value) error {
	known := map[string]bool{}
	defs, err := def.Fields(cue.Optional(true))
	if err != nil {
		return fmt.Errorf("read schema fields: %w", err)
	}
	for defs.Next() {
		known[defs.Selector().Unquoted()] = true
	}

	fields, err := file.Fields(cue.Optional(true))
	if err != nil {
		return validationErrors(err)
	}
	var out []error
	for fields.Next() {
		name := fields.Selector().Unquoted()
		if known[name] {
			continue
		}
		ve := &ValidationError{Field: name, Message: "field not allowed"}
		if pos := fields.Value().Pos(); pos.IsValid() {
			ve.File = pos.Filename()
			ve.Line = pos.Line()
		}
		out = append(out, ve)
	}
	return errors.Join(out...)
}

func validationErrors(err error) error {
	var out []error
	for _, e := range cueerrors.Errors(err) {
		ve := &ValidationError{
			Field:   fieldOf(e),
			Message: messageOf(e),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		return &ValidationError{Field: "config", Message: err.Error()}
	}
	return errors.Join(out...)
}

func fieldOf(e cueerrors.Error) string {
	path := e.Path()
	if len(path) == 0 {
		return "config"
	}
	if path[0] == "#Config" {
		path = path[1:]
	}
	if len(path) == 0 {
		return "config"
	}
	return strings.Join(path, ".")
}

func messageOf(e cueerrors.Error) string {
	format, args := e.Msg()
	return fmt.Sprintf(format, args...)
}

// Immediate reports whether buffering is disabled.
func (c Config) Immediate() bool {
	return c.Mode == ModeImmediate
}
