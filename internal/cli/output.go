package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for cascade commands.
const (
	ExitSuccess      = 0 // scenario passed, config valid, query answered
	ExitFailure      = 1 // scenario assertions or config validation failed
	ExitCommandError = 2 // missing file, unreadable database, bad flags
)

// Error codes carried in CLIError.Code.
const (
	ErrCodeGeneric        = "E001"
	ErrCodeNotFound       = "E002" // scenario, config, database or session missing
	ErrCodeScenario       = "E003" // scenario file could not be loaded
	ErrCodeStore          = "E004" // database could not be opened or read
	ErrCodeConfigInvalid  = "E101"
	ErrCodeScenarioFailed = "E201"
)

// ExitError carries the process exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that are not an
// ExitError (cobra flag errors, for one) exit with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope every --format json command prints.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// CLIError describes a failure in a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
	// ErrWriter receives diagnostics so they never interleave with JSON.
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) json() bool {
	return f.Format == "json"
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success prints data. Text mode falls back to fmt's default formatting;
// commands with a richer text layout print it themselves.
func (f *OutputFormatter) Success(data any) error {
	if f.json() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error prints a failure. Details are shown in text mode only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.json() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Report prints a scenario outcome in JSON mode. A non-nil failure turns
// the response into an error that still carries data and the session ID.
func (f *OutputFormatter) Report(data any, sessionID string, failure *CLIError) error {
	resp := CLIResponse{Status: "ok", Data: data, SessionID: sessionID}
	if failure != nil {
		resp.Status = "error"
		resp.Error = failure
	}
	return f.encode(resp)
}

// Fail prints a failure and returns the ExitError the command should
// return, so call sites report and exit in one step.
func (f *OutputFormatter) Fail(exit int, code, message string, cause error) error {
	var details any
	if cause != nil {
		details = cause.Error()
	}
	_ = f.Error(code, message, details)
	if cause == nil {
		return NewExitError(exit, message)
	}
	return WrapExitError(exit, message, cause)
}

// VerboseLog prints a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
