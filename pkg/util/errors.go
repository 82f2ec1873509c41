// Package util provides logging, error types, and addressing helpers shared
// across the soniclab packages.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the orchestrator error taxonomy. Callers match with
// errors.Is; the typed errors below unwrap to these.
var (
	ErrValidationFailed = errors.New("topology validation failed")
	ErrProvisionFailed  = errors.New("provisioning failed")
	ErrProbeFailed      = errors.New("probe failed")
	ErrReportInvalid    = errors.New("report aggregation invalid")
	ErrNotFound         = errors.New("resource not found")
	ErrCancelled        = errors.New("operation cancelled")
)

// ValidationError represents one or more topology validation failures.
// It is fatal: no side effect may have occurred before it is returned.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// ProvisionError represents a per-node artifact or step failure. It is
// recovered locally: remaining nodes continue, and the failure is surfaced
// in the run summary.
type ProvisionError struct {
	Node string
	Step string
	Err  error
}

func (e *ProvisionError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("provision %s: step %s: %v", e.Node, e.Step, e.Err)
	}
	return fmt.Sprintf("provision %s: %v", e.Node, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return ErrProvisionFailed
}

// ProbeError represents a failed reachability probe. Recorded as Unreachable,
// never fatal to the verification run.
type ProbeError struct {
	Target string // node ID or "a<->z" link key
	Cause  string // "timeout", "refused", "cancelled", ...
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %s: %v", e.Target, e.Cause, e.Err)
}

func (e *ProbeError) Unwrap() error {
	if e.Cause == "cancelled" {
		return ErrCancelled
	}
	return ErrProbeFailed
}

// ReportError represents a violated aggregation invariant, e.g. an empty
// result set. Fatal: the run aborts.
type ReportError struct {
	Reason string
}

func (e *ReportError) Error() string {
	return "report: " + e.Reason
}

func (e *ReportError) Unwrap() error {
	return ErrReportInvalid
}
