package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified error type of the module.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried as is.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// Sentinels for errors.Is comparisons. Never return these directly; use the
// constructors so every error carries its own details.
var (
	ErrSchedulerClosed = New(ErrCodeSchedulerClosed, "scheduler closed")
	ErrSchedulerBusy   = New(ErrCodeSchedulerBusy, "scheduler busy")
	ErrStageFailure    = New(ErrCodeStageFailure, "stage failure")
	ErrSourceFailure   = New(ErrCodeSourceFailure, "source failure")
	ErrCancelled       = New(ErrCodeCancelled, "cancelled")
	ErrInvalidConfig   = New(ErrCodeInvalidConfig, "invalid config")
	ErrInvalidPipeline = New(ErrCodeInvalidPipeline, "invalid pipeline")
)

// --- Constructors ---

// SchedulerClosed creates an error for a task submitted to a disposed scheduler.
func SchedulerClosed(scheduler string) *AppError {
	return &AppError{
		Code:    ErrCodeSchedulerClosed,
		Message: fmt.Sprintf("scheduler %s is disposed", scheduler),
		Details: map[string]any{"scheduler": scheduler},
	}
}

// SchedulerBusy creates an error for a task rejected by a saturated scheduler.
func SchedulerBusy(scheduler string, queued, capacity int) *AppError {
	return &AppError{
		Code:      ErrCodeSchedulerBusy,
		Message:   fmt.Sprintf("scheduler %s rejected task: %d tasks queued (cap %d)", scheduler, queued, capacity),
		Retryable: true,
		Details:   map[string]any{"scheduler": scheduler, "queued": queued, "capacity": capacity},
	}
}

// StageFailure wraps the failure of the stage at index while processing value.
func StageFailure(index int, value any, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeStageFailure,
		Message: fmt.Sprintf("stage %d failed on value %v", index, value),
		Details: map[string]any{"stage": index, "value": value},
		Cause:   cause,
	}
}

// SourceFailure wraps an error raised by the pipeline source.
func SourceFailure(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeSourceFailure,
		Message: "source failed",
		Cause:   cause,
	}
}

// Cancelled creates the error reported by an activation that was cancelled.
func Cancelled() *AppError {
	return &AppError{Code: ErrCodeCancelled, Message: "activation cancelled"}
}

// InvalidConfig creates an error for a configuration that failed validation.
func InvalidConfig(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidConfig, Message: message}
}

// InvalidPipeline creates an error for a pipeline definition that cannot be built.
func InvalidPipeline(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidPipeline, Message: message}
}

// Internal creates an error for an unexpected condition.
func Internal(cause error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: "internal error", Cause: cause}
}

// --- Helpers ---

// AsAppError returns err as an *AppError when one is in its chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// StageFailureInfo extracts the failing stage index and the value that
// triggered it from a STAGE_FAILURE error.
func StageFailureInfo(err error) (index int, value any, ok bool) {
	appErr, found := AsAppError(err)
	if !found || appErr.Code != ErrCodeStageFailure {
		return 0, nil, false
	}
	index, _ = appErr.Details["stage"].(int)
	return index, appErr.Details["value"], true
}

// IsRetryable reports whether err is an AppError marked retryable.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}

// Is and As re-export the standard library helpers so callers importing this
// package under the name errors keep access to them.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join returns an error that wraps the given errors.
func Join(errs ...error) error { return stderrors.Join(errs...) }
