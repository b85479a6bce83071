package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Scheduler errors
const (
	// ErrCodeSchedulerClosed indicates a task was submitted after the scheduler was disposed.
	ErrCodeSchedulerClosed ErrorCode = "SCHEDULER_CLOSED"
	// ErrCodeSchedulerBusy indicates a bounded scheduler rejected a task because its queue is full.
	ErrCodeSchedulerBusy ErrorCode = "SCHEDULER_BUSY"
)

// Activation errors
const (
	// ErrCodeStageFailure indicates a user-supplied stage function failed or panicked.
	ErrCodeStageFailure ErrorCode = "STAGE_FAILURE"
	// ErrCodeSourceFailure indicates the pipeline source failed while producing values.
	ErrCodeSourceFailure ErrorCode = "SOURCE_FAILURE"
	// ErrCodeCancelled indicates the activation was cancelled before a terminal signal.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// Definition errors
const (
	// ErrCodeInvalidConfig indicates a configuration value failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeInvalidPipeline indicates a pipeline definition cannot be built.
	ErrCodeInvalidPipeline ErrorCode = "INVALID_PIPELINE"
)

// ErrCodeInternal indicates an unexpected internal error.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

var retryableCodes = map[ErrorCode]bool{
	ErrCodeSchedulerBusy: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
