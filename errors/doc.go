// Package errors provides the error taxonomy shared by schedulers, pipelines
// and the subscription engine.
//
// Every failure is an *AppError carrying a machine-readable ErrorCode. The
// package-level sentinels (ErrSchedulerClosed, ErrSchedulerBusy, ...) match
// any AppError with the same code through the standard errors.Is:
//
//	if errors.Is(err, fkerrors.ErrSchedulerBusy) {
//	    // the bounded elastic queue rejected the task
//	}
package errors
