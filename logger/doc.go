// Package logger provides structured logging for fluxkit using zerolog.
//
// It supports JSON and console output, level configuration, named
// component loggers and the field keys used across schedulers and the
// subscription engine (scheduler, worker, stage, activation_id, rail).
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "console"
//
// # Usage
//
//	log := logger.Get("engine")
//	log.Info("activation completed", logger.Fields(logger.FieldActivationID, id))
package logger
