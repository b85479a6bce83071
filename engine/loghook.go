package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kbukum/fluxkit/logger"
)

// LogHook logs every event the way a reactive log() operator prints
// signals: onSubscribe, onNext, onComplete, onError and cancel at info,
// value traffic at debug, each tagged with the thread it happened on.
func LogHook(l *logger.Logger) Hook {
	if l == nil {
		l = logger.Get("engine")
	}
	return HookFunc(func(ev Event) {
		fields := logger.Fields(
			logger.FieldActivationID, ev.ActivationID,
			logger.FieldEvent, ev.Type.String(),
			logger.FieldWorker, ev.Thread.Name,
		)
		if ev.Thread.OSThreadID != 0 {
			fields[logger.FieldThreadID] = ev.Thread.OSThreadID
		}
		if ev.Rail >= 0 {
			fields[logger.FieldRail] = ev.Rail
		}

		switch ev.Type {
		case EventSubscribed:
			fields[logger.FieldScheduler] = ev.To
			l.Info("onSubscribe", fields)
		case EventValueProduced:
			if !l.Enabled(zerolog.DebugLevel) {
				return
			}
			fields[logger.FieldValue] = fmt.Sprint(ev.Value)
			l.Debug("request", fields)
		case EventStageEntered:
			if !l.Enabled(zerolog.DebugLevel) {
				return
			}
			fields[logger.FieldStage] = ev.Stage
			if ev.StageName != "" {
				fields["stage_name"] = ev.StageName
			}
			fields[logger.FieldValue] = fmt.Sprint(ev.Value)
			l.Debug("stage", fields)
		case EventMigrated:
			fields[logger.FieldFrom] = ev.From
			fields[logger.FieldTo] = ev.To
			l.Debug("publishOn", fields)
		case EventValueDelivered:
			fields[logger.FieldValue] = fmt.Sprint(ev.Value)
			l.Info(fmt.Sprintf("onNext(%v)", ev.Value), fields)
		case EventCompleted:
			fields[logger.FieldDuration] = ev.Elapsed.Milliseconds()
			l.Info("onComplete()", fields)
		case EventErrored:
			fields[logger.FieldDuration] = ev.Elapsed.Milliseconds()
			fields[logger.FieldError] = fmt.Sprint(ev.Err)
			l.Error("onError()", fields)
		case EventCancelled:
			l.Info("cancel()", fields)
		case EventDropped:
			l.Trace("dropped", fields)
		}
	})
}
