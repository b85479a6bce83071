package engine

import (
	"time"

	"github.com/kbukum/fluxkit/scheduler"
)

// EventType identifies an activation event.
type EventType int

const (
	// EventSubscribed fires once when an activation starts.
	EventSubscribed EventType = iota
	// EventValueProduced fires when the source emits a value.
	EventValueProduced
	// EventStageEntered fires before a stage or filter runs.
	EventStageEntered
	// EventMigrated fires when a value or signal is handed to another worker.
	EventMigrated
	// EventValueDelivered fires after the subscriber received a value.
	EventValueDelivered
	// EventCompleted fires after OnComplete.
	EventCompleted
	// EventErrored fires after OnError.
	EventErrored
	// EventCancelled fires when the activation is cancelled.
	EventCancelled
	// EventDropped fires for a value or signal suppressed after termination.
	EventDropped
)

var eventNames = [...]string{
	EventSubscribed:     "subscribed",
	EventValueProduced:  "value_produced",
	EventStageEntered:   "stage_entered",
	EventMigrated:       "migrated",
	EventValueDelivered: "value_delivered",
	EventCompleted:      "completed",
	EventErrored:        "errored",
	EventCancelled:      "cancelled",
	EventDropped:        "dropped",
}

func (t EventType) String() string {
	if int(t) >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// IsTerminal reports whether t ends an activation.
func (t EventType) IsTerminal() bool {
	return t == EventCompleted || t == EventErrored || t == EventCancelled
}

// Event describes something that happened during an activation.
type Event struct {
	Type         EventType
	ActivationID string
	Pipeline     string
	// Stage is the step index, or -1.
	Stage     int
	StageName string
	// Rail is the rail index in a parallel activation, or -1.
	Rail   int
	Thread scheduler.Thread
	// From and To name the schedulers of a migration. Subscribed carries the
	// source scheduler in To.
	From  string
	To    string
	Value any
	Err   error
	Time  time.Time
	// Elapsed is the activation age on terminal events.
	Elapsed time.Duration
}

// Hook observes activation events. OnEvent is called on the thread the
// event happened on and must not block.
type Hook interface {
	OnEvent(ev Event)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ev Event)

// OnEvent calls f(ev).
func (f HookFunc) OnEvent(ev Event) { f(ev) }

type multiHook []Hook

func (m multiHook) OnEvent(ev Event) {
	for _, h := range m {
		h.OnEvent(ev)
	}
}

// MultiHook fans events out to every non-nil hook in order.
func MultiHook(hooks ...Hook) Hook {
	out := make(multiHook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

type nopHook struct{}

func (nopHook) OnEvent(Event) {}
