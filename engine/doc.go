// Package engine activates pipelines.
//
// Activation resolves where every step runs in two passes. The first pass
// picks the source scheduler: the first SubscribeOn in definition order,
// or Immediate when there is none. The second pass cuts the step list into
// segments at every PublishOn and DelayElements boundary; PublishOn(Immediate)
// is not a boundary. Each segment claims one worker for the whole
// activation, so every value crossing a boundary lands on the same thread.
//
// Values, completion and errors flow through the same FIFO hand-offs. A
// failure stops the activation, drops the hand-offs still queued and is
// reported once, on the thread of the segment where it happened.
//
// Observers plug in through Hook; LogHook mirrors a reactive log() operator
// and the observability package turns events into spans and metrics.
package engine
