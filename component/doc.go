// Package component defines lifecycle-managed process resources.
//
// A Component is started once at process start and stopped once at
// shutdown. The scheduler registry is the main component: it owns every
// shared worker pool, so the process root starts it before activating any
// pipeline and stops it after the last activation finished.
//
//	reg := component.NewRegistry()
//	_ = reg.Register(schedulers)
//	if err := reg.StartAll(ctx); err != nil { ... }
//	defer reg.StopAll(ctx)
package component
