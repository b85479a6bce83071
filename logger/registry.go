package logger

import (
	"sync"
)

// registry is the global named-logger registry.
var registry = &loggerRegistry{
	loggers: make(map[string]*Logger),
}

type loggerRegistry struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

// Register stores a named logger in the registry.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// Get retrieves a named logger. If the name is not registered it returns the
// global logger tagged with the requested component name.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// Components lists the component loggers fluxkit packages look up with Get.
var Components = []string{"scheduler", "engine", "component", "observability"}

// RegisterComponents registers a logger derived from base for each name, or
// for Components when no names are given. Schedulers and registries created
// afterwards log through base.
func RegisterComponents(base *Logger, names ...string) {
	if len(names) == 0 {
		names = Components
	}
	for _, name := range names {
		Register(name, base.WithComponent(name))
	}
}
