package logger

import (
	"sync"
)

var (
	namedMu sync.RWMutex
	named   = make(map[string]*Logger)
)

// Register stores a named logger, overriding the component logger Get would
// derive for that name.
func Register(name string, l *Logger) {
	namedMu.Lock()
	defer namedMu.Unlock()
	named[name] = l
}

// Get retrieves a named logger. Unregistered names get the global logger
// tagged with the component name.
func Get(name string) *Logger {
	namedMu.RLock()
	l, ok := named[name]
	namedMu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// Reset drops every registered logger. Init callers use it after swapping the
// global logger so components pick up the new output.
func Reset() {
	namedMu.Lock()
	defer namedMu.Unlock()
	named = make(map[string]*Logger)
}
