package sse

// Stream-level event names. Job events use their own type names.
const (
	// EventConnected is the first frame of every stream.
	EventConnected = "connected"
	// EventError reports a stream that cannot continue.
	EventError = "error"
)
