package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kbukum/mediascribe/logger"
)

// DefaultKeepAlive is the interval between keep-alive comments. It stays
// below common proxy idle timeouts.
const DefaultKeepAlive = 30 * time.Second

// Stream describes one SSE response.
type Stream struct {
	Client *Client
	// Backlog returns frames already published after lastID. They are written
	// before live frames; live frames with an id at or below the last written
	// one are skipped.
	Backlog func(lastID int64) []Frame
	// Finished is closed when no more frames will be published. A stream
	// whose backlog is fully written after Finished closes ends.
	Finished  <-chan struct{}
	KeepAlive time.Duration
	Log       *logger.Logger
}

// LastEventID reads the resume position from the Last-Event-ID header or
// the "since" query parameter.
func LastEventID(r *http.Request) int64 {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		v = r.URL.Query().Get("since")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// WriteFrame writes f in text/event-stream format.
func WriteFrame(w io.Writer, f Frame) error {
	if f.ID > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", f.ID); err != nil {
			return err
		}
	}
	if f.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", f.Event); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", f.Data)
	return err
}

// Serve streams frames to the client until the stream ends, the request is
// cancelled or the hub stops. The client is registered before the backlog
// is read so no frame published in between is lost.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, s Stream) {
	log := s.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithFields(logger.Fields("client_id", s.Client.ID()))

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Long-lived responses must not hit the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("could not clear write deadline", logger.Fields(logger.FieldError, err.Error()))
	}

	if !hub.Register(s.Client) {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(s.Client)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	hello, _ := json.Marshal(map[string]string{"client_id": s.Client.ID()})
	_ = WriteFrame(w, Frame{Event: EventConnected, Data: hello})
	flusher.Flush()

	last := LastEventID(r)
	write := func(f Frame) bool {
		if f.ID > 0 && f.ID <= last {
			return true
		}
		if err := WriteFrame(w, f); err != nil {
			log.Debug("client write failed", logger.Fields(logger.FieldError, err.Error()))
			return false
		}
		flusher.Flush()
		if f.ID > 0 {
			last = f.ID
		}
		return !f.Final
	}

	drain := func() bool {
		if s.Backlog == nil {
			return true
		}
		for _, f := range s.Backlog(last) {
			if !write(f) {
				return false
			}
		}
		return true
	}
	if !drain() {
		return
	}

	interval := s.KeepAlive
	if interval <= 0 {
		interval = DefaultKeepAlive
	}
	keepAlive := time.NewTicker(interval)
	defer keepAlive.Stop()

	finished := s.Finished
	for {
		select {
		case <-r.Context().Done():
			log.Debug("client disconnected")
			return
		case f, ok := <-s.Client.Frames():
			if !ok || !write(f) {
				return
			}
		case <-finished:
			// Catch anything published between the last live frame and the end.
			drain()
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix()); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
