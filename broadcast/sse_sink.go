package broadcast

import (
	"net/http"
	"sync"
	"time"
)

// SSESink writes event-stream records to an open HTTP response.
type SSESink struct {
	mu           sync.Mutex
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
	closed       bool
	done         chan struct{}
}

// NewSSESink sends the event-stream headers. writeTimeout bounds each write;
// zero disables the deadline.
func NewSSESink(w http.ResponseWriter, writeTimeout time.Duration) *SSESink {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &SSESink{
		w:            w,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

func (s *SSESink) WriteEvent(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if s.writeTimeout > 0 {
		// Not every ResponseWriter supports deadlines; that is fine.
		_ = s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Close marks the sink dead. The handler owning the response returns once
// Done is closed; no write happens after that.
func (s *SSESink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func (s *SSESink) Done() <-chan struct{} {
	return s.done
}
