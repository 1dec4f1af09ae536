package broadcast

import (
	"errors"
	"sync"
)

const pendingLimit = 256

var ErrPendingOverflow = errors.New("too many events queued before the stream opened")

// PendingSink is registered with the hub before the snapshot is built. It
// queues frames until Attach hands it the real connection, so nothing
// committed between snapshot and subscribe is lost.
type PendingSink struct {
	mu     sync.Mutex
	inner  Sink
	queue  [][]byte
	closed bool
}

func NewPendingSink() *PendingSink {
	return &PendingSink{}
}

func (s *PendingSink) WriteEvent(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if s.inner != nil {
		return s.inner.WriteEvent(frame)
	}
	if len(s.queue) >= pendingLimit {
		return ErrPendingOverflow
	}
	s.queue = append(s.queue, frame)
	return nil
}

// Attach flushes the queued frames to inner in order and forwards every
// later write to it.
func (s *PendingSink) Attach(inner Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	for _, frame := range s.queue {
		if err := inner.WriteEvent(frame); err != nil {
			s.closed = true
			s.queue = nil
			return err
		}
	}
	s.queue = nil
	s.inner = inner
	return nil
}

// Close drops the queue and closes the attached connection, if any.
func (s *PendingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.queue = nil
	if s.inner != nil {
		return s.inner.Close()
	}
	return nil
}
