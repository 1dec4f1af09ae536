package broadcast

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeSink struct {
	mu     sync.Mutex
	frames []string
	fail   bool
	closed int
}

func (s *fakeSink) WriteEvent(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broken pipe")
	}
	s.frames = append(s.frames, string(frame))
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSink) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func newTestHub() *Hub {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return h
}

func TestFormatEvent(t *testing.T) {
	got := string(FormatEvent(42, "period_started", []byte(`{"a":1}`)))
	want := "id: 42\nevent: period_started\ndata: {\"a\":1}\n\n"
	if got != want {
		t.Fatalf("FormatEvent = %q, want %q", got, want)
	}
}

func TestBroadcastIsolatesFailingSubscriber(t *testing.T) {
	h := newTestHub()
	good1, good2, bad := &fakeSink{}, &fakeSink{}, &fakeSink{fail: true}
	for _, s := range []*fakeSink{good1, bad, good2} {
		h.Subscribe(1, s)
	}

	h.Broadcast(1, EventPeriodStarted, map[string]int{"periodNumber": 1})

	want := "id: 1700000000123\nevent: period_started\ndata: {\"periodNumber\":1}\n\n"
	for i, s := range []*fakeSink{good1, good2} {
		frames := s.received()
		if len(frames) != 1 || frames[0] != want {
			t.Fatalf("sink %d got %q, want one %q", i, frames, want)
		}
	}
	if bad.closed != 1 {
		t.Fatalf("failing sink closed %d times, want 1", bad.closed)
	}
	if n := h.SubscriberCount(1); n != 2 {
		t.Fatalf("SubscriberCount = %d, want 2", n)
	}
}

func TestBroadcastOnlyReachesMatchSubscribers(t *testing.T) {
	h := newTestHub()
	a, b := &fakeSink{}, &fakeSink{}
	h.Subscribe(1, a)
	h.Subscribe(2, b)

	h.Broadcast(1, EventPeriodEnded, struct{}{})
	h.Broadcast(3, EventPeriodEnded, struct{}{})

	if len(a.received()) != 1 || len(b.received()) != 0 {
		t.Fatalf("a=%d b=%d frames, want 1 and 0", len(a.received()), len(b.received()))
	}
}

func TestUnsubscribeLastRemovesMatch(t *testing.T) {
	h := newTestHub()
	a, b := &fakeSink{}, &fakeSink{}
	h.Subscribe(5, a)
	h.Subscribe(5, b)
	if h.MatchCount() != 1 {
		t.Fatalf("MatchCount = %d, want 1", h.MatchCount())
	}

	if !h.Unsubscribe(5, a) {
		t.Fatal("first Unsubscribe should report removal")
	}
	if h.Unsubscribe(5, a) {
		t.Fatal("repeated Unsubscribe should be a no-op")
	}
	h.Unsubscribe(5, b)

	if h.MatchCount() != 0 || h.SubscriberCount(5) != 0 {
		t.Fatalf("registry not empty: matches=%d subs=%d", h.MatchCount(), h.SubscriberCount(5))
	}
}

func TestHeartbeatPrunesDeadSubscribers(t *testing.T) {
	h := newTestHub()
	live, dead, other := &fakeSink{}, &fakeSink{fail: true}, &fakeSink{}
	h.Subscribe(1, live)
	h.Subscribe(1, dead)
	h.Subscribe(2, other)

	h.Heartbeat()

	if h.SubscriberCount(1) != 1 || dead.closed != 1 {
		t.Fatalf("dead subscriber not pruned: count=%d closed=%d", h.SubscriberCount(1), dead.closed)
	}
	for _, s := range []*fakeSink{live, other} {
		frames := s.received()
		if len(frames) != 1 || !strings.Contains(frames[0], "event: heartbeat\n") {
			t.Fatalf("expected one heartbeat, got %q", frames)
		}
	}

	// A match whose only subscriber dies disappears from the registry.
	h.Subscribe(3, &fakeSink{fail: true})
	h.Heartbeat()
	if h.SubscriberCount(3) != 0 || h.MatchCount() != 2 {
		t.Fatalf("match 3 should be gone: matches=%d", h.MatchCount())
	}
}

func TestConcurrentSubscribeAndBroadcast(t *testing.T) {
	h := newTestHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := &fakeSink{}
			h.Subscribe(1, s)
			h.Unsubscribe(1, s)
		}()
		go func() {
			defer wg.Done()
			h.Broadcast(1, EventHeartbeat, nil)
		}()
	}
	wg.Wait()
	if h.MatchCount() != 0 {
		t.Fatalf("MatchCount = %d, want 0", h.MatchCount())
	}
}

func TestRelayIgnoresOwnMessages(t *testing.T) {
	h := newTestHub()
	sink := &fakeSink{}
	h.Subscribe(9, sink)
	r := NewRedisRelay(nil, h, "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	own, _ := json.Marshal(relayEnvelope{Origin: r.origin, MatchID: 9, EventType: EventPeriodEnded, Payload: json.RawMessage(`{}`)})
	r.handle(string(own))
	if len(sink.received()) != 0 {
		t.Fatal("relay must not echo its own messages")
	}

	foreign, _ := json.Marshal(relayEnvelope{Origin: "other", MatchID: 9, EventType: EventPeriodEnded, Payload: json.RawMessage(`{"x":1}`)})
	r.handle(string(foreign))
	frames := sink.received()
	if len(frames) != 1 || !strings.Contains(frames[0], "data: {\"x\":1}\n") {
		t.Fatalf("foreign message not delivered: %q", frames)
	}

	r.handle("not json")
}

func TestRelayBroadcastQueuesWithoutWaitingOnRedis(t *testing.T) {
	h := newTestHub()
	sink := &fakeSink{}
	h.Subscribe(4, sink)
	r := NewRedisRelay(nil, h, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.outbox = make(chan []byte, 1)

	r.Broadcast(4, EventPeriodStarted, map[string]int{"periodId": 1})
	r.Broadcast(4, EventPeriodEnded, map[string]int{"periodId": 1})

	if got := len(sink.received()); got != 2 {
		t.Fatalf("local frames = %d, want 2", got)
	}
	if len(r.outbox) != 1 {
		t.Fatalf("queued = %d, want 1 with the overflow dropped", len(r.outbox))
	}

	var env relayEnvelope
	if err := json.Unmarshal(<-r.outbox, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Origin != r.origin || env.MatchID != 4 || env.EventType != EventPeriodStarted {
		t.Errorf("envelope = %+v", env)
	}
}
