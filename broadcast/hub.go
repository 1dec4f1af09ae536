package broadcast

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Event types pushed to subscribers.
const (
	EventSnapshot           = "snapshot"
	EventHeartbeat          = "heartbeat"
	EventPeriodStarted      = "period_started"
	EventPeriodEnded        = "period_ended"
	EventPeriodDeleted      = "period_deleted"
	EventMatchStatusChanged = "match_status_changed"
	EventMatchEventRecorded = "match_event_recorded"
	EventMatchEventDeleted  = "match_event_deleted"
)

var ErrSinkClosed = errors.New("sink is closed")

// Sink is a live connection that accepts framed event records.
// Implementations must be safe for concurrent use.
type Sink interface {
	WriteEvent(frame []byte) error
	Close() error
}

// Notifier is what state-changing code depends on to announce changes.
// Delivery is best effort and never reports failure.
type Notifier interface {
	Broadcast(matchID int, eventType string, payload any)
}

// Hub is the in-process registry of subscribers per match. It is not
// distributed; see RedisRelay for multi-instance fan-out.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int]map[Sink]struct{}
	logger *slog.Logger
	now    func() time.Time
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[int]map[Sink]struct{}),
		logger: logger,
		now:    time.Now,
	}
}

func (h *Hub) Subscribe(matchID int, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[matchID]; !ok {
		h.rooms[matchID] = make(map[Sink]struct{})
	}
	h.rooms[matchID][sink] = struct{}{}
	h.logger.Debug("subscriber added", slog.Int("match_id", matchID), slog.Int("subscribers", len(h.rooms[matchID])))
}

// Unsubscribe removes sink and reports whether it was registered. The match
// entry is dropped with its last subscriber.
func (h *Hub) Unsubscribe(matchID int, sink Sink) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sinks, ok := h.rooms[matchID]
	if !ok {
		return false
	}
	if _, ok := sinks[sink]; !ok {
		return false
	}
	delete(sinks, sink)
	if len(sinks) == 0 {
		delete(h.rooms, matchID)
	}
	return true
}

func (h *Hub) SubscriberCount(matchID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[matchID])
}

func (h *Hub) MatchCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Broadcast frames payload once and writes it to every subscriber of the
// match. Failing subscribers are closed and removed.
func (h *Hub) Broadcast(matchID int, eventType string, payload any) {
	sinks := h.sinksFor(matchID)
	if len(sinks) == 0 {
		return
	}

	frame, err := h.frame(eventType, payload)
	if err != nil {
		h.logger.Error("failed to encode broadcast payload",
			slog.Int("match_id", matchID), slog.String("event", eventType), slog.Any("error", err))
		return
	}
	h.deliver(matchID, sinks, frame)
}

// SendTo writes a single event to one sink without touching the registry.
func (h *Hub) SendTo(sink Sink, eventType string, payload any) error {
	frame, err := h.frame(eventType, payload)
	if err != nil {
		return err
	}
	return sink.WriteEvent(frame)
}

type heartbeatPayload struct {
	MatchID   int       `json:"matchId"`
	Timestamp time.Time `json:"timestamp"`
}

// Heartbeat pings every subscriber of every match; dead connections are
// pruned the same way Broadcast prunes them.
func (h *Hub) Heartbeat() {
	h.mu.RLock()
	rooms := make(map[int][]Sink, len(h.rooms))
	for matchID, sinks := range h.rooms {
		rooms[matchID] = collect(sinks)
	}
	h.mu.RUnlock()

	now := h.now().UTC()
	for matchID, sinks := range rooms {
		frame, err := h.frame(EventHeartbeat, heartbeatPayload{MatchID: matchID, Timestamp: now})
		if err != nil {
			continue
		}
		h.deliver(matchID, sinks, frame)
	}
}

func (h *Hub) sinksFor(matchID int) []Sink {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return collect(h.rooms[matchID])
}

func collect(set map[Sink]struct{}) []Sink {
	sinks := make([]Sink, 0, len(set))
	for s := range set {
		sinks = append(sinks, s)
	}
	return sinks
}

func (h *Hub) frame(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return FormatEvent(h.now().UnixMilli(), eventType, data), nil
}

// deliver runs outside the registry lock so a slow sink cannot stall
// subscribe/unsubscribe.
func (h *Hub) deliver(matchID int, sinks []Sink, frame []byte) {
	for _, sink := range sinks {
		if err := sink.WriteEvent(frame); err != nil {
			h.drop(matchID, sink, err)
		}
	}
}

func (h *Hub) drop(matchID int, sink Sink, cause error) {
	if !h.Unsubscribe(matchID, sink) {
		return
	}
	if err := sink.Close(); err != nil {
		h.logger.Debug("closing failed subscriber", slog.Int("match_id", matchID), slog.Any("error", err))
	}
	h.logger.Info("subscriber removed after write failure",
		slog.Int("match_id", matchID), slog.Any("error", cause))
}
