package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Dosada05/matchday/broadcast"
	"github.com/Dosada05/matchday/services"
)

const sseWriteTimeout = 10 * time.Second

// StreamHandler serves live match updates over SSE.
type StreamHandler struct {
	hub             *broadcast.Hub
	snapshotService services.SnapshotService
}

func NewStreamHandler(hub *broadcast.Hub, ss services.SnapshotService) *StreamHandler {
	return &StreamHandler{hub: hub, snapshotService: ss}
}

// ServeSSE sends a snapshot event first and then relays the match's live
// events until the client disconnects or a write fails.
func (h *StreamHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Подписка до построения снимка: события, пришедшие в это время, ждут в очереди
	pending := broadcast.NewPendingSink()
	h.hub.Subscribe(matchID, pending)
	defer h.hub.Unsubscribe(matchID, pending)
	defer pending.Close()

	// Снимок строится до отправки заголовков, чтобы 404 ещё можно было вернуть
	snap, err := h.snapshotService.BuildSnapshot(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	sink := broadcast.NewSSESink(w, sseWriteTimeout)
	defer sink.Close()

	if err := h.hub.SendTo(sink, broadcast.EventSnapshot, snap); err != nil {
		logger(r).Debug("sse snapshot write failed", slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}
	if err := pending.Attach(sink); err != nil {
		logger(r).Debug("sse queued events write failed", slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}

	logger(r).Debug("sse subscriber connected", slog.Int("match_id", matchID))

	select {
	case <-r.Context().Done():
	case <-sink.Done():
	}
}
