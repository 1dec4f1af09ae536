package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/matchday/broadcast"
	"github.com/Dosada05/matchday/services"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub             *broadcast.Hub
	snapshotService services.SnapshotService
	upgrader        websocket.Upgrader
}

// NewWebSocketHandler builds the handler. checkOrigin may be nil, which lets
// every origin through.
func NewWebSocketHandler(hub *broadcast.Hub, ss services.SnapshotService, checkOrigin func(r *http.Request) bool) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		hub:             hub,
		snapshotService: ss,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeWs streams the same frames as the SSE endpoint, one text message per
// event. Клиент подключается к /ws/matches/{matchID}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	pending := broadcast.NewPendingSink()
	h.hub.Subscribe(matchID, pending)
	release := func() {
		h.hub.Unsubscribe(matchID, pending)
		pending.Close()
	}

	snap, err := h.snapshotService.BuildSnapshot(r.Context(), matchID)
	if err != nil {
		release()
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		release()
		// Upgrade сам отправляет HTTP ошибку клиенту
		logger(r).Warn("websocket upgrade failed", slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}

	log := logger(r).With(slog.Int("match_id", matchID))
	sink := broadcast.NewWSSink(conn, log)

	go sink.WritePump()

	if err := h.hub.SendTo(sink, broadcast.EventSnapshot, snap); err != nil {
		log.Debug("websocket snapshot write failed", slog.Any("error", err))
		release()
		sink.Close()
		return
	}
	if err := pending.Attach(sink); err != nil {
		log.Debug("websocket queued events write failed", slog.Any("error", err))
		release()
		sink.Close()
		return
	}

	go sink.ReadPump(release)

	log.Debug("websocket subscriber connected")
}
