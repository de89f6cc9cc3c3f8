/*
events.go - WebSocket stream of session events

PURPOSE:
  Pushes every state change and notice of one session to a connected
  client so it can re-render without polling.

PROTOCOL:
  GET /api/sessions/{id}/events upgrades to a WebSocket. The server sends:
    1. One "state" event with the current snapshot
    2. Every later event as it happens (EventDTO JSON)
    3. A "closed" event when the session is abandoned or expires, then a
       close frame
  Client messages are read and discarded; they only keep the read deadline
  fresh.

BACKPRESSURE:
  Each connection has a small buffer. A client that falls behind loses
  events rather than blocking the session; the next event carries the full
  snapshot anyway.

SEE ALSO:
  - dto.go: EventDTO
  - ../form/session.go: Subscribe
*/
package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/warp/workforce-hub/form"
)

const (
	eventBuffer  = 32
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
)

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin accepts same-host requests, requests without an Origin header
// and any configured origin.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	origins := h.allowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	if slices.Contains(origins, "*") || slices.Contains(origins, origin) {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// Events streams session events over a WebSocket.
// GET /api/sessions/{id}/events
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "session_id", s.ID(), "error", err)
		return
	}
	defer conn.Close()

	events := make(chan form.Event, eventBuffer)
	unsubscribe := s.Subscribe(func(ev form.Event) {
		select {
		case events <- ev:
		default:
			h.log.Debugw("event dropped for slow client", "session_id", s.ID(), "type", ev.Kind)
		}
	})
	defer unsubscribe()

	h.log.Infow("event stream opened", "session_id", s.ID(), "remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	go h.readLoop(conn, s.ID(), done)

	initial := form.Event{Kind: form.EventState, Snapshot: s.Snapshot()}
	if s.Closed() {
		initial.Kind = form.EventClosed
	}
	if err := writeEvent(conn, initial); err != nil || initial.Kind == form.EventClosed {
		closeStream(conn)
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			h.log.Debugw("event stream closed by client", "session_id", s.ID())
			return

		case ev := <-events:
			if err := writeEvent(conn, ev); err != nil {
				h.log.Debugw("event write failed", "session_id", s.ID(), "error", err)
				return
			}
			if ev.Kind == form.EventClosed {
				closeStream(conn)
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, sessionID string, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warnw("websocket read error", "session_id", sessionID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func writeEvent(conn *websocket.Conn, ev form.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(toEventDTO(ev))
}

func closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
