package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/elecciones-pr/tablero/internal/poller"
	"github.com/elecciones-pr/tablero/internal/presenter"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// liveMessage is what the page script receives. HTML is omitted on plain
// countdown ticks because the tables have not changed.
type liveMessage struct {
	Seconds int    `json:"seconds"`
	HTML    string `json:"html,omitempty"`
}

// LiveHandler pushes board updates to browsers over WebSocket: every tick
// carries the countdown, and refreshes and poll results also carry the
// re-rendered tables.
type LiveHandler struct {
	source    SnapshotSource
	stream    EventStream
	presenter *presenter.Presenter
	tmpl      *template.Template
	upgrader  websocket.Upgrader

	quit      chan struct{}
	closeOnce sync.Once
}

func NewLiveHandler(source SnapshotSource, stream EventStream, p *presenter.Presenter, tmpl *template.Template) *LiveHandler {
	return &LiveHandler{
		source:    source,
		stream:    stream,
		presenter: p,
		tmpl:      tmpl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		quit: make(chan struct{}),
	}
}

// Close ends every open session.
func (h *LiveHandler) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

// Serve upgrades the request and streams until the client leaves or the
// handler is closed.
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		return
	}
	defer conn.Close()

	logger := log.WithFields(log.Fields{
		"component": "live",
		"session":   uuid.NewString(),
		"remote":    r.RemoteAddr,
	})
	logger.Debug("session opened")
	defer logger.Debug("session closed")

	events := h.stream.SubscribeAll()
	defer h.stream.Unsubscribe(events)

	gone := make(chan struct{})
	go h.readLoop(conn, gone)

	if err := h.send(conn, h.source.Snapshot(), true); err != nil {
		logger.WithError(err).Debug("initial write failed")
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return

		case <-h.quit:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.send(conn, ev.State, ev.Kind != poller.EventTick); err != nil {
				logger.WithError(err).Debug("write failed")
				return
			}
		}
	}
}

// readLoop discards client messages; it exists to process control frames
// and to notice when the client goes away.
func (h *LiveHandler) readLoop(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHandler) send(conn *websocket.Conn, state poller.State, withBoard bool) error {
	msg := liveMessage{Seconds: state.SecondsUntilNextPoll}
	if withBoard {
		html, err := renderFragment(h.tmpl, h.presenter.Build(state))
		if err != nil {
			return err
		}
		msg.HTML = html
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
