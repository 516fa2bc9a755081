package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type ResultHandler struct {
	service  ports.ResultService
	upgrader websocket.Upgrader
	log      logrus.FieldLogger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewResultHandler accepts live connections from allowedOrigins; "*" or an
// empty list accepts any origin.
func NewResultHandler(service ports.ResultService, allowedOrigins []string, log logrus.FieldLogger) *ResultHandler {
	return &ResultHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log:     log,
		closing: make(chan struct{}),
	}
}

// Shutdown closes every live connection with a going-away frame. Register it
// with http.Server.RegisterOnShutdown: Server.Shutdown does not wait for or
// cancel hijacked connections.
func (h *ResultHandler) Shutdown() {
	h.closeOnce.Do(func() { close(h.closing) })
}

func (h *ResultHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, domain.ErrInvalidPollID)
		return
	}

	results, err := h.service.ComputeResults(r.Context(), pollID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

type liveMessage struct {
	Results *domain.PollResults `json:"results,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// LiveResults upgrades to a WebSocket and streams the results of a poll: the
// current ones first, then fresh ones after every change. Closing the socket
// ends the subscription.
func (h *ResultHandler) LiveResults(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, domain.ErrInvalidPollID)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered the request
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("poll_id", pollID)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := make(chan liveMessage, 1)
	push := func(results *domain.PollResults, err error) {
		msg := liveMessage{Results: results}
		if err != nil {
			msg.Error = liveErrorMessage(err)
		}
		for {
			select {
			case updates <- msg:
				return
			default:
			}
			// only the newest snapshot matters
			select {
			case <-updates:
			default:
			}
		}
	}

	sub, err := h.service.Follow(ctx, pollID, push)
	if err != nil {
		h.closeWithError(conn, err)
		return
	}
	defer sub.Cancel()

	go h.readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case msg := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("failed to write live results")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and cancels once the peer goes away.
func (h *ResultHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
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

func (h *ResultHandler) closeWithError(conn *websocket.Conn, err error) {
	code := websocket.CloseInternalServerErr
	if errors.Is(err, domain.ErrPollNotFound) {
		code = websocket.ClosePolicyViolation
	}
	msg := liveErrorMessage(err)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(liveMessage{Error: msg})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, msg), time.Now().Add(writeWait))
}

func liveErrorMessage(err error) string {
	if errors.Is(err, domain.ErrChannelDisconnected) {
		return domain.ErrChannelDisconnected.Error()
	}
	switch statusFor(err) {
	case http.StatusNotFound:
		return domain.ErrPollNotFound.Error()
	case http.StatusServiceUnavailable:
		return domain.ErrStorageUnavailable.Error()
	}
	return "internal error"
}

func originChecker(allowed []string) func(r *http.Request) bool {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		origins[o] = true
	}
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origins[origin]
	}
}
