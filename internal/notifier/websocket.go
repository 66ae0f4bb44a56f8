package notifier

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signal/internal/logger"
)

const writeTimeout = 10 * time.Second

// WebSocketHub pushes signal notifications to connected clients over
// websockets. A user may hold several connections; each one receives every
// notification addressed to that user.
type WebSocketHub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool

	upgrader websocket.Upgrader
	logger   *logger.Logger
}

func NewWebSocketHub(l *logger.Logger) *WebSocketHub {
	return &WebSocketHub{
		conns: make(map[string]map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API authenticates before the upgrade; cross-origin
			// browser clients are expected.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: l,
	}
}

// HandleConnection upgrades the request and registers the connection for
// the user. It blocks reading the connection until the client goes away, so
// call it from an HTTP handler.
func (h *WebSocketHub) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("user_id", userID),
			zap.Error(err))

		return
	}

	h.register(userID, conn)
	h.logger.Info("websocket client connected", zap.String("user_id", userID))

	defer func() {
		h.unregister(userID, conn)
		conn.Close()
		h.logger.Info("websocket client disconnected", zap.String("user_id", userID))
	}()

	// Drain client frames so pings and close messages are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Notify sends the notification to every connection of the addressed user.
// A user with no connections is not an error; dead connections are dropped.
func (h *WebSocketHub) Notify(_ context.Context, n Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[n.UserID] {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))

		if err := conn.WriteJSON(n); err != nil {
			h.logger.Warn("dropping dead websocket connection",
				zap.String("user_id", n.UserID),
				zap.Error(err))
			conn.Close()
			delete(h.conns[n.UserID], conn)
		}
	}

	return nil
}

// ConnectionCount returns the number of open connections for the user.
func (h *WebSocketHub) ConnectionCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.conns[userID])
}

func (h *WebSocketHub) register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]bool)
	}

	h.conns[userID][conn] = true
}

func (h *WebSocketHub) unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns[userID], conn)

	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}
