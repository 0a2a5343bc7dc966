// internal/realtime/handler.go
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"notification-dispatch/internal/common/auth"
	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to WebSocket sessions after validating the
// handshake credential. Connections lacking an identity or a valid token are
// rejected before registration.
type Handler struct {
	hub       *Hub
	validator *auth.Validator
	cfg       config.RealtimeConfig
	upgrader  websocket.Upgrader
	log       logger.Logger
}

func NewHandler(hub *Hub, validator *auth.Validator, cfg config.RealtimeConfig, log logger.Logger) *Handler {
	return &Handler{
		hub:       hub,
		validator: validator,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.WithFields(map[string]interface{}{"component": "realtime-handler"}),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}

	claims, err := h.validator.Validate(token)
	if err != nil {
		h.log.Debug("handshake rejected", map[string]interface{}{"error": err.Error()})
		http.Error(w, "invalid credential", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}

	session := NewSession(uuid.New().String(), claims.UserID, claims.IsObserver(), conn, h.cfg.WriteTimeout)
	h.hub.Register(session)

	h.log.Info("session registered", map[string]interface{}{
		"userId": claims.UserID, "observer": session.Observer,
	})

	_ = session.write(NewServerMessage(TypeWelcome, map[string]interface{}{
		"userId": claims.UserID,
	}))

	go h.readLoop(conn, session)
}

func (h *Handler) readLoop(conn *websocket.Conn, session *Session) {
	defer func() {
		h.hub.Unregister(session)
		session.close()
	}()

	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("unexpected close", map[string]interface{}{
					"userId": session.UserID, "error": err.Error(),
				})
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.log.Debug("malformed control message", map[string]interface{}{
				"userId": session.UserID, "error": err.Error(),
			})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
		h.hub.handleControl(ctx, session, msg)
		cancel()
	}
}

// bearerToken extracts the credential from the Authorization header or the
// token query parameter (browsers cannot set headers on WebSocket dials).
func bearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
