// internal/realtime/hub.go
package realtime

import (
	"context"
	"sync"
	"time"

	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
)

// wsConn is the write surface of one live connection. gorilla's *websocket.Conn
// satisfies it; tests substitute fakes.
type wsConn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one registered client connection.
type Session struct {
	ID       string
	UserID   string
	Observer bool

	writeTimeout time.Duration

	mu   sync.Mutex // gorilla allows one concurrent writer
	conn wsConn
}

func NewSession(id, userID string, observer bool, conn wsConn, writeTimeout time.Duration) *Session {
	return &Session{ID: id, UserID: userID, Observer: observer, conn: conn, writeTimeout: writeTimeout}
}

// write arms a deadline before every write so a peer that stopped reading
// surfaces as a write error instead of blocking the caller.
func (s *Session) write(msg ServerMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteJSON(msg)
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.Close()
}

// ReadMarker forwards mark_read control messages to the delivery tracker.
type ReadMarker interface {
	MarkRead(ctx context.Context, notificationID string) error
}

// PreferenceForwarder hands preference_update control messages to the
// preference store. The hub does not interpret the payload.
type PreferenceForwarder interface {
	Forward(ctx context.Context, userID string, update map[string]interface{}) error
}

// Hub is the realtime session registry: userID -> session for regular users,
// sessionID -> session for observers. Both maps support concurrent
// insert/remove/lookup/iterate; broadcast tolerates concurrent removal.
type Hub struct {
	users     sync.Map // userID -> *Session
	observers sync.Map // sessionID -> *Session

	marker ReadMarker
	prefs  PreferenceForwarder
	log    logger.Logger
}

func NewHub(marker ReadMarker, prefs PreferenceForwarder, log logger.Logger) *Hub {
	return &Hub{
		marker: marker,
		prefs:  prefs,
		log:    log.WithFields(map[string]interface{}{"component": "realtime-hub"}),
	}
}

// Register adds a session to the registry. A newer connection for the same
// user replaces and closes the older one.
func (h *Hub) Register(s *Session) {
	if s.Observer {
		h.observers.Store(s.ID, s)
		metrics.RealtimeConnections.WithLabelValues("observer").Inc()
		return
	}
	if prev, loaded := h.users.Swap(s.UserID, s); loaded {
		prev.(*Session).close()
	} else {
		metrics.RealtimeConnections.WithLabelValues("user").Inc()
	}
}

// Unregister removes a session. Safe to call for sessions already evicted.
func (h *Hub) Unregister(s *Session) {
	if s.Observer {
		if _, loaded := h.observers.LoadAndDelete(s.ID); loaded {
			metrics.RealtimeConnections.WithLabelValues("observer").Dec()
		}
		return
	}
	// only remove the mapping if it still points at this session
	if cur, ok := h.users.Load(s.UserID); ok && cur.(*Session) == s {
		if _, loaded := h.users.LoadAndDelete(s.UserID); loaded {
			metrics.RealtimeConnections.WithLabelValues("user").Dec()
		}
	}
}

// IsConnected reports whether the user has a live session.
func (h *Hub) IsConnected(userID string) bool {
	_, ok := h.users.Load(userID)
	return ok
}

// SendToUser delivers a message to the user's session. Returns false when the
// user is not connected or the write fails; a broken connection is evicted
// as a side effect.
func (h *Hub) SendToUser(userID string, msg ServerMessage) bool {
	v, ok := h.users.Load(userID)
	if !ok {
		return false
	}
	s := v.(*Session)
	if err := s.write(msg); err != nil {
		h.log.Warn("realtime write failed, evicting", map[string]interface{}{
			"userId": userID, "error": err.Error(),
		})
		h.Unregister(s)
		s.close()
		return false
	}
	return true
}

// BroadcastToObservers sends a message to every observer session,
// best-effort. Erroring connections are evicted; the count of successful
// sends is returned.
func (h *Hub) BroadcastToObservers(msg ServerMessage) int {
	sent := 0
	h.observers.Range(func(_, v interface{}) bool {
		s := v.(*Session)
		if err := s.write(msg); err != nil {
			h.log.Warn("observer write failed, evicting", map[string]interface{}{
				"sessionId": s.ID, "error": err.Error(),
			})
			h.Unregister(s)
			s.close()
			return true
		}
		sent++
		return true
	})
	return sent
}

// handleControl dispatches one inbound control message.
func (h *Hub) handleControl(ctx context.Context, s *Session, msg ClientMessage) {
	switch msg.Type {
	case TypePing:
		_ = s.write(NewServerMessage(TypePong, nil))
	case TypeMarkRead:
		if msg.NotificationID == "" {
			return
		}
		if err := h.marker.MarkRead(ctx, msg.NotificationID); err != nil {
			h.log.Warn("mark_read failed", map[string]interface{}{
				"notificationId": msg.NotificationID, "error": err.Error(),
			})
		}
	case TypePreferenceUpdate:
		if err := h.prefs.Forward(ctx, s.UserID, msg.Update); err != nil {
			h.log.Warn("preference_update forward failed", map[string]interface{}{
				"userId": s.UserID, "error": err.Error(),
			})
		}
	default:
		h.log.Debug("unknown control message", map[string]interface{}{"type": msg.Type})
	}
}

// Shutdown closes every registered connection.
func (h *Hub) Shutdown() {
	h.users.Range(func(_, v interface{}) bool {
		v.(*Session).close()
		return true
	})
	h.observers.Range(func(_, v interface{}) bool {
		v.(*Session).close()
		return true
	})
}
