package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"market-depth/src/hub"
	"market-depth/src/logger"
	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// Session wraps one connected client: the read pump turns inbound
// subscription requests into hub calls, the write pump drains the client's
// queue onto the wire in enqueue order. When either pump ends the session
// unregisters from the hub exactly once and both pumps terminate.
type Session struct {
	id     string
	hub    *hub.Hub
	conn   *websocket.Conn
	queue  *hub.Queue
	logger *logger.Logger

	teardownOnce sync.Once
}

// -----------------------------------------------------------------------------

// teardown unregisters from the hub (closing the queue, which stops the
// write pump) and closes the socket (which stops the read pump).
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.hub.UnregisterClient(s.id)
		s.conn.Close()
		s.logger.Info("Client %s disconnected", s.id)
	})
}

// -----------------------------------------------------------------------------
// readPump - handles incoming subscription requests.
// Acts as the watchdog for the connection.
// -----------------------------------------------------------------------------

func (s *Session) readPump() {
	defer s.teardown()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Info("Client %s websocket error: %v", s.id, err)
			}
			return
		}

		var req models.MSubscriptionRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.logger.Warning("Client %s sent malformed request, ignoring: %v", s.id, err)
			continue
		}
		if req.InstrumentID == "" {
			continue
		}

		if req.Unsubscribe {
			s.hub.Unsubscribe(s.id, req.InstrumentID)
		} else {
			s.hub.Subscribe(s.id, req.InstrumentID)
		}
	}
}

// -----------------------------------------------------------------------------
// writePump - drains the outbound queue onto the wire.
// -----------------------------------------------------------------------------

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.teardown()
	}()

	for {
		select {
		case message, ok := <-s.queue.C():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the queue
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.conn.WriteJSON(message); err != nil {
				s.logger.Info("Client %s write error: %v", s.id, err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
