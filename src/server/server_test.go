package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"market-depth/src/book"
	"market-depth/src/hub"
	"market-depth/src/logger"
	"market-depth/src/models"
)

func newTestServer(t *testing.T) (*Server, *hub.Hub, *book.Tracker) {
	t.Helper()

	log := logger.NewLogger("ERROR", "ServerTest")
	h := hub.NewHub(log)
	tracker := book.NewTracker(log)

	cfg := &models.MConfig{
		Name:     "test",
		Host:     "localhost",
		Port:     8080,
		LogLevel: "ERROR",
	}
	cfg.Hub.ClientQueueSize = 16

	return NewServer(cfg, log, h, tracker), h, tracker
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestBookEndpoints(t *testing.T) {
	s, _, tracker := newTestServer(t)

	tracker.OnFeedSnapshot(&models.MOrderBookSnapshot{
		InstrumentID: "BTCUSDT",
		Sequence:     9,
		Bids:         []models.MPriceLevel{{Price: 100, Quantity: 2}},
		Asks:         []models.MPriceLevel{{Price: 101, Quantity: 1}},
	})

	t.Run("List", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/books", nil))

		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "BTCUSDT") {
			t.Errorf("unexpected response %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("Known Instrument", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/books/btcusdt", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var view models.MOrderBookView
		if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if view.LastSequence != 9 || len(view.Bids) != 1 {
			t.Errorf("unexpected view: %+v", view)
		}
	})

	t.Run("Unknown Instrument", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/books/DOGEUSDT", nil))

		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

// TestStreamingSession exercises the full websocket path: connect, subscribe,
// receive the checkpoint snapshot and a broadcast update, unsubscribe, receive
// the terminal empty snapshot.
func TestStreamingSession(t *testing.T) {
	s, h, _ := newTestServer(t)

	h.OnFeedSnapshot(&models.MOrderBookSnapshot{
		InstrumentID: "BTCUSDT",
		Sequence:     50,
		Bids:         []models.MPriceLevel{{Price: 100, Quantity: 1}},
	})

	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	readMessage := func() models.MMarketDataMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg models.MMarketDataMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		return msg
	}

	if err := conn.WriteJSON(models.MSubscriptionRequest{InstrumentID: "BTCUSDT"}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	msg := readMessage()
	if msg.Type != models.MessageTypeSnapshot || msg.Snapshot.Sequence != 50 {
		t.Fatalf("expected checkpoint snapshot seq=50, got %+v", msg)
	}

	// receiving the checkpoint proves the subscription is registered, so a
	// broadcast from here on must reach this session
	h.OnFeedUpdate(&models.MOrderBookUpdate{InstrumentID: "BTCUSDT", Sequence: 51})
	msg = readMessage()
	if msg.Type != models.MessageTypeUpdate || msg.Update.Sequence != 51 {
		t.Fatalf("expected update seq=51, got %+v", msg)
	}

	if err := conn.WriteJSON(models.MSubscriptionRequest{InstrumentID: "BTCUSDT", Unsubscribe: true}); err != nil {
		t.Fatalf("unsubscribe failed: %v", err)
	}
	msg = readMessage()
	if msg.Type != models.MessageTypeEmptySnapshot {
		t.Fatalf("expected empty_snapshot after unsubscribe, got %+v", msg)
	}
}
