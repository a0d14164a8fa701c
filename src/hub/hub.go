package hub

import (
	"sync"

	"market-depth/src/helpers"
	"market-depth/src/logger"
	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// Hub
// -----------------------------------------------------------------------------

// Hub is the fan-out core. It tracks connected clients, their per-instrument
// subscriptions, and the latest received snapshot per instrument (a checkpoint
// for late subscribers, not a live-merged mirror). The hub is the only writer
// of subscription sets; delivery is always a non-blocking push so one slow
// client can never stall the feed.
type Hub struct {
	Logger *logger.Logger

	mu        sync.RWMutex
	clients   map[string]*clientEntry
	snapshots map[string]*models.MOrderBookSnapshot
}

type clientEntry struct {
	queue *Queue
	subs  map[string]struct{}
}

// -----------------------------------------------------------------------------

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		Logger:    log,
		clients:   make(map[string]*clientEntry),
		snapshots: make(map[string]*models.MOrderBookSnapshot),
	}
}

// -----------------------------------------------------------------------------
// Client Registry
// -----------------------------------------------------------------------------

// RegisterClient creates an empty subscription set for the client.
func (h *Hub) RegisterClient(clientID string, queue *Queue) {
	if clientID == "" || queue == nil {
		return
	}

	h.mu.Lock()
	h.clients[clientID] = &clientEntry{queue: queue, subs: make(map[string]struct{})}
	h.mu.Unlock()

	h.Logger.Debug("Registered client %s", clientID)
}

// -----------------------------------------------------------------------------

// UnregisterClient removes the client and closes its queue. Idempotent.
func (h *Hub) UnregisterClient(clientID string) {
	h.mu.Lock()
	entry, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
	}
	h.mu.Unlock()

	if ok {
		entry.queue.Close()
		h.Logger.Debug("Unregistered client %s", clientID)
	}
}

// -----------------------------------------------------------------------------

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

// Subscribe adds the instrument to the client's set. If a checkpoint snapshot
// exists it is immediately enqueued so the client has a base state before the
// next broadcast reaches it.
func (h *Hub) Subscribe(clientID, instrument string) {
	key := models.NormalizeInstrument(instrument)
	if clientID == "" || key == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.clients[clientID]
	if !ok {
		return
	}
	entry.subs[key] = struct{}{}
	h.Logger.Debug("Client %s subscribed to %s", clientID, key)

	if latest, ok := h.snapshots[key]; ok {
		if entry.queue.Push(models.NewSnapshotMessage(latest)) {
			h.Logger.Info("Sent latest snapshot to client %s for %s (seq=%d)",
				clientID, key, latest.Sequence)
		} else {
			h.Logger.Warning("Failed to enqueue snapshot for client %s (%s)", clientID, key)
		}
	} else {
		h.Logger.Debug("No stored snapshot yet for %s when client %s subscribed", key, clientID)
	}
}

// -----------------------------------------------------------------------------

// Unsubscribe removes the instrument from the client's set and enqueues a
// terminal empty-snapshot notification for it.
func (h *Hub) Unsubscribe(clientID, instrument string) {
	key := models.NormalizeInstrument(instrument)
	if clientID == "" || key == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.clients[clientID]
	if !ok {
		return
	}
	delete(entry.subs, key)
	entry.queue.Push(models.NewEmptySnapshotMessage(key))
	h.Logger.Debug("Client %s unsubscribed from %s", clientID, key)
}

// -----------------------------------------------------------------------------
// Feed Observer Implementation
// -----------------------------------------------------------------------------

// OnFeedSnapshot overwrites the checkpoint snapshot for the instrument, then
// broadcasts it to every subscribed client.
func (h *Hub) OnFeedSnapshot(snap *models.MOrderBookSnapshot) {
	if snap == nil {
		return
	}
	key := models.NormalizeInstrument(snap.InstrumentID)
	if key == "" {
		return
	}

	h.mu.Lock()
	h.snapshots[key] = snap
	h.mu.Unlock()

	h.Logger.Debug("[SNAPSHOT] %s seq=%d", key, snap.Sequence)
	h.broadcast(key, models.NewSnapshotMessage(snap))
}

// -----------------------------------------------------------------------------

// OnFeedUpdate broadcasts to subscribed clients only. The checkpoint snapshot
// is deliberately left untouched: late subscribers get the last full snapshot,
// not a live-merged view.
func (h *Hub) OnFeedUpdate(upd *models.MOrderBookUpdate) {
	if upd == nil {
		return
	}
	key := models.NormalizeInstrument(upd.InstrumentID)
	if key == "" {
		return
	}

	h.broadcast(key, models.NewUpdateMessage(upd))
}

// -----------------------------------------------------------------------------

// broadcast delivers one message to all clients subscribed to the instrument.
// A saturated client loses the message for itself only.
func (h *Hub) broadcast(instrument string, msg *models.MMarketDataMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, entry := range h.clients {
		if _, subscribed := entry.subs[instrument]; !subscribed {
			continue
		}
		if !entry.queue.Push(msg) {
			err := helpers.NewDeliveryError("queue full, message dropped", nil)
			h.Logger.Warning("Client %s (%s): %v", id, instrument, err)
		}
	}
}
