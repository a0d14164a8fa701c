package book

import (
	"sort"
	"sync"

	"market-depth/src/logger"
	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// Tracker
// -----------------------------------------------------------------------------

// Tracker maintains one live book per instrument by consuming feed events.
// It backs the read-only view polled by rendering consumers and the client
// mirror; unlike the hub's checkpoint cache it folds updates in.
type Tracker struct {
	Logger *logger.Logger

	mu    sync.RWMutex
	books map[string]*Book
}

// -----------------------------------------------------------------------------

func NewTracker(log *logger.Logger) *Tracker {
	return &Tracker{
		Logger: log,
		books:  make(map[string]*Book),
	}
}

// -----------------------------------------------------------------------------
// Feed Observer Implementation
// -----------------------------------------------------------------------------

func (t *Tracker) OnFeedSnapshot(snap *models.MOrderBookSnapshot) {
	if snap == nil || snap.InstrumentID == "" {
		return
	}
	t.getOrCreate(snap.InstrumentID).ApplySnapshot(snap)
}

// -----------------------------------------------------------------------------

func (t *Tracker) OnFeedUpdate(upd *models.MOrderBookUpdate) {
	if upd == nil || upd.InstrumentID == "" {
		return
	}
	t.getOrCreate(upd.InstrumentID).ApplyUpdate(upd)
}

// -----------------------------------------------------------------------------
// Read-Only Access
// -----------------------------------------------------------------------------

// View returns the current state for one instrument.
func (t *Tracker) View(instrument string) (models.MOrderBookView, bool) {
	key := models.NormalizeInstrument(instrument)

	t.mu.RLock()
	b, ok := t.books[key]
	t.mu.RUnlock()

	if !ok {
		return models.MOrderBookView{}, false
	}
	return b.View(), true
}

// -----------------------------------------------------------------------------

// Instruments returns the sorted list of tracked instruments.
func (t *Tracker) Instruments() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := make([]string, 0, len(t.books))
	for ins := range t.books {
		list = append(list, ins)
	}
	sort.Strings(list)
	return list
}

// -----------------------------------------------------------------------------

func (t *Tracker) getOrCreate(instrument string) *Book {
	key := models.NormalizeInstrument(instrument)

	t.mu.RLock()
	b, ok := t.books[key]
	t.mu.RUnlock()
	if ok {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok = t.books[key]; ok {
		return b
	}
	b = New(key)
	t.books[key] = b
	if t.Logger != nil {
		t.Logger.Debug("Tracking new instrument %s", key)
	}
	return b
}
