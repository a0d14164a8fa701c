package book

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	// priceEpsilon bounds float comparison; a quantity at or below it is
	// treated the same as an explicit Remove.
	priceEpsilon = 1e-12

	defaultBasePrice = 100.0
	tickSize         = 0.5
)

// -----------------------------------------------------------------------------
// Book
// -----------------------------------------------------------------------------

// Book holds bid/ask price levels for one instrument plus a monotonically
// increasing sequence counter. It performs no I/O. A single feed loop owns
// and mutates it; Snapshot copies may be taken concurrently.
type Book struct {
	instrument string

	mu   sync.Mutex
	bids []models.MPriceLevel
	asks []models.MPriceLevel

	// accessed with atomics: readers may inspect the counter while the
	// owning loop is mid-mutation
	sequence int64
}

// -----------------------------------------------------------------------------

// New creates an empty book for the given instrument.
func New(instrument string) *Book {
	return &Book{instrument: models.NormalizeInstrument(instrument)}
}

// -----------------------------------------------------------------------------

// CreateInitial seeds `depth` synthetic levels per side around a base price
// derived from a hash of the instrument id. Used only by the simulated feed.
func CreateInitial(instrument string, depth int) *Book {
	b := New(instrument)

	h := fnv.New32a()
	h.Write([]byte(b.instrument))
	base := defaultBasePrice + float64(h.Sum32()%100)

	for i := 0; i < depth; i++ {
		b.bids = append(b.bids, models.MPriceLevel{
			Price:    base - float64(i)*tickSize,
			Quantity: 10 + float64(i),
			Level:    int32(i),
		})
		b.asks = append(b.asks, models.MPriceLevel{
			Price:    base + float64(i+1)*tickSize,
			Quantity: 10 + float64(i),
			Level:    int32(i),
		})
	}
	return b
}

// -----------------------------------------------------------------------------

// Instrument returns the normalized instrument id.
func (b *Book) Instrument() string {
	return b.instrument
}

// LastSequence returns the current sequence counter.
func (b *Book) LastSequence() int64 {
	return atomic.LoadInt64(&b.sequence)
}

// -----------------------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------------------

// Snapshot returns an immutable copy of the current state without advancing
// the sequence counter. Safe to call while the owning loop keeps mutating.
func (b *Book) Snapshot() *models.MOrderBookSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked(atomic.LoadInt64(&b.sequence))
}

// SnapshotMessage stamps a freshly incremented sequence number and returns
// the full book state. This is the feed emission path.
func (b *Book) SnapshotMessage() *models.MOrderBookSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked(atomic.AddInt64(&b.sequence, 1))
}

func (b *Book) snapshotLocked(seq int64) *models.MOrderBookSnapshot {
	snap := &models.MOrderBookSnapshot{
		InstrumentID: b.instrument,
		Sequence:     seq,
		Bids:         make([]models.MPriceLevel, len(b.bids)),
		Asks:         make([]models.MPriceLevel, len(b.asks)),
	}
	copy(snap.Bids, b.bids)
	copy(snap.Asks, b.asks)
	return snap
}

// -----------------------------------------------------------------------------

// View returns the read-only shape served to rendering consumers.
func (b *Book) View() models.MOrderBookView {
	snap := b.Snapshot()
	return models.MOrderBookView{
		InstrumentID: snap.InstrumentID,
		LastSequence: snap.Sequence,
		Bids:         snap.Bids,
		Asks:         snap.Asks,
	}
}

// -----------------------------------------------------------------------------
// Apply Operations
// -----------------------------------------------------------------------------

// ApplySnapshot replaces all levels and the sequence counter wholesale.
func (b *Book) ApplySnapshot(snap *models.MOrderBookSnapshot) {
	if snap == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	atomic.StoreInt64(&b.sequence, snap.Sequence)
	b.bids = append(b.bids[:0], snap.Bids...)
	b.asks = append(b.asks[:0], snap.Asks...)
	b.sortSidesLocked()
}

// -----------------------------------------------------------------------------

// ApplyUpdate applies a batch of level changes. A Remove (or a quantity at or
// below epsilon) deletes the price from whichever side holds it; an existing
// price has its quantity mutated in place; a brand-new price is assigned a
// side by comparing against the best bid/ask midpoint. This inference is a
// fallback only: feeds are expected to tag changes consistently.
func (b *Book) ApplyUpdate(upd *models.MOrderBookUpdate) {
	if upd == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	atomic.StoreInt64(&b.sequence, upd.Sequence)

	for _, ch := range upd.Changes {
		price := ch.Level.Price
		qty := ch.Level.Quantity

		if ch.Type == models.ChangeRemove || math.Abs(qty) <= priceEpsilon {
			b.bids = removePrice(b.bids, price)
			b.asks = removePrice(b.asks, price)
			continue
		}

		if idx := findPrice(b.bids, price); idx >= 0 {
			b.bids[idx].Quantity = qty
			continue
		}
		if idx := findPrice(b.asks, price); idx >= 0 {
			b.asks[idx].Quantity = qty
			continue
		}

		// New price level outside of a full snapshot: infer the side
		var mid float64
		switch {
		case len(b.bids) > 0 && len(b.asks) > 0:
			mid = (b.bids[0].Price + b.asks[0].Price) / 2.0
		case len(b.bids) > 0:
			mid = b.bids[0].Price
		case len(b.asks) > 0:
			mid = b.asks[0].Price
		}

		level := models.MPriceLevel{Price: price, Quantity: qty, Level: ch.Level.Level}
		if price <= mid {
			b.bids = append(b.bids, level)
		} else {
			b.asks = append(b.asks, level)
		}
	}

	b.sortSidesLocked()
}

// -----------------------------------------------------------------------------
// Simulation
// -----------------------------------------------------------------------------

// RandomUpdate mutates the book once and returns the corresponding update
// event stamped with a fresh sequence number:
//   ~40% insert a new tail level on a random side (a mutate roll against an
//        empty side degrades to this, so a drained side can repopulate),
//   ~40% mutate a random level's quantity (floored at zero, which deletes),
//   ~20% remove a random level (nil when the chosen side is empty).
func (b *Book) RandomUpdate(rng *rand.Rand) *models.MOrderBookUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.randomUpdateLocked(rng.Float64(), rng.Float64() > 0.5, rng)
}

func (b *Book) randomUpdateLocked(roll float64, isBid bool, rng *rand.Rand) *models.MOrderBookUpdate {
	side := &b.asks
	if isBid {
		side = &b.bids
	}

	switch {
	case roll < 0.4 || (roll < 0.8 && len(*side) == 0):
		level := b.insertTailLocked(isBid, rng)
		return b.updateEventLocked(models.ChangeAdd, level)

	case roll < 0.8:
		idx := rng.Intn(len(*side))
		p := (*side)[idx]
		newQty := round2(math.Max(0, p.Quantity+(rng.Float64()-0.5)*5))
		if newQty <= priceEpsilon {
			*side = append((*side)[:idx], (*side)[idx+1:]...)
			newQty = 0
		} else {
			(*side)[idx].Quantity = newQty
		}
		return b.updateEventLocked(models.ChangeUpdate,
			models.MPriceLevel{Price: p.Price, Quantity: newQty, Level: p.Level})

	default:
		if len(*side) == 0 {
			return nil
		}
		idx := rng.Intn(len(*side))
		p := (*side)[idx]
		*side = append((*side)[:idx], (*side)[idx+1:]...)
		return b.updateEventLocked(models.ChangeRemove, p)
	}
}

// insertTailLocked appends a level past the current worst price on the chosen
// side. Deriving from the tail keeps prices unique within the side.
func (b *Book) insertTailLocked(isBid bool, rng *rand.Rand) models.MPriceLevel {
	side := &b.asks
	if isBid {
		side = &b.bids
	}

	var price float64
	switch {
	case len(*side) > 0:
		price = (*side)[len(*side)-1].Price
	case isBid && len(b.asks) > 0:
		price = b.asks[0].Price
	case !isBid && len(b.bids) > 0:
		price = b.bids[0].Price
	default:
		price = defaultBasePrice
	}
	if isBid {
		price -= tickSize
	} else {
		price += tickSize
	}

	level := models.MPriceLevel{
		Price:    price,
		Quantity: round2(1 + rng.Float64()*20),
		Level:    int32(len(*side)),
	}
	*side = append(*side, level)
	return level
}

func (b *Book) updateEventLocked(t models.MChangeType, level models.MPriceLevel) *models.MOrderBookUpdate {
	return &models.MOrderBookUpdate{
		InstrumentID: b.instrument,
		Sequence:     atomic.AddInt64(&b.sequence, 1),
		Changes:      []models.MPriceLevelChange{{Level: level, Type: t}},
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (b *Book) sortSidesLocked() {
	sort.Slice(b.bids, func(i, j int) bool { return b.bids[i].Price > b.bids[j].Price })
	sort.Slice(b.asks, func(i, j int) bool { return b.asks[i].Price < b.asks[j].Price })
}

func findPrice(levels []models.MPriceLevel, price float64) int {
	for i := range levels {
		if math.Abs(levels[i].Price-price) < priceEpsilon {
			return i
		}
	}
	return -1
}

func removePrice(levels []models.MPriceLevel, price float64) []models.MPriceLevel {
	out := levels[:0]
	for _, l := range levels {
		if math.Abs(l.Price-price) >= priceEpsilon {
			out = append(out, l)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
