package book

import (
	"math"
	"math/rand"
	"testing"

	"market-depth/src/models"
)

// checkInvariants asserts strict bid descending / ask ascending ordering,
// unique prices within each side, and no zero-quantity levels.
func checkInvariants(t *testing.T, snap *models.MOrderBookSnapshot) {
	t.Helper()

	for i := 1; i < len(snap.Bids); i++ {
		if snap.Bids[i].Price >= snap.Bids[i-1].Price {
			t.Fatalf("bids not strictly descending at %d: %.4f >= %.4f",
				i, snap.Bids[i].Price, snap.Bids[i-1].Price)
		}
	}
	for i := 1; i < len(snap.Asks); i++ {
		if snap.Asks[i].Price <= snap.Asks[i-1].Price {
			t.Fatalf("asks not strictly ascending at %d: %.4f <= %.4f",
				i, snap.Asks[i].Price, snap.Asks[i-1].Price)
		}
	}
	for _, l := range append(append([]models.MPriceLevel{}, snap.Bids...), snap.Asks...) {
		if l.Quantity <= 0 {
			t.Fatalf("zero-quantity level survived at price %.4f", l.Price)
		}
	}
}

func TestCreateInitial(t *testing.T) {
	t.Run("Deterministic Base Price", func(t *testing.T) {
		a := CreateInitial("BTCUSDT", 10).Snapshot()
		b := CreateInitial("btcusdt ", 10).Snapshot()

		if a.InstrumentID != "BTCUSDT" || b.InstrumentID != "BTCUSDT" {
			t.Errorf("expected normalized ids, got %q and %q", a.InstrumentID, b.InstrumentID)
		}
		if len(a.Bids) != 10 || len(a.Asks) != 10 {
			t.Fatalf("expected 10 levels per side, got %d/%d", len(a.Bids), len(a.Asks))
		}
		if a.Bids[0].Price != b.Bids[0].Price {
			t.Errorf("same instrument must seed the same base: %.2f vs %.2f",
				a.Bids[0].Price, b.Bids[0].Price)
		}
		checkInvariants(t, a)
	})

	t.Run("Spread Around Base", func(t *testing.T) {
		snap := CreateInitial("ETHUSDT", 5).Snapshot()
		base := snap.Bids[0].Price

		if snap.Asks[0].Price != base+0.5 {
			t.Errorf("best ask should sit one tick above base: %.2f vs base %.2f",
				snap.Asks[0].Price, base)
		}
		if snap.Bids[4].Price != base-2.0 {
			t.Errorf("worst bid should be base-2.0, got %.2f", snap.Bids[4].Price)
		}
	})
}

func TestApplySnapshotThenRemove(t *testing.T) {
	b := New("BTCUSDT")

	b.ApplySnapshot(&models.MOrderBookSnapshot{
		InstrumentID: "BTCUSDT",
		Sequence:     100,
		Bids:         []models.MPriceLevel{{Price: 100.0, Quantity: 10}},
		Asks:         []models.MPriceLevel{{Price: 101.0, Quantity: 5}},
	})
	if b.LastSequence() != 100 {
		t.Fatalf("expected sequence 100, got %d", b.LastSequence())
	}

	b.ApplyUpdate(&models.MOrderBookUpdate{
		InstrumentID: "BTCUSDT",
		Sequence:     101,
		Changes: []models.MPriceLevelChange{{
			Type:  models.ChangeRemove,
			Level: models.MPriceLevel{Price: 100.0},
		}},
	})

	snap := b.Snapshot()
	if len(snap.Bids) != 0 {
		t.Errorf("expected empty bids after removal, got %v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 101.0 || snap.Asks[0].Quantity != 5 {
		t.Errorf("asks should be untouched, got %v", snap.Asks)
	}
	if snap.Sequence != 101 {
		t.Errorf("expected sequence 101, got %d", snap.Sequence)
	}
}

func TestApplyUpdate(t *testing.T) {
	seed := func() *Book {
		b := New("BTCUSDT")
		b.ApplySnapshot(&models.MOrderBookSnapshot{
			InstrumentID: "BTCUSDT",
			Sequence:     1,
			Bids:         []models.MPriceLevel{{Price: 100.0, Quantity: 10}, {Price: 99.5, Quantity: 3}},
			Asks:         []models.MPriceLevel{{Price: 100.5, Quantity: 7}},
		})
		return b
	}

	t.Run("In-Place Quantity Mutation", func(t *testing.T) {
		b := seed()
		b.ApplyUpdate(&models.MOrderBookUpdate{Sequence: 2, Changes: []models.MPriceLevelChange{{
			Type:  models.ChangeUpdate,
			Level: models.MPriceLevel{Price: 100.0, Quantity: 42},
		}}})

		snap := b.Snapshot()
		if snap.Bids[0].Quantity != 42 {
			t.Errorf("expected quantity 42 at best bid, got %.2f", snap.Bids[0].Quantity)
		}
		if len(snap.Bids) != 2 {
			t.Errorf("mutation must not add levels, got %d bids", len(snap.Bids))
		}
	})

	t.Run("Epsilon Quantity Acts As Remove", func(t *testing.T) {
		b := seed()
		b.ApplyUpdate(&models.MOrderBookUpdate{Sequence: 2, Changes: []models.MPriceLevelChange{{
			Type:  models.ChangeUpdate,
			Level: models.MPriceLevel{Price: 99.5, Quantity: 0},
		}}})

		snap := b.Snapshot()
		if len(snap.Bids) != 1 {
			t.Errorf("zero quantity should delete the level, got %v", snap.Bids)
		}
	})

	t.Run("Midpoint Side Inference", func(t *testing.T) {
		b := seed()
		// mid is (100.0+100.5)/2 = 100.25
		b.ApplyUpdate(&models.MOrderBookUpdate{Sequence: 2, Changes: []models.MPriceLevelChange{
			{Type: models.ChangeAdd, Level: models.MPriceLevel{Price: 100.1, Quantity: 1}},
			{Type: models.ChangeAdd, Level: models.MPriceLevel{Price: 100.4, Quantity: 1}},
		}})

		snap := b.Snapshot()
		if snap.Bids[0].Price != 100.1 {
			t.Errorf("price below midpoint must land on bids, best bid %.2f", snap.Bids[0].Price)
		}
		if snap.Asks[0].Price != 100.4 {
			t.Errorf("price above midpoint must land on asks, best ask %.2f", snap.Asks[0].Price)
		}
		checkInvariants(t, snap)
	})

	t.Run("Remove Unknown Price Is Noop", func(t *testing.T) {
		b := seed()
		b.ApplyUpdate(&models.MOrderBookUpdate{Sequence: 2, Changes: []models.MPriceLevelChange{{
			Type:  models.ChangeRemove,
			Level: models.MPriceLevel{Price: 55.5},
		}}})

		snap := b.Snapshot()
		if len(snap.Bids) != 2 || len(snap.Asks) != 1 {
			t.Errorf("removing an absent price must not change the book: %d/%d",
				len(snap.Bids), len(snap.Asks))
		}
	})
}

func TestRandomUpdate(t *testing.T) {
	t.Run("Invariants Hold Under Load", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		b := CreateInitial("BTCUSDT", 10)

		for i := 0; i < 5000; i++ {
			b.RandomUpdate(rng)
			checkInvariants(t, b.Snapshot())
		}
	})

	t.Run("Sequence Strictly Increases", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		b := CreateInitial("ETHUSDT", 5)

		last := b.LastSequence()
		for i := 0; i < 200; i++ {
			upd := b.RandomUpdate(rng)
			if upd == nil {
				continue
			}
			if upd.Sequence <= last {
				t.Fatalf("sequence went backwards: %d after %d", upd.Sequence, last)
			}
			last = upd.Sequence
		}
	})

	t.Run("Event Matches Book State", func(t *testing.T) {
		rng := rand.New(rand.NewSource(3))
		b := CreateInitial("SOLUSDT", 4)

		for i := 0; i < 500; i++ {
			upd := b.RandomUpdate(rng)
			if upd == nil {
				continue
			}
			ch := upd.Changes[0]
			snap := b.Snapshot()
			idx := findPrice(append(append([]models.MPriceLevel{}, snap.Bids...), snap.Asks...), ch.Level.Price)

			switch {
			case ch.Type == models.ChangeRemove && idx >= 0:
				t.Fatalf("removed price %.2f still present", ch.Level.Price)
			case ch.Type == models.ChangeAdd && idx < 0:
				t.Fatalf("added price %.2f not present", ch.Level.Price)
			case ch.Type == models.ChangeUpdate && ch.Level.Quantity > 0 && idx < 0:
				t.Fatalf("updated price %.2f not present", ch.Level.Price)
			}
		}
	})

	t.Run("Empty Side Outcomes", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))

		// remove roll against an empty side yields no event and no
		// sequence bump
		b := New("BTCUSDT")
		if upd := b.randomUpdateLocked(0.9, true, rng); upd != nil {
			t.Errorf("remove on an empty side must return nil, got %+v", upd)
		}
		if b.LastSequence() != 0 {
			t.Errorf("nil event must not advance the sequence, got %d", b.LastSequence())
		}

		// mutate roll against an empty side degrades to an add
		if upd := b.randomUpdateLocked(0.5, true, rng); upd == nil || upd.Changes[0].Type != models.ChangeAdd {
			t.Errorf("mutate on an empty side must degrade to an add, got %+v", upd)
		}

		// add roll works on an empty book
		if upd := b.randomUpdateLocked(0.1, false, rng); upd == nil || upd.Changes[0].Type != models.ChangeAdd {
			t.Errorf("add on an empty side must insert, got %+v", upd)
		}
	})

	t.Run("Deterministic For Seed", func(t *testing.T) {
		run := func() *models.MOrderBookSnapshot {
			rng := rand.New(rand.NewSource(99))
			b := CreateInitial("BTCUSDT", 6)
			for i := 0; i < 300; i++ {
				b.RandomUpdate(rng)
			}
			return b.Snapshot()
		}

		a, b := run(), run()
		if a.Sequence != b.Sequence || len(a.Bids) != len(b.Bids) || len(a.Asks) != len(b.Asks) {
			t.Fatalf("same seed diverged: seq %d/%d bids %d/%d asks %d/%d",
				a.Sequence, b.Sequence, len(a.Bids), len(b.Bids), len(a.Asks), len(b.Asks))
		}
		for i := range a.Bids {
			if math.Abs(a.Bids[i].Price-b.Bids[i].Price) > priceEpsilon {
				t.Fatalf("bid %d diverged: %.4f vs %.4f", i, a.Bids[i].Price, b.Bids[i].Price)
			}
		}
	})
}

func TestSnapshotSemantics(t *testing.T) {
	b := CreateInitial("BTCUSDT", 3)

	before := b.LastSequence()
	b.Snapshot()
	if b.LastSequence() != before {
		t.Error("Snapshot must not advance the sequence")
	}

	msg := b.SnapshotMessage()
	if msg.Sequence != before+1 {
		t.Errorf("SnapshotMessage must stamp a fresh sequence: got %d, want %d",
			msg.Sequence, before+1)
	}

	// mutating the copy must not leak into the book
	msg.Bids[0].Quantity = -1
	if b.Snapshot().Bids[0].Quantity == -1 {
		t.Error("snapshot copies must be detached from book state")
	}
}
