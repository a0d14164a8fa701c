package main

import "testing"

func TestSeqGate(t *testing.T) {
	t.Run("Single Resync Per Gap", func(t *testing.T) {
		g := newSeqGate(true)
		g.onSnapshot("BTCUSDT", 10)

		if got := g.onUpdate("BTCUSDT", 11); got != applyUpdate {
			t.Fatalf("contiguous update should apply, got %v", got)
		}

		// a gap requests exactly one resync
		if got := g.onUpdate("BTCUSDT", 15); got != resyncInstrument {
			t.Fatalf("gapped update should trigger a resync, got %v", got)
		}

		// every further gapped update is swallowed while the checkpoint
		// is in flight
		for seq := int64(16); seq < 30; seq++ {
			if got := g.onUpdate("BTCUSDT", seq); got != skipUpdate {
				t.Fatalf("update %d during resync should be skipped, got %v", seq, got)
			}
		}

		// the fresh checkpoint clears the pending resync
		g.onSnapshot("BTCUSDT", 40)
		if got := g.onUpdate("BTCUSDT", 41); got != applyUpdate {
			t.Fatalf("update after checkpoint should apply, got %v", got)
		}
	})

	t.Run("Stale And Duplicate Skipped", func(t *testing.T) {
		g := newSeqGate(true)
		g.onSnapshot("BTCUSDT", 10)

		if got := g.onUpdate("BTCUSDT", 10); got != skipUpdate {
			t.Errorf("duplicate sequence should be skipped, got %v", got)
		}
		if got := g.onUpdate("BTCUSDT", 5); got != skipUpdate {
			t.Errorf("stale sequence should be skipped, got %v", got)
		}
	})

	t.Run("Lenient Mode Applies Gaps", func(t *testing.T) {
		g := newSeqGate(false)
		g.onSnapshot("BTCUSDT", 10)

		// exchange diff streams jump ids; without strict mode a jump is
		// just the next update
		if got := g.onUpdate("BTCUSDT", 50); got != applyUpdate {
			t.Errorf("gap in lenient mode should apply, got %v", got)
		}
	})

	t.Run("First Update Without Baseline", func(t *testing.T) {
		g := newSeqGate(true)

		// no snapshot seen yet: nothing to gap against
		if got := g.onUpdate("ETHUSDT", 7); got != applyUpdate {
			t.Errorf("first observed update should apply, got %v", got)
		}
	})

	t.Run("Instruments Are Independent", func(t *testing.T) {
		g := newSeqGate(true)
		g.onSnapshot("BTCUSDT", 10)
		g.onSnapshot("ETHUSDT", 10)

		if got := g.onUpdate("BTCUSDT", 20); got != resyncInstrument {
			t.Fatalf("expected resync on BTCUSDT, got %v", got)
		}
		if got := g.onUpdate("ETHUSDT", 11); got != applyUpdate {
			t.Errorf("ETHUSDT must be unaffected by BTCUSDT's resync, got %v", got)
		}
	})
}
