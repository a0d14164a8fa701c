package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"market-depth/src/book"
	"market-depth/src/logger"
	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// SimulationFeed
// -----------------------------------------------------------------------------

// SimulationFeed is a synthetic producer: it seeds one book per instrument,
// applies one random mutation per instrument per tick, and emits a full
// snapshot whenever wall-clock time crosses a snapshot-interval boundary.
// The boundary check is coarse (seconds modulo interval) and may skip or
// double-fire under scheduling jitter; consumers only rely on sequence
// monotonicity, never on snapshot cadence.
type SimulationFeed struct {
	notifier

	Config models.MFeedConfig
	Logger *logger.Logger

	books map[string]*book.Book
	rng   *rand.Rand

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// -----------------------------------------------------------------------------

// NewSimulationFeed seeds books for every configured instrument. The rng seed
// comes from config so tests and replays are deterministic; seed 0 means
// time-based.
func NewSimulationFeed(cfg models.MFeedConfig, log *logger.Logger) *SimulationFeed {
	cfg = applyDefaults(cfg)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	f := &SimulationFeed{
		Config: cfg,
		Logger: log,
		books:  make(map[string]*book.Book),
		rng:    rand.New(rand.NewSource(seed)),
	}

	for _, ins := range cfg.Instruments {
		f.books[ins] = book.CreateInitial(ins, cfg.InitialDepth)
	}
	return f
}

// -----------------------------------------------------------------------------

func (f *SimulationFeed) Name() string {
	return "simulation"
}

// -----------------------------------------------------------------------------

// Start launches the tick loop in a background task.
func (f *SimulationFeed) Start(ctx context.Context) error {
	ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.loop(ctx)

	f.Logger.Info("Simulation feed started (%d instruments, tick %dms, snapshot every %ds)",
		len(f.books), f.Config.UpdateIntervalMs, f.Config.SnapshotIntervalSec)
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels the loop and waits for it to exit.
func (f *SimulationFeed) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	return nil
}

// -----------------------------------------------------------------------------

func (f *SimulationFeed) loop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(time.Duration(f.Config.UpdateIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.Logger.Info("Simulation feed stopped")
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

// -----------------------------------------------------------------------------

// tick mutates every book once. Instruments are walked in configured order so
// a seeded rng produces a reproducible event timeline.
func (f *SimulationFeed) tick() {
	emitSnapshots := time.Now().UTC().Second()%f.Config.SnapshotIntervalSec == 0

	for _, ins := range f.Config.Instruments {
		b := f.books[ins]

		if upd := b.RandomUpdate(f.rng); upd != nil {
			f.emitUpdate(upd)
		}

		if emitSnapshots {
			f.emitSnapshot(b.SnapshotMessage())
		}
	}
}
