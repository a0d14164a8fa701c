package interfaces

import (
	"context"
	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// IFeedObserver receives the event timeline produced by a feed.
// -----------------------------------------------------------------------------

type IFeedObserver interface {

	// OnFeedSnapshot is called with a complete book state. For any single
	// instrument the sequence numbers seen here are non-decreasing.
	OnFeedSnapshot(snapshot *models.MOrderBookSnapshot)

	// -----------------------------------------------------------------------------

	// OnFeedUpdate is called with a delta causally after a prior snapshot.
	OnFeedUpdate(update *models.MOrderBookUpdate)
}

// -----------------------------------------------------------------------------
// IMarketDataFeed produces the snapshot/update timeline for a set of
// instruments. Exactly one feed runs per process; observers are registered
// before Start and never removed.
// -----------------------------------------------------------------------------

type IMarketDataFeed interface {

	// Name returns the identifier of the feed implementation.
	Name() string

	// -----------------------------------------------------------------------------

	// AddObserver registers an observer. Not safe to call after Start.
	AddObserver(obs IFeedObserver)

	// -----------------------------------------------------------------------------

	// Start begins producing events in a background task.
	// ctx: cancellation stops the feed and all of its internal loops.
	Start(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Stop terminates the feed and waits for its loops to exit.
	Stop() error
}
