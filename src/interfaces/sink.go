package interfaces

import "time"

// -----------------------------------------------------------------------------
// IPersistenceSink stores the raw event stream. Implementations own their
// storage and retry policy; errors must never block or abort ingestion.
// -----------------------------------------------------------------------------

type IPersistenceSink interface {

	// Initialize sets up the storage schema.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSnapshot appends one serialized snapshot event.
	SaveSnapshot(instrument string, sequence int64, payload []byte, receivedAt time.Time) error

	// -----------------------------------------------------------------------------

	// SaveUpdate appends one serialized update event.
	SaveUpdate(instrument string, sequence int64, payload []byte, receivedAt time.Time) error

	// -----------------------------------------------------------------------------

	// Close the underlying storage.
	Close() error
}
