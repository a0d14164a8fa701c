package models

import "strings"

// -----------------------------------------------------------------------------
// Order Book Wire Types
// -----------------------------------------------------------------------------

// MChangeType enumerates the kinds of price level changes.
type MChangeType int32

const (
	ChangeAdd MChangeType = iota
	ChangeUpdate
	ChangeRemove
)

func (t MChangeType) String() string {
	switch t {
	case ChangeAdd:
		return "ADD"
	case ChangeUpdate:
		return "UPDATE"
	case ChangeRemove:
		return "REMOVE"
	}
	return "UNKNOWN"
}

// -----------------------------------------------------------------------------

// MPriceLevel is one bid or ask level. Identity of a level is its price;
// Level is a display ordinal only.
type MPriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Level    int32   `json:"level"`
}

// MOrderBookSnapshot is a complete, self-consistent book state at Sequence.
// Bids are price-descending, asks price-ascending, prices unique per side.
type MOrderBookSnapshot struct {
	InstrumentID string        `json:"instrument_id"`
	Sequence     int64         `json:"sequence"`
	Bids         []MPriceLevel `json:"bids"`
	Asks         []MPriceLevel `json:"asks"`
}

// MPriceLevelChange is one delta entry inside an update.
type MPriceLevelChange struct {
	Level MPriceLevel `json:"level"`
	Type  MChangeType `json:"type"`
}

// MOrderBookUpdate is a delta to apply after a causally earlier state.
type MOrderBookUpdate struct {
	InstrumentID string              `json:"instrument_id"`
	Sequence     int64               `json:"sequence"`
	Changes      []MPriceLevelChange `json:"changes"`
}

// -----------------------------------------------------------------------------

// MOrderBookView is the read-only shape polled by rendering consumers.
type MOrderBookView struct {
	InstrumentID string        `json:"instrument_id"`
	LastSequence int64         `json:"last_sequence"`
	Bids         []MPriceLevel `json:"bids"`
	Asks         []MPriceLevel `json:"asks"`
}

// -----------------------------------------------------------------------------

// NormalizeInstrument canonicalizes an instrument symbol. All book state and
// subscriptions are keyed by the normalized form.
func NormalizeInstrument(instrument string) string {
	return strings.ToUpper(strings.TrimSpace(instrument))
}
