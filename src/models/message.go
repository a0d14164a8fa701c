package models

// -----------------------------------------------------------------------------
// Streaming Wire Messages
// -----------------------------------------------------------------------------

// Message type tags carried in MMarketDataMessage.Type.
const (
	MessageTypeSnapshot      = "snapshot"
	MessageTypeUpdate        = "update"
	MessageTypeEmptySnapshot = "empty_snapshot"
)

// MEmptySnapshot is the terminal notification sent after an unsubscribe.
type MEmptySnapshot struct {
	InstrumentID string `json:"instrument_id"`
}

// MMarketDataMessage is the oneof envelope sent to streaming clients.
// Exactly one of Snapshot, Update, EmptySnapshot is set, discriminated by Type.
type MMarketDataMessage struct {
	Type          string              `json:"type"`
	Snapshot      *MOrderBookSnapshot `json:"snapshot,omitempty"`
	Update        *MOrderBookUpdate   `json:"update,omitempty"`
	EmptySnapshot *MEmptySnapshot     `json:"empty_snapshot,omitempty"`
}

// -----------------------------------------------------------------------------

// NewSnapshotMessage wraps a snapshot in a wire envelope.
func NewSnapshotMessage(snap *MOrderBookSnapshot) *MMarketDataMessage {
	return &MMarketDataMessage{Type: MessageTypeSnapshot, Snapshot: snap}
}

// NewUpdateMessage wraps an update in a wire envelope.
func NewUpdateMessage(upd *MOrderBookUpdate) *MMarketDataMessage {
	return &MMarketDataMessage{Type: MessageTypeUpdate, Update: upd}
}

// NewEmptySnapshotMessage builds the terminal notification for an instrument.
func NewEmptySnapshotMessage(instrument string) *MMarketDataMessage {
	return &MMarketDataMessage{
		Type:          MessageTypeEmptySnapshot,
		EmptySnapshot: &MEmptySnapshot{InstrumentID: instrument},
	}
}

// -----------------------------------------------------------------------------

// MSubscriptionRequest is the inbound client request on a streaming session.
type MSubscriptionRequest struct {
	InstrumentID string `json:"instrument_id"`
	Unsubscribe  bool   `json:"unsubscribe"`
}
