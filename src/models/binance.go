package models

// -----------------------------------------------------------------------------
// Binance Feed DTOs
// -----------------------------------------------------------------------------

// MBinanceDepthMessage is one diff-depth event from the combined websocket
// stream. FirstUpdateID/FinalUpdateID bound the update-id range covered by
// this event; bids/asks are [price, quantity] string pairs.
type MBinanceDepthMessage struct {
	EventType     string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// MBinanceCombinedFrame is the envelope of a combined-stream frame.
type MBinanceCombinedFrame struct {
	Stream string               `json:"stream"`
	Data   MBinanceDepthMessage `json:"data"`
}

// MBinanceDepthSnapshot is the REST full-depth snapshot response.
type MBinanceDepthSnapshot struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}
