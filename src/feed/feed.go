package feed

import (
	"market-depth/src/interfaces"
	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// Shared Observer Multicast
// -----------------------------------------------------------------------------

// notifier is the explicit multicast list embedded by every feed. Observers
// are registered before Start and invoked synchronously on the feed loop, so
// observers must never block (the hub's queues are non-blocking by contract).
type notifier struct {
	observers []interfaces.IFeedObserver
}

func (n *notifier) AddObserver(obs interfaces.IFeedObserver) {
	if obs != nil {
		n.observers = append(n.observers, obs)
	}
}

func (n *notifier) emitSnapshot(snap *models.MOrderBookSnapshot) {
	for _, obs := range n.observers {
		obs.OnFeedSnapshot(snap)
	}
}

func (n *notifier) emitUpdate(upd *models.MOrderBookUpdate) {
	for _, obs := range n.observers {
		obs.OnFeedUpdate(upd)
	}
}

// -----------------------------------------------------------------------------
// Config Defaults
// -----------------------------------------------------------------------------

const (
	defaultInitialDepth        = 10
	defaultUpdateIntervalMs    = 200
	defaultSnapshotIntervalSec = 5
	defaultBridgeTimeoutSec    = 30
	defaultWSURL               = "wss://stream.binance.com:9443"
	defaultRestURL             = "https://api.binance.com"
)

func applyDefaults(cfg models.MFeedConfig) models.MFeedConfig {
	if cfg.InitialDepth <= 0 {
		cfg.InitialDepth = defaultInitialDepth
	}
	if cfg.UpdateIntervalMs <= 0 {
		cfg.UpdateIntervalMs = defaultUpdateIntervalMs
	}
	if cfg.SnapshotIntervalSec <= 0 {
		cfg.SnapshotIntervalSec = defaultSnapshotIntervalSec
	}
	if cfg.BridgeTimeoutSec <= 0 {
		cfg.BridgeTimeoutSec = defaultBridgeTimeoutSec
	}
	if cfg.WSURL == "" {
		cfg.WSURL = defaultWSURL
	}
	if cfg.RestURL == "" {
		cfg.RestURL = defaultRestURL
	}

	normalized := make([]string, 0, len(cfg.Instruments))
	for _, ins := range cfg.Instruments {
		if key := models.NormalizeInstrument(ins); key != "" {
			normalized = append(normalized, key)
		}
	}
	cfg.Instruments = normalized
	return cfg
}
