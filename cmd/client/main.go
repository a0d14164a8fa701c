package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"market-depth/src/book"
	"market-depth/src/helpers"
	"market-depth/src/logger"
	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// Console client: subscribes to a set of instruments, maintains a local book
// mirror and prints top-of-book at a fixed cadence. Reconnects forever with
// exponential backoff.
// -----------------------------------------------------------------------------

func main() {
	serverAddr := flag.String("server", "localhost:8080", "server host:port")
	instrumentsArg := flag.String("instruments", "BTCUSDT,ETHUSDT", "comma separated instruments")
	printInterval := flag.Int("interval", 2, "print interval in seconds")
	strictSeq := flag.Bool("strict-seq", false, "re-subscribe on detected sequence gaps (dense-sequence feeds only)")
	logLevel := flag.String("log-level", "INFO", "log level")
	flag.Parse()

	appLogger := logger.NewLogger(*logLevel, "Client")

	var instruments []string
	for _, ins := range strings.Split(*instrumentsArg, ",") {
		if key := models.NormalizeInstrument(ins); key != "" {
			instruments = append(instruments, key)
		}
	}
	if len(instruments) == 0 {
		appLogger.Critical("No instruments given")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		appLogger.Info("Shutting down...")
		cancel()
	}()

	mirror := book.NewTracker(appLogger.Named("Mirror"))

	// printer
	go func() {
		ticker := time.NewTicker(time.Duration(*printInterval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				printBooks(mirror, instruments)
			}
		}
	}()

	wsURL := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}

	// reconnect loop
	attempt := 0
	for ctx.Err() == nil {
		err := runSession(ctx, wsURL.String(), instruments, mirror, *strictSeq, appLogger)
		if ctx.Err() != nil {
			return
		}

		attempt++
		delay := helpers.Backoff(attempt)
		appLogger.Warning("Session ended: %v (reconnect %d in %v)", err, attempt, delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// -----------------------------------------------------------------------------
// Sequence Gate
// -----------------------------------------------------------------------------

type updateAction int

const (
	applyUpdate updateAction = iota
	skipUpdate
	resyncInstrument
)

// seqGate tracks per-instrument sequence progress and decides what to do with
// each inbound update. In strict mode a detected gap requests a single resync;
// further gapped updates are skipped until the fresh checkpoint snapshot
// arrives, so one gap never produces a burst of subscribe frames.
type seqGate struct {
	strict  bool
	lastSeq map[string]int64
	resync  map[string]bool
}

func newSeqGate(strict bool) *seqGate {
	return &seqGate{
		strict:  strict,
		lastSeq: make(map[string]int64),
		resync:  make(map[string]bool),
	}
}

// onSnapshot resets the instrument's baseline and clears any pending resync.
func (g *seqGate) onSnapshot(instrument string, seq int64) {
	g.lastSeq[instrument] = seq
	delete(g.resync, instrument)
}

func (g *seqGate) onUpdate(instrument string, seq int64) updateAction {
	if g.resync[instrument] {
		return skipUpdate
	}

	last, seen := g.lastSeq[instrument]
	if seen && seq <= last {
		// stale or duplicate, already covered by our state
		return skipUpdate
	}
	if g.strict && seen && seq > last+1 {
		g.resync[instrument] = true
		return resyncInstrument
	}

	g.lastSeq[instrument] = seq
	return applyUpdate
}

// -----------------------------------------------------------------------------

func runSession(ctx context.Context, wsURL string, instruments []string, mirror *book.Tracker, strictSeq bool, log *logger.Logger) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return helpers.NewTransportError("dial failed", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	subscribe := func(instrument string) error {
		return conn.WriteJSON(models.MSubscriptionRequest{InstrumentID: instrument})
	}
	for _, ins := range instruments {
		if err := subscribe(ins); err != nil {
			return helpers.NewTransportError("subscribe failed", err)
		}
	}
	log.Info("Connected to %s, subscribed to %v", wsURL, instruments)

	gate := newSeqGate(strictSeq)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return helpers.NewTransportError("read failed", err)
		}

		var msg models.MMarketDataMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warning("Dropping malformed message: %v", err)
			continue
		}

		switch msg.Type {
		case models.MessageTypeSnapshot:
			if msg.Snapshot == nil {
				continue
			}
			mirror.OnFeedSnapshot(msg.Snapshot)
			gate.onSnapshot(msg.Snapshot.InstrumentID, msg.Snapshot.Sequence)

		case models.MessageTypeUpdate:
			if msg.Update == nil {
				continue
			}
			ins := msg.Update.InstrumentID

			switch gate.onUpdate(ins, msg.Update.Sequence) {
			case applyUpdate:
				mirror.OnFeedUpdate(msg.Update)
			case resyncInstrument:
				// Lossy broadcast may have skipped updates; a re-subscribe
				// forces a fresh checkpoint snapshot.
				log.Warning("Sequence gap on %s (last %d, got %d), re-subscribing",
					ins, gate.lastSeq[ins], msg.Update.Sequence)
				if err := subscribe(ins); err != nil {
					return helpers.NewTransportError("re-subscribe failed", err)
				}
			case skipUpdate:
			}

		case models.MessageTypeEmptySnapshot:
			if msg.EmptySnapshot != nil {
				log.Info("Unsubscribed from %s", msg.EmptySnapshot.InstrumentID)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func printBooks(mirror *book.Tracker, instruments []string) {
	for _, ins := range instruments {
		view, ok := mirror.View(ins)
		if !ok {
			fmt.Printf("%-10s  (no data)\n", ins)
			continue
		}

		bid, ask := "-", "-"
		if len(view.Bids) > 0 {
			bid = fmt.Sprintf("%.2f x %.4f", view.Bids[0].Price, view.Bids[0].Quantity)
		}
		if len(view.Asks) > 0 {
			ask = fmt.Sprintf("%.2f x %.4f", view.Asks[0].Price, view.Asks[0].Quantity)
		}
		fmt.Printf("%-10s  seq=%-12d bid %-22s ask %-22s depth %d/%d\n",
			ins, view.LastSequence, bid, ask, len(view.Bids), len(view.Asks))
	}
}
