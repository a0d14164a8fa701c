package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"market-depth/src/helpers"
	"market-depth/src/interfaces"
	"market-depth/src/logger"
	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	handshakeTimeout = 10 * time.Second
	warmupDelay      = 200 * time.Millisecond
	bridgePollEvery  = 100 * time.Millisecond
	streamPollEvery  = 100 * time.Millisecond
	depthSnapshotLim = "1000"
)

// -----------------------------------------------------------------------------
// Buffered Diff Queue
// -----------------------------------------------------------------------------

// depthQueue is the per-instrument buffer between the websocket read loop and
// the instrument's sync loop.
type depthQueue struct {
	mu    sync.Mutex
	items []models.MBinanceDepthMessage
}

func (q *depthQueue) enqueue(m models.MBinanceDepthMessage) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
}

// drain removes and returns everything buffered so far.
func (q *depthQueue) drain() []models.MBinanceDepthMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// -----------------------------------------------------------------------------
// BinanceLiveFeed
// -----------------------------------------------------------------------------

// BinanceLiveFeed bridges a REST full-depth snapshot with the exchange's
// websocket diff stream. One combined websocket session covers all configured
// instruments; each instrument runs its own buffering/bridging/streaming state
// machine. Any session-level failure tears everything down and a full
// reconnect re-runs the sync for every instrument from scratch.
type BinanceLiveFeed struct {
	notifier

	Config  models.MFeedConfig
	Logger  *logger.Logger
	Network interfaces.INetworkManager

	buffers map[string]*depthQueue

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewBinanceLiveFeed(cfg models.MFeedConfig, net interfaces.INetworkManager, log *logger.Logger) *BinanceLiveFeed {
	return &BinanceLiveFeed{
		Config:  applyDefaults(cfg),
		Logger:  log,
		Network: net,
		buffers: make(map[string]*depthQueue),
	}
}

// -----------------------------------------------------------------------------

func (f *BinanceLiveFeed) Name() string {
	return "binance"
}

// -----------------------------------------------------------------------------

// Start launches the reconnecting session loop in a background task.
func (f *BinanceLiveFeed) Start(ctx context.Context) error {
	if len(f.Config.Instruments) == 0 {
		return helpers.NewConfigurationError("binance feed requires at least one instrument", nil)
	}

	ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.mainLoop(ctx)
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels all loops and waits for them to exit.
func (f *BinanceLiveFeed) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	return nil
}

// -----------------------------------------------------------------------------
// Session Loop
// -----------------------------------------------------------------------------

// mainLoop keeps re-establishing the websocket session. Sessions are strictly
// sequential: a new one starts only after the previous one has fully torn
// down and the backoff delay has elapsed.
func (f *BinanceLiveFeed) mainLoop(ctx context.Context) {
	defer f.wg.Done()

	attempt := 0
	for ctx.Err() == nil {
		err := f.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		attempt++
		delay := helpers.Backoff(attempt)
		f.Logger.Error("Binance session ended: %v (reconnect %d in %v)", err, attempt, delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// -----------------------------------------------------------------------------

// runOnce runs a single websocket session: one read loop feeding per-instrument
// buffers plus one sync loop per instrument. Returns when the session fails or
// the context is cancelled.
func (f *BinanceLiveFeed) runOnce(ctx context.Context) error {
	// fresh buffers: bridging restarts from scratch every session
	for _, ins := range f.Config.Instruments {
		f.buffers[ins] = &depthQueue{}
	}

	streams := make([]string, len(f.Config.Instruments))
	for i, ins := range f.Config.Instruments {
		streams[i] = strings.ToLower(ins) + "@depth@100ms"
	}
	url := fmt.Sprintf("%s/stream?streams=%s", f.Config.WSURL, strings.Join(streams, "/"))

	f.Logger.Info("Connecting to Binance stream: %s", url)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{}
	header.Set("User-Agent", "market-depth-live-feed")

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return helpers.NewTransportError("websocket dial failed", err)
	}
	f.Logger.Info("Connected to Binance websocket")

	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()

	// unblock the read loop when the session is torn down
	go func() {
		<-sessionCtx.Done()
		conn.Close()
	}()

	var sessionWG sync.WaitGroup
	errCh := make(chan error, 1)

	sessionWG.Add(1)
	go func() {
		defer sessionWG.Done()
		err := f.readLoop(sessionCtx, conn)
		select {
		case errCh <- err:
		default:
		}
		cancelSession()
	}()

	for _, ins := range f.Config.Instruments {
		sessionWG.Add(1)
		go func(instrument string) {
			defer sessionWG.Done()
			f.syncLoop(sessionCtx, instrument)
		}(ins)
	}

	sessionWG.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------

// readLoop receives combined-stream frames and routes parsed diff messages
// into the per-instrument buffers. Malformed frames are logged and dropped
// without killing the session.
func (f *BinanceLiveFeed) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return helpers.NewTransportError("websocket read failed", err)
		}

		var frame models.MBinanceCombinedFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			f.Logger.Warning("Dropping malformed frame: %v", helpers.NewParseError("combined frame", err))
			continue
		}

		sym := models.NormalizeInstrument(strings.Split(frame.Stream, "@")[0])
		q, ok := f.buffers[sym]
		if !ok {
			f.Logger.Warning("Received message for unexpected symbol %s", sym)
			continue
		}
		q.enqueue(frame.Data)
	}
}

// -----------------------------------------------------------------------------
// Per-Instrument Sync
// -----------------------------------------------------------------------------

// syncLoop runs an instrument's state machine for one session:
// buffering (done by readLoop), bridging against a REST snapshot, then
// continuous streaming with a stale-diff watermark.
func (f *BinanceLiveFeed) syncLoop(ctx context.Context, instrument string) {
	// let the buffer accumulate before snapshotting
	select {
	case <-ctx.Done():
		return
	case <-time.After(warmupDelay):
	}

	q := f.buffers[instrument]

	snap, err := f.fetchSnapshot(ctx, instrument)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// abandon this instrument until the whole session reconnects
		f.Logger.Error("Sync abandoned for %s: %v", instrument, err)
		return
	}

	lastUpdateID := snap.LastUpdateID
	f.Logger.Info("REST snapshot for %s lastUpdateId=%d", instrument, lastUpdateID)

	buffered, bridgeIdx := f.awaitBridge(ctx, q, lastUpdateID)
	if ctx.Err() != nil {
		return
	}

	f.emitSnapshot(snapshotFromRest(instrument, snap))

	var watermark int64
	if bridgeIdx < 0 {
		f.Logger.Warning("No bridge event for %s within %ds; best-effort replay of %d buffered messages",
			instrument, f.Config.BridgeTimeoutSec, len(buffered))
		bridgeIdx = 0
	}
	for _, msg := range buffered[bridgeIdx:] {
		f.emitUpdate(f.updateFromDepth(instrument, msg))
		watermark = msg.FinalUpdateID
	}

	// streaming phase: discard anything at or below the watermark
	ticker := time.NewTicker(streamPollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, msg := range q.drain() {
				if msg.FinalUpdateID <= watermark {
					continue
				}
				f.emitUpdate(f.updateFromDepth(instrument, msg))
				watermark = msg.FinalUpdateID
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (f *BinanceLiveFeed) fetchSnapshot(ctx context.Context, instrument string) (*models.MBinanceDepthSnapshot, error) {
	url := fmt.Sprintf("%s/api/v3/depth", f.Config.RestURL)
	body, err := f.Network.Get(ctx, url, map[string]string{
		"symbol": instrument,
		"limit":  depthSnapshotLim,
	})
	if err != nil {
		return nil, helpers.NewSyncError("snapshot fetch failed", err)
	}

	var snap models.MBinanceDepthSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, helpers.NewSyncError("snapshot parse failed", err)
	}
	return &snap, nil
}

// -----------------------------------------------------------------------------

// awaitBridge accumulates buffered diffs until one bridges the snapshot
// (U <= lastUpdateId+1 <= u) or the bridge timeout expires. Returns everything
// accumulated plus the bridge index, -1 when no bridge was found in time.
func (f *BinanceLiveFeed) awaitBridge(ctx context.Context, q *depthQueue, lastUpdateID int64) ([]models.MBinanceDepthMessage, int) {
	deadline := time.Now().Add(time.Duration(f.Config.BridgeTimeoutSec) * time.Second)

	var buffered []models.MBinanceDepthMessage
	for {
		buffered = append(buffered, q.drain()...)

		if idx := findBridge(buffered, lastUpdateID); idx >= 0 {
			return buffered, idx
		}
		if time.Now().After(deadline) {
			return buffered, -1
		}

		select {
		case <-ctx.Done():
			return buffered, -1
		case <-time.After(bridgePollEvery):
		}
	}
}

// -----------------------------------------------------------------------------

// findBridge returns the index of the first message whose update-id range
// covers lastUpdateID+1, or -1.
func findBridge(buffered []models.MBinanceDepthMessage, lastUpdateID int64) int {
	target := lastUpdateID + 1
	for i, m := range buffered {
		if m.FirstUpdateID <= target && target <= m.FinalUpdateID {
			return i
		}
	}
	return -1
}

// -----------------------------------------------------------------------------
// Conversions
// -----------------------------------------------------------------------------

// snapshotFromRest converts the REST depth response, using lastUpdateId as
// the emitted sequence so buffered diffs line up with it.
func snapshotFromRest(instrument string, ds *models.MBinanceDepthSnapshot) *models.MOrderBookSnapshot {
	snap := &models.MOrderBookSnapshot{
		InstrumentID: instrument,
		Sequence:     ds.LastUpdateID,
	}
	for _, b := range ds.Bids {
		if lvl, ok := parseLevel(b); ok {
			snap.Bids = append(snap.Bids, lvl)
		}
	}
	for _, a := range ds.Asks {
		if lvl, ok := parseLevel(a); ok {
			snap.Asks = append(snap.Asks, lvl)
		}
	}
	return snap
}

// updateFromDepth converts a diff message, using the final update id 'u' as
// the emitted sequence. Zero quantity means the level is gone.
func (f *BinanceLiveFeed) updateFromDepth(instrument string, msg models.MBinanceDepthMessage) *models.MOrderBookUpdate {
	upd := &models.MOrderBookUpdate{
		InstrumentID: instrument,
		Sequence:     msg.FinalUpdateID,
	}

	appendChanges := func(rows [][]string) {
		for _, row := range rows {
			lvl, ok := parseLevel(row)
			if !ok {
				f.Logger.Debug("Skipping malformed depth row for %s: %v", instrument, row)
				continue
			}
			t := models.ChangeUpdate
			if lvl.Quantity == 0 {
				t = models.ChangeRemove
			}
			upd.Changes = append(upd.Changes, models.MPriceLevelChange{Level: lvl, Type: t})
		}
	}

	appendChanges(msg.Bids)
	appendChanges(msg.Asks)
	return upd
}

func parseLevel(row []string) (models.MPriceLevel, bool) {
	if len(row) < 2 {
		return models.MPriceLevel{}, false
	}
	price, err1 := strconv.ParseFloat(row[0], 64)
	qty, err2 := strconv.ParseFloat(row[1], 64)
	if err1 != nil || err2 != nil {
		return models.MPriceLevel{}, false
	}
	return models.MPriceLevel{Price: price, Quantity: qty}, true
}
