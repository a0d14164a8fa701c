package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"market-depth/src/interfaces"
	"market-depth/src/logger"
	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// Recorder
// -----------------------------------------------------------------------------

const recorderQueueSize = 1024

type record struct {
	snapshot   bool
	instrument string
	sequence   int64
	payload    []byte
	receivedAt time.Time
}

// Recorder is a feed observer that persists the event stream through a sink.
// It decouples the feed from storage with a bounded channel and one writer
// goroutine: a full buffer drops the record and a failing sink only logs, so
// persistence can never block or abort ingestion.
type Recorder struct {
	Sink   interfaces.IPersistenceSink
	Logger *logger.Logger

	ch     chan record
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewRecorder(sink interfaces.IPersistenceSink, log *logger.Logger) *Recorder {
	return &Recorder{
		Sink:   sink,
		Logger: log,
		ch:     make(chan record, recorderQueueSize),
	}
}

// -----------------------------------------------------------------------------

// Start launches the writer goroutine.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.writeLoop(ctx)
}

// -----------------------------------------------------------------------------

// Stop cancels the writer and waits for it to drain.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// -----------------------------------------------------------------------------
// Feed Observer Implementation
// -----------------------------------------------------------------------------

func (r *Recorder) OnFeedSnapshot(snap *models.MOrderBookSnapshot) {
	if snap == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		r.Logger.Warning("Failed to serialize snapshot for %s: %v", snap.InstrumentID, err)
		return
	}
	r.enqueue(record{
		snapshot:   true,
		instrument: snap.InstrumentID,
		sequence:   snap.Sequence,
		payload:    payload,
		receivedAt: time.Now(),
	})
}

// -----------------------------------------------------------------------------

func (r *Recorder) OnFeedUpdate(upd *models.MOrderBookUpdate) {
	if upd == nil {
		return
	}
	payload, err := json.Marshal(upd)
	if err != nil {
		r.Logger.Warning("Failed to serialize update for %s: %v", upd.InstrumentID, err)
		return
	}
	r.enqueue(record{
		instrument: upd.InstrumentID,
		sequence:   upd.Sequence,
		payload:    payload,
		receivedAt: time.Now(),
	})
}

// -----------------------------------------------------------------------------

func (r *Recorder) enqueue(rec record) {
	select {
	case r.ch <- rec:
	default:
		r.Logger.Warning("Recorder buffer full, dropping %s event seq=%d", rec.instrument, rec.sequence)
	}
}

// -----------------------------------------------------------------------------

func (r *Recorder) writeLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			// flush whatever is still buffered before exiting
			for {
				select {
				case rec := <-r.ch:
					r.persist(rec)
				default:
					return
				}
			}
		case rec := <-r.ch:
			r.persist(rec)
		}
	}
}

func (r *Recorder) persist(rec record) {
	var err error
	if rec.snapshot {
		err = r.Sink.SaveSnapshot(rec.instrument, rec.sequence, rec.payload, rec.receivedAt)
	} else {
		err = r.Sink.SaveUpdate(rec.instrument, rec.sequence, rec.payload, rec.receivedAt)
	}
	if err != nil {
		r.Logger.Error("Persist failed for %s seq=%d: %v", rec.instrument, rec.sequence, err)
	}
}
