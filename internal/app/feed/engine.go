package feed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"chatviewer/internal/app/transcript"
	"chatviewer/internal/metrics"
	"chatviewer/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// OlderPage is the result of LoadOlder. Exhausted is set once the platform
// has reported that no older history exists; callers must stop asking.
type OlderPage struct {
	Records   []transcript.MessageRecord
	Exhausted bool
}

// RefreshPage is the result of Refresh. PossibleGap is set when the fetched
// page was full and did not reach back to the previously newest message.
type RefreshPage struct {
	Records     []transcript.MessageRecord
	PossibleGap bool
}

// Engine keeps the transcript store in step with the upstream channel. It
// starts cold and becomes synced after the first successful initial load.
type Engine struct {
	upstream Upstream
	store    *transcript.Store
	cursor   *transcript.Cursor
	logger   *zap.SugaredLogger
	timeout  time.Duration

	synced      atomic.Bool
	exhausted   atomic.Bool
	possibleGap atomic.Bool
	older       singleflight.Group
}

func NewEngine(upstream Upstream, store *transcript.Store, logger *zap.Logger, timeout time.Duration) *Engine {
	return &Engine{
		upstream: upstream,
		store:    store,
		cursor:   transcript.NewCursor(),
		logger:   logger.Sugar().With("component", "feed"),
		timeout:  timeout,
	}
}

func (e *Engine) Store() *transcript.Store   { return e.store }
func (e *Engine) Cursor() *transcript.Cursor { return e.cursor }
func (e *Engine) Synced() bool               { return e.synced.Load() }
func (e *Engine) Exhausted() bool            { return e.exhausted.Load() }
func (e *Engine) PossibleGap() bool          { return e.possibleGap.Load() }

func (e *Engine) fetch(ctx context.Context, op string, q PageQuery) ([]transcript.MessageRecord, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	recs, err := e.upstream.FetchPage(ctx, q)
	metrics.UpstreamCalls.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		if !errors.Is(err, ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		return nil, err
	}
	return recs, nil
}

func (e *Engine) apply(source string, recs []transcript.MessageRecord) {
	e.store.UpsertAll(recs)
	metrics.IngestedRecords.WithLabelValues(source).Add(float64(len(recs)))
	metrics.StoreRecords.Set(float64(e.store.Len()))
}

// InitialLoad fetches the newest page and seeds the cursor from it. On
// failure the engine stays cold and the store is untouched.
func (e *Engine) InitialLoad(ctx context.Context, pageSize int) ([]transcript.MessageRecord, error) {
	recs, err := e.fetch(ctx, "initial", PageQuery{Limit: pageSize})
	if err != nil {
		return nil, err
	}

	e.apply("initial", recs)
	if len(recs) > 0 {
		e.cursor.Seed(recs[0].ID, recs[len(recs)-1].ID)
	}

	if e.synced.CompareAndSwap(false, true) {
		e.logger.Infow("Feed synced", "records", len(recs), "store_records", e.store.Len())
	}
	return recs, nil
}

// RunInitialLoad retries InitialLoad, paced by limiter, until it succeeds or
// ctx is cancelled.
func (e *Engine) RunInitialLoad(ctx context.Context, pageSize int, limiter *rate.Limiter) error {
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := e.InitialLoad(ctx, pageSize)
		if err == nil {
			return nil
		}
		e.logger.Warnw("Initial load failed, will retry", "error", err)
	}
}

// LoadOlder fetches the page preceding the cursor's oldest id. Concurrent
// calls share one upstream request, which is detached from the caller's
// cancellation. With no oldest id yet there is nothing to page and the
// result is empty but not exhausted.
func (e *Engine) LoadOlder(ctx context.Context, pageSize int) (OlderPage, error) {
	if !e.synced.Load() {
		return OlderPage{}, ErrNotSynced
	}
	if e.exhausted.Load() {
		return OlderPage{Exhausted: true}, nil
	}

	v, err, _ := e.older.Do("older", func() (interface{}, error) {
		oldest, ok := e.cursor.Oldest()
		if !ok {
			return OlderPage{Records: []transcript.MessageRecord{}}, nil
		}

		recs, err := e.fetch(context.WithoutCancel(ctx), "older", PageQuery{Limit: pageSize, Before: oldest})
		if err != nil {
			return OlderPage{}, err
		}
		if len(recs) == 0 {
			e.exhausted.Store(true)
			e.logger.Infow("Channel history exhausted", "oldest", oldest.String())
			return OlderPage{Records: []transcript.MessageRecord{}, Exhausted: true}, nil
		}

		e.apply("older", recs)
		e.cursor.AdvanceOldest(recs[0].ID)
		return OlderPage{Records: recs}, nil
	})
	if err != nil {
		return OlderPage{}, err
	}
	return v.(OlderPage), nil
}

// Refresh re-fetches the newest page, repairing edits and reactions on
// messages already known. Messages created between polls that fall outside
// the page window are not recovered; such a window is reported as a
// possible gap.
func (e *Engine) Refresh(ctx context.Context, pageSize int) (RefreshPage, error) {
	if !e.synced.Load() {
		recs, err := e.InitialLoad(ctx, pageSize)
		return RefreshPage{Records: recs}, err
	}

	prevNewest, hadNewest := e.cursor.Newest()
	recs, err := e.fetch(ctx, "refresh", PageQuery{Limit: pageSize})
	if err != nil {
		return RefreshPage{}, err
	}

	e.apply("refresh", recs)
	if len(recs) == 0 {
		return RefreshPage{Records: recs}, nil
	}

	gap := hadNewest && len(recs) >= pageSize && recs[0].ID > prevNewest
	if gap {
		e.possibleGap.Store(true)
		metrics.PossibleGaps.Inc()
		e.logger.Warnw("Refresh window did not reach previous newest message",
			"previous_newest", prevNewest.String(),
			"batch_oldest", recs[0].ID.String(),
			"page_size", pageSize,
		)
	}
	e.cursor.Seed(recs[0].ID, recs[len(recs)-1].ID)
	return RefreshPage{Records: recs, PossibleGap: gap}, nil
}

// IngestLiveCreate applies a pushed message creation.
func (e *Engine) IngestLiveCreate(rec transcript.MessageRecord) error {
	return e.ingest("live_create", rec)
}

// IngestLiveUpdate applies a pushed message edit or reaction change.
func (e *Engine) IngestLiveUpdate(rec transcript.MessageRecord) error {
	return e.ingest("live_update", rec)
}

func (e *Engine) ingest(source string, rec transcript.MessageRecord) error {
	if rec.ID == 0 {
		metrics.DroppedRecords.Inc()
		e.logger.Warnw("Dropping live record without id", "source", source)
		return ErrMalformedRecord
	}
	e.apply(source, []transcript.MessageRecord{rec})
	return nil
}

// IngestLiveDelete tombstones a pushed deletion. It reports whether the
// store changed; deletions of never-seen messages without a snapshot are dropped.
func (e *Engine) IngestLiveDelete(id transcript.Snowflake, snapshot *transcript.MessageRecord) bool {
	changed := e.store.Tombstone(id, snapshot)
	metrics.IngestedRecords.WithLabelValues("live_delete").Inc()
	metrics.StoreRecords.Set(float64(e.store.Len()))
	if !changed {
		e.logger.Debugw("Ignored deletion", "id", id.String(), "has_snapshot", snapshot != nil)
	}
	return changed
}

// Subscribe wires the engine to upstream push events on bus.
func (e *Engine) Subscribe(bus *utils.EventBus) {
	bus.Subscribe(EventMessageCreated, func(ev utils.Event) {
		if rec, ok := ev.Data.(transcript.MessageRecord); ok {
			_ = e.IngestLiveCreate(rec)
		}
	})
	bus.Subscribe(EventMessageUpdated, func(ev utils.Event) {
		if rec, ok := ev.Data.(transcript.MessageRecord); ok {
			_ = e.IngestLiveUpdate(rec)
		}
	})
	bus.Subscribe(EventMessageDeleted, func(ev utils.Event) {
		if d, ok := ev.Data.(Deletion); ok {
			e.IngestLiveDelete(d.ID, d.Snapshot)
		}
	})
}

// RenderWindow reads an ascending window from the store, optionally
// restricted to records whose body contains search.
func (e *Engine) RenderWindow(before, after *transcript.Snowflake, limit int, search string) ([]transcript.MessageRecord, error) {
	if search == "" {
		return e.store.Range(before, after, limit)
	}
	if before != nil && after != nil {
		return nil, transcript.ErrConflictingBounds
	}
	if limit <= 0 {
		return []transcript.MessageRecord{}, nil
	}
	if before != nil {
		if _, ok := e.store.Get(*before); !ok {
			before = nil
		}
	}
	if after != nil {
		if _, ok := e.store.Get(*after); !ok {
			after = nil
		}
	}

	var out []transcript.MessageRecord
	for rec := range e.store.FilterByContent(search, false) {
		if before != nil && rec.ID >= *before {
			break
		}
		if after != nil && rec.ID <= *after {
			continue
		}
		out = append(out, rec)
		if after != nil && len(out) == limit {
			break
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	if out == nil {
		out = []transcript.MessageRecord{}
	}
	return out, nil
}

// SaveStore persists the transcript. Failures are logged and wrapped in
// ErrPersistence; the session continues in memory.
func (e *Engine) SaveStore(ctx context.Context) error {
	if err := e.store.Save(ctx); err != nil {
		metrics.SaveFailures.Inc()
		e.logger.Errorw("Transcript save failed", "error", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// LoadStore populates the store from persistence before the first fetch.
func (e *Engine) LoadStore(ctx context.Context) error {
	n, err := e.store.Load(ctx)
	if err != nil {
		metrics.SaveFailures.Inc()
		e.logger.Errorw("Transcript load failed, continuing in memory", "error", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.StoreRecords.Set(float64(e.store.Len()))
	e.logger.Infow("Transcript loaded", "records", n)
	return nil
}
