package feed

import (
	"context"
	"errors"
	"fmt"

	"chatviewer/internal/app/transcript"
	"chatviewer/internal/metrics"

	"go.uber.org/zap"
)

// View is an ascending window of the transcript ready for rendering.
type View struct {
	Records     []transcript.MessageRecord
	HasOlder    bool
	Exhausted   bool
	PossibleGap bool
}

func (v View) OldestID() string {
	if len(v.Records) == 0 {
		return ""
	}
	return v.Records[0].ID.String()
}

func (v View) NewestID() string {
	if len(v.Records) == 0 {
		return ""
	}
	return v.Records[len(v.Records)-1].ID.String()
}

type Service interface {
	GetInitialView(ctx context.Context, limit int, search string) (View, error)
	GetOlder(ctx context.Context, before transcript.Snowflake, limit int) (View, error)
	GetNewer(ctx context.Context, after transcript.Snowflake, limit int) (View, error)
	Search(ctx context.Context, substring string, limit int) ([]transcript.MessageRecord, error)
	RequestDelete(ctx context.Context, id transcript.Snowflake) error
	RequestReactionToggle(ctx context.Context, id transcript.Snowflake, emoji string) (bool, error)
	ExportAll(ctx context.Context, pageSize int) ([]transcript.MessageRecord, error)
}

type service struct {
	engine   *Engine
	upstream Upstream
	pageSize int
	logger   *zap.SugaredLogger
}

func NewService(engine *Engine, upstream Upstream, pageSize int, logger *zap.Logger) Service {
	return &service{
		engine:   engine,
		upstream: upstream,
		pageSize: pageSize,
		logger:   logger.Sugar().With("component", "feed_service"),
	}
}

// GetInitialView polls the newest page and returns the newest limit records.
// When the platform is unreachable the stored view is still returned
// alongside the error.
func (s *service) GetInitialView(ctx context.Context, limit int, search string) (View, error) {
	_, syncErr := s.engine.Refresh(ctx, s.pageSize)
	if syncErr != nil {
		s.logger.Warnw("Serving stale view", "error", syncErr)
	}

	recs, err := s.engine.RenderWindow(nil, nil, limit, search)
	if err != nil {
		return View{}, err
	}
	return s.view(recs), syncErr
}

// GetOlder returns up to limit records older than before. An id the store
// has never seen yields an empty page that is not exhausted.
func (s *service) GetOlder(ctx context.Context, before transcript.Snowflake, limit int) (View, error) {
	if _, ok := s.engine.Store().Get(before); !ok {
		return View{
			Records:     []transcript.MessageRecord{},
			HasOlder:    true,
			PossibleGap: s.engine.PossibleGap(),
		}, nil
	}

	recs, err := s.engine.RenderWindow(&before, nil, limit, "")
	if err != nil {
		return View{}, err
	}

	if len(recs) < limit && s.engine.Synced() && !s.engine.Exhausted() {
		if _, err := s.engine.LoadOlder(ctx, s.pageSize); err != nil {
			s.logger.Warnw("Loading older messages failed", "before", before.String(), "error", err)
			return s.view(recs), err
		}
		if recs, err = s.engine.RenderWindow(&before, nil, limit, ""); err != nil {
			return View{}, err
		}
	}
	return s.view(recs), nil
}

func (s *service) GetNewer(ctx context.Context, after transcript.Snowflake, limit int) (View, error) {
	_, syncErr := s.engine.Refresh(ctx, s.pageSize)
	if syncErr != nil {
		s.logger.Warnw("Refresh failed, serving stored messages", "error", syncErr)
	}
	recs, err := s.engine.RenderWindow(nil, &after, limit, "")
	if err != nil {
		return View{}, err
	}
	return s.view(recs), syncErr
}

func (s *service) Search(_ context.Context, substring string, limit int) ([]transcript.MessageRecord, error) {
	return s.engine.RenderWindow(nil, nil, limit, substring)
}

// RequestDelete deletes the message upstream and tombstones it locally. A
// message the platform no longer has is still tombstoned; ErrNotFound is
// returned so the caller can tell the user.
func (s *service) RequestDelete(ctx context.Context, id transcript.Snowflake) error {
	err := s.upstream.DeleteMessage(ctx, id)
	metrics.UpstreamCalls.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}

	if snap, ok := s.engine.Store().Get(id); ok {
		s.engine.IngestLiveDelete(id, &snap)
	}
	return err
}

// RequestReactionToggle adds the bot's reaction, or removes it when the bot
// has already reacted. It reports whether the reaction is now present.
func (s *service) RequestReactionToggle(ctx context.Context, id transcript.Snowflake, emoji string) (bool, error) {
	rec, known := s.engine.Store().Get(id)
	remove := known && rec.Reactions[emoji].Me

	var err error
	if remove {
		err = s.upstream.RemoveReaction(ctx, id, emoji)
	} else {
		err = s.upstream.AddReaction(ctx, id, emoji)
	}
	metrics.UpstreamCalls.WithLabelValues("react", metrics.Result(err)).Inc()

	if errors.Is(err, ErrNotFound) {
		if known {
			s.engine.IngestLiveDelete(id, &rec)
		}
		return false, err
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle reaction on %s: %w", id, err)
	}

	s.engine.Store().Update(id, func(m *transcript.MessageRecord) {
		m.SetReaction(emoji, !remove)
	})
	return !remove, nil
}

// ExportAll walks the channel history back to the beginning and returns
// every stored record in ascending order.
func (s *service) ExportAll(ctx context.Context, pageSize int) ([]transcript.MessageRecord, error) {
	if !s.engine.Synced() {
		if _, err := s.engine.InitialLoad(ctx, pageSize); err != nil {
			return nil, err
		}
	}
	for !s.engine.Exhausted() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.engine.LoadOlder(ctx, pageSize)
		if err != nil {
			return nil, err
		}
		if len(page.Records) == 0 {
			break
		}
	}
	return s.engine.Store().All(), nil
}

func (s *service) view(recs []transcript.MessageRecord) View {
	v := View{
		Records:     recs,
		Exhausted:   s.engine.Exhausted(),
		PossibleGap: s.engine.PossibleGap(),
	}
	if len(recs) > 0 {
		v.HasOlder = s.engine.Store().HasOlderThan(recs[0].ID) || !v.Exhausted
	} else {
		v.HasOlder = !v.Exhausted && s.engine.Store().Len() > 0
	}
	v.Exhausted = !v.HasOlder
	return v
}
