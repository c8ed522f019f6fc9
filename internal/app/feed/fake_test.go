package feed_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"chatviewer/internal/app/feed"
	"chatviewer/internal/app/transcript"
)

// fakeUpstream serves a scripted channel history, or scripted pages when
// pages is non-empty.
type fakeUpstream struct {
	mu       sync.Mutex
	history  map[transcript.Snowflake]transcript.MessageRecord
	pages    [][]transcript.MessageRecord
	fetchErr error
	opErr    error
	gate     chan struct{}

	fetches   int
	queries   []feed.PageQuery
	deleted   []transcript.Snowflake
	added     []string
	removed   []string
}

func newFakeUpstream(ids ...uint64) *fakeUpstream {
	f := &fakeUpstream{history: make(map[transcript.Snowflake]transcript.MessageRecord)}
	for _, id := range ids {
		f.add(msg(id, "body"))
	}
	return f
}

func msg(id uint64, body string) transcript.MessageRecord {
	return transcript.MessageRecord{
		ID:                transcript.Snowflake(id),
		ChannelID:         "100",
		AuthorID:          "42",
		AuthorDisplayName: "alice",
		Body:              body,
		CreatedAt:         time.Unix(int64(id), 0).UTC(),
	}
}

func (f *fakeUpstream) add(rec transcript.MessageRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[rec.ID] = rec
}

func (f *fakeUpstream) FetchPage(ctx context.Context, q feed.PageQuery) ([]transcript.MessageRecord, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	f.queries = append(f.queries, q)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.pages) > 0 {
		p := f.pages[0]
		f.pages = f.pages[1:]
		return p, nil
	}

	var ids []transcript.Snowflake
	for id := range f.history {
		if q.Before != 0 && id >= q.Before {
			continue
		}
		if q.After != 0 && id <= q.After {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > q.Limit {
		if q.After != 0 {
			ids = ids[:q.Limit]
		} else {
			ids = ids[len(ids)-q.Limit:]
		}
	}
	out := make([]transcript.MessageRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.history[id].Clone())
	}
	return out, nil
}

func (f *fakeUpstream) DeleteMessage(_ context.Context, id transcript.Snowflake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	if _, ok := f.history[id]; !ok {
		return feed.ErrNotFound
	}
	delete(f.history, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUpstream) AddReaction(_ context.Context, id transcript.Snowflake, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.added = append(f.added, id.String()+":"+emoji)
	return nil
}

func (f *fakeUpstream) RemoveReaction(_ context.Context, id transcript.Snowflake, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.removed = append(f.removed, id.String()+":"+emoji)
	return nil
}

func (f *fakeUpstream) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}
