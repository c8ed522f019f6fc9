package feed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatviewer/internal/app/feed"
	"chatviewer/internal/app/transcript"
)

func newService(up *fakeUpstream, pageSize int) (feed.Service, *feed.Engine) {
	e := newEngine(up)
	return feed.NewService(e, up, pageSize, zap.NewNop()), e
}

func TestGetInitialViewAndOlder(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(1, 2, 3, 4, 5, 6)
	svc, _ := newService(up, 3)

	view, err := svc.GetInitialView(ctx, 3, "")
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5, 6}, recIDs(view.Records))
	assert.True(t, view.HasOlder)

	older, err := svc.GetOlder(ctx, 4, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, recIDs(older.Records))
	assert.False(t, older.Exhausted)

	last, err := svc.GetOlder(ctx, 1, 3)
	require.NoError(t, err)
	assert.Empty(t, last.Records)
	assert.True(t, last.Exhausted)
}

func TestGetInitialViewStaleOnUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(1, 2)
	svc, _ := newService(up, 10)
	_, err := svc.GetInitialView(ctx, 10, "")
	require.NoError(t, err)

	up.fetchErr = errors.New("503")
	view, err := svc.GetInitialView(ctx, 10, "")
	assert.ErrorIs(t, err, feed.ErrUpstreamUnavailable)
	assert.Equal(t, []uint64{1, 2}, recIDs(view.Records))
}

func TestGetNewer(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(1, 2)
	svc, _ := newService(up, 10)
	_, err := svc.GetInitialView(ctx, 10, "")
	require.NoError(t, err)

	up.add(msg(3, "fresh"))
	view, err := svc.GetNewer(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, recIDs(view.Records))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream()
	up.add(msg(1, "deploy done"))
	up.add(msg(2, "lunch?"))
	up.add(msg(3, "Deploy failed"))
	svc, _ := newService(up, 10)
	_, err := svc.GetInitialView(ctx, 10, "")
	require.NoError(t, err)

	got, err := svc.Search(ctx, "deploy", 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, recIDs(got))
}

func TestRequestDelete(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(1, 2)
	svc, e := newService(up, 10)
	_, err := svc.GetInitialView(ctx, 10, "")
	require.NoError(t, err)

	require.NoError(t, svc.RequestDelete(ctx, 2))
	rec, ok := e.Store().Get(2)
	require.True(t, ok)
	assert.True(t, rec.Tombstoned)
	assert.Equal(t, []transcript.Snowflake{2}, up.deleted)

	err = svc.RequestDelete(ctx, 2)
	assert.ErrorIs(t, err, feed.ErrNotFound)
}

func TestRequestDeleteNotFoundStillTombstones(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(1, 2)
	svc, e := newService(up, 10)
	_, err := svc.GetInitialView(ctx, 10, "")
	require.NoError(t, err)

	up.mu.Lock()
	delete(up.history, 1)
	up.mu.Unlock()

	err = svc.RequestDelete(ctx, 1)
	assert.ErrorIs(t, err, feed.ErrNotFound)
	rec, _ := e.Store().Get(1)
	assert.True(t, rec.Tombstoned)
}

func TestRequestDeleteUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(1)
	svc, e := newService(up, 10)
	_, err := svc.GetInitialView(ctx, 10, "")
	require.NoError(t, err)

	up.opErr = feed.ErrUpstreamUnavailable
	err = svc.RequestDelete(ctx, 1)
	assert.ErrorIs(t, err, feed.ErrUpstreamUnavailable)
	rec, _ := e.Store().Get(1)
	assert.False(t, rec.Tombstoned)
}

func TestRequestReactionToggle(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(1)
	svc, e := newService(up, 10)
	_, err := svc.GetInitialView(ctx, 10, "")
	require.NoError(t, err)

	added, err := svc.RequestReactionToggle(ctx, 1, "👍")
	require.NoError(t, err)
	assert.True(t, added)
	rec, _ := e.Store().Get(1)
	assert.Equal(t, transcript.Reaction{Count: 1, Me: true}, rec.Reactions["👍"])

	added, err = svc.RequestReactionToggle(ctx, 1, "👍")
	require.NoError(t, err)
	assert.False(t, added)
	rec, _ = e.Store().Get(1)
	assert.NotContains(t, rec.Reactions, "👍")

	assert.Equal(t, []string{"1:👍"}, up.added)
	assert.Equal(t, []string{"1:👍"}, up.removed)
}

func TestExportAll(t *testing.T) {
	ctx := context.Background()
	ids := make([]uint64, 0, 25)
	for i := uint64(1); i <= 25; i++ {
		ids = append(ids, i)
	}
	svc, e := newService(newFakeUpstream(ids...), 10)

	all, err := svc.ExportAll(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 25)
	assert.Equal(t, uint64(1), uint64(all[0].ID))
	assert.True(t, e.Exhausted())
}

func TestExportAllEmptyChannel(t *testing.T) {
	up := newFakeUpstream()
	svc, e := newService(up, 10)

	all, err := svc.ExportAll(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.True(t, e.Synced())
	assert.Equal(t, 1, up.fetchCount())
}

func TestExportAllAfterEmptyInitialLoad(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream()
	svc, e := newService(up, 2)
	_, err := e.InitialLoad(ctx, 2)
	require.NoError(t, err)

	for id := uint64(1); id <= 5; id++ {
		up.add(msg(id, "m"))
	}
	_, err = svc.GetInitialView(ctx, 2, "")
	require.NoError(t, err)

	all, err := svc.ExportAll(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, recIDs(all))
	assert.True(t, e.Exhausted())
}

func TestGetOlderUnknownBefore(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(1, 2, 3, 4, 5, 6)
	svc, _ := newService(up, 3)
	_, err := svc.GetInitialView(ctx, 3, "")
	require.NoError(t, err)
	fetches := up.fetchCount()

	view, err := svc.GetOlder(ctx, 999, 3)
	require.NoError(t, err)
	assert.NotNil(t, view.Records)
	assert.Empty(t, view.Records)
	assert.False(t, view.Exhausted)
	assert.True(t, view.HasOlder)
	assert.Equal(t, fetches, up.fetchCount())
}
