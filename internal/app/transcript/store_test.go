package transcript_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatviewer/internal/app/transcript"
)

func rec(id uint64, body string) transcript.MessageRecord {
	return transcript.MessageRecord{
		ID:                transcript.Snowflake(id),
		ChannelID:         "100",
		AuthorID:          "42",
		AuthorDisplayName: "alice",
		Body:              body,
		CreatedAt:         time.Unix(int64(id), 0).UTC(),
	}
}

func ids(recs []transcript.MessageRecord) []uint64 {
	out := make([]uint64, 0, len(recs))
	for _, r := range recs {
		out = append(out, uint64(r.ID))
	}
	return out
}

func sf(v uint64) *transcript.Snowflake {
	s := transcript.Snowflake(v)
	return &s
}

func TestRangeAscendingRegardlessOfInsertOrder(t *testing.T) {
	s := transcript.NewStore(nil)
	for _, id := range []uint64{7, 3, 9, 1, 5} {
		s.Upsert(rec(id, "x"))
	}

	got, err := s.Range(nil, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 5, 7, 9}, ids(got))
}

func TestRangeBounds(t *testing.T) {
	s := transcript.NewStore(nil)
	for id := uint64(1); id <= 10; id++ {
		s.Upsert(rec(id, "x"))
	}

	newest, err := s.Range(nil, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{8, 9, 10}, ids(newest))

	before, err := s.Range(sf(5), nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4}, ids(before))

	after, err := s.Range(nil, sf(5), 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{6, 7}, ids(after))

	empty, err := s.Range(nil, sf(10), 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRangeEdgeCases(t *testing.T) {
	s := transcript.NewStore(nil)
	for id := uint64(1); id <= 4; id++ {
		s.Upsert(rec(id, "x"))
	}

	_, err := s.Range(sf(2), sf(3), 5)
	assert.ErrorIs(t, err, transcript.ErrConflictingBounds)

	got, err := s.Range(nil, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	unknown, err := s.Range(sf(99), nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4}, ids(unknown), "unknown bound is ignored")
}

func TestUpsertIdempotent(t *testing.T) {
	s := transcript.NewStore(nil)
	r := rec(5, "hello")
	edited := time.Unix(99, 0).UTC()
	r.EditedAt = &edited
	r.Reactions = map[string]transcript.Reaction{"👍": {Count: 2}}
	r.Attachments = []transcript.Attachment{{URL: "http://x/a.png", Name: "a.png", MimeKind: "image/png"}}

	assert.True(t, s.Upsert(r))
	once := s.All()
	assert.False(t, s.Upsert(r))
	assert.Equal(t, once, s.All())
}

func TestUpsertMergesButKeepsIdentity(t *testing.T) {
	s := transcript.NewStore(nil)
	s.Upsert(rec(5, "hello"))

	edited := time.Unix(500, 0).UTC()
	update := rec(5, "hello, edited")
	update.CreatedAt = time.Unix(1, 0).UTC()
	update.EditedAt = &edited
	update.Reactions = map[string]transcript.Reaction{"🔥": {Count: 1}}
	s.Upsert(update)

	got, ok := s.Get(5)
	require.True(t, ok)
	assert.Equal(t, "hello, edited", got.Body)
	assert.Equal(t, time.Unix(5, 0).UTC(), got.CreatedAt)
	require.NotNil(t, got.EditedAt)
	assert.Equal(t, edited, *got.EditedAt)
	assert.Equal(t, 1, got.Reactions["🔥"].Count)
}

func TestTombstonePreservesContent(t *testing.T) {
	s := transcript.NewStore(nil)
	s.Upsert(rec(11, "hi"))

	assert.True(t, s.Tombstone(11, nil))
	got, ok := s.Get(11)
	require.True(t, ok)
	assert.True(t, got.Tombstoned)
	assert.Equal(t, "hi", got.Body)
	assert.Equal(t, "42", got.AuthorID)
	assert.Equal(t, time.Unix(11, 0).UTC(), got.CreatedAt)

	s.Upsert(rec(11, "hi"))
	got, _ = s.Get(11)
	assert.True(t, got.Tombstoned, "upsert without tombstone must not clear it")
}

func TestTombstoneUnknown(t *testing.T) {
	s := transcript.NewStore(nil)

	assert.False(t, s.Tombstone(3, nil))
	assert.Equal(t, 0, s.Len())

	snap := rec(3, "gone")
	assert.True(t, s.Tombstone(3, &snap))
	got, ok := s.Get(3)
	require.True(t, ok)
	assert.True(t, got.Tombstoned)
	assert.Equal(t, "gone", got.Body)
}

func TestFilterByContent(t *testing.T) {
	s := transcript.NewStore(nil)
	s.Upsert(rec(1, "Hello World"))
	s.Upsert(rec(2, "nothing here"))
	s.Upsert(rec(3, "hello again"))
	s.Tombstone(3, nil)

	var live []uint64
	for r := range s.FilterByContent("HELLO", false) {
		live = append(live, uint64(r.ID))
	}
	assert.Equal(t, []uint64{1}, live)

	var all []uint64
	for r := range s.FilterByContent("hello", true) {
		all = append(all, uint64(r.ID))
	}
	assert.Equal(t, []uint64{1, 3}, all)
}

func TestCloneIsolation(t *testing.T) {
	s := transcript.NewStore(nil)
	r := rec(1, "x")
	r.Reactions = map[string]transcript.Reaction{"a": {Count: 1}}
	s.Upsert(r)

	got, _ := s.Get(1)
	got.Reactions["a"] = transcript.Reaction{Count: 100}

	again, _ := s.Get(1)
	assert.Equal(t, 1, again.Reactions["a"].Count)
}

func TestSetReaction(t *testing.T) {
	r := rec(1, "x")
	r.SetReaction("👍", true)
	assert.Equal(t, transcript.Reaction{Count: 1, Me: true}, r.Reactions["👍"])

	r.SetReaction("👍", true)
	assert.Equal(t, 1, r.Reactions["👍"].Count)

	r.SetReaction("👍", false)
	_, ok := r.Reactions["👍"]
	assert.False(t, ok)
}
