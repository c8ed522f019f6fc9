package transcript_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatviewer/internal/app/transcript"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "transcript.json")

	src := transcript.NewStore(transcript.NewFilePersister(path))
	edited := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	parent := transcript.Snowflake(1)

	first := rec(1, "root")
	second := rec(2, "reply")
	second.ParentID = &parent
	second.EditedAt = &edited
	second.AuthorRoleName = "Admin"
	second.AuthorRoleColor = "#ff0000"
	second.Attachments = []transcript.Attachment{{URL: "http://cdn/f.txt", Name: "f.txt", MimeKind: "text/plain"}}
	second.Reactions = map[string]transcript.Reaction{"👍": {Count: 3, Me: true}}
	third := rec(3, "bye")

	src.Upsert(third)
	src.Upsert(first)
	src.Upsert(second)
	src.Tombstone(3, nil)
	require.NoError(t, src.Save(ctx))

	dst := transcript.NewStore(transcript.NewFilePersister(path))
	n, err := dst.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, src.All(), dst.All())
}

func TestLoadMissingFile(t *testing.T) {
	s := transcript.NewStore(transcript.NewFilePersister(filepath.Join(t.TempDir(), "none.json")))
	n, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := transcript.NewStore(transcript.NewFilePersister(path))
	_, err := s.Load(context.Background())
	assert.Error(t, err)
}

func TestSnowflakeJSON(t *testing.T) {
	r := rec(1234567890123456789, "x")
	r.CreatedAt = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"1234567890123456789"`)

	var back transcript.MessageRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, transcript.Snowflake(1234567890123456789), back.ID)
	assert.True(t, r.CreatedAt.Equal(back.CreatedAt))
}

func TestParseSnowflake(t *testing.T) {
	_, err := transcript.ParseSnowflake("abc")
	assert.Error(t, err)
	_, err = transcript.ParseSnowflake("0")
	assert.Error(t, err)
	v, err := transcript.ParseSnowflake("42")
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())
}
