package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageRowConversion(t *testing.T) {
	edited := time.Unix(200, 0).UTC()
	parent := Snowflake(5)
	rec := MessageRecord{
		ID:              9,
		ChannelID:       "77",
		AuthorID:        "1",
		Body:            "hi",
		CreatedAt:       time.Unix(100, 0).UTC(),
		EditedAt:        &edited,
		ParentID:        &parent,
		AuthorRoleColor: "#ff0000",
		Reactions:       map[string]Reaction{"👍": {Count: 1, Me: true}},
		Tombstoned:      true,
	}

	row := rowFromRecord(rec)
	assert.Equal(t, uint64(9), row.ID)
	if assert.NotNil(t, row.ParentID) {
		assert.Equal(t, uint64(5), *row.ParentID)
	}
	assert.Equal(t, rec, row.record())

	rec.ParentID = nil
	assert.Nil(t, rowFromRecord(rec).ParentID)
}
