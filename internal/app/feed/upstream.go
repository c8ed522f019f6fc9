package feed

import (
	"context"

	"chatviewer/internal/app/transcript"
)

// PageQuery selects a page of channel history. Zero ids mean unbounded.
type PageQuery struct {
	Limit  int
	Before transcript.Snowflake
	After  transcript.Snowflake
}

// Upstream is the chat platform as seen by the sync engine. Implementations
// are bound to a single channel and return pages in ascending id order.
type Upstream interface {
	FetchPage(ctx context.Context, q PageQuery) ([]transcript.MessageRecord, error)
	DeleteMessage(ctx context.Context, id transcript.Snowflake) error
	AddReaction(ctx context.Context, id transcript.Snowflake, emoji string) error
	RemoveReaction(ctx context.Context, id transcript.Snowflake, emoji string) error
}

// Event bus topics published by upstream adapters.
const (
	EventMessageCreated = "message_created"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
)

// Deletion is the payload of EventMessageDeleted. Snapshot carries the
// platform's cached copy of the message when it has one.
type Deletion struct {
	ID       transcript.Snowflake
	Snapshot *transcript.MessageRecord
}
