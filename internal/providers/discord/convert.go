package discord

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"chatviewer/internal/app/feed"
	"chatviewer/internal/app/transcript"

	"github.com/bwmarrin/discordgo"
)

const avatarSize = "128"

// ToRecord converts a platform message into a transcript record. Messages
// without an author or with an unparsable id are malformed.
func ToRecord(m *discordgo.Message, role RoleInfo) (transcript.MessageRecord, error) {
	if m == nil || m.Author == nil {
		return transcript.MessageRecord{}, fmt.Errorf("%w: message without author", feed.ErrMalformedRecord)
	}
	id, err := transcript.ParseSnowflake(m.ID)
	if err != nil {
		return transcript.MessageRecord{}, fmt.Errorf("%w: %v", feed.ErrMalformedRecord, err)
	}

	rec := transcript.MessageRecord{
		ID:                id,
		ChannelID:         m.ChannelID,
		AuthorID:          m.Author.ID,
		AuthorDisplayName: displayName(m.Author),
		AuthorAvatarRef:   m.Author.AvatarURL(avatarSize),
		AuthorRoleName:    role.Name,
		AuthorRoleColor:   role.Color,
		Body:              m.Content,
		CreatedAt:         m.Timestamp.UTC(),
	}
	if m.EditedTimestamp != nil {
		t := m.EditedTimestamp.UTC()
		rec.EditedAt = &t
	}
	if ref := m.MessageReference; ref != nil && ref.MessageID != "" {
		if parent, err := transcript.ParseSnowflake(ref.MessageID); err == nil {
			rec.ParentID = &parent
		}
	}

	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		rec.Attachments = append(rec.Attachments, transcript.Attachment{
			URL:      a.URL,
			Name:     a.Filename,
			MimeKind: a.ContentType,
		})
	}

	for _, r := range m.Reactions {
		if r == nil || r.Emoji == nil {
			continue
		}
		if rec.Reactions == nil {
			rec.Reactions = make(map[string]transcript.Reaction, len(m.Reactions))
		}
		rec.Reactions[r.Emoji.APIName()] = transcript.Reaction{Count: r.Count, Me: r.Me}
	}
	return rec, nil
}

func displayName(u *discordgo.User) string {
	if u.Username != "" {
		return u.Username
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return "Unknown"
}

func sortAscending(recs []transcript.MessageRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}

// mapError classifies a REST failure: a 404 becomes feed.ErrNotFound and
// everything else feed.ErrUpstreamUnavailable.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("failed to %s: %w", op, feed.ErrNotFound)
	}
	return fmt.Errorf("failed to %s: %w: %v", op, feed.ErrUpstreamUnavailable, err)
}
