package transcript

import (
	"fmt"
	"strconv"
	"time"
)

// Snowflake is a platform-assigned message id. Ids are creation ordered, so
// comparing them numerically orders records chronologically.
type Snowflake uint64

func ParseSnowflake(s string) (Snowflake, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("invalid snowflake %q: zero", s)
	}
	return Snowflake(v), nil
}

func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

func (s Snowflake) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Snowflake) UnmarshalText(b []byte) error {
	v, err := ParseSnowflake(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Attachment struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeKind string `json:"mime_kind"`
}

// IsImage reports whether the attachment should be rendered inline.
func (a Attachment) IsImage() bool {
	return len(a.MimeKind) >= 5 && a.MimeKind[:5] == "image"
}

type Reaction struct {
	Count int  `json:"count"`
	Me    bool `json:"me"`
}

type MessageRecord struct {
	ID                Snowflake           `json:"id"`
	ChannelID         string              `json:"channel_id"`
	AuthorID          string              `json:"author_id"`
	AuthorDisplayName string              `json:"author_display_name"`
	AuthorAvatarRef   string              `json:"author_avatar_ref"`
	AuthorRoleName    string              `json:"author_role_name,omitempty"`
	AuthorRoleColor   string              `json:"author_role_color,omitempty"`
	Body              string              `json:"body"`
	CreatedAt         time.Time           `json:"created_at"`
	EditedAt          *time.Time          `json:"edited_at,omitempty"`
	ParentID          *Snowflake          `json:"parent_id,omitempty"`
	Attachments       []Attachment        `json:"attachments,omitempty"`
	Reactions         map[string]Reaction `json:"reactions,omitempty"`
	Tombstoned        bool                `json:"tombstoned"`
}

// Clone returns a deep copy so callers never share slices or maps with the store.
func (m MessageRecord) Clone() MessageRecord {
	out := m
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	if m.ParentID != nil {
		p := *m.ParentID
		out.ParentID = &p
	}
	if m.Attachments != nil {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.Reactions != nil {
		out.Reactions = make(map[string]Reaction, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = v
		}
	}
	return out
}

// SetReaction adjusts the local view of a reaction after the bot added
// (me=true) or removed (me=false) its own reaction.
func (m *MessageRecord) SetReaction(emoji string, me bool) {
	if m.Reactions == nil {
		m.Reactions = make(map[string]Reaction)
	}
	r := m.Reactions[emoji]
	switch {
	case me && !r.Me:
		r.Count++
	case !me && r.Me:
		r.Count--
	}
	r.Me = me
	if r.Count <= 0 {
		delete(m.Reactions, emoji)
		return
	}
	m.Reactions[emoji] = r
}
