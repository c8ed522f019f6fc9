package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"chatviewer/internal/app/transcript"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	timeLayout      = "Mon, Jan 2, 03:04:05 PM"
	defaultRoleMark = "⬤"
	defaultRoleHex  = "#ffffff"
	replyIndentPx   = 50
)

// DefaultRoleEmoji marks the well-known staff roles.
var DefaultRoleEmoji = map[string]string{
	"Owner":     "👑",
	"Admin":     "⭐",
	"Moderator": "🔹",
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type AttachmentView struct {
	URL     string
	Name    string
	IsImage bool
}

type ReactionView struct {
	Emoji string
	Count int
	Me    bool
}

type ReplyPreview struct {
	AvatarURL string
	Text      string
}

// Block is a display-ready message.
type Block struct {
	ID          string
	AuthorName  string
	AvatarURL   string
	BubbleStyle template.CSS
	RoleStyle   template.CSS
	RoleEmoji   string
	Timestamp   string
	Relative    string
	Edited      bool
	Body        string
	IsReply     bool
	IndentPx    int
	Reply       *ReplyPreview
	Attachments []AttachmentView
	Reactions   []ReactionView
	Tombstoned  bool
}

// Page is the full transcript view.
type Page struct {
	Title          string
	Blocks         []template.HTML
	Search         string
	OldestID       string
	RefreshSeconds int
	Notice         string
}

// ParentLookup resolves a reply target from already-known records.
type ParentLookup func(id transcript.Snowflake) (transcript.MessageRecord, bool)

type Renderer struct {
	colors    *ColorAssigner
	roleEmoji map[string]string
	loc       *time.Location
	tmpl      *template.Template
}

func NewRenderer(colors *ColorAssigner, roleEmoji map[string]string, loc *time.Location) (*Renderer, error) {
	if roleEmoji == nil {
		roleEmoji = DefaultRoleEmoji
	}
	if loc == nil {
		loc = time.Local
	}
	tmpl, err := template.New("views").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{colors: colors, roleEmoji: roleEmoji, loc: loc, tmpl: tmpl}, nil
}

func (r *Renderer) FormatTime(t time.Time) string {
	if t.IsZero() {
		return "Invalid Date"
	}
	return t.In(r.loc).Format(timeLayout)
}

// Blocks converts records into display blocks, preserving order.
func (r *Renderer) Blocks(recs []transcript.MessageRecord, parents ParentLookup) []Block {
	out := make([]Block, 0, len(recs))
	for _, rec := range recs {
		out = append(out, r.block(rec, parents))
	}
	return out
}

func (r *Renderer) block(rec transcript.MessageRecord, parents ParentLookup) Block {
	color := r.colors.ColorFor(rec.AuthorID + "|" + rec.AuthorAvatarRef)
	name := rec.AuthorDisplayName
	if name == "" {
		name = "Unknown"
	}

	b := Block{
		ID:          rec.ID.String(),
		AuthorName:  name,
		AvatarURL:   rec.AuthorAvatarRef,
		BubbleStyle: template.CSS(fmt.Sprintf("background:linear-gradient(135deg, %s, rgba(0,0,0,0.55))", color.RGBA(0.8))),
		RoleStyle:   template.CSS("color:" + roleColor(rec.AuthorRoleColor)),
		RoleEmoji:   r.emojiFor(rec.AuthorRoleName),
		Timestamp:   r.FormatTime(rec.CreatedAt),
		Edited:      rec.EditedAt != nil,
		Body:        rec.Body,
		Tombstoned:  rec.Tombstoned,
	}
	if !rec.CreatedAt.IsZero() {
		b.Relative = humanize.Time(rec.CreatedAt)
	}

	if rec.ParentID != nil {
		b.IsReply = true
		b.IndentPx = replyIndentPx
		if parents != nil {
			if parent, ok := parents(*rec.ParentID); ok {
				b.Reply = &ReplyPreview{AvatarURL: parent.AuthorAvatarRef, Text: previewText(parent)}
			}
		}
	}

	for _, att := range rec.Attachments {
		name := att.Name
		if name == "" {
			name = "Attachment"
		}
		b.Attachments = append(b.Attachments, AttachmentView{URL: att.URL, Name: name, IsImage: att.IsImage()})
	}

	if len(rec.Reactions) > 0 {
		keys := make([]string, 0, len(rec.Reactions))
		for k := range rec.Reactions {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rv := rec.Reactions[k]
			b.Reactions = append(b.Reactions, ReactionView{Emoji: k, Count: rv.Count, Me: rv.Me})
		}
	}
	return b
}

func previewText(parent transcript.MessageRecord) string {
	if parent.Tombstoned {
		return "[deleted]"
	}
	if parent.Body == "" {
		return "[Embed/Attachment]"
	}
	return parent.Body
}

func roleColor(c string) string {
	if !hexColor.MatchString(c) || strings.EqualFold(c, "#000000") {
		return defaultRoleHex
	}
	return strings.ToLower(c)
}

func (r *Renderer) emojiFor(role string) string {
	if e, ok := r.roleEmoji[role]; ok {
		return e
	}
	return defaultRoleMark
}

// HTML renders each block to an HTML fragment.
func (r *Renderer) HTML(blocks []Block) ([]template.HTML, error) {
	out := make([]template.HTML, 0, len(blocks))
	var buf bytes.Buffer
	for _, b := range blocks {
		buf.Reset()
		if err := r.tmpl.ExecuteTemplate(&buf, "block", b); err != nil {
			return nil, fmt.Errorf("failed to render message %s: %w", b.ID, err)
		}
		out = append(out, template.HTML(buf.String()))
	}
	return out, nil
}

func (r *Renderer) WritePage(w io.Writer, p Page) error {
	return r.tmpl.ExecuteTemplate(w, "page", p)
}

// TextLine is the plain-text export form of a record.
func (r *Renderer) TextLine(rec transcript.MessageRecord) string {
	name := rec.AuthorDisplayName
	if name == "" {
		name = "Unknown"
	}
	body := strings.ReplaceAll(rec.Body, "\r\n", " ")
	body = strings.ReplaceAll(body, "\n", " ")
	if rec.Tombstoned {
		body = strings.TrimSpace("[deleted] " + body)
	}
	return fmt.Sprintf("[%s] %s: %s", r.FormatTime(rec.CreatedAt), name, body)
}
