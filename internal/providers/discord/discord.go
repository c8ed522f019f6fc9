package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatviewer/internal/app/feed"
	"chatviewer/internal/app/transcript"
	"chatviewer/internal/metrics"
	"chatviewer/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// maxPageSize is the platform's limit for a single history request.
const maxPageSize = 100

// Provider is the bot session bound to a single channel. It implements
// feed.Upstream over REST and publishes gateway events on the event bus.
type Provider struct {
	session   *discordgo.Session
	channelID string
	guildID   string
	roles     *RoleResolver
	logger    *zap.SugaredLogger
	removers  []func()
}

func NewDiscordProvider(token, channelID string, cache Cache, logger *zap.Logger) (*Provider, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentGuildMembers
	// Keeps deleted messages available as BeforeDelete snapshots.
	session.State.MaxMessageCount = 500

	if cache == nil {
		cache = NewMemoryCache(5 * time.Minute)
	}

	return &Provider{
		session:   session,
		channelID: channelID,
		roles:     NewRoleResolver(session, cache),
		logger:    logger.Sugar().With("component", "discord", "channel_id", channelID),
	}, nil
}

// Open connects to the gateway, resolves the channel's guild and starts
// publishing message events for the channel onto bus.
func (p *Provider) Open(ctx context.Context, bus *utils.EventBus) error {
	p.removers = append(p.removers,
		p.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			p.logger.Infow("Discord session ready", "user", r.User.Username, "guilds", len(r.Guilds))
		}),
		p.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			p.publishMessage(bus, feed.EventMessageCreated, m.Message)
		}),
		p.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
			p.publishMessage(bus, feed.EventMessageUpdated, m.Message)
		}),
		p.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageDelete) {
			p.publishDeletion(bus, m)
		}),
	)

	if err := p.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	ch, err := p.session.Channel(p.channelID, discordgo.WithContext(ctx))
	if err != nil {
		p.logger.Warnw("Failed to resolve channel guild, roles disabled", "error", err)
		return nil
	}
	p.guildID = ch.GuildID
	p.logger.Infow("Discord gateway connected", "guild_id", ch.GuildID, "channel", ch.Name)
	return nil
}

func (p *Provider) Close() error {
	for _, remove := range p.removers {
		remove()
	}
	p.removers = nil
	return p.session.Close()
}

// Ping reports whether the gateway session is ready.
func (p *Provider) Ping(_ context.Context) error {
	p.session.RLock()
	ready := p.session.DataReady
	p.session.RUnlock()
	if !ready {
		return errors.New("gateway session not ready")
	}
	return nil
}

func (p *Provider) FetchPage(ctx context.Context, q feed.PageQuery) ([]transcript.MessageRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	var before, after string
	if q.Before != 0 {
		before = q.Before.String()
	}
	if q.After != 0 {
		after = q.After.String()
	}

	msgs, err := p.session.ChannelMessages(p.channelID, limit, before, after, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("fetch channel messages", err)
	}

	recs := make([]transcript.MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		rec, err := p.record(ctx, m)
		if err != nil {
			metrics.DroppedRecords.Inc()
			p.logger.Warnw("Dropping malformed message", "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	sortAscending(recs)
	return recs, nil
}

func (p *Provider) DeleteMessage(ctx context.Context, id transcript.Snowflake) error {
	err := p.session.ChannelMessageDelete(p.channelID, id.String(), discordgo.WithContext(ctx))
	return mapError("delete message", err)
}

func (p *Provider) AddReaction(ctx context.Context, id transcript.Snowflake, emoji string) error {
	err := p.session.MessageReactionAdd(p.channelID, id.String(), emoji, discordgo.WithContext(ctx))
	return mapError("add reaction", err)
}

func (p *Provider) RemoveReaction(ctx context.Context, id transcript.Snowflake, emoji string) error {
	err := p.session.MessageReactionRemove(p.channelID, id.String(), emoji, "@me", discordgo.WithContext(ctx))
	return mapError("remove reaction", err)
}

func (p *Provider) record(ctx context.Context, m *discordgo.Message) (transcript.MessageRecord, error) {
	if m == nil || m.Author == nil {
		return ToRecord(m, RoleInfo{})
	}

	var memberRoles []string
	if m.Member != nil {
		memberRoles = m.Member.Roles
	}
	guildID := m.GuildID
	if guildID == "" {
		guildID = p.guildID
	}

	role, err := p.roles.Resolve(ctx, guildID, m.Author.ID, memberRoles)
	if err != nil {
		p.logger.Debugw("Role lookup failed", "author_id", m.Author.ID, "error", err)
	}
	return ToRecord(m, role)
}

func (p *Provider) publishMessage(bus *utils.EventBus, event string, m *discordgo.Message) {
	if m == nil || m.ChannelID != p.channelID {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec, err := p.record(ctx, m)
	if err != nil {
		metrics.DroppedRecords.Inc()
		p.logger.Warnw("Dropping malformed live message", "event", event, "message_id", m.ID, "error", err)
		return
	}
	if !bus.Publish(event, rec) {
		p.logger.Warnw("Event bus full, live message dropped", "event", event, "message_id", m.ID)
	}
}

func (p *Provider) publishDeletion(bus *utils.EventBus, m *discordgo.MessageDelete) {
	if m.Message == nil || m.ChannelID != p.channelID {
		return
	}
	id, err := transcript.ParseSnowflake(m.ID)
	if err != nil {
		metrics.DroppedRecords.Inc()
		p.logger.Warnw("Dropping deletion with invalid id", "message_id", m.ID)
		return
	}

	d := feed.Deletion{ID: id}
	if m.BeforeDelete != nil && m.BeforeDelete.Author != nil {
		if snap, err := ToRecord(m.BeforeDelete, RoleInfo{}); err == nil {
			d.Snapshot = &snap
		}
	}
	if !bus.Publish(feed.EventMessageDeleted, d) {
		p.logger.Warnw("Event bus full, deletion dropped", "message_id", m.ID)
	}
}
