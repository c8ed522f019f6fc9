package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// RoleInfo is the author's highest guild role. Color is "#rrggbb", empty
// when the author has no coloured role.
type RoleInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type guildRole struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    int    `json:"color"`
	Position int    `json:"position"`
}

type memberSource interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
}

// RoleResolver looks up and caches the highest role of message authors.
type RoleResolver struct {
	source memberSource
	cache  Cache
}

func NewRoleResolver(source memberSource, cache Cache) *RoleResolver {
	return &RoleResolver{source: source, cache: cache}
}

// Resolve returns the author's highest role. memberRoles, when non-nil, are
// the role ids delivered with the message and save a member lookup.
func (r *RoleResolver) Resolve(ctx context.Context, guildID, userID string, memberRoles []string) (RoleInfo, error) {
	if guildID == "" || userID == "" {
		return RoleInfo{}, nil
	}

	key := fmt.Sprintf("chatviewer:role:%s:%s", guildID, userID)
	var info RoleInfo
	if ok, err := r.cache.GetJSON(ctx, key, &info); err == nil && ok {
		return info, nil
	}

	if memberRoles == nil {
		member, err := r.source.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			return RoleInfo{}, mapError("fetch guild member", err)
		}
		memberRoles = member.Roles
	}

	roles, err := r.guildRoles(ctx, guildID)
	if err != nil {
		return RoleInfo{}, err
	}

	info = highestRole(guildID, memberRoles, roles)
	_ = r.cache.SetJSON(ctx, key, info)
	return info, nil
}

func (r *RoleResolver) guildRoles(ctx context.Context, guildID string) ([]guildRole, error) {
	key := "chatviewer:guild_roles:" + guildID
	var roles []guildRole
	if ok, err := r.cache.GetJSON(ctx, key, &roles); err == nil && ok {
		return roles, nil
	}

	fetched, err := r.source.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("fetch guild roles", err)
	}
	roles = make([]guildRole, 0, len(fetched))
	for _, role := range fetched {
		if role == nil {
			continue
		}
		roles = append(roles, guildRole{ID: role.ID, Name: role.Name, Color: role.Color, Position: role.Position})
	}
	_ = r.cache.SetJSON(ctx, key, roles)
	return roles, nil
}

// highestRole picks the member's role with the greatest position. The
// implicit @everyone role shares the guild id and is skipped.
func highestRole(guildID string, memberRoles []string, roles []guildRole) RoleInfo {
	held := make(map[string]struct{}, len(memberRoles))
	for _, id := range memberRoles {
		held[id] = struct{}{}
	}

	var best *guildRole
	for i := range roles {
		role := &roles[i]
		if role.ID == guildID {
			continue
		}
		if _, ok := held[role.ID]; !ok {
			continue
		}
		if best == nil || role.Position > best.Position {
			best = role
		}
	}
	if best == nil {
		return RoleInfo{}
	}
	return RoleInfo{Name: best.Name, Color: fmt.Sprintf("#%06x", best.Color)}
}
