package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Slash command names.
const (
	CmdCheckin  = "checkin"
	CmdCheckout = "checkout"
	CmdStatus   = "checkinstatus"

	optMessage = "message"
)

// Commands returns the slash commands the bot serves.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        CmdCheckin,
			Description: "Mark yourself as on the LAN right now.",
		},
		{
			Name:        CmdCheckout,
			Description: "Mark yourself as away from the LAN.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optMessage,
					Description: "Message (why are you away/when are you back?)",
					Required:    false,
				},
			},
		},
		{
			Name:        CmdStatus,
			Description: "List current status",
		},
	}
}

// Register overwrites the application's commands in every guild listed, or
// globally when guildIDs is empty.
func Register(ctx context.Context, s Session, appID string, guildIDs []string) error {
	if appID == "" {
		return errors.New("register commands: missing application id")
	}
	targets := guildIDs
	if len(targets) == 0 {
		targets = []string{""}
	}
	cmds := Commands()
	for _, g := range targets {
		if _, err := s.ApplicationCommandBulkOverwrite(appID, g, cmds, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("register commands in guild %q: %w", g, err)
		}
		log.Info().Str("guild_id", g).Int("commands", len(cmds)).Msg("slash commands registered")
	}
	return nil
}
