// Package bot adapts Discord interactions to the presence and status
// services. It owns command definitions and registration, the interaction
// handler, the publishers a render writes through, and the command metrics.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/hordalan/checkin-bot/internal/services"
)

// Session is the subset of *discordgo.Session the bot calls.
type Session interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponse(i *discordgo.Interaction, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseEdit(i *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseDelete(i *discordgo.Interaction, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

var _ Session = (*discordgo.Session)(nil)

// IsNotFound reports whether err is Discord saying the message no longer
// exists.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, services.ErrMessageGone) {
		return true
	}
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Message != nil && rerr.Message.Code == discordgo.ErrCodeUnknownMessage {
		return true
	}
	return rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound
}

// Deleter removes channel messages and maps "unknown message" to
// services.ErrMessageGone.
type Deleter struct {
	Session Session
}

// DeleteMessage implements services.MessageDeleter.
func (d Deleter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := d.Session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if IsNotFound(err) {
		return fmt.Errorf("delete message %s: %w", messageID, services.ErrMessageGone)
	}
	return err
}

// channelPublisher posts regular messages into a channel.
type channelPublisher struct {
	s         Session
	channelID string
}

func (p *channelPublisher) Post(ctx context.Context, content string) (string, error) {
	m, err := p.s.ChannelMessageSend(p.channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (p *channelPublisher) Edit(ctx context.Context, messageID, content string) error {
	_, err := p.s.ChannelMessageEdit(p.channelID, messageID, content, discordgo.WithContext(ctx))
	return err
}

// interactionPublisher publishes through the interaction's own public reply.
// Discord needs the initial response before the message id is known.
type interactionPublisher struct {
	s         Session
	i         *discordgo.Interaction
	responded bool
}

func (p *interactionPublisher) Post(ctx context.Context, content string) (string, error) {
	err := p.s.InteractionRespond(p.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	p.responded = true
	m, err := p.s.InteractionResponse(p.i, discordgo.WithContext(ctx))
	if err != nil {
		// Without its id the reply cannot be tracked or retired later.
		if derr := p.s.InteractionResponseDelete(p.i, discordgo.WithContext(ctx)); derr != nil && !IsNotFound(derr) {
			log.Ctx(ctx).Warn().Err(derr).Str("interaction_id", p.i.ID).Msg("orphaned status reply")
		}
		return "", err
	}
	return m.ID, nil
}

func (p *interactionPublisher) Edit(ctx context.Context, _ string, content string) error {
	_, err := p.s.InteractionResponseEdit(p.i, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx))
	return err
}
