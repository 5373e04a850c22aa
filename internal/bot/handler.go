package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/hordalan/checkin-bot/internal/domain"
	"github.com/hordalan/checkin-bot/internal/services"
	"github.com/hordalan/checkin-bot/internal/sysutil"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Reply texts.
const (
	msgCheckin         = "Checkin registered."
	msgCheckoutNoWhy   = "Checkout registered. Tip: Run the command again with an argument saying why."
	msgCheckoutWithFmt = "Checkout registered with message \"%s\""
	msgTooLongFmt      = "That message is too long (max %d characters). Nothing was changed."
	msgNoIdentity      = "Could not tell who sent this command."
	msgUnknown         = "Unknown command."
	msgFailed          = "Something went wrong while updating the status. Please try again."
)

// PresenceSetter applies presence changes.
type PresenceSetter interface {
	SetPresence(ctx context.Context, id services.Identity, present bool, message *string) (*domain.PresenceState, error)
}

// StatusRenderer republishes a channel's status board.
type StatusRenderer interface {
	Render(ctx context.Context, ch services.Channel, headerExtra string) (*services.RenderResult, error)
}

// Handler turns slash command interactions into presence updates and
// renders. One Handler serves all guilds.
type Handler struct {
	Session  Session
	Presence PresenceSetter
	Status   StatusRenderer
	// Receipts drops redelivered interactions; nil disables the check.
	Receipts ReceiptStore

	// EphemeralTTL is how long acknowledgments stay visible; 0 keeps them.
	EphemeralTTL time.Duration
	// Timeout bounds one interaction's handling; 0 means no bound.
	Timeout time.Duration
	// MaxMessageRunes is quoted back when a checkout message is rejected.
	MaxMessageRunes int

	// AfterFunc schedules ephemeral cleanup; defaults to tracked
	// time.AfterFunc timers that Close stops.
	AfterFunc func(d time.Duration, f func())

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

// Close stops pending ephemeral cleanups so none fire against a closed
// session, and reports how many were dropped. Later schedules are ignored.
func (h *Handler) Close() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	n := 0
	for t := range h.timers {
		if t.Stop() {
			n++
		}
	}
	h.timers = nil
	return n
}

func (h *Handler) pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.timers)
}

// OnInteraction is the discordgo event handler for InteractionCreate.
func (h *Handler) OnInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	ctx := context.Background()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	_ = h.Handle(ctx, ic.Interaction)
}

// Handle processes one interaction. Non-command interactions are ignored.
// The returned error has already been logged and, where possible, reported
// to the invoking user.
func (h *Handler) Handle(ctx context.Context, i *discordgo.Interaction) error {
	if i == nil || i.Type != discordgo.InteractionApplicationCommand {
		return nil
	}
	start := time.Now()
	data := i.ApplicationCommandData()
	id := identityOf(i)
	label := commandLabel(data.Name)

	lg := log.With().
		Str("interaction_id", i.ID).
		Str("command", data.Name).
		Str("user_id", id.ExternalID).
		Str("guild_id", i.GuildID).
		Str("channel_id", i.ChannelID).
		Logger()
	ctx = lg.WithContext(ctx)

	ctx, span := otel.Tracer("bot/Handler").Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("interaction.id", i.ID),
			attribute.String("command", data.Name),
			attribute.String("channel.id", i.ChannelID),
		),
	)
	defer span.End()

	outcome, err := h.dispatch(ctx, i, data, id)

	latency := time.Since(start)
	commandsTotal.WithLabelValues(label, outcome).Inc()
	commandDuration.WithLabelValues(label).Observe(latency.Seconds())

	ev := lg.Info()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		ev = lg.Error().Err(err)
	}
	ev.Str("outcome", outcome).Dur("latency", latency).Msg("command handled")
	return err
}

func (h *Handler) dispatch(ctx context.Context, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData, id services.Identity) (string, error) {
	if h.Receipts != nil {
		fresh, err := h.Receipts.Claim(ctx, i.ID, data.Name, id.ExternalID)
		if err != nil {
			h.replyFailure(ctx, i)
			return outcomeError, err
		}
		if !fresh {
			return outcomeDuplicate, nil
		}
	}

	switch data.Name {
	case CmdCheckin:
		return h.setAndRender(ctx, i, id, true, nil)
	case CmdCheckout:
		return h.setAndRender(ctx, i, id, false, messageOption(data))
	case CmdStatus:
		pub := &interactionPublisher{s: h.Session, i: i}
		if err := h.render(ctx, i, pub, ""); err != nil {
			if !pub.responded {
				h.replyFailure(ctx, i)
			}
			return outcomeError, err
		}
		return outcomeOK, nil
	default:
		if err := h.ack(ctx, i, msgUnknown); err != nil {
			return outcomeError, err
		}
		return outcomeUnknown, nil
	}
}

func (h *Handler) setAndRender(ctx context.Context, i *discordgo.Interaction, id services.Identity, present bool, message *string) (string, error) {
	st, err := h.Presence.SetPresence(ctx, id, present, message)
	switch {
	case errors.Is(err, services.ErrMessageTooLong):
		return outcomeRejected, h.ack(ctx, i, fmt.Sprintf(msgTooLongFmt, h.MaxMessageRunes))
	case errors.Is(err, services.ErrMissingIdentity):
		return outcomeRejected, h.ack(ctx, i, msgNoIdentity)
	case err != nil:
		h.replyFailure(ctx, i)
		return outcomeError, err
	}

	if err := h.ack(ctx, i, ackText(present, st.Message)); err != nil {
		return outcomeError, err
	}
	pub := &channelPublisher{s: h.Session, channelID: i.ChannelID}
	if err := h.render(ctx, i, pub, services.EventLine(id.ExternalID, present)); err != nil {
		return outcomeError, err
	}
	return outcomeOK, nil
}

func (h *Handler) render(ctx context.Context, i *discordgo.Interaction, pub services.Publisher, headerExtra string) error {
	res, err := h.Status.Render(ctx, services.Channel{GuildID: i.GuildID, ID: i.ChannelID, Publisher: pub}, headerExtra)
	if err != nil {
		rendersTotal.WithLabelValues(outcomeError).Inc()
		return err
	}
	rendersTotal.WithLabelValues(outcomeOK).Inc()
	if res.Stale != services.StaleNone {
		staleDeletesTotal.WithLabelValues(string(res.Stale)).Inc()
	}
	return nil
}

// ack replies to the invoker only and schedules the reply's removal.
func (h *Handler) ack(ctx context.Context, i *discordgo.Interaction, content string) error {
	err := h.Session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	if h.EphemeralTTL > 0 {
		h.after(h.EphemeralTTL, func() {
			if err := h.Session.InteractionResponseDelete(i); err != nil && !IsNotFound(err) {
				log.Warn().Err(err).Str("interaction_id", i.ID).Msg("could not delete ephemeral reply")
			}
		})
	}
	return nil
}

func (h *Handler) replyFailure(ctx context.Context, i *discordgo.Interaction) {
	if err := h.ack(ctx, i, msgFailed); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("could not report failure to user")
	}
}

func (h *Handler) after(d time.Duration, f func()) {
	if h.AfterFunc != nil {
		h.AfterFunc(d, f)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if h.timers == nil {
		h.timers = make(map[*time.Timer]struct{})
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		h.mu.Lock()
		delete(h.timers, t)
		h.mu.Unlock()
		f()
	})
	h.timers[t] = struct{}{}
}

func ackText(present bool, message *string) string {
	switch {
	case present:
		return msgCheckin
	case message != nil:
		return fmt.Sprintf(msgCheckoutWithFmt, *message)
	default:
		return msgCheckoutNoWhy
	}
}

// identityOf prefers the guild member (which carries the nick) and falls back
// to the DM user.
func identityOf(i *discordgo.Interaction) services.Identity {
	var (
		u    *discordgo.User
		nick string
	)
	switch {
	case i.Member != nil && i.Member.User != nil:
		u, nick = i.Member.User, i.Member.Nick
	case i.User != nil:
		u = i.User
	default:
		return services.Identity{}
	}
	display := sysutil.FirstNonEmpty(nick, u.GlobalName, u.Username)
	return services.Identity{
		ExternalID:  u.ID,
		Name:        u.Username,
		DisplayName: &display,
	}
}

func messageOption(data discordgo.ApplicationCommandInteractionData) *string {
	for _, o := range data.Options {
		if o.Name == optMessage && o.Type == discordgo.ApplicationCommandOptionString {
			v := o.StringValue()
			return &v
		}
	}
	return nil
}
