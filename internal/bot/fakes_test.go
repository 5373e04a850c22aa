package bot

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hordalan/checkin-bot/internal/repo"
)

// ---------- test helpers ----------

func newBotDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:bot_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type respondCall struct {
	interactionID string
	content       string
	ephemeral     bool
}

type overwriteCall struct {
	appID   string
	guildID string
	names   []string
}

// fakeSession records every Discord call the bot makes.
type fakeSession struct {
	mu sync.Mutex

	nextID int

	responds           []respondCall
	interactionEdits   map[string][]string // interaction id -> contents
	interactionDeletes []string

	messages map[string][]string // message id -> contents (placeholder first)
	deleted  []string
	gone     map[string]bool

	overwrites   []overwriteCall
	overwriteErr error
	respondErr   error
	responseErr  error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		interactionEdits: map[string][]string{},
		messages:         map[string][]string{},
		gone:             map[string]bool{},
	}
}

func unknownMessageErr() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage, Message: "Unknown Message"},
	}
}

func (f *fakeSession) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.respondErr != nil {
		return f.respondErr
	}
	call := respondCall{interactionID: i.ID}
	if resp.Data != nil {
		call.content = resp.Data.Content
		call.ephemeral = resp.Data.Flags&discordgo.MessageFlagsEphemeral != 0
	}
	f.responds = append(f.responds, call)
	return nil
}

func (f *fakeSession) InteractionResponse(i *discordgo.Interaction, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.responseErr != nil {
		return nil, f.responseErr
	}
	return &discordgo.Message{ID: "ir-" + i.ID, ChannelID: i.ChannelID}, nil
}

func (f *fakeSession) InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if edit.Content != nil {
		f.interactionEdits[i.ID] = append(f.interactionEdits[i.ID], *edit.Content)
	}
	return &discordgo.Message{ID: "ir-" + i.ID}, nil
}

func (f *fakeSession) InteractionResponseDelete(i *discordgo.Interaction, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interactionDeletes = append(f.interactionDeletes, i.ID)
	return nil
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := "m" + strconv.Itoa(f.nextID)
	f.messages[id] = []string{content}
	return &discordgo.Message{ID: id, ChannelID: channelID, Content: content}, nil
}

func (f *fakeSession) ChannelMessageEdit(channelID, messageID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[messageID]; !ok {
		return nil, unknownMessageErr()
	}
	f.messages[messageID] = append(f.messages[messageID], content)
	return &discordgo.Message{ID: messageID, ChannelID: channelID, Content: content}, nil
}

func (f *fakeSession) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[messageID] {
		return unknownMessageErr()
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) ApplicationCommandBulkOverwrite(appID, guildID string, cmds []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.overwriteErr != nil {
		return nil, f.overwriteErr
	}
	var names []string
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	f.overwrites = append(f.overwrites, overwriteCall{appID: appID, guildID: guildID, names: names})
	return cmds, nil
}

// commandInteraction builds a guild slash-command interaction.
func commandInteraction(id, command, userID string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        id,
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "g1",
		ChannelID: "c1",
		Member: &discordgo.Member{
			User: &discordgo.User{ID: userID, Username: "user" + userID},
		},
		Data: discordgo.ApplicationCommandInteractionData{Name: command, Options: opts},
	}
}

func messageOpt(v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  optMessage,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: v,
	}
}
