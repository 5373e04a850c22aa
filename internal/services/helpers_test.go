package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hordalan/checkin-bot/internal/domain"
	"github.com/hordalan/checkin-bot/internal/repo"
)

// ---------- test helpers ----------

// pointerRows counts status pointer rows for channelID.
func pointerRows(t *testing.T, db *gorm.DB, channelID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.StatusMessage{}).Where("channel_id = ?", channelID).Count(&n).Error; err != nil {
		t.Fatalf("count pointers: %v", err)
	}
	return n
}

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())

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

func strPtr(s string) *string { return &s }

// fakePublisher hands out sequential message ids and records contents.
type fakePublisher struct {
	mu       sync.Mutex
	next     int
	prefix   string
	contents map[string][]string
	postErr  error
	editErr  error
}

func newFakePublisher(prefix string) *fakePublisher {
	return &fakePublisher{prefix: prefix, contents: map[string][]string{}}
}

func (p *fakePublisher) Post(_ context.Context, content string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.postErr != nil {
		return "", p.postErr
	}
	p.next++
	id := p.prefix + strconv.Itoa(p.next)
	p.contents[id] = append(p.contents[id], content)
	return id, nil
}

func (p *fakePublisher) Edit(_ context.Context, messageID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.editErr != nil {
		return p.editErr
	}
	if _, ok := p.contents[messageID]; !ok {
		return errors.New("unknown message " + messageID)
	}
	p.contents[messageID] = append(p.contents[messageID], content)
	return nil
}

func (p *fakePublisher) history(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.contents[id]...)
}

// fakeDeleter records deletions and can be told a message is gone or broken.
type fakeDeleter struct {
	mu      sync.Mutex
	deleted []string
	gone    map[string]bool
	fail    map[string]error
}

func (d *fakeDeleter) DeleteMessage(_ context.Context, channelID, messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gone[messageID] {
		return fmt.Errorf("delete %s/%s: %w", channelID, messageID, ErrMessageGone)
	}
	if err := d.fail[messageID]; err != nil {
		return err
	}
	d.deleted = append(d.deleted, messageID)
	return nil
}
