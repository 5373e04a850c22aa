package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/hordalan/checkin-bot/internal/domain"
	"github.com/hordalan/checkin-bot/internal/repo"
)

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func TestSetPresence_FirstContactCreatesUserAndState(t *testing.T) {
	db := newSvcDB(t)
	svc := NewPresenceService(db, 100)

	st, err := svc.SetPresence(context.Background(),
		Identity{ExternalID: "10", Name: "bob", DisplayName: strPtr("Bobby")},
		false, strPtr("back at 5pm"))
	if err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	if st.Present == nil || *st.Present || st.Message == nil || *st.Message != "back at 5pm" {
		t.Fatalf("unexpected state: %+v", st)
	}
	if n := countRows(t, db, &domain.User{}); n != 1 {
		t.Fatalf("users = %d; want 1", n)
	}
	if n := countRows(t, db, &domain.PresenceState{}); n != 1 {
		t.Fatalf("presence rows = %d; want 1", n)
	}

	u, err := repo.GetUserByExternalID(context.Background(), db, "10")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u.Name != "bob" || u.DisplayName == nil || *u.DisplayName != "Bobby" {
		t.Fatalf("unexpected names: %+v", u)
	}
}

func TestSetPresence_CheckInClearsMessage(t *testing.T) {
	db := newSvcDB(t)
	svc := NewPresenceService(db, 100)
	ctx := context.Background()
	id := Identity{ExternalID: "11", Name: "b"}

	if _, err := svc.SetPresence(ctx, id, false, strPtr("lunch")); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	st, err := svc.SetPresence(ctx, id, true, strPtr("ignored"))
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if !st.IsIn() || st.Message != nil {
		t.Fatalf("expected in with nil message, got %+v", st)
	}

	u, _ := repo.GetUserByExternalID(ctx, db, "11")
	if !u.Presence.IsIn() || u.Presence.Message != nil {
		t.Fatalf("persisted state not cleared: %+v", u.Presence)
	}
	if n := countRows(t, db, &domain.PresenceState{}); n != 1 {
		t.Fatalf("presence must be updated in place, rows = %d", n)
	}
}

func TestSetPresence_CheckoutOverwritesMessage(t *testing.T) {
	db := newSvcDB(t)
	svc := NewPresenceService(db, 100)
	ctx := context.Background()
	id := Identity{ExternalID: "12", Name: "c"}

	_, _ = svc.SetPresence(ctx, id, false, strPtr("first"))
	if _, err := svc.SetPresence(ctx, id, false, nil); err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	u, _ := repo.GetUserByExternalID(ctx, db, "12")
	if u.Presence.Message != nil {
		t.Fatalf("message must be overwritten, got %q", *u.Presence.Message)
	}
}

func TestSetPresence_RefreshesNames(t *testing.T) {
	db := newSvcDB(t)
	svc := NewPresenceService(db, 0)
	ctx := context.Background()

	_, _ = svc.SetPresence(ctx, Identity{ExternalID: "13", Name: "old"}, true, nil)
	if _, err := svc.SetPresence(ctx, Identity{ExternalID: "13", Name: "new", DisplayName: strPtr("Nick")}, true, nil); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	u, _ := repo.GetUserByExternalID(ctx, db, "13")
	if u.Name != "new" || u.DisplayName == nil || *u.DisplayName != "Nick" {
		t.Fatalf("names not refreshed: %+v", u)
	}
}

func TestSetPresence_Validation(t *testing.T) {
	db := newSvcDB(t)
	svc := NewPresenceService(db, 5)
	ctx := context.Background()

	if _, err := svc.SetPresence(ctx, Identity{ExternalID: "  "}, true, nil); !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
	if _, err := svc.SetPresence(ctx, Identity{ExternalID: "14"}, false, strPtr("too long")); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if n := countRows(t, db, &domain.User{}); n != 0 {
		t.Fatalf("rejected command must not persist, users = %d", n)
	}

	// Checking in ignores the message, so its length does not matter.
	if _, err := svc.SetPresence(ctx, Identity{ExternalID: "14"}, true, strPtr(strings.Repeat("x", 50))); err != nil {
		t.Fatalf("checkin with long message: %v", err)
	}
	u, _ := repo.GetUserByExternalID(ctx, db, "14")
	if u.Name != "14" {
		t.Fatalf("blank name should fall back to external id, got %q", u.Name)
	}
}

// dupRepo fails the first `fails` CreateUser calls with ErrDuplicate, as if
// a concurrent first contact had won the insert.
type dupRepo struct {
	GormRepo
	fails int
	calls int
}

func (r *dupRepo) CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	r.calls++
	if r.calls <= r.fails {
		return repo.ErrDuplicate
	}
	return r.GormRepo.CreateUser(ctx, db, u)
}

func TestSetPresence_RetriesOnceAfterDuplicate(t *testing.T) {
	db := newSvcDB(t)
	r := &dupRepo{fails: 1}
	svc := &PresenceService{DB: db, Repo: r}

	st, err := svc.SetPresence(context.Background(), Identity{ExternalID: "15", Name: "late"}, false, strPtr("away"))
	if err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	if r.calls != 2 {
		t.Fatalf("CreateUser calls = %d; want 2", r.calls)
	}
	if st.IsIn() || st.Message == nil || *st.Message != "away" {
		t.Fatalf("unexpected state after retry: %+v", st)
	}
}

func TestSetPresence_GivesUpAfterSecondDuplicate(t *testing.T) {
	db := newSvcDB(t)
	r := &dupRepo{fails: 5}
	svc := &PresenceService{DB: db, Repo: r}

	_, err := svc.SetPresence(context.Background(), Identity{ExternalID: "16", Name: "x"}, true, nil)
	if !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if r.calls != 2 {
		t.Fatalf("CreateUser calls = %d; want 2", r.calls)
	}
}

func TestNormalizeMessage(t *testing.T) {
	cases := []struct {
		name string
		in   *string
		max  int
		want *string
		err  error
	}{
		{"nil", nil, 10, nil, nil},
		{"blank", strPtr("   "), 10, nil, nil},
		{"trimmed", strPtr("  hi  "), 10, strPtr("hi"), nil},
		{"nfc", strPtr("e\u0301"), 1, strPtr("\u00e9"), nil},
		{"too long", strPtr("abcdef"), 5, nil, ErrMessageTooLong},
		{"unbounded", strPtr("abcdef"), 0, strPtr("abcdef"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeMessage(tc.in, tc.max)
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v; want %v", err, tc.err)
			}
			if !sameString(got, tc.want) {
				t.Fatalf("got %v; want %v", got, tc.want)
			}
		})
	}
}
