package repo

import (
	"context"
	"testing"
	"time"

	"github.com/hordalan/checkin-bot/internal/domain"
)

func TestGetPresenceStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, err := GetPresenceStats(context.Background(), db); err == nil {
		t.Fatalf("expected error due to missing users table")
	}
}

func TestGetPresenceStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, userModels()...)
	st, err := GetPresenceStats(context.Background(), db)
	if err != nil {
		t.Fatalf("GetPresenceStats: %v", err)
	}
	if st.Total != 0 || st.In != 0 || st.Out != 0 || st.LastUpdated != nil {
		t.Fatalf("expected zero stats, got %+v", st)
	}
}

func TestGetPresenceStats_CountsAndLatest(t *testing.T) {
	db := newTestDB(t, userModels()...)
	ctx := context.Background()

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // latest
	t3 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	seed := []*domain.User{
		{ExternalID: "1", Name: "a", CreatedAt: t1, UpdatedAt: t1, Presence: domain.PresenceState{Present: ptr(true), UpdatedAt: t1}},
		{ExternalID: "2", Name: "b", CreatedAt: t1, UpdatedAt: t1, Presence: domain.PresenceState{Present: ptr(false), UpdatedAt: t2}},
		{ExternalID: "3", Name: "c", CreatedAt: t3, UpdatedAt: t3, Presence: domain.PresenceState{UpdatedAt: t3}}, // unknown
	}
	for _, u := range seed {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed %s: %v", u.ExternalID, err)
		}
	}

	st, err := GetPresenceStats(ctx, db)
	if err != nil {
		t.Fatalf("GetPresenceStats: %v", err)
	}
	if st.Total != 3 || st.In != 1 || st.Out != 2 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if st.LastUpdated == nil || !st.LastUpdated.Equal(t2) {
		t.Fatalf("expected LastUpdated %v, got %v", t2, st.LastUpdated)
	}
}
