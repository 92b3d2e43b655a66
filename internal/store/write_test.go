package store

import (
	"context"
	"testing"
	"time"

	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/store/storetest"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestSaveChallenge_WritesParticipantIndex(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := storetest.NewChallenge("c1", "alice", t0)
	c.Participants["bob"] = &challenge.Participant{UserID: "bob", Active: true, Progress: 42}
	if err := s.SaveChallenge(ctx, c); err != nil {
		t.Fatalf("SaveChallenge() failed: %v", err)
	}

	rows, err := s.db.Query(`SELECT user_id, active, progress FROM participants WHERE challenge_id = ? ORDER BY user_id`, "c1")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()

	type row struct {
		user     string
		active   bool
		progress float64
	}
	var got []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.user, &r.active, &r.progress); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("participant rows = %d, want 2", len(got))
	}
	if got[1].user != "bob" || got[1].progress != 42 || !got[1].active {
		t.Errorf("bob row = %+v", got[1])
	}
}

func TestSaveChallenge_ReplacesParticipantRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := storetest.NewChallenge("c1", "alice", t0)
	if err := s.SaveChallenge(ctx, c); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	c.Participants["alice"].Active = false
	if err := s.SaveChallenge(ctx, c); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	var n int
	var active bool
	if err := s.db.QueryRow(`SELECT COUNT(*), MAX(active) FROM participants WHERE challenge_id = 'c1'`).Scan(&n, &active); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 1 || active {
		t.Errorf("rows = %d active = %v, want 1 row inactive", n, active)
	}
}

func TestSaveChallenge_StatusColumnTracksBody(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := storetest.NewChallenge("c1", "alice", t0)
	if err := s.SaveChallenge(ctx, c); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	c.Status = challenge.StatusCompleted
	if err := s.SaveChallenge(ctx, c); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	var status string
	if err := s.db.QueryRow(`SELECT status FROM challenges WHERE id = 'c1'`).Scan(&status); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}

	ids, err := s.ListActiveEndingBefore(ctx, c.EndTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListActiveEndingBefore() failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("completed challenge listed as active: %v", ids)
	}
}
