package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func TestGetLastRunEmpty(t *testing.T) {
	db := openTestDB(t)
	run, err := db.GetLastRun()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run != nil {
		t.Errorf("expected no run, got %+v", run)
	}

	date, err := db.GetLastUpdateDate()
	if err != nil || date != "" {
		t.Errorf("expected empty date, got %q (%v)", date, err)
	}
}

func TestInsertAndGetLastRun(t *testing.T) {
	db := openTestDB(t)

	first := &Run{RunDate: "2026-02-05", StartedAt: "2026-02-05T08:00:00Z", Entries: []RunEntry{
		{Position: 0, WorkID: "111", DisplayName: "Foo", Outcome: "updated", Samples: 2},
	}}
	if _, err := db.InsertRun(first); err != nil {
		t.Fatalf("insert first: %v", err)
	}

	second := &Run{
		RunDate:     "2026-02-06",
		StartedAt:   "2026-02-06T08:00:00Z",
		Aborted:     true,
		AbortReason: ptr("connection refused"),
		Entries: []RunEntry{
			{Position: 0, WorkID: "111", DisplayName: "Foo", Outcome: "updated", Samples: 3},
			{Position: 1, WorkID: "222", DisplayName: "Bar", Outcome: "failed", Reason: ptr("connection refused")},
			{Position: 2, WorkID: "333", DisplayName: "Baz", Outcome: "skipped"},
		},
	}
	id, err := db.InsertRun(second)
	if err != nil {
		t.Fatalf("insert second: %v", err)
	}
	if id == 0 || second.ID != id {
		t.Errorf("expected run ID to be set, got %d / %d", id, second.ID)
	}

	last, err := db.GetLastRun()
	if err != nil {
		t.Fatalf("GetLastRun: %v", err)
	}
	if last.RunDate != "2026-02-06" || !last.Aborted {
		t.Errorf("unexpected last run %+v", last)
	}
	if last.AbortReason == nil || *last.AbortReason != "connection refused" {
		t.Error("expected abort reason")
	}
	if len(last.Entries) != 3 || last.Entries[2].Outcome != "skipped" {
		t.Errorf("unexpected entries %+v", last.Entries)
	}
	if last.Entries[0].Samples != 3 {
		t.Errorf("expected 3 samples, got %d", last.Entries[0].Samples)
	}

	date, _ := db.GetLastUpdateDate()
	if date != "2026-02-05" {
		t.Errorf("expected last successful run 2026-02-05, got %q", date)
	}
}

func TestInsertRunRejectsBadOutcome(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertRun(&Run{RunDate: "2026-02-06", StartedAt: "x", Entries: []RunEntry{
		{Position: 0, WorkID: "1", DisplayName: "A", Outcome: "exploded"},
	}})
	if err == nil {
		t.Fatal("expected check constraint failure")
	}

	if last, _ := db.GetLastRun(); last != nil {
		t.Error("expected the failed run to be rolled back")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	db.InsertRun(&Run{RunDate: "2026-02-05", StartedAt: "a", Entries: []RunEntry{
		{Position: 0, WorkID: "1", DisplayName: "A", Outcome: "updated"},
		{Position: 1, WorkID: "2", DisplayName: "B", Outcome: "failed"},
	}})
	db.InsertRun(&Run{RunDate: "2026-02-05", StartedAt: "b", Aborted: true})
	db.InsertRun(&Run{RunDate: "2026-02-06", StartedAt: "c", Entries: []RunEntry{
		{Position: 0, WorkID: "1", DisplayName: "A", Outcome: "updated"},
	}})

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalRuns != 3 || stats.AbortedRuns != 1 || stats.DaysWithRuns != 2 {
		t.Errorf("unexpected run stats %+v", stats)
	}
	if stats.UpdatedEntries != 2 || stats.FailedEntries != 1 {
		t.Errorf("unexpected entry stats %+v", stats)
	}
}
