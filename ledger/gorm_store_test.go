package ledger

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/replyloop/replyloop/db/models"
)

func testStore(t *testing.T) *GormStore {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&models.ActionRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormStore(gdb)
}

func pendingRec() Record {
	return Record{
		UserID:      "user-1",
		ThreadID:    "thread-1",
		ActionKey:   `cancel_order::1001::["reason","customer"]`,
		ActionType:  "cancel_order",
		Detail:      "Cancelled order.",
		PayloadJSON: `{"reason":"customer"}`,
		OrderNumber: "1001",
	}
}

func TestUpsertPending_AtMostOneRowPerKey(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.UpsertPending(ctx, pendingRec())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Status != StatusPending {
		t.Fatalf("status = %q", first.Status)
	}

	second, err := s.UpsertPending(ctx, pendingRec())
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same row, got ids %d and %d", first.ID, second.ID)
	}

	var count int64
	if err := s.DB.Model(&models.ActionRecord{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("row count = %d, want 1", count)
	}
}

func TestUpsertPending_NeverDowngradesTerminal(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	applied, err := s.MarkApplied(ctx, pendingRec())
	if err != nil {
		t.Fatal(err)
	}
	if applied.Status != StatusApplied {
		t.Fatalf("status = %q", applied.Status)
	}

	echoed, err := s.UpsertPending(ctx, pendingRec())
	if err != nil {
		t.Fatal(err)
	}
	if echoed.Status != StatusApplied || echoed.ID != applied.ID {
		t.Fatalf("terminal row was modified: %+v", echoed)
	}
}

func TestMarkApplied_IdempotentAndClearsError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.MarkFailed(ctx, pendingRec(), "boom"); err != nil {
		t.Fatal(err)
	}
	rec, found, err := s.Get(ctx, "user-1", "thread-1", pendingRec().ActionKey)
	if err != nil || !found {
		t.Fatalf("get: %v found=%v", err, found)
	}
	if rec.Status != StatusFailed || rec.Error != "boom" {
		t.Fatalf("failed row = %+v", rec)
	}

	applied, err := s.MarkApplied(ctx, pendingRec())
	if err != nil {
		t.Fatal(err)
	}
	if applied.Status != StatusApplied || applied.Error != "" || applied.AppliedAt == nil {
		t.Fatalf("applied row = %+v", applied)
	}

	again, err := s.MarkApplied(ctx, pendingRec())
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != applied.ID || again.Status != StatusApplied {
		t.Fatalf("re-apply changed the row: %+v", again)
	}
}

func TestMarkDeclined(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec, err := s.UpsertPending(ctx, pendingRec())
	if err != nil {
		t.Fatal(err)
	}

	declined, err := s.MarkDeclined(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if declined.Status != StatusDeclined || declined.DecidedAt == nil {
		t.Fatalf("declined row = %+v", declined)
	}

	// Declining again is a no-op.
	again, err := s.MarkDeclined(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != StatusDeclined {
		t.Fatalf("row = %+v", again)
	}

	// A declined record stays declined even when re-proposed.
	echoed, err := s.UpsertPending(ctx, pendingRec())
	if err != nil {
		t.Fatal(err)
	}
	if echoed.Status != StatusDeclined {
		t.Fatalf("re-propose resurrected a declined row: %+v", echoed)
	}
}

func TestMarkDeclined_AppliedIsAnError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	applied, err := s.MarkApplied(ctx, pendingRec())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.MarkDeclined(ctx, applied.ID); err == nil {
		t.Fatal("declining an applied record must fail")
	}
}

func TestLatestPending(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, found, err := s.LatestPending(ctx, "user-1", "thread-1"); err != nil || found {
		t.Fatalf("expected nothing pending, found=%v err=%v", found, err)
	}

	a := pendingRec()
	b := pendingRec()
	b.ActionKey = `add_tag::1001::["tag","vip"]`
	b.ActionType = "add_tag"
	if _, err := s.UpsertPending(ctx, a); err != nil {
		t.Fatal(err)
	}
	want, err := s.UpsertPending(ctx, b)
	if err != nil {
		t.Fatal(err)
	}

	got, found, err := s.LatestPending(ctx, "user-1", "thread-1")
	if err != nil || !found {
		t.Fatalf("latest pending: found=%v err=%v", found, err)
	}
	// Same-second updates tie on updated_at; the higher id wins.
	if got.ID != want.ID {
		t.Fatalf("latest pending id = %d, want %d", got.ID, want.ID)
	}
}

func TestUpsertPending_RequiresKeyFields(t *testing.T) {
	s := testStore(t)
	rec := pendingRec()
	rec.ThreadID = " "
	if _, err := s.UpsertPending(context.Background(), rec); err == nil {
		t.Fatal("expected an error for a missing thread id")
	}
}
