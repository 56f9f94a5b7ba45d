package genstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalSnapshotManyIncludesAllAndZeroForMissing(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.BumpMany(ctx, []string{"user_list", "user_1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Bump(ctx, "user_1"); err != nil {
		t.Fatal(err)
	}

	got, err := s.SnapshotMany(ctx, []string{"user_list", "user_1", "user_2"})
	if err != nil {
		t.Fatal(err)
	}
	if got["user_list"] != 1 || got["user_1"] != 2 || got["user_2"] != 0 {
		t.Fatalf("got=%v want user_list=1,user_1=2,user_2=0", got)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	s.Cleanup(10 * time.Millisecond)

	g, err := s.Snapshot(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	s := NewLocalGenStore(time.Millisecond, time.Hour)
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}
