package usercache

import (
	"math"
	"testing"
)

func TestDeriveKeyLiterals(t *testing.T) {
	if got := DeriveKey(Collection, 0); got != "resource_list" {
		t.Fatalf("collection key=%q", got)
	}
	if got := DeriveKey(Collection, 42); got != "resource_list" {
		t.Fatalf("collection key must ignore id, got %q", got)
	}
	if got := DeriveKey(Item, 42); got != "resource_42" {
		t.Fatalf("item key=%q", got)
	}

	ks := Keyspace{Prefix: "user"}
	if ks.Collection() != "user_list" || ks.Item(1) != "user_1" || ks.Pattern() != "user_*" {
		t.Fatalf("unexpected user keys: %q %q %q", ks.Collection(), ks.Item(1), ks.Pattern())
	}
}

// TestDeriveKeyDeterministicAndInjective checks that every id maps to one key
// and no two refs share a key.
func TestDeriveKeyDeterministicAndInjective(t *testing.T) {
	ids := []int64{0, 1, 2, 10, 11, 100, -1, -10, math.MaxInt64, math.MinInt64}
	seen := map[string]Ref{DeriveKey(Collection, 0): {Kind: Collection}}
	for _, id := range ids {
		k := DeriveKey(Item, id)
		if k != DeriveKey(Item, id) {
			t.Fatalf("non-deterministic key for %d", id)
		}
		if prev, dup := seen[k]; dup {
			t.Fatalf("key %q shared by %+v and item %d", k, prev, id)
		}
		seen[k] = Ref{Kind: Item, ID: id}
	}
}

func TestNewKeyspaceValidation(t *testing.T) {
	for _, bad := range []string{"", "user_", "us_er", "user*", "a b"} {
		if _, err := NewKeyspace(bad); err == nil {
			t.Fatalf("expected error for prefix %q", bad)
		}
	}
	ks, err := NewKeyspace("user")
	if err != nil || ks.Prefix != "user" {
		t.Fatalf("NewKeyspace(user): %+v %v", ks, err)
	}
}
