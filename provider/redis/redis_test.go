package redis

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestProvider(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	p, err := New(Config{Client: rdb, CloseClient: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p, mr
}

func TestNewRejectsNilClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestGetSetDel(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)

	if _, ok, err := p.Get(ctx, "user_1"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := p.Set(ctx, "user_1", []byte("ada"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b, ok, err := p.Get(ctx, "user_1")
	if err != nil || !ok || string(b) != "ada" {
		t.Fatalf("Get after set: ok=%v err=%v val=%q", ok, err, b)
	}
	if err := p.Del(ctx, "user_1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := p.Del(ctx, "user_1"); err != nil {
		t.Fatalf("Del of absent key must not fail: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "user_1"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestSetAppliesTTL(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t)

	if err := p.Set(ctx, "user_list", []byte("[]"), 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("user_list"); ttl != 10*time.Second {
		t.Fatalf("ttl=%v want 10s", ttl)
	}
	mr.FastForward(11 * time.Second)
	if _, ok, _ := p.Get(ctx, "user_list"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestKeysMatchesPattern(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)

	for _, k := range []string{"user_list", "user_1", "user_2", "gen:user:user_1"} {
		if err := p.Set(ctx, k, []byte("x"), 0); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	keys, err := p.Keys(ctx, "user_*")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	want := []string{"user_1", "user_2", "user_list"}
	if len(keys) != len(want) {
		t.Fatalf("keys=%v want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys=%v want %v", keys, want)
		}
	}
}

func TestUnreachableServerReturnsError(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t)
	if err := p.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mr.Close()

	if err := p.Ping(ctx); err == nil {
		t.Fatalf("expected Ping to fail")
	}

	if _, ok, err := p.Get(ctx, "user_1"); err == nil || ok {
		t.Fatalf("expected transport error, ok=%v err=%v", ok, err)
	}
}

func TestInfoAgainstServer(t *testing.T) {
	p, _ := newTestProvider(t)
	si, err := p.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if si.ConnectedClients < 1 {
		t.Fatalf("expected at least this client, got %+v", si)
	}
}

func TestParseInfo(t *testing.T) {
	raw := "# Server\r\n" +
		"redis_version:7.2.4\r\n" +
		"\r\n" +
		"# Clients\r\n" +
		"connected_clients:3\r\n" +
		"# Memory\r\n" +
		"used_memory:1048576\r\n" +
		"used_memory_human:1.00M\r\n" +
		"# Stats\r\n" +
		"total_commands_processed:42\r\n" +
		"keyspace_hits:10\r\n" +
		"keyspace_misses:4\r\n" +
		"garbage line\r\n"

	si := parseInfo(raw)
	if si.Version != "7.2.4" || si.ConnectedClients != 3 || si.UsedMemory != 1048576 ||
		si.UsedMemoryHuman != "1.00M" || si.CommandsProcessed != 42 || si.Hits != 10 || si.Misses != 4 {
		t.Fatalf("unexpected parse result: %+v", si)
	}
}
