package slog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/unkn0wn-root/usercache"
)

func TestJSONLineCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "debug")
	if err != nil {
		t.Fatal(err)
	}
	l.With(usercache.Fields{"keyspace": "user"}).Warn("invalidation incomplete", usercache.Fields{"cause": "update"})

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("bad line %q: %v", buf.String(), err)
	}
	if m["level"] != "WARN" || m["keyspace"] != "user" || m["cause"] != "update" {
		t.Fatalf("line=%v", m)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "chatty"); err == nil {
		t.Fatalf("expected level error")
	}
}
