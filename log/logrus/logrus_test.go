package logrus

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/usercache"
)

func TestWithCarriesFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := LogrusLogger{E: logrus.NewEntry(base)}.With(usercache.Fields{"keyspace": "user"})

	l.Debug("hit", usercache.Fields{"key": "user_list"})

	e := hook.LastEntry()
	if e == nil || e.Level != logrus.DebugLevel || e.Message != "hit" {
		t.Fatalf("entry=%+v", e)
	}
	if e.Data["keyspace"] != "user" || e.Data["key"] != "user_list" {
		t.Fatalf("data=%v", e.Data)
	}
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info")
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("dropped", nil)
	l.Info("kept", usercache.Fields{"items": 3})

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if m["msg"] != "kept" || m["items"] != float64(3) {
		t.Fatalf("line=%v", m)
	}
}
