package slog

import (
	"bytes"
	"encoding/json"
	stdslog "log/slog"
	"testing"

	"github.com/unkn0wn-root/optcache"
)

func TestLoggerWritesSortedAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})))

	l.Debug("filtered", optcache.Fields{"k": 1})
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered, got %s", buf.String())
	}

	l.Warn("rolled back", optcache.Fields{"key": "contacts", "id": "abc"})
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "rolled back" || rec["level"] != "WARN" || rec["key"] != "contacts" || rec["id"] != "abc" {
		t.Fatalf("record: %v", rec)
	}
	if idx := bytes.Index(buf.Bytes(), []byte(`"id"`)); idx > bytes.Index(buf.Bytes(), []byte(`"key"`)) {
		t.Fatalf("attrs not sorted: %s", buf.String())
	}
}
