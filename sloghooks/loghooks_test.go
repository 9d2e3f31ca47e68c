package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRedactsKeysByDefault(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})

	h.ReadFailed("entry:contacts:contacts", errors.New("timeout"))
	out := buf.String()
	require.Contains(t, out, "optcache.read_failed")
	require.NotContains(t, out, "entry:contacts:contacts")
	require.Contains(t, out, "err=timeout")
}

func TestCustomRedactor(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{Redact: strings.ToUpper})

	h.MutationRolledBack("k", "add", "id-1", errors.New("503"))
	require.Contains(t, buf.String(), "key=K")
	require.Contains(t, buf.String(), "mutation=add")
}

func TestSampling(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{StaleReadEvery: 3})

	for i := 0; i < 9; i++ {
		h.StaleReadDiscarded("k", 1, 2)
	}
	require.Equal(t, 3, strings.Count(buf.String(), "optcache.stale_read_discarded"))
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.SelfHeal("k", "corrupt")
	h.MutationCommitted("k", "add", "id")
}
