package memory

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetSetDel(t *testing.T) {
	ctx := context.Background()
	m := New(Config{})
	t.Cleanup(func() { _ = m.Close(ctx) })

	if _, ok, err := m.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	buf := []byte("abc")
	if ok, err := m.Set(ctx, "k", buf, 1, 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	buf[0] = 'X' // caller reuses its buffer

	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(got) != "abc" {
		t.Fatalf("Get: got=%q ok=%v err=%v", got, ok, err)
	}

	if err := m.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
	if err := m.Del(ctx, "missing"); err != nil {
		t.Fatalf("Del missing: %v", err)
	}
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	m := New(Config{Sweep: true})
	t.Cleanup(func() { _ = m.Close(ctx) })

	if _, err := m.Set(ctx, "short", []byte("x"), 1, 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Set(ctx, "forever", []byte("y"), 1, 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)

	if _, ok, _ := m.Get(ctx, "short"); ok {
		t.Fatalf("expected short-lived entry to expire")
	}
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Fatalf("ttl=0 entry must not expire")
	}
}

func TestMemoryCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	m := New(Config{Sweep: true})
	if err := m.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
