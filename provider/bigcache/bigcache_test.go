package bigcache

import (
	"context"
	"testing"
)

func TestBigcacheProvider(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{Shards: 16, MaxEntriesInWindow: 64, MaxEntrySize: 256})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, ok, err := p.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v1"), 1, 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v2"), 1, 0); err != nil || !ok {
		t.Fatalf("overwrite: ok=%v err=%v", ok, err)
	}
	got, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v2" {
		t.Fatalf("Get: got=%q ok=%v err=%v", got, ok, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del of missing key should be a no-op: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
}
