// Package sloghooks reports optcache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/optcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery  uint64
	StaleReadEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr  atomic.Uint64
	staleReadCtr atomic.Uint64
}

var _ optcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("optcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("optcache.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) GenBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("optcache.gen_bump_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) StaleReadDiscarded(key string, token, current optcache.Token) {
	if h.l == nil || !sample(h.opts.StaleReadEvery, &h.staleReadCtr) {
		return
	}
	h.l.Debug("optcache.stale_read_discarded",
		"key", h.redact(key),
		"token", uint64(token),
		"current", uint64(current))
}

func (h *Hooks) ReadFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("optcache.read_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) MutationCommitted(key, name, id string) {
	if h.l == nil {
		return
	}
	h.l.Info("optcache.mutation_committed",
		"key", h.redact(key),
		"mutation", name,
		"id", id)
}

func (h *Hooks) MutationRolledBack(key, name, id string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("optcache.mutation_rolled_back",
		"key", h.redact(key),
		"mutation", name,
		"id", id,
		"err", err)
}
