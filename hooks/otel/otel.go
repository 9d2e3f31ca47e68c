// Package otel counts optcache events with OpenTelemetry metrics.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/optcache"
)

const meterName = "github.com/unkn0wn-root/optcache"

const (
	outcomeCommitted  = "committed"
	outcomeRolledBack = "rolled_back"
)

type metricsCollection struct {
	selfHeal       metric.Int64Counter
	setRejected    metric.Int64Counter
	genBumpErrors  metric.Int64Counter
	staleReads     metric.Int64Counter
	readFailures   metric.Int64Counter
	mutationsCount metric.Int64Counter
}

func setupMetrics(meter metric.Meter) (metricsCollection, error) {
	var (
		m   metricsCollection
		err error
	)
	if m.selfHeal, err = meter.Int64Counter("optcache/self_heal_count",
		metric.WithDescription("Stored entries deleted on read because they could not be decoded")); err != nil {
		return m, fmt.Errorf("failed to create self heal metric: %w", err)
	}
	if m.setRejected, err = meter.Int64Counter("optcache/provider_set_rejected_count",
		metric.WithDescription("Writes refused by the provider")); err != nil {
		return m, fmt.Errorf("failed to create set rejected metric: %w", err)
	}
	if m.genBumpErrors, err = meter.Int64Counter("optcache/gen_bump_error_count",
		metric.WithDescription("Failed generation bumps")); err != nil {
		return m, fmt.Errorf("failed to create gen bump error metric: %w", err)
	}
	if m.staleReads, err = meter.Int64Counter("optcache/stale_read_count",
		metric.WithDescription("Read results dropped because a newer read or a mutation superseded them")); err != nil {
		return m, fmt.Errorf("failed to create stale read metric: %w", err)
	}
	if m.readFailures, err = meter.Int64Counter("optcache/read_failure_count",
		metric.WithDescription("Failed authoritative reads")); err != nil {
		return m, fmt.Errorf("failed to create read failure metric: %w", err)
	}
	if m.mutationsCount, err = meter.Int64Counter("optcache/mutation_count",
		metric.WithDescription("Settled mutations by outcome")); err != nil {
		return m, fmt.Errorf("failed to create mutation metric: %w", err)
	}
	return m, nil
}

// Hooks records every event as a counter increment. Attributes carry the
// cache key, which is expected to be low cardinality.
type Hooks struct {
	metrics metricsCollection
}

var _ optcache.Hooks = (*Hooks)(nil)

// New uses the global meter provider when meter is nil.
func New(meter metric.Meter) (*Hooks, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	m, err := setupMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}
	return &Hooks{metrics: m}, nil
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	h.metrics.selfHeal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("key", storageKey),
		attribute.String("reason", reason),
	))
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	h.metrics.setRejected.Add(context.Background(), 1, metric.WithAttributes(attribute.String("key", storageKey)))
}

func (h *Hooks) GenBumpError(storageKey string, _ error) {
	h.metrics.genBumpErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("key", storageKey)))
}

func (h *Hooks) StaleReadDiscarded(key string, _, _ optcache.Token) {
	h.metrics.staleReads.Add(context.Background(), 1, metric.WithAttributes(attribute.String("key", key)))
}

func (h *Hooks) ReadFailed(key string, _ error) {
	h.metrics.readFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("key", key)))
}

func (h *Hooks) MutationCommitted(key, name, _ string) {
	h.mutation(key, name, outcomeCommitted)
}

func (h *Hooks) MutationRolledBack(key, name, _ string, _ error) {
	h.mutation(key, name, outcomeRolledBack)
}

func (h *Hooks) mutation(key, name, outcome string) {
	h.metrics.mutationsCount.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("key", key),
		attribute.String("mutation", name),
		attribute.String("outcome", outcome),
	))
}
