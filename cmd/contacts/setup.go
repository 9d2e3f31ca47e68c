package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.trai.ch/zerr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/optcache"
	"github.com/unkn0wn-root/optcache/codec"
	"github.com/unkn0wn-root/optcache/contacts"
	gen "github.com/unkn0wn-root/optcache/genstore"
	asynchook "github.com/unkn0wn-root/optcache/hooks/async"
	hotel "github.com/unkn0wn-root/optcache/hooks/otel"
	logrusadapter "github.com/unkn0wn-root/optcache/log/logrus"
	slogadapter "github.com/unkn0wn-root/optcache/log/slog"
	zapadapter "github.com/unkn0wn-root/optcache/log/zap"
	pr "github.com/unkn0wn-root/optcache/provider"
	"github.com/unkn0wn-root/optcache/provider/bigcache"
	"github.com/unkn0wn-root/optcache/provider/memory"
	"github.com/unkn0wn-root/optcache/provider/redis"
	"github.com/unkn0wn-root/optcache/provider/ristretto"
	"github.com/unkn0wn-root/optcache/sloghooks"
	"github.com/unkn0wn-root/optcache/transport/httpapi"
)

const redisGenTTL = 24 * time.Hour

var labelEncoder = attribute.DefaultEncoder()

// app is everything one command needs; Close releases it in reverse order.
type app struct {
	client  *contacts.Client
	log     optcache.Logger
	closers []func(context.Context) error
}

func (a *app) onClose(f func(context.Context) error) { a.closers = append(a.closers, f) }

func (a *app) Close(ctx context.Context) error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = errors.Join(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errs
}

const maxCachedBytes = 4 << 20

// open builds the client described by g. Diagnostics go to stderr.
func (g *Globals) open(ctx context.Context, stderr io.Writer) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if a.log, err = g.logger(a, stderr); err != nil {
		return nil, err
	}
	hooks, err := g.hooks(a, stderr)
	if err != nil {
		return nil, err
	}

	cdc, err := contacts.CodecByName(g.Codec)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to select codec")
	}
	// a shared redis entry may have been written by anyone
	cdc = codec.LimitCodec[contacts.Collection]{Inner: cdc, MaxDecode: maxCachedBytes}
	provider, gens, err := g.storage(ctx, a)
	if err != nil {
		return nil, err
	}

	store, err := optcache.New[contacts.Collection](optcache.Options[contacts.Collection]{
		Namespace: g.Namespace,
		Provider:  provider,
		Codec:     cdc,
		GenStore:  gens,
		Logger:    a.log,
		Hooks:     hooks,
		TTL:       g.TTL,
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create cache")
	}
	a.onClose(store.Close)

	transport, err := httpapi.New(httpapi.Config{
		BaseURL:           g.BaseURL,
		Timeout:           g.Timeout,
		Limit:             g.Limit,
		RequestsPerSecond: g.Rate,
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create transport")
	}
	if a.client, err = contacts.NewClient(transport, store, contacts.Options{Logger: a.log, Hooks: hooks}); err != nil {
		return nil, err
	}
	a.log.Debug("client ready", optcache.Fields{"transport": transport.String(), "provider": g.Provider, "codec": g.Codec})
	return a, nil
}

func (g *Globals) logger(a *app, stderr io.Writer) (optcache.Logger, error) {
	switch g.Log {
	case "", "zap":
		level := zapcore.InfoLevel
		if g.Verbose {
			level = zapcore.DebugLevel
		}
		enc := zap.NewDevelopmentEncoderConfig()
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(stderr), level)
		l := zap.New(core)
		a.onClose(func(context.Context) error {
			_ = l.Sync()
			return nil
		})
		return zapadapter.New(l), nil
	case "logrus":
		l := logrus.New()
		l.SetOutput(stderr)
		if g.Verbose {
			l.SetLevel(logrus.DebugLevel)
		}
		return logrusadapter.New(l), nil
	case "slog":
		level := stdslog.LevelInfo
		if g.Verbose {
			level = stdslog.LevelDebug
		}
		return slogadapter.New(stdslog.New(stdslog.NewTextHandler(stderr, &stdslog.HandlerOptions{Level: level}))), nil
	default:
		return nil, zerr.With(zerr.New("unknown log backend"), "log", g.Log)
	}
}

// hooks runs reporting off the store lock through an async queue.
func (g *Globals) hooks(a *app, stderr io.Writer) (optcache.Hooks, error) {
	var inner optcache.Hooks
	switch g.Hooks {
	case "", "none":
		return nil, nil
	case "slog":
		l := stdslog.New(stdslog.NewTextHandler(stderr, &stdslog.HandlerOptions{Level: stdslog.LevelDebug}))
		inner = sloghooks.New(l, sloghooks.Options{Redact: func(k string) string { return k }})
	case "otel":
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		h, err := hotel.New(mp.Meter("github.com/unkn0wn-root/optcache/cmd/contacts"))
		if err != nil {
			return nil, err
		}
		a.onClose(func(ctx context.Context) error {
			defer mp.Shutdown(ctx)
			return reportMetrics(ctx, reader, stderr)
		})
		inner = h
	default:
		return nil, zerr.With(zerr.New("unknown hooks"), "hooks", g.Hooks)
	}

	async := asynchook.New(inner, 1, 256)
	a.onClose(func(context.Context) error {
		async.Close()
		return nil
	})
	return async, nil
}

func (g *Globals) storage(ctx context.Context, a *app) (pr.Provider, gen.GenStore, error) {
	switch g.Provider {
	case "", "memory":
		return memory.New(memory.Config{Sweep: g.TTL > 0}), nil, nil
	case "bigcache":
		p, err := bigcache.New(ctx, bigcache.Config{LifeWindow: g.TTL, CleanWindow: g.TTL})
		if err != nil {
			return nil, nil, zerr.Wrap(err, "failed to create bigcache provider")
		}
		return p, nil, nil
	case "ristretto":
		p, err := ristretto.New(ristretto.Config{NumCounters: 1e4, MaxCost: 1 << 20, BufferItems: 64, Metrics: g.Verbose})
		if err != nil {
			return nil, nil, zerr.Wrap(err, "failed to create ristretto provider")
		}
		if m := p.Metrics(); m != nil {
			a.onClose(func(context.Context) error {
				a.log.Debug("ristretto stats", optcache.Fields{"hits": m.Hits(), "misses": m.Misses(), "rejected": m.SetsRejected()})
				return nil
			})
		}
		return p, nil, nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: g.RedisAddr, DB: g.RedisDB})
		a.onClose(func(context.Context) error { return rdb.Close() })
		p, err := redis.New(redis.Config{Client: rdb, Prefix: "contacts:"})
		if err != nil {
			return nil, nil, err
		}
		if err := p.Ping(ctx); err != nil {
			return nil, nil, zerr.With(zerr.Wrap(err, "failed to reach redis"), "addr", g.RedisAddr)
		}
		gens, err := gen.NewRedisGenStore(gen.RedisConfig{Client: rdb, Namespace: g.Namespace, TTL: redisGenTTL})
		if err != nil {
			return nil, nil, err
		}
		return p, gens, nil
	default:
		return nil, nil, zerr.With(zerr.New("unknown provider"), "provider", g.Provider)
	}
}

// reportMetrics prints every counter collected during the command.
func reportMetrics(ctx context.Context, reader *sdkmetric.ManualReader, w io.Writer) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return zerr.Wrap(err, "failed to collect metrics")
	}
	lines := []string{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				lines = append(lines, fmt.Sprintf("%s{%s} %d", m.Name, dp.Attributes.Encoded(labelEncoder), dp.Value))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
