package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/rishimeka/astro/internal/config"
	"github.com/rishimeka/astro/internal/engine"
	"github.com/rishimeka/astro/pkg/adapters/file"
	astrohttp "github.com/rishimeka/astro/pkg/adapters/http"
	"github.com/rishimeka/astro/pkg/adapters/memory"
	redisadapter "github.com/rishimeka/astro/pkg/adapters/redis"
	"github.com/rishimeka/astro/pkg/adapters/sqlite"
	"github.com/rishimeka/astro/pkg/model"
	"github.com/rishimeka/astro/pkg/observability"
	"github.com/rishimeka/astro/pkg/persistence/middleware"
	"github.com/rishimeka/astro/pkg/ports"
	"github.com/rishimeka/astro/pkg/probe"
	"github.com/rishimeka/astro/pkg/runs"
)

// Runtime bundles everything a server command wires together: the stores,
// the engine, the event hub and the metrics registry.
type Runtime struct {
	Engine         *engine.Engine
	Runs           *runs.Manager
	Constellations ports.ConstellationStore
	Hub            *astrohttp.Hub
	Probes         *probe.Registry
	Registry       *prometheus.Registry
	Logger         *slog.Logger

	closers []func() error
}

// NewRuntime builds a Runtime from configuration.
func NewRuntime(cfg config.Config) (*Runtime, error) {
	rt := &Runtime{Logger: NewLogger(cfg.LogFormat, cfg.LogLevel)}

	store, constellations, locker, err := rt.buildStores(cfg)
	if err != nil {
		rt.close()
		return nil, err
	}
	if store, err = decorateStore(cfg.Store, store); err != nil {
		rt.close()
		return nil, err
	}

	modelClient, err := model.FromConfig(cfg.Model)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to configure model provider: %w", err)
	}

	probes := probe.NewRegistry()
	probes.Register(probe.NewHTTPProbe())
	for _, pc := range cfg.Probes {
		if pc.Name == "" || pc.Command == "" {
			rt.close()
			return nil, fmt.Errorf("probe entries need both a name and a command, got name=%q command=%q", pc.Name, pc.Command)
		}
		ep := probe.NewExecProbe(pc.Name, pc.Command, pc.Args...)
		ep.Dir = pc.Dir
		probes.Register(ep)
	}
	rt.Probes = probes

	rt.Registry = prometheus.NewRegistry()
	metrics := observability.NewMetrics(rt.Registry)
	spans := observability.NewSpanEmitter(otel.Tracer("astro"))

	rt.Hub = astrohttp.NewHub(
		astrohttp.WithHubLogger(rt.Logger),
		astrohttp.WithHubMetrics(metrics),
	)

	managerOpts := []runs.Option{runs.WithLogger(rt.Logger)}
	if locker != nil {
		managerOpts = append(managerOpts, runs.WithLocker(locker))
	}
	rt.Runs = runs.NewManager(store, managerOpts...)
	rt.Constellations = constellations

	rt.Engine = engine.New(rt.Runs, constellations, modelClient,
		engine.WithLogger(rt.Logger),
		engine.WithProbes(probes),
		engine.WithRetryPolicy(engine.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay.Std(),
			MaxDelay:    cfg.Retry.MaxDelay.Std(),
		}),
		engine.WithLoopBudget(cfg.LoopBudget),
		engine.WithEventSink(rt.Hub.Broadcast),
		engine.WithMetrics(metrics),
		engine.WithSpans(spans),
	)

	if err := rt.preload(cfg); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// buildStores picks the run store backend and the constellation store.
// Constellations live next to the runs where the backend can hold both, in
// the definitions directory when one is configured, and in memory otherwise.
func (rt *Runtime) buildStores(cfg config.Config) (ports.RunStore, ports.ConstellationStore, ports.RunLocker, error) {
	var constellations ports.ConstellationStore
	if cfg.ConstellationsDir != "" {
		constellations = file.NewConstellationStore(cfg.ConstellationsDir)
	}

	switch cfg.Store.Backend {
	case "", "memory":
		if constellations == nil {
			constellations = memory.NewConstellationStore()
		}
		return memory.NewStore(), constellations, nil, nil

	case "redis":
		rdb := backend.NewClient(&backend.Options{Addr: cfg.Store.RedisAddr})
		rt.closers = append(rt.closers, rdb.Close)

		var opts []redisadapter.Option
		if cfg.Store.RedisPrefix != "" {
			opts = append(opts, redisadapter.WithPrefix(cfg.Store.RedisPrefix))
		}
		if constellations == nil {
			constellations = memory.NewConstellationStore()
		}
		locker := redisadapter.NewLocker(rdb, cfg.Store.RedisPrefix)
		return redisadapter.NewFromClient(rdb, opts...), constellations, locker, nil

	case "sqlite":
		store, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		rt.closers = append(rt.closers, store.Close)
		if constellations == nil {
			constellations = store
		}
		return store, constellations, nil, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// decorateStore applies the configured persistence middleware ahead of the
// backend: encryption innermost, redaction outermost, so secrets are masked
// before they are sealed.
func decorateStore(cfg config.StoreConfig, store ports.RunStore) (ports.RunStore, error) {
	if cfg.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption_key is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption_key must decode to 32 bytes (AES-256), got %d", len(key))
		}
		ec := middleware.EncryptionConfig{ActiveKey: key}
		for _, fk := range cfg.EncryptionFallbackKeys {
			decoded, err := hex.DecodeString(fk)
			if err != nil {
				return nil, fmt.Errorf("encryption_fallback_keys entry is not valid hex: %w", err)
			}
			ec.FallbackKeys = append(ec.FallbackKeys, decoded)
		}
		store = middleware.NewEncryptionMiddleware(ec)(store)
	}

	if len(cfg.RedactPatterns) > 0 {
		for _, p := range cfg.RedactPatterns {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid redact pattern %q: %w", p, err)
			}
		}
		store = middleware.NewRedactionMiddleware(cfg.RedactPatterns)(store)
	}
	return store, nil
}

// preload parses the definitions directory at startup so malformed files
// surface as a boot error instead of a first-request surprise. The
// directory itself backs the constellation store, so nothing is copied.
func (rt *Runtime) preload(cfg config.Config) error {
	if cfg.ConstellationsDir == "" {
		return nil
	}
	loaded, err := file.LoadDir(cfg.ConstellationsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to preload constellations: %w", err)
	}
	rt.Logger.Info("constellations loaded", "dir", cfg.ConstellationsDir, "count", len(loaded))
	return nil
}

// Close stops the engine and releases the store backends.
func (rt *Runtime) Close() error {
	if rt.Engine != nil {
		rt.Engine.Close()
	}
	return rt.close()
}

func (rt *Runtime) close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
