package runs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/rishimeka/astro/internal/logging"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates run record access, ensuring safe concurrent
// mutations. It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.RunStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.RunLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.RunLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides how long a distributed lock survives a crashed
// holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new run Manager with the given persistence store.
func NewManager(store ports.RunStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(runID) after
// unlocking.
func (m *Manager) acquire(runID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[runID]
	if !exists {
		entry = &lockEntry{}
		m.locks[runID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches
// zero.
func (m *Manager) release(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[runID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, runID)
	}
}

// Load retrieves a run record under the run's lock.
func (m *Manager) Load(ctx context.Context, runID string) (domain.RunRecord, error) {
	var run domain.RunRecord
	err := m.WithLock(ctx, runID, func(ctx context.Context) error {
		var err error
		run, err = m.store.LoadRun(ctx, runID)
		return err
	})
	return run, err
}

// Save persists the run record under the run's lock.
func (m *Manager) Save(ctx context.Context, run domain.RunRecord) error {
	return m.WithLock(ctx, run.ID, func(ctx context.Context) error {
		return m.store.SaveRun(ctx, run)
	})
}

// Transition loads the run, applies fn and saves the result, all while
// holding the run's lock. Competing mutations (a confirm decision against an
// engine completion, say) therefore collapse into a serial order instead of
// overwriting each other. The update stamp is refreshed on save.
func (m *Manager) Transition(ctx context.Context, runID string, fn func(*domain.RunRecord) error) (domain.RunRecord, error) {
	var run domain.RunRecord
	err := m.WithLock(ctx, runID, func(ctx context.Context) error {
		var err error
		run, err = m.store.LoadRun(ctx, runID)
		if err != nil {
			return err
		}
		if err := fn(&run); err != nil {
			return err
		}
		run.UpdatedAt = time.Now().UTC()
		return m.store.SaveRun(ctx, run)
	})
	return run, err
}

// SaveNodeRecord persists a node outcome under the run's lock.
func (m *Manager) SaveNodeRecord(ctx context.Context, rec domain.NodeRecord) error {
	return m.WithLock(ctx, rec.RunID, func(ctx context.Context) error {
		return m.store.SaveNodeRecord(ctx, rec)
	})
}

// NodeRecords retrieves the run's node records.
func (m *Manager) NodeRecords(ctx context.Context, runID string) ([]domain.NodeRecord, error) {
	return m.store.LoadNodeRecords(ctx, runID)
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]domain.RunRecord, error) {
	return m.store.ListRuns(ctx)
}

// Delete removes the run under its lock.
func (m *Manager) Delete(ctx context.Context, runID string) error {
	return m.WithLock(ctx, runID, func(ctx context.Context) error {
		return m.store.DeleteRun(ctx, runID)
	})
}

// Store returns the underlying run store.
func (m *Manager) Store() ports.RunStore {
	return m.store
}

// WithLock executes a function while holding the lock for the run.
func (m *Manager) WithLock(ctx context.Context, runID string, fn func(context.Context) error) error {
	entry := m.acquire(runID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(runID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, runID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"run_id", runID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
