package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/becomeliminal/nim-memory/memory/index"
)

// Registry is the standard Manager implementation. It keeps at most one
// live Store per user, loading it from DataDir on first use, and serializes
// every operation on a user's store with a per-user mutex held for the
// whole read-modify-write sequence.
//
// Different users never wait on each other beyond the short map lookup.
// The registry does not guard against a second process using the same
// DataDir.
type Registry struct {
	embedder Embedder
	config   *Config
	builder  index.Builder

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	path     string
	store    *Store // nil until loaded
	evicted  bool
	lastUsed time.Time
}

var _ Manager = (*Registry)(nil)

// NewRegistry creates a registry. A nil config uses DefaultConfig.
func NewRegistry(embedder Embedder, config *Config) (*Registry, error) {
	if config == nil {
		config = DefaultConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	builder, err := config.IndexBuilder()
	if err != nil {
		return nil, err
	}
	return &Registry{
		embedder: embedder,
		config:   config,
		builder:  builder,
		entries:  make(map[string]*entry),
	}, nil
}

// PathFor maps a user ID to its storage prefix, DataDir/<userID>.
func (r *Registry) PathFor(userID string) (string, error) {
	if userID == "" || userID == "." || userID == ".." ||
		strings.ContainsAny(userID, `/\`+"\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return filepath.Join(r.config.DataDir, userID), nil
}

// GetOrCreate returns the user's live store, loading it on first access.
// A failed load is not cached.
//
// The returned Store is not locked. Prefer AddFragment/SearchContext/Persist,
// which hold the user's lock for the whole operation.
func (r *Registry) GetOrCreate(userID string) (*Store, error) {
	var store *Store
	err := r.withStore(userID, func(s *Store) error {
		store = s
		return nil
	})
	return store, err
}

// AddFragment embeds text into the user's store.
func (r *Registry) AddFragment(ctx context.Context, userID string, text string) error {
	return r.withStore(userID, func(s *Store) error {
		if err := s.Add(ctx, text); err != nil {
			return err
		}
		log.Printf("[REGISTRY] Added fragment for user=%s: fragments=%d, text=%q",
			userID, s.Len(), truncateLog(text, 50))
		return nil
	})
}

// SearchContext returns up to k fragments closest to query. k < 1 uses
// Config.SearchK.
func (r *Registry) SearchContext(ctx context.Context, userID string, query string, k int) ([]string, error) {
	if k < 1 {
		k = r.config.SearchK
	}
	var results []string
	err := r.withStore(userID, func(s *Store) error {
		var err error
		results, err = s.Search(ctx, query, k)
		if err != nil {
			return err
		}
		log.Printf("[REGISTRY] Retrieved %d fragments for user=%s, query=%q",
			len(results), userID, truncateLog(query, 50))
		return nil
	})
	return results, err
}

// Persist saves the user's store. Users whose store was never loaded have
// nothing to save.
func (r *Registry) Persist(userID string) error {
	if _, err := r.PathFor(userID); err != nil {
		return err
	}
	r.mu.Lock()
	e, ok := r.entries[userID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	return r.persistEntry(userID, e)
}

func (r *Registry) persistEntry(userID string, e *entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		// Evict already saved this store; a newer entry may own the files.
		return nil
	}
	return r.persistLocked(userID, e)
}

// PersistAll saves every loaded store and joins the errors.
func (r *Registry) PersistAll() error {
	var errs []error
	for _, userID := range r.Users() {
		if err := r.Persist(userID); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

// Evict saves the user's store and drops it from the cache. The next access
// loads it again from disk.
func (r *Registry) Evict(userID string) error {
	_, err := r.evict(userID, time.Time{})
	return err
}

// EvictIdle evicts every store last used before now-idle and returns how
// many were dropped.
func (r *Registry) EvictIdle(idle time.Duration) (int, error) {
	cutoff := time.Now().Add(-idle)

	var (
		evicted int
		errs    []error
	)
	for _, userID := range r.Users() {
		ok, err := r.evict(userID, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		if ok {
			evicted++
		}
	}
	return evicted, errors.Join(errs...)
}

// evict drops the user's entry if it was last used before cutoff. A zero
// cutoff evicts unconditionally.
func (r *Registry) evict(userID string, cutoff time.Time) (bool, error) {
	r.mu.Lock()
	e, ok := r.entries[userID]
	r.mu.Unlock()
	if !ok {
		return false, nil
	}
	return r.evictEntry(userID, e, cutoff)
}

func (r *Registry) evictEntry(userID string, e *entry, cutoff time.Time) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return false, nil
	}
	if !cutoff.IsZero() && !e.lastUsed.Before(cutoff) {
		return false, nil
	}
	if err := r.persistLocked(userID, e); err != nil {
		return false, err
	}

	r.mu.Lock()
	if r.entries[userID] == e {
		delete(r.entries, userID)
	}
	r.mu.Unlock()
	e.evicted = true

	log.Printf("[REGISTRY] Evicted store for user=%s", userID)
	return true, nil
}

// Users returns the IDs with a cached entry, sorted.
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.entries))
	for id := range r.entries {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// withStore runs fn on the user's store while holding the user's lock.
func (r *Registry) withStore(userID string, fn func(*Store) error) error {
	path, err := r.PathFor(userID)
	if err != nil {
		return err
	}

	for {
		r.mu.Lock()
		e, ok := r.entries[userID]
		if !ok {
			e = &entry{path: path}
			r.entries[userID] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if e.evicted {
			// Lost a race with Evict; pick up the fresh entry.
			e.mu.Unlock()
			continue
		}

		if e.store == nil {
			store, err := Load(e.path, r.embedder,
				WithMaxSize(r.config.MaxSize),
				WithSearchK(r.config.SearchK),
				WithIndexBuilder(r.builder),
			)
			if err != nil {
				e.mu.Unlock()
				return fmt.Errorf("load store for user %s: %w", userID, err)
			}
			log.Printf("[REGISTRY] Loaded store for user=%s: fragments=%d, path=%s",
				userID, store.Len(), e.path)
			e.store = store
		}

		err := fn(e.store)
		e.lastUsed = time.Now()
		e.mu.Unlock()
		return err
	}
}

// persistLocked saves e's store. Caller holds e.mu.
func (r *Registry) persistLocked(userID string, e *entry) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Save(e.path); err != nil {
		return fmt.Errorf("save store for user %s: %w", userID, err)
	}
	log.Printf("[REGISTRY] Persisted store for user=%s: fragments=%d, path=%s",
		userID, e.store.Len(), e.path)
	return nil
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
