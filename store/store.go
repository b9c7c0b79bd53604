// Package store implements the thread-safe named-variable table and its
// shared memory sync operations. Every public operation returns the uniform
// shmvars.Result contract and never lets a fault escape as a raw error.
package store

import (
	log "log/slog"
	"strings"
	"sync"

	"github.com/tbot223/shmvars"
	"github.com/tbot223/shmvars/shm"
)

// Store is a process-local mapping of named variables. All access to the
// table goes through one mutex; public operations hold it for their full
// duration and delegate to unlocked helpers, so an operation can reuse
// another operation's logic under the same acquisition without deadlock.
//
// A Store is created explicitly and passed to whatever needs it; there is
// deliberately no package-level singleton.
type Store struct {
	mu    sync.Mutex
	vars  map[string]any
	order []string // insertion order of keys, for List

	segments *shm.Cache
	owned    map[string]bool // names this store created or connected

	tracker *shmvars.FaultTracker
	mask    shmvars.Mask
}

// Option customizes a Store at construction time.
type Option func(*Store)

// WithSegmentCacheSize bounds the open segment handle cache.
func WithSegmentCacheSize(n int) Option {
	return func(s *Store) {
		s.segments = shm.NewCache(n)
	}
}

// WithMask masks the selected fault fields on every captured failure.
func WithMask(mask shmvars.Mask) Option {
	return func(s *Store) {
		s.mask = mask
	}
}

// New builds an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		vars:     make(map[string]any),
		segments: shm.NewCache(shm.DefaultCacheSize),
		owned:    make(map[string]bool),
		tracker:  shmvars.NewFaultTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fail funnels err through the fault tracker into a failed Result.
func (s *Store) fail(err error, input any) shmvars.Result {
	return s.tracker.CaptureSkip(err, input, s.mask, 2)
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return shmvars.Errorf(shmvars.InvalidArgument, key, "key must be a non-empty string")
	}
	return nil
}

// Set stores value under key. With overwrite false a present key fails with
// KeyExists and the stored value is left untouched.
func (s *Store) Set(key string, value any, overwrite bool) shmvars.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setLocked(key, value, overwrite); err != nil {
		return s.fail(err, key)
	}
	log.Debug("variable set", "key", key)
	return shmvars.OKf("variable %q set", key)
}

// Get returns the value stored under key, failing with KeyNotFound when absent.
func (s *Store) Get(key string) shmvars.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := s.getLocked(key)
	if err != nil {
		return s.fail(err, key)
	}
	return shmvars.OK(value)
}

// Delete removes key, failing with KeyNotFound when absent.
func (s *Store) Delete(key string) shmvars.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteLocked(key); err != nil {
		return s.fail(err, key)
	}
	log.Debug("variable deleted", "key", key)
	return shmvars.OKf("variable %q deleted", key)
}

// Clear removes all entries unconditionally.
func (s *Store) Clear() shmvars.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vars = make(map[string]any)
	s.order = s.order[:0]
	log.Debug("all variables cleared")
	return shmvars.OK("all variables cleared")
}

// List returns the current keys in insertion order.
func (s *Store) List() shmvars.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return shmvars.OK(keys)
}

// Exists reports whether key is present. It never fails for a well-formed key.
func (s *Store) Exists(key string) shmvars.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validKey(key); err != nil {
		return s.fail(err, key)
	}
	_, ok := s.vars[key]
	return shmvars.OK(ok)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vars)
}

// Call is the call-style sugar: Call(key) gets, Call(key, value) sets
// without overwrite, mirroring the explicit methods' validation exactly.
func (s *Store) Call(key string, value ...any) shmvars.Result {
	if len(value) == 0 {
		return s.Get(key)
	}
	return s.Set(key, value[0], false)
}

// Var returns an attribute-style handle bound to one key.
func (s *Store) Var(name string) Var {
	return Var{store: s, name: name}
}

// Var is sugar for repeated access to a single variable. Set always
// overwrites, matching attribute assignment semantics.
type Var struct {
	store *Store
	name  string
}

// Name returns the bound key.
func (v Var) Name() string {
	return v.name
}

// Get reads the bound variable.
func (v Var) Get() shmvars.Result {
	return v.store.Get(v.name)
}

// Set writes the bound variable, overwriting any present value.
func (v Var) Set(value any) shmvars.Result {
	return v.store.Set(v.name, value, true)
}

// Exists reports whether the bound variable is present.
func (v Var) Exists() bool {
	ok, _ := v.store.Exists(v.name).Data.(bool)
	return ok
}

// GetAs reads key and asserts its value to T, returning an error when the
// key is absent or the value has a different dynamic type.
func GetAs[T any](s *Store, key string) (T, error) {
	var zero T
	r := s.Get(key)
	if err := r.Err(); err != nil {
		return zero, err
	}
	value, ok := r.Data.(T)
	if !ok {
		return zero, shmvars.Errorf(shmvars.InvalidArgument, key,
			"variable %q holds %T, not %T", key, r.Data, zero)
	}
	return value, nil
}

// Lock acquires the store's guard and returns a Tx whose operations run
// without re-acquiring it. The caller must Unlock; Update wraps the pair
// for the common case.
func (s *Store) Lock() *Tx {
	s.mu.Lock()
	return &Tx{store: s}
}

// Update runs fn as one critical section, releasing the guard
// unconditionally even when fn panics. Use it to batch a read-modify-write
// that must not interleave with other goroutines.
func (s *Store) Update(fn func(tx *Tx)) {
	tx := s.Lock()
	defer tx.Unlock()
	fn(tx)
}

// Tx is a scoped view of the store valid while its lock is held. Its
// methods mirror the public operations minus the locking.
type Tx struct {
	store *Store
}

// Unlock releases the store's guard. The Tx must not be used afterwards.
func (tx *Tx) Unlock() {
	tx.store.mu.Unlock()
}

// Set stores value under key within the held critical section.
func (tx *Tx) Set(key string, value any, overwrite bool) shmvars.Result {
	if err := tx.store.setLocked(key, value, overwrite); err != nil {
		return tx.store.fail(err, key)
	}
	return shmvars.OKf("variable %q set", key)
}

// Get reads key within the held critical section.
func (tx *Tx) Get(key string) shmvars.Result {
	value, err := tx.store.getLocked(key)
	if err != nil {
		return tx.store.fail(err, key)
	}
	return shmvars.OK(value)
}

// Delete removes key within the held critical section.
func (tx *Tx) Delete(key string) shmvars.Result {
	if err := tx.store.deleteLocked(key); err != nil {
		return tx.store.fail(err, key)
	}
	return shmvars.OKf("variable %q deleted", key)
}

// Exists reports key presence within the held critical section.
func (tx *Tx) Exists(key string) bool {
	_, ok := tx.store.vars[key]
	return ok
}

// Entries returns an insertion-ordered snapshot of the table.
func (tx *Tx) Entries() []shmvars.KeyValuePair[string, any] {
	pairs := make([]shmvars.KeyValuePair[string, any], 0, len(tx.store.order))
	for _, key := range tx.store.order {
		pairs = append(pairs, shmvars.KeyValuePair[string, any]{Key: key, Value: tx.store.vars[key]})
	}
	return pairs
}

// Unlocked helpers. Callers hold s.mu.

func (s *Store) setLocked(key string, value any, overwrite bool) error {
	if err := validKey(key); err != nil {
		return err
	}
	if _, ok := s.vars[key]; ok {
		if !overwrite {
			return shmvars.Errorf(shmvars.KeyExists, key, "variable %q already exists", key)
		}
		s.vars[key] = value
		return nil
	}
	s.vars[key] = value
	s.order = append(s.order, key)
	return nil
}

func (s *Store) getLocked(key string) (any, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	value, ok := s.vars[key]
	if !ok {
		return nil, shmvars.Errorf(shmvars.KeyNotFound, key, "variable %q does not exist", key)
	}
	return value, nil
}

func (s *Store) deleteLocked(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if _, ok := s.vars[key]; !ok {
		return shmvars.Errorf(shmvars.KeyNotFound, key, "variable %q does not exist", key)
	}
	delete(s.vars, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// mergeLocked overwrites entries with the decoded mapping; keys absent from
// it are left untouched (merge, not replace).
func (s *Store) mergeLocked(decoded map[string]any) {
	for key, value := range decoded {
		if _, ok := s.vars[key]; !ok {
			s.order = append(s.order, key)
		}
		s.vars[key] = value
	}
}
