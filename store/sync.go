package store

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"github.com/tbot223/shmvars"
	"github.com/tbot223/shmvars/shm"
)

// Shared memory lifecycle and sync operations. The store's mutex protects
// the variable table and the owned-name set; it does NOT protect the segment
// across processes. Two processes flushing and loading the same segment race
// unless both hold the FileLock handed out by ShmCreate: a torn frame or a
// lost whole-table update is the documented cost of skipping it.

// ShmCreate creates a named segment of the given capacity, adopting the
// existing segment when one is already present (idempotent creation), and
// registers the handle in the segment cache.
//
// With withLock true it also allocates the segment's cross-process lock and
// returns it as the Result payload (*shm.FileLock). The creator is
// responsible for handing that lock to any child process before it needs
// synchronized access; ShmConnect never returns one.
func (s *Store) ShmCreate(name string, capacity int, withLock bool) shmvars.Result {
	if strings.TrimSpace(name) == "" {
		return s.fail(shmvars.Errorf(shmvars.InvalidArgument, name, "name must be a non-empty string"), name)
	}
	if capacity <= 0 {
		return s.fail(shmvars.Errorf(shmvars.InvalidArgument, name,
			"capacity must be a positive integer, got %d", capacity), name)
	}

	seg, adopted, err := shm.Create(name, capacity)
	if err != nil {
		return s.fail(err, name)
	}

	s.segments.Register(name, seg)
	s.setOwned(name)
	log.Debug("segment created", "name", name, "capacity", seg.Capacity(), "adopted", adopted)

	if withLock {
		lock, err := shm.NewFileLock(shm.LockPath(name))
		if err != nil {
			return s.fail(err, name)
		}
		return shmvars.OK(lock)
	}
	return shmvars.OKf("segment %q created", name)
}

// ShmConnect attaches to an existing segment without creating one, for
// processes that are not the segment's creator. It fails with
// SegmentNotFound when no segment with that name exists.
func (s *Store) ShmConnect(name string) shmvars.Result {
	if _, err := s.fetchSegment(name); err != nil {
		return s.fail(err, name)
	}
	s.setOwned(name)
	log.Debug("segment connected", "name", name)
	return shmvars.OKf("connected to segment %q", name)
}

// ShmConnectWait is ShmConnect with a bounded retry, for the window where
// the creating process has not produced the segment yet. It gives up when
// ctx is done or the retry budget is exhausted; a cancelled context yields
// a cancelled Result.
func (s *Store) ShmConnectWait(ctx context.Context, name string) shmvars.Result {
	err := shmvars.Retry(ctx, func(ctx context.Context) error {
		_, err := s.fetchSegment(name)
		if errors.Is(err, shm.ErrNotFound) {
			return shmvars.Retryable(err)
		}
		return err
	}, func(ctx context.Context) {
		log.Warn("gave up waiting for segment", "name", name)
	})
	if err != nil {
		return s.fail(err, name)
	}
	s.setOwned(name)
	return shmvars.OKf("connected to segment %q", name)
}

// ShmGet returns the open handle for name (*shm.Segment payload), opening
// and caching it when needed.
func (s *Store) ShmGet(name string) shmvars.Result {
	seg, err := s.fetchSegment(name)
	if err != nil {
		return s.fail(err, name)
	}
	return shmvars.OK(seg)
}

// ShmSync serializes the entire variable table with the chosen format and
// writes it as one frame into the named segment. The capacity check runs
// before any write, so an oversized table fails with CapacityExceeded and
// leaves the segment parseable.
//
// The frame write is not atomic across processes; hold the segment's
// FileLock around load-modify-sync cycles that need atomicity.
func (s *Store) ShmSync(name string, format string) shmvars.Result {
	marshaler, ok := shmvars.MarshalerFor(format)
	if !ok {
		return s.fail(shmvars.Errorf(shmvars.UnsupportedFormat, format,
			"unsupported serialization format %q, recognized: %v", format, shmvars.Formats()), name)
	}
	if !s.isOwned(name) {
		return s.fail(shmvars.Errorf(shmvars.InvalidArgument, name,
			"segment %q was not created or connected by this store", name), name)
	}

	seg, err := s.fetchSegment(name)
	if err != nil {
		return s.fail(err, name)
	}

	payload, err := marshaler.Marshal(s.snapshot())
	if err != nil {
		return s.fail(shmvars.Errorf(shmvars.Unknown, name, "serialize variables: %w", err), name)
	}

	if err := shm.WriteFrame(seg, payload); err != nil {
		if errors.Is(err, shm.ErrCapacityExceeded) {
			err = shmvars.Errorf(shmvars.CapacityExceeded, name, "%w", err)
		}
		return s.fail(err, name)
	}

	log.Debug("segment synchronized", "name", name, "format", format, "bytes", len(payload))
	return shmvars.OKf("segment %q synchronized", name)
}

// ShmUpdate reads the segment's frame, deserializes it with the chosen
// format and merges the decoded mapping into the table: incoming keys
// overwrite, keys only present locally are left untouched. A segment that
// was never flushed (zero length header) is a successful no-op.
func (s *Store) ShmUpdate(name string, format string) shmvars.Result {
	marshaler, ok := shmvars.MarshalerFor(format)
	if !ok {
		return s.fail(shmvars.Errorf(shmvars.UnsupportedFormat, format,
			"unsupported serialization format %q, recognized: %v", format, shmvars.Formats()), name)
	}

	seg, err := s.fetchSegment(name)
	if err != nil {
		return s.fail(err, name)
	}

	payload, err := shm.ReadFrame(seg)
	if err != nil {
		return s.fail(shmvars.Errorf(shmvars.DeserializationError, name, "%w", err), name)
	}
	if payload == nil {
		log.Debug("segment holds no data yet", "name", name)
		return shmvars.OKf("segment %q holds no data to merge", name)
	}

	decoded := make(map[string]any)
	if err := marshaler.Unmarshal(payload, &decoded); err != nil {
		return s.fail(shmvars.Errorf(shmvars.DeserializationError, name,
			"read %d payload bytes but failed to decode as %s: %w", len(payload), format, err), name)
	}

	s.mu.Lock()
	s.mergeLocked(decoded)
	s.mu.Unlock()

	log.Debug("segment merged", "name", name, "format", format, "keys", len(decoded))
	return shmvars.OKf("segment %q merged into store", name)
}

// ShmClose closes the local handle for name and drops it from the cache.
// With unlink true it additionally destroys the OS object, after which any
// Connect fails, and forgets ownership. Closing an unregistered (or already
// closed-and-unlinked) name reports a benign SegmentNotFound failure rather
// than crashing.
func (s *Store) ShmClose(name string, unlink bool) shmvars.Result {
	if !s.isOwned(name) {
		return s.fail(shmvars.Errorf(shmvars.SegmentNotFound, name,
			"segment %q is not registered with this store", name), name)
	}

	seg, err := s.fetchSegment(name)
	if err != nil {
		// Handle vanished underneath us; drop bookkeeping and report.
		s.segments.Remove(name)
		if unlink {
			s.dropOwned(name)
		}
		return s.fail(err, name)
	}

	err = seg.Close()
	s.segments.Remove(name)
	if unlink {
		if uerr := seg.Unlink(); uerr != nil && err == nil {
			err = uerr
		}
		s.dropOwned(name)
	}
	if err != nil {
		return s.fail(err, name)
	}

	log.Debug("segment closed", "name", name, "unlink", unlink)
	return shmvars.OKf("segment %q closed", name)
}

// SegmentCacheLen reports the number of cached open handles.
func (s *Store) SegmentCacheLen() int {
	return s.segments.Len()
}

// snapshot copies the table under the lock so serialization runs outside it.
func (s *Store) snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

func (s *Store) fetchSegment(name string) (*shm.Segment, error) {
	seg, err := s.segments.Fetch(name)
	if err != nil {
		if errors.Is(err, shm.ErrNotFound) {
			return nil, shmvars.Errorf(shmvars.SegmentNotFound, name, "%w", err)
		}
		return nil, fmt.Errorf("fetch segment %q: %w", name, err)
	}
	return seg, nil
}

func (s *Store) setOwned(name string) {
	s.mu.Lock()
	s.owned[name] = true
	s.mu.Unlock()
}

func (s *Store) dropOwned(name string) {
	s.mu.Lock()
	delete(s.owned, name)
	s.mu.Unlock()
}

func (s *Store) isOwned(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owned[name]
}
