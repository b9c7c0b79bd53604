// Package shm wraps the OS shared memory primitive: named fixed-size
// mmap-backed segments, a bounded cache of open handles, the length-prefixed
// frame codec and a cross-process file lock.
//
// Segments are plain files under /dev/shm (or the temp dir when /dev/shm is
// unavailable) mapped MAP_SHARED, so any local process that knows the name
// can attach. Capacity is fixed at creation and never resized.
package shm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// DefaultCapacity is the segment size used when the caller does not
	// pick one.
	DefaultCapacity = 1024

	segmentPrefix = "shmvars_"
)

// ErrNotFound reports a named segment that does not exist at the OS level.
var ErrNotFound = errors.New("shared memory segment not found")

// Segment is an open handle on a named fixed-size shared byte buffer.
// The mapping is shared: writes are visible to every process attached to
// the same name. A Segment is not safe for concurrent use by itself; the
// store's locks provide that.
type Segment struct {
	name string
	path string
	file *os.File
	mem  []byte
}

// SegmentPath resolves the backing file path for a segment name.
func SegmentPath(name string) string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", segmentPrefix+name)
	}
	return filepath.Join(os.TempDir(), segmentPrefix+name)
}

// LockPath resolves the sidecar lock file path for a segment name.
func LockPath(name string) string {
	return SegmentPath(name) + ".lock"
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name must be a non-empty string")
	}
	// The name becomes a path component; reject anything that escapes it.
	if filepath.Base(name) != name {
		return fmt.Errorf("name %q must not contain path separators", name)
	}
	return nil
}

// Create creates a named segment of the given capacity, or adopts the
// existing one (ignoring the requested capacity) when a segment with that
// name is already present. The adopted return reports which happened. A
// freshly created segment is zero-filled, which readers treat as "no data".
func Create(name string, capacity int) (seg *Segment, adopted bool, err error) {
	if err := validateName(name); err != nil {
		return nil, false, err
	}
	if capacity <= 0 {
		return nil, false, fmt.Errorf("capacity must be a positive integer, got %d", capacity)
	}

	path := SegmentPath(name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if os.IsExist(err) {
			existing, openErr := Open(name)
			return existing, true, openErr
		}
		return nil, false, fmt.Errorf("create segment file %s: %w", path, err)
	}

	if err := file.Truncate(int64(capacity)); err != nil {
		file.Close()
		os.Remove(path)
		return nil, false, fmt.Errorf("resize segment file to %d bytes: %w", capacity, err)
	}

	mem, err := mapFile(file, capacity)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, false, err
	}

	return &Segment{name: name, path: path, file: file, mem: mem}, false, nil
}

// Open attaches to an existing named segment without creating one. It
// returns ErrNotFound when no segment with that name exists.
func Open(name string) (*Segment, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	path := SegmentPath(name)
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("open segment file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat segment file %s: %w", path, err)
	}
	size := int(info.Size())
	if size < HeaderSize {
		file.Close()
		return nil, fmt.Errorf("segment %q too small: %d bytes", name, size)
	}

	mem, err := mapFile(file, size)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Segment{name: name, path: path, file: file, mem: mem}, nil
}

// Name returns the segment name.
func (s *Segment) Name() string {
	return s.name
}

// Capacity returns the fixed byte capacity chosen at creation time.
func (s *Segment) Capacity() int {
	return len(s.mem)
}

// Bytes exposes the mapped buffer. Mutations are visible to every attached
// process immediately and without any ordering guarantee.
func (s *Segment) Bytes() []byte {
	return s.mem
}

// Close unmaps and closes the local handle. It is idempotent; the OS object
// survives until Unlink.
func (s *Segment) Close() error {
	if s.mem == nil {
		return nil
	}
	err := unix.Munmap(s.mem)
	s.mem = nil
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close segment %q: %w", s.name, err)
	}
	return nil
}

// Unlink requests OS-level destruction of the segment. Subsequent Open
// calls by any process fail with ErrNotFound.
func (s *Segment) Unlink() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink segment %q: %w", s.name, err)
	}
	return nil
}

func mapFile(file *os.File, size int) ([]byte, error) {
	mem, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap segment: %w", err)
	}
	return mem, nil
}
