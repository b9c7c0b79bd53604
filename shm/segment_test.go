package shm

import (
	"errors"
	"os"
	"testing"

	"github.com/tbot223/shmvars"
)

// tempName returns a unique segment name and schedules backing-file cleanup.
func tempName(t *testing.T) string {
	t.Helper()
	name := "t" + shmvars.NewUUID().String()[:8]
	t.Cleanup(func() {
		os.Remove(SegmentPath(name))
		os.Remove(LockPath(name))
	})
	return name
}

func TestCreateFreshSegment(t *testing.T) {
	name := tempName(t)

	seg, adopted, err := Create(name, 4096)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer seg.Close()

	if adopted {
		t.Error("fresh segment reported as adopted")
	}
	if seg.Capacity() != 4096 {
		t.Errorf("capacity %d, want 4096", seg.Capacity())
	}
	// Fresh mapping must read as "no data yet".
	if payload, err := ReadFrame(seg); err != nil || payload != nil {
		t.Errorf("fresh segment ReadFrame = (%v, %v), want (nil, nil)", payload, err)
	}
}

func TestCreateAdoptsExisting(t *testing.T) {
	name := tempName(t)

	first, _, err := Create(name, 2048)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer first.Close()

	second, adopted, err := Create(name, 9999)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	defer second.Close()

	if !adopted {
		t.Error("expected adoption of the existing segment")
	}
	// The adopted handle keeps the original capacity; no resizing ever.
	if second.Capacity() != 2048 {
		t.Errorf("adopted capacity %d, want 2048", second.Capacity())
	}
}

func TestCreateRejectsBadArguments(t *testing.T) {
	if _, _, err := Create("  ", 1024); err == nil {
		t.Error("expected error for blank name")
	}
	if _, _, err := Create("sub/dir", 1024); err == nil {
		t.Error("expected error for name with path separator")
	}
	if _, _, err := Create(tempName(t), 0); err == nil {
		t.Error("expected error for non-positive capacity")
	}
}

func TestOpenMissingSegment(t *testing.T) {
	_, err := Open(tempName(t))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSharedVisibilityAcrossHandles(t *testing.T) {
	name := tempName(t)

	writer, _, err := Create(name, 1024)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer writer.Close()

	reader, err := Open(name)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()

	if err := WriteFrame(writer, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	payload, err := ReadFrame(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(payload) != "hello" {
		t.Errorf("read %q through second handle, want %q", payload, "hello")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	seg, _, err := Create(tempName(t), 1024)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := seg.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestUnlinkDestroysSegment(t *testing.T) {
	name := tempName(t)
	seg, _, err := Create(name, 1024)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	seg.Close()
	if err := seg.Unlink(); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if _, err := Open(name); !errors.Is(err, ErrNotFound) {
		t.Errorf("open after unlink: got %v, want ErrNotFound", err)
	}
}
