package shm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	seg, _, err := Create(tempName(t), 256)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer seg.Close()

	want := []byte(`{"a":1}`)
	if err := WriteFrame(seg, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFrame(seg)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteFrameCapacityGuard(t *testing.T) {
	seg, _, err := Create(tempName(t), 16)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer seg.Close()

	if err := WriteFrame(seg, []byte("fits ok")); err != nil {
		t.Fatalf("small write: %v", err)
	}
	before := make([]byte, seg.Capacity())
	copy(before, seg.Bytes())

	err = WriteFrame(seg, bytes.Repeat([]byte("x"), 9)) // 8 + 9 > 16
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("got %v, want ErrCapacityExceeded", err)
	}
	// The rejected write must not have touched a single byte: the previous
	// frame still parses.
	if !bytes.Equal(before, seg.Bytes()) {
		t.Error("segment bytes changed by a rejected write")
	}
	got, err := ReadFrame(seg)
	if err != nil || string(got) != "fits ok" {
		t.Errorf("previous frame unreadable after rejected write: (%q, %v)", got, err)
	}
}

func TestReadFrameEmptyHeader(t *testing.T) {
	seg, _, err := Create(tempName(t), 64)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer seg.Close()

	payload, err := ReadFrame(seg)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if payload != nil {
		t.Errorf("got %q, want nil for a never-flushed segment", payload)
	}
}

func TestReadFrameTornHeader(t *testing.T) {
	seg, _, err := Create(tempName(t), 32)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer seg.Close()

	// A header declaring more bytes than the segment holds is stale garbage,
	// whether slightly over capacity or all-ones with the top bit set. The
	// all-ones case must not wrap around an int conversion and panic.
	for label, length := range map[string]uint64{
		"slightly over": uint64(seg.Capacity() - HeaderSize + 1),
		"all ones":      ^uint64(0),
	} {
		binary.NativeEndian.PutUint64(seg.Bytes()[:HeaderSize], length)
		if _, err := ReadFrame(seg); !errors.Is(err, ErrTornFrame) {
			t.Errorf("%s header: got %v, want ErrTornFrame", label, err)
		}
	}
}
