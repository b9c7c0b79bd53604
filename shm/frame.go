package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed width of the length prefix written at offset 0 of
// every segment: an unsigned 64-bit native-endian payload length. The fixed
// header avoids a second round-trip to discover the payload size and keeps
// the framing trivially parseable.
const HeaderSize = 8

// ErrCapacityExceeded reports a payload that, together with the header,
// would overflow the segment.
var ErrCapacityExceeded = errors.New("payload exceeds segment capacity")

// ErrTornFrame reports a header whose declared length runs past the segment
// end, which means the frame was never written fully or the header is stale
// garbage.
var ErrTornFrame = errors.New("frame length exceeds segment capacity")

// WriteFrame writes the length header followed by payload at offset 0.
// The capacity check runs before any byte is written so an oversized payload
// never partially corrupts the segment. The write itself is not atomic
// across processes; callers needing that hold the segment's FileLock.
func WriteFrame(seg *Segment, payload []byte) error {
	need := HeaderSize + len(payload)
	if need > seg.Capacity() {
		return fmt.Errorf("%w: %d bytes into %d", ErrCapacityExceeded, need, seg.Capacity())
	}
	buf := seg.Bytes()
	binary.NativeEndian.PutUint64(buf[:HeaderSize], uint64(len(payload)))
	copy(buf[HeaderSize:need], payload)
	return nil
}

// ReadFrame reads the header and returns a copy of exactly that many payload
// bytes. A zero length means no frame has been written yet and yields
// (nil, nil). The copy detaches the caller from concurrent segment writes.
func ReadFrame(seg *Segment) ([]byte, error) {
	buf := seg.Bytes()
	length := binary.NativeEndian.Uint64(buf[:HeaderSize])
	if length == 0 {
		return nil, nil
	}
	// Compare in uint64 space: the header is untrusted bytes, and converting
	// a huge declared length to int first would wrap negative and slip past
	// the bound.
	limit := seg.Capacity() - HeaderSize
	if limit < 0 || length > uint64(limit) {
		return nil, fmt.Errorf("%w: header declares %d bytes in a %d byte segment",
			ErrTornFrame, length, seg.Capacity())
	}
	payload := make([]byte, length)
	copy(payload, buf[HeaderSize:HeaderSize+int(length)])
	return payload, nil
}
