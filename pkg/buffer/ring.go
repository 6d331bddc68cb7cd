package buffer

import (
	"fmt"

	"github.com/raceant/scull/errors"
)

// Ring is a fixed-capacity byte ring addressed by two wrapping cursors.
//
// The ring never fills completely: one byte of slack keeps "empty"
// (readPos == writePos) distinguishable from "full" using the cursors alone,
// so at most Cap()-1 bytes are buffered at any time.
//
// Ring is not safe for concurrent use. Callers serialize access with their
// own gate.
type Ring struct {
	data     []byte
	readPos  int // next byte to read
	writePos int // next byte to write
}

// NewRing allocates a ring with the given capacity.
func NewRing(capacity int) (*Ring, error) {
	if capacity < 2 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d", errors.ErrInvalidCapacity, capacity),
			"Ring", "NewRing", "validate capacity")
	}
	return &Ring{data: make([]byte, capacity)}, nil
}

// WrapStorage builds a ring over caller-provided storage. The ring owns the
// slice from then on.
func WrapStorage(storage []byte) (*Ring, error) {
	if len(storage) < 2 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d", errors.ErrInvalidCapacity, len(storage)),
			"Ring", "WrapStorage", "validate capacity")
	}
	return &Ring{data: storage}, nil
}

// Cap returns the size of the backing array.
func (r *Ring) Cap() int {
	return len(r.data)
}

// Usable returns the number of bytes the ring can hold at once.
func (r *Ring) Usable() int {
	return len(r.data) - 1
}

// SpaceFree returns the number of bytes that can be written without reading.
func (r *Ring) SpaceFree() int {
	if r.readPos == r.writePos {
		return len(r.data) - 1
	}
	c := len(r.data)
	return (r.readPos-r.writePos+c)%c - 1
}

// DataAvailable returns the number of buffered bytes.
func (r *Ring) DataAvailable() int {
	return len(r.data) - 1 - r.SpaceFree()
}

// IsEmpty reports whether no bytes are buffered.
func (r *Ring) IsEmpty() bool {
	return r.readPos == r.writePos
}

// Write copies as much of src as fits and returns the count copied.
// A run that crosses the end of the array is split into two copies.
func (r *Ring) Write(src []byte) int {
	n := min(len(src), r.SpaceFree())
	if n == 0 {
		return 0
	}

	first := min(n, len(r.data)-r.writePos)
	copy(r.data[r.writePos:r.writePos+first], src[:first])
	copy(r.data[:n-first], src[first:n])

	r.writePos = (r.writePos + n) % len(r.data)
	return n
}

// Read moves up to len(dst) buffered bytes into dst and returns the count.
func (r *Ring) Read(dst []byte) int {
	n := min(len(dst), r.DataAvailable())
	if n == 0 {
		return 0
	}

	first := min(n, len(r.data)-r.readPos)
	copy(dst[:first], r.data[r.readPos:r.readPos+first])
	copy(dst[first:n], r.data[:n-first])

	r.readPos = (r.readPos + n) % len(r.data)
	return n
}

// Reset discards buffered bytes and moves both cursors to the start.
func (r *Ring) Reset() {
	r.readPos = 0
	r.writePos = 0
}

// Cursors returns the read and write offsets, for diagnostics.
func (r *Ring) Cursors() (readPos, writePos int) {
	return r.readPos, r.writePos
}
