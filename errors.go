// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is returned by the string, vector and message helpers when
// the underlying Allocate/Realloc call returns a null Offset. The low-level
// allocator (Region.Allocate, Region.Realloc) never returns this error
// itself — per the allocator's own contract it signals exhaustion with a
// null Offset, never a Go error — this sentinel exists only so the
// higher-level, already-Go-idiomatic helpers built on top of it have
// something to return.
var ErrOutOfMemory = errors.New("payloadbuf: out of memory")

// ErrInvalidRegion reports a Region whose header does not carry a
// recognized magic number, or whose size is too small to hold a header.
type ErrInvalidRegion struct {
	Reason string
}

func (e *ErrInvalidRegion) Error() string {
	return fmt.Sprintf("payloadbuf: invalid region: %s", e.Reason)
}

// ErrOutOfRange reports an Offset, or an Offset plus a size, that falls
// outside the region's current backing buffer.
type ErrOutOfRange struct {
	Off      Offset
	Size     uint32
	FullSize uint32
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("payloadbuf: offset %d size %d out of range (region size %d)", e.Off, e.Size, e.FullSize)
}

// ErrCorrupt reports an internal structure (free list, bitmap run, vector
// header) that fails a consistency check. Seeing one of these means either
// the region's bytes were mutated by something other than this package, or
// there is a bug here.
type ErrCorrupt struct {
	Reason string
	Off    Offset
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("payloadbuf: corrupt structure at offset %d: %s", e.Off, e.Reason)
}

// ErrInvalidArgument reports a caller-supplied argument that violates a
// precondition not otherwise covered by ErrOutOfRange (a region size too
// small for its header, nil Resizer on a moveable region, a size class out
// of range, ...).
type ErrInvalidArgument struct {
	Reason string
}

func (e *ErrInvalidArgument) Error() string {
	return fmt.Sprintf("payloadbuf: invalid argument: %s", e.Reason)
}
