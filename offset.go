// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

// Offset addresses a byte inside a Region's arena, measured from the start
// of the Region's own backing buffer. It is never a native pointer, which
// is what allows the buffer backing a Region to move in the host's address
// space without invalidating anything stored inside it. The zero Offset is
// reserved and always means "no value" — nothing is ever allocated at
// offset 0, since it falls inside the Region header.
type Offset uint32

// nullOffset is the zero value spelled out for readability at call sites
// that return it explicitly to signal "not present" or "allocation failed".
const nullOffset Offset = 0

// Valid reports whether off is non-null and, together with size bytes
// starting at it, lies entirely inside r's current backing buffer (header
// included; Valid does not check that off is past the header). A null Offset is
// never valid, even with size 0: the region header itself occupies offset
// 0, so nothing meaningful is ever stored there.
func (r *Region) Valid(off Offset, size uint32) bool {
	if off == nullOffset {
		return false
	}
	start := uint64(off)
	end := start + uint64(size)
	return end >= start && end <= uint64(len(r.buf))
}

// at resolves off into a slice of size bytes within r's current backing
// array. The returned slice is only valid until the next call that can
// reallocate or grow r (see Region.Generation); callers that need to
// survive such a call must re-resolve the Offset afterward.
//
// at does not special-case the null Offset: callers that treat 0 as "not
// present" must check for it themselves before calling at, exactly as they
// must check a free-list length word's top bit before treating it as a
// plain size.
func (r *Region) at(off Offset, size uint32) ([]byte, error) {
	if !r.magicOK() {
		return nil, &ErrInvalidRegion{Reason: "header magic not recognized"}
	}
	if !r.Valid(off, size) {
		return nil, &ErrOutOfRange{Off: off, Size: size, FullSize: uint32(len(r.buf))}
	}
	return r.buf[off : uint64(off)+uint64(size)], nil
}

// offsetAt reads a 4-byte, host-endian Offset stored at off (used for
// header slots and vector/string "pointer" cells inside the arena, as
// opposed to the little-endian length prefix of a string cell's own
// content — see string.go).
func (r *Region) offsetAt(off Offset) (Offset, error) {
	b, err := r.at(off, 4)
	if err != nil {
		return 0, err
	}
	return Offset(endian.Uint32(b)), nil
}

// setOffsetAt writes a 4-byte, host-endian Offset at off.
func (r *Region) setOffsetAt(off Offset, v Offset) error {
	b, err := r.at(off, 4)
	if err != nil {
		return err
	}
	endian.PutUint32(b, uint32(v))
	return nil
}
