// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import "encoding/binary"

// A string cell is one allocation holding a 32-bit little-endian length L
// followed by L raw bytes. Unlike every other internal structure in this
// package, the length prefix is explicitly little-endian rather than
// host-endian: a string's bytes are the one thing meant to leave the
// region wholesale (GetString copies them out), so its own self-describing
// prefix is pinned to a fixed byte order instead of inheriting whatever
// the host happens to be.
const stringLenPrefix = 4

// SetString replaces the string stored at headerOffset (an Offset slot
// somewhere in the arena, such as a Header field or a vector element) with
// data, allocating or growing the backing cell as needed. On
// ErrOutOfMemory the header is left pointing at its previous value,
// unchanged.
func SetString(r *Region, headerOffset Offset, data []byte) error {
	cur, err := r.offsetAt(headerOffset)
	if err != nil {
		return err
	}
	payloadLen := uint32(stringLenPrefix + len(data))
	var cellOff Offset
	if cur != nullOffset {
		cellOff, err = r.allocateAligned4Realloc(cur, payloadLen)
	} else {
		cellOff, err = r.allocate(payloadLen, 4, false, true)
	}
	if err != nil {
		return err
	}
	if cellOff == nullOffset {
		return ErrOutOfMemory
	}
	b, err := r.at(cellOff, payloadLen)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[:stringLenPrefix], uint32(len(data)))
	copy(b[stringLenPrefix:], data)
	return r.setOffsetAt(headerOffset, cellOff)
}

// allocateAligned4Realloc resizes an existing, non-null string cell to n
// bytes through the same small-block and general paths Realloc uses. It
// does not keep the 4-byte alignment of a cell's first allocation: a cell
// resized on the general free list is rounded up to 8 bytes like any other
// Realloc, and a small-block cell is moved to a fresh slot.
func (r *Region) allocateAligned4Realloc(handle Offset, n uint32) (Offset, error) {
	word, err := r.lengthWord(handle)
	if err != nil {
		return 0, err
	}
	if word&smallBlockFlag != 0 {
		return r.reallocSmall(handle, word, n)
	}
	return r.reallocGeneral(handle, word, n)
}

// AllocateString reserves space for a string of the given length at
// headerOffset without writing its content, and returns a mutable view
// over the length bytes for the caller to fill in directly — used when
// the string's content is produced incrementally rather than handed over
// as a single []byte.
func AllocateString(r *Region, headerOffset Offset, length uint32) ([]byte, error) {
	payloadLen := uint32(stringLenPrefix) + length
	cur, err := r.offsetAt(headerOffset)
	if err != nil {
		return nil, err
	}
	var cellOff Offset
	if cur != nullOffset {
		cellOff, err = r.allocateAligned4Realloc(cur, payloadLen)
	} else {
		cellOff, err = r.allocate(payloadLen, 4, false, true)
	}
	if err != nil {
		return nil, err
	}
	if cellOff == nullOffset {
		return nil, ErrOutOfMemory
	}
	b, err := r.at(cellOff, payloadLen)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(b[:stringLenPrefix], length)
	if err := r.setOffsetAt(headerOffset, cellOff); err != nil {
		return nil, err
	}
	return b[stringLenPrefix:], nil
}

// StringSize returns the stored length of the string at headerOffset, 0 if
// none has been set.
func StringSize(r *Region, headerOffset Offset) (uint32, error) {
	off, err := r.offsetAt(headerOffset)
	if err != nil {
		return 0, err
	}
	if off == nullOffset {
		return 0, nil
	}
	prefix, err := r.at(off, stringLenPrefix)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(prefix), nil
}

// StringData returns the cell offset of the string's content (just past
// its length prefix) and a view over it. The view follows the same
// relocation contract as GetStringView: valid only until the next call
// that can allocate.
func StringData(r *Region, headerOffset Offset) (Offset, []byte, error) {
	off, err := r.offsetAt(headerOffset)
	if err != nil {
		return 0, nil, err
	}
	if off == nullOffset {
		return 0, nil, nil
	}
	n, err := StringSize(r, headerOffset)
	if err != nil {
		return 0, nil, err
	}
	b, err := r.at(off+stringLenPrefix, n)
	if err != nil {
		return 0, nil, err
	}
	return off + stringLenPrefix, b, nil
}

// GetStringView returns a slice directly into r's current backing array.
// It is the zero-copy counterpart to GetString and is only valid until
// the next call on r that can allocate or grow it — see Region.Generation.
func GetStringView(r *Region, headerOffset Offset) ([]byte, error) {
	_, b, err := StringData(r, headerOffset)
	return b, err
}

// GetString returns a freshly copied []byte holding the string at
// headerOffset, safe to keep across any later mutation of r.
func GetString(r *Region, headerOffset Offset) ([]byte, error) {
	view, err := GetStringView(r, headerOffset)
	if err != nil || view == nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// ClearString frees the string cell at headerOffset, if any, and resets
// the header slot to null.
func ClearString(r *Region, headerOffset Offset) error {
	off, err := r.offsetAt(headerOffset)
	if err != nil {
		return err
	}
	if off == nullOffset {
		return nil
	}
	if err := r.Free(off); err != nil {
		return err
	}
	return r.setOffsetAt(headerOffset, nullOffset)
}
