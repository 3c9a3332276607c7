// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

// AllocateMainMessage reserves size bytes for the region's main message
// slot (the header's message field) and returns its offset. Calling it
// again replaces the previous allocation's offset in the header without
// freeing the old one — callers that want the old space reclaimed must
// Free it themselves first, exactly as with any other header-held Offset.
func AllocateMainMessage(r *Region, size uint32) (Offset, error) {
	off, err := r.allocate(size, 8, false, true)
	if err != nil {
		return 0, err
	}
	if off == nullOffset {
		return 0, ErrOutOfMemory
	}
	r.setMessageOff(off)
	return off, nil
}

// AllocateMetadata reserves space for the region's metadata slot and
// copies data into it. Metadata allocations are 1-byte aligned: unlike the
// main message, metadata is treated as an opaque, arbitrarily-sized blob
// with no internal structure of its own that would want 8-byte alignment.
func AllocateMetadata(r *Region, data []byte) (Offset, error) {
	off, err := r.allocate(uint32(len(data)), 1, false, true)
	if err != nil {
		return 0, err
	}
	if off == nullOffset {
		return 0, ErrOutOfMemory
	}
	b, err := r.at(off, uint32(len(data)))
	if err != nil {
		return 0, err
	}
	copy(b, data)
	r.setMetadataOff(off)
	return off, nil
}

// presenceWordOffset/mask decode a field index k into the 4-byte word
// (within the bitmap starting at bitmapOff) that carries bit k and the
// mask selecting that bit, the same word/mask split dbm/bits.go uses for
// its own three-level bit addressing.
func presenceWordOffset(bitmapOff Offset, k uint32) Offset {
	return bitmapOff + Offset(k/32)*4
}

func presenceMask(k uint32) uint32 {
	return 1 << (k % 32)
}

// SetPresenceBit marks field k present in the presence bitmap at
// bitmapOff.
func SetPresenceBit(r *Region, bitmapOff Offset, k uint32) error {
	b, err := r.at(presenceWordOffset(bitmapOff, k), 4)
	if err != nil {
		return err
	}
	endian.PutUint32(b, endian.Uint32(b)|presenceMask(k))
	return nil
}

// ClearPresenceBit marks field k absent in the presence bitmap at
// bitmapOff.
func ClearPresenceBit(r *Region, bitmapOff Offset, k uint32) error {
	b, err := r.at(presenceWordOffset(bitmapOff, k), 4)
	if err != nil {
		return err
	}
	endian.PutUint32(b, endian.Uint32(b)&^presenceMask(k))
	return nil
}

// TestPresenceBit reports whether field k is marked present in the
// presence bitmap at bitmapOff.
func TestPresenceBit(r *Region, bitmapOff Offset, k uint32) (bool, error) {
	b, err := r.at(presenceWordOffset(bitmapOff, k), 4)
	if err != nil {
		return false, err
	}
	return endian.Uint32(b)&presenceMask(k) != 0, nil
}
