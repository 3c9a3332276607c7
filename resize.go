// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import "github.com/cznic/mathutil"

// HeapResizer is the default Resizer: it grows a moveable Region by
// allocating a new, bigger, zeroed Go slice; Region.grow then copies the
// old bytes into it. This is the shape of lldb.MemFiler's grow-on-write
// (memfiler.go), except here the whole region moves in one step instead of
// page by page.
type HeapResizer struct{}

// Resize implements Resizer.
func (HeapResizer) Resize(oldSize, newSize uint32) ([]byte, error) {
	if newSize < oldSize {
		return nil, &ErrInvalidArgument{Reason: "resizer cannot shrink a region"}
	}
	return make([]byte, newSize), nil
}

// growTarget computes the new backing-array size for a region that needs
// needed additional bytes and currently has oldSize: the larger of twice
// oldSize and oldSize plus needed (plus one free-block header), so the new
// tail alone is large enough to satisfy needed and growth always makes
// forward progress in a single resizer round trip.
func growTarget(oldSize, needed uint32) uint32 {
	exact := oldSize + needed + freeHeaderSize
	if oldSize > oldSize*2 { // doubling would overflow uint32
		return exact
	}
	return uint32(mathutil.Max(int(oldSize*2), int(exact)))
}

// grow asks r's Resizer for a bigger backing array able to satisfy an
// allocation needing `needed` contiguous bytes, splices the new tail onto
// the free list (merging with the current tail free block when they are
// address-adjacent), and bumps r.generation. It reports false, nil when r
// has no Resizer (a fixed region), or when the Resizer fails or returns a
// buffer smaller than requested, rather than treating that as an error:
// callers translate "no growth possible" into a null-Offset OOM return.
func (r *Region) grow(needed uint32) (bool, error) {
	if !r.movable || r.resizer == nil {
		return false, nil
	}
	oldSize := uint32(len(r.buf))
	newSize := growTarget(oldSize, needed)

	newBuf, err := r.resizer.Resize(oldSize, newSize)
	if err != nil || uint32(len(newBuf)) < newSize {
		return false, nil
	}
	copy(newBuf, r.buf)

	r.buf = newBuf
	r.generation++
	r.setFullSize(newSize)

	if err := r.appendTail(oldSize, newSize-oldSize); err != nil {
		return false, err
	}
	return true, nil
}

// appendTail registers the freshly grown [tailStart, tailStart+tailLen)
// span as free space, extending the current last free block in place if it
// happens to end exactly at tailStart, or linking a brand new tail node
// onto the free list otherwise.
func (r *Region) appendTail(tailStart, tailLen uint32) error {
	cur := r.freeListOff()
	if cur == nullOffset {
		r.setFreeListOff(Offset(tailStart))
		return r.writeFree(Offset(tailStart), freeBlockHeader{length: tailLen, next: 0})
	}
	var lastAddr Offset
	for cur != nullOffset {
		lastAddr = cur
		h, err := r.readFree(cur)
		if err != nil {
			return err
		}
		if h.next == nullOffset {
			break
		}
		cur = h.next
	}
	h, err := r.readFree(lastAddr)
	if err != nil {
		return err
	}
	if uint32(lastAddr)+h.length == tailStart {
		h.length += tailLen
		return r.writeFree(lastAddr, h)
	}
	h.next = Offset(tailStart)
	if err := r.writeFree(lastAddr, h); err != nil {
		return err
	}
	return r.writeFree(Offset(tailStart), freeBlockHeader{length: tailLen, next: 0})
}
