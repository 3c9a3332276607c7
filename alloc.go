// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import "github.com/cznic/mathutil"

// freeBlockHeader is the in-arena layout of one node on the free list: two
// host-endian 32-bit words, the block's total length (header included) and
// the offset of the next free block in ascending address order, 0 at the
// tail. It is never wrapped in a Go struct on the wire — readFree/writeFree
// marshal it directly into the 8 bytes at a block's own offset, the same
// way lldb's free-block layout lives only as raw bytes in falloc.go.
type freeBlockHeader struct {
	length uint32
	next   Offset
}

func (r *Region) readFree(addr Offset) (freeBlockHeader, error) {
	b, err := r.at(addr, freeHeaderSize)
	if err != nil {
		return freeBlockHeader{}, err
	}
	return freeBlockHeader{length: endian.Uint32(b), next: Offset(endian.Uint32(b[4:]))}, nil
}

func (r *Region) writeFree(addr Offset, h freeBlockHeader) error {
	b, err := r.at(addr, freeHeaderSize)
	if err != nil {
		return err
	}
	endian.PutUint32(b, h.length)
	endian.PutUint32(b[4:], uint32(h.next))
	return nil
}

// alignUp rounds n up to the next multiple of align (align a power of 2).
func alignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// locate walks the free list looking for addr's neighbors without
// assuming addr itself is a member of the list: it returns prevAddr, the
// address of the last free block strictly below addr (0 if none), and
// succAddr, the address of the first free block at or above addr (0 if
// none / end of list; addr itself when addr is a free block). Because the
// list is kept in strictly ascending address order, prevAddr and succAddr
// are always list-adjacent to each other (prevAddr's next field equals
// succAddr) whether or not addr itself happens to be free, which is what
// lets Free and Realloc use a single walk to decide whether addr's
// neighbors are physically touching it, and lets Realloc find the
// predecessor of a free block it is about to unlink.
func (r *Region) locate(addr Offset) (prevAddr, succAddr Offset, err error) {
	cur := r.freeListOff()
	for cur != nullOffset {
		if cur >= addr {
			return prevAddr, cur, nil
		}
		prevAddr = cur
		h, err := r.readFree(cur)
		if err != nil {
			return 0, 0, err
		}
		cur = h.next
	}
	return prevAddr, nullOffset, nil
}

// patchNext rewrites whatever currently points at a free-list position —
// either the header's free_list slot (predAddr == 0) or predAddr's own
// next field — to point at newNext instead.
func (r *Region) patchNext(predAddr, newNext Offset) error {
	if predAddr == nullOffset {
		r.setFreeListOff(newNext)
		return nil
	}
	h, err := r.readFree(predAddr)
	if err != nil {
		return err
	}
	h.next = newNext
	return r.writeFree(predAddr, h)
}

// insertFreeAt links a brand new free span into the list at its
// address-ordered position, coalescing with whichever of its nearest free
// neighbors physically touch it — used when the span's position cannot be
// inferred from an already-in-hand locate() result (the Realloc shrink
// path, and residual blocks left over after a downward merge). It shares
// free2's coalescing rule so a freshly carved tail can never end up sitting
// un-merged next to an already-free neighbor.
func (r *Region) insertFreeAt(addr Offset, length uint32) error {
	return r.free2(addr, length)
}

// carve decides, given a span of availLen bytes starting at blockStart that
// is about to host an allocation needing full bytes (length word + aligned
// payload), whether enough is left over to keep as an independent free
// block. It returns the payload length actually recorded in the new length
// word (larger than requested when the whole span is consumed) and, when a
// residual free block is carved off, its address and length.
func carve(blockStart Offset, availLen, full uint32) (payloadLen uint32, residAddr Offset, residLen uint32) {
	if availLen-full >= freeHeaderSize {
		return full - allocHeaderSize, blockStart + Offset(full), availLen - full
	}
	return availLen - allocHeaderSize, nullOffset, 0
}

// Allocate reserves n bytes from r and returns the offset of the first
// payload byte, or the null Offset if r is exhausted (a fixed region whose
// arena is full, or a moveable region whose Resizer itself failed/returned
// too little). Allocate never returns a non-nil error for plain exhaustion;
// a non-nil error means the region's own structures could not be trusted
// (a corrupt free list, an out-of-range header field) and is not meant to
// be retried.
//
// Requesting 0 bytes always returns the null Offset without touching r.
func (r *Region) Allocate(n uint32, clear bool) (Offset, error) {
	return r.allocate(n, 8, clear, true)
}

func (r *Region) allocate(n, align uint32, clear, smallOK bool) (Offset, error) {
	if n == 0 {
		return nullOffset, nil
	}
	if smallOK && r.bitmapOn {
		if class, ok := smallBlockIndex(n); ok {
			return r.allocateSmall(class, n)
		}
	}
	aligned := alignUp(n, align)
	full := aligned + allocHeaderSize
	for {
		h, err := r.allocFromFreeList(full)
		if err != nil {
			return 0, err
		}
		if h != nullOffset {
			if clear {
				b, err := r.at(h, n)
				if err != nil {
					return 0, err
				}
				for i := range b {
					b[i] = 0
				}
			}
			return h, nil
		}
		grew, err := r.grow(full)
		if err != nil {
			return 0, err
		}
		if !grew {
			return nullOffset, nil
		}
	}
}

// allocFromFreeList performs one first-fit pass over the free list looking
// for a block of at least full bytes. It returns the null Offset, with no
// error, when nothing fits — the caller is expected to grow the region and
// retry.
func (r *Region) allocFromFreeList(full uint32) (Offset, error) {
	var prevAddr Offset
	cur := r.freeListOff()
	for cur != nullOffset {
		h, err := r.readFree(cur)
		if err != nil {
			return 0, err
		}
		if h.length >= full {
			payloadLen, residAddr, residLen := carve(cur, h.length, full)
			if residAddr != nullOffset {
				if err := r.writeFree(residAddr, freeBlockHeader{length: residLen, next: h.next}); err != nil {
					return 0, err
				}
				if err := r.patchNext(prevAddr, residAddr); err != nil {
					return 0, err
				}
			} else {
				if err := r.patchNext(prevAddr, h.next); err != nil {
					return 0, err
				}
			}
			lw, err := r.at(cur, allocHeaderSize)
			if err != nil {
				return 0, err
			}
			endian.PutUint32(lw, payloadLen)
			r.bumpHWM(uint32(cur) + allocHeaderSize + payloadLen)
			return cur + allocHeaderSize, nil
		}
		prevAddr = cur
		cur = h.next
	}
	return nullOffset, nil
}

// Free releases the allocation at handle. handle must be a value
// previously returned by Allocate or Realloc on this Region (and not
// already freed); calling Free on anything else invalidates the region's
// structures and is a programmer error, not a recoverable one — exactly
// lldb's own contract for Free.
func (r *Region) Free(handle Offset) error {
	if handle == nullOffset {
		return nil
	}
	word, err := r.lengthWord(handle)
	if err != nil {
		return err
	}
	if word&smallBlockFlag != 0 {
		return r.freeSmall(handle, word)
	}
	blockStart := handle - allocHeaderSize
	blockSpan := word + allocHeaderSize
	return r.free2(blockStart, blockSpan)
}

func (r *Region) lengthWord(handle Offset) (uint32, error) {
	if handle < allocHeaderSize {
		return 0, &ErrOutOfRange{Off: handle, Size: allocHeaderSize, FullSize: uint32(len(r.buf))}
	}
	b, err := r.at(handle-allocHeaderSize, allocHeaderSize)
	if err != nil {
		return 0, err
	}
	return endian.Uint32(b), nil
}

// free2 is the general-allocator half of Free: it inserts [blockStart,
// blockStart+blockSpan) into the free list, coalescing with whichever of
// its two nearest free neighbors (found by locate) physically touch it.
// This mirrors the four cases of lldb.Allocator.free2 — isolated,
// right-join, left-join, middle-join — expressed over the length+next
// layout instead of lldb's atom/tag one.
func (r *Region) free2(blockStart Offset, blockSpan uint32) error {
	prevAddr, succAddr, err := r.locate(blockStart)
	if err != nil {
		return err
	}

	var succH freeBlockHeader
	succAdjacent := false
	if succAddr != nullOffset {
		succH, err = r.readFree(succAddr)
		if err != nil {
			return err
		}
		succAdjacent = uint32(blockStart)+blockSpan == uint32(succAddr)
	}

	var prevH freeBlockHeader
	prevAdjacent := false
	if prevAddr != nullOffset {
		prevH, err = r.readFree(prevAddr)
		if err != nil {
			return err
		}
		prevAdjacent = uint32(prevAddr)+prevH.length == uint32(blockStart)
	}

	newStart, newLen, newNext := blockStart, blockSpan, succAddr
	if succAdjacent {
		newLen += succH.length
		newNext = succH.next
	}
	if prevAdjacent {
		newStart = prevAddr
		newLen += prevH.length
	}
	if err := r.writeFree(newStart, freeBlockHeader{length: newLen, next: newNext}); err != nil {
		return err
	}
	if prevAdjacent {
		return nil // rewritten in place at prevAddr; its own predecessor is unaffected
	}
	return r.patchNext(prevAddr, newStart)
}

// Realloc resizes the allocation at handle to n bytes, preserving the
// min(old, n) leading bytes of its content, and returns the (possibly
// different) handle of the result. Reallocating the null Offset behaves
// like Allocate(n, false). Reallocating to 0 frees the allocation and
// returns the null Offset.
func (r *Region) Realloc(handle Offset, n uint32) (Offset, error) {
	if handle == nullOffset {
		return r.Allocate(n, false)
	}
	word, err := r.lengthWord(handle)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		if err := r.Free(handle); err != nil {
			return 0, err
		}
		return nullOffset, nil
	}
	if word&smallBlockFlag != 0 {
		return r.reallocSmall(handle, word, n)
	}
	return r.reallocGeneral(handle, word, n)
}

func (r *Region) reallocGeneral(handle Offset, curPayload, n uint32) (Offset, error) {
	blockStart := handle - allocHeaderSize
	blockSpan := curPayload + allocHeaderSize
	newAligned := alignUp(n, 8)

	switch {
	case newAligned == curPayload:
		return handle, nil

	case newAligned < curPayload:
		shrinkBy := curPayload - newAligned
		if shrinkBy >= freeHeaderSize {
			lw, err := r.at(blockStart, allocHeaderSize)
			if err != nil {
				return 0, err
			}
			endian.PutUint32(lw, newAligned)
			tailAddr := handle + Offset(newAligned)
			if err := r.insertFreeAt(tailAddr, shrinkBy); err != nil {
				return 0, err
			}
		}
		return handle, nil
	}

	// Growing. Look for free neighbors physically touching this block.
	full := newAligned + allocHeaderSize
	prevAddr, succAddr, err := r.locate(blockStart)
	if err != nil {
		return 0, err
	}

	if succAddr != nullOffset {
		succH, err := r.readFree(succAddr)
		if err != nil {
			return 0, err
		}
		if uint32(blockStart)+blockSpan == uint32(succAddr) {
			combined := blockSpan + succH.length
			if combined >= full {
				payloadLen, residAddr, residLen := carve(blockStart, combined, full)
				if residAddr != nullOffset {
					if err := r.writeFree(residAddr, freeBlockHeader{length: residLen, next: succH.next}); err != nil {
						return 0, err
					}
					if err := r.patchNext(prevAddr, residAddr); err != nil {
						return 0, err
					}
				} else if err := r.patchNext(prevAddr, succH.next); err != nil {
					return 0, err
				}
				lw, err := r.at(blockStart, allocHeaderSize)
				if err != nil {
					return 0, err
				}
				endian.PutUint32(lw, payloadLen)
				r.bumpHWM(uint32(blockStart) + allocHeaderSize + payloadLen)
				return handle, nil
			}
		}
	}

	if prevAddr != nullOffset {
		prevH, err := r.readFree(prevAddr)
		if err != nil {
			return 0, err
		}
		if uint32(prevAddr)+prevH.length == uint32(blockStart) {
			combined := prevH.length + blockSpan
			if combined >= full {
				pprevAddr, _, err := r.locate(prevAddr)
				if err != nil {
					return 0, err
				}
				oldPayload, err := r.at(handle, curPayload)
				if err != nil {
					return 0, err
				}
				newPayload, err := r.at(prevAddr+allocHeaderSize, curPayload)
				if err != nil {
					return 0, err
				}
				copy(newPayload, oldPayload)

				if err := r.patchNext(pprevAddr, succAddr); err != nil {
					return 0, err
				}
				payloadLen, residAddr, residLen := carve(prevAddr, combined, full)
				if residAddr != nullOffset {
					if err := r.insertFreeAt(residAddr, residLen); err != nil {
						return 0, err
					}
				}
				lw, err := r.at(prevAddr, allocHeaderSize)
				if err != nil {
					return 0, err
				}
				endian.PutUint32(lw, payloadLen)
				r.bumpHWM(uint32(prevAddr) + allocHeaderSize + payloadLen)
				return prevAddr + allocHeaderSize, nil
			}
		}
	}

	// No adjacent free space covers it: relocate.
	newHandle, err := r.allocate(n, 8, false, false)
	if err != nil {
		return 0, err
	}
	if newHandle == nullOffset {
		return nullOffset, nil
	}
	oldPayload, err := r.at(handle, curPayload)
	if err != nil {
		return 0, err
	}
	newPayload, err := r.at(newHandle, uint32(mathutil.Min(int(curPayload), int(n))))
	if err != nil {
		return 0, err
	}
	copy(newPayload, oldPayload)
	if err := r.free2(blockStart, blockSpan); err != nil {
		return 0, err
	}
	return newHandle, nil
}
