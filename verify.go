// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import "math/bits"

// arenaStart returns the offset of the first byte available to the
// allocator — just past the header for a fixed region, or past the
// header plus the resizer's bookkeeping slot for a moveable one.
func (r *Region) arenaStart() uint32 {
	if r.movable {
		return headerSize + resizerSlotSize
	}
	return headerSize
}

// Verify walks r's entire structure — the free list, the arena as a
// sequence of back-to-back blocks, and every small-block run — checking
// that every byte between arenaStart and the region's full size is
// accounted for exactly once, either as free space or as part of exactly
// one allocated block, and that every small-block run's free count matches
// its bitmap. This is the same kind of whole-structure consistency pass as
// lldb.Allocator.Verify, adapted from that function's mark-and-sweep-over-
// an-atom-bitmap approach (appropriate when every unit is the same fixed
// "atom" size) to a single linear walk driven by the free list (appropriate
// here, where blocks are byte-granular and arbitrarily sized).
//
// Verify never mutates r. A non-nil error means r's structures cannot be
// trusted; RegionStats is still returned with whatever partial counts had
// accumulated before the error was hit, for diagnostic purposes.
func (r *Region) Verify() (RegionStats, error) {
	var stats RegionStats
	stats.FullSize = r.fullSize()
	stats.HWM = r.hwm()
	start := r.arenaStart()

	if stats.HWM < start || stats.HWM > stats.FullSize {
		return stats, &ErrCorrupt{Reason: "hwm outside arena bounds", Off: Offset(stats.HWM)}
	}

	type freeEntry struct {
		addr, length uint32
	}
	var frees []freeEntry
	cur := r.freeListOff()
	for cur != nullOffset {
		h, err := r.readFree(cur)
		if err != nil {
			return stats, err
		}
		if len(frees) > 0 {
			prev := frees[len(frees)-1]
			if uint32(cur) <= prev.addr {
				return stats, &ErrCorrupt{Reason: "free list not in strictly ascending address order", Off: cur}
			}
			if prev.addr+prev.length >= uint32(cur) {
				return stats, &ErrCorrupt{Reason: "adjacent free blocks were not coalesced", Off: cur}
			}
		}
		frees = append(frees, freeEntry{addr: uint32(cur), length: h.length})
		stats.FreeBytes += h.length
		stats.FreeBlocks++
		cur = h.next
	}

	pos := start
	fi := 0
	for pos < stats.FullSize {
		if fi < len(frees) && frees[fi].addr == pos {
			pos += frees[fi].length
			fi++
			continue
		}
		b, err := r.at(Offset(pos), allocHeaderSize)
		if err != nil {
			return stats, err
		}
		word := endian.Uint32(b)
		if word&smallBlockFlag != 0 {
			return stats, &ErrCorrupt{Reason: "arena walk landed inside a small-block slot, not a block start", Off: Offset(pos)}
		}
		span := word + allocHeaderSize
		if span < allocHeaderSize || uint64(pos)+uint64(span) > uint64(stats.FullSize) {
			return stats, &ErrCorrupt{Reason: "allocated block overruns the arena", Off: Offset(pos)}
		}
		stats.UsedBytes += span
		pos += span
	}
	if fi != len(frees) {
		return stats, &ErrCorrupt{Reason: "free list contains blocks the arena walk never reached"}
	}
	if pos != stats.FullSize {
		return stats, &ErrCorrupt{Reason: "arena walk did not land exactly on the region's end"}
	}

	for class := 0; class < numClasses; class++ {
		n, err := r.verifyClass(class)
		if err != nil {
			return stats, err
		}
		stats.SmallBlocks += n
	}

	if r.logger != nil {
		r.logger.Infow("region verified",
			"full_size", stats.FullSize,
			"hwm", stats.HWM,
			"free_bytes", stats.FreeBytes,
			"used_bytes", stats.UsedBytes,
			"free_blocks", stats.FreeBlocks,
			"small_blocks", stats.SmallBlocks,
		)
	}
	return stats, nil
}

// verifyClass checks every run registered for class and returns the total
// number of occupied slots across them.
func (r *Region) verifyClass(class int) (int, error) {
	vhOff := r.bitmapVectorOff(class)
	if vhOff == nullOffset {
		return 0, nil
	}
	num, _, err := r.readVectorHeader(vhOff)
	if err != nil {
		return 0, err
	}
	used := 0
	for i := uint32(0); i < num; i++ {
		runOff, err := VectorGet[Offset](r, vhOff, i)
		if err != nil {
			return 0, err
		}
		runBits, size, numSlots, free, err := r.readRunHeader(runOff)
		if err != nil {
			return 0, err
		}
		if int(size) != int(classSizes[class]) {
			return 0, &ErrCorrupt{Reason: "run header's size does not match its class", Off: runOff}
		}
		mask := uint32(1)<<numSlots - 1
		if runBits&^mask != 0 {
			return 0, &ErrCorrupt{Reason: "run header has bits set past its slot count", Off: runOff}
		}
		occupied := bits.OnesCount32(runBits & mask)
		if occupied+int(free) != int(numSlots) {
			return 0, &ErrCorrupt{Reason: "run header's free count disagrees with its bitmap", Off: runOff}
		}
		used += occupied
	}
	return used, nil
}
