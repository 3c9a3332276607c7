// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import (
	"math/bits"

	"github.com/cznic/mathutil"
)

// classSizes are the four small-block size classes. A request of n bytes
// (n > 0) is routed to the smallest class whose slot can hold it; requests
// larger than the biggest class fall through to the general free-list
// allocator.
var classSizes = [numClasses]uint32{16, 32, 64, 128}

// slotsPerRun is the number of fixed-size slots carved out of one run for
// each class — more slots for the smaller, more frequently used classes,
// following the same "more room where it's cheap" reasoning as the
// bucketed free-list tables in cznic-exp/lldb/flt.go, just applied to a
// per-class run size instead of a per-size-class free list.
var slotsPerRun = [numClasses]uint8{20, 10, 6, 2}

const (
	smallBlockFlag uint32 = 1 << 31
	smallBitShift         = 26
	smallBitMask   uint32 = 0x1F
	smallRunShift         = 8
	smallRunMask   uint32 = 0x3FFFF
	smallSizeMask  uint32 = 0xFF

	runHeaderSize = 8 // bits(4) + size(1) + num(1) + free(1) + reserved(1)
)

func encodeSmall(bit uint8, runIndex uint32, logicalSize uint8) uint32 {
	return smallBlockFlag | (uint32(bit)&smallBitMask)<<smallBitShift | (runIndex&smallRunMask)<<smallRunShift | uint32(logicalSize)
}

func decodeBit(word uint32) uint8        { return uint8((word >> smallBitShift) & smallBitMask) }
func decodeRunIndex(word uint32) uint32  { return (word >> smallRunShift) & smallRunMask }
func decodeLogicalSize(word uint32) uint32 { return word & smallSizeMask }

// smallBlockIndex returns the smallest size class that can hold n bytes,
// or ok=false if n exceeds the largest class.
func smallBlockIndex(n uint32) (class int, ok bool) {
	for i, sz := range classSizes {
		if n <= sz {
			return i, true
		}
	}
	return 0, false
}

func (r *Region) readRunHeader(addr Offset) (runBits uint32, size, num, free uint8, err error) {
	b, err := r.at(addr, runHeaderSize)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return endian.Uint32(b), b[4], b[5], b[6], nil
}

func (r *Region) writeRunHeader(addr Offset, runBits uint32, size, num, free uint8) error {
	b, err := r.at(addr, runHeaderSize)
	if err != nil {
		return err
	}
	endian.PutUint32(b, runBits)
	b[4], b[5], b[6], b[7] = size, num, free, 0
	return nil
}

// firstClearBit returns the index of the lowest clear bit among the low
// numSlots bits of runBits, using the same word-at-a-time
// bits.TrailingZeros idiom cloudwego's bitmap allocator scans with.
func firstClearBit(runBits uint32, numSlots uint8) uint8 {
	mask := uint32(1)<<numSlots - 1
	return uint8(bits.TrailingZeros32(^runBits & mask))
}

// ensureClassVector returns the offset of class's run-offset vector
// header, lazily allocating it on first use. The cell itself is always a
// plain free-list allocation (small_ok=false): bootstrapping a class's own
// bookkeeping out of the small-block tier it is about to manage would tie
// the tier's liveness to itself for no benefit.
func (r *Region) ensureClassVector(class int) (Offset, error) {
	if vhOff := r.bitmapVectorOff(class); vhOff != nullOffset {
		return vhOff, nil
	}
	vhOff, err := r.allocate(8, 8, true, false)
	if err != nil {
		return 0, err
	}
	if vhOff == nullOffset {
		return nullOffset, nil
	}
	// The vector's element array is also a plain free-list block, allocated
	// up front: left at zero, the first VectorPush would allocate it through
	// the small-block tier, which re-enters this class machinery for class 0.
	dataOff, err := r.allocate(8, 8, false, false)
	if err != nil {
		return 0, err
	}
	if dataOff == nullOffset {
		return nullOffset, r.Free(vhOff)
	}
	if err := r.writeVectorHeader(vhOff, 0, dataOff); err != nil {
		return 0, err
	}
	r.setBitmapVectorOff(class, vhOff)
	return vhOff, nil
}

func (r *Region) allocateSmall(class int, n uint32) (Offset, error) {
	vhOff, err := r.ensureClassVector(class)
	if err != nil {
		return 0, err
	}
	if vhOff == nullOffset {
		return nullOffset, nil
	}
	num, _, err := r.readVectorHeader(vhOff)
	if err != nil {
		return 0, err
	}

	for i := int(num) - 1; i >= 0; i-- {
		runOff, err := VectorGet[Offset](r, vhOff, uint32(i))
		if err != nil {
			return 0, err
		}
		runBits, size, numSlots, free, err := r.readRunHeader(runOff)
		if err != nil {
			return 0, err
		}
		if free == 0 {
			continue
		}
		bit := firstClearBit(runBits, numSlots)
		runBits |= 1 << bit
		free--
		if err := r.writeRunHeader(runOff, runBits, size, numSlots, free); err != nil {
			return 0, err
		}
		slotAddr := runOff + runHeaderSize + Offset(bit)*Offset(uint32(size)+4)
		if err := r.writeSmallLengthWord(slotAddr, bit, uint32(i), n); err != nil {
			return 0, err
		}
		return slotAddr + allocHeaderSize, nil
	}

	// No run had room: allocate a fresh one and place the new allocation
	// in its first slot.
	classSize := classSizes[class]
	slots := slotsPerRun[class]
	runSpan := runHeaderSize + uint32(slots)*(classSize+4)
	newRunOff, err := r.allocate(runSpan, 8, true, false)
	if err != nil {
		return 0, err
	}
	if newRunOff == nullOffset {
		return nullOffset, nil
	}
	if err := r.writeRunHeader(newRunOff, 1, uint8(classSize), slots, slots-1); err != nil {
		return 0, err
	}
	if err := VectorPush[Offset](r, vhOff, newRunOff); err != nil {
		return 0, err
	}
	slotAddr := newRunOff + runHeaderSize
	if err := r.writeSmallLengthWord(slotAddr, 0, num, n); err != nil {
		return 0, err
	}
	return slotAddr + allocHeaderSize, nil
}

func (r *Region) writeSmallLengthWord(slotAddr Offset, bit uint8, runIndex uint32, logicalSize uint32) error {
	lw, err := r.at(slotAddr, allocHeaderSize)
	if err != nil {
		return err
	}
	endian.PutUint32(lw, encodeSmall(bit, runIndex, uint8(logicalSize)))
	return nil
}

// freeSmall releases a small-block handle in O(1): the class is recovered
// from the length word's own logical-size field (see decodeLogicalSize),
// the run from (class, run index), and the slot bit is cleared directly —
// no list walk of any kind.
func (r *Region) freeSmall(handle Offset, word uint32) error {
	bit := decodeBit(word)
	runIndex := decodeRunIndex(word)
	logicalSize := decodeLogicalSize(word)
	class, ok := smallBlockIndex(logicalSize)
	if !ok {
		return &ErrCorrupt{Reason: "small-block length word decodes to an impossible size class", Off: handle}
	}
	vhOff := r.bitmapVectorOff(class)
	if vhOff == nullOffset {
		return &ErrCorrupt{Reason: "small-block free for a class with no run vector", Off: handle}
	}
	runOff, err := VectorGet[Offset](r, vhOff, runIndex)
	if err != nil {
		return err
	}
	runBits, size, num, free, err := r.readRunHeader(runOff)
	if err != nil {
		return err
	}
	runBits &^= 1 << bit
	free++
	return r.writeRunHeader(runOff, runBits, size, num, free)
}

// reallocSmall has no in-place resize to offer — the bitmap tier only
// specifies allocation and O(1) free (component D) — so it always
// relocates: allocate fresh, copy, free the old slot.
func (r *Region) reallocSmall(handle Offset, word uint32, n uint32) (Offset, error) {
	logicalSize := decodeLogicalSize(word)
	newHandle, err := r.allocate(n, 8, false, true)
	if err != nil {
		return 0, err
	}
	if newHandle == nullOffset {
		return nullOffset, nil
	}
	oldB, err := r.at(handle, logicalSize)
	if err != nil {
		return 0, err
	}
	newB, err := r.at(newHandle, uint32(mathutil.Min(int(logicalSize), int(n))))
	if err != nil {
		return 0, err
	}
	copy(newB, oldB)
	if err := r.freeSmall(handle, word); err != nil {
		return 0, err
	}
	return newHandle, nil
}

// PrimeSizeClass eagerly allocates one run for class, so the first real
// allocation in that class does not pay for a fresh run on the hot path.
// Priming is optional — spec.md marks it as a latency optimization, not a
// correctness requirement.
func (r *Region) PrimeSizeClass(class int) error {
	if class < 0 || class >= numClasses {
		return &ErrInvalidArgument{Reason: "size class out of range"}
	}
	vhOff, err := r.ensureClassVector(class)
	if err != nil {
		return err
	}
	if vhOff == nullOffset {
		return ErrOutOfMemory
	}
	num, _, err := r.readVectorHeader(vhOff)
	if err != nil {
		return err
	}
	for i := 0; i < int(num); i++ {
		runOff, err := VectorGet[Offset](r, vhOff, uint32(i))
		if err != nil {
			return err
		}
		_, _, _, free, err := r.readRunHeader(runOff)
		if err != nil {
			return err
		}
		if free > 0 {
			return nil
		}
	}
	classSize := classSizes[class]
	slots := slotsPerRun[class]
	runSpan := runHeaderSize + uint32(slots)*(classSize+4)
	newRunOff, err := r.allocate(runSpan, 8, true, false)
	if err != nil {
		return err
	}
	if newRunOff == nullOffset {
		return ErrOutOfMemory
	}
	if err := r.writeRunHeader(newRunOff, 0, uint8(classSize), slots, slots); err != nil {
		return err
	}
	return VectorPush[Offset](r, vhOff, newRunOff)
}
