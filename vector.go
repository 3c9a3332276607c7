// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// VectorElem restricts VectorPush/VectorGet/... to fixed-width scalar
// types, the closest idiomatic Go match to the templated VectorPush<T>
// notation this component is specified with: a region-hosted vector is a
// flat run of identically sized elements, which only makes sense for types
// whose size Go itself can report with unsafe.Sizeof.
type VectorElem interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func elemSize[T VectorElem]() uint32 {
	var zero T
	return uint32(unsafe.Sizeof(zero))
}

func writeElem[T VectorElem](dst []byte, v T) {
	*(*T)(unsafe.Pointer(&dst[0])) = v
}

func readElem[T VectorElem](src []byte) T {
	return *(*T)(unsafe.Pointer(&src[0]))
}

// readVectorHeader/writeVectorHeader marshal the 8-byte (numElements,
// dataOffset) pair a vector header cell holds, the same shape as
// lldb.AllocStats-adjacent bookkeeping pairs: a count and an offset, always
// together.
func (r *Region) readVectorHeader(vhOff Offset) (num uint32, dataOff Offset, err error) {
	b, err := r.at(vhOff, 8)
	if err != nil {
		return 0, 0, err
	}
	return endian.Uint32(b), Offset(endian.Uint32(b[4:])), nil
}

func (r *Region) writeVectorHeader(vhOff Offset, num uint32, dataOff Offset) error {
	b, err := r.at(vhOff, 8)
	if err != nil {
		return err
	}
	endian.PutUint32(b, num)
	endian.PutUint32(b[4:], uint32(dataOff))
	return nil
}

// capacityOf reports how many bytes the allocation at dataOff can hold,
// decoding whichever of the two length-word encodings (free-list or
// small-block) it was allocated under.
func (r *Region) capacityOf(dataOff Offset) (uint32, error) {
	if dataOff == nullOffset {
		return 0, nil
	}
	word, err := r.lengthWord(dataOff)
	if err != nil {
		return 0, err
	}
	if word&smallBlockFlag != 0 {
		return decodeLogicalSize(word), nil
	}
	return word, nil
}

// ensureVectorCapacity grows (never shrinks) the backing allocation at
// dataOff so it can hold at least minElems elements of elemSize bytes
// each, doubling the way Allocate's own grow() doubles the backing array.
// It returns the null Offset with a nil error, not ErrOutOfMemory, when
// the underlying Allocate/Realloc itself is out of space; callers at the
// VectorPush/VectorReserve/VectorResize level translate that into
// ErrOutOfMemory, matching the rest of the package's "allocator signals
// with null, helpers signal with errors" split.
func (r *Region) ensureVectorCapacity(dataOff Offset, elemSize, minElems uint32) (Offset, error) {
	if minElems == 0 {
		return dataOff, nil
	}
	if dataOff == nullOffset {
		return r.allocate(minElems*elemSize, 8, false, true)
	}
	cap, err := r.capacityOf(dataOff)
	if err != nil {
		return 0, err
	}
	capElems := cap / elemSize
	if capElems >= minElems {
		return dataOff, nil
	}
	newElems := uint32(mathutil.Max(int(capElems*2), int(minElems)))
	return r.Realloc(dataOff, newElems*elemSize)
}

// VectorPush appends v to the vector whose header lives at vhOff, growing
// its backing allocation if needed.
func VectorPush[T VectorElem](r *Region, vhOff Offset, v T) error {
	num, dataOff, err := r.readVectorHeader(vhOff)
	if err != nil {
		return err
	}
	sz := elemSize[T]()
	newDataOff, err := r.ensureVectorCapacity(dataOff, sz, num+1)
	if err != nil {
		return err
	}
	if newDataOff == nullOffset {
		return ErrOutOfMemory
	}
	b, err := r.at(newDataOff+Offset(num*sz), sz)
	if err != nil {
		return err
	}
	writeElem(b, v)
	return r.writeVectorHeader(vhOff, num+1, newDataOff)
}

// VectorReserve ensures the vector at vhOff can hold at least minElems
// elements without growing its element count.
func VectorReserve[T VectorElem](r *Region, vhOff Offset, minElems uint32) error {
	num, dataOff, err := r.readVectorHeader(vhOff)
	if err != nil {
		return err
	}
	sz := elemSize[T]()
	newDataOff, err := r.ensureVectorCapacity(dataOff, sz, minElems)
	if err != nil {
		return err
	}
	if newDataOff == nullOffset && minElems > 0 {
		return ErrOutOfMemory
	}
	return r.writeVectorHeader(vhOff, num, newDataOff)
}

// VectorResize sets the vector at vhOff's element count to n, growing its
// backing allocation if needed and zeroing any newly exposed elements so
// VectorGet never surfaces uninitialized heap bytes to a caller that only
// grew the count without having pushed.
func VectorResize[T VectorElem](r *Region, vhOff Offset, n uint32) error {
	num, dataOff, err := r.readVectorHeader(vhOff)
	if err != nil {
		return err
	}
	sz := elemSize[T]()
	newDataOff, err := r.ensureVectorCapacity(dataOff, sz, n)
	if err != nil {
		return err
	}
	if newDataOff == nullOffset && n > 0 {
		return ErrOutOfMemory
	}
	if n > num {
		b, err := r.at(newDataOff+Offset(num*sz), (n-num)*sz)
		if err != nil {
			return err
		}
		for i := range b {
			b[i] = 0
		}
	}
	return r.writeVectorHeader(vhOff, n, newDataOff)
}

// VectorClear empties the vector at vhOff and releases its backing
// allocation.
func VectorClear[T VectorElem](r *Region, vhOff Offset) error {
	_, dataOff, err := r.readVectorHeader(vhOff)
	if err != nil {
		return err
	}
	if dataOff != nullOffset {
		if err := r.Free(dataOff); err != nil {
			return err
		}
	}
	return r.writeVectorHeader(vhOff, 0, 0)
}

// VectorGet returns element i of the vector at vhOff, or T's zero value if
// i is out of range — a total function by design, matching the component's
// documented quirk, rather than an "absent" signal nothing in this
// package's own string/message layer needs.
func VectorGet[T VectorElem](r *Region, vhOff Offset, i uint32) (T, error) {
	var zero T
	num, dataOff, err := r.readVectorHeader(vhOff)
	if err != nil {
		return zero, err
	}
	if i >= num {
		return zero, nil
	}
	sz := elemSize[T]()
	b, err := r.at(dataOff+Offset(i*sz), sz)
	if err != nil {
		return zero, err
	}
	return readElem[T](b), nil
}

// VectorLen returns the vector at vhOff's current element count.
func VectorLen(r *Region, vhOff Offset) (uint32, error) {
	num, _, err := r.readVectorHeader(vhOff)
	return num, err
}
