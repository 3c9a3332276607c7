// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import "encoding/binary"

// endian is the byte order used for every internal bookkeeping field: the
// header, free-list and free-block links, bitmap run headers, vector
// headers. A Region is never transferred across process or architecture
// boundaries in this form, so there is no reason to pay for a fixed byte
// order there. String cell content is the one exception — see string.go —
// because a string's bytes are meant to survive being copied out of the
// region wholesale.
var endian = binary.NativeEndian

const (
	magicFixed    uint32 = 0xe5f6f1c4
	magicMovable  uint32 = 0xc5f6f1c4
	flagBitmapTag uint32 = 0x1

	// Header layout. Every field is a 4-byte, host-endian word.
	offMagic    = 0
	offMessage  = 4
	offHWM      = 8
	offFullSize = 12
	offFreeList = 16
	offMetadata = 20
	offBitmaps  = 24 // 4 class slots, 4 bytes each
	numClasses  = 4
	headerSize  = offBitmaps + numClasses*4 // 40

	// A moveable region reserves one extra word pair right after the
	// header for the resizer's own bookkeeping slot (unused by fixed
	// regions). It carries no meaning to the allocator; it exists purely
	// so a moveable region's arena starts at a fixed, resizer-agnostic
	// offset regardless of which Resizer implementation is plugged in.
	resizerSlotSize = 8

	freeHeaderSize  = 8 // length(4) + next(4)
	allocHeaderSize = 4 // length word
)

// Resizer grows the backing buffer of a moveable Region. See resize.go for
// the contract implementations must satisfy.
type Resizer interface {
	Resize(oldSize, newSize uint32) ([]byte, error)
}

// Region is one self-contained, offset-addressed heap. The zero value is
// not usable; construct one with NewFixed or NewMoveable.
type Region struct {
	buf        []byte
	movable    bool
	bitmapOn   bool
	resizer    Resizer
	generation uint64
	logger     logSink
}

// Option configures a Region at construction time.
type Option func(*Region)

// WithBitmap enables or disables the small-block bitmap tier (component D).
// Enabled by default; disabling it routes every allocation through the
// free-list allocator regardless of size, which is useful for tests that
// want to exercise only component B.
func WithBitmap(on bool) Option {
	return func(r *Region) { r.bitmapOn = on }
}

// WithLogger attaches a diagnostic sink used only by Verify. The allocator
// itself never logs.
func WithLogger(l logSink) Option {
	return func(r *Region) { r.logger = l }
}

// logSink is satisfied by *diag.Logger without this package importing
// internal/diag's concrete type into its exported surface.
type logSink interface {
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
}

// NewFixed creates a Region of exactly size bytes that can never grow.
// Allocation past the initial arena returns a null Offset, permanently.
func NewFixed(size uint32, opts ...Option) (*Region, error) {
	if size <= headerSize {
		return nil, &ErrInvalidArgument{Reason: "fixed region size must exceed the header size"}
	}
	r := &Region{buf: make([]byte, size), bitmapOn: true}
	for _, o := range opts {
		o(r)
	}
	r.initHeader(magicFixed, headerSize, size)
	return r, nil
}

// NewMoveable creates a Region of initialSize bytes whose arena can later
// be grown through resizer. resizer must be non-nil.
func NewMoveable(initialSize uint32, resizer Resizer, opts ...Option) (*Region, error) {
	if resizer == nil {
		return nil, &ErrInvalidArgument{Reason: "moveable region requires a non-nil Resizer"}
	}
	if initialSize <= headerSize+resizerSlotSize {
		return nil, &ErrInvalidArgument{Reason: "moveable region size must exceed header + resizer slot"}
	}
	r := &Region{buf: make([]byte, initialSize), movable: true, resizer: resizer, bitmapOn: true}
	for _, o := range opts {
		o(r)
	}
	r.initHeader(magicMovable, headerSize+resizerSlotSize, initialSize)
	return r, nil
}

// initHeader lays down the header and the single free block spanning the
// rest of the fresh buffer.
func (r *Region) initHeader(magic uint32, arenaStart, size uint32) {
	endian.PutUint32(r.buf[offMagic:], magic)
	endian.PutUint32(r.buf[offMessage:], 0)
	endian.PutUint32(r.buf[offHWM:], arenaStart)
	endian.PutUint32(r.buf[offFullSize:], size)
	endian.PutUint32(r.buf[offFreeList:], arenaStart)
	endian.PutUint32(r.buf[offMetadata:], 0)
	for i := 0; i < numClasses; i++ {
		endian.PutUint32(r.buf[offBitmaps+i*4:], 0)
	}
	// The whole remaining span becomes the first, only free block.
	endian.PutUint32(r.buf[arenaStart:], size-arenaStart)
	endian.PutUint32(r.buf[arenaStart+4:], 0)
}

func (r *Region) magicOK() bool {
	if len(r.buf) < headerSize {
		return false
	}
	m := endian.Uint32(r.buf[offMagic:])
	return m == magicFixed || m == magicMovable
}

// Generation returns a counter bumped every time r's backing array is
// replaced by a grow. Callers holding a []byte view obtained from
// GetStringView, VectorGet-style accessors, or Region.at across an
// operation that can allocate should compare Generation before and after
// to detect that their view is now stale, per the relocation contract
// documented on the package.
func (r *Region) Generation() uint64 { return r.generation }

func (r *Region) messageOff() Offset    { return Offset(endian.Uint32(r.buf[offMessage:])) }
func (r *Region) setMessageOff(o Offset) { endian.PutUint32(r.buf[offMessage:], uint32(o)) }

func (r *Region) metadataOff() Offset     { return Offset(endian.Uint32(r.buf[offMetadata:])) }
func (r *Region) setMetadataOff(o Offset) { endian.PutUint32(r.buf[offMetadata:], uint32(o)) }

func (r *Region) hwm() uint32      { return endian.Uint32(r.buf[offHWM:]) }
func (r *Region) setHWM(v uint32)  { endian.PutUint32(r.buf[offHWM:], v) }
func (r *Region) bumpHWM(end uint32) {
	if end > r.hwm() {
		r.setHWM(end)
	}
}

func (r *Region) fullSize() uint32     { return endian.Uint32(r.buf[offFullSize:]) }
func (r *Region) setFullSize(v uint32) { endian.PutUint32(r.buf[offFullSize:], v) }

func (r *Region) freeListOff() Offset     { return Offset(endian.Uint32(r.buf[offFreeList:])) }
func (r *Region) setFreeListOff(o Offset) { endian.PutUint32(r.buf[offFreeList:], uint32(o)) }

func (r *Region) bitmapVectorOff(class int) Offset {
	return Offset(endian.Uint32(r.buf[offBitmaps+class*4:]))
}

func (r *Region) setBitmapVectorOff(class int, o Offset) {
	endian.PutUint32(r.buf[offBitmaps+class*4:], uint32(o))
}

// MessageOffset returns the offset of the main message allocation, or the
// null Offset if none has been allocated yet.
func (r *Region) MessageOffset() Offset { return r.messageOff() }

// MetadataOffset returns the offset of the metadata allocation, or the null
// Offset if none has been allocated yet.
func (r *Region) MetadataOffset() Offset { return r.metadataOff() }

// Size returns the current size, in bytes, of the region's backing buffer.
func (r *Region) Size() uint32 { return uint32(len(r.buf)) }

// RegionStats summarizes a Verify pass, mirroring lldb.AllocStats.
// LostBlocks is carried for that parity only: Verify does not detect
// leaked blocks and always leaves it 0.
type RegionStats struct {
	FullSize    uint32
	HWM         uint32
	FreeBytes   uint32
	UsedBytes   uint32
	FreeBlocks  int
	LostBlocks  int
	SmallBlocks int
}
