// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func withBitmap(t *testing.T, size uint32) *Region {
	t.Helper()
	r, err := NewFixed(size)
	require.NoError(t, err)
	return r
}

func TestSmallBlockIndexRouting(t *testing.T) {
	cases := []struct {
		n     uint32
		class int
		ok    bool
	}{
		{1, 0, true},
		{16, 0, true},
		{17, 1, true},
		{32, 1, true},
		{33, 2, true},
		{128, 3, true},
		{129, 0, false},
	}
	for _, c := range cases {
		class, ok := smallBlockIndex(c.n)
		require.Equal(t, c.ok, ok, "n=%d", c.n)
		if ok {
			require.Equal(t, c.class, class, "n=%d", c.n)
		}
	}
}

func TestEncodeDecodeSmallRoundTrip(t *testing.T) {
	word := encodeSmall(5, 12345, 64)
	require.NotZero(t, word&smallBlockFlag)
	require.Equal(t, uint8(5), decodeBit(word))
	require.Equal(t, uint32(12345), decodeRunIndex(word))
	require.Equal(t, uint32(64), decodeLogicalSize(word))
}

func TestAllocateSmallSetsFlagAndClass(t *testing.T) {
	r := withBitmap(t, 4096)
	h, err := r.Allocate(20, false)
	require.NoError(t, err)
	require.NotZero(t, h)

	word, err := r.lengthWord(h)
	require.NoError(t, err)
	require.NotZero(t, word&smallBlockFlag)
	require.Equal(t, uint32(20), decodeLogicalSize(word)) // the requested n, not the slot size
	class, ok := smallBlockIndex(decodeLogicalSize(word))
	require.True(t, ok)
	require.Equal(t, 1, class) // class for n=20 is {32}
}

func TestAllocateLargeBypassesBitmap(t *testing.T) {
	r := withBitmap(t, 4096)
	h, err := r.Allocate(256, false)
	require.NoError(t, err)
	require.NotZero(t, h)
	word, err := r.lengthWord(h)
	require.NoError(t, err)
	require.Zero(t, word&smallBlockFlag)
	require.Equal(t, uint32(256), word)
}

// TestSmallBlockReuseSameAddress is scenario S2: freeing and immediately
// reallocating a slot of the same class reuses the identical address.
func TestSmallBlockReuseSameAddress(t *testing.T) {
	r := withBitmap(t, 4096)
	h, err := r.Allocate(40, false)
	require.NoError(t, err)
	require.NoError(t, r.Free(h))

	h2, err := r.Allocate(40, false)
	require.NoError(t, err)
	require.Equal(t, h, h2)
}

func TestAllocateSmallFillsRunThenGrowsNewRun(t *testing.T) {
	r := withBitmap(t, 1<<20)
	class, ok := smallBlockIndex(16)
	require.True(t, ok)
	slots := int(slotsPerRun[class])

	var handles []Offset
	for i := 0; i < slots; i++ {
		h, err := r.Allocate(16, false)
		require.NoError(t, err)
		require.NotZero(t, h)
		handles = append(handles, h)
	}
	vhOff := r.bitmapVectorOff(class)
	num, _, err := r.readVectorHeader(vhOff)
	require.NoError(t, err)
	require.Equal(t, uint32(1), num) // one run, now full

	h, err := r.Allocate(16, false)
	require.NoError(t, err)
	require.NotZero(t, h)
	num, _, err = r.readVectorHeader(vhOff)
	require.NoError(t, err)
	require.Equal(t, uint32(2), num) // spilled into a second run
}

func TestFreeSmallClearsBitAndAllowsReuse(t *testing.T) {
	r := withBitmap(t, 1<<16)
	class, ok := smallBlockIndex(32)
	require.True(t, ok)

	h1, err := r.Allocate(32, false)
	require.NoError(t, err)
	h2, err := r.Allocate(32, false)
	require.NoError(t, err)

	require.NoError(t, r.Free(h1))

	vhOff := r.bitmapVectorOff(class)
	runOff, err := VectorGet[Offset](r, vhOff, 0)
	require.NoError(t, err)
	_, _, _, free, err := r.readRunHeader(runOff)
	require.NoError(t, err)
	require.Equal(t, slotsPerRun[class]-1, free) // two taken, one given back

	h3, err := r.Allocate(32, false)
	require.NoError(t, err)
	require.Equal(t, h1, h3) // the lowest clear bit (h1's slot) is reused first
	_ = h2
}

func TestReallocSmallAlwaysRelocates(t *testing.T) {
	r := withBitmap(t, 1<<16)
	h, err := r.Allocate(16, true)
	require.NoError(t, err)
	b, err := r.at(h, 16)
	require.NoError(t, err)
	for i := range b {
		b[i] = byte(i + 1)
	}

	h2, err := r.Realloc(h, 16)
	require.NoError(t, err)
	require.NotEqual(t, h, h2) // small tier never resizes in place

	b2, err := r.at(h2, 16)
	require.NoError(t, err)
	for i := range b2 {
		require.Equal(t, byte(i+1), b2[i])
	}
}

func TestPrimeSizeClassAllocatesEmptyRun(t *testing.T) {
	r := withBitmap(t, 1<<16)
	require.NoError(t, r.PrimeSizeClass(2))

	vhOff := r.bitmapVectorOff(2)
	require.NotZero(t, vhOff)
	num, _, err := r.readVectorHeader(vhOff)
	require.NoError(t, err)
	require.Equal(t, uint32(1), num)

	// Priming again while the existing run still has free slots is a no-op.
	require.NoError(t, r.PrimeSizeClass(2))
	num2, _, err := r.readVectorHeader(vhOff)
	require.NoError(t, err)
	require.Equal(t, num, num2)
}

func TestPrimeSizeClassRejectsBadClass(t *testing.T) {
	r := withBitmap(t, 4096)
	err := r.PrimeSizeClass(numClasses)
	require.Error(t, err)
}

// TestBitmapDisabledRoutesEverythingThroughFreeList is scenario S6's
// negative half: with the tier off, even tiny requests land in the
// general allocator and never set the small-block flag.
func TestBitmapDisabledRoutesEverythingThroughFreeList(t *testing.T) {
	r := fixedNoBitmap(t, 4096)
	h, err := r.Allocate(16, false)
	require.NoError(t, err)
	word, err := r.lengthWord(h)
	require.NoError(t, err)
	require.Zero(t, word&smallBlockFlag)
}
