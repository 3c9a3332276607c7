// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateMainMessageSetsHeaderField(t *testing.T) {
	r := withBitmap(t, 4096)
	off, err := AllocateMainMessage(r, 64)
	require.NoError(t, err)
	require.NotZero(t, off)
	require.Equal(t, off, r.MessageOffset())
}

func TestAllocateMetadataCopiesAndSetsHeaderField(t *testing.T) {
	r := withBitmap(t, 4096)
	data := []byte("build-id-deadbeef")
	off, err := AllocateMetadata(r, data)
	require.NoError(t, err)
	require.Equal(t, off, r.MetadataOffset())

	b, err := r.at(off, uint32(len(data)))
	require.NoError(t, err)
	require.Equal(t, data, b)
}

func TestPresenceBitSetClearTest(t *testing.T) {
	r := withBitmap(t, 4096)
	bitmapOff, err := r.Allocate(16, true) // 128 bits, enough for this test
	require.NoError(t, err)

	for _, k := range []uint32{0, 1, 31, 32, 63, 100} {
		present, err := TestPresenceBit(r, bitmapOff, k)
		require.NoError(t, err)
		require.False(t, present, "field %d", k)
	}

	require.NoError(t, SetPresenceBit(r, bitmapOff, 32))
	require.NoError(t, SetPresenceBit(r, bitmapOff, 63))

	present, err := TestPresenceBit(r, bitmapOff, 32)
	require.NoError(t, err)
	require.True(t, present)

	present, err = TestPresenceBit(r, bitmapOff, 63)
	require.NoError(t, err)
	require.True(t, present)

	present, err = TestPresenceBit(r, bitmapOff, 31)
	require.NoError(t, err)
	require.False(t, present)

	require.NoError(t, ClearPresenceBit(r, bitmapOff, 32))
	present, err = TestPresenceBit(r, bitmapOff, 32)
	require.NoError(t, err)
	require.False(t, present)

	// field 63 is untouched by clearing field 32
	present, err = TestPresenceBit(r, bitmapOff, 63)
	require.NoError(t, err)
	require.True(t, present)
}

func TestPresenceWordOffsetAndMask(t *testing.T) {
	require.Equal(t, Offset(100), presenceWordOffset(100, 0))
	require.Equal(t, Offset(100), presenceWordOffset(100, 31))
	require.Equal(t, Offset(104), presenceWordOffset(100, 32))
	require.Equal(t, uint32(1), presenceMask(0))
	require.Equal(t, uint32(1<<31), presenceMask(31))
	require.Equal(t, uint32(1), presenceMask(32))
}
