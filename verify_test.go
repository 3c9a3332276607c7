// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyFreshRegion(t *testing.T) {
	r := withBitmap(t, 4096)
	stats, err := r.Verify()
	require.NoError(t, err)
	require.Equal(t, uint32(4096), stats.FullSize)
	require.Equal(t, 1, stats.FreeBlocks)
	require.Equal(t, uint32(0), stats.UsedBytes)
	require.Equal(t, uint32(4096-headerSize), stats.FreeBytes)
}

func TestVerifyAfterMixedWorkload(t *testing.T) {
	r := withBitmap(t, 1<<16)
	var handles []Offset
	for _, n := range []uint32{8, 16, 40, 64, 100, 200, 500} {
		h, err := r.Allocate(n, false)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	require.NoError(t, r.Free(handles[2]))
	require.NoError(t, r.Free(handles[4]))
	h, err := r.Realloc(handles[5], 900)
	require.NoError(t, err)
	handles[5] = h

	stats, err := r.Verify()
	require.NoError(t, err)
	require.Equal(t, stats.FullSize-stats.UsedBytes-uint32(r.arenaStart()), stats.FreeBytes)
}

func TestVerifyCountsSmallBlocks(t *testing.T) {
	r := withBitmap(t, 1<<16)
	for i := 0; i < 5; i++ {
		_, err := r.Allocate(16, false)
		require.NoError(t, err)
	}
	stats, err := r.Verify()
	require.NoError(t, err)
	require.Equal(t, 5, stats.SmallBlocks)
}

func TestVerifyDetectsHWMOutsideArena(t *testing.T) {
	r := withBitmap(t, 4096)
	r.setHWM(r.fullSize() + 1)
	_, err := r.Verify()
	require.Error(t, err)
	var corrupt *ErrCorrupt
	require.ErrorAs(t, err, &corrupt)
}

func TestVerifyDetectsUnsortedFreeList(t *testing.T) {
	r := withBitmap(t, 4096)
	cur := r.freeListOff()
	h, err := r.readFree(cur)
	require.NoError(t, err)

	// A free node pointing at itself breaks the strictly-ascending order
	// Verify requires.
	require.NoError(t, r.writeFree(cur, freeBlockHeader{length: h.length, next: cur}))

	_, err = r.Verify()
	require.Error(t, err)
	var corrupt *ErrCorrupt
	require.ErrorAs(t, err, &corrupt)
}

func TestVerifyExposedViaDiagLogger(t *testing.T) {
	r, err := NewFixed(4096, WithLogger(noopLogSink{}))
	require.NoError(t, err)
	_, err = r.Allocate(64, false)
	require.NoError(t, err)
	_, err = r.Verify()
	require.NoError(t, err)
}

type noopLogSink struct{}

func (noopLogSink) Infow(msg string, kv ...interface{}) {}
func (noopLogSink) Warnw(msg string, kv ...interface{}) {}
