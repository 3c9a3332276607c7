// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// stringSlot allocates a zeroed 4-byte Offset slot to stand in for a
// Header field or vector element that SetString/GetString address.
func stringSlot(t *testing.T, r *Region) Offset {
	t.Helper()
	slot, err := r.Allocate(4, true)
	require.NoError(t, err)
	require.NotZero(t, slot)
	return slot
}

func TestSetStringThenGetString(t *testing.T) {
	r := withBitmap(t, 4096)
	slot := stringSlot(t, r)

	require.NoError(t, SetString(r, slot, []byte("hello, world")))

	n, err := StringSize(r, slot)
	require.NoError(t, err)
	require.Equal(t, uint32(len("hello, world")), n)

	got, err := GetString(r, slot)
	require.NoError(t, err)
	require.Equal(t, []byte("hello, world"), got)
}

func TestGetStringOnUnsetSlotIsNil(t *testing.T) {
	r := withBitmap(t, 4096)
	slot := stringSlot(t, r)

	n, err := StringSize(r, slot)
	require.NoError(t, err)
	require.Zero(t, n)

	got, err := GetString(r, slot)
	require.NoError(t, err)
	require.Nil(t, got)
}

// TestSetStringReplacement is scenario S4: replacing a string's content
// with a longer one moves it to a bigger cell and frees the old one rather
// than leaking it.
func TestSetStringReplacement(t *testing.T) {
	r := withBitmap(t, 4096)
	slot := stringSlot(t, r)

	require.NoError(t, SetString(r, slot, []byte("short")))
	first, err := r.offsetAt(slot)
	require.NoError(t, err)

	require.NoError(t, SetString(r, slot, []byte("a considerably longer replacement string")))
	got, err := GetString(r, slot)
	require.NoError(t, err)
	require.Equal(t, []byte("a considerably longer replacement string"), got)

	stats, err := r.Verify()
	require.NoError(t, err)
	require.Zero(t, stats.LostBlocks)
	require.Equal(t, 2, stats.SmallBlocks) // the slot and the current cell; the old cell was freed
	_ = first
}

func TestSetStringShrinkReadsBackShorter(t *testing.T) {
	r := withBitmap(t, 4096)
	slot := stringSlot(t, r)

	require.NoError(t, SetString(r, slot, []byte("a considerably longer original string")))
	require.NoError(t, SetString(r, slot, []byte("short")))

	got, err := GetString(r, slot)
	require.NoError(t, err)
	require.Equal(t, []byte("short"), got)
}

func TestAllocateStringFillsViewDirectly(t *testing.T) {
	r := withBitmap(t, 4096)
	slot := stringSlot(t, r)

	view, err := AllocateString(r, slot, 5)
	require.NoError(t, err)
	copy(view, "abcde")

	got, err := GetString(r, slot)
	require.NoError(t, err)
	require.Equal(t, []byte("abcde"), got)
}

func TestGetStringViewIsZeroCopy(t *testing.T) {
	r := withBitmap(t, 4096)
	slot := stringSlot(t, r)
	require.NoError(t, SetString(r, slot, []byte("mutate me")))

	view, err := GetStringView(r, slot)
	require.NoError(t, err)
	view[0] = 'M'

	got, err := GetString(r, slot)
	require.NoError(t, err)
	require.Equal(t, []byte("Mutate me"), got)
}

func TestClearStringFreesAndNullsSlot(t *testing.T) {
	r := withBitmap(t, 4096)
	slot := stringSlot(t, r)
	require.NoError(t, SetString(r, slot, []byte("gone soon")))

	require.NoError(t, ClearString(r, slot))

	off, err := r.offsetAt(slot)
	require.NoError(t, err)
	require.Equal(t, Offset(0), off)

	n, err := StringSize(r, slot)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestClearStringOnUnsetSlotIsNoop(t *testing.T) {
	r := withBitmap(t, 4096)
	slot := stringSlot(t, r)
	require.NoError(t, ClearString(r, slot))
}
