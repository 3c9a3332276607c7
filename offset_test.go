// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package payloadbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidRejectsNull(t *testing.T) {
	r, err := NewFixed(4096)
	require.NoError(t, err)
	require.False(t, r.Valid(0, 0))
	require.False(t, r.Valid(0, 1))
}

func TestValidRejectsOutOfRange(t *testing.T) {
	r, err := NewFixed(4096)
	require.NoError(t, err)
	require.True(t, r.Valid(Offset(r.arenaStart()), 8))
	require.False(t, r.Valid(Offset(r.Size()), 1))
	require.False(t, r.Valid(Offset(r.Size()-4), 8))
}

func TestOffsetRoundTrip(t *testing.T) {
	r, err := NewFixed(4096)
	require.NoError(t, err)
	h, err := r.Allocate(64, true)
	require.NoError(t, err)
	require.NotZero(t, h)

	b, err := r.at(h, 64)
	require.NoError(t, err)
	for i := range b {
		b[i] = byte(i)
	}
	b2, err := r.at(h, 64)
	require.NoError(t, err)
	for i := range b2 {
		require.Equal(t, byte(i), b2[i])
	}
}

func TestMagicRejectedBeforeInit(t *testing.T) {
	r := &Region{buf: make([]byte, 64)}
	require.False(t, r.magicOK())
	_, err := r.at(Offset(40), 4)
	require.Error(t, err)
	var invalid *ErrInvalidRegion
	require.ErrorAs(t, err, &invalid)
}
