// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package payloadbuf

import "golang.org/x/sys/unix"

// MmapResizer is a Resizer that backs a moveable Region with anonymous
// mmap'd pages instead of the Go heap, for callers that want to keep a
// very large region off the Go GC's scan. The mappings are anonymous and
// MAP_PRIVATE, so they are not shared with other processes. It plays the same role lldb's OSFiler plays for a Filer: both
// wrap one OS-level handle behind the minimal interface their package
// needs, here a mapping instead of a file descriptor.
//
// Each grow mmaps a brand new anonymous mapping rather than using mremap,
// so the mapping Region.grow is about to copy out of is never moved or
// unmapped out from under it. Region.grow's contract is: call Resize, then
// copy the old r.buf into whatever Resize returned, then adopt the new
// buffer. That copy happens *after* Resize has already returned, so a
// mapping cannot be released during the Resize call that superseded it —
// only one call later, once its one and only reader (that copy) has long
// since finished. current tracks the mapping still serving as r.buf;
// freeable tracks the one before it, released at the top of the next call.
type MmapResizer struct {
	current  []byte
	freeable []byte
}

var _ Resizer = (*MmapResizer)(nil)

// Resize implements Resizer.
func (m *MmapResizer) Resize(oldSize, newSize uint32) ([]byte, error) {
	if m.freeable != nil {
		if err := unix.Munmap(m.freeable); err != nil {
			return nil, &ErrInvalidArgument{Reason: "mmap_resizer: munmap superseded mapping: " + err.Error()}
		}
		m.freeable = nil
	}
	buf, err := unix.Mmap(-1, 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, &ErrInvalidArgument{Reason: "mmap_resizer: " + err.Error()}
	}
	m.freeable = m.current
	m.current = buf
	return buf, nil
}

// Close unmaps every mapping this resizer still owns. Callers that create a
// moveable Region over an MmapResizer and then discard the Region should
// call Close to release it; Go's GC does not know about raw mappings.
func (m *MmapResizer) Close() error {
	var err error
	if m.freeable != nil {
		err = unix.Munmap(m.freeable)
		m.freeable = nil
	}
	if m.current != nil {
		if e := unix.Munmap(m.current); e != nil && err == nil {
			err = e
		}
		m.current = nil
	}
	return err
}
