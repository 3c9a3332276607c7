// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*

Package payloadbuf implements a self-describing, relocatable,
offset-addressed heap contained inside a flat byte region, used as the
storage substrate for zero-copy wire messages.

A Region is one contiguous byte buffer. Every reference inside it — every
string, every vector, every allocated block — is a 32-bit offset from the
region's own base address, never a native pointer. That is what lets a whole
Region be moved in the host address space (grown onto a bigger backing
array, or migrated to a different mapping entirely) without invalidating any
of the references inside it: offsets stay correct, only the Go []byte the
Region happens to be backed by changes.

Fixed vs. moveable regions

A Region created with NewFixed can never grow; once its single arena is
exhausted, further allocation fails (returns a null Offset) and that failure
is permanent for the lifetime of the Region. A Region created with
NewMoveable is handed a Resizer, an external collaborator responsible only
for producing newSize bytes of fresh storage (see resize.go); the Region
itself copies its old content into that storage and splices the grown tail
onto the free list — the Resizer never touches the region's internal
bookkeeping, it only supplies bytes.

Relocation and stale pointers

Because a moveable Region's backing array can be replaced wholesale by any
call that allocates, no API in this package ever hands out a long-lived
native Go slice across such a call. Every accessor (GetStringView,
VectorGet, ...) re-derives its []byte from the Region's *current* backing
array, every time it is called, from the Offset the caller holds. The Offset is the durable identity; a []byte borrowed from it
is only valid until the next call that can allocate. Region.Generation
exists for callers that want to assert, defensively, that they have not
held such a borrow across a relocation.

Concurrency

A Region has exactly one logical owner at a time and performs no internal
locking, matching the allocator it wraps: mutation is assumed to be
serialized by the caller. Sharing a Region across goroutines requires
external synchronization, exactly as lldb.Filer documents for its own
embedders.

*/
package payloadbuf
