// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Scratch driver exercising payloadbuf against a mixed alloc/realloc/free
// workload over both a fixed and a moveable region, the same kind of
// throwaway fuzz-cycling program lldb keeps under lldb/lab/1.

package main

import (
	"flag"
	"math/rand"
	"time"

	"github.com/dallison/payloadbuf"
	"github.com/dallison/payloadbuf/internal/diag"
)

var maxHandles = flag.Int("n", 1000, "N")

func cycle(log *diag.Logger, name string, r *payloadbuf.Region) {
	rng := rand.New(rand.NewSource(42))
	var handles []payloadbuf.Offset
	t0 := time.Now()

	for len(handles) < *maxHandles {
		for nalloc := len(handles)/2 + 1; nalloc != 0; nalloc-- {
			n := uint32(rng.Intn(1 << 12))
			h, err := r.Allocate(n, false)
			if err != nil {
				log.Warnw("allocate failed", "err", err)
				continue
			}
			if h != 0 {
				handles = append(handles, h)
			}
		}

		for nrealloc := len(handles) / 2; nrealloc != 0; nrealloc-- {
			i := rng.Intn(len(handles))
			n := uint32(rng.Intn(1 << 12))
			h, err := r.Realloc(handles[i], n)
			if err != nil {
				log.Warnw("realloc failed", "err", err)
				continue
			}
			handles[i] = h
		}

		for ndel := len(handles) / 4; ndel != 0 && len(handles) > 1; ndel-- {
			i := rng.Intn(len(handles))
			last := len(handles) - 1
			h := handles[i]
			handles[i] = handles[last]
			handles = handles[:last]
			if err := r.Free(h); err != nil {
				log.Warnw("free failed", "err", err)
			}
		}
	}

	stats, err := r.Verify()
	if err != nil {
		log.Warnw("verify failed", "region", name, "err", err)
		return
	}
	log.Infow("cycle done",
		"region", name,
		"handles", len(handles),
		"full_size", stats.FullSize,
		"used_bytes", stats.UsedBytes,
		"free_bytes", stats.FreeBytes,
		"small_blocks", stats.SmallBlocks,
		"elapsed", time.Since(t0),
	)
}

func main() {
	flag.Parse()
	log, err := diag.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	fixed, err := payloadbuf.NewFixed(64 << 20)
	if err != nil {
		log.Warnw("NewFixed failed", "err", err)
		return
	}
	cycle(log, "fixed", fixed)

	movable, err := payloadbuf.NewMoveable(1<<16, payloadbuf.HeapResizer{})
	if err != nil {
		log.Warnw("NewMoveable failed", "err", err)
		return
	}
	cycle(log, "movable", movable)
}
