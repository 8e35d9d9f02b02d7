// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package heap

import (
	"errors"

	lru "github.com/hashicorp/golang-lru"
	mapset "github.com/deckarep/golang-set"
	"golang.org/x/time/rate"

	"github.com/probeum/lucore/internal/value"
)

// ErrOutOfMemory names the host-level (non-Lua) out-of-memory condition
// (§4.2). No heap function returns it: as New's comment says, lucore does
// not simulate allocation failure.
var ErrOutOfMemory = errors.New("heap: out of memory")

// RootProvider supplies the collector's root set (§3.6): the main thread,
// every running/normal thread, the globals table, and the shared
// per-primitive-type metatables. It is implemented by package runtime so
// that package heap does not need to import the higher-level runtime or
// thread packages.
type RootProvider interface {
	GCRoots(mark func(value.Value))
}

// Heap owns every collectable object plus the collector's bookkeeping.
type Heap struct {
	roots RootProvider

	all    Object // head of the intrusive allocation list
	count  int
	bytes  uint64 // coarse size accounting, used to pace the incremental collector
	limit  uint64 // soft allocation ceiling before a collection is forced

	strings map[[32]byte][]*LString

	gray []Object

	inhibitDepth int
	tempRoots    []value.Value

	generational bool
	pacer        *rate.Limiter // paces propagate work against allocation volume, per §4.2
	pendingFinal mapset.Set    // dedups objects queued for finalization, across cycles, until ClearFinalizer
	toFinalize   []Object      // resurrected objects whose __gc must run before next cycle's mark

	debugLineCache *lru.Cache // PC→line cache allocated by New and not read elsewhere; internal/vm/debuginfo.go keeps its own
}

// New creates an empty heap. limit is a soft byte ceiling: Adopt may
// trigger a collection once it is exceeded, but never refuses an
// allocation outright except when Go itself fails (which New's caller
// cannot observe any more gracefully than a panic, so lucore does not
// attempt to simulate true OOM from Go's allocator).
func New(roots RootProvider, limit uint64) *Heap {
	if limit == 0 {
		limit = 64 * 1024 * 1024
	}
	cache, _ := lru.New(4096)
	h := &Heap{
		roots:        roots,
		strings:      make(map[[32]byte][]*LString),
		limit:        limit,
		pacer:        rate.NewLimiter(rate.Limit(limit/4), int(limit/4)),
		pendingFinal: mapset.NewSet(),
		debugLineCache: cache,
	}
	return h
}

// link adds o to the allocation list with the collector's current white so
// it is visible to the next sweep.
func (h *Heap) link(o Object) {
	o.header().next = h.all
	h.all = o
	h.count++
}

// Adopt registers a freshly constructed object of the given kind with the
// heap: it is the single allocator entry point (§4.2) used by every package
// other than heap itself (table, closure, thread, userdata). approxSize is
// a coarse byte estimate used only for GC pacing; the precise figure for
// collectgarbage("count") comes from fjl/memsize on demand (see gc.go).
func (h *Heap) Adopt(o Object, kind Kind, approxSize uint64) {
	hdr := o.header()
	hdr.kind = kind
	hdr.color = White
	h.link(o)
	// The object is not yet reachable from any root — account() may trigger
	// a collection synchronously, so park it on the temp-root stack for the
	// duration (§5 "GC safety during host calls"). Without this, a
	// freshly-allocated object could be swept before the caller has a
	// chance to store it anywhere durable.
	h.PushTempRoot(value.Obj(o))
	h.account(approxSize)
	h.PopTempRoot()
}

// account records a coarse allocation size for GC pacing. collectgarbage
// ("count") does not use this figure: Count in gc.go measures with
// fjl/memsize instead.
func (h *Heap) account(n uint64) {
	h.bytes += n
	if h.bytes > h.limit && h.inhibitDepth == 0 {
		h.StepAuto()
	}
}

// Inhibit prevents collection from running until a matching Allow. Nested
// calls stack; collection resumes only once the depth returns to zero
// (§4.2 "inhibit/allow").
func (h *Heap) Inhibit() { h.inhibitDepth++ }

// Allow reverses one Inhibit call.
func (h *Heap) Allow() {
	if h.inhibitDepth > 0 {
		h.inhibitDepth--
	}
}

// Inhibited reports whether collection is currently suppressed.
func (h *Heap) Inhibited() bool { return h.inhibitDepth > 0 }

// PushTempRoot anchors v against collection for the duration of a
// multi-step host-side construction (§4.2, §5 "GC safety during host
// calls"). Callers must pair every push with a PopTempRoot.
func (h *Heap) PushTempRoot(v value.Value) { h.tempRoots = append(h.tempRoots, v) }

// PopTempRoot removes the most recently pushed temporary root.
func (h *Heap) PopTempRoot() {
	if n := len(h.tempRoots); n > 0 {
		h.tempRoots = h.tempRoots[:n-1]
	}
}

// ObjectCount reports the number of tracked heap objects, for diagnostics.
func (h *Heap) ObjectCount() int { return h.count }

// SetGenerational toggles generational mode (§4.2 collector states).
func (h *Heap) SetGenerational(on bool) { h.generational = on }
