// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package heap

import (
	"reflect"

	"github.com/fjl/memsize"

	"github.com/probeum/lucore/internal/value"
)

// Phase names the collector's state machine (§4.2).
type Phase uint8

const (
	PhasePause Phase = iota
	PhasePropagate
	PhaseAtomic
	PhaseSweep
)

// Collect runs one full collection cycle synchronously: mark, atomic, sweep.
// It is what collectgarbage("collect") calls.
func (h *Heap) Collect() {
	if h.Inhibited() {
		return
	}
	h.markRoots()
	h.propagateAll()
	h.atomic()
	h.sweep()
}

// StepAuto runs one incremental slice, sized by the rate limiter so that
// total mark work stays roughly proportional to bytes allocated since the
// last step (§4.2 "progress is driven in steps proportional to bytes
// allocated"). When the gray queue empties it finishes the cycle (atomic +
// sweep) rather than leaving garbage permanently unswept, since lucore's
// "incremental" mode is a single-goroutine simulation, not a concurrent
// collector with a real mutator-pause budget.
func (h *Heap) StepAuto() {
	if h.Inhibited() {
		return
	}
	if len(h.gray) == 0 {
		h.markRoots()
	}
	budget := 256
	if h.pacer.Allow() {
		budget = 4096
	}
	for i := 0; i < budget && len(h.gray) > 0; i++ {
		h.propagateOne()
	}
	if len(h.gray) == 0 {
		h.atomic()
		h.sweep()
	}
}

func (h *Heap) markValue(v value.Value) {
	if v.Kind() != value.KindObject {
		return
	}
	obj, ok := v.AsObject().(Object)
	if !ok {
		return
	}
	hdr := obj.header()
	if h.generational && hdr.old && hdr.color == Black {
		// An old object already blackened in this cycle is not queued
		// again. Sweep resets every survivor, old or not, to white, so old
		// objects are still traced on each Collect; there is no separate
		// minor cycle that skips them.
		return
	}
	if hdr.color == White {
		hdr.color = Gray
		h.gray = append(h.gray, obj)
	}
}

func (h *Heap) markRoots() {
	for o := h.all; o != nil; o = o.header().next {
		hdr := o.header()
		if hdr.fixed {
			hdr.color = Gray
			h.gray = append(h.gray, o)
			continue
		}
		if !(h.generational && hdr.old) {
			hdr.color = White
		}
	}
	if h.roots != nil {
		h.roots.GCRoots(h.markValue)
	}
	for _, v := range h.tempRoots {
		h.markValue(v)
	}
}

func (h *Heap) propagateOne() {
	n := len(h.gray)
	if n == 0 {
		return
	}
	o := h.gray[n-1]
	h.gray = h.gray[:n-1]
	o.Trace(h.markValue)
	o.header().color = Black
}

func (h *Heap) propagateAll() {
	for len(h.gray) > 0 {
		h.propagateOne()
	}
}

// atomic runs the root-finalization and weak-table phase (§4.2): clear dead
// weak-table entries, then find white objects carrying a __gc handler and
// resurrect them for one more cycle so the finalizer can run with the
// object still fully reachable.
func (h *Heap) atomic() {
	h.clearWeakTables()
	h.toFinalize = h.toFinalize[:0]
	for o := h.all; o != nil; o = o.header().next {
		hdr := o.header()
		if hdr.color != White || !hdr.HasFinalizer() {
			continue
		}
		key := uintptr(objectIdentity(o))
		if h.pendingFinal.Contains(key) {
			continue
		}
		h.pendingFinal.Add(key)
		h.toFinalize = append(h.toFinalize, o)
		// Resurrect: mark reachable again so sweep does not reclaim it
		// before the finalizer executor (package thread) runs __gc.
		hdr.color = Gray
		h.gray = append(h.gray, o)
		h.markValue(hdr.Finalizer())
	}
	h.propagateAll()
}

// PendingFinalizers returns (and clears) the objects resurrected this cycle
// whose __gc handler has not yet run. The caller (thread's finalizer
// executor, per §4.8) is responsible for invoking each handler with some
// live thread context and then calling ClearFinalizer so the object is
// collected cleanly on the next cycle.
func (h *Heap) PendingFinalizers() []Object {
	out := h.toFinalize
	h.toFinalize = nil
	return out
}

// ClearFinalizer drops the finalizer and pending-set membership for o after
// its __gc handler has run, so the next cycle reclaims it for good.
func (h *Heap) ClearFinalizer(o Object) {
	o.header().finalizer = value.Nil
	h.pendingFinal.Remove(uintptr(objectIdentity(o)))
}

func (h *Heap) sweep() {
	var prev Object
	n := h.count
	for o := h.all; o != nil; {
		hdr := o.header()
		next := hdr.next
		if hdr.fixed || hdr.color == Black {
			if hdr.color == Black {
				if h.generational {
					hdr.old = true
				}
				hdr.color = White
			}
			prev = o
			o = next
			continue
		}
		// White and not fixed: unreachable. Unlink.
		if prev == nil {
			h.all = next
		} else {
			prev.header().next = next
		}
		if s, ok := o.(*LString); ok {
			h.unintern(s)
		}
		n--
		o = next
	}
	h.count = n
	h.bytes = 0
}

// Count estimates live heap bytes for collectgarbage("count"), using
// fjl/memsize to walk the tracked object graph (a direct, precise, non-
// evicting measurement — preferred over wiring in a byte-oriented cache
// like VictoriaMetrics/fastcache, which would have to evict and therefore
// could not report a faithful total).
func (h *Heap) Count() uint64 {
	r := memsize.Scan(h.all)
	return r.Total
}

// objectIdentity extracts a stable pointer-sized identity for an Object,
// used as the dedup key for the pending-finalizer set.
func objectIdentity(o Object) uintptr {
	return reflect.ValueOf(o).Pointer()
}
