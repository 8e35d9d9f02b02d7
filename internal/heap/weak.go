// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package heap

import "github.com/probeum/lucore/internal/value"

// WeakHolder is implemented by package table's *Table. It is declared here
// (rather than having heap import table) so the collector can clear weak
// entries without creating an import cycle: table already must import heap
// for Header/Object, so the dependency can only run one way.
type WeakHolder interface {
	// WeakMode reports whether keys and/or values are held weakly, per the
	// metatable's __mode field (§4.2 "weak tables").
	WeakMode() (weakKeys, weakValues bool)
	// ClearWeakEntries removes any entry whose weakly-held key or value is
	// white (unreached) according to isLive. Called during the atomic
	// phase, after propagation has finished marking everything reachable
	// through strong references.
	ClearWeakEntries(isLive func(value.Value) bool)
}

// isLive reports whether v is nil, not an object, or an object that the
// collector marked reachable this cycle (i.e. not white).
func (h *Heap) isLive(v value.Value) bool {
	if v.Kind() != value.KindObject {
		return true
	}
	obj, ok := v.AsObject().(Object)
	if !ok {
		return true
	}
	return obj.header().color != White
}

// clearWeakTables runs the atomic-phase weak-table pass over every tracked
// table, regardless of whether it was reached by the mark phase: an
// unreached weak table is about to be swept anyway, and a reached one may
// still need its dead entries cleared before Lua code observes it again.
func (h *Heap) clearWeakTables() {
	for o := h.all; o != nil; o = o.header().next {
		wh, ok := o.(WeakHolder)
		if !ok {
			continue
		}
		wk, wv := wh.WeakMode()
		if !wk && !wv {
			continue
		}
		wh.ClearWeakEntries(h.isLive)
	}
}
