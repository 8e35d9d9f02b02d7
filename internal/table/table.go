// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package table implements the hybrid array/hash container described in
// spec.md §4.3: a dense integer-keyed array part, an arbitrary-key hash
// part, and a nullable metatable. Table never consults __index/__newindex
// itself — that dispatch belongs to package meta; Table only implements the
// raw operations.
package table

import (
	"errors"
	"math"

	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/value"
)

// ErrInvalidKey is returned by Set when k is nil or NaN.
var ErrInvalidKey = errors.New("table: invalid key (nil or NaN)")

// Table is a Lua table object.
type Table struct {
	heap.Header
	h *heap.Heap

	array []value.Value // array[i] holds key i+1
	hash  map[value.Value]value.Value

	meta *Table

	weakKeys, weakValues bool

	// hashOrder/hashOrderValid cache the snapshot hashKeyOrder returns, so a
	// run of Next calls over an unmutated table sees one stable order
	// instead of a fresh (independently randomized) Go map range each time.
	hashOrder      []value.Value
	hashOrderValid bool
}

// New allocates an empty table on h.
func New(h *heap.Heap) *Table {
	t := &Table{h: h}
	h.Adopt(t, heap.KindTable, 96)
	return t
}

// TypeName implements value.Object.
func (t *Table) TypeName() string { return "table" }

// Trace implements heap.Object: visit the array part, hash part, and
// metatable. A weakly held side (§4.2's __mode) is skipped here — marking
// it during ordinary propagation would make it strongly reachable through
// this table, defeating ClearWeakEntries before the atomic phase ever runs.
// Only liveness reached through some other, non-weak path keeps such an
// entry alive; ClearWeakEntries drops the rest once that's known.
func (t *Table) Trace(mark func(value.Value)) {
	if !t.weakValues {
		for _, v := range t.array {
			mark(v)
		}
	}
	for k, v := range t.hash {
		if !t.weakKeys {
			mark(k)
		}
		if !t.weakValues {
			mark(v)
		}
	}
	if t.meta != nil {
		mark(value.Obj(t.meta))
	}
}

// Metatable returns the table's metatable, or nil.
func (t *Table) Metatable() *Table { return t.meta }

// SetMetatable installs (or clears, with nil) the table's metatable and
// refreshes the cached __mode weak-ness flags.
func (t *Table) SetMetatable(mt *Table) {
	t.meta = mt
	t.weakKeys, t.weakValues = false, false
	if mt == nil {
		return
	}
	modeKey := value.Obj(t.h.InternStr("__mode"))
	if raw, ok := mt.hash[modeKey]; ok && raw.Kind() == value.KindObject {
		if s, ok := raw.AsObject().(*heap.LString); ok {
			mode := string(s.Bytes())
			t.weakKeys = containsByte(mode, 'k')
			t.weakValues = containsByte(mode, 'v')
		}
	}
	t.h.WriteBarrierBackward(t, value.Obj(mt))
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}

// WeakMode implements heap.WeakHolder.
func (t *Table) WeakMode() (weakKeys, weakValues bool) { return t.weakKeys, t.weakValues }

// ClearWeakEntries implements heap.WeakHolder: drop entries whose weakly
// held key or value did not survive the mark phase.
func (t *Table) ClearWeakEntries(isLive func(value.Value) bool) {
	if !t.weakKeys && !t.weakValues {
		return
	}
	if t.weakValues {
		for i, v := range t.array {
			if !v.IsNil() && !isLive(v) {
				t.array[i] = value.Nil
			}
		}
	}
	for k, v := range t.hash {
		dead := (t.weakKeys && !isLive(k)) || (t.weakValues && !isLive(v))
		if dead {
			delete(t.hash, k)
			t.invalidateHashOrder()
		}
	}
}

// arrayIndex returns (index, true) when k is an integer (or an
// exact-integer float) usable as an array-part index.
func arrayIndex(k value.Value) (int, bool) {
	switch k.Kind() {
	case value.KindInteger:
		return int(k.AsInt()), true
	case value.KindFloat:
		f := k.AsFloat()
		if i := int64(f); float64(i) == f && !math.IsInf(f, 0) {
			return int(i), true
		}
	}
	return 0, false
}

// Get implements the raw get (§4.3): never consults __index.
func (t *Table) Get(k value.Value) value.Value {
	if i, ok := arrayIndex(k); ok && i >= 1 && i <= len(t.array) {
		return t.array[i-1]
	}
	if t.hash == nil {
		return value.Nil
	}
	if v, ok := t.hash[normalizeKey(k)]; ok {
		return v
	}
	return value.Nil
}

// normalizeKey canonicalizes integer-valued float keys to integers so that
// t[1] and t[1.0] address the same hash slot, per Lua's key equality rules.
func normalizeKey(k value.Value) value.Value {
	if k.Kind() == value.KindFloat {
		f := k.AsFloat()
		if i := int64(f); float64(i) == f && !math.IsInf(f, 0) {
			return value.Int(i)
		}
	}
	return k
}

// Set implements the raw set (§4.3). Setting v = Nil deletes the entry.
func (t *Table) Set(k, v value.Value) error {
	if k.IsNil() {
		return ErrInvalidKey
	}
	if k.Kind() == value.KindFloat && math.IsNaN(k.AsFloat()) {
		return ErrInvalidKey
	}
	k = normalizeKey(k)
	if i, ok := arrayIndex(k); ok && i >= 1 {
		if i <= len(t.array) {
			t.array[i-1] = v
			t.h.WriteBarrierBackward(t, v)
			return nil
		}
		if i == len(t.array)+1 && !v.IsNil() {
			t.array = append(t.array, v)
			t.h.WriteBarrierBackward(t, v)
			t.absorbFromHash()
			return nil
		}
	}
	if v.IsNil() {
		if t.hash != nil {
			if _, existed := t.hash[k]; existed {
				delete(t.hash, k)
				t.invalidateHashOrder()
			}
		}
		return nil
	}
	if t.hash == nil {
		t.hash = make(map[value.Value]value.Value)
	}
	if _, existed := t.hash[k]; !existed {
		t.invalidateHashOrder()
	}
	t.hash[k] = v
	t.h.WriteBarrierBackward(t, k)
	t.h.WriteBarrierBackward(t, v)
	return nil
}

// invalidateHashOrder drops the cached hashKeyOrder snapshot; called
// whenever a key is added to or removed from the hash part.
func (t *Table) invalidateHashOrder() {
	t.hashOrder = nil
	t.hashOrderValid = false
}

// absorbFromHash migrates any now-contiguous integer keys out of the hash
// part and into the array part after an append grew it, amortizing the
// cost of array growth the way real Lua tables do.
func (t *Table) absorbFromHash() {
	for {
		next := value.Int(int64(len(t.array) + 1))
		v, ok := t.hash[next]
		if !ok {
			return
		}
		t.array = append(t.array, v)
		delete(t.hash, next)
		t.invalidateHashOrder()
	}
}

// Length implements the '#' operator (§3.5, §4.3): returns some n with
// t[n] non-nil and t[n+1] nil, found by binary search over the array part's
// non-nil prefix in O(log N).
func (t *Table) Length() int64 {
	n := len(t.array)
	if n == 0 || !t.array[n-1].IsNil() {
		// Either empty, or the array part is itself the full dense prefix;
		// a non-nil value at an index beyond the array part (in the hash)
		// would make the sequence's boundary ambiguous, which Lua allows.
		if n > 0 {
			return int64(n)
		}
		// Fall through to probe the hash part for a 1-based run.
		if t.hash == nil {
			return 0
		}
		i := int64(0)
		for {
			if _, ok := t.hash[value.Int(i+1)]; !ok {
				return i
			}
			i++
		}
	}
	lo, hi := 0, n
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if t.array[mid-1].IsNil() {
			hi = mid
		} else {
			lo = mid
		}
	}
	return int64(lo)
}

// Next implements the traversal primitive (§4.3). Order is stable across
// calls as long as the table is not mutated in between: array indices are
// visited first in order, then hash entries in Go map iteration order
// captured at the start of the traversal (keys snapshot, rebuilt lazily).
func (t *Table) Next(k value.Value) (nk, nv value.Value, ok bool, err error) {
	if k.IsNil() {
		for i, v := range t.array {
			if !v.IsNil() {
				return value.Int(int64(i + 1)), v, true, nil
			}
		}
		return t.firstHashEntry()
	}
	k = normalizeKey(k)
	if i, isArr := arrayIndex(k); isArr && i >= 1 && i <= len(t.array) {
		for j := i; j < len(t.array); j++ {
			if !t.array[j].IsNil() {
				return value.Int(int64(j + 1)), t.array[j], true, nil
			}
		}
		return t.firstHashEntry()
	}
	keys := t.hashKeyOrder()
	for idx, hk := range keys {
		if value.RawEqual(hk, k) {
			for _, nk2 := range keys[idx+1:] {
				if v, ok := t.hash[nk2]; ok {
					return nk2, v, true, nil
				}
			}
			return value.Nil, value.Nil, false, nil
		}
	}
	return value.Nil, value.Nil, false, errors.New("table: invalid key to 'next'")
}

func (t *Table) firstHashEntry() (value.Value, value.Value, bool, error) {
	keys := t.hashKeyOrder()
	if len(keys) == 0 {
		return value.Nil, value.Nil, false, nil
	}
	k := keys[0]
	return k, t.hash[k], true, nil
}

// hashKeyOrder returns a snapshot of the hash part's keys, cached across
// calls: Go's map iteration order is independently re-randomized on every
// range, so re-ranging on each Next would let a traversal revisit or skip
// keys between calls. The cache is invalidated (see invalidateHashOrder)
// whenever a key is added to or removed from the hash part, and is
// otherwise stable for as long as §4.3 requires — callers must not mutate
// the table's key set between Next calls of the same traversal.
func (t *Table) hashKeyOrder() []value.Value {
	if t.hashOrderValid {
		return t.hashOrder
	}
	if len(t.hash) == 0 {
		t.hashOrder = nil
		t.hashOrderValid = true
		return nil
	}
	keys := make([]value.Value, 0, len(t.hash))
	for k := range t.hash {
		keys = append(keys, k)
	}
	t.hashOrder = keys
	t.hashOrderValid = true
	return keys
}

// ArrayCap reports the array part's allocated length (not the '#'
// operator).
func (t *Table) ArrayCap() int { return len(t.array) }

// SetList bulk-assigns v[0], v[1], ... starting at array index start+1,
// implementing the SETLIST instruction (§6.2).
func (t *Table) SetList(start int, vs []value.Value) {
	for i, v := range vs {
		_ = t.Set(value.Int(int64(start+i+1)), v)
	}
}
