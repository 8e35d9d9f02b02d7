// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package meta implements the metamethod lookup and dispatch protocol of
// spec.md §4.7: locating a value's metatable (own, or the shared
// per-primitive-type table), raw-getting an event key, and the binary-event
// operand-ordering rule.
package meta

import (
	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/userdata"
	"github.com/probeum/lucore/internal/value"
)

// Registry owns the interned event-key table and the shared per-primitive
// metatables (§4.10). Event keys are interned once so every metamethod
// probe thereafter is a raw table lookup keyed by an already-interned
// string, not a fresh string compare.
type Registry struct {
	h         *heap.Heap
	eventKeys [int(value.EventToString) + 1]value.Value
	// shared maps a primitive Lua type name ("nil", "boolean", "number",
	// "string", "function", "thread") to its process-wide metatable, per
	// §4.10. Tables and (full) userdata are deliberately absent: they carry
	// a direct, individually nullable metatable pointer instead (§3.2).
	shared map[string]*table.Table
}

// NewRegistry builds the event-key cache.
func NewRegistry(h *heap.Heap) *Registry {
	r := &Registry{h: h, shared: make(map[string]*table.Table)}
	for ev := value.EventAdd; ev <= value.EventToString; ev++ {
		r.eventKeys[ev] = value.Obj(h.InternStr(ev.String()))
	}
	return r
}

// SetShared installs the shared metatable used by every value of the given
// primitive type name that has no individual metatable (§4.10).
func (r *Registry) SetShared(typeName string, mt *table.Table) { r.shared[typeName] = mt }

// Shared returns the shared metatable for the given primitive type name, or nil.
func (r *Registry) Shared(typeName string) *table.Table { return r.shared[typeName] }

// Metatable returns v's effective metatable: its own direct pointer for
// tables and userdata (possibly nil, with no further fallback), or the
// shared per-type metatable for every other kind.
func (r *Registry) Metatable(v value.Value) *table.Table {
	if v.Kind() == value.KindObject {
		switch o := v.AsObject().(type) {
		case *table.Table:
			return o.Metatable()
		case *userdata.Userdata:
			return o.Metatable()
		}
	}
	return r.shared[v.TypeName()]
}

// Lookup performs the two-step protocol of §4.7: locate the metatable,
// then raw-get the event key. Returns the nil value and false if no
// metatable or no such event.
func (r *Registry) Lookup(v value.Value, ev value.Event) (value.Value, bool) {
	mt := r.Metatable(v)
	if mt == nil {
		return value.Nil, false
	}
	res := mt.Get(r.eventKeys[ev])
	return res, !res.IsNil()
}

// LookupBinary implements the binary-event operand-ordering rule: check a's
// metatable first, then b's; return the method and which operand supplied
// it (false = a, true = b).
func (r *Registry) LookupBinary(ev value.Event, a, b value.Value) (fn value.Value, fromB bool, ok bool) {
	if fn, ok := r.Lookup(a, ev); ok {
		return fn, false, true
	}
	if fn, ok := r.Lookup(b, ev); ok {
		return fn, true, true
	}
	return value.Nil, false, false
}

// EqualCandidate implements the __eq precondition of §4.7: both operands
// must be the same primitive kind (both table, or both userdata — raw
// object kind, not Lua-level "table"/"userdata" distinction further than
// that), and only tables/userdata are eligible.
func EqualCandidate(a, b value.Value) bool {
	if a.Kind() != value.KindObject || b.Kind() != value.KindObject {
		return false
	}
	switch a.AsObject().(type) {
	case *table.Table:
		_, ok := b.AsObject().(*table.Table)
		return ok
	case *userdata.Userdata:
		_, ok := b.AsObject().(*userdata.Userdata)
		return ok
	}
	return false
}

// GetMetatableField returns the value getmetatable() should return for v:
// the __metatable field's value if the metatable protects itself (§4.7
// "__metatable protection"), else the metatable itself (wrapped as a
// Value), else nil.
func (r *Registry) GetMetatableField(v value.Value) value.Value {
	mt := r.Metatable(v)
	if mt == nil {
		return value.Nil
	}
	if prot := mt.Get(r.eventKeys[value.EventMetatable]); !prot.IsNil() {
		return prot
	}
	return value.Obj(mt)
}

// CanSetMetatable reports whether setmetatable(v, _) is allowed: it must
// raise if v's current metatable has a __metatable field.
func (r *Registry) CanSetMetatable(v value.Value) bool {
	mt := r.Metatable(v)
	if mt == nil {
		return true
	}
	return mt.Get(r.eventKeys[value.EventMetatable]).IsNil()
}

// EventKey returns the interned string Value used as the metatable key for
// ev, for callers (e.g. package vm) that need to raw-set/get it directly.
func (r *Registry) EventKey(ev value.Event) value.Value { return r.eventKeys[ev] }
