// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package heap implements the traced object graph described in spec.md §3.2
// and §4.2: a single header shared by every collectable object, a
// tri-color incremental mark-sweep collector, string interning, weak
// tables, and finalizers. Go's own runtime still owns the backing memory —
// lucore's collector decides *when an object is logically dead* (so weak
// table entries clear and __gc handlers fire at the right moments); it does
// not hand memory back to the OS itself. This mirrors how pure-Go Lua
// implementations in the wild (e.g. zb's mylua) lean on the host GC for
// physical reclamation while still implementing Lua's own finalizer and
// weak-reference semantics on top.
package heap

import "github.com/probeum/lucore/internal/value"

// Color is the tri-color mark used by the incremental collector.
type Color uint8

const (
	White Color = iota // not (yet) reached this cycle
	Gray               // reached, children not yet scanned
	Black              // reached, children scanned
)

// Kind tags the concrete shape of a heap object for diagnostics and for the
// sweep phase to know which bookkeeping table (intern map, weak table slot)
// an entry must be cleared from.
type Kind uint8

const (
	KindString Kind = iota
	KindTable
	KindClosure
	KindNativeClosure
	KindUpvalue
	KindUserdata
	KindThread
)

// Header is embedded by every heap object. It carries the fields spec.md
// §3.2 requires: type tag, GC color, a fixed-in-place flag (roots that must
// never be swept: the main thread, shared metatables, the globals table),
// an "old" generation bit, and the next-in-allocation-order link the sweep
// phase walks.
type Header struct {
	kind      Kind
	color     Color
	old       bool // generational: survived at least one major cycle
	fixed     bool
	finalizer value.Value
	next      Object // intrusive singly-linked allocation list
}

// Object is implemented by every heap-allocated value. Trace must invoke
// mark for every value.Value the object directly references, so the
// collector can follow edges without type-switching on every object kind.
type Object interface {
	value.Object
	header() *Header
	Trace(mark func(value.Value))
}

func (h *Header) Kind() Kind      { return h.kind }
func (h *Header) Color() Color    { return h.color }
func (h *Header) IsFixed() bool   { return h.fixed }
func (h *Header) SetFixed(b bool) { h.fixed = b }
func (h *Header) IsOld() bool     { return h.old }
func (h *Header) header() *Header { return h }

// HasFinalizer reports whether __gc bookkeeping is pending for this object.
func (h *Header) HasFinalizer() bool { return !h.finalizer.IsNil() }

// Finalizer returns the registered __gc handler, or the nil value.
func (h *Header) Finalizer() value.Value { return h.finalizer }

// SetFinalizer records fn as the object's __gc handler.
func (h *Header) SetFinalizer(fn value.Value) { h.finalizer = fn }

// FinalizerOf returns o's registered __gc handler. The Object interface
// itself keeps header() unexported (package heap's internal seam), so
// callers holding only an Object — package runtime's finalizer executor,
// notably — go through this package-level accessor instead.
func FinalizerOf(o Object) value.Value { return o.header().Finalizer() }
