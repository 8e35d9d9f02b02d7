// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package closure

import (
	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/value"
)

// StackSlot is implemented by package thread's stack, letting an open
// upvalue read/write a live register without closure importing thread.
type StackSlot interface {
	Get(index int) value.Value
	Set(index int, v value.Value)
}

// Upvalue is either open (pointing at a stack slot of some thread) or
// closed (owning its own value cell), per §3.2 and §4.4. Multiple closures
// capturing the same variable share the identical *Upvalue pointer — that
// pointer-identity is what debug.upvalueid relies on (testable property
// #3) and survives closing.
type Upvalue struct {
	heap.Header
	stack StackSlot // non-nil while open
	index int       // stack slot while open
	closed bool
	cell  value.Value // valid once closed
	// next links this upvalue into its owning thread's open-upvalue list,
	// sorted by descending stack index (§4.4). The list head lives on the
	// thread, not here, to avoid an upvalue<->thread ownership cycle; see
	// internal/thread/openupvals.go.
	next *Upvalue
}

// TypeName implements value.Object. Upvalues are not a distinct Lua type;
// this label only shows up in internal diagnostics.
func (u *Upvalue) TypeName() string { return "upvalue" }

// Trace visits the closed cell; an open upvalue's referent lives on a
// thread's stack, which is traced independently as a GC root while that
// thread is live, so no edge is needed here in the open case.
func (u *Upvalue) Trace(mark func(value.Value)) {
	if u.closed {
		mark(u.cell)
	}
}

// NewOpenUpvalue allocates an open upvalue pointing at stack[index].
func NewOpenUpvalue(h *heap.Heap, stack StackSlot, index int) *Upvalue {
	u := &Upvalue{stack: stack, index: index}
	h.Adopt(u, heap.KindUpvalue, 32)
	return u
}

// IsClosed reports whether the upvalue has been closed.
func (u *Upvalue) IsClosed() bool { return u.closed }

// Index returns the stack slot an open upvalue refers to. Only meaningful
// while !IsClosed().
func (u *Upvalue) Index() int { return u.index }

// Next returns the next upvalue in the owning thread's open list.
func (u *Upvalue) Next() *Upvalue { return u.next }

// SetNext links u to the next open upvalue in descending-index order.
func (u *Upvalue) SetNext(n *Upvalue) { u.next = n }

// Get reads the upvalue's current value, from the live stack slot if open
// or from its own cell once closed.
func (u *Upvalue) Get() value.Value {
	if u.closed {
		return u.cell
	}
	return u.stack.Get(u.index)
}

// Set writes the upvalue's current value.
func (u *Upvalue) Set(h *heap.Heap, v value.Value) {
	if u.closed {
		u.cell = v
		h.WriteBarrierForward(u)
		return
	}
	u.stack.Set(u.index, v)
}

// Close copies the live stack value into the upvalue's own cell and
// detaches it from the stack, per §3.5/§4.4: "closing it copies its value
// into the upvalue's own cell and redirects all sharers transparently."
// Because every closure sharing this variable holds the same *Upvalue
// pointer, no redirection step is needed beyond flipping the closed flag.
func (u *Upvalue) Close() {
	if u.closed {
		return
	}
	u.cell = u.stack.Get(u.index)
	u.closed = true
	u.stack = nil
	u.next = nil
}
