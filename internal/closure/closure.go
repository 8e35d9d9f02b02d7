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

// Closure is a Lua closure: a prototype paired with its owned array of
// upvalue references (§3.2, §4.4).
type Closure struct {
	heap.Header
	Proto    *Prototype
	Upvalues []*Upvalue
}

// TypeName implements value.Object.
func (c *Closure) TypeName() string { return "function" }

// Trace visits every upvalue cell and every constant in the prototype's
// closure (nested prototypes may themselves reference string constants, so
// tracing walks the whole constant/proto forest).
func (c *Closure) Trace(mark func(value.Value)) {
	for _, uv := range c.Upvalues {
		mark(value.Obj(uv))
	}
	traceProtoConstants(c.Proto, mark, make(map[*Prototype]bool))
}

func traceProtoConstants(p *Prototype, mark func(value.Value), seen map[*Prototype]bool) {
	if p == nil || seen[p] {
		return
	}
	seen[p] = true
	for _, k := range p.Constants {
		mark(k)
	}
	for _, child := range p.Protos {
		traceProtoConstants(child, mark, seen)
	}
}

// NewClosure allocates an empty closure for proto; the caller populates
// Upvalues per the prototype's upvalue descriptors (§4.4 "alloc_closure").
// Closures use the forward write barrier (§4.2): any later mutation of the
// Upvalues slice must call h.WriteBarrierForward(c).
func NewClosure(h *heap.Heap, proto *Prototype) *Closure {
	c := &Closure{Proto: proto, Upvalues: make([]*Upvalue, len(proto.Upvalues))}
	h.Adopt(c, heap.KindClosure, 64)
	return c
}

// NativeFunc is the Go-side signature for a built-in function tag's
// implementation, matching the ABI in §4.9/§6.3.
type NativeFunc func(ctx NativeContext) NativeResult

// NativeContext is implemented by package vm's call-frame adapter; it is
// declared here (rather than imported) to avoid a closure<->vm import
// cycle, since vm depends on closure for the instruction/closure types.
// Beyond plain argument/result access it exposes the few re-entrant
// operations the baselib's built-ins need (§4.9 "host functions may
// themselves re-enter the interpreter"): calling another value (pcall,
// xpcall), yielding the current thread (coroutine.yield), and driving the
// coroutine scheduler (the coroutine.* library, §4.8).
type NativeContext interface {
	Arg(i int) value.Value
	NArgs() int
	NResults() int
	Push(value.Value)
	Results() []value.Value

	// IsMainThread reports whether the thread currently executing this
	// native call is the main thread (coroutine.yield must reject it).
	IsMainThread() bool

	// Yield signals that the current thread should suspend, carrying
	// values as the coroutine.yield result. The returned NativeResult's
	// IsYield flag must be inspected by the caller (the interpreter's
	// call dispatch) rather than treated as an ordinary Ok/Raise result.
	Yield(values []value.Value) NativeResult

	// Call re-enters the interpreter to invoke fn with args, requesting
	// nresults results (-1 for all). protected=true catches a raised
	// error and reports it via errored/errVal instead of propagating it.
	Call(fn value.Value, args []value.Value, nresults int, protected bool) (results []value.Value, errVal value.Value, errored bool)

	CoroutineCreate(fn value.Value) value.Value
	CoroutineResume(co value.Value, args []value.Value) (ok bool, results []value.Value)
	CoroutineStatus(co value.Value) (status string, ok bool)
	CoroutineWrap(fn value.Value) value.Value
	CoroutineClose(co value.Value) (ok bool, errVal value.Value)
	CoroutineRunning() (co value.Value, isMain bool)

	// CollectGarbage implements the collectgarbage() built-in's option
	// dispatch ("collect", "stop", "restart", "count", ...), returning
	// whatever Lua value that option reports.
	CollectGarbage(opt string, arg int) value.Value
}

// NativeResult is returned by a NativeFunc: ok (results pushed via
// ctx.Push), an error value to raise (§6.3), or a yield signal produced by
// ctx.Yield and simply passed through as the function's own return value.
type NativeResult struct {
	Err     value.Value
	IsError bool
	IsYield bool
	Yielded []value.Value
}

// Ok is the zero NativeResult: results already pushed, no error.
var Ok = NativeResult{}

// Raise builds an error NativeResult carrying v.
func Raise(v value.Value) NativeResult { return NativeResult{Err: v, IsError: true} }

// NativeClosure is a built-in function. Tag is its stable enumerated
// identity (§4.9, §6.4), and Fn is the Go function that is called: the
// heap object stores that function pointer, and calls go through Fn rather
// than through a table indexed by Tag.
type NativeClosure struct {
	heap.Header
	Tag  NativeTag
	Name string
	Fn   NativeFunc
	// Upvalues lets a native closure close over Lua values (used by
	// coroutine.wrap's returned callable, for instance).
	Upvalues []value.Value
}

// TypeName implements value.Object.
func (n *NativeClosure) TypeName() string { return "function" }

// Trace visits any captured upvalues.
func (n *NativeClosure) Trace(mark func(value.Value)) {
	for _, v := range n.Upvalues {
		mark(v)
	}
}

// NewNativeClosure allocates a native closure on h.
func NewNativeClosure(h *heap.Heap, tag NativeTag, name string, fn NativeFunc, ups ...value.Value) *NativeClosure {
	n := &NativeClosure{Tag: tag, Name: name, Fn: fn, Upvalues: ups}
	h.Adopt(n, heap.KindNativeClosure, 48)
	return n
}

// NativeTag is the stable enumerated identity of a built-in function
// (§4.9, §6.4).
type NativeTag uint16

const (
	TagNone NativeTag = iota
	TagPrint
	TagType
	TagToString
	TagToNumber
	TagPCall
	TagXPCall
	TagAssert
	TagError
	TagRawGet
	TagRawSet
	TagRawEqual
	TagRawLen
	TagSetMetatable
	TagGetMetatable
	TagNext
	TagPairs
	TagIPairs
	TagSelect
	TagCollectGarbage
	TagCoroutineCreate
	TagCoroutineResume
	TagCoroutineYield
	TagCoroutineStatus
	TagCoroutineWrap
	TagCoroutineClose
	TagCoroutineRunning
	TagCoroutineIsYieldable
	TagWrapCall // internal tag used by the callable object coroutine.wrap returns
)
