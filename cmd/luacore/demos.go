// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// demos.go hand-assembles a couple of tiny closure.Prototype programs.
// lucore has no compiler front end (out of scope, per spec.md's
// Non-goals), so there is no way to load a .lua source file; --demo
// exercises the call/arithmetic/global-access machinery directly against
// bytecode built in Go instead.
package main

import (
	"github.com/probeum/lucore/internal/closure"
	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/value"
)

// envSlot is a one-cell closure.StackSlot used only to seed a closed _ENV
// upvalue for a hand-built prototype — no live thread stack is involved.
type envSlot struct{ v value.Value }

func (s *envSlot) Get(int) value.Value  { return s.v }
func (s *envSlot) Set(_ int, v value.Value) { s.v = v }

// closedEnvUpvalue returns an already-closed upvalue holding globals, the
// way every main chunk's _ENV upvalue looks once the compiler (external to
// lucore) has finished emitting a top-level prototype.
func closedEnvUpvalue(h *heap.Heap, globals *table.Table) *closure.Upvalue {
	uv := closure.NewOpenUpvalue(h, &envSlot{v: value.Obj(globals)}, 0)
	uv.Close()
	return uv
}

// buildDemo assembles proto into a ready-to-call closure, wiring its single
// _ENV upvalue.
func buildDemo(h *heap.Heap, globals *table.Table, proto *closure.Prototype) *closure.Closure {
	c := closure.NewClosure(h, proto)
	c.Upvalues[0] = closedEnvUpvalue(h, globals)
	return c
}

// helloDemo prints a fixed greeting: GETTABUP print, LOADK the string, CALL,
// RETURN.
func helloDemo(h *heap.Heap, globals *table.Table) *closure.Closure {
	printKey := h.InternStr("print")
	greeting := h.InternStr("Hello, lucore!")
	proto := &closure.Prototype{
		Source:       "=(demo hello)",
		MaxStackSize: 2,
		Upvalues:     []closure.UpvalDesc{{Name: "_ENV", Kind: closure.CaptureStack, Index: 0, InStack: true}},
		Constants:    []value.Value{value.Obj(printKey), value.Obj(greeting)},
		Code: []closure.Instruction{
			{Op: closure.OpGetTabUp, A: 0, B: 0, C: 0, IsKC: true},
			{Op: closure.OpLoadK, A: 1, B: 1},
			{Op: closure.OpCall, A: 0, B: 2, C: 1},
			{Op: closure.OpReturn, A: 0, B: 1},
		},
	}
	return buildDemo(h, globals, proto)
}

// sumDemo prints 19 + 23, exercising OpAdd's constant operands alongside
// the same GETTABUP/CALL sequence helloDemo uses.
func sumDemo(h *heap.Heap, globals *table.Table) *closure.Closure {
	printKey := h.InternStr("print")
	proto := &closure.Prototype{
		Source:       "=(demo sum)",
		MaxStackSize: 2,
		Upvalues:     []closure.UpvalDesc{{Name: "_ENV", Kind: closure.CaptureStack, Index: 0, InStack: true}},
		Constants:    []value.Value{value.Obj(printKey), value.Int(19), value.Int(23)},
		Code: []closure.Instruction{
			{Op: closure.OpGetTabUp, A: 0, B: 0, C: 0, IsKC: true},
			{Op: closure.OpAdd, A: 1, B: 1, C: 2, IsKB: true, IsKC: true},
			{Op: closure.OpCall, A: 0, B: 2, C: 1},
			{Op: closure.OpReturn, A: 0, B: 1},
		},
	}
	return buildDemo(h, globals, proto)
}

// demos maps --demo names to builders.
var demos = map[string]func(h *heap.Heap, globals *table.Table) *closure.Closure{
	"hello": helloDemo,
	"sum":   sumDemo,
}
