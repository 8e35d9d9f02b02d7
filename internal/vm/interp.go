// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package vm implements the fetch-decode-execute loop over a Prototype's
// instruction stream (§4.5, §4.6): register-window call frames, tail
// calls, metamethod-aware arithmetic/indexing dispatch, to-be-closed
// variable closing, and the native-function re-entry points the baselib
// needs (pcall, coroutine.yield, ...). It is the one package allowed to
// import both closure and thread, since it is the seam package thread's
// Interpreter interface exists to decouple.
package vm

import (
	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/meta"
	"github.com/probeum/lucore/internal/thread"
	"github.com/probeum/lucore/internal/value"
)

// Interpreter drives every thread sharing one heap/metamethod registry.
// It implements thread.Interpreter.
type Interpreter struct {
	h     *heap.Heap
	reg   *meta.Registry
	sched *thread.Scheduler
	dbg   *debugInfo
}

// New builds an interpreter. Call sched.SetInterpreter(vm) once both sides
// are constructed (thread.Scheduler and vm.Interpreter each need the other).
func New(h *heap.Heap, reg *meta.Registry, sched *thread.Scheduler) *Interpreter {
	return &Interpreter{h: h, reg: reg, sched: sched, dbg: newDebugInfo()}
}

// Raised wraps a Lua error value in Go's error interface. Nothing in
// package vm constructs one: errors travel as thread.ExecResult values.
type Raised struct{ Value value.Value }

func (r *Raised) Error() string { return value.ToStringSimple(r.Value) }

// PrepareCall implements thread.Interpreter: install fn as th's next
// activation exactly like a CALL instruction would, used for a coroutine's
// first resume (the runtime's top-level Eval goes through Call instead).
// When fn is itself a native closure there is no Lua frame to drive a
// dispatch loop, so the call resolves synchronously here and its outcome is
// stashed for the very next Run to report.
func (vm *Interpreter) PrepareCall(th *thread.Thread, fn value.Value, args []value.Value, nresults int) {
	retSlot := th.Top()
	startDepth := th.Depth()
	bubble := vm.pushCall(th, fn, args, retSlot, nresults, false, false, startDepth)
	if bubble == nil && th.Depth() == startDepth {
		// A native closure completed inside pushCall and left its results
		// at retSlot.
		vals := make([]value.Value, th.Top()-retSlot)
		for i := range vals {
			vals[i] = th.Get(retSlot + i)
		}
		bubble = &thread.ExecResult{Outcome: thread.OutcomeCompleted, Values: vals}
	}
	if bubble != nil {
		th.SetPendingResult(bubble)
	}
}

// Run implements thread.Interpreter: execute th until its initial frame
// (the one active when Run was entered) completes, yields, or errors.
func (vm *Interpreter) Run(th *thread.Thread) thread.ExecResult {
	if pr := th.TakePendingResult(); pr != nil {
		return *pr
	}
	startDepth := th.Depth() - 1
	for {
		if res := vm.stepOne(th, startDepth); res != nil {
			return *res
		}
	}
}

// stepOne executes exactly one bytecode instruction in th's innermost
// frame, returning non-nil when Run should stop and report that outcome to
// the scheduler. Native calls never leave a frame on th: invokeNative (see
// call.go) resolves them to completion, yield, or error before pushCall
// returns, so the frame on top here is always a Lua closure's.
func (vm *Interpreter) stepOne(th *thread.Thread, startDepth int) *thread.ExecResult {
	f := th.Frame()
	if f == nil {
		return &thread.ExecResult{Outcome: thread.OutcomeCompleted}
	}
	if f.PC >= len(f.Closure.Proto.Code) {
		return vm.doReturn(th, nil, startDepth)
	}
	instr := f.Closure.Proto.Code[f.PC]
	vm.fireLineHook(th, f, instr)
	f.PC++
	if out := vm.exec(th, f, instr, startDepth); out != nil {
		return out
	}
	return nil
}
