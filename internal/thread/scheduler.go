// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package thread

import (
	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/value"
)

// Outcome is the result of running a thread's interpreter loop to the next
// suspension point (§4.6 "the result is one of Continue/Return/Yield/Error";
// Outcome reports the loop-level summary Resume needs, since Continue/
// Return never escape package vm's internal dispatch).
type Outcome uint8

const (
	OutcomeCompleted Outcome = iota
	OutcomeYielded
	OutcomeErrored
)

// ExecResult is what package vm's Interpreter.Run returns to the scheduler.
type ExecResult struct {
	Outcome Outcome
	Values  []value.Value // completion results, or yielded values
	Err     value.Value   // valid when Outcome == OutcomeErrored
}

// Interpreter is implemented by package vm. Thread cannot import vm (vm
// must import thread for Thread/Frame), so the scheduler drives execution
// through this seam instead — the same decoupling pattern heap uses for
// RootProvider.
type Interpreter interface {
	// Run executes th from its current innermost frame until completion,
	// yield, or an uncaught error.
	Run(th *Thread) ExecResult
	// PrepareCall installs fn as th's initial (or re-entrant) call frame
	// with args already laid out, reusing the same call-transition logic
	// (§4.5) that a CALL instruction would use.
	PrepareCall(th *Thread, fn value.Value, args []value.Value, nresults int)
	// CloseThread runs __close on every to-be-closed variable still
	// pending across th's suspended frame chain, innermost frame first and
	// reverse-declaration-order within each frame (§4.8's coroutine.close,
	// §9 Open Question 3), stopping at and reporting the first error.
	CloseThread(th *Thread) (ok bool, errVal value.Value)
}

// Scheduler is the runtime's notion of "which thread is current" (§4.8):
// it tracks the resume chain and is the seam the GC's finalizer executor
// consults (§9 Open Question 4: finalizers run with some live thread
// context).
type Scheduler struct {
	h       *heap.Heap
	interp  Interpreter
	main    *Thread
	current *Thread
}

// NewScheduler creates a scheduler rooted at main, which starts Running.
func NewScheduler(h *heap.Heap, main *Thread) *Scheduler {
	main.setStatus(Running)
	return &Scheduler{h: h, main: main, current: main}
}

// SetInterpreter wires the interpreter loop implementation in after both
// are constructed (package vm's Interpreter needs a *Scheduler to build,
// and Scheduler needs an Interpreter to run — broken by this two-step
// wiring in the runtime package's constructor).
func (s *Scheduler) SetInterpreter(i Interpreter) { s.interp = i }

// Main returns the non-yieldable main thread.
func (s *Scheduler) Main() *Thread { return s.main }

// Current returns the thread presently executing (or most recently
// executing, between resumes) — the thread finalizers should run against.
func (s *Scheduler) Current() *Thread { return s.current }

// Create allocates a new coroutine in Created status with the given body.
func (s *Scheduler) Create(body value.Value) *Thread {
	co := New(s.h, s.main.Reg, s.main.Globals, false)
	co.pendingBody = body
	return co
}
