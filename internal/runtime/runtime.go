// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package runtime wires together the collectable heap, the metamethod
// registry, the thread scheduler, and the opcode interpreter into one
// embeddable Lua runtime, and supplies the heap's GC root set (the seam
// heap.RootProvider exists for).
package runtime

import (
	"os"

	"github.com/probeum/lucore/internal/config"
	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/luaerr"
	"github.com/probeum/lucore/internal/meta"
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/thread"
	"github.com/probeum/lucore/internal/value"
	"github.com/probeum/lucore/internal/vm"
)

// errClosed is returned by Close on a runtime already closed.
var errClosed = luaerr.ErrClosed

// defaultLogWriter is os.Stderr, matching the teacher's own default log
// sink (gprobe logs to stderr so stdout stays free for script output).
func defaultLogWriter() *os.File { return os.Stderr }

// sharedTypeNames enumerates the primitive type names that can carry a
// shared metatable (§4.10); tables and userdata carry their own pointer
// instead and so are never registered here.
var sharedTypeNames = []string{"nil", "boolean", "number", "string", "function", "thread"}

// Runtime is one independent Lua universe: its own heap, globals table, and
// thread scheduler. Two Runtimes never share an object.
type Runtime struct {
	cfg     *config.Config
	log     *Logger
	h       *heap.Heap
	reg     *meta.Registry
	globals *table.Table
	sched   *thread.Scheduler
	interp  *vm.Interpreter
	closed  bool
}

// New bootstraps a Runtime from cfg (nil uses config.Default()). The
// bootstrap order mirrors thread/scheduler.go's own documented two-step
// wiring: heap.New needs a RootProvider before Runtime's other fields
// exist, so GCRoots tolerates a partially-built Runtime by checking each
// field for nil before marking it.
func New(cfg *config.Config, log *Logger) *Runtime {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = NewLogger(defaultLogWriter(), LvlInfo)
	}

	rt := &Runtime{cfg: cfg, log: log}
	rt.h = heap.New(rt, cfg.GC.MemoryLimitBytes)
	rt.h.SetGenerational(cfg.GC.Generational)

	rt.reg = meta.NewRegistry(rt.h)
	rt.globals = table.New(rt.h)

	main := thread.New(rt.h, rt.reg, rt.globals, true)
	rt.sched = thread.NewScheduler(rt.h, main)

	rt.interp = vm.New(rt.h, rt.reg, rt.sched)
	rt.sched.SetInterpreter(rt.interp)

	return rt
}

// GCRoots implements heap.RootProvider (§3.6): the main thread, the
// currently running thread (which may be a coroutine reachable from no Lua
// value while host code is mid-resume), and every shared per-primitive
// metatable. Thread.Trace already walks its own stack, frames, and globals,
// so marking the two threads is sufficient to reach globals transitively.
func (rt *Runtime) GCRoots(mark func(value.Value)) {
	if rt.sched == nil {
		return
	}
	if main := rt.sched.Main(); main != nil {
		mark(value.Obj(main))
	}
	if cur := rt.sched.Current(); cur != nil && cur != rt.sched.Main() {
		mark(value.Obj(cur))
	}
	if rt.reg != nil {
		for _, name := range sharedTypeNames {
			if mt := rt.reg.Shared(name); mt != nil {
				mark(value.Obj(mt))
			}
		}
	}
}

// Heap exposes the collectable heap to package native (collectgarbage's
// size query path) and cmd/luacore diagnostics.
func (rt *Runtime) Heap() *heap.Heap { return rt.h }

// Registry exposes the metamethod registry, used by package native to
// install the shared string/number metatables at bootstrap.
func (rt *Runtime) Registry() *meta.Registry { return rt.reg }

// Globals returns _G, the table every main-chunk _ENV upvalue closes over.
func (rt *Runtime) Globals() *table.Table { return rt.globals }

// Scheduler exposes the coroutine scheduler to package native's
// coroutine.* functions and to cmd/luacore.
func (rt *Runtime) Scheduler() *thread.Scheduler { return rt.sched }

// Interp exposes the opcode interpreter for top-level script invocation.
func (rt *Runtime) Interp() *vm.Interpreter { return rt.interp }

// Log returns the runtime's structured logger.
func (rt *Runtime) Log() *Logger { return rt.log }

// Config returns the tuning parameters the runtime was built with.
func (rt *Runtime) Config() *config.Config { return rt.cfg }

// Eval runs fn(args...) to completion on the main thread, synchronously,
// the way cmd/luacore invokes a loaded chunk. It is a thin wrapper over
// Interp().Call so callers outside package vm never need to see
// thread.ExecResult.
func (rt *Runtime) Eval(fn value.Value, args ...value.Value) (results []value.Value, ok bool, errVal value.Value) {
	return rt.interp.Call(rt.sched.Main(), fn, args, -1)
}

// RunFinalizers drains the heap's pending __gc queue (§4.8, §9 Open
// Question 4), executing each finalizer protected against the scheduler's
// current thread — the thread most recently running host code, which is
// always live and never itself mid-collection. A finalizer error is logged
// and does not propagate: Lua discards __gc errors rather than aborting
// collection.
func (rt *Runtime) RunFinalizers() {
	pending := rt.h.PendingFinalizers()
	if len(pending) == 0 {
		return
	}
	th := rt.sched.Current()
	if th == nil {
		th = rt.sched.Main()
	}
	for _, obj := range pending {
		fin := heap.FinalizerOf(obj)
		if !fin.IsNil() {
			if _, ok, errVal := rt.interp.Call(th, fin, []value.Value{value.Obj(obj)}, 0); !ok {
				rt.log.Warn("finalizer error", "error", value.ToStringSimple(errVal))
			}
		}
		rt.h.ClearFinalizer(obj)
	}
}

// Close marks the runtime unusable; repeat calls return luaerr.ErrClosed.
func (rt *Runtime) Close() error {
	if rt.closed {
		return errClosed
	}
	rt.closed = true
	return nil
}
