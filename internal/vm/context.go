// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"github.com/probeum/lucore/internal/closure"
	"github.com/probeum/lucore/internal/thread"
	"github.com/probeum/lucore/internal/value"
)

// nativeCtx implements closure.NativeContext against one invokeNative call
// (§4.9): it is built fresh per native call and discarded once Fn returns.
type nativeCtx struct {
	vm         *Interpreter
	th         *thread.Thread
	args       []value.Value
	nresults   int
	startDepth int
	upvalues   []value.Value
	results    []value.Value
}

func (c *nativeCtx) Arg(i int) value.Value {
	if i < 0 || i >= len(c.args) {
		return value.Nil
	}
	return c.args[i]
}

func (c *nativeCtx) NArgs() int { return len(c.args) }

func (c *nativeCtx) NResults() int { return c.nresults }

func (c *nativeCtx) Push(v value.Value) { c.results = append(c.results, v) }

func (c *nativeCtx) Results() []value.Value { return c.results }

func (c *nativeCtx) IsMainThread() bool { return c.th.IsMain() }

// Yield implements coroutine.yield (§4.8): rejected outright on the main
// thread or while nested inside a re-entrant native call (pcall, a sort
// comparator, ...), per the yield-across-C-boundary simplification
// recorded in DESIGN.md.
func (c *nativeCtx) Yield(values []value.Value) closure.NativeResult {
	if !c.th.IsYieldable() {
		return closure.Raise(value.Obj(c.vm.h.InternStr("attempt to yield from outside a coroutine")))
	}
	if c.th.CCallDepth() > 0 {
		return closure.Raise(value.Obj(c.vm.h.InternStr("attempt to yield across a C-call boundary")))
	}
	return closure.NativeResult{IsYield: true, Yielded: values}
}

// Call implements baselib re-entry (pcall/xpcall, table.sort comparators,
// ...). protected=true delegates to callProtected, which already brackets
// the call with EnterCCall/LeaveCCall; the unprotected path brackets it
// here instead, since callUnprotected is also used for plain metamethod
// dispatch, which is not itself a yield-blocking C-call boundary.
func (c *nativeCtx) Call(fn value.Value, args []value.Value, nresults int, protected bool) (results []value.Value, errVal value.Value, errored bool) {
	if protected {
		results, ok, ev := c.vm.callProtected(c.th, fn, args, nresults, c.startDepth)
		return results, ev, !ok
	}
	c.th.EnterCCall()
	defer c.th.LeaveCCall()
	results, disrupted, bubble := c.vm.callUnprotected(c.th, fn, args, nresults, c.startDepth)
	if disrupted {
		if bubble != nil && bubble.Outcome == thread.OutcomeErrored {
			return nil, bubble.Err, true
		}
		return nil, value.Nil, true
	}
	return results, value.Nil, false
}

func (c *nativeCtx) CoroutineCreate(fn value.Value) value.Value {
	return value.Obj(c.vm.sched.Create(fn))
}

func (c *nativeCtx) CoroutineResume(co value.Value, args []value.Value) (ok bool, results []value.Value) {
	target, isThread := co.AsObject().(*thread.Thread)
	if !isThread {
		return false, []value.Value{value.Obj(c.vm.h.InternStr("cannot resume a non-thread value"))}
	}
	return c.vm.sched.Resume(c.th, target, args)
}

func (c *nativeCtx) CoroutineStatus(co value.Value) (status string, ok bool) {
	target, isThread := co.AsObject().(*thread.Thread)
	if !isThread {
		return "", false
	}
	return c.vm.sched.ThreadStatus(target), true
}

func (c *nativeCtx) CoroutineWrap(fn value.Value) value.Value {
	return c.vm.sched.Wrap(fn)
}

func (c *nativeCtx) CoroutineClose(co value.Value) (ok bool, errVal value.Value) {
	target, isThread := co.AsObject().(*thread.Thread)
	if !isThread {
		return false, value.Obj(c.vm.h.InternStr("cannot close a non-thread value"))
	}
	return c.vm.sched.Close(target)
}

func (c *nativeCtx) CoroutineRunning() (co value.Value, isMain bool) {
	cur, main := c.vm.sched.Running()
	return value.Obj(cur), main
}

func (c *nativeCtx) CollectGarbage(opt string, arg int) value.Value {
	return c.vm.collectGarbage(opt, arg)
}
