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

// maxCallChain bounds __call metamethod chaining (§4.7), mirroring
// LUAI_MAXCCALLS-style nesting guards in the reference implementation.
const maxCallChain = 100

// pushCall resolves fnVal to a callable (chasing __call) and installs its
// activation: a new Frame for a Lua closure, or an immediate synchronous
// dispatch for a native closure. Returns non-nil only to signal that Run
// must stop (the call raised past every protected boundary, or yielded).
func (vm *Interpreter) pushCall(th *thread.Thread, fnVal value.Value, args []value.Value, retSlot, nresults int, isTail, protected bool, startDepth int) *thread.ExecResult {
	for i := 0; i < maxCallChain; i++ {
		if fnVal.Kind() == value.KindObject {
			switch fn := fnVal.AsObject().(type) {
			case *closure.Closure:
				vm.pushLuaFrame(th, fn, args, retSlot, nresults, isTail, protected)
				return nil
			case *closure.NativeClosure:
				return vm.invokeNative(th, fn, args, retSlot, nresults, startDepth)
			}
		}
		mfn, ok := vm.reg.Lookup(fnVal, value.EventCall)
		if !ok {
			return vm.raise(th, vm.errorValue(th, "attempt to call a "+fnVal.TypeName()+" value"), startDepth)
		}
		next := make([]value.Value, len(args)+1)
		next[0] = fnVal
		copy(next[1:], args)
		args = next
		fnVal = mfn
	}
	return vm.raise(th, vm.errorValue(th, "'__call' chain too long; possible loop"), startDepth)
}

func (vm *Interpreter) pushLuaFrame(th *thread.Thread, c *closure.Closure, args []value.Value, retSlot, nresults int, isTail, protected bool) {
	proto := c.Proto
	base := th.Top()
	need := base + proto.MaxStackSize
	if need < base+proto.NumParams {
		need = base + proto.NumParams
	}
	th.SetTop(need)
	for i := 0; i < proto.NumParams; i++ {
		if i < len(args) {
			th.Set(base+i, args[i])
		} else {
			th.Set(base+i, value.Nil)
		}
	}
	var varargs []value.Value
	if proto.IsVararg && len(args) > proto.NumParams {
		varargs = append([]value.Value(nil), args[proto.NumParams:]...)
	}
	f := &thread.Frame{
		Closure: c, Base: base, PC: 0,
		NResults: nresults, RetSlot: retSlot,
		IsTail: isTail, Protected: protected,
		Varargs: varargs,
	}
	th.PushFrame(f)
	vm.fireCallHook(th, f)
}

// invokeNative runs a native closure synchronously against a fresh
// NativeContext. A yield produced here suspends the whole Run() call
// transparently: the caller's frame PC is already past its CALL
// instruction, and PrepareYield records where the eventual resume's
// arguments should land (§4.8 "Yield contract").
func (vm *Interpreter) invokeNative(th *thread.Thread, fn *closure.NativeClosure, args []value.Value, retSlot, nresults, startDepth int) *thread.ExecResult {
	ctx := &nativeCtx{vm: vm, th: th, args: args, nresults: nresults, startDepth: startDepth, upvalues: fn.Upvalues}
	res := fn.Fn(ctx)
	switch {
	case res.IsYield:
		th.PrepareYield(retSlot, nresults)
		return &thread.ExecResult{Outcome: thread.OutcomeYielded, Values: res.Yielded}
	case res.IsError:
		return vm.raise(th, res.Err, startDepth)
	default:
		out := ctx.results
		want := nresults
		if want < 0 {
			want = len(out)
			th.SetTop(retSlot + want)
		}
		for i := 0; i < want; i++ {
			if i < len(out) {
				th.Set(retSlot+i, out[i])
			} else {
				th.Set(retSlot+i, value.Nil)
			}
		}
		return nil
	}
}

// doReturn pops th's innermost frame, closes its to-be-closed variables and
// open upvalues, and either completes this Run() invocation (when the
// popped frame was the one active when Run began) or deposits results into
// the caller's registers and lets the flat dispatch loop continue.
func (vm *Interpreter) doReturn(th *thread.Thread, results []value.Value, startDepth int) *thread.ExecResult {
	if th.Depth() == 0 {
		return &thread.ExecResult{Outcome: thread.OutcomeCompleted, Values: results}
	}
	f := th.PopFrame()
	vm.fireReturnHook(th, f)
	if bubble := vm.closeFrame(th, f, startDepth); bubble != nil {
		return bubble
	}
	if th.Depth() <= startDepth {
		return &thread.ExecResult{Outcome: thread.OutcomeCompleted, Values: results}
	}
	want := f.NResults
	if want < 0 {
		want = len(results)
		th.SetTop(f.RetSlot + want)
	}
	for i := 0; i < want; i++ {
		if i < len(results) {
			th.Set(f.RetSlot+i, results[i])
		} else {
			th.Set(f.RetSlot+i, value.Nil)
		}
	}
	return nil
}

// closeFrame runs __close on f's to-be-closed locals in reverse
// declaration order (§4.4, §6.2 "CLOSE"), then closes its open upvalues.
// A __close handler that itself errors escapes as a hard, unprotected
// error for this Run() call rather than being caught by an enclosing
// pcall — the interleaving of error-during-unwind with the protected-call
// chain is intentionally out of scope; see DESIGN.md.
func (vm *Interpreter) closeFrame(th *thread.Thread, f *thread.Frame, startDepth int) *thread.ExecResult {
	for i := len(f.TBC) - 1; i >= 0; i-- {
		v := th.Get(f.Base + f.TBC[i])
		if v.IsNil() || (v.Kind() == value.KindBoolean && !v.AsBool()) {
			continue
		}
		mfn, ok := vm.reg.Lookup(v, value.EventClose)
		if !ok {
			continue
		}
		if _, ok, errVal := vm.callProtected(th, mfn, []value.Value{v, value.Nil}, 0, startDepth); !ok {
			return &thread.ExecResult{Outcome: thread.OutcomeErrored, Err: errVal}
		}
	}
	th.CloseUpvalues(f.Base)
	return nil
}

// raise implements error propagation (§4.7 "errors unwind to the nearest
// protected boundary"): pop frames until a Protected one absorbs it
// (recording the error on the thread for callProtected to collect) or the
// whole Run() call's own baseline is reached, in which case the error
// becomes this Run()'s Errored outcome.
func (vm *Interpreter) raise(th *thread.Thread, errVal value.Value, startDepth int) *thread.ExecResult {
	for th.Depth() > startDepth {
		f := th.PopFrame()
		if f.Closure != nil {
			th.CloseUpvalues(f.Base)
		}
		if f.Protected {
			th.SetError(errVal)
			return nil
		}
	}
	return &thread.ExecResult{Outcome: thread.OutcomeErrored, Err: errVal}
}

// callProtected re-enters the interpreter to call fn(args...), catching any
// error raised anywhere within (including through nested pcalls, Lua
// closures, and metamethods) and reporting it instead of propagating past
// this point. Used directly by the pcall/xpcall built-ins.
func (vm *Interpreter) callProtected(th *thread.Thread, fn value.Value, args []value.Value, nresults, startDepth int) (results []value.Value, ok bool, errVal value.Value) {
	th.EnterCCall()
	defer th.LeaveCCall()
	depth := th.Depth()
	retBase := th.Top()
	th.SetError(value.Nil)
	if bubble := vm.pushCall(th, fn, args, retBase, nresults, false, true, startDepth); bubble != nil {
		if bubble.Outcome == thread.OutcomeErrored {
			return nil, false, bubble.Err
		}
		return nil, true, value.Nil
	}
	for th.Depth() > depth {
		if res := vm.stepOne(th, startDepth); res != nil {
			if res.Outcome == thread.OutcomeErrored {
				return nil, false, res.Err
			}
			if res.Outcome == thread.OutcomeCompleted && th.Depth() == depth {
				// The call's own frame returned at the Run baseline, so
				// doReturn handed its results back here instead of
				// storing them at retBase.
				return res.Values, true, value.Nil
			}
			break
		}
	}
	if ev := th.Error(); !ev.IsNil() {
		th.SetError(value.Nil)
		return nil, false, ev
	}
	if th.Depth() != depth {
		// Absorbed by some other protected boundary further down the stack.
		return nil, false, value.Nil
	}
	top := th.Top()
	n := top - retBase
	if n < 0 {
		n = 0
	}
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		out[i] = th.Get(retBase + i)
	}
	return out, true, value.Nil
}

// callUnprotected re-enters the interpreter for an internal, non-pcall
// re-entry point (a metamethod, a generic-for iterator call): errors and
// yields are not caught here, they simply propagate. The caller must
// forward a non-nil bubble verbatim and, on disrupted==true with a nil
// bubble, return nil itself (the disruption was already absorbed by some
// enclosing protected frame, and the dispatch loop should just continue
// from whatever frame now sits on top).
func (vm *Interpreter) callUnprotected(th *thread.Thread, fn value.Value, args []value.Value, nresults, startDepth int) (results []value.Value, disrupted bool, bubble *thread.ExecResult) {
	depth := th.Depth()
	retBase := th.Top()
	if res := vm.pushCall(th, fn, args, retBase, nresults, false, false, startDepth); res != nil {
		return nil, true, res
	}
	for th.Depth() > depth {
		res := vm.stepOne(th, startDepth)
		if res != nil {
			return nil, true, res
		}
		if th.Depth() < depth {
			// Unwound past our own starting point: some enclosing protected
			// frame absorbed the error.
			return nil, true, nil
		}
	}
	top := th.Top()
	n := top - retBase
	if n < 0 {
		n = 0
	}
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		out[i] = th.Get(retBase + i)
	}
	return out, false, nil
}

func (vm *Interpreter) errorValue(th *thread.Thread, msg string) value.Value {
	return value.Obj(vm.h.InternStr(msg))
}
