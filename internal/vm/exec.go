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
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/thread"
	"github.com/probeum/lucore/internal/value"
)

func getReg(f *thread.Frame, th *thread.Thread, i int) value.Value { return th.Get(f.Base + i) }
func setReg(f *thread.Frame, th *thread.Thread, i int, v value.Value) { th.Set(f.Base+i, v) }

// rk resolves an RK operand of a table, arithmetic or comparison
// instruction: a constant pool entry when isK, else a register relative to
// f.Base (§6.2's RK(x) convention).
func rk(f *thread.Frame, th *thread.Thread, operand int, isK bool) value.Value {
	if isK {
		return f.Closure.Proto.Constants[operand]
	}
	return getReg(f, th, operand)
}

// exec executes one already-fetched instruction against f, the innermost
// frame of th. A non-nil return stops Run (completion, yield, or an
// unprotected error); nil means keep dispatching.
func (vm *Interpreter) exec(th *thread.Thread, f *thread.Frame, in closure.Instruction, startDepth int) *thread.ExecResult {
	switch in.Op {
	case closure.OpMove:
		setReg(f, th, in.A, getReg(f, th, in.B))

	case closure.OpLoadK:
		setReg(f, th, in.A, f.Closure.Proto.Constants[in.B])

	case closure.OpLoadBool:
		setReg(f, th, in.A, value.Bool(in.B != 0))
		if in.C != 0 {
			f.PC++
		}

	case closure.OpLoadNil:
		for i := 0; i <= in.B; i++ {
			setReg(f, th, in.A+i, value.Nil)
		}

	case closure.OpGetUpval:
		setReg(f, th, in.A, f.Closure.Upvalues[in.B].Get())

	case closure.OpSetUpval:
		f.Closure.Upvalues[in.B].Set(vm.h, getReg(f, th, in.A))

	case closure.OpGetTabUp:
		v, disrupted, bubble := vm.index(th, f.Closure.Upvalues[in.B].Get(), rk(f, th, in.C, in.IsKC), startDepth)
		if disrupted {
			return bubble
		}
		setReg(f, th, in.A, v)

	case closure.OpSetTabUp:
		if bubble := vm.newindex(th, f.Closure.Upvalues[in.A].Get(), rk(f, th, in.B, in.IsKB), rk(f, th, in.C, in.IsKC), startDepth); bubble != nil {
			return bubble
		}

	case closure.OpGetTable:
		v, disrupted, bubble := vm.index(th, getReg(f, th, in.B), rk(f, th, in.C, in.IsKC), startDepth)
		if disrupted {
			return bubble
		}
		setReg(f, th, in.A, v)

	case closure.OpSetTable:
		if bubble := vm.newindex(th, getReg(f, th, in.A), rk(f, th, in.B, in.IsKB), rk(f, th, in.C, in.IsKC), startDepth); bubble != nil {
			return bubble
		}

	case closure.OpNewTable:
		setReg(f, th, in.A, value.Obj(table.New(vm.h)))

	case closure.OpSelf:
		obj := getReg(f, th, in.B)
		setReg(f, th, in.A+1, obj)
		v, disrupted, bubble := vm.index(th, obj, rk(f, th, in.C, in.IsKC), startDepth)
		if disrupted {
			return bubble
		}
		setReg(f, th, in.A, v)

	case closure.OpAdd, closure.OpSub, closure.OpMul, closure.OpDiv, closure.OpMod,
		closure.OpPow, closure.OpIDiv, closure.OpBAnd, closure.OpBOr, closure.OpBXor,
		closure.OpShl, closure.OpShr:
		ev := arithEvent(in.Op)
		v, disrupted, bubble := vm.arith(th, ev, rk(f, th, in.B, in.IsKB), rk(f, th, in.C, in.IsKC), startDepth)
		if disrupted {
			return bubble
		}
		setReg(f, th, in.A, v)

	case closure.OpUnm:
		v, disrupted, bubble := vm.arith(th, value.EventUnm, getReg(f, th, in.B), value.Int(0), startDepth)
		if disrupted {
			return bubble
		}
		setReg(f, th, in.A, v)

	case closure.OpBNot:
		v, disrupted, bubble := vm.arith(th, value.EventBNot, getReg(f, th, in.B), value.Int(0), startDepth)
		if disrupted {
			return bubble
		}
		setReg(f, th, in.A, v)

	case closure.OpLen:
		v, disrupted, bubble := vm.length(th, getReg(f, th, in.B), startDepth)
		if disrupted {
			return bubble
		}
		setReg(f, th, in.A, v)

	case closure.OpConcat:
		acc := getReg(f, th, in.C)
		for i := in.C - 1; i >= in.B; i-- {
			v, disrupted, bubble := vm.concatPair(th, getReg(f, th, i), acc, startDepth)
			if disrupted {
				return bubble
			}
			acc = v
		}
		setReg(f, th, in.A, acc)

	case closure.OpJmp:
		f.PC += int(in.SBx)

	case closure.OpEq:
		eq, disrupted, bubble := vm.equals(th, rk(f, th, in.B, in.IsKB), rk(f, th, in.C, in.IsKC), startDepth)
		if disrupted {
			return bubble
		}
		if eq != (in.A != 0) {
			f.PC++
		}

	case closure.OpLt:
		lt, disrupted, bubble := vm.compareLess(th, rk(f, th, in.B, in.IsKB), rk(f, th, in.C, in.IsKC), startDepth)
		if disrupted {
			return bubble
		}
		if lt != (in.A != 0) {
			f.PC++
		}

	case closure.OpLe:
		le, disrupted, bubble := vm.compareLessEq(th, rk(f, th, in.B, in.IsKB), rk(f, th, in.C, in.IsKC), startDepth)
		if disrupted {
			return bubble
		}
		if le != (in.A != 0) {
			f.PC++
		}

	case closure.OpTest:
		if getReg(f, th, in.A).IsTruthy() != (in.C != 0) {
			f.PC++
		}

	case closure.OpTestSet:
		v := getReg(f, th, in.B)
		if v.IsTruthy() == (in.C != 0) {
			setReg(f, th, in.A, v)
		} else {
			f.PC++
		}

	case closure.OpCall:
		fn := getReg(f, th, in.A)
		args := vm.gatherArgs(th, f, in.A, in.B)
		nresults := in.C - 1
		if in.C == 0 {
			nresults = -1
		}
		return vm.pushCall(th, fn, args, f.Base+in.A, nresults, false, false, startDepth)

	case closure.OpTailCall:
		fn := getReg(f, th, in.A)
		args := vm.gatherArgs(th, f, in.A, in.B)
		if bubble := vm.closeFrame(th, f, startDepth); bubble != nil {
			return bubble
		}
		retSlot, nresults, protected := f.RetSlot, f.NResults, f.Protected
		th.PopFrame()
		vm.fireReturnHook(th, f)
		// Reclaim the outgoing frame's register window (§4.5 "new base
		// coincides with the current frame's base") instead of letting the
		// tail-called frame's base land past it — a tail call must not grow
		// the stack per call the way an ordinary nested call does.
		th.SetTop(f.Base)
		return vm.pushCall(th, fn, args, retSlot, nresults, true, protected, startDepth)

	case closure.OpReturn:
		vals := vm.gatherReturn(th, f, in.A, in.B)
		return vm.doReturn(th, vals, startDepth)

	case closure.OpVararg:
		n := in.B - 1
		if n < 0 {
			n = len(f.Varargs)
			th.SetTop(f.Base + in.A + n)
		}
		for i := 0; i < n; i++ {
			if i < len(f.Varargs) {
				setReg(f, th, in.A+i, f.Varargs[i])
			} else {
				setReg(f, th, in.A+i, value.Nil)
			}
		}

	case closure.OpSetList:
		n := in.B
		if n == 0 {
			n = th.Top() - (f.Base + in.A + 1)
		}
		vs := make([]value.Value, n)
		for i := 0; i < n; i++ {
			vs[i] = getReg(f, th, in.A+1+i)
		}
		if t, ok := getReg(f, th, in.A).AsObject().(*table.Table); ok {
			t.SetList(int(in.SBx), vs)
		}

	case closure.OpClosure:
		child := f.Closure.Proto.Protos[in.B]
		nc := closure.NewClosure(vm.h, child)
		for i, desc := range child.Upvalues {
			switch desc.Kind {
			case closure.CaptureStack:
				nc.Upvalues[i] = th.FindOrCreateUpvalue(f.Base + desc.Index)
			case closure.CaptureUpval:
				nc.Upvalues[i] = f.Closure.Upvalues[desc.Index]
			}
		}
		setReg(f, th, in.A, value.Obj(nc))

	case closure.OpClose:
		f.TBC = closeTBCAbove(f.TBC, in.A)
		th.CloseUpvalues(f.Base + in.A)

	case closure.OpForPrep:
		if bubble := vm.forPrep(th, f, in, startDepth); bubble != nil {
			return bubble
		}

	case closure.OpForLoop:
		vm.forLoop(th, f, in)

	case closure.OpTForCall:
		iter := getReg(f, th, in.A)
		state := getReg(f, th, in.A+1)
		ctrl := getReg(f, th, in.A+2)
		results, disrupted, bubble := vm.callUnprotected(th, iter, []value.Value{state, ctrl}, in.C, startDepth)
		if disrupted {
			return bubble
		}
		for i := 0; i < in.C; i++ {
			if i < len(results) {
				setReg(f, th, in.A+3+i, results[i])
			} else {
				setReg(f, th, in.A+3+i, value.Nil)
			}
		}

	case closure.OpTForLoop:
		if !getReg(f, th, in.A+1).IsNil() {
			setReg(f, th, in.A, getReg(f, th, in.A+1))
			f.PC += int(in.SBx)
		}
	}
	return nil
}

// gatherArgs reads count-1 values starting at reg base+1 ("B-1" args in
// §6.2's CALL/RETURN encoding); count==0 means "up to the current top".
func (vm *Interpreter) gatherArgs(th *thread.Thread, f *thread.Frame, base, count int) []value.Value {
	n := count - 1
	if count == 0 {
		n = th.Top() - (f.Base + base + 1)
	}
	if n <= 0 {
		return nil
	}
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		out[i] = getReg(f, th, base+1+i)
	}
	return out
}

// gatherReturn reads the RETURN instruction's result list: registers
// base..base+count-2 (count-1 values), or "everything up to the current
// top" when count is 0.
func (vm *Interpreter) gatherReturn(th *thread.Thread, f *thread.Frame, base, count int) []value.Value {
	n := count - 1
	if count == 0 {
		n = th.Top() - (f.Base + base)
	}
	if n <= 0 {
		return nil
	}
	out := make([]value.Value, n)
	for i := 0; i < n; i++ {
		out[i] = getReg(f, th, base+i)
	}
	return out
}

func arithEvent(op closure.Opcode) value.Event {
	switch op {
	case closure.OpAdd:
		return value.EventAdd
	case closure.OpSub:
		return value.EventSub
	case closure.OpMul:
		return value.EventMul
	case closure.OpDiv:
		return value.EventDiv
	case closure.OpMod:
		return value.EventMod
	case closure.OpPow:
		return value.EventPow
	case closure.OpIDiv:
		return value.EventIDiv
	case closure.OpBAnd:
		return value.EventBAnd
	case closure.OpBOr:
		return value.EventBOr
	case closure.OpBXor:
		return value.EventBXor
	case closure.OpShl:
		return value.EventShl
	case closure.OpShr:
		return value.EventShr
	}
	return value.EventAdd
}

func closeTBCAbove(tbc []int, threshold int) []int {
	out := tbc[:0:0]
	for _, off := range tbc {
		if off < threshold {
			out = append(out, off)
		}
	}
	return out
}

// forPrep implements FORPREP (§6.2): validate and normalize the numeric
// for's init/limit/step, then jump forward to the loop's FORLOOP test.
func (vm *Interpreter) forPrep(th *thread.Thread, f *thread.Frame, in closure.Instruction, startDepth int) *thread.ExecResult {
	init, ok1 := value.ToNumber(getReg(f, th, in.A))
	limit, ok2 := value.ToNumber(getReg(f, th, in.A+1))
	step, ok3 := value.ToNumber(getReg(f, th, in.A+2))
	if !ok1 || !ok2 || !ok3 {
		return vm.raise(th, vm.errorValue(th, "'for' initial value must be a number"), startDepth)
	}
	stepZero := (step.Kind() == value.KindInteger && step.AsInt() == 0) ||
		(step.Kind() == value.KindFloat && step.AsFloat() == 0)
	if stepZero {
		return vm.raise(th, vm.errorValue(th, "'for' step is zero"), startDepth)
	}
	back := value.Arith(value.EventSub, init, step)
	setReg(f, th, in.A, back.Value)
	setReg(f, th, in.A+1, limit)
	setReg(f, th, in.A+2, step)
	f.PC += int(in.SBx)
	return nil
}

// forLoop implements FORLOOP (§6.2): advance by step, test against limit,
// and loop back while still in range.
func (vm *Interpreter) forLoop(th *thread.Thread, f *thread.Frame, in closure.Instruction) {
	step := getReg(f, th, in.A+2)
	next := value.Arith(value.EventAdd, getReg(f, th, in.A), step).Value
	limit := getReg(f, th, in.A+1)
	setReg(f, th, in.A, next)
	negative := (step.Kind() == value.KindInteger && step.AsInt() < 0) ||
		(step.Kind() == value.KindFloat && step.AsFloat() < 0)
	var inRange bool
	if negative {
		_, limLessEq, _ := value.Compare(limit, next)
		inRange = limLessEq
	} else {
		_, nextLessEq, _ := value.Compare(next, limit)
		inRange = nextLessEq
	}
	if inRange {
		setReg(f, th, in.A+3, next)
		f.PC += int(in.SBx)
	}
}
