// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/probeum/lucore/internal/closure"
	"github.com/probeum/lucore/internal/thread"
	"github.com/probeum/lucore/internal/value"
)

const lineCacheSize = 4096

type lineKey struct {
	proto *closure.Prototype
	pc    int
}

// debugInfo holds the vm-level debug-hook-firing state (§9 Open Question
// 1): a bounded PC->source-line cache shared by every thread, plus the
// per-frame "last line reported" bookkeeping a HookLine event needs to
// avoid firing twice for the same source line.
type debugInfo struct {
	lines    *lru.Cache
	lastLine map[*thread.Frame]int
}

func newDebugInfo() *debugInfo {
	c, _ := lru.New(lineCacheSize)
	return &debugInfo{lines: c, lastLine: make(map[*thread.Frame]int)}
}

func (d *debugInfo) lineOf(p *closure.Prototype, pc int) int {
	key := lineKey{p, pc}
	if v, ok := d.lines.Get(key); ok {
		return v.(int)
	}
	line := int(p.Line(pc))
	d.lines.Add(key, line)
	return line
}

func (d *debugInfo) forget(f *thread.Frame) { delete(d.lastLine, f) }

// fireLineHook implements the HookLine/HookCount firing points (§9 Open
// Question 1): a count hook fires on every instruction's countdown
// reaching zero; a line hook fires whenever the executing line changes.
func (vm *Interpreter) fireLineHook(th *thread.Thread, f *thread.Frame, instr closure.Instruction) {
	hookFn, mask, _ := th.Hook()
	if hookFn.IsNil() || mask == 0 {
		return
	}
	if th.TickHookCount() {
		vm.callHook(th, hookFn, "count", -1)
	}
	if mask&uint8(thread.HookLine) == 0 {
		return
	}
	line := vm.dbg.lineOf(f.Closure.Proto, f.PC)
	last, seen := vm.dbg.lastLine[f]
	if seen && last == line {
		return
	}
	vm.dbg.lastLine[f] = line
	vm.callHook(th, hookFn, "line", line)
}

// fireCallHook fires the HookCall event just after a Lua frame is pushed.
func (vm *Interpreter) fireCallHook(th *thread.Thread, f *thread.Frame) {
	hookFn, mask, _ := th.Hook()
	if hookFn.IsNil() || mask&uint8(thread.HookCall) == 0 {
		return
	}
	vm.callHook(th, hookFn, "call", -1)
}

// fireReturnHook fires the HookReturn event just before a Lua frame is
// torn down, and drops its line-tracking entry.
func (vm *Interpreter) fireReturnHook(th *thread.Thread, f *thread.Frame) {
	hookFn, mask, _ := th.Hook()
	vm.dbg.forget(f)
	if hookFn.IsNil() || mask&uint8(thread.HookReturn) == 0 {
		return
	}
	vm.callHook(th, hookFn, "return", -1)
}

// callHook invokes the installed hook function with (event, line) as a
// plain unprotected re-entry; a hook that errors propagates exactly like
// any other runtime error (§9: hook policy beyond firing points is out of
// scope, so no special isolation is applied here).
func (vm *Interpreter) callHook(th *thread.Thread, hookFn value.Value, event string, line int) {
	args := []value.Value{value.Obj(vm.h.InternStr(event))}
	if line >= 0 {
		args = append(args, value.Int(int64(line)))
	}
	depth := th.Depth()
	_, _, _ = vm.callUnprotected(th, hookFn, args, 0, depth)
}
