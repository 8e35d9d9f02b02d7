// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package native implements the minimal baselib (§9 "SUPPLEMENTED
// FEATURES"): the built-in functions a complete Lua 5.4 runtime core needs
// to exercise its own native-function protocol (pcall/xpcall, coroutine.*,
// metatable access) even though a full standard library is out of scope.
// Most functions here are registered under a stable closure.NativeTag
// identity declared alongside the call ABI in package closure; os.time,
// os.clock, io.write and the iterator ipairs returns carry closure.TagNone.
package native

import (
	"fmt"
	"os"
	"time"

	"github.com/probeum/lucore/internal/closure"
	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/meta"
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/value"
)

// Builtins owns the heap/registry handles the base library's built-ins need
// beyond what a closure.NativeContext already exposes (interning error
// strings, consulting __tostring/__pairs, building the library tables).
type Builtins struct {
	h   *heap.Heap
	reg *meta.Registry
}

// New creates the base library bound to h/reg.
func New(h *heap.Heap, reg *meta.Registry) *Builtins {
	return &Builtins{h: h, reg: reg}
}

func (b *Builtins) str(s string) value.Value { return value.Obj(b.h.InternStr(s)) }

func (b *Builtins) errorf(format string, args ...interface{}) value.Value {
	return b.str(fmt.Sprintf(format, args...))
}

// register wires one NativeFunc under its tag into dst.
func (b *Builtins) register(dst *table.Table, name string, tag closure.NativeTag, fn closure.NativeFunc) {
	nc := closure.NewNativeClosure(b.h, tag, name, fn)
	_ = dst.Set(b.str(name), value.Obj(nc))
}

// Install populates globals with the base library plus the minimal
// os/io tables spec.md's Non-goals leave room for (§9 "os.time/os.clock/
// minimal io.write"), and returns globals for convenience chaining.
func (b *Builtins) Install(globals *table.Table) *table.Table {
	b.register(globals, "print", closure.TagPrint, b.print)
	b.register(globals, "type", closure.TagType, b.luaType)
	b.register(globals, "tostring", closure.TagToString, b.toString)
	b.register(globals, "tonumber", closure.TagToNumber, b.toNumber)
	b.register(globals, "pcall", closure.TagPCall, b.pcall)
	b.register(globals, "xpcall", closure.TagXPCall, b.xpcall)
	b.register(globals, "assert", closure.TagAssert, b.assert)
	b.register(globals, "error", closure.TagError, b.errorFn)
	b.register(globals, "rawget", closure.TagRawGet, b.rawget)
	b.register(globals, "rawset", closure.TagRawSet, b.rawset)
	b.register(globals, "rawequal", closure.TagRawEqual, b.rawequal)
	b.register(globals, "rawlen", closure.TagRawLen, b.rawlen)
	b.register(globals, "setmetatable", closure.TagSetMetatable, b.setmetatable)
	b.register(globals, "getmetatable", closure.TagGetMetatable, b.getmetatable)
	b.register(globals, "next", closure.TagNext, b.next)
	b.register(globals, "pairs", closure.TagPairs, b.pairs)
	b.register(globals, "ipairs", closure.TagIPairs, b.ipairs)
	b.register(globals, "select", closure.TagSelect, b.select_)
	b.register(globals, "collectgarbage", closure.TagCollectGarbage, b.collectgarbage)

	coTbl := table.New(b.h)
	b.register(coTbl, "create", closure.TagCoroutineCreate, b.coroutineCreate)
	b.register(coTbl, "resume", closure.TagCoroutineResume, b.coroutineResume)
	b.register(coTbl, "yield", closure.TagCoroutineYield, b.coroutineYield)
	b.register(coTbl, "status", closure.TagCoroutineStatus, b.coroutineStatus)
	b.register(coTbl, "wrap", closure.TagCoroutineWrap, b.coroutineWrap)
	b.register(coTbl, "close", closure.TagCoroutineClose, b.coroutineClose)
	b.register(coTbl, "running", closure.TagCoroutineRunning, b.coroutineRunning)
	b.register(coTbl, "isyieldable", closure.TagCoroutineIsYieldable, b.coroutineIsYieldable)
	_ = globals.Set(b.str("coroutine"), value.Obj(coTbl))

	osTbl := table.New(b.h)
	b.register(osTbl, "time", closure.TagNone, b.osTime)
	b.register(osTbl, "clock", closure.TagNone, b.osClock)
	_ = globals.Set(b.str("os"), value.Obj(osTbl))

	ioTbl := table.New(b.h)
	b.register(ioTbl, "write", closure.TagNone, b.ioWrite)
	_ = globals.Set(b.str("io"), value.Obj(ioTbl))

	_ = globals.Set(b.str("package"), value.Obj(b.buildPackageTable()))

	_ = globals.Set(b.str("_G"), value.Obj(globals))
	_ = globals.Set(b.str("_VERSION"), b.str("Lua 5.4"))
	return globals
}

// buildPackageTable satisfies §6.4's "must exist after bootstrap" list for
// the module system: lucore has no compiler front end or loader to back a
// real require(), so path/cpath are the reference defaults, loaded/preload
// are empty tables a host can still populate by hand, and searchers is an
// empty sequence rather than the usual four-entry one (there is nothing to
// search: no filesystem loader, no C loader, no preload-only fallback).
func (b *Builtins) buildPackageTable() *table.Table {
	pkg := table.New(b.h)
	_ = pkg.Set(b.str("path"), b.str("./?.lua;./?/init.lua"))
	_ = pkg.Set(b.str("cpath"), b.str(""))
	_ = pkg.Set(b.str("loaded"), value.Obj(table.New(b.h)))
	_ = pkg.Set(b.str("preload"), value.Obj(table.New(b.h)))
	_ = pkg.Set(b.str("searchers"), value.Obj(table.New(b.h)))
	return pkg
}

// print implements the base library's print(...): tab-separated tostring
// of each argument, newline-terminated, written to stdout.
func (b *Builtins) print(ctx closure.NativeContext) closure.NativeResult {
	for i := 0; i < ctx.NArgs(); i++ {
		if i > 0 {
			fmt.Print("\t")
		}
		s, errVal, errored := b.tostringValue(ctx, ctx.Arg(i))
		if errored {
			return closure.Raise(errVal)
		}
		fmt.Print(s)
	}
	fmt.Println()
	return closure.Ok
}

func (b *Builtins) luaType(ctx closure.NativeContext) closure.NativeResult {
	ctx.Push(b.str(ctx.Arg(0).TypeName()))
	return closure.Ok
}

// tostringValue implements tostring()'s full protocol (§4.7): consult
// __tostring first, falling back to value.ToStringSimple.
func (b *Builtins) tostringValue(ctx closure.NativeContext, v value.Value) (s string, errVal value.Value, errored bool) {
	if fn, ok := b.reg.Lookup(v, value.EventToString); ok {
		results, ev, errored := ctx.Call(fn, []value.Value{v}, 1, true)
		if errored {
			return "", ev, true
		}
		if len(results) > 0 {
			return value.ToStringSimple(results[0]), value.Nil, false
		}
		return "", value.Nil, false
	}
	return value.ToStringSimple(v), value.Nil, false
}

func (b *Builtins) toString(ctx closure.NativeContext) closure.NativeResult {
	s, errVal, errored := b.tostringValue(ctx, ctx.Arg(0))
	if errored {
		return closure.Raise(errVal)
	}
	ctx.Push(b.str(s))
	return closure.Ok
}

func (b *Builtins) toNumber(ctx closure.NativeContext) closure.NativeResult {
	if ctx.NArgs() >= 2 {
		// Base-N string conversion form: tonumber(s, base).
		base, ok := value.ToInteger(ctx.Arg(1))
		if !ok {
			ctx.Push(value.Nil)
			return closure.Ok
		}
		s, ok := asString(ctx.Arg(0))
		if !ok {
			ctx.Push(value.Nil)
			return closure.Ok
		}
		n, err := parseInBase(s, int(base))
		if err != nil {
			ctx.Push(value.Nil)
			return closure.Ok
		}
		ctx.Push(value.Int(n))
		return closure.Ok
	}
	if n, ok := value.ToNumber(ctx.Arg(0)); ok {
		ctx.Push(n)
		return closure.Ok
	}
	ctx.Push(value.Nil)
	return closure.Ok
}

func asString(v value.Value) (string, bool) {
	if v.Kind() != value.KindObject {
		return "", false
	}
	s, ok := v.AsObject().(value.StringSource)
	if !ok {
		return "", false
	}
	return string(s.Bytes()), true
}

func parseInBase(s string, base int) (int64, error) {
	if base < 2 || base > 36 {
		return 0, fmt.Errorf("base out of range")
	}
	var n int64
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("empty digits")
	}
	for _, c := range s {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'a' && c <= 'z':
			d = int64(c-'a') + 10
		case c >= 'A' && c <= 'Z':
			d = int64(c-'A') + 10
		default:
			return 0, fmt.Errorf("invalid digit %q", c)
		}
		if d >= int64(base) {
			return 0, fmt.Errorf("digit %q out of range for base %d", c, base)
		}
		n = n*int64(base) + d
	}
	if neg {
		n = -n
	}
	return n, nil
}

// pcall implements protected calls (§4.7): the called function's own
// errors are caught and reported as (false, err) rather than propagating.
func (b *Builtins) pcall(ctx closure.NativeContext) closure.NativeResult {
	if ctx.NArgs() == 0 {
		return closure.Raise(b.str("bad argument #1 to 'pcall' (value expected)"))
	}
	fn := ctx.Arg(0)
	args := make([]value.Value, 0, ctx.NArgs()-1)
	for i := 1; i < ctx.NArgs(); i++ {
		args = append(args, ctx.Arg(i))
	}
	results, errVal, errored := ctx.Call(fn, args, -1, true)
	if errored {
		ctx.Push(value.False)
		ctx.Push(errVal)
		return closure.Ok
	}
	ctx.Push(value.True)
	for _, r := range results {
		ctx.Push(r)
	}
	return closure.Ok
}

// xpcall implements xpcall(f, handler, ...): like pcall, but a caught error
// is passed through handler before being reported, matching the teacher's
// own "wrap the error before surfacing it" idiom for panics-turned-results.
func (b *Builtins) xpcall(ctx closure.NativeContext) closure.NativeResult {
	if ctx.NArgs() < 2 {
		return closure.Raise(b.str("bad argument #2 to 'xpcall' (value expected)"))
	}
	fn := ctx.Arg(0)
	handler := ctx.Arg(1)
	args := make([]value.Value, 0, ctx.NArgs()-2)
	for i := 2; i < ctx.NArgs(); i++ {
		args = append(args, ctx.Arg(i))
	}
	results, errVal, errored := ctx.Call(fn, args, -1, true)
	if errored {
		handled, herr, hErrored := ctx.Call(handler, []value.Value{errVal}, -1, true)
		ctx.Push(value.False)
		if hErrored {
			ctx.Push(herr)
		} else if len(handled) > 0 {
			ctx.Push(handled[0])
		} else {
			ctx.Push(value.Nil)
		}
		return closure.Ok
	}
	ctx.Push(value.True)
	for _, r := range results {
		ctx.Push(r)
	}
	return closure.Ok
}

func (b *Builtins) assert(ctx closure.NativeContext) closure.NativeResult {
	if ctx.NArgs() == 0 || !ctx.Arg(0).IsTruthy() {
		if ctx.NArgs() >= 2 {
			return closure.Raise(ctx.Arg(1))
		}
		return closure.Raise(b.str("assertion failed!"))
	}
	for i := 0; i < ctx.NArgs(); i++ {
		ctx.Push(ctx.Arg(i))
	}
	return closure.Ok
}

// errorFn implements error(message, level): level is accepted for
// signature compatibility and ignored, without validation, since position
// information is not tracked by this runtime core.
func (b *Builtins) errorFn(ctx closure.NativeContext) closure.NativeResult {
	msg := ctx.Arg(0)
	if s, ok := asString(msg); ok {
		return closure.Raise(b.str(s))
	}
	return closure.Raise(msg)
}

func (b *Builtins) rawget(ctx closure.NativeContext) closure.NativeResult {
	t, ok := ctx.Arg(0).AsObject().(*table.Table)
	if !ok {
		return closure.Raise(b.str("bad argument #1 to 'rawget' (table expected)"))
	}
	ctx.Push(t.Get(ctx.Arg(1)))
	return closure.Ok
}

func (b *Builtins) rawset(ctx closure.NativeContext) closure.NativeResult {
	t, ok := ctx.Arg(0).AsObject().(*table.Table)
	if !ok {
		return closure.Raise(b.str("bad argument #1 to 'rawset' (table expected)"))
	}
	if err := t.Set(ctx.Arg(1), ctx.Arg(2)); err != nil {
		return closure.Raise(b.errorf("%s", err.Error()))
	}
	ctx.Push(ctx.Arg(0))
	return closure.Ok
}

func (b *Builtins) rawequal(ctx closure.NativeContext) closure.NativeResult {
	ctx.Push(value.Bool(value.RawEqual(ctx.Arg(0), ctx.Arg(1))))
	return closure.Ok
}

func (b *Builtins) rawlen(ctx closure.NativeContext) closure.NativeResult {
	v := ctx.Arg(0)
	if t, ok := v.AsObject().(*table.Table); ok {
		ctx.Push(value.Int(t.Length()))
		return closure.Ok
	}
	if s, ok := asString(v); ok {
		ctx.Push(value.Int(int64(len(s))))
		return closure.Ok
	}
	return closure.Raise(b.str("table or string expected"))
}

func (b *Builtins) setmetatable(ctx closure.NativeContext) closure.NativeResult {
	t, ok := ctx.Arg(0).AsObject().(*table.Table)
	if !ok {
		return closure.Raise(b.str("bad argument #1 to 'setmetatable' (table expected)"))
	}
	if !b.reg.CanSetMetatable(ctx.Arg(0)) {
		return closure.Raise(b.str("cannot change a protected metatable"))
	}
	mtVal := ctx.Arg(1)
	if mtVal.IsNil() {
		t.SetMetatable(nil)
		ctx.Push(ctx.Arg(0))
		return closure.Ok
	}
	mt, ok := mtVal.AsObject().(*table.Table)
	if !ok {
		return closure.Raise(b.str("bad argument #2 to 'setmetatable' (nil or table expected)"))
	}
	t.SetMetatable(mt)
	ctx.Push(ctx.Arg(0))
	return closure.Ok
}

func (b *Builtins) getmetatable(ctx closure.NativeContext) closure.NativeResult {
	ctx.Push(b.reg.GetMetatableField(ctx.Arg(0)))
	return closure.Ok
}

func (b *Builtins) next(ctx closure.NativeContext) closure.NativeResult {
	t, ok := ctx.Arg(0).AsObject().(*table.Table)
	if !ok {
		return closure.Raise(b.str("bad argument #1 to 'next' (table expected)"))
	}
	k := value.Nil
	if ctx.NArgs() >= 2 {
		k = ctx.Arg(1)
	}
	nk, nv, ok, err := t.Next(k)
	if err != nil {
		return closure.Raise(b.errorf("%s", err.Error()))
	}
	if !ok {
		ctx.Push(value.Nil)
		return closure.Ok
	}
	ctx.Push(nk)
	ctx.Push(nv)
	return closure.Ok
}

// pairs honors __pairs (§4.7) before falling back to next/table/nil.
func (b *Builtins) pairs(ctx closure.NativeContext) closure.NativeResult {
	v := ctx.Arg(0)
	if fn, ok := b.reg.Lookup(v, value.EventPairs); ok {
		results, errVal, errored := ctx.Call(fn, []value.Value{v}, 3, true)
		if errored {
			return closure.Raise(errVal)
		}
		for i := 0; i < 3; i++ {
			if i < len(results) {
				ctx.Push(results[i])
			} else {
				ctx.Push(value.Nil)
			}
		}
		return closure.Ok
	}
	if _, ok := v.AsObject().(*table.Table); !ok {
		return closure.Raise(b.str("bad argument #1 to 'pairs' (table expected)"))
	}
	nextFn := closure.NewNativeClosure(b.h, closure.TagNext, "next", b.next)
	ctx.Push(value.Obj(nextFn))
	ctx.Push(v)
	ctx.Push(value.Nil)
	return closure.Ok
}

// ipairs returns a stateless iterator over the 1-based integer sequence.
func (b *Builtins) ipairs(ctx closure.NativeContext) closure.NativeResult {
	v := ctx.Arg(0)
	iter := closure.NewNativeClosure(b.h, closure.TagNone, "ipairs.iterator", b.ipairsStep)
	ctx.Push(value.Obj(iter))
	ctx.Push(v)
	ctx.Push(value.Int(0))
	return closure.Ok
}

func (b *Builtins) ipairsStep(ctx closure.NativeContext) closure.NativeResult {
	t, ok := ctx.Arg(0).AsObject().(*table.Table)
	if !ok {
		return closure.Raise(b.str("bad argument #1 to 'ipairs iterator' (table expected)"))
	}
	i, _ := value.ToInteger(ctx.Arg(1))
	i++
	v := t.Get(value.Int(i))
	if v.IsNil() {
		ctx.Push(value.Nil)
		return closure.Ok
	}
	ctx.Push(value.Int(i))
	ctx.Push(v)
	return closure.Ok
}

// select_ implements select('#', ...) and select(n, ...); the trailing
// underscore avoids shadowing Go's select statement keyword.
func (b *Builtins) select_(ctx closure.NativeContext) closure.NativeResult {
	sel := ctx.Arg(0)
	rest := ctx.NArgs() - 1
	if s, ok := asString(sel); ok && s == "#" {
		ctx.Push(value.Int(int64(rest)))
		return closure.Ok
	}
	n, ok := value.ToInteger(sel)
	if !ok {
		return closure.Raise(b.str("bad argument #1 to 'select' (number expected)"))
	}
	if n < 0 {
		n = int64(rest) + n + 1
	}
	if n < 1 {
		return closure.Raise(b.str("bad argument #1 to 'select' (index out of range)"))
	}
	for i := n; int(i) <= rest; i++ {
		ctx.Push(ctx.Arg(int(i)))
	}
	return closure.Ok
}

func (b *Builtins) collectgarbage(ctx closure.NativeContext) closure.NativeResult {
	opt := "collect"
	if ctx.NArgs() > 0 {
		if s, ok := asString(ctx.Arg(0)); ok {
			opt = s
		}
	}
	arg := 0
	if ctx.NArgs() > 1 {
		if n, ok := value.ToInteger(ctx.Arg(1)); ok {
			arg = int(n)
		}
	}
	ctx.Push(ctx.CollectGarbage(opt, arg))
	return closure.Ok
}

func (b *Builtins) coroutineCreate(ctx closure.NativeContext) closure.NativeResult {
	if ctx.Arg(0).TypeName() != "function" {
		return closure.Raise(b.str("bad argument #1 to 'create' (function expected)"))
	}
	ctx.Push(ctx.CoroutineCreate(ctx.Arg(0)))
	return closure.Ok
}

func (b *Builtins) coroutineResume(ctx closure.NativeContext) closure.NativeResult {
	args := make([]value.Value, 0, ctx.NArgs()-1)
	for i := 1; i < ctx.NArgs(); i++ {
		args = append(args, ctx.Arg(i))
	}
	ok, results := ctx.CoroutineResume(ctx.Arg(0), args)
	ctx.Push(value.Bool(ok))
	for _, r := range results {
		ctx.Push(r)
	}
	return closure.Ok
}

func (b *Builtins) coroutineYield(ctx closure.NativeContext) closure.NativeResult {
	args := make([]value.Value, ctx.NArgs())
	for i := range args {
		args[i] = ctx.Arg(i)
	}
	return ctx.Yield(args)
}

func (b *Builtins) coroutineStatus(ctx closure.NativeContext) closure.NativeResult {
	status, ok := ctx.CoroutineStatus(ctx.Arg(0))
	if !ok {
		return closure.Raise(b.str("bad argument #1 to 'status' (coroutine expected)"))
	}
	ctx.Push(b.str(status))
	return closure.Ok
}

func (b *Builtins) coroutineWrap(ctx closure.NativeContext) closure.NativeResult {
	if ctx.Arg(0).TypeName() != "function" {
		return closure.Raise(b.str("bad argument #1 to 'wrap' (function expected)"))
	}
	ctx.Push(ctx.CoroutineWrap(ctx.Arg(0)))
	return closure.Ok
}

func (b *Builtins) coroutineClose(ctx closure.NativeContext) closure.NativeResult {
	ok, errVal := ctx.CoroutineClose(ctx.Arg(0))
	ctx.Push(value.Bool(ok))
	if !ok {
		ctx.Push(errVal)
	}
	return closure.Ok
}

func (b *Builtins) coroutineRunning(ctx closure.NativeContext) closure.NativeResult {
	co, isMain := ctx.CoroutineRunning()
	ctx.Push(co)
	ctx.Push(value.Bool(isMain))
	return closure.Ok
}

// coroutineIsYieldable approximates Lua's coroutine.isyieldable with
// !IsMainThread: the NativeContext seam does not expose the finer
// C-call-boundary check ctx.Yield itself performs, so a thread nested
// inside a re-entrant native call (pcall, a sort comparator) is reported
// yieldable here even though an actual yield from that point would still
// be rejected.
func (b *Builtins) coroutineIsYieldable(ctx closure.NativeContext) closure.NativeResult {
	ctx.Push(value.Bool(!ctx.IsMainThread()))
	return closure.Ok
}

// osTime and osClock give scripts the wall-clock Unix time, in whole
// seconds and in fractional seconds respectively (§9
// "os.time/os.clock"); lucore has no calendar/locale library to back the
// full os.date family, so only the two numeric-result functions exist.
func (b *Builtins) osTime(ctx closure.NativeContext) closure.NativeResult {
	ctx.Push(value.Int(time.Now().Unix()))
	return closure.Ok
}

func (b *Builtins) osClock(ctx closure.NativeContext) closure.NativeResult {
	ctx.Push(value.Float(float64(time.Now().UnixNano()) / 1e9))
	return closure.Ok
}

// ioWrite implements a minimal io.write(...): concatenates its string/number
// arguments to stdout, returning no value (real Lua returns the file
// handle; lucore has no file-handle object model in scope).
func (b *Builtins) ioWrite(ctx closure.NativeContext) closure.NativeResult {
	for i := 0; i < ctx.NArgs(); i++ {
		v := ctx.Arg(i)
		if s, ok := asString(v); ok {
			fmt.Fprint(os.Stdout, s)
			continue
		}
		if v.IsNumber() {
			fmt.Fprint(os.Stdout, value.ToStringSimple(v))
			continue
		}
		return closure.Raise(b.str("bad argument to 'write' (string expected)"))
	}
	return closure.Ok
}
