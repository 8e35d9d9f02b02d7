// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeum/lucore/internal/closure"
	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/meta"
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/value"
)

type fakeRoots struct{}

func (fakeRoots) GCRoots(func(value.Value)) {}

// fakeCtx is a minimal closure.NativeContext: enough for builtins that only
// read args and push results. Call/Yield/Coroutine* are stubbed per test as
// needed via the function fields.
type fakeCtx struct {
	args     []value.Value
	nresults int
	results  []value.Value
	isMain   bool
	callFn   func(fn value.Value, args []value.Value, nresults int, protected bool) ([]value.Value, value.Value, bool)
	yieldFn  func(values []value.Value) closure.NativeResult
	gcFn     func(opt string, arg int) value.Value
}

func (c *fakeCtx) Arg(i int) value.Value {
	if i < 0 || i >= len(c.args) {
		return value.Nil
	}
	return c.args[i]
}
func (c *fakeCtx) NArgs() int             { return len(c.args) }
func (c *fakeCtx) NResults() int          { return c.nresults }
func (c *fakeCtx) Push(v value.Value)     { c.results = append(c.results, v) }
func (c *fakeCtx) Results() []value.Value { return c.results }
func (c *fakeCtx) IsMainThread() bool     { return c.isMain }
func (c *fakeCtx) Yield(values []value.Value) closure.NativeResult {
	if c.yieldFn != nil {
		return c.yieldFn(values)
	}
	return closure.NativeResult{IsYield: true, Yielded: values}
}
func (c *fakeCtx) Call(fn value.Value, args []value.Value, nresults int, protected bool) ([]value.Value, value.Value, bool) {
	if c.callFn != nil {
		return c.callFn(fn, args, nresults, protected)
	}
	return nil, value.Nil, false
}
func (c *fakeCtx) CoroutineCreate(fn value.Value) value.Value { return value.Nil }
func (c *fakeCtx) CoroutineResume(co value.Value, args []value.Value) (bool, []value.Value) {
	return false, nil
}
func (c *fakeCtx) CoroutineStatus(co value.Value) (string, bool)     { return "", false }
func (c *fakeCtx) CoroutineWrap(fn value.Value) value.Value          { return value.Nil }
func (c *fakeCtx) CoroutineClose(co value.Value) (bool, value.Value) { return false, value.Nil }
func (c *fakeCtx) CoroutineRunning() (value.Value, bool)             { return value.Nil, c.isMain }
func (c *fakeCtx) CollectGarbage(opt string, arg int) value.Value {
	if c.gcFn != nil {
		return c.gcFn(opt, arg)
	}
	return value.Nil
}

func newTestBuiltins() (*heap.Heap, *Builtins, *table.Table) {
	h := heap.New(fakeRoots{}, 0)
	reg := meta.NewRegistry(h)
	b := New(h, reg)
	globals := b.Install(table.New(h))
	return h, b, globals
}

func TestTypeReportsLuaTypeNames(t *testing.T) {
	_, b, _ := newTestBuiltins()
	ctx := &fakeCtx{args: []value.Value{value.Int(1)}}
	res := b.luaType(ctx)
	assert.False(t, res.IsError)
	assert.Equal(t, "number", value.ToStringSimple(ctx.results[0]))
}

func TestToStringUsesSimpleCoercionWithoutMetatable(t *testing.T) {
	_, b, _ := newTestBuiltins()
	ctx := &fakeCtx{args: []value.Value{value.Int(42)}}
	res := b.toString(ctx)
	require.False(t, res.IsError)
	assert.Equal(t, "42", value.ToStringSimple(ctx.results[0]))
}

func TestToNumberDecimalAndBase(t *testing.T) {
	_, b, _ := newTestBuiltins()
	ctx := &fakeCtx{args: []value.Value{value.Obj(stringOf("3.5"))}}
	b.toNumber(ctx)
	assert.Equal(t, value.Float(3.5), ctx.results[0])

	ctx2 := &fakeCtx{args: []value.Value{value.Obj(stringOf("ff")), value.Int(16)}}
	b.toNumber(ctx2)
	assert.Equal(t, value.Int(255), ctx2.results[0])
}

func TestToNumberInvalidReturnsNil(t *testing.T) {
	_, b, _ := newTestBuiltins()
	ctx := &fakeCtx{args: []value.Value{value.Obj(stringOf("not a number"))}}
	b.toNumber(ctx)
	assert.True(t, ctx.results[0].IsNil())
}

func TestPcallCatchesErrorFromCall(t *testing.T) {
	_, b, _ := newTestBuiltins()
	errVal := value.Int(999)
	ctx := &fakeCtx{
		args: []value.Value{value.Int(1)},
		callFn: func(fn value.Value, args []value.Value, nresults int, protected bool) ([]value.Value, value.Value, bool) {
			return nil, errVal, true
		},
	}
	b.pcall(ctx)
	require.Len(t, ctx.results, 2)
	assert.Equal(t, value.False, ctx.results[0])
	assert.Equal(t, errVal, ctx.results[1])
}

func TestPcallForwardsResultsOnSuccess(t *testing.T) {
	_, b, _ := newTestBuiltins()
	ctx := &fakeCtx{
		args: []value.Value{value.Int(1), value.Int(2)},
		callFn: func(fn value.Value, args []value.Value, nresults int, protected bool) ([]value.Value, value.Value, bool) {
			return []value.Value{value.Int(3)}, value.Nil, false
		},
	}
	b.pcall(ctx)
	require.Len(t, ctx.results, 2)
	assert.Equal(t, value.True, ctx.results[0])
	assert.Equal(t, value.Int(3), ctx.results[1])
}

func TestXpcallRunsHandlerOnError(t *testing.T) {
	_, b, _ := newTestBuiltins()
	errVal := value.Int(5)
	handlerResult := value.Int(50)
	ctx := &fakeCtx{
		args: []value.Value{value.Int(1), value.Int(2)},
		callFn: func(fn value.Value, args []value.Value, nresults int, protected bool) ([]value.Value, value.Value, bool) {
			if value.RawEqual(fn, value.Int(1)) {
				return nil, errVal, true
			}
			return []value.Value{handlerResult}, value.Nil, false
		},
	}
	b.xpcall(ctx)
	require.Len(t, ctx.results, 2)
	assert.Equal(t, value.False, ctx.results[0])
	assert.Equal(t, handlerResult, ctx.results[1])
}

func TestAssertPassesThroughOnTruthy(t *testing.T) {
	_, b, _ := newTestBuiltins()
	ctx := &fakeCtx{args: []value.Value{value.Int(1), value.Int(2)}}
	res := b.assert(ctx)
	assert.False(t, res.IsError)
	assert.Equal(t, []value.Value{value.Int(1), value.Int(2)}, ctx.results)
}

func TestAssertRaisesOnFalsy(t *testing.T) {
	_, b, _ := newTestBuiltins()
	ctx := &fakeCtx{args: []value.Value{value.False, value.Obj(stringOf("boom"))}}
	res := b.assert(ctx)
	assert.True(t, res.IsError)
	assert.Equal(t, "boom", value.ToStringSimple(res.Err))
}

func TestRawgetRawsetBypassMetatables(t *testing.T) {
	h, b, _ := newTestBuiltins()
	tbl := table.New(h)
	ctx := &fakeCtx{args: []value.Value{value.Obj(tbl), value.Int(1), value.Int(9)}}
	b.rawset(ctx)
	ctx2 := &fakeCtx{args: []value.Value{value.Obj(tbl), value.Int(1)}}
	b.rawget(ctx2)
	assert.Equal(t, value.Int(9), ctx2.results[0])
}

func TestRawequalComparesByIdentityNotMetamethod(t *testing.T) {
	_, b, _ := newTestBuiltins()
	ctx := &fakeCtx{args: []value.Value{value.Int(1), value.Int(1)}}
	b.rawequal(ctx)
	assert.Equal(t, value.True, ctx.results[0])
}

func TestRawlenOnTableAndString(t *testing.T) {
	h, b, _ := newTestBuiltins()
	tbl := table.New(h)
	require.NoError(t, tbl.Set(value.Int(1), value.Int(1)))
	require.NoError(t, tbl.Set(value.Int(2), value.Int(1)))
	ctx := &fakeCtx{args: []value.Value{value.Obj(tbl)}}
	b.rawlen(ctx)
	assert.Equal(t, value.Int(2), ctx.results[0])

	ctx2 := &fakeCtx{args: []value.Value{value.Obj(stringOf("abcd"))}}
	b.rawlen(ctx2)
	assert.Equal(t, value.Int(4), ctx2.results[0])
}

func TestSetMetatableAndGetMetatableRoundtrip(t *testing.T) {
	h, b, _ := newTestBuiltins()
	tbl := table.New(h)
	mt := table.New(h)
	ctx := &fakeCtx{args: []value.Value{value.Obj(tbl), value.Obj(mt)}}
	b.setmetatable(ctx)
	assert.Equal(t, value.Obj(tbl), ctx.results[0])

	ctx2 := &fakeCtx{args: []value.Value{value.Obj(tbl)}}
	b.getmetatable(ctx2)
	assert.Equal(t, value.Obj(mt), ctx2.results[0])
}

func TestSetMetatableRejectsProtectedMetatable(t *testing.T) {
	h, b, _ := newTestBuiltins()
	tbl := table.New(h)
	mt := table.New(h)
	require.NoError(t, mt.Set(b.reg.EventKey(value.EventMetatable), value.True))
	tbl.SetMetatable(mt)

	ctx := &fakeCtx{args: []value.Value{value.Obj(tbl), value.Obj(table.New(h))}}
	res := b.setmetatable(ctx)
	assert.True(t, res.IsError)
}

func TestNextIteratesTableEntries(t *testing.T) {
	h, b, _ := newTestBuiltins()
	tbl := table.New(h)
	require.NoError(t, tbl.Set(value.Int(1), value.Int(10)))

	ctx := &fakeCtx{args: []value.Value{value.Obj(tbl), value.Nil}}
	b.next(ctx)
	require.Len(t, ctx.results, 2)
	assert.Equal(t, value.Int(1), ctx.results[0])
	assert.Equal(t, value.Int(10), ctx.results[1])

	ctx2 := &fakeCtx{args: []value.Value{value.Obj(tbl), value.Int(1)}}
	b.next(ctx2)
	require.Len(t, ctx2.results, 1)
	assert.True(t, ctx2.results[0].IsNil())
}

func TestPairsReturnsNextIteratorTriple(t *testing.T) {
	h, b, _ := newTestBuiltins()
	tbl := table.New(h)
	ctx := &fakeCtx{args: []value.Value{value.Obj(tbl)}}
	res := b.pairs(ctx)
	assert.False(t, res.IsError)
	require.Len(t, ctx.results, 3)
	assert.Equal(t, value.Obj(tbl), ctx.results[1])
	assert.True(t, ctx.results[2].IsNil())
}

func TestIpairsIteratesSequenceUntilHole(t *testing.T) {
	h, b, _ := newTestBuiltins()
	tbl := table.New(h)
	require.NoError(t, tbl.Set(value.Int(1), value.Int(100)))
	require.NoError(t, tbl.Set(value.Int(2), value.Int(200)))

	ctx := &fakeCtx{args: []value.Value{value.Obj(tbl)}}
	b.ipairs(ctx)

	step := &fakeCtx{args: []value.Value{value.Obj(tbl), value.Int(0)}}
	b.ipairsStep(step)
	assert.Equal(t, value.Int(1), step.results[0])
	assert.Equal(t, value.Int(100), step.results[1])

	step2 := &fakeCtx{args: []value.Value{value.Obj(tbl), value.Int(2)}}
	b.ipairsStep(step2)
	assert.True(t, step2.results[0].IsNil())
}

func TestSelectHashReturnsArgCount(t *testing.T) {
	_, b, _ := newTestBuiltins()
	ctx := &fakeCtx{args: []value.Value{value.Obj(stringOf("#")), value.Int(1), value.Int(2), value.Int(3)}}
	b.select_(ctx)
	assert.Equal(t, value.Int(3), ctx.results[0])
}

func TestSelectNReturnsTailArgs(t *testing.T) {
	_, b, _ := newTestBuiltins()
	ctx := &fakeCtx{args: []value.Value{value.Int(2), value.Int(10), value.Int(20), value.Int(30)}}
	b.select_(ctx)
	assert.Equal(t, []value.Value{value.Int(20), value.Int(30)}, ctx.results)
}

func TestCollectgarbageDelegatesToContext(t *testing.T) {
	_, b, _ := newTestBuiltins()
	var gotOpt string
	var gotArg int
	ctx := &fakeCtx{
		args: []value.Value{value.Obj(stringOf("count"))},
		gcFn: func(opt string, arg int) value.Value {
			gotOpt, gotArg = opt, arg
			return value.Float(123)
		},
	}
	b.collectgarbage(ctx)
	assert.Equal(t, "count", gotOpt)
	assert.Equal(t, 0, gotArg)
	assert.Equal(t, value.Float(123), ctx.results[0])
}

func TestInstallRegistersCoroutineOsAndIoTables(t *testing.T) {
	h, _, globals := newTestBuiltins()
	co := globals.Get(value.Obj(h.InternStr("coroutine")))
	require.False(t, co.IsNil())
	osTbl := globals.Get(value.Obj(h.InternStr("os")))
	require.False(t, osTbl.IsNil())
	ioTbl := globals.Get(value.Obj(h.InternStr("io")))
	require.False(t, ioTbl.IsNil())
}

func TestInstallRegistersPackageTableWithModuleFields(t *testing.T) {
	h, _, globals := newTestBuiltins()
	pkgVal := globals.Get(value.Obj(h.InternStr("package")))
	require.False(t, pkgVal.IsNil())
	pkg, ok := pkgVal.AsObject().(*table.Table)
	require.True(t, ok)

	for _, field := range []string{"path", "cpath", "loaded", "preload", "searchers"} {
		assert.False(t, pkg.Get(value.Obj(h.InternStr(field))).IsNil(), "package.%s must exist after bootstrap", field)
	}
}

// stringOf builds a standalone string object for tests that don't need heap
// identity, only value.StringSource's Bytes() (e.g. args passed to a
// builtin, which only reads content, never key-compares by identity).
type testString string

func (s testString) TypeName() string { return "string" }
func (s testString) Bytes() []byte    { return []byte(s) }

func stringOf(s string) value.Object { return testString(s) }
