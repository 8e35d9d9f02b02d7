// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/meta"
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/value"
)

type fakeRoots struct{}

func (fakeRoots) GCRoots(func(value.Value)) {}

func newTestThread(isMain bool) (*heap.Heap, *meta.Registry, *table.Table, *Thread) {
	h := heap.New(fakeRoots{}, 0)
	reg := meta.NewRegistry(h)
	globals := table.New(h)
	return h, reg, globals, New(h, reg, globals, isMain)
}

func TestNewThreadStartsCreated(t *testing.T) {
	_, _, _, th := newTestThread(true)
	assert.Equal(t, Created, th.Status())
	assert.Equal(t, "suspended", th.Status().String())
	assert.True(t, th.IsMain())
}

func TestStackGetSetGrowsBackingArray(t *testing.T) {
	_, _, _, th := newTestThread(false)
	th.Set(1000, value.Int(5))
	assert.Equal(t, value.Int(5), th.Get(1000))
	assert.Equal(t, 1001, th.Top())
}

func TestSetTopNilFillsNewSlots(t *testing.T) {
	_, _, _, th := newTestThread(false)
	th.Push(value.Int(1))
	th.SetTop(3)
	assert.Equal(t, value.Int(1), th.Get(0))
	assert.True(t, th.Get(1).IsNil())
	assert.True(t, th.Get(2).IsNil())
	assert.Equal(t, 3, th.Top())
}

func TestFrameStackPushPopDepth(t *testing.T) {
	_, _, _, th := newTestThread(false)
	assert.Nil(t, th.Frame())
	f1 := &Frame{Base: 0}
	f2 := &Frame{Base: 10}
	th.PushFrame(f1)
	th.PushFrame(f2)
	assert.Equal(t, 2, th.Depth())
	assert.True(t, th.Frame() == f2)
	popped := th.PopFrame()
	assert.True(t, popped == f2)
	assert.Equal(t, 1, th.Depth())
}

func TestFindOrCreateUpvalueSharesIdentity(t *testing.T) {
	_, _, _, th := newTestThread(false)
	th.Set(3, value.Int(9))
	u1 := th.FindOrCreateUpvalue(3)
	u2 := th.FindOrCreateUpvalue(3)
	assert.True(t, u1 == u2, "two captures of the same slot must share one Upvalue")
	assert.Equal(t, value.Int(9), u1.Get())
}

func TestCloseUpvaluesClosesAtOrAboveThreshold(t *testing.T) {
	_, _, _, th := newTestThread(false)
	th.Set(1, value.Int(1))
	th.Set(2, value.Int(2))
	th.Set(5, value.Int(5))
	low := th.FindOrCreateUpvalue(1)
	mid := th.FindOrCreateUpvalue(2)
	high := th.FindOrCreateUpvalue(5)

	th.CloseUpvalues(2)
	assert.False(t, low.IsClosed())
	assert.True(t, mid.IsClosed())
	assert.True(t, high.IsClosed())
	assert.Equal(t, value.Int(2), mid.Get())
	assert.Equal(t, value.Int(5), high.Get())
}

func TestHookCountdownFiresOnInterval(t *testing.T) {
	_, _, _, th := newTestThread(false)
	th.SetHook(value.Int(1), uint8(HookCount), 3)
	assert.False(t, th.TickHookCount())
	assert.False(t, th.TickHookCount())
	assert.True(t, th.TickHookCount(), "third tick must fire and reload the countdown")
	assert.False(t, th.TickHookCount())
}

func TestHookCountdownDisabledWithoutMask(t *testing.T) {
	_, _, _, th := newTestThread(false)
	th.SetHook(value.Int(1), 0, 3)
	for i := 0; i < 5; i++ {
		assert.False(t, th.TickHookCount())
	}
}

func TestCCallDepthTracksEnterLeave(t *testing.T) {
	_, _, _, th := newTestThread(false)
	assert.Equal(t, 0, th.CCallDepth())
	th.EnterCCall()
	th.EnterCCall()
	assert.Equal(t, 2, th.CCallDepth())
	th.LeaveCCall()
	assert.Equal(t, 1, th.CCallDepth())
	th.LeaveCCall()
	th.LeaveCCall() // must not go negative
	assert.Equal(t, 0, th.CCallDepth())
}

func TestIsYieldableMainThreadNever(t *testing.T) {
	_, _, _, main := newTestThread(true)
	_, _, _, co := newTestThread(false)
	assert.False(t, main.IsYieldable())
	assert.True(t, co.IsYieldable())
}

func TestTraceVisitsStackFramesAndGlobals(t *testing.T) {
	_, _, globals, th := newTestThread(false)
	th.Push(value.Int(1))
	f := &Frame{Varargs: []value.Value{value.Int(2)}}
	th.PushFrame(f)
	require.NoError(t, globals.Set(value.Int(1), value.Int(9)))

	var seen []value.Value
	th.Trace(func(v value.Value) { seen = append(seen, v) })
	assert.Contains(t, seen, value.Int(1))
	assert.Contains(t, seen, value.Int(2))
	assert.Contains(t, seen, value.Obj(globals))
}

func TestPendingResultRoundtrip(t *testing.T) {
	_, _, _, th := newTestThread(false)
	assert.Nil(t, th.TakePendingResult())
	r := &ExecResult{Outcome: OutcomeCompleted}
	th.SetPendingResult(r)
	assert.True(t, th.TakePendingResult() == r)
	assert.Nil(t, th.TakePendingResult())
}
