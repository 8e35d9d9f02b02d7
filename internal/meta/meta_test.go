// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/userdata"
	"github.com/probeum/lucore/internal/value"
)

type fakeRoots struct{}

func (fakeRoots) GCRoots(func(value.Value)) {}

func newHeap() *heap.Heap { return heap.New(fakeRoots{}, 0) }

func TestMetatableOwnForTableTakesPrecedenceOverShared(t *testing.T) {
	h := newHeap()
	r := NewRegistry(h)
	shared := table.New(h)
	r.SetShared("table", shared)

	tbl := table.New(h)
	assert.True(t, r.Metatable(value.Obj(tbl)) == nil, "a table with no own metatable has none — tables never fall back to shared")

	own := table.New(h)
	tbl.SetMetatable(own)
	assert.True(t, r.Metatable(value.Obj(tbl)) == own)
}

func TestMetatableSharedForPrimitives(t *testing.T) {
	h := newHeap()
	r := NewRegistry(h)
	shared := table.New(h)
	r.SetShared("string", shared)

	s := h.InternStr("x")
	assert.True(t, r.Metatable(value.Obj(s)) == shared)
}

func TestLookupFindsEventOnMetatable(t *testing.T) {
	h := newHeap()
	r := NewRegistry(h)
	mt := table.New(h)
	handler := value.Int(1)
	require.NoError(t, mt.Set(r.EventKey(value.EventAdd), handler))

	tbl := table.New(h)
	tbl.SetMetatable(mt)

	fn, ok := r.Lookup(value.Obj(tbl), value.EventAdd)
	assert.True(t, ok)
	assert.Equal(t, handler, fn)

	_, ok = r.Lookup(value.Obj(tbl), value.EventSub)
	assert.False(t, ok)
}

func TestLookupBinaryPrefersLeftOperand(t *testing.T) {
	h := newHeap()
	r := NewRegistry(h)
	mtA := table.New(h)
	mtB := table.New(h)
	fnA := value.Int(1)
	fnB := value.Int(2)
	require.NoError(t, mtA.Set(r.EventKey(value.EventConcat), fnA))
	require.NoError(t, mtB.Set(r.EventKey(value.EventConcat), fnB))

	a := table.New(h)
	a.SetMetatable(mtA)
	b := table.New(h)
	b.SetMetatable(mtB)

	fn, fromB, ok := r.LookupBinary(value.EventConcat, value.Obj(a), value.Obj(b))
	assert.True(t, ok)
	assert.False(t, fromB)
	assert.Equal(t, fnA, fn)
}

func TestLookupBinaryFallsBackToRightOperand(t *testing.T) {
	h := newHeap()
	r := NewRegistry(h)
	mtB := table.New(h)
	fnB := value.Int(2)
	require.NoError(t, mtB.Set(r.EventKey(value.EventConcat), fnB))

	a := table.New(h)
	b := table.New(h)
	b.SetMetatable(mtB)

	fn, fromB, ok := r.LookupBinary(value.EventConcat, value.Obj(a), value.Obj(b))
	assert.True(t, ok)
	assert.True(t, fromB)
	assert.Equal(t, fnB, fn)
}

func TestEqualCandidateRequiresSameObjectFamily(t *testing.T) {
	h := newHeap()
	tblA := table.New(h)
	tblB := table.New(h)
	ud := userdata.New(h, 0, 0)

	assert.True(t, EqualCandidate(value.Obj(tblA), value.Obj(tblB)))
	assert.False(t, EqualCandidate(value.Obj(tblA), value.Obj(ud)))
	assert.False(t, EqualCandidate(value.Int(1), value.Int(2)))
}

func TestMetatableProtection(t *testing.T) {
	h := newHeap()
	r := NewRegistry(h)
	mt := table.New(h)
	protectionValue := value.Obj(h.InternStr("locked"))
	require.NoError(t, mt.Set(r.EventKey(value.EventMetatable), protectionValue))

	tbl := table.New(h)
	tbl.SetMetatable(mt)

	assert.False(t, r.CanSetMetatable(value.Obj(tbl)))
	assert.Equal(t, protectionValue, r.GetMetatableField(value.Obj(tbl)))
}

func TestGetMetatableFieldReturnsMetatableItselfWhenUnprotected(t *testing.T) {
	h := newHeap()
	r := NewRegistry(h)
	mt := table.New(h)
	tbl := table.New(h)
	tbl.SetMetatable(mt)

	assert.True(t, r.CanSetMetatable(value.Obj(tbl)))
	assert.Equal(t, value.Obj(mt), r.GetMetatableField(value.Obj(tbl)))
}
