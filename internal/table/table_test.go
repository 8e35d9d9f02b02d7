// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package table

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/value"
)

type fakeRoots struct{ roots []value.Value }

func (r fakeRoots) GCRoots(mark func(value.Value)) {
	for _, v := range r.roots {
		mark(v)
	}
}

func newHeap() *heap.Heap { return heap.New(fakeRoots{}, 0) }

func TestSetGetArrayPart(t *testing.T) {
	h := newHeap()
	tbl := New(h)
	require.NoError(t, tbl.Set(value.Int(1), value.Int(10)))
	require.NoError(t, tbl.Set(value.Int(2), value.Int(20)))
	assert.Equal(t, value.Int(10), tbl.Get(value.Int(1)))
	assert.Equal(t, value.Int(20), tbl.Get(value.Int(2)))
	assert.Equal(t, int64(2), tbl.Length())
}

func TestSetNilKeyErrors(t *testing.T) {
	tbl := New(newHeap())
	assert.ErrorIs(t, tbl.Set(value.Nil, value.Int(1)), ErrInvalidKey)
}

func TestSetNaNKeyErrors(t *testing.T) {
	tbl := New(newHeap())
	nan := value.Float(nanFloat())
	assert.ErrorIs(t, tbl.Set(nan, value.Int(1)), ErrInvalidKey)
}

func nanFloat() float64 { var z float64; return z / z }

func TestFloatIntegerKeysNormalize(t *testing.T) {
	tbl := New(newHeap())
	require.NoError(t, tbl.Set(value.Int(3), value.Int(30)))
	assert.Equal(t, value.Int(30), tbl.Get(value.Float(3.0)), "t[3] and t[3.0] must address the same slot")
}

func TestSetNilDeletesEntry(t *testing.T) {
	tbl := New(newHeap())
	require.NoError(t, tbl.Set(value.Obj(mustIntern(tbl, "k")), value.Int(1)))
	require.NoError(t, tbl.Set(value.Obj(mustIntern(tbl, "k")), value.Nil))
	assert.True(t, tbl.Get(value.Obj(mustIntern(tbl, "k"))).IsNil())
}

func mustIntern(t *Table, s string) *heap.LString { return t.h.InternStr(s) }

func TestAbsorbFromHashMergesContiguousKeys(t *testing.T) {
	tbl := New(newHeap())
	require.NoError(t, tbl.Set(value.Int(2), value.Int(2)))
	require.NoError(t, tbl.Set(value.Int(3), value.Int(3)))
	// Array part is still empty (key 1 is missing) so 2 and 3 land in hash.
	require.NoError(t, tbl.Set(value.Int(1), value.Int(1)))
	// Appending key 1 makes 2 contiguous, which should absorb 2 then 3.
	assert.Equal(t, int64(3), tbl.Length())
	assert.Equal(t, 3, tbl.ArrayCap())
}

func TestLengthBinarySearchOnArrayPart(t *testing.T) {
	tbl := New(newHeap())
	for i := int64(1); i <= 8; i++ {
		require.NoError(t, tbl.Set(value.Int(i), value.Int(i)))
	}
	require.NoError(t, tbl.Set(value.Int(5), value.Nil))
	n := tbl.Length()
	assert.True(t, n == 4 || n == 8, "either boundary is a valid '#' result once a hole exists")
}

func TestNextVisitsEveryEntryExactlyOnce(t *testing.T) {
	tbl := New(newHeap())
	require.NoError(t, tbl.Set(value.Int(1), value.Int(100)))
	require.NoError(t, tbl.Set(value.Int(2), value.Int(200)))
	strKey := value.Obj(mustIntern(tbl, "extra"))
	require.NoError(t, tbl.Set(strKey, value.Int(300)))

	seen := map[value.Value]value.Value{}
	k := value.Nil
	for {
		nk, nv, ok, err := tbl.Next(k)
		require.NoError(t, err)
		if !ok {
			break
		}
		seen[nk] = nv
		k = nk
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, value.Int(100), seen[value.Int(1)])
	assert.Equal(t, value.Int(200), seen[value.Int(2)])
	assert.Equal(t, value.Int(300), seen[strKey])
}

func TestNextOnInvalidKeyErrors(t *testing.T) {
	tbl := New(newHeap())
	require.NoError(t, tbl.Set(value.Obj(mustIntern(tbl, "a")), value.Int(1)))
	_, _, _, err := tbl.Next(value.Obj(mustIntern(tbl, "never-set")))
	assert.Error(t, err)
}

// TestFuzzNextTraversalCoversAllArrayEntries property-checks that Next walks
// every non-nil array slot exactly once, for a range of randomly generated
// array lengths and holes.
func TestFuzzNextTraversalCoversAllArrayEntries(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(1, 12)
	for trial := 0; trial < 50; trial++ {
		var present []bool
		f.Fuzz(&present)
		if len(present) == 0 {
			continue
		}
		tbl := New(newHeap())
		want := map[int64]bool{}
		for i, keep := range present {
			if keep {
				require.NoError(t, tbl.Set(value.Int(int64(i+1)), value.Int(int64(i+1))))
				want[int64(i+1)] = true
			}
		}
		got := map[int64]bool{}
		k := value.Nil
		for {
			nk, nv, ok, err := tbl.Next(k)
			require.NoError(t, err)
			if !ok {
				break
			}
			require.Equal(t, value.KindInteger, nk.Kind())
			require.Equal(t, nk.AsInt(), nv.AsInt())
			got[nk.AsInt()] = true
			k = nk
		}
		assert.Equal(t, want, got)
	}
}
