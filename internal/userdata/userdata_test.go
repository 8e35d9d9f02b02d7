// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package userdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/value"
)

type fakeRoots struct{}

func (fakeRoots) GCRoots(func(value.Value)) {}

func TestNewAllocatesDataAndUserValueSlots(t *testing.T) {
	h := heap.New(fakeRoots{}, 0)
	u := New(h, 8, 2)
	assert.Len(t, u.Data, 8)
	assert.Len(t, u.UserValues, 2)
	assert.Equal(t, "userdata", u.TypeName())
	assert.Nil(t, u.Metatable())
}

func TestSetUserValueAndMetatable(t *testing.T) {
	h := heap.New(fakeRoots{}, 0)
	u := New(h, 0, 1)
	u.SetUserValue(h, 0, value.Int(7))
	assert.Equal(t, value.Int(7), u.UserValues[0])

	mt := table.New(h)
	u.SetMetatable(h, mt)
	require.NotNil(t, u.Metatable())
	assert.True(t, u.Metatable() == mt)
}

func TestTraceVisitsUserValuesAndMetatable(t *testing.T) {
	h := heap.New(fakeRoots{}, 0)
	u := New(h, 0, 1)
	mt := table.New(h)
	u.SetUserValue(h, 0, value.Int(3))
	u.SetMetatable(h, mt)

	var seen []value.Value
	u.Trace(func(v value.Value) { seen = append(seen, v) })
	assert.Contains(t, seen, value.Int(3))
	assert.Contains(t, seen, value.Obj(mt))
}
