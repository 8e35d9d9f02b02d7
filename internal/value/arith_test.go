// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithIntegerPreserving(t *testing.T) {
	r := Arith(EventAdd, Int(2), Int(3))
	require.NoError(t, r.Err)
	assert.False(t, r.NeedsMeta)
	assert.Equal(t, KindInteger, r.Value.Kind())
	assert.Equal(t, int64(5), r.Value.AsInt())
}

func TestArithDivAlwaysFloat(t *testing.T) {
	r := Arith(EventDiv, Int(4), Int(2))
	require.NoError(t, r.Err)
	assert.Equal(t, KindFloat, r.Value.Kind())
	assert.Equal(t, 2.0, r.Value.AsFloat())
}

func TestArithIntegerModFloorsTowardNegativeInfinity(t *testing.T) {
	r := Arith(EventMod, Int(-5), Int(3))
	require.NoError(t, r.Err)
	assert.Equal(t, int64(1), r.Value.AsInt(), "Lua's %% follows the sign of the divisor")
}

func TestArithIntegerIDivFloors(t *testing.T) {
	r := Arith(EventIDiv, Int(-7), Int(2))
	require.NoError(t, r.Err)
	assert.Equal(t, int64(-4), r.Value.AsInt())
}

func TestArithModByZeroErrors(t *testing.T) {
	r := Arith(EventMod, Int(5), Int(0))
	assert.ErrorIs(t, r.Err, ErrDivideByZero)
}

func TestArithIDivByZeroErrors(t *testing.T) {
	r := Arith(EventIDiv, Int(5), Int(0))
	assert.ErrorIs(t, r.Err, ErrDivideByZero)
}

func TestArithNeedsMetaOnNonNumber(t *testing.T) {
	r := Arith(EventAdd, Obj(testString("x")), Int(1))
	assert.True(t, r.NeedsMeta)
	assert.NoError(t, r.Err)
}

func TestArithBitwiseRequiresIntegralOperands(t *testing.T) {
	r := Arith(EventBAnd, Float(3.5), Int(1))
	assert.True(t, r.NeedsMeta)

	r = Arith(EventBAnd, Int(6), Int(3))
	require.NoError(t, r.Err)
	assert.Equal(t, int64(2), r.Value.AsInt())
}

func TestShiftLeftSaturatesAtWidth(t *testing.T) {
	assert.Equal(t, int64(0), shiftLeft(1, 64))
	assert.Equal(t, int64(0), shiftLeft(1, -64))
	assert.Equal(t, int64(2), shiftLeft(1, 1))
	assert.Equal(t, int64(0), shiftLeft(1, -1))
}

func TestCompareNumbersAndStrings(t *testing.T) {
	less, le, ok := Compare(Int(1), Int(2))
	require.True(t, ok)
	assert.True(t, less)
	assert.True(t, le)

	less, le, ok = Compare(Obj(testString("abc")), Obj(testString("abd")))
	require.True(t, ok)
	assert.True(t, less)
	assert.True(t, le)
}

func TestCompareMixedKindsNotOrderable(t *testing.T) {
	_, _, ok := Compare(Int(1), Obj(testString("1")))
	assert.False(t, ok)
}

func TestEventStringKeys(t *testing.T) {
	assert.Equal(t, "__add", EventAdd.String())
	assert.Equal(t, "__tostring", EventToString.String())
}
