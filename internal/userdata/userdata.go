// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package userdata implements the opaque host-data object of §3.2: a byte
// block plus a fixed-count array of user values and an optional metatable.
package userdata

import (
	"github.com/probeum/lucore/internal/heap"
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/value"
)

// Userdata is a Lua full-userdata object.
type Userdata struct {
	heap.Header
	Data       []byte
	UserValues []value.Value
	meta       *table.Table
}

// TypeName implements value.Object.
func (u *Userdata) TypeName() string { return "userdata" }

// Trace visits every user value and the metatable. Userdata uses the
// forward write barrier (§4.2), like closures: SetUserValue/SetMetatable
// re-mark the userdata itself gray rather than marking the new referent.
func (u *Userdata) Trace(mark func(value.Value)) {
	for _, v := range u.UserValues {
		mark(v)
	}
	if u.meta != nil {
		mark(value.Obj(u.meta))
	}
}

// New allocates a userdata with dataSize bytes and nuv user-value slots.
func New(h *heap.Heap, dataSize, nuv int) *Userdata {
	u := &Userdata{Data: make([]byte, dataSize), UserValues: make([]value.Value, nuv)}
	h.Adopt(u, heap.KindUserdata, uint64(dataSize+nuv*16))
	return u
}

// Metatable returns the userdata's metatable, or nil.
func (u *Userdata) Metatable() *table.Table { return u.meta }

// SetMetatable installs mt as the userdata's metatable.
func (u *Userdata) SetMetatable(h *heap.Heap, mt *table.Table) {
	u.meta = mt
	h.WriteBarrierForward(u)
}

// SetUserValue writes UserValues[i] and applies the forward write barrier.
func (u *Userdata) SetUserValue(h *heap.Heap, i int, v value.Value) {
	u.UserValues[i] = v
	h.WriteBarrierForward(u)
}
