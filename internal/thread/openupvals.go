// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package thread

import "github.com/probeum/lucore/internal/closure"

// FindOrCreateUpvalue implements §4.4's closure-creation rule: reuse an
// existing open upvalue at the given stack slot if one exists (so sibling
// closures share identity, testable property #3), else allocate a new one
// and splice it into the descending-index list the thread owns (§9
// "open upvalues as backreferences": the thread owns the list by head
// pointer; each upvalue just carries its slot index).
func (t *Thread) FindOrCreateUpvalue(index int) *closure.Upvalue {
	var prev *closure.Upvalue
	cur := t.openUpvals
	for cur != nil && cur.Index() > index {
		prev = cur
		cur = cur.Next()
	}
	if cur != nil && cur.Index() == index {
		return cur
	}
	uv := closure.NewOpenUpvalue(t.h, t, index)
	uv.SetNext(cur)
	if prev == nil {
		t.openUpvals = uv
	} else {
		prev.SetNext(uv)
	}
	return uv
}

// CloseUpvalues closes every open upvalue at or above threshold (§4.4,
// §6.2 "CLOSE A"), unlinking each from the open list. It does not run
// __close metamethods — that is a separate, higher-level step package vm
// performs using the frame's TBC list, since not every closed upvalue
// corresponds to a to-be-closed local.
func (t *Thread) CloseUpvalues(threshold int) {
	for t.openUpvals != nil && t.openUpvals.Index() >= threshold {
		uv := t.openUpvals
		t.openUpvals = uv.Next()
		uv.Close()
	}
}
