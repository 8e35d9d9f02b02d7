// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"github.com/probeum/lucore/internal/thread"
	"github.com/probeum/lucore/internal/value"
)

// CloseThread implements thread.Interpreter: run __close on every
// to-be-closed local still pending across th's suspended frame chain
// (§4.8's coroutine.close, §9 Open Question 3), innermost frame first and
// reverse-declaration order within each frame, stopping at the first
// handler that itself errors.
func (vm *Interpreter) CloseThread(th *thread.Thread) (ok bool, errVal value.Value) {
	for th.Depth() > 0 {
		f := th.PopFrame()
		for i := len(f.TBC) - 1; i >= 0; i-- {
			v := th.Get(f.Base + f.TBC[i])
			if v.IsNil() || (v.Kind() == value.KindBoolean && !v.AsBool()) {
				continue
			}
			mfn, has := vm.reg.Lookup(v, value.EventClose)
			if !has {
				continue
			}
			if _, callOk, ev := vm.callProtected(th, mfn, []value.Value{v, value.Nil}, 0, th.Depth()); !callOk {
				return false, ev
			}
		}
		th.CloseUpvalues(f.Base)
	}
	return true, value.Nil
}
