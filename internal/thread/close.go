// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package thread

import "github.com/probeum/lucore/internal/value"

// Close implements coroutine.close (§4.8, §9 Open Question 3): a Suspended
// coroutine has its pending to-be-closed variables closed (in reverse
// order, across all its pending frames) and is then marked Dead. A Dead
// coroutine closes trivially (true, nil). A Running, Normal, or (somehow)
// self-referential close is rejected.
func (s *Scheduler) Close(co *Thread) (ok bool, errVal value.Value) {
	switch co.status {
	case Running:
		return false, value.Obj(s.h.InternStr("cannot close a running coroutine"))
	case Normal:
		return false, value.Obj(s.h.InternStr("cannot close a normal coroutine"))
	case Dead:
		return true, value.Nil
	case Created:
		co.setStatus(Dead)
		return true, value.Nil
	default: // Suspended
		ok, errVal = s.interp.CloseThread(co)
		co.setStatus(Dead)
		return ok, errVal
	}
}
