// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package thread

import "github.com/probeum/lucore/internal/value"

// Resume implements §4.8's resume contract. caller is the thread making the
// resume call (the value coroutine.running() would report for it); co is
// the coroutine being resumed.
func (s *Scheduler) Resume(caller *Thread, co *Thread, args []value.Value) (ok bool, results []value.Value) {
	switch co.status {
	case Dead:
		return false, []value.Value{value.Obj(s.h.InternStr("cannot resume dead coroutine"))}
	case Running, Normal:
		return false, []value.Value{value.Obj(s.h.InternStr("cannot resume non-suspended coroutine"))}
	}

	switch co.status {
	case Created:
		s.interp.PrepareCall(co, co.pendingBody, args, -1)
		co.pendingBody = value.Nil
	case Suspended:
		// Copy the resume arguments into the slots the suspended
		// coroutine.yield call expects its results in (§4.8 "Yield
		// contract"), clamped/padded to the count it asked for ("all"
		// is encoded as yieldNResults < 0).
		want := co.yieldNResults
		if want < 0 {
			want = len(args)
		}
		for i := 0; i < want; i++ {
			if i < len(args) {
				co.Set(co.yieldRetSlot+i, args[i])
			} else {
				co.Set(co.yieldRetSlot+i, value.Nil)
			}
		}
		co.SetTop(co.yieldRetSlot + want)
	}

	caller.setStatus(Normal)
	co.setStatus(Running)
	co.resumer = caller
	prevCurrent := s.current
	s.current = co

	res := s.interp.Run(co)

	s.current = prevCurrent
	caller.setStatus(Running)

	switch res.Outcome {
	case OutcomeCompleted:
		co.setStatus(Dead)
		return true, res.Values
	case OutcomeYielded:
		co.setStatus(Suspended)
		return true, res.Values
	default: // OutcomeErrored
		co.setStatus(Dead)
		return false, []value.Value{res.Err}
	}
}
