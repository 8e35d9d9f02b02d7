// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package thread

import (
	"github.com/probeum/lucore/internal/closure"
	"github.com/probeum/lucore/internal/value"
)

// Wrap implements coroutine.wrap (§4.8): it creates a coroutine around fn
// and returns a callable value that resumes it. Unlike coroutine.resume,
// a failed resume is re-raised as a Lua error from the wrapper itself
// rather than reported as a (false, err) pair.
func (s *Scheduler) Wrap(fn value.Value) value.Value {
	co := s.Create(fn)
	call := func(ctx closure.NativeContext) closure.NativeResult {
		args := make([]value.Value, ctx.NArgs())
		for i := range args {
			args[i] = ctx.Arg(i)
		}
		ok, results := s.Resume(s.current, co, args)
		if !ok {
			var errVal value.Value = value.Nil
			if len(results) > 0 {
				errVal = results[0]
			}
			return closure.Raise(errVal)
		}
		for _, r := range results {
			ctx.Push(r)
		}
		return closure.Ok
	}
	nc := closure.NewNativeClosure(s.h, closure.TagWrapCall, "wrapped coroutine", call, value.Obj(co))
	return value.Obj(nc)
}

// Running implements coroutine.running: the currently executing thread and
// whether it is the main thread.
func (s *Scheduler) Running() (*Thread, bool) {
	return s.current, s.current == s.main
}

// ThreadStatus implements coroutine.status's string-form result for co;
// Resume already keeps co.status current (Normal while it is itself
// resuming another coroutine, Running while actually executing), so this
// is a direct read.
func (s *Scheduler) ThreadStatus(co *Thread) string {
	return co.status.String()
}
