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

// Call is the runtime package's entry point for invoking a Lua value
// synchronously on th (a top-level script call, or a __gc finalizer run
// against the scheduler's current thread, §9 Open Question 4): it behaves
// exactly like a protected call from native code, returning the error value
// directly rather than threading an ExecResult through the caller.
func (vm *Interpreter) Call(th *thread.Thread, fn value.Value, args []value.Value, nresults int) (results []value.Value, ok bool, errVal value.Value) {
	return vm.callProtected(th, fn, args, nresults, th.Depth())
}
