// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package thread implements per-thread VM state (§3.3), call frames
// (§3.4), the open-upvalue list (§4.4), and the coroutine scheduler
// (§4.8). The interpreter loop itself (§4.6) lives in package vm, which
// drives a Thread through the Interpreter interface below — Thread cannot
// import vm directly without an import cycle, since vm must see Thread's
// stack and frame layout.
package thread

import (
	"github.com/probeum/lucore/internal/closure"
	"github.com/probeum/lucore/internal/value"
)

// Frame holds one activation record (§3.4).
type Frame struct {
	Closure  *closure.Closure       // non-nil for a Lua call
	Native   *closure.NativeClosure // non-nil for a native call
	Base     int                    // register 0 of this frame's window, absolute stack index
	PC       int
	NResults int // expected result count from the caller; -1 means "all"
	RetSlot  int // absolute stack index in the caller's window to copy results to
	IsTail   bool
	Protected bool // true: a raised error is caught here rather than unwound past
	Varargs   []value.Value
	TBC       []int // to-be-closed register offsets (relative to Base), in declaration order
}
