// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package luaerr names the host-level (non-Lua) error conditions the
// runtime can raise. A Lua-level error (§7 of the runtime's error model) is
// never one of these: it carries an arbitrary value.Value, recorded
// directly on the erroring thread (Thread.SetError) rather than wrapped in
// a Go error, matching the teacher's "errors as sentinels, not a hierarchy"
// style (vm.ErrOutOfGas, vm.ErrStackUnderflow, ... checked with errors.Is,
// never a typed error hierarchy).
package luaerr

import "errors"

var (
	// ErrOutOfMemory mirrors heap.ErrOutOfMemory for callers that only
	// import luaerr (a host condition, not a Lua error value). No lucore
	// code path returns it.
	ErrOutOfMemory = errors.New("lucore: out of memory")

	// ErrStackOverflow names a call chain exceeding a recursion limit
	// (§4.5, distinct from the bounded __call/__index chain guards that
	// live in package vm). lucore does not check call depth, and no code
	// path returns it.
	ErrStackOverflow = errors.New("lucore: stack overflow")

	// ErrNotResumable names host code resuming a thread outside the
	// coroutine.resume/wrap protocol (internal misuse, not the Lua-level
	// "cannot resume ..." string Lua code observes). No lucore code path
	// returns it.
	ErrNotResumable = errors.New("lucore: thread not resumable")

	// ErrClosed is returned by Runtime.Close when invoked twice.
	ErrClosed = errors.New("lucore: runtime already closed")
)
