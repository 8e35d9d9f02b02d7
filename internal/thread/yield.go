// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package thread

// PrepareYield records where a resume should deposit its arguments once
// this thread's coroutine.yield call is eventually resumed (§4.8 "Yield
// contract"). retSlot is the absolute stack slot of the pending call's
// first result; nresults is the number it was asked to produce, or -1 for
// "all". Called by package vm's invokeNative when a native call returns a
// yield, just before the OutcomeYielded result goes up through Run.
func (t *Thread) PrepareYield(retSlot, nresults int) {
	t.yieldRetSlot = retSlot
	t.yieldNResults = nresults
}

// Resumer returns the thread that resumed this one, or nil for the main
// thread or a coroutine that has never been resumed.
func (t *Thread) Resumer() *Thread { return t.resumer }

// IsYieldable reports whether t may call coroutine.yield (§4.8): every
// thread except the main thread is yieldable. Neither t's status nor its
// resumer chain is consulted.
func (t *Thread) IsYieldable() bool {
	return !t.isMain
}
