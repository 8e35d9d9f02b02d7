// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package heap

import (
	"golang.org/x/crypto/sha3"

	"github.com/probeum/lucore/internal/value"
)

// LString is an immutable, interned Lua string object (§3.2). Two strings
// with equal content are always the same *LString: InternString (and its
// InternStr wrapper) is the only constructor, and it is backed by
// Heap.strings, a content-hash keyed table that sweep clears of dead
// entries through unintern
// (it is effectively a weak-value table the collector manages directly
// rather than through the generic weak-table path in weak.go, since string
// interning must survive even when the string is only reachable from the
// intern table itself — that reachability is exactly what makes it dead).
type LString struct {
	Header
	bytes []byte
	hash  [32]byte
}

// TypeName implements value.Object.
func (s *LString) TypeName() string { return "string" }

// Bytes returns the string's raw content. Callers must not mutate it.
func (s *LString) Bytes() []byte { return s.bytes }

// Trace: strings are leaves of the object graph.
func (s *LString) Trace(mark func(value.Value)) {}

// hashContent derives the interning key. The teacher's own vm_test.go hashes
// bytecode with golang.org/x/crypto/sha3; lucore reuses the same hash family
// for the string table's content key, rather than hand-rolling FNV.
func hashContent(b []byte) [32]byte {
	return sha3.Sum256(b)
}

// InternString returns the canonical *LString for the given bytes,
// allocating one on first sight (§4.2 "string interning"). Two calls with
// equal content always yield the identical pointer (testable property #2).
func (h *Heap) InternString(b []byte) *LString {
	key := hashContent(b)
	if bucket, ok := h.strings[key]; ok {
		for _, s := range bucket {
			if string(s.bytes) == string(b) {
				return s
			}
		}
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	s := &LString{bytes: cp, hash: key}
	h.Adopt(s, KindString, uint64(len(cp))+32)
	h.strings[key] = append(h.strings[key], s)
	return s
}

// InternStr is a convenience wrapper for Go string literals.
func (h *Heap) InternStr(s string) *LString { return h.InternString([]byte(s)) }

// unintern drops s from the content-hash table. Called by the sweep phase
// when s did not survive a collection, so a later InternString for the same
// bytes allocates fresh rather than resurrecting a dead pointer.
func (h *Heap) unintern(s *LString) {
	bucket := h.strings[s.hash]
	for i, c := range bucket {
		if c == s {
			h.strings[s.hash] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(h.strings[s.hash]) == 0 {
		delete(h.strings, s.hash)
	}
}
