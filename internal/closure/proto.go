// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package closure implements prototypes, Lua closures, native closures, and
// upvalues (§3.2, §4.4, §6.1). A Prototype is produced by an external
// compiler front-end (out of scope, per spec.md's Non-goals) and is
// immutable once constructed; this package only consumes it.
package closure

import "github.com/probeum/lucore/internal/value"

// UpvalDescKind says where a closure's upvalue slot is captured from.
type UpvalDescKind uint8

const (
	// CaptureStack: capture the enclosing Lua frame's stack slot Index.
	CaptureStack UpvalDescKind = iota
	// CaptureUpval: capture the enclosing closure's own upvalue Index.
	CaptureUpval
)

// UpvalDesc describes one upvalue a CLOSURE instruction must populate.
type UpvalDesc struct {
	Name    string
	Kind    UpvalDescKind
	Index   int
	InStack bool // true iff Kind == CaptureStack, kept for debug-info parity
}

// LocVar names a local variable's lexical scope for debug info (§6.1).
type LocVar struct {
	Name    string
	StartPC int
	EndPC   int
}

// Prototype is the immutable compiled form of a function body (§3.2, §6.1).
type Prototype struct {
	Source       string
	NumParams    int
	IsVararg     bool
	MaxStackSize int
	Code         []Instruction
	Constants    []value.Value
	Protos       []*Prototype
	Upvalues     []UpvalDesc
	LineInfo     []int32 // PC -> source line, optional (len 0 if absent)
	LocVars      []LocVar
}

// Line returns the source line for pc, or 0 if no debug info was supplied.
func (p *Prototype) Line(pc int) int32 {
	if pc < 0 || pc >= len(p.LineInfo) {
		return 0
	}
	return p.LineInfo[pc]
}
