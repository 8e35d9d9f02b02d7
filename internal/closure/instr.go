// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package closure

// Opcode enumerates the abstract instruction categories of §6.2. lucore
// follows the teacher's fixed-width, 3-operand encoding convention (see
// probe-lang/lang/vm's "[opcode:8][a:8][b:8][c:8]" scheme) but widens A/B/C
// to register-count-friendly ints since Go gives us that for free and the
// compiler front-end is external to this repo anyway.
type Opcode uint8

const (
	OpMove Opcode = iota
	OpLoadK
	OpLoadBool
	OpLoadNil
	OpGetUpval
	OpSetUpval
	OpGetTabUp
	OpSetTabUp
	OpGetTable
	OpSetTable
	OpNewTable
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpIDiv
	OpUnm
	OpBAnd
	OpBOr
	OpBXor
	OpBNot
	OpShl
	OpShr
	OpLen
	OpConcat
	OpJmp
	OpEq
	OpLt
	OpLe
	OpTest
	OpTestSet
	OpCall
	OpTailCall
	OpReturn
	OpForLoop
	OpForPrep
	OpTForCall
	OpTForLoop
	OpSetList
	OpClosure
	OpVararg
	OpClose
	OpSelf
)

// Instruction is one fixed-width bytecode word: an opcode plus up to three
// register/constant operands and one wide signed operand used by jumps and
// large immediates (Bx/sBx in traditional Lua terms).
type Instruction struct {
	Op   Opcode
	A    int
	B    int
	C    int
	SBx  int32 // signed wide operand: jump offsets, LOADK constant index overflow
	IsKB bool  // B operand indexes the constant pool rather than a register
	IsKC bool  // C operand indexes the constant pool rather than a register
}
