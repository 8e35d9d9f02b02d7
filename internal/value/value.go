// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lucore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Lucore. If not, see <http://www.gnu.org/licenses/>.

// Package value implements the Lua 5.4 tagged value type: nil, boolean,
// integer, float, and object references (string, table, closure, userdata,
// thread). Objects implementing the Object interface live in package heap;
// value deliberately does not import heap to keep the tag union acyclic —
// heap objects embed value.Value for table/upvalue payloads instead.
package value

import (
	"math"
)

// Kind identifies the dynamic type of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindObject
)

var kindNames = [...]string{
	KindNil:     "nil",
	KindBoolean: "boolean",
	KindInteger: "number",
	KindFloat:   "number",
	KindObject:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Object is implemented by every heap-allocated referent a Value can point
// to (string, table, closure, userdata, thread). It is declared here, not in
// package heap, so that Value itself has no import-cycle dependency on heap.
type Object interface {
	// TypeName returns the Lua type name ("string", "table", "function",
	// "userdata", "thread") used by type() and error messages.
	TypeName() string
}

// Value is an immutable-by-convention tagged union. The zero Value is nil.
type Value struct {
	kind Kind
	n    uint64 // integer bits, or float bits via math.Float64bits, or 1/0 for boolean
	obj  Object
}

// Nil is the canonical nil value.
var Nil = Value{kind: KindNil}

// True and False are the two boolean values.
var (
	True  = Value{kind: KindBoolean, n: 1}
	False = Value{kind: KindBoolean, n: 0}
)

// Bool returns True or False according to b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Int wraps a Lua integer.
func Int(i int64) Value { return Value{kind: KindInteger, n: uint64(i)} }

// Float wraps a Lua float.
func Float(f float64) Value { return Value{kind: KindFloat, n: math.Float64bits(f)} }

// Obj wraps an object reference. Passing a nil Object returns Nil.
func Obj(o Object) Value {
	if o == nil {
		return Nil
	}
	return Value{kind: KindObject, obj: o}
}

// Kind reports the dynamic tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.kind == KindNil }

// IsNumber reports whether v is an integer or a float.
func (v Value) IsNumber() bool { return v.kind == KindInteger || v.kind == KindFloat }

// AsBool returns the boolean payload; only meaningful when Kind() == KindBoolean.
func (v Value) AsBool() bool { return v.n != 0 }

// AsInt returns the integer payload; only meaningful when Kind() == KindInteger.
func (v Value) AsInt() int64 { return int64(v.n) }

// AsFloat returns the float payload; only meaningful when Kind() == KindFloat.
func (v Value) AsFloat() float64 { return math.Float64frombits(v.n) }

// AsObject returns the object payload; only meaningful when Kind() == KindObject.
func (v Value) AsObject() Object { return v.obj }

// TypeName returns the Lua type name of v, as reported by type().
func (v Value) TypeName() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBoolean:
		return "boolean"
	case KindInteger, KindFloat:
		return "number"
	case KindObject:
		return v.obj.TypeName()
	default:
		return "unknown"
	}
}

// IsTruthy implements Lua truthiness: everything except nil and false is true.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBoolean:
		return v.n != 0
	default:
		return true
	}
}

// RawEqual implements primitive equality (§3.1): numbers compare by
// mathematical value across int/float, booleans by payload, objects by
// identity (interned strings are pointer-equal by construction so this
// falls out of plain interface comparison).
func RawEqual(a, b Value) bool {
	if a.kind == KindNil && b.kind == KindNil {
		return true
	}
	if a.IsNumber() && b.IsNumber() {
		return numericEqual(a, b)
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBoolean:
		return a.n == b.n
	case KindObject:
		return a.obj == b.obj
	default:
		return false
	}
}

func numericEqual(a, b Value) bool {
	if a.kind == KindInteger && b.kind == KindInteger {
		return int64(a.n) == int64(b.n)
	}
	if a.kind == KindFloat && b.kind == KindFloat {
		return math.Float64frombits(a.n) == math.Float64frombits(b.n)
	}
	// Mixed int/float: compare by mathematical value without losing integer
	// precision when the float is in exact-int64 range.
	var i int64
	var f float64
	if a.kind == KindInteger {
		i, f = int64(a.n), math.Float64frombits(b.n)
	} else {
		i, f = int64(b.n), math.Float64frombits(a.n)
	}
	if f != math.Trunc(f) || f < -9223372036854775808.0 || f >= 9223372036854775808.0 {
		return false
	}
	return int64(f) == i
}
