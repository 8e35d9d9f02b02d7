// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"github.com/probeum/lucore/internal/meta"
	"github.com/probeum/lucore/internal/table"
	"github.com/probeum/lucore/internal/thread"
	"github.com/probeum/lucore/internal/value"
)

// maxIndexChain bounds __index/__newindex chaining through nested tables.
const maxIndexChain = 100

// index implements the '__index' protocol (§4.7): a raw table get that
// misses falls through to a table-valued __index, or a call to a
// function-valued one.
func (vm *Interpreter) index(th *thread.Thread, v, key value.Value, startDepth int) (value.Value, bool, *thread.ExecResult) {
	for i := 0; i < maxIndexChain; i++ {
		if t, ok := v.AsObject().(*table.Table); ok {
			raw := t.Get(key)
			if !raw.IsNil() {
				return raw, false, nil
			}
			handler, has := vm.reg.Lookup(v, value.EventIndex)
			if !has {
				return value.Nil, false, nil
			}
			if ht, ok := handler.AsObject().(*table.Table); ok {
				v = value.Obj(ht)
				continue
			}
			results, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{v, key}, 1, startDepth)
			if disrupted {
				return value.Nil, true, bubble
			}
			if len(results) > 0 {
				return results[0], false, nil
			}
			return value.Nil, false, nil
		}
		handler, has := vm.reg.Lookup(v, value.EventIndex)
		if !has {
			return value.Nil, true, vm.raise(th, vm.errorValue(th, "attempt to index a "+v.TypeName()+" value"), startDepth)
		}
		if ht, ok := handler.AsObject().(*table.Table); ok {
			v = value.Obj(ht)
			continue
		}
		results, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{v, key}, 1, startDepth)
		if disrupted {
			return value.Nil, true, bubble
		}
		if len(results) > 0 {
			return results[0], false, nil
		}
		return value.Nil, false, nil
	}
	return value.Nil, true, vm.raise(th, vm.errorValue(th, "'__index' chain too long; possible loop"), startDepth)
}

// newindex implements '__newindex' (§4.7): a raw set that would create a
// new key on a table lacking that key defers to a table- or function-
// valued __newindex instead.
func (vm *Interpreter) newindex(th *thread.Thread, v, key, val value.Value, startDepth int) *thread.ExecResult {
	for i := 0; i < maxIndexChain; i++ {
		if t, ok := v.AsObject().(*table.Table); ok {
			if !t.Get(key).IsNil() {
				_ = t.Set(key, val)
				return nil
			}
			handler, has := vm.reg.Lookup(v, value.EventNewIndex)
			if !has {
				if err := t.Set(key, val); err != nil {
					return vm.raise(th, vm.errorValue(th, err.Error()), startDepth)
				}
				return nil
			}
			if ht, ok := handler.AsObject().(*table.Table); ok {
				v = value.Obj(ht)
				continue
			}
			_, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{v, key, val}, 0, startDepth)
			if disrupted {
				return bubble
			}
			return nil
		}
		handler, has := vm.reg.Lookup(v, value.EventNewIndex)
		if !has {
			return vm.raise(th, vm.errorValue(th, "attempt to index a "+v.TypeName()+" value"), startDepth)
		}
		if ht, ok := handler.AsObject().(*table.Table); ok {
			v = value.Obj(ht)
			continue
		}
		_, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{v, key, val}, 0, startDepth)
		if disrupted {
			return bubble
		}
		return nil
	}
	return vm.raise(th, vm.errorValue(th, "'__newindex' chain too long; possible loop"), startDepth)
}

// length implements '#' (§4.7): tables use their raw length unless __len
// is present, strings use their byte length, and every other type needs
// __len.
func (vm *Interpreter) length(th *thread.Thread, v value.Value, startDepth int) (value.Value, bool, *thread.ExecResult) {
	if t, ok := v.AsObject().(*table.Table); ok {
		if handler, has := vm.reg.Lookup(v, value.EventLen); has {
			results, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{v}, 1, startDepth)
			if disrupted {
				return value.Nil, true, bubble
			}
			if len(results) > 0 {
				return results[0], false, nil
			}
			return value.Nil, false, nil
		}
		return value.Int(t.Length()), false, nil
	}
	if s, ok := v.AsObject().(value.StringSource); ok {
		return value.Int(int64(len(s.Bytes()))), false, nil
	}
	handler, has := vm.reg.Lookup(v, value.EventLen)
	if !has {
		return value.Nil, true, vm.raise(th, vm.errorValue(th, "attempt to get length of a "+v.TypeName()+" value"), startDepth)
	}
	results, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{v}, 1, startDepth)
	if disrupted {
		return value.Nil, true, bubble
	}
	if len(results) > 0 {
		return results[0], false, nil
	}
	return value.Nil, false, nil
}

// concatPair implements one '..' step (§4.7): numbers/strings concatenate
// directly, anything else dispatches __concat on either operand.
func (vm *Interpreter) concatPair(th *thread.Thread, a, b value.Value, startDepth int) (value.Value, bool, *thread.ExecResult) {
	aStr, aok := concatOperand(a)
	bStr, bok := concatOperand(b)
	if aok && bok {
		return value.Obj(vm.h.InternStr(aStr + bStr)), false, nil
	}
	handler, _, has := vm.reg.LookupBinary(value.EventConcat, a, b)
	if !has {
		bad := a
		if aok {
			bad = b
		}
		return value.Nil, true, vm.raise(th, vm.errorValue(th, "attempt to concatenate a "+bad.TypeName()+" value"), startDepth)
	}
	results, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{a, b}, 1, startDepth)
	if disrupted {
		return value.Nil, true, bubble
	}
	if len(results) > 0 {
		return results[0], false, nil
	}
	return value.Nil, false, nil
}

func concatOperand(v value.Value) (string, bool) {
	switch v.Kind() {
	case value.KindInteger, value.KindFloat:
		return value.ToStringSimple(v), true
	case value.KindObject:
		if s, ok := v.AsObject().(value.StringSource); ok {
			return string(s.Bytes()), true
		}
	}
	return "", false
}

// arith implements a binary arithmetic/bitwise operator with metamethod
// fallback (§4.1, §4.7).
func (vm *Interpreter) arith(th *thread.Thread, ev value.Event, a, b value.Value, startDepth int) (value.Value, bool, *thread.ExecResult) {
	res := value.Arith(ev, a, b)
	if res.Err != nil {
		return value.Nil, true, vm.raise(th, vm.errorValue(th, res.Err.Error()), startDepth)
	}
	if !res.NeedsMeta {
		return res.Value, false, nil
	}
	handler, _, has := vm.reg.LookupBinary(ev, a, b)
	if !has {
		bad := a
		if a.IsNumber() {
			bad = b
		}
		return value.Nil, true, vm.raise(th, vm.errorValue(th, "attempt to perform arithmetic on a "+bad.TypeName()+" value"), startDepth)
	}
	results, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{a, b}, 1, startDepth)
	if disrupted {
		return value.Nil, true, bubble
	}
	if len(results) > 0 {
		return results[0], false, nil
	}
	return value.Nil, false, nil
}

// compareLess/compareLessEq implement '<'/'<=' with __lt/__le fallback.
func (vm *Interpreter) compareLess(th *thread.Thread, a, b value.Value, startDepth int) (bool, bool, *thread.ExecResult) {
	if less, _, ok := value.Compare(a, b); ok {
		return less, false, nil
	}
	handler, _, has := vm.reg.LookupBinary(value.EventLt, a, b)
	if !has {
		return false, true, vm.raise(th, vm.errorValue(th, "attempt to compare two "+a.TypeName()+" values"), startDepth)
	}
	results, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{a, b}, 1, startDepth)
	if disrupted {
		return false, true, bubble
	}
	return len(results) > 0 && results[0].IsTruthy(), false, nil
}

func (vm *Interpreter) compareLessEq(th *thread.Thread, a, b value.Value, startDepth int) (bool, bool, *thread.ExecResult) {
	if _, lessEq, ok := value.Compare(a, b); ok {
		return lessEq, false, nil
	}
	handler, _, has := vm.reg.LookupBinary(value.EventLe, a, b)
	if !has {
		return false, true, vm.raise(th, vm.errorValue(th, "attempt to compare two "+a.TypeName()+" values"), startDepth)
	}
	results, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{a, b}, 1, startDepth)
	if disrupted {
		return false, true, bubble
	}
	return len(results) > 0 && results[0].IsTruthy(), false, nil
}

// equals implements '==' (§4.7): raw equality first, __eq only as a
// fallback between two tables or two userdata of unequal raw identity.
func (vm *Interpreter) equals(th *thread.Thread, a, b value.Value, startDepth int) (bool, bool, *thread.ExecResult) {
	if value.RawEqual(a, b) {
		return true, false, nil
	}
	if !meta.EqualCandidate(a, b) {
		return false, false, nil
	}
	handler, _, has := vm.reg.LookupBinary(value.EventEq, a, b)
	if !has {
		return false, false, nil
	}
	results, disrupted, bubble := vm.callUnprotected(th, handler, []value.Value{a, b}, 1, startDepth)
	if disrupted {
		return false, true, bubble
	}
	return len(results) > 0 && results[0].IsTruthy(), false, nil
}
