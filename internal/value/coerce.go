// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import (
	"math"
	"strconv"
	"strings"
)

// StringSource is implemented by the heap's string object so coerce.go does
// not need to import package heap (which in turn imports value).
type StringSource interface {
	Bytes() []byte
}

// ToInteger converts v to an integer, per §4.1: a float converts only when
// exactly representable, and a string converts through ToNumber first.
// Returns ok=false for other non-numbers, NaN, infinities, or non-integral
// floats.
func ToInteger(v Value) (int64, bool) {
	switch v.Kind() {
	case KindInteger:
		return v.AsInt(), true
	case KindFloat:
		f := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		i := int64(f)
		if float64(i) != f {
			return 0, false
		}
		return i, true
	case KindObject:
		if s, ok := v.AsObject().(StringSource); ok {
			if n, ok := ToNumber(Obj(v.AsObject())); ok {
				return ToInteger(n)
			}
			_ = s
		}
	}
	return 0, false
}

// ToNumber converts v to a number Value (integer or float), using the Lua
// number grammar for strings: decimal integers/floats, or hex with an
// optional fractional part and "p" binary exponent. Non-numeric, non-string
// values return ok=false.
func ToNumber(v Value) (Value, bool) {
	switch v.Kind() {
	case KindInteger, KindFloat:
		return v, true
	case KindObject:
		if s, ok := v.AsObject().(StringSource); ok {
			return parseNumber(string(s.Bytes()))
		}
	}
	return Nil, false
}

func parseNumber(raw string) (Value, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Nil, false
	}
	neg := false
	body := s
	if body[0] == '+' || body[0] == '-' {
		neg = body[0] == '-'
		body = body[1:]
	}
	if len(body) > 1 && body[0] == '0' && (body[1] == 'x' || body[1] == 'X') {
		return parseHex(body[2:], neg)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), true
	}
	// strconv.ParseFloat also accepts "inf", "infinity" and "nan", which
	// are not Lua numerals; every spelling of them contains an 'n'.
	if strings.ContainsAny(body, "nN") {
		return Nil, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f), true
	}
	return Nil, false
}

// parseHex parses the body after "0x"/"0X", supporting hex integers and
// Lua's hex-float form (fraction + optional "p" binary exponent).
func parseHex(body string, neg bool) (Value, bool) {
	if body == "" {
		return Nil, false
	}
	hasDot := strings.ContainsAny(body, ".")
	hasExp := strings.ContainsAny(body, "pP")
	if !hasDot && !hasExp {
		u, err := strconv.ParseUint(body, 16, 64)
		if err != nil {
			return Nil, false
		}
		i := int64(u)
		if neg {
			i = -i
		}
		return Int(i), true
	}
	mantissa := body
	exp := 0
	if idx := strings.IndexAny(body, "pP"); idx >= 0 {
		mantissa = body[:idx]
		e, err := strconv.Atoi(body[idx+1:])
		if err != nil {
			return Nil, false
		}
		exp = e
	}
	intPart, fracPart, _ := strings.Cut(mantissa, ".")
	var f float64
	for _, c := range intPart {
		d, ok := hexDigit(c)
		if !ok {
			return Nil, false
		}
		f = f*16 + float64(d)
	}
	scale := 1.0 / 16.0
	for _, c := range fracPart {
		d, ok := hexDigit(c)
		if !ok {
			return Nil, false
		}
		f += float64(d) * scale
		scale /= 16
	}
	f *= math.Pow(2, float64(exp))
	if neg {
		f = -f
	}
	return Float(f), true
}

func hexDigit(c rune) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// ToStringSimple renders v the way the print fallback / tostring without a
// __tostring metamethod would, excluding the metamethod dispatch itself
// (that lives in package meta).
func ToStringSimple(v Value) string {
	switch v.Kind() {
	case KindNil:
		return "nil"
	case KindBoolean:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindInteger:
		return strconv.FormatInt(v.AsInt(), 10)
	case KindFloat:
		return formatFloat(v.AsFloat())
	case KindObject:
		if s, ok := v.AsObject().(StringSource); ok {
			return string(s.Bytes())
		}
		return v.TypeName() + ": 0x0"
	default:
		return "?"
	}
}

// formatFloat matches Lua's "%.14g" default number format, always including
// a decimal point or exponent so floats are visually distinct from integers.
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "nan"
	}
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', 14, 64)
	if !strings.ContainsAny(s, ".eEnif") {
		s += ".0"
	}
	return s
}
