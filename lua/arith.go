// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

import (
	"math"
	"strconv"
	"strings"

	"github.com/aclements/go-minilua/lua/opcode"
)

// toNumber implements the numeric coercion used by arithmetic and
// 'for' loop bounds: numbers pass through, strings are parsed with
// luaO_str2d's hex/decimal rules.
func toNumber(v Value) (Number, bool) {
	switch x := v.(type) {
	case Number:
		return x, true
	case *Str:
		return strToNumber(x.s)
	default:
		return 0, false
	}
}

func strToNumber(s string) (Number, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	if len(t) > 2 && t[0] == '0' && (t[1] == 'x' || t[1] == 'X') {
		n, err := strconv.ParseUint(t[2:], 16, 64)
		if err != nil {
			return 0, false
		}
		return Number(n), true
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return Number(f), true
}

// arith evaluates a binary arithmetic opcode: a direct number fast
// path (including numeric strings, which Lua coerces), else dispatch
// to the matching metamethod.
func (s *State) arith(op opcode.Op, a, b Value) Value {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		switch op {
		case opcode.Add:
			return an + bn
		case opcode.Sub:
			return an - bn
		case opcode.Mul:
			return an * bn
		case opcode.Div:
			return an / bn
		case opcode.Mod:
			return numMod(an, bn)
		case opcode.Pow:
			return Number(math.Pow(float64(an), float64(bn)))
		}
	}
	event, name := arithEvent(op)
	return s.arithMeta(event, a, b, name)
}

// numMod is Lua's floored modulo (a - floor(a/b)*b), which differs
// from math.Mod for operands of mixed sign.
func numMod(a, b Number) Number {
	return Number(float64(a) - math.Floor(float64(a)/float64(b))*float64(b))
}

func arithEvent(op opcode.Op) (int, string) {
	switch op {
	case opcode.Add:
		return tmAdd, "add"
	case opcode.Sub:
		return tmSub, "sub"
	case opcode.Mul:
		return tmMul, "mul"
	case opcode.Div:
		return tmDiv, "div"
	case opcode.Mod:
		return tmMod, "mod"
	case opcode.Pow:
		return tmPow, "pow"
	}
	return tmAdd, "add"
}

// concat evaluates CONCAT over R[from..to]. The operator is
// right-associative, so the accumulator builds from the right;
// adjacent string/number operands collapse directly, anything else
// goes through __concat.
func (s *State) concat(from, to int) Value {
	if from > to {
		return s.g.intern("")
	}
	var acc Value = s.stack[to]
	for i := to - 1; i >= from; i-- {
		left := s.stack[i]
		if isConcatable(left) && isConcatable(acc) {
			acc = s.g.intern(toConcatString(left) + toConcatString(acc))
		} else {
			acc = s.concatMeta(left, acc)
		}
	}
	return acc
}

func toConcatString(v Value) string {
	switch x := v.(type) {
	case *Str:
		return x.s
	case Number:
		return numberToString(x)
	}
	return ""
}
