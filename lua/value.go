// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lua implements a small Lua 5.1 interpreter: the tagged
// value model, tables, the register-based virtual machine, metamethod
// dispatch, an incremental garbage collector and a host-facing stack
// API. The lexer and single-pass compiler live in the sibling package
// lua/compiler; the instruction encoding (shared by compiler and VM)
// lives in lua/opcode.
package lua

import "fmt"

// Value is a tagged Lua value. nil, Boolean and Number are held
// inline in the Go interface; *Str, *Table, *LuaClosure, *GoClosure
// and *UserData are references to collectable objects owned by a
// globalState's GC arena.
//
// Go's nil interface value represents Lua nil; there is no separate
// Nil type, matching how the zero Value naturally behaves as nil in
// every Go context (map lookups, zero-valued struct fields, slice
// growth).
type Value interface{}

// Boolean is the Lua boolean type.
type Boolean bool

// Number is the Lua number type: always a 64-bit float, the Lua 5.1
// numeric model (no separate integer subtype).
type Number float64

// LightUserData is an opaque host pointer value that is not
// collectable and carries no metatable.
type LightUserData struct {
	Ptr any
}

// TypeName returns the Lua type name of v, as used by `type()` and in
// runtime error messages.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case Boolean:
		return "boolean"
	case Number:
		return "number"
	case *Str:
		return "string"
	case *Table:
		return "table"
	case *LuaClosure, *GoClosure:
		return "function"
	case *UserData, LightUserData:
		return "userdata"
	case *State:
		return "thread"
	default:
		return "userdata"
	}
}

// Truthy implements Lua's truthiness rule: everything except nil and
// false is true.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case Boolean:
		return bool(x)
	default:
		return true
	}
}

// rawEquals implements primitive equality (no __eq metamethod): by
// identity for collectable references (strings compare by pointer
// because they are interned), by value otherwise.
func rawEquals(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Boolean:
		y, ok := b.(Boolean)
		return ok && x == y
	case Number:
		y, ok := b.(Number)
		return ok && x == y
	case *Str:
		y, ok := b.(*Str)
		return ok && x == y
	case *Table:
		y, ok := b.(*Table)
		return ok && x == y
	case *LuaClosure:
		y, ok := b.(*LuaClosure)
		return ok && x == y
	case *GoClosure:
		y, ok := b.(*GoClosure)
		return ok && x == y
	case *UserData:
		y, ok := b.(*UserData)
		return ok && x == y
	case LightUserData:
		y, ok := b.(LightUserData)
		return ok && x.Ptr == y.Ptr
	default:
		return false
	}
}

// UserData is a passive box around a host value: it carries a
// metatable and, once its metatable defines __gc, a finalizer the
// collector runs after the box becomes unreachable.
type UserData struct {
	gcHeader
	Data      any
	metatable *Table
	finalizer func(*UserData)
}

func (u *UserData) header() *gcHeader { return &u.gcHeader }
func (u *UserData) traverse(g *globalState) int {
	if u.metatable != nil {
		g.gc.markObject(u.metatable)
	}
	return 16
}

// numberToString renders an integral number below 1e15 in magnitude
// as a plain integer and anything else with the "%.14g" precision of
// Lua's LUAI_NUMFMT, so canonical decimal literals round-trip through
// tostring(tonumber(s)).
func numberToString(n Number) string {
	f := float64(n)
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.14g", f)
}
