// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

// getMetatable returns v's metatable: per-object for tables and
// userdata, per-type for everything else.
func (s *State) getMetatable(v Value) *Table {
	switch x := v.(type) {
	case *Table:
		return x.metatable
	case *UserData:
		return x.metatable
	case Boolean:
		return s.g.metatables[typeBoolean]
	case Number:
		return s.g.metatables[typeNumber]
	case *Str:
		return s.g.metatables[typeString]
	case *LuaClosure, *GoClosure:
		return s.g.metatables[typeFunction]
	case nil:
		return s.g.metatables[typeNil]
	default:
		return nil
	}
}

// fastMetamethod looks event up in mt, short-circuiting through mt's
// absence-flag cache: a set bit means the lookup missed before and mt
// has not been written since (Table.set clears flags on any mutation).
func fastMetamethod(mt *Table, event int, name *Str) Value {
	if mt == nil || mt.flags&(1<<uint(event)) != 0 {
		return nil
	}
	r := mt.get(name)
	if r == nilObject {
		mt.flags |= 1 << uint(event)
		return nil
	}
	return r
}

// getMetamethod looks up event (e.g. tmIndex) on v's metatable,
// returning nil if there is none.
func (s *State) getMetamethod(v Value, event int) Value {
	return fastMetamethod(s.getMetatable(v), event, s.g.metaNames[event])
}

// index is the table-get path used by GETTABLE and GETGLOBAL,
// following __index chains of tables up to maxIndexChain hops, or
// calling a function handler once.
func (s *State) index(t Value, k Value) Value {
	for hop := 0; hop < maxIndexChain; hop++ {
		if tbl, ok := t.(*Table); ok {
			v := tbl.get(k)
			if v != nilObject {
				return v
			}
			h := fastMetamethod(tbl.metatable, tmIndex, s.g.metaNames[tmIndex])
			if h == nil {
				return nil
			}
			if next, ok := h.(*Table); ok {
				t = next
				continue
			}
			return s.call1(h, t, k)
		}
		h := s.getMetamethod(t, tmIndex)
		if h == nil {
			panic(s.newRuntimeError("attempt to index a %s value", TypeName(t)))
		}
		if next, ok := h.(*Table); ok {
			t = next
			continue
		}
		return s.call1(h, t, k)
	}
	panic(s.newRuntimeError("loop in gettable"))
}

// newindex is the table-set path used by SETTABLE and SETGLOBAL,
// symmetric with index through __newindex.
func (s *State) newindex(t Value, k Value, v Value) {
	for hop := 0; hop < maxIndexChain; hop++ {
		if tbl, ok := t.(*Table); ok {
			existing := tbl.get(k)
			if existing == nilObject {
				if h := fastMetamethod(tbl.metatable, tmNewIndex, s.g.metaNames[tmNewIndex]); h != nil {
					if next, ok := h.(*Table); ok {
						t = next
						continue
					}
					s.callDiscard(h, t, k, v)
					return
				}
			}
			if k == nil {
				panic(s.newRuntimeError("table index is nil"))
			}
			if n, ok := k.(Number); ok && n != n {
				panic(s.newRuntimeError("table index is NaN"))
			}
			tbl.set(k, v)
			s.g.gc.barrierValue(tbl, v)
			return
		}
		h := s.getMetamethod(t, tmNewIndex)
		if h == nil {
			panic(s.newRuntimeError("attempt to index a %s value", TypeName(t)))
		}
		if next, ok := h.(*Table); ok {
			t = next
			continue
		}
		s.callDiscard(h, t, k, v)
		return
	}
	panic(s.newRuntimeError("loop in settable"))
}

// call1 invokes a metamethod function with the given arguments and
// returns its first result (nil if none), used by __index, arithmetic
// and comparison dispatch.
func (s *State) call1(fn Value, args ...Value) Value {
	base := s.top
	s.push(fn)
	for _, a := range args {
		s.push(a)
	}
	s.doCall(base, len(args), 1)
	if s.top <= base {
		return nil
	}
	r := s.stack[base]
	s.top = base
	return r
}

func (s *State) callDiscard(fn Value, args ...Value) {
	base := s.top
	s.push(fn)
	for _, a := range args {
		s.push(a)
	}
	s.doCall(base, len(args), 0)
	s.top = base
}

// arithMeta dispatches a binary arithmetic metamethod: the left
// operand's metatable is consulted first, then the right's.
func (s *State) arithMeta(event int, a, b Value, opName string) Value {
	h := s.getMetamethod(a, event)
	if h == nil {
		h = s.getMetamethod(b, event)
	}
	if h == nil {
		bad := a
		if _, ok := a.(Number); ok {
			bad = b
		}
		panic(s.newRuntimeError("attempt to perform arithmetic on a %s value", TypeName(bad)))
	}
	_ = opName
	return s.call1(h, a, b)
}

func (s *State) concatMeta(a, b Value) Value {
	h := s.getMetamethod(a, tmConcat)
	if h == nil {
		h = s.getMetamethod(b, tmConcat)
	}
	if h == nil {
		bad := a
		if isConcatable(a) {
			bad = b
		}
		panic(s.newRuntimeError("attempt to concatenate a %s value", TypeName(bad)))
	}
	return s.call1(h, a, b)
}

func isConcatable(v Value) bool {
	switch v.(type) {
	case Number, *Str:
		return true
	}
	return false
}

// lessThan and lessEqual order numbers and strings directly; anything
// else requires both operands' metatables to carry the identical
// comparison handler, the luaV_lessthan rule.
func (s *State) lessThan(a, b Value) bool {
	if an, ok := a.(Number); ok {
		if bn, ok := b.(Number); ok {
			return an < bn
		}
	}
	if as, ok := a.(*Str); ok {
		if bs, ok := b.(*Str); ok {
			return as.s < bs.s
		}
	}
	return Truthy(s.compareMeta(tmLt, a, b))
}

func (s *State) lessEqual(a, b Value) bool {
	if an, ok := a.(Number); ok {
		if bn, ok := b.(Number); ok {
			return an <= bn
		}
	}
	if as, ok := a.(*Str); ok {
		if bs, ok := b.(*Str); ok {
			return as.s <= bs.s
		}
	}
	return Truthy(s.compareMeta(tmLe, a, b))
}

func (s *State) compareMeta(event int, a, b Value) Value {
	tm1 := s.getMetamethod(a, event)
	tm2 := s.getMetamethod(b, event)
	if tm1 == nil || tm2 == nil || !sameFunction(tm1, tm2) {
		panic(s.newRuntimeError("attempt to compare two %s values", TypeName(a)))
	}
	return s.call1(tm1, a, b)
}

func sameFunction(a, b Value) bool {
	switch x := a.(type) {
	case *LuaClosure:
		y, ok := b.(*LuaClosure)
		return ok && x == y
	case *GoClosure:
		y, ok := b.(*GoClosure)
		return ok && x == y
	}
	return false
}

// equals implements ==: raw equality, then (for two tables only) a
// single __eq lookup on either operand.
func (s *State) equals(a, b Value) bool {
	if rawEquals(a, b) {
		return true
	}
	ta, aIsTable := a.(*Table)
	tb, bIsTable := b.(*Table)
	if aIsTable && bIsTable {
		h := s.getMetamethod(ta, tmEq)
		if h == nil {
			h = s.getMetamethod(tb, tmEq)
		}
		if h != nil {
			return Truthy(s.call1(h, a, b))
		}
	}
	return false
}

// length dispatches the # operator: strings via byte length, tables
// via their __len metamethod if present else Table.Len, anything else
// via __len.
func (s *State) length(v Value) Value {
	switch x := v.(type) {
	case *Str:
		return Number(x.Len())
	case *Table:
		if h := s.getMetamethod(x, tmLen); h != nil {
			return s.call1(h, x)
		}
		return Number(x.Len())
	default:
		h := s.getMetamethod(v, tmLen)
		if h == nil {
			panic(s.newRuntimeError("attempt to get length of a %s value", TypeName(v)))
		}
		return s.call1(h, v)
	}
}

// callTarget coerces a non-callable value via __call, returning the
// function to actually invoke, or false if v has no __call metamethod
// either.
func (s *State) callTarget(v Value) (Value, bool) {
	switch v.(type) {
	case *LuaClosure, *GoClosure:
		return v, true
	}
	if h := s.getMetamethod(v, tmCall); h != nil {
		return h, true
	}
	return nil, false
}
