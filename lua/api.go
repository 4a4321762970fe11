// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

import "fmt"

// Pseudo-indices: stack indices that address locations outside the
// value stack proper.
const (
	RegistryIndex = -10000
	EnvironIndex  = -10001
	GlobalsIndex  = -10002
)

// UpvalueIndex returns the pseudo-index for a Go closure's i'th
// upvalue (1-based), for use from within a GoFunc.
func UpvalueIndex(i int) int { return GlobalsIndex - i }

func isPseudo(idx int) bool { return idx <= RegistryIndex }

// resolve maps a host-API index (positive, negative, or pseudo) to an
// absolute stack slot, or -1 for a pseudo-index handled separately by
// the caller.
func (s *State) resolve(idx int) int {
	if idx > 0 {
		return s.ci.base + idx - 1
	}
	if idx <= RegistryIndex {
		return -1
	}
	return s.top + idx
}

// Top returns the number of values on the stack above the current
// call's base.
func (s *State) Top() int { return s.top - s.ci.base }

// SetTop sets the stack top relative to the current call's base,
// padding with nil or truncating as needed.
func (s *State) SetTop(n int) {
	newTop := s.ci.base + n
	if newTop > s.top {
		s.grow(newTop - s.top)
		for s.top < newTop {
			s.stack[s.top] = nil
			s.top++
		}
	} else {
		if newTop < s.ci.base {
			newTop = s.ci.base
		}
		s.closeUpvals(newTop)
		s.top = newTop
	}
}

// Pop removes n values from the top of the stack.
func (s *State) Pop(n int) { s.SetTop(s.Top() - n) }

// PushValue pushes a copy of the value at idx.
func (s *State) PushValue(idx int) { s.push(s.Get(idx)) }

// PushAny pushes an already-obtained Value (e.g. one returned from
// Call/PCall) without going through a typed pusher.
func (s *State) PushAny(v Value) { s.push(v) }

// Get reads the value at a host-API index without removing it.
func (s *State) Get(idx int) Value {
	switch {
	case idx == RegistryIndex:
		return s.g.registry
	case idx == EnvironIndex:
		if lc, ok := s.ci.closure.(*LuaClosure); ok {
			return lc.Env
		}
		if gc, ok := s.ci.closure.(*GoClosure); ok {
			return gc.Env
		}
		return s.g.globals
	case idx == GlobalsIndex:
		return s.g.globals
	case idx < GlobalsIndex:
		i := GlobalsIndex - idx
		gc, ok := s.ci.closure.(*GoClosure)
		if !ok || i < 1 || i > len(gc.Upvals) {
			return nil
		}
		return gc.Upvals[i-1]
	default:
		p := s.resolve(idx)
		if p < s.ci.base || p >= s.top {
			return nil
		}
		return s.stack[p]
	}
}

// Set overwrites the value at idx (used by Replace and for the
// upvalue pseudo-indices).
func (s *State) Set(idx int, v Value) {
	switch {
	case idx == GlobalsIndex:
		panic(s.newRuntimeError("cannot replace GLOBALS pseudo-index directly"))
	case idx < GlobalsIndex:
		i := GlobalsIndex - idx
		gc := s.ci.closure.(*GoClosure)
		gc.Upvals[i-1] = v
	default:
		p := s.resolve(idx)
		s.stack[p] = v
	}
}

// Remove deletes the value at idx, shifting everything above it down.
func (s *State) Remove(idx int) {
	p := s.resolve(idx)
	copy(s.stack[p:s.top-1], s.stack[p+1:s.top])
	s.top--
}

// Insert moves the top value into position idx, shifting everything
// at or above idx up.
func (s *State) Insert(idx int) {
	p := s.resolve(idx)
	v := s.stack[s.top-1]
	copy(s.stack[p+1:s.top], s.stack[p:s.top-1])
	s.stack[p] = v
}

// Replace pops the top value and stores it at idx.
func (s *State) Replace(idx int) {
	v := s.stack[s.top-1]
	s.top--
	s.Set(idx, v)
}

// CheckStack ensures room for n more values.
func (s *State) CheckStack(n int) bool {
	s.grow(n)
	return true
}

// Pushers.
func (s *State) PushNil()              { s.push(nil) }
func (s *State) PushBoolean(b bool)    { s.push(Boolean(b)) }
func (s *State) PushNumber(n float64)  { s.push(Number(n)) }
func (s *State) PushInteger(n int64)   { s.push(Number(n)) }
func (s *State) PushString(str string) { s.push(s.g.intern(str)) }

// PushLightUserData pushes an opaque host pointer (not collectable,
// no metatable).
func (s *State) PushLightUserData(p any) { s.push(LightUserData{Ptr: p}) }

// PushThread pushes the thread itself as a value.
func (s *State) PushThread() { s.push(s) }

// NewString interns str and returns it as a Value, without touching
// the stack. The compiler package uses this to build a Proto's
// constant pool so that string constants share the same interning
// table as strings created at run time.
func (s *State) NewString(str string) *Str { return s.g.intern(str) }
func (s *State) PushFString(format string, args ...any) {
	s.push(s.g.intern(fmt.Sprintf(format, args...)))
}
func (s *State) PushGoFunction(name string, fn GoFunc) {
	cl := &GoClosure{Fn: fn, Name: name, Env: s.g.globals}
	s.g.gc.link(cl, 32)
	s.push(cl)
}

// PushGoClosure pops n values off the top of the stack and pushes a
// new GoClosure over fn with those values as its upvalue slots.
func (s *State) PushGoClosure(name string, fn GoFunc, n int) {
	ups := append([]Value(nil), s.stack[s.top-n:s.top]...)
	s.top -= n
	cl := &GoClosure{Fn: fn, Name: name, Upvals: ups, Env: s.g.globals}
	s.g.gc.link(cl, 32+n*8)
	s.push(cl)
}

// NewUserData allocates a userdata box around data and pushes it.
func (s *State) NewUserData(data any) *UserData {
	ud := &UserData{Data: data}
	s.g.gc.link(ud, 32)
	s.g.checkGC(32)
	s.push(ud)
	return ud
}

// Type queries.
func (s *State) Type(idx int) string { return TypeName(s.Get(idx)) }
func (s *State) IsNumber(idx int) bool {
	_, ok := toNumber(s.Get(idx))
	return ok
}
func (s *State) IsString(idx int) bool {
	switch s.Get(idx).(type) {
	case *Str, Number:
		return true
	}
	return false
}
func (s *State) IsTable(idx int) bool {
	_, ok := s.Get(idx).(*Table)
	return ok
}
func (s *State) IsFunction(idx int) bool {
	switch s.Get(idx).(type) {
	case *LuaClosure, *GoClosure:
		return true
	}
	return false
}
func (s *State) IsGoFunction(idx int) bool {
	_, ok := s.Get(idx).(*GoClosure)
	return ok
}
func (s *State) IsNil(idx int) bool { return s.Get(idx) == nil }

// Conversions.
func (s *State) ToNumber(idx int) (float64, bool) {
	n, ok := toNumber(s.Get(idx))
	return float64(n), ok
}
func (s *State) ToInteger(idx int) (int64, bool) {
	n, ok := toNumber(s.Get(idx))
	return int64(n), ok
}
func (s *State) ToBoolean(idx int) bool { return Truthy(s.Get(idx)) }
func (s *State) ToString(idx int) (string, bool) {
	v := s.Get(idx)
	switch x := v.(type) {
	case *Str:
		return x.s, true
	case Number:
		return numberToString(x), true
	default:
		return "", false
	}
}

// ToGoFunction returns the Go function at idx, or nil if the value
// there is not a Go closure.
func (s *State) ToGoFunction(idx int) GoFunc {
	if cl, ok := s.Get(idx).(*GoClosure); ok {
		return cl.Fn
	}
	return nil
}

// ToUserData returns the boxed host value at idx: the Data field of a
// full userdata, or the pointer of a light userdata.
func (s *State) ToUserData(idx int) any {
	switch x := s.Get(idx).(type) {
	case *UserData:
		return x.Data
	case LightUserData:
		return x.Ptr
	}
	return nil
}

func (s *State) ObjLen(idx int) int {
	v := s.length(s.Get(idx))
	n, _ := v.(Number)
	return int(n)
}

// Gets.
func (s *State) GetTable(idx int) {
	t := s.Get(idx)
	k := s.Get(-1)
	s.top--
	s.push(s.index(t, k))
}
func (s *State) GetField(idx int, name string) {
	t := s.Get(idx)
	s.push(s.index(t, s.g.intern(name)))
}
func (s *State) RawGet(idx int) {
	t := s.Get(idx).(*Table)
	k := s.Get(-1)
	s.top--
	v := t.get(k)
	if v == nilObject {
		v = nil
	}
	s.push(v)
}
func (s *State) RawGetI(idx, n int) {
	t := s.Get(idx).(*Table)
	v := t.get(Number(n))
	if v == nilObject {
		v = nil
	}
	s.push(v)
}
func (s *State) CreateTable(narr, nrec int) { s.push(s.g.newTable(narr, nrec)) }
func (s *State) GetMetatable(idx int) bool {
	mt := s.getMetatable(s.Get(idx))
	if mt == nil {
		return false
	}
	s.push(mt)
	return true
}

// GetFenv pushes the environment table of the function at idx (the
// globals table for anything that isn't a function).
func (s *State) GetFenv(idx int) {
	switch x := s.Get(idx).(type) {
	case *LuaClosure:
		s.push(x.Env)
	case *GoClosure:
		s.push(x.Env)
	default:
		s.push(s.g.globals)
	}
}

// SetFenv pops the table on top of the stack and installs it as the
// environment of the function at idx, reporting whether the value
// there accepts one.
func (s *State) SetFenv(idx int) bool {
	env := s.Get(-1).(*Table)
	s.top--
	switch x := s.Get(idx).(type) {
	case *LuaClosure:
		x.Env = env
		s.g.gc.barrierForward(x, env)
		return true
	case *GoClosure:
		x.Env = env
		s.g.gc.barrierForward(x, env)
		return true
	}
	return false
}

// Sets, symmetric with the Gets.
func (s *State) SetTableAPI(idx int) {
	t := s.Get(idx)
	v := s.Get(-1)
	k := s.Get(-2)
	s.top -= 2
	s.newindex(t, k, v)
}
func (s *State) SetField(idx int, name string) {
	t := s.Get(idx)
	v := s.Get(-1)
	s.top--
	s.newindex(t, s.g.intern(name), v)
}
func (s *State) RawSet(idx int) {
	t := s.Get(idx).(*Table)
	v := s.Get(-1)
	k := s.Get(-2)
	s.top -= 2
	if k == nil {
		panic(s.newRuntimeError("table index is nil"))
	}
	if n, ok := k.(Number); ok && n != n {
		panic(s.newRuntimeError("table index is NaN"))
	}
	t.set(k, v)
	s.g.gc.barrierValue(t, v)
}
func (s *State) RawSetI(idx, n int) {
	t := s.Get(idx).(*Table)
	v := s.Get(-1)
	s.top--
	t.set(Number(n), v)
	s.g.gc.barrierValue(t, v)
}

// SetMetatable pops the table on top of the stack and installs it as
// the metatable of the value at idx. For userdata it also wires a
// __gc metafield into the collector's finalizer queue; for tables it
// records weak-mode from __mode.
func (s *State) SetMetatable(idx int) {
	mtVal := s.Get(-1)
	s.top--
	var mt *Table
	if mtVal != nil {
		mt = mtVal.(*Table)
	}
	switch x := s.Get(idx).(type) {
	case *Table:
		x.metatable = mt
		x.weakMode = s.weakModeOf(mt)
		s.g.gc.barrierBack(x)
	case *UserData:
		x.metatable = mt
		if fin := s.finalizerOf(mt); fin != nil {
			x.finalizer = fin
		}
		if mt != nil {
			s.g.gc.barrierForward(x, mt)
		}
	default:
		panic(s.newRuntimeError("cannot set a metatable on a %s value", TypeName(x)))
	}
}

// weakModeOf decodes a metatable's __mode string ("k", "v", "kv")
// into the table's weak-reference bitmask.
func (s *State) weakModeOf(mt *Table) uint8 {
	if mt == nil {
		return 0
	}
	m := mt.get(s.g.metaNames[tmMode])
	str, ok := m.(*Str)
	if !ok {
		return 0
	}
	var mode uint8
	for i := 0; i < str.Len(); i++ {
		switch str.s[i] {
		case 'k':
			mode |= weakKeys
		case 'v':
			mode |= weakValues
		}
	}
	return mode
}

// finalizerOf turns a metatable's __gc function into a collector
// finalizer that calls it with the userdata, swallowing any error
// (finalizers run outside every protected frame).
func (s *State) finalizerOf(mt *Table) func(*UserData) {
	if mt == nil {
		return nil
	}
	h := mt.get(s.g.metaNames[tmGC])
	if h == nilObject || h == nil {
		return nil
	}
	switch h.(type) {
	case *LuaClosure, *GoClosure:
	default:
		return nil
	}
	return func(ud *UserData) {
		s.Call(h, ud)
	}
}

// SetStringMetatable installs mt as the per-type metatable shared by
// every string value, the way luaopen_string's createmetatable wires
// __index to the string library table so `("x"):upper()` dispatches
// there.
func (s *State) SetStringMetatable(mt *Table) { s.g.metatables[typeString] = mt }

// DefaultLess applies the `<` operator's default ordering (numbers,
// strings, or a shared `__lt` metamethod) to a and b, turning a
// comparison-error panic into a returned error so host code (e.g.
// lua/stdlib's table.sort) can report a failed comparator instead of
// crashing the sort.
func (s *State) DefaultLess(a, b Value) (less bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*Error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	less = s.lessThan(a, b)
	return
}

// RawEqual reports raw equality between two indices, with no
// metamethod involved.
func (s *State) RawEqual(i1, i2 int) bool { return rawEquals(s.Get(i1), s.Get(i2)) }

// Next advances table iteration: pops a key, pushes the following
// key/value pair, and reports whether one was found.
func (s *State) Next(idx int) bool {
	t := s.Get(idx).(*Table)
	k := s.Get(-1)
	s.top--
	nk, nv, ok := t.next(k)
	if !ok || nk == nil {
		return false
	}
	s.push(nk)
	s.push(nv)
	return true
}

// Concat pops n values and pushes their concatenation.
func (s *State) Concat(n int) {
	if n == 0 {
		s.push(s.g.intern(""))
		return
	}
	v := s.concat(s.top-n, s.top-1)
	s.top -= n
	s.push(v)
}

// PCallAPI is the stack-based form of PCall: args and the function
// are already on the stack, nresults<0 means "all".
func (s *State) PCallAPI(nargs, nresults int, errfuncIdx int) Status {
	var msgh Value
	if errfuncIdx != 0 {
		msgh = s.Get(errfuncIdx)
	}
	base := s.top - nargs - 1
	fn := s.stack[base]
	args := append([]Value(nil), s.stack[base+1:s.top]...)
	s.top = base
	results, status, err := s.PCall(fn, args, msgh)
	if status != StatusOK {
		if e, ok := err.(*Error); ok {
			s.push(e.Value)
		} else {
			s.push(nil)
		}
		return status
	}
	if nresults >= 0 {
		for len(results) < nresults {
			results = append(results, nil)
		}
		results = results[:nresults]
	}
	for _, r := range results {
		s.push(r)
	}
	return status
}

// Error raises v as a Lua error: the Go analogue of lua_error,
// implemented as a panic unwound by the nearest PCall.
func (s *State) Error(v Value) {
	panic(&Error{Status: StatusRuntimeError, Value: v})
}

// GC drives the collector through one complete collection cycle.
func (s *State) GC() { s.g.collectGarbage() }

// GCCount returns the collector's current accounted heap size in
// bytes.
func (s *State) GCCount() int { return s.g.gc.totalBytes }

// DebugInfo describes one activation record, the subset of lua_Debug
// this interpreter tracks.
type DebugInfo struct {
	Source      string
	CurrentLine int
	What        string // "main", "Lua", "Go", or "tail"
	Name        string // best-effort name for Go functions
}

// GetStack reports whether an activation record exists `level` calls
// above the current one (level 0 is the running function), filling in
// its DebugInfo.
func (s *State) GetStack(level int) (DebugInfo, bool) {
	idx := len(s.callInfo) - 1 - level
	if idx < 1 || idx >= len(s.callInfo) {
		return DebugInfo{}, false
	}
	ci := s.callInfo[idx]
	var di DebugInfo
	switch fn := ci.closure.(type) {
	case *LuaClosure:
		di.Source = fn.Proto.Source
		if ci.savedPC-1 >= 0 && ci.savedPC-1 < len(fn.Proto.LineInfo) {
			di.CurrentLine = fn.Proto.LineInfo[ci.savedPC-1]
		}
		di.What = "Lua"
		if idx == 1 {
			di.What = "main"
		}
		if ci.isTailcall {
			di.What = "tail"
		}
	case *GoClosure:
		di.What = "Go"
		di.Name = fn.Name
		di.CurrentLine = -1
	}
	return di, true
}
