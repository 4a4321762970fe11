// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

// Upvalue is a captured variable with a two-state lifecycle. While
// open it points into a live stack frame's slot; once closed it holds
// its value inline. Open upvalues belonging to one thread are linked
// in address-descending stack-slot order so "close everything at or
// above level L" is a simple prefix walk (see (*State).closeUpvals).
type Upvalue struct {
	gcHeader
	v          *Value // points at stack[stackIndex] while open, at closedVal after
	closedVal  Value
	stackIndex int // only meaningful while open
	thread     *State
	prev, next *Upvalue
}

func (u *Upvalue) header() *gcHeader { return &u.gcHeader }
func (u *Upvalue) traverse(g *globalState) int {
	g.gc.markValue(*u.v)
	return 24
}

func (u *Upvalue) isOpen() bool { return u.thread != nil }

func (u *Upvalue) close() {
	if !u.isOpen() {
		return
	}
	u.closedVal = *u.v
	u.v = &u.closedVal
	if u.prev != nil {
		u.prev.next = u.next
	} else if u.thread.openUpvalHead == u {
		u.thread.openUpvalHead = u.next
	}
	if u.next != nil {
		u.next.prev = u.prev
	}
	u.thread = nil
	u.prev, u.next = nil, nil
}

// LuaClosure binds a compiled Proto to a concrete set of upvalues and
// an environment table.
type LuaClosure struct {
	gcHeader
	Proto  *Proto
	Upvals []*Upvalue
	Env    *Table
}

func (c *LuaClosure) header() *gcHeader { return &c.gcHeader }
func (c *LuaClosure) traverse(g *globalState) int {
	for _, u := range c.Upvals {
		g.gc.markObject(u)
	}
	if c.Env != nil {
		g.gc.markObject(c.Env)
	}
	return 16 + len(c.Upvals)*8
}

// NewClosure builds a closure over p with no upvalues, bound to the
// globals table, registered with the collector. The compiler uses it
// for the top-level closure of a freshly compiled chunk.
func (s *State) NewClosure(p *Proto) *LuaClosure {
	cl := &LuaClosure{Proto: p, Env: s.g.globals}
	s.g.gc.link(cl, 32)
	return cl
}

// GoFunc is the signature of a native (Go) function callable from
// Lua: it receives the interpreter state with its arguments already
// on the stack, pushes its results, and returns the result count
// (mirroring lua_CFunction).
type GoFunc func(s *State) (nResults int, err error)

// GoClosure is the native analogue of a C closure: a Go function
// plus inline upvalue slots, used by the host-facing API and by
// lua/stdlib to register builtins.
type GoClosure struct {
	gcHeader
	Fn     GoFunc
	Upvals []Value
	Env    *Table
	Name   string // for error messages and debug info
}

func (c *GoClosure) header() *gcHeader { return &c.gcHeader }
func (c *GoClosure) traverse(g *globalState) int {
	for _, v := range c.Upvals {
		g.gc.markValue(v)
	}
	if c.Env != nil {
		g.gc.markObject(c.Env)
	}
	return 16 + len(c.Upvals)*8
}
