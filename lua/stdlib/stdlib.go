// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stdlib is a light slice of the Lua standard library (the
// base functions plus small string and table libraries), built
// entirely against the host-facing stack API of package lua. It
// never touches interpreter internals, so it doubles as a working
// example of embedding.
package stdlib

import "github.com/aclements/go-minilua/lua"

// reg is one entry of a luaL_Reg-style registration table.
type reg struct {
	name string
	fn   lua.GoFunc
}

// register mirrors luaL_register: push each function and
// set it as a field of the table at idx. idx must be a pseudo-index
// (stable as the stack grows) or a positive absolute index (also
// stable); a negative index would drift as each function is pushed.
func register(s *lua.State, idx int, funcs []reg) {
	for _, r := range funcs {
		s.PushGoFunction(r.name, r.fn)
		s.SetField(idx, r.name)
	}
}

// newLibTable creates a fresh table, installs funcs into it, and
// binds it under name in the globals.
func newLibTable(s *lua.State, name string, funcs []reg) {
	s.CreateTable(0, len(funcs))
	tblIdx := s.Top()
	register(s, tblIdx, funcs)
	s.SetField(lua.GlobalsIndex, name)
}

// Open installs the base library into the global table plus the
// string and table libraries under their namespace tables.
func Open(s *lua.State) {
	openBase(s)
	openString(s)
	openTable(s)
}
