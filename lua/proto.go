// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

import "github.com/aclements/go-minilua/lua/opcode"

// UpvalDesc records, for one upvalue slot of a prototype, where the
// enclosing function's compiler found it: a parent local (InStack) or
// a parent upvalue.
type UpvalDesc struct {
	Name    string
	InStack bool
	Index   int
}

// LocalVar is a debug record for one local variable's live range,
// used by error messages and the debug/getinfo surface.
type LocalVar struct {
	Name    string
	StartPC int
	EndPC   int
}

// Proto is the compiled, immutable image of a function. A LuaClosure
// combines a Proto with a concrete set of upvalue bindings and an
// environment table.
type Proto struct {
	Code      []opcode.Instruction
	Constants []Value
	Protos    []*Proto

	LineInfo []int // parallel to Code

	Locals []LocalVar
	Upvals []UpvalDesc

	Source    string
	LineStart int
	LineEnd   int
	NumParams int
	IsVararg  bool
	MaxStack  int
}
