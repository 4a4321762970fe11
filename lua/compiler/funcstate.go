// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"github.com/aclements/go-minilua/lua"
	"github.com/aclements/go-minilua/lua/opcode"
)

// blockCnt tracks one lexical block: loops
// record their pending break jumps here, and every block remembers
// how many locals were active on entry so leaving it can pop them.
type blockCnt struct {
	previous   *blockCnt
	breakList  int
	isLoop     bool
	hasUpval   bool
	nactvar    int
}

// FuncState holds the in-progress compilation state for one function
// body: it drives register allocation, constant-pool dedup,
// local/upvalue resolution and jump-list patching directly against
// the Proto being assembled, with no intermediate AST.
type FuncState struct {
	proto *lua.Proto
	prev  *FuncState
	p     *Parser

	block *blockCnt

	freereg int
	nactvar int

	// actVar[i] is the Locals index of the i'th currently active
	// register-resident local variable.
	actVar []int

	numK   map[any]int
	jpc    int // pending jump list to be patched to the next emitted pc
	lastLine int
}

func newFuncState(p *Parser, prev *FuncState) *FuncState {
	return &FuncState{
		proto: &lua.Proto{Source: p.chunkName, IsVararg: false},
		prev:  prev,
		p:     p,
		numK:  make(map[any]int),
		jpc:   noJump,
	}
}

// newLocalVar registers name as a pending local variable (one not yet
// active, per real Lua's two-step new_localvar/adjustlocalvars split,
// so that `local x = x` resolves x on the right to the enclosing
// scope's x).
func (fs *FuncState) newLocalVar(name string) {
	fs.proto.Locals = append(fs.proto.Locals, lua.LocalVar{Name: name, StartPC: len(fs.proto.Code)})
	fs.actVar = append(fs.actVar, len(fs.proto.Locals)-1)
}

// adjustLocalVars activates the n most recently declared pending
// locals, assigning each the next free register in declaration order.
func (fs *FuncState) adjustLocalVars(n int) {
	fs.nactvar += n
}

// removeVars closes the scope back down to toLevel active locals,
// recording each removed local's end PC for debug info.
func (fs *FuncState) removeVars(toLevel int) {
	for fs.nactvar > toLevel {
		fs.nactvar--
		idx := fs.actVar[fs.nactvar]
		fs.proto.Locals[idx].EndPC = len(fs.proto.Code)
	}
	fs.actVar = fs.actVar[:fs.nactvar]
}

// searchLocal looks for name among this function's own active locals,
// returning its register slot.
func (fs *FuncState) searchLocal(name string) (int, bool) {
	for i := fs.nactvar - 1; i >= 0; i-- {
		if fs.proto.Locals[fs.actVar[i]].Name == name {
			return i, true
		}
	}
	return 0, false
}

// indexUpvalue finds or adds an UpvalDesc for name, deduplicating
// against upvalues already captured by this function.
func (fs *FuncState) indexUpvalue(name string, inStack bool, index int) int {
	for i, u := range fs.proto.Upvals {
		if u.Name == name && u.InStack == inStack && u.Index == index {
			return i
		}
	}
	fs.proto.Upvals = append(fs.proto.Upvals, lua.UpvalDesc{Name: name, InStack: inStack, Index: index})
	return len(fs.proto.Upvals) - 1
}

// resolveName resolves a name the way singlevaraux does: a local
// of this function, else (recursively) an upvalue reaching into an
// enclosing function's local or upvalue, else a global.
func (fs *FuncState) resolveName(e *expdesc, name string) {
	if reg, ok := fs.searchLocal(name); ok {
		e.k = vlocal
		e.info = reg
		return
	}
	if fs.prev == nil {
		e.k = vglobal
		e.info = fs.stringK(name)
		return
	}
	var parent expdesc
	fs.prev.resolveName(&parent, name)
	switch parent.k {
	case vlocal:
		fs.prev.markUpval(parent.info)
		idx := fs.indexUpvalue(name, true, parent.info)
		e.k = vupval
		e.info = idx
	case vupval:
		idx := fs.indexUpvalue(name, false, parent.info)
		e.k = vupval
		e.info = idx
	default:
		e.k = vglobal
		e.info = fs.stringK(name)
	}
}

// numberK returns the constant-pool index for numeric literal v,
// reusing an existing entry when one already holds the same value.
func (fs *FuncState) numberK(v float64) int {
	if idx, ok := fs.numK[v]; ok {
		return idx
	}
	idx := len(fs.proto.Constants)
	fs.proto.Constants = append(fs.proto.Constants, lua.Number(v))
	fs.numK[v] = idx
	return idx
}

// stringK returns the constant-pool index for string literal s,
// interning it through the target State so its *lua.Str shares the
// same identity as equal strings produced at run time.
func (fs *FuncState) stringK(s string) int {
	key := "s:" + s
	if idx, ok := fs.numK[key]; ok {
		return idx
	}
	idx := len(fs.proto.Constants)
	fs.proto.Constants = append(fs.proto.Constants, fs.p.state.NewString(s))
	fs.numK[key] = idx
	return idx
}

// markUpval flags the innermost enclosing block that still contains
// register idx among its active locals, so leaveBlock knows to emit a
// CLOSE when that block exits.
func (fs *FuncState) markUpval(idx int) {
	b := fs.block
	for b != nil && b.nactvar > idx {
		b = b.previous
	}
	if b != nil {
		b.hasUpval = true
	}
}

func (fs *FuncState) enterBlock(isLoop bool) {
	fs.block = &blockCnt{previous: fs.block, isLoop: isLoop, nactvar: fs.nactvar, breakList: noJump}
}

// leaveBlock closes the innermost block, emitting a CLOSE instruction
// first if any local captured as an upvalue needs to outlive the
// block's own registers, then patches every break jump collected in
// it to the instruction following the block.
func (fs *FuncState) leaveBlock() {
	b := fs.block
	fs.block = b.previous
	fs.removeVars(b.nactvar)
	if b.hasUpval {
		fs.emitABC(opcode.Close, b.nactvar, 0, 0)
	}
	fs.freereg = fs.nactvar
	fs.patchToHere(b.breakList)
}
