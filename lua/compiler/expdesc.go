// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

// expKind tags the shape of a partially-compiled expression,
// mirroring lparser's expkind: most have already been "discharged"
// onto a register or are still floating (a constant, a pending jump
// condition, a multi-result call) until the parser decides where they
// need to land.
type expKind int

const (
	vvoid    expKind = iota // no value
	vnil
	vtrue
	vfalse
	vk             // info is a constant-table index
	vknum          // a literal number not yet placed in the constant table
	vnonreloc      // a value fixed in register info
	vlocal         // a local variable in register info
	vupval         // upvalue number info
	vglobal        // global variable; info is the name's constant index
	vindexed       // table[key]; info is the table register, aux the RK key
	vjmp           // info is the pc of a JMP/comparison instruction
	vreloc         // instruction at pc info will store its result in A once placed
	vcall          // a function call result, not yet adjusted
	vvararg        // "..." not yet adjusted
)

// noJump marks an absent entry in a jump list (lcode's NO_JUMP).
const noJump = -1

// expdesc describes one expression as it is produced by the expression
// parser, before dischargeVars/exp2nextReg/exp2anyReg fix it to an
// actual register.
type expdesc struct {
	k    expKind
	info int
	aux  int
	nval float64

	// t and f thread this expression's "true" and "false" exit jumps,
	// linked through each JMP instruction's sBx field as a list.
	t, f int
}

func (e *expdesc) hasJumps() bool { return e.t != e.f }

// isNumeral reports whether e is a plain numeric literal whose value
// is known at compile time (candidate for constant folding).
func (e *expdesc) isNumeral() bool {
	return e.k == vknum && !e.hasJumps()
}
