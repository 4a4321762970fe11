// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"math"

	"github.com/aclements/go-minilua/lua/opcode"
)

// code appends inst to the function's instruction stream, draining
// any pending jump list so it targets this new instruction.
func (fs *FuncState) code(inst opcode.Instruction, line int) int {
	fs.patchList(fs.jpc, len(fs.proto.Code))
	fs.jpc = noJump
	fs.proto.Code = append(fs.proto.Code, inst)
	fs.proto.LineInfo = append(fs.proto.LineInfo, line)
	return len(fs.proto.Code) - 1
}

func (fs *FuncState) emitABC(op opcode.Op, a, b, c int) int {
	return fs.code(opcode.Create(op, a, b, c), fs.p.line())
}

func (fs *FuncState) emitABx(op opcode.Op, a, bx int) int {
	return fs.code(opcode.CreateABx(op, a, bx), fs.p.line())
}

func (fs *FuncState) emitAsBx(op opcode.Op, a, sbx int) int {
	return fs.code(opcode.CreateAsBx(op, a, sbx), fs.p.line())
}

// reserveRegs bumps freereg by n, extending the proto's recorded
// maximum stack size if this is a new high-water mark.
func (fs *FuncState) reserveRegs(n int) {
	fs.freereg += n
	if fs.freereg > fs.proto.MaxStack {
		fs.proto.MaxStack = fs.freereg
	}
}

// freeReg releases reg if it is a temporary (at or above the active
// local count, and the top-most free slot), matching luaK_freereg's
// conservative stack-like deallocation.
func (fs *FuncState) freeReg(reg int) {
	if reg >= fs.nactvar && reg == fs.freereg-1 {
		fs.freereg--
	}
}

func (fs *FuncState) freeExp(e *expdesc) {
	if e.k == vnonreloc {
		fs.freeReg(e.info)
	}
}

// freeExps frees two expression registers in descending order so the
// stack-like freereg never regresses past a still-live temporary.
func (fs *FuncState) freeExps(e1, e2 *expdesc) {
	if e1.k == vnonreloc && e2.k == vnonreloc {
		if e1.info > e2.info {
			fs.freeReg(e1.info)
			fs.freeReg(e2.info)
		} else {
			fs.freeReg(e2.info)
			fs.freeReg(e1.info)
		}
		return
	}
	fs.freeExp(e2)
	fs.freeExp(e1)
}

// --- jump lists -----------------------------------------------------

// jump emits an unpatched JMP, carrying along any jumps already
// pending at this position, and returns the new list head.
func (fs *FuncState) jump() int {
	savedJpc := fs.jpc
	fs.jpc = noJump
	pc := fs.emitAsBx(opcode.Jmp, 0, noJump)
	return fs.concatList(pc, savedJpc)
}

func (fs *FuncState) getJump(pc int) int {
	offset := fs.proto.Code[pc].SBx()
	if offset == noJump {
		return noJump
	}
	return pc + 1 + offset
}

func (fs *FuncState) fixJump(pc, dest int) {
	offset := dest - (pc + 1)
	fs.proto.Code[pc] = fs.proto.Code[pc].SetSBx(offset)
}

// concatList appends list l2 onto l1, returning the combined list.
// Both are pc-linked lists threaded through each JMP's sBx field.
func (fs *FuncState) concatList(l1, l2 int) int {
	if l2 == noJump {
		return l1
	}
	if l1 == noJump {
		return l2
	}
	pc := l1
	for {
		next := fs.getJump(pc)
		if next == noJump {
			break
		}
		pc = next
	}
	fs.fixJump(pc, l2)
	return l1
}

// patchToHere patches every jump in list to target the next
// instruction to be emitted.
func (fs *FuncState) patchToHere(list int) {
	fs.jpc = fs.concatList(fs.jpc, list)
}

// patchList patches every jump in list to target dest directly.
func (fs *FuncState) patchList(list, dest int) {
	for list != noJump {
		next := fs.getJump(list)
		fs.fixJump(list, dest)
		list = next
	}
}

// --- discharging expressions into registers -------------------------

// dischargeVars forces a value that depends on the current scope
// (locals, upvalues, globals, indexing) to either its already-live
// register (locals) or a not-yet-placed instruction (vreloc), per
// luaK_dischargevars.
func (fs *FuncState) dischargeVars(e *expdesc) {
	switch e.k {
	case vlocal:
		e.k = vnonreloc
	case vupval:
		pc := fs.emitABC(opcode.GetUpval, 0, e.info, 0)
		e.k, e.info = vreloc, pc
	case vglobal:
		pc := fs.emitABx(opcode.GetGlobal, 0, e.info)
		e.k, e.info = vreloc, pc
	case vindexed:
		fs.freeReg(e.aux)
		fs.freeReg(e.info)
		pc := fs.emitABC(opcode.GetTable, 0, e.info, e.aux)
		e.k, e.info = vreloc, pc
	case vcall:
		e.k = vnonreloc
		e.info = fs.proto.Code[e.info].A()
	}
}

func (fs *FuncState) discharge2reg(e *expdesc, reg int) {
	fs.dischargeVars(e)
	switch e.k {
	case vnil:
		fs.emitABC(opcode.LoadNil, reg, reg, 0)
	case vtrue:
		fs.emitABC(opcode.LoadBool, reg, 1, 0)
	case vfalse:
		fs.emitABC(opcode.LoadBool, reg, 0, 0)
	case vk:
		fs.emitABx(opcode.LoadK, reg, e.info)
	case vknum:
		fs.emitABx(opcode.LoadK, reg, fs.numberK(e.nval))
	case vreloc:
		fs.proto.Code[e.info] = fs.proto.Code[e.info].SetA(reg)
	case vnonreloc:
		if reg != e.info {
			fs.emitABC(opcode.Move, reg, e.info, 0)
		}
	case vvararg:
		fs.proto.Code[e.info] = fs.proto.Code[e.info].SetA(reg).SetB(2)
	default:
		// vvoid: nothing to load.
	}
	e.k = vnonreloc
	e.info = reg
}

// discharge2anyreg is discharge2reg into whatever register is
// cheapest: the expression's own register if it already has one.
func (fs *FuncState) discharge2anyreg(e *expdesc) {
	fs.dischargeVars(e)
	if e.k == vnonreloc {
		return
	}
	fs.reserveRegs(1)
	fs.discharge2reg(e, fs.freereg-1)
}

func (fs *FuncState) exp2nextReg(e *expdesc) {
	fs.dischargeVars(e)
	fs.freeExp(e)
	fs.reserveRegs(1)
	fs.discharge2reg(e, fs.freereg-1)
}

func (fs *FuncState) exp2anyReg(e *expdesc) int {
	fs.dischargeVars(e)
	if e.k == vnonreloc {
		return e.info
	}
	fs.exp2nextReg(e)
	return e.info
}

// exp2val fully resolves e to a concrete value representation (a
// register, or a true constant), used before comparing or indexing.
func (fs *FuncState) exp2val(e *expdesc) {
	fs.dischargeVars(e)
}

// exp2RK resolves e to an RK operand: a constant-pool reference when
// e is a literal string/number whose index fits, else a register.
func (fs *FuncState) exp2RK(e *expdesc) int {
	fs.exp2val(e)
	switch e.k {
	case vk:
		if e.info <= opcode.MaxIndexRK {
			return opcode.RKAsK(e.info)
		}
	case vknum:
		idx := fs.numberK(e.nval)
		if idx <= opcode.MaxIndexRK {
			return opcode.RKAsK(idx)
		}
	case vtrue, vfalse, vnil:
		// No constant-pool representation in this encoding; fall
		// through to materializing into a register.
	}
	return fs.exp2anyReg(e)
}

// storeVar assigns ex into the variable described by v (a vlocal,
// vupval, vglobal or vindexed expdesc), per luaK_storevar.
func (fs *FuncState) storeVar(v *expdesc, ex *expdesc) {
	switch v.k {
	case vlocal:
		fs.freeExp(ex)
		fs.discharge2reg(ex, v.info)
		return
	case vupval:
		reg := fs.exp2anyReg(ex)
		fs.emitABC(opcode.SetUpval, reg, v.info, 0)
	case vglobal:
		reg := fs.exp2anyReg(ex)
		fs.emitABx(opcode.SetGlobal, reg, v.info)
	case vindexed:
		rk := fs.exp2RK(ex)
		fs.emitABC(opcode.SetTable, v.info, v.aux, rk)
	}
	fs.freeExp(ex)
}

// --- calls and multi-value expansion ---------------------------------

// setMultret rewrites a just-parsed call or vararg expression to
// yield "as many results as available" (B or C = 0), used when it is
// the last element of an expression list.
func (fs *FuncState) setMultret(e *expdesc) { fs.setReturns(e, -1) }

// setReturns fixes how many results a call or vararg expression
// yields: n<0 means "as many as are available" (multiret, B/C=0);
// n>=0 requests exactly n, letting the call machinery's own
// nil-padding fill in any the callee didn't produce, which is what a
// fixed-arity local/assignment needs.
func (fs *FuncState) setReturns(e *expdesc, n int) {
	switch e.k {
	case vcall:
		fs.proto.Code[e.info] = fs.proto.Code[e.info].SetC(n + 1)
	case vvararg:
		fs.proto.Code[e.info] = fs.proto.Code[e.info].SetB(n + 1).SetA(fs.freereg)
		fs.reserveRegs(1)
	}
}

// --- unary/binary operator codegen -----------------------------------

type binOpr int

const (
	opAdd binOpr = iota
	opSub
	opMul
	opDiv
	opMod
	opPow
	opConcat
	opNE
	opEQ
	opLT
	opLE
	opAnd
	opOr
)

// foldArith evaluates an arithmetic operator over two numeric
// literals at compile time, leaving the result in e1. Division and
// modulo by zero are not folded (they must produce inf/nan or raise
// at the instruction's own line at run time), and neither is a NaN
// result.
func (fs *FuncState) foldArith(op binOpr, e1, e2 *expdesc) bool {
	if !e1.isNumeral() || !e2.isNumeral() {
		return false
	}
	v1, v2 := e1.nval, e2.nval
	var r float64
	switch op {
	case opAdd:
		r = v1 + v2
	case opSub:
		r = v1 - v2
	case opMul:
		r = v1 * v2
	case opDiv:
		if v2 == 0 {
			return false
		}
		r = v1 / v2
	case opMod:
		if v2 == 0 {
			return false
		}
		r = v1 - math.Floor(v1/v2)*v2
	case opPow:
		r = math.Pow(v1, v2)
	default:
		return false
	}
	if math.IsNaN(r) {
		return false
	}
	e1.nval = r
	return true
}

// prefix applies unary 'not' ('n'), '-' and '#' (luaK_prefix).
func (fs *FuncState) prefix(op byte, e *expdesc) {
	switch op {
	case '-':
		fs.exp2val(e)
		if e.isNumeral() {
			e.nval = -e.nval
			return
		}
		fs.exp2anyReg(e)
		fs.freeExp(e)
		pc := fs.emitABC(opcode.Unm, 0, e.info, 0)
		e.k, e.info = vreloc, pc
	case '#':
		fs.exp2anyReg(e)
		fs.freeExp(e)
		pc := fs.emitABC(opcode.Len, 0, e.info, 0)
		e.k, e.info = vreloc, pc
	case 'n': // 'not'
		switch e.k {
		case vnil, vfalse:
			e.k = vtrue
		case vtrue, vk, vknum:
			e.k = vfalse
		default:
			fs.exp2anyReg(e)
			fs.freeExp(e)
			pc := fs.emitABC(opcode.Not, 0, e.info, 0)
			e.k, e.info = vreloc, pc
		}
	}
}

// infix is called right after parsing the left operand of a binary
// operator, before the right operand is parsed, matching luaK_infix:
// 'and'/'or' need the left side materialized and tested before the
// right side is even parsed (so it can short-circuit).
func (fs *FuncState) infix(op binOpr, e *expdesc) int {
	switch op {
	case opAnd:
		// Always copy into a fresh temp register (never reuse e's own
		// local/constant slot): posfix below writes the right operand
		// into this same register on the fall-through path, and must
		// not clobber a named local that happened to share it.
		fs.exp2nextReg(e)
		fs.emitABC(opcode.Test, e.info, 0, 0)
		return fs.jump()
	case opOr:
		fs.exp2nextReg(e)
		fs.emitABC(opcode.Test, e.info, 0, 1)
		return fs.jump()
	case opConcat:
		fs.exp2nextReg(e)
	default:
		// Leave numeric literals floating so posfix can fold them.
		if !e.isNumeral() {
			fs.exp2RK(e)
		}
	}
	return noJump
}

// posfix finishes a binary operator once both operands are parsed,
// given the jump produced by infix (only meaningful for and/or).
func (fs *FuncState) posfix(op binOpr, e1, e2 *expdesc, escape int) {
	switch op {
	case opAnd, opOr:
		// Fall-through path: place the right operand in the very
		// register the left operand (and the short-circuit jump) used,
		// so both paths agree on where the result lives.
		fs.discharge2reg(e2, e1.info)
		fs.patchList(escape, len(fs.proto.Code))
		*e1 = *e2
		return
	case opConcat:
		fs.exp2val(e2)
		if e2.k == vreloc && fs.proto.Code[e2.info].Op() == opcode.Concat {
			// Fold "a .. (b .. c)" into one run-length CONCAT,
			// mirroring the operator's right associativity.
			fs.freeExp(e1)
			fs.proto.Code[e2.info] = fs.proto.Code[e2.info].SetB(e1.info)
			e1.k, e1.info = vreloc, e2.info
			return
		}
		fs.exp2nextReg(e2)
		fs.freeExps(e1, e2)
		pc := fs.emitABC(opcode.Concat, 0, e1.info, e2.info)
		e1.k, e1.info = vreloc, pc
		return
	}

	if isArith(op) {
		if fs.foldArith(op, e1, e2) {
			return
		}
		r2 := fs.exp2RK(e2)
		r1 := fs.exp2RK(e1)
		fs.freeExps(e1, e2)
		pc := fs.emitABC(arithOp(op), 0, r1, r2)
		e1.k, e1.info = vreloc, pc
		return
	}

	// Comparisons and equality materialize into a boolean register
	// using the two-LOADBOOL pattern (used whenever a comparison is a
	// value, not just a loop/if condition).
	r2 := fs.exp2RK(e2)
	r1 := fs.exp2RK(e1)
	fs.freeExps(e1, e2)
	a, cop := compareArgs(op)
	fs.emitABC(cop, a, r1, r2)
	jtrue := fs.jump()
	reg := fs.freereg
	fs.reserveRegs(1)
	fs.emitABC(opcode.LoadBool, reg, 0, 1)
	trueDest := len(fs.proto.Code)
	fs.emitABC(opcode.LoadBool, reg, 1, 0)
	fs.patchList(jtrue, trueDest)
	e1.k, e1.info = vnonreloc, reg
}

func isArith(op binOpr) bool {
	switch op {
	case opAdd, opSub, opMul, opDiv, opMod, opPow:
		return true
	}
	return false
}

func arithOp(op binOpr) opcode.Op {
	switch op {
	case opAdd:
		return opcode.Add
	case opSub:
		return opcode.Sub
	case opMul:
		return opcode.Mul
	case opDiv:
		return opcode.Div
	case opMod:
		return opcode.Mod
	case opPow:
		return opcode.Pow
	}
	panic("not an arithmetic operator")
}

// compareArgs picks the opcode and its "A" polarity so that the JMP
// following it is taken exactly when op holds between the operands
// (EQ/LT/LE fall into their following JMP when the comparison result
// equals A).
func compareArgs(op binOpr) (int, opcode.Op) {
	switch op {
	case opEQ:
		return 1, opcode.Eq
	case opNE:
		return 0, opcode.Eq
	case opLT:
		return 1, opcode.Lt
	case opLE:
		return 1, opcode.Le
	}
	panic("not a comparison operator")
}

// condJump discharges e to a register and emits a TEST + JMP that is
// taken when e is falsy (jumpOnTrue=false) or truthy (jumpOnTrue=true),
// returning the pending jump list (used by if/while/repeat).
func (fs *FuncState) condJump(e *expdesc, jumpOnTrue bool) int {
	fs.exp2anyReg(e)
	c := 0
	if jumpOnTrue {
		c = 1
	}
	fs.emitABC(opcode.Test, e.info, 0, c)
	return fs.jump()
}

// newTableCode emits NEWTABLE with floating-byte size hints.
func (fs *FuncState) newTableCode(reg, narr, nrec int) int {
	return fs.emitABC(opcode.NewTable, reg, opcode.Int2fb(uint(narr)), opcode.Int2fb(uint(nrec)))
}
