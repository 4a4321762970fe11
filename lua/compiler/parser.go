// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"io"

	"github.com/aclements/go-minilua/lua"
	"github.com/aclements/go-minilua/lua/opcode"
)

// Parser drives the lexer token-by-token while emitting bytecode as
// it goes: there is no intermediate AST, mirroring the single-pass
// lparser.c/lcode.c design.
type Parser struct {
	lex       *lexer
	cur       token
	ahead     token
	hasAhead  bool
	chunkName string
	state     *lua.State
	fs        *FuncState
}

func (p *Parser) line() int { return p.cur.line }

func (p *Parser) errorf(format string, args ...any) {
	panic(lua.NewSyntaxError(p.chunkName, p.cur.line, format, args...))
}

func (p *Parser) next() {
	if p.hasAhead {
		p.cur = p.ahead
		p.hasAhead = false
		return
	}
	p.cur = p.lex.next()
}

func (p *Parser) lookahead() token {
	if !p.hasAhead {
		p.ahead = p.lex.next()
		p.hasAhead = true
	}
	return p.ahead
}

func (p *Parser) is(k tokenKind) bool { return p.cur.kind == k }

func (p *Parser) testNext(k tokenKind) bool {
	if p.is(k) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) check(k tokenKind) {
	if !p.is(k) {
		p.errorf("'%s' expected", tokenDesc(k))
	}
}

func (p *Parser) expect(k tokenKind) token {
	p.check(k)
	t := p.cur
	p.next()
	return t
}

func (p *Parser) checkMatch(what, who tokenKind, openLine int) {
	if !p.testNext(what) {
		if openLine == p.cur.line {
			p.errorf("'%s' expected", tokenDesc(what))
		} else {
			p.errorf("'%s' expected (to close '%s' at line %d)", tokenDesc(what), tokenDesc(who), openLine)
		}
	}
}

func (p *Parser) checkName() string {
	p.check(tkName)
	s := p.cur.str
	p.next()
	return s
}

func tokenDesc(k tokenKind) string {
	switch k {
	case tkEOF:
		return "<eof>"
	case tkName:
		return "<name>"
	case tkString:
		return "<string>"
	case tkNumber:
		return "<number>"
	case tkEq:
		return "=="
	case tkNe:
		return "~="
	case tkLe:
		return "<="
	case tkGe:
		return ">="
	case tkConcat:
		return ".."
	case tkDots:
		return "..."
	}
	for name, kw := range keywords {
		if kw == k {
			return name
		}
	}
	if k >= 0 && k < 256 {
		return string(rune(k))
	}
	return "?"
}

// Compile parses the Lua chunk read from r and returns its top-level
// closure, ready to run against state's globals.
func Compile(state *lua.State, r io.Reader, chunkName string) (cl *lua.LuaClosure, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(*lua.Error); ok {
				err = e
				return
			}
			panic(rec)
		}
	}()

	p := &Parser{lex: newLexer(r, chunkName), chunkName: chunkName, state: state}
	p.next()

	fs := newFuncState(p, nil)
	fs.proto.IsVararg = true
	fs.proto.Source = chunkName
	fs.proto.LineStart = 1
	p.fs = fs
	fs.enterBlock(false)

	p.statList()
	p.expect(tkEOF)

	fs.leaveBlock()
	fs.emitABC(opcode.Return, 0, 1, 0)
	fs.proto.LineEnd = p.cur.line

	return state.NewClosure(fs.proto), nil
}

// --- statements -------------------------------------------------------

func blockFollow(k tokenKind) bool {
	switch k {
	case tkEOF, tkEnd, tkElse, tkElseif, tkUntil:
		return true
	}
	return false
}

func (p *Parser) statList() {
	for !blockFollow(p.cur.kind) {
		if p.is(tkReturn) {
			p.retStat()
			return
		}
		p.statement()
		// Statement boundary: every temporary is dead.
		p.fs.freereg = p.fs.nactvar
	}
}

func (p *Parser) statement() {
	switch p.cur.kind {
	case tokenKind(';'):
		p.next()
	case tkIf:
		p.ifStat()
	case tkWhile:
		p.whileStat()
	case tkDo:
		p.next()
		line := p.cur.line
		p.fs.enterBlock(false)
		p.statList()
		p.fs.leaveBlock()
		p.checkMatch(tkEnd, tkDo, line)
	case tkFor:
		p.forStat()
	case tkRepeat:
		p.repeatStat()
	case tkFunction:
		p.funcStat()
	case tkLocal:
		p.next()
		if p.testNext(tkFunction) {
			p.localFuncStat()
		} else {
			p.localStat()
		}
	case tkBreak:
		p.breakStat()
	default:
		p.exprStat()
	}
}

func (p *Parser) block() {
	p.fs.enterBlock(false)
	p.statList()
	p.fs.leaveBlock()
}

func (p *Parser) retStat() {
	p.next()
	fs := p.fs
	var e expdesc
	first, nret := 0, 0
	if blockFollow(p.cur.kind) || p.is(tokenKind(';')) {
		first, nret = 0, 0
	} else {
		nret = p.expList(&e)
		if isMultiValue(e.k) {
			fs.setMultret(&e)
			if e.k == vcall && nret == 1 {
				// `return f(...)` alone: rewrite the CALL into a
				// TAILCALL so the VM reuses the current frame.
				inst := fs.proto.Code[e.info]
				fs.proto.Code[e.info] = inst.SetOp(opcode.TailCall)
				first = inst.A()
				fs.emitABC(opcode.Return, first, 0, 0)
				p.testNext(tokenKind(';'))
				return
			}
			first = fs.nactvar
			nret = -1 // return everything up to top
		} else {
			if nret == 1 {
				first = fs.exp2anyReg(&e)
			} else {
				fs.exp2nextReg(&e)
				first = fs.nactvar
			}
		}
	}
	b := 0
	if nret >= 0 {
		b = nret + 1
	}
	fs.emitABC(opcode.Return, first, b, 0)
	p.testNext(tokenKind(';'))
}

func (p *Parser) breakStat() {
	p.next()
	b := p.fs.block
	for b != nil && !b.isLoop {
		b = b.previous
	}
	if b == nil {
		p.errorf("no loop to break")
	}
	b.breakList = p.fs.concatList(b.breakList, p.fs.jump())
}

func (p *Parser) ifStat() {
	fs := p.fs
	var escapeList int = noJump
	escapeList = p.testThenBlock(escapeList)
	for p.is(tkElseif) {
		escapeList = p.testThenBlock(escapeList)
	}
	if p.testNext(tkElse) {
		p.block()
	}
	p.checkMatch(tkEnd, tkIf, p.cur.line)
	fs.patchToHere(escapeList)
}

func (p *Parser) testThenBlock(escapeList int) int {
	fs := p.fs
	p.next() // 'if' or 'elseif'
	var cond expdesc
	p.expr(&cond)
	p.expect(tkThen)
	falseList := fs.condJump(&cond, false)
	p.block()
	if p.is(tkElse) || p.is(tkElseif) {
		escapeList = fs.concatList(escapeList, fs.jump())
	}
	fs.patchToHere(falseList)
	return escapeList
}

func (p *Parser) whileStat() {
	fs := p.fs
	line := p.cur.line
	p.next()
	loopStart := len(fs.proto.Code)
	var cond expdesc
	p.expr(&cond)
	p.expect(tkDo)
	exitList := fs.condJump(&cond, false)
	fs.enterBlock(true)
	p.block()
	fs.patchList(fs.jump(), loopStart)
	p.checkMatch(tkEnd, tkWhile, line)
	fs.leaveBlock()
	fs.patchToHere(exitList)
}

func (p *Parser) repeatStat() {
	fs := p.fs
	line := p.cur.line
	p.next()
	loopStart := len(fs.proto.Code)
	fs.enterBlock(true)
	p.statList()
	p.checkMatch(tkUntil, tkRepeat, line)
	var cond expdesc
	p.expr(&cond)
	condList := fs.condJump(&cond, false)
	fs.patchList(condList, loopStart)
	fs.leaveBlock()
}

func (p *Parser) forStat() {
	line := p.cur.line
	p.next()
	name := p.checkName()
	if p.is(tokenKind('=')) {
		p.numericForStat(name, line)
	} else if p.is(tokenKind(',')) || p.is(tkIn) {
		p.genericForStat(name, line)
	} else {
		p.errorf("'=' or 'in' expected")
	}
}

func (p *Parser) numericForStat(name string, line int) {
	fs := p.fs
	p.next() // '='
	var e expdesc
	p.expr(&e)
	fs.exp2nextReg(&e)
	p.expect(tokenKind(','))
	p.expr(&e)
	fs.exp2nextReg(&e)
	if p.testNext(tokenKind(',')) {
		p.expr(&e)
		fs.exp2nextReg(&e)
	} else {
		// Default step of 1.
		reg := fs.freereg
		fs.reserveRegs(1)
		fs.emitABx(opcode.LoadK, reg, fs.numberK(1))
	}
	fs.newLocalVar("(for index)")
	fs.newLocalVar("(for limit)")
	fs.newLocalVar("(for step)")
	fs.newLocalVar(name)
	fs.adjustLocalVars(4)
	fs.reserveRegs(1) // the visible loop variable, above the control trio
	prep := fs.emitAsBx(opcode.ForPrep, fs.nactvar-4, noJump)
	p.expect(tkDo)
	fs.enterBlock(true)
	p.block()
	loopPc := fs.emitAsBx(opcode.ForLoop, fs.nactvar-4, noJump)
	fs.fixJump(prep, len(fs.proto.Code)-1)
	fs.fixJump(loopPc, prep+1)
	p.checkMatch(tkEnd, tkFor, line)
	fs.leaveBlock()
}

func (p *Parser) genericForStat(first string, line int) {
	fs := p.fs
	names := []string{first}
	for p.testNext(tokenKind(',')) {
		names = append(names, p.checkName())
	}
	p.expect(tkIn)
	var e expdesc
	n := p.expList(&e)
	p.adjustAssign(3, n, &e)
	fs.newLocalVar("(for generator)")
	fs.newLocalVar("(for state)")
	fs.newLocalVar("(for control)")
	for _, nm := range names {
		fs.newLocalVar(nm)
	}
	fs.adjustLocalVars(3 + len(names))
	fs.reserveRegs(len(names)) // the visible loop variables
	p.expect(tkDo)
	base := fs.nactvar - len(names) - 3
	// JMP straight to the TFORLOOP test, so the iterator runs once
	// before the body ever does; TFORLOOP's own trailing JMP below then
	// loops back to bodyStart on every later pass.
	prepJump := fs.jump()
	bodyStart := prepJump + 1
	fs.enterBlock(true)
	p.block()
	fs.patchToHere(prepJump)
	fs.emitABC(opcode.TForLoop, base, 0, len(names))
	backJump := fs.jump()
	fs.fixJump(backJump, bodyStart)
	p.checkMatch(tkEnd, tkFor, line)
	fs.leaveBlock()
}

func (p *Parser) funcStat() {
	line := p.cur.line
	p.next()
	var target expdesc
	isMethod := p.funcName(&target)
	var val expdesc
	p.funcBody(&val, isMethod, line)
	p.fs.storeVar(&target, &val)
}

// funcName parses 'funcname -> Name {'.' Name} [':' Name]', leaving v
// describing the assignable target and reporting whether a method
// name (needing an implicit self parameter) was found.
func (p *Parser) funcName(v *expdesc) bool {
	fs := p.fs
	name := p.checkName()
	fs.resolveName(v, name)
	for p.is(tokenKind('.')) {
		p.next()
		key := p.checkName()
		p.fieldAccess(v, key)
	}
	if p.is(tokenKind(':')) {
		p.next()
		key := p.checkName()
		p.fieldAccess(v, key)
		return true
	}
	return false
}

func (p *Parser) fieldAccess(v *expdesc, key string) {
	fs := p.fs
	fs.exp2anyReg(v)
	var idx expdesc
	idx.k = vk
	idx.info = fs.stringK(key)
	*v = expdesc{k: vindexed, info: v.info, aux: fs.exp2RK(&idx)}
}

func (p *Parser) funcBody(v *expdesc, isMethod bool, line int) {
	parent := p.fs
	fs := newFuncState(p, parent)
	fs.proto.LineStart = line
	p.fs = fs
	fs.enterBlock(false)

	p.expect(tokenKind('('))
	if isMethod {
		fs.newLocalVar("self")
		fs.adjustLocalVars(1)
		fs.reserveRegs(1)
	}
	nparams := 0
	if isMethod {
		nparams = 1
	}
	if !p.is(tokenKind(')')) {
		for {
			if p.is(tkName) {
				fs.newLocalVar(p.checkName())
				nparams++
			} else if p.is(tkDots) {
				p.next()
				fs.proto.IsVararg = true
				break
			} else {
				p.errorf("<name> or '...' expected")
			}
			if !p.testNext(tokenKind(',')) {
				break
			}
		}
	}
	fs.adjustLocalVars(nparams - boolToInt(isMethod))
	fs.reserveRegs(nparams - boolToInt(isMethod))
	fs.proto.NumParams = nparams
	p.expect(tokenKind(')'))

	p.statList()
	fs.proto.LineEnd = p.cur.line
	p.checkMatch(tkEnd, tkFunction, line)

	fs.leaveBlock()
	fs.emitABC(opcode.Return, 0, 1, 0)

	parent.proto.Protos = append(parent.proto.Protos, fs.proto)
	pc := parent.emitABx(opcode.Closure, 0, len(parent.proto.Protos)-1)
	// The VM's CLOSURE case skips one instruction per upvalue the
	// nested prototype captures (it reads InStack/Index straight off
	// proto2.Upvals, not off these); emit a filler MOVE/GETUPVAL per
	// upvalue purely to keep pc alignment, matching the 5.1 bytecode
	// convention even though nothing here decodes them.
	for _, ud := range fs.proto.Upvals {
		if ud.InStack {
			parent.emitABC(opcode.Move, 0, ud.Index, 0)
		} else {
			parent.emitABC(opcode.GetUpval, 0, ud.Index, 0)
		}
	}
	p.fs = parent
	// Leave v as a pending VRELOC: callers (funcstat's storeVar,
	// localfunc's discharge2reg, or ordinary expression discharge for a
	// function-expression) decide where the closure actually lands.
	v.k, v.info = vreloc, pc
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (p *Parser) localFuncStat() {
	fs := p.fs
	name := p.checkName()
	fs.newLocalVar(name)
	fs.adjustLocalVars(1)
	reg := fs.nactvar - 1
	fs.reserveRegs(1)
	var v expdesc
	line := p.cur.line
	p.funcBody(&v, false, line)
	fs.discharge2reg(&v, reg)
}

func (p *Parser) localStat() {
	fs := p.fs
	var names []string
	names = append(names, p.checkName())
	for p.testNext(tokenKind(',')) {
		names = append(names, p.checkName())
	}
	var e expdesc
	n := 0
	if p.testNext(tokenKind('=')) {
		n = p.expList(&e)
	} else {
		e.k = vvoid
	}
	p.adjustAssign(len(names), n, &e)
	for _, nm := range names {
		fs.newLocalVar(nm)
	}
	fs.adjustLocalVars(len(names))
}

// adjustAssign reconciles n values against m targets for
// assignment/local/for-in right-hand sides: extra values are dropped
// (freeing their registers), missing ones become nil, and a trailing
// call/vararg expands to fill the remainder.
func (p *Parser) adjustAssign(nvars, nexps int, e *expdesc) {
	fs := p.fs
	extra := nvars - nexps
	if isMultiValue(e.k) {
		extra++
		if extra < 0 {
			extra = 0
		}
		// Request exactly `extra` results (not plain multiret): a fixed
		// count lets the call/vararg machinery's own nil-padding supply
		// any the source expression falls short of, which a fixed-arity
		// local/assignment needs (real multiret is for forwarding an
		// unknown count, e.g. a trailing call argument or return).
		// One result slot is already accounted (a call keeps its own
		// base register; setReturns reserves the vararg's landing
		// slot), so reserve the rest.
		fs.setReturns(e, extra)
		if extra > 1 {
			fs.reserveRegs(extra - 1)
		}
	} else {
		if e.k != vvoid {
			fs.exp2nextReg(e)
		}
		if extra > 0 {
			reg := fs.freereg
			fs.reserveRegs(extra)
			fs.emitABC(opcode.LoadNil, reg, reg+extra-1, 0)
		}
	}
	if nexps > nvars && e.k != vvoid {
		fs.freereg -= nexps - nvars
	}
}

func isMultiValue(k expKind) bool { return k == vcall || k == vvararg }

func (p *Parser) exprStat() {
	fs := p.fs
	var v expdesc
	p.suffixedExp(&v)
	if p.is(tokenKind('=')) || p.is(tokenKind(',')) {
		targets := []expdesc{v}
		for p.testNext(tokenKind(',')) {
			var t expdesc
			p.suffixedExp(&t)
			targets = append(targets, t)
		}
		p.expect(tokenKind('='))
		var e expdesc
		n := p.expList(&e)
		if n == len(targets) {
			// All but the last RHS value are already sitting in
			// consecutive registers (expList pushed each non-last
			// expression via exp2nextReg); push the last one too so
			// every target has a register-resident value to consume,
			// last-to-first, letting storeVar's own freeExp retire each
			// register as it's used.
			fs.exp2nextReg(&e)
		} else {
			p.adjustAssign(len(targets), n, &e)
		}
		for i := len(targets) - 1; i >= 0; i-- {
			var tmp expdesc
			tmp.k, tmp.info = vnonreloc, fs.freereg-1
			fs.storeVar(&targets[i], &tmp)
		}
		return
	}
	if v.k != vcall {
		p.errorf("syntax error")
	}
	fs.proto.Code[v.info] = fs.proto.Code[v.info].SetC(1)
}

// --- expressions --------------------------------------------------

func (p *Parser) expList(e *expdesc) int {
	n := 1
	p.expr(e)
	for p.testNext(tokenKind(',')) {
		p.fs.exp2nextReg(e)
		p.expr(e)
		n++
	}
	return n
}

type opEntry struct {
	left, right int
	op          binOpr
}

func binOpFor(k tokenKind) (opEntry, bool) {
	switch k {
	case tokenKind('+'):
		return opEntry{6, 6, opAdd}, true
	case tokenKind('-'):
		return opEntry{6, 6, opSub}, true
	case tokenKind('*'):
		return opEntry{7, 7, opMul}, true
	case tokenKind('/'):
		return opEntry{7, 7, opDiv}, true
	case tokenKind('%'):
		return opEntry{7, 7, opMod}, true
	case tokenKind('^'):
		return opEntry{10, 9, opPow}, true
	case tkConcat:
		return opEntry{5, 4, opConcat}, true
	case tkEq:
		return opEntry{3, 3, opEQ}, true
	case tkNe:
		return opEntry{3, 3, opNE}, true
	case tokenKind('<'):
		return opEntry{3, 3, opLT}, true
	case tokenKind('>'):
		return opEntry{3, 3, opLT}, true // swapped at the call site
	case tkLe:
		return opEntry{3, 3, opLE}, true
	case tkGe:
		return opEntry{3, 3, opLE}, true // swapped at the call site
	case tkAnd:
		return opEntry{2, 2, opAnd}, true
	case tkOr:
		return opEntry{1, 1, opOr}, true
	}
	return opEntry{}, false
}

const unaryPriority = 8

// expr parses an expression with operator-precedence climbing,
// leaving the result in e without necessarily placing it in a
// register (callers decide via exp2nextReg/exp2anyReg/exp2RK).
func (p *Parser) expr(e *expdesc) { p.subExpr(e, 0) }

func (p *Parser) subExpr(e *expdesc, limit int) binOpr {
	fs := p.fs
	if p.is(tkNot) || p.is(tokenKind('-')) || p.is(tokenKind('#')) {
		var op byte
		switch {
		case p.is(tkNot):
			op = 'n'
		case p.is(tokenKind('-')):
			op = '-'
		default:
			op = '#'
		}
		p.next()
		p.subExpr(e, unaryPriority)
		fs.prefix(op, e)
	} else {
		p.simpleExp(e)
	}

	for {
		entry, ok := binOpFor(p.cur.kind)
		if !ok || entry.left <= limit {
			break
		}
		op := entry.op
		swap := p.cur.kind == tokenKind('>') || p.cur.kind == tkGe
		p.next()
		if swap {
			// a > b  ==  b < a ; a >= b == b <= a.
			escape := fs.infix(op, e)
			var e2 expdesc
			p.subExpr(&e2, entry.right)
			// posfix expects (left, right) in program order for the
			// RK operands; swap so the emitted comparison is b OP a.
			fs.posfix(op, &e2, e, escape)
			*e = e2
			continue
		}
		escape := fs.infix(op, e)
		var e2 expdesc
		p.subExpr(&e2, entry.right)
		fs.posfix(op, e, &e2, escape)
	}
	return 0
}

func (p *Parser) simpleExp(e *expdesc) {
	switch p.cur.kind {
	case tkNumber:
		e.k, e.nval = vknum, p.cur.num
		p.next()
	case tkString:
		e.k, e.info = vk, p.fs.stringK(p.cur.str)
		p.next()
	case tkNil:
		e.k = vnil
		p.next()
	case tkTrue:
		e.k = vtrue
		p.next()
	case tkFalse:
		e.k = vfalse
		p.next()
	case tkDots:
		if !p.fs.proto.IsVararg {
			p.errorf("cannot use '...' outside a vararg function")
		}
		e.k = vvararg
		e.info = p.fs.emitABC(opcode.Vararg, 0, 1, 0)
		p.next()
	case tokenKind('{'):
		p.tableConstructor(e)
	case tkFunction:
		line := p.cur.line
		p.next()
		p.funcBody(e, false, line)
	default:
		p.suffixedExp(e)
	}
}

func (p *Parser) primaryExp(e *expdesc) {
	switch p.cur.kind {
	case tokenKind('('):
		line := p.cur.line
		p.next()
		p.expr(e)
		p.checkMatch(tokenKind(')'), tokenKind('('), line)
		p.fs.dischargeVars(e)
		if e.k == vcall || e.k == vvararg {
			p.fs.exp2nextReg(e) // parens truncate a call/vararg to one value
		}
	case tkName:
		name := p.checkName()
		p.fs.resolveName(e, name)
	default:
		p.errorf("unexpected symbol")
	}
}

func (p *Parser) suffixedExp(e *expdesc) {
	p.primaryExp(e)
	for {
		switch p.cur.kind {
		case tokenKind('.'):
			p.next()
			p.fieldAccess(e, p.checkName())
		case tokenKind('['):
			p.next()
			var k expdesc
			p.expr(&k)
			p.expect(tokenKind(']'))
			*e = expdesc{k: vindexed, info: p.fs.exp2anyReg(e), aux: p.fs.exp2RK(&k)}
		case tokenKind(':'):
			p.next()
			name := p.checkName()
			p.methodCall(e, name)
		case tokenKind('('), tokenKind('{'), tkString:
			p.fs.exp2nextReg(e)
			p.callArgs(e, p.fs.freereg-1)
		default:
			return
		}
	}
}

// methodCall compiles `obj:name(args)`: SELF places the method and
// the receiver in two consecutive registers, then the shared
// argument parser emits the CALL over both.
func (p *Parser) methodCall(e *expdesc, name string) {
	fs := p.fs
	fs.exp2nextReg(e)
	base := fs.freereg - 1
	var key expdesc
	key.k, key.info = vk, fs.stringK(name)
	rk := fs.exp2RK(&key)
	fs.reserveRegs(1) // the implicit self argument
	fs.emitABC(opcode.Self, base, base, rk)
	p.callArgs(e, base)
}

// callArgs parses one of the three argument forms ('(explist)', a
// table constructor, or a single string literal) and emits the CALL. The callee (plus any self argument) already occupies
// base..freereg-1; the arguments are pushed directly above it.
func (p *Parser) callArgs(e *expdesc, base int) {
	fs := p.fs
	multi := false
	switch p.cur.kind {
	case tokenKind('('):
		line := p.cur.line
		p.next()
		if !p.is(tokenKind(')')) {
			var args expdesc
			p.expList(&args)
			if isMultiValue(args.k) {
				fs.setMultret(&args)
				multi = true
			} else {
				fs.exp2nextReg(&args)
			}
		}
		p.checkMatch(tokenKind(')'), tokenKind('('), line)
	case tokenKind('{'):
		var args expdesc
		p.tableConstructor(&args)
		fs.exp2nextReg(&args)
	case tkString:
		var args expdesc
		args.k, args.info = vk, fs.stringK(p.cur.str)
		p.next()
		fs.exp2nextReg(&args)
	default:
		p.errorf("function arguments expected")
	}
	b := fs.freereg - base // nargs+1, counting the callee's slot
	if multi {
		b = 0
	}
	pc := fs.emitABC(opcode.Call, base, b, 2)
	fs.freereg = base + 1
	*e = expdesc{k: vcall, info: pc}
}

// tableConstructor compiles a `{...}` literal: array-style
// fields accumulate into a pending SETLIST buffer (flushed in chunks),
// keyed fields emit SETTABLE immediately.
func (p *Parser) tableConstructor(e *expdesc) {
	fs := p.fs
	line := p.cur.line
	tableReg := fs.freereg
	pc := fs.newTableCode(tableReg, 0, 0)
	fs.reserveRegs(1)

	narr, nrec := 0, 0
	nPending := 0
	const fieldsPerFlush = 50

	flush := func() {
		if nPending == 0 {
			return
		}
		fs.emitABC(opcode.SetList, tableReg, nPending, (narr-nPending)/fieldsPerFlush+1)
		fs.freereg = tableReg + 1
		nPending = 0
	}

	p.expect(tokenKind('{'))
	for !p.is(tokenKind('}')) {
		switch {
		case p.is(tokenKind('[')):
			p.next()
			var k expdesc
			p.expr(&k)
			p.expect(tokenKind(']'))
			p.expect(tokenKind('='))
			var v expdesc
			p.expr(&v)
			rkK := fs.exp2RK(&k)
			rkV := fs.exp2RK(&v)
			fs.emitABC(opcode.SetTable, tableReg, rkK, rkV)
			fs.freeExps(&k, &v)
			nrec++
		case p.is(tkName) && p.lookahead().kind == tokenKind('='):
			name := p.checkName()
			p.next() // '='
			var k, v expdesc
			k.k, k.info = vk, fs.stringK(name)
			p.expr(&v)
			rkK := fs.exp2RK(&k)
			rkV := fs.exp2RK(&v)
			fs.emitABC(opcode.SetTable, tableReg, rkK, rkV)
			fs.freeExps(&k, &v)
			nrec++
		default:
			var v expdesc
			p.expr(&v)
			if isMultiValue(v.k) && isLastField(p) {
				// Trailing call/vararg spreads every value it returns
				// into the array part: flush whatever's pending first,
				// then a dedicated SETLIST with B=0 ("use top").
				fs.setMultret(&v)
				narr++
				flush()
				fs.emitABC(opcode.SetList, tableReg, 0, (narr-1)/fieldsPerFlush+1)
				fs.freereg = tableReg + 1
			} else {
				fs.exp2nextReg(&v)
				narr++
				nPending++
				if nPending >= fieldsPerFlush {
					flush()
				}
			}
		}
		if !p.testNext(tokenKind(',')) && !p.testNext(tokenKind(';')) {
			break
		}
	}
	p.checkMatch(tokenKind('}'), tokenKind('{'), line)
	flush()
	fs.proto.Code[pc] = fs.proto.Code[pc].SetB(opcode.Int2fb(uint(narr))).SetC(opcode.Int2fb(uint(nrec)))
	*e = expdesc{k: vnonreloc, info: tableReg}
}

func isLastField(p *Parser) bool {
	return p.is(tokenKind('}'))
}
