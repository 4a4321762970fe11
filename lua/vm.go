// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

import (
	"github.com/aclements/go-minilua/lua/opcode"
)

// push appends v to the stack, growing it first if needed.
func (s *State) push(v Value) {
	s.grow(1)
	s.stack[s.top] = v
	s.top++
}

// Call invokes fn(args...) and returns its results. It is the
// unprotected host-API entry point: an error anywhere below propagates
// as a Go error to the caller, having first unwound any stack and
// call-frame growth this call introduced.
func (s *State) Call(fn Value, args ...Value) (results []Value, err error) {
	savedTop := s.top
	savedCI := len(s.callInfo)
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			s.closeUpvals(savedTop)
			s.callInfo = s.callInfo[:savedCI]
			s.ci = s.callInfo[len(s.callInfo)-1]
			s.top = savedTop
			err = e
		}
	}()
	base := s.top
	s.push(fn)
	for _, a := range args {
		s.push(a)
	}
	s.doCall(base, len(args), -1)
	results = append([]Value(nil), s.stack[base:s.top]...)
	s.top = base
	return results, nil
}

// PCall is the protected call entry point: it never lets an error
// propagate past it. On error it restores the stack to its pre-call
// depth, closes upvalues above that depth, and reports the error Value
// (run through the message handler msgh if one is installed).
func (s *State) PCall(fn Value, args []Value, msgh Value) (results []Value, status Status, err error) {
	savedTop := s.top
	savedCI := len(s.callInfo)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e, ok := r.(*Error)
		if !ok {
			e = &Error{Status: StatusRuntimeError, Value: s.g.intern(asError(r).Error())}
		}
		s.closeUpvals(savedTop)
		s.callInfo = s.callInfo[:savedCI]
		s.ci = s.callInfo[len(s.callInfo)-1]
		s.top = savedTop
		if msgh != nil {
			func() {
				defer func() {
					if r2 := recover(); r2 != nil {
						e = errorInHandler(asError(r2))
					}
				}()
				e = &Error{Status: e.Status, Value: s.call1(msgh, e.Value)}
			}()
		}
		status = e.Status
		err = e
	}()
	base := s.top
	s.push(fn)
	for _, a := range args {
		s.push(a)
	}
	s.doCall(base, len(args), -1)
	results = append([]Value(nil), s.stack[base:s.top]...)
	s.top = base
	return results, StatusOK, nil
}

func asError(r any) error {
	if e, ok := r.(*Error); ok {
		return e
	}
	if e, ok := r.(error); ok {
		return e
	}
	return &Error{Status: StatusRuntimeError}
}

const (
	precallGo = iota
	precallLua
)

// doCall runs the function at stack[base] against the nargs arguments
// above it, leaving nresults results at base (or all results if
// nresults < 0), growing s.top accordingly. precall sets up (or for Go
// functions, runs) the callee; a Lua callee is then executed until
// RETURN or a non-flattenable TAILCALL.
func (s *State) doCall(base, nargs, nresults int) {
	if len(s.callInfo) >= maxCallInfos {
		panic(s.newRuntimeError("stack overflow"))
	}
	if s.precall(base, nargs, nresults) == precallLua {
		s.execute()
	}
}

// precall coerces the callee via __call if it isn't directly callable,
// builds the new CallInfo, and either runs a Go function synchronously
// (normalizing its return count via adjustResults) or leaves a Lua
// frame ready for execute to run.
func (s *State) precall(base, nargs, nresults int) int {
	s.top = base + 1 + nargs
	fnVal := s.stack[base]
	target, ok := s.callTarget(fnVal)
	if !ok {
		panic(s.newRuntimeError("attempt to call a %s value", TypeName(fnVal)))
	}
	if target != fnVal {
		// __call: reinsert the original value as an extra first
		// argument and call the metamethod instead.
		s.grow(1)
		copy(s.stack[base+1:s.top+1], s.stack[base:s.top])
		s.stack[base] = target
		s.top++
		nargs++
	}

	switch fn := target.(type) {
	case *GoClosure:
		ci := &CallInfo{funcIndex: base, base: base + 1, top: s.top, closure: fn, nResults: nresults}
		s.pushCallInfo(ci)
		n, err := fn.Fn(s)
		if err != nil {
			if e, ok := err.(*Error); ok {
				panic(e)
			}
			panic(s.newRuntimeError("%s", err.Error()))
		}
		s.popCallInfo()
		s.adjustResults(base, s.top-n, n, nresults)
		return precallGo

	case *LuaClosure:
		p := fn.Proto
		s.grow(p.MaxStack + 1)
		newBase := base + 1
		nVarargs := 0
		if p.IsVararg {
			newBase, nVarargs = s.adjustVarargs(base, nargs, p.NumParams)
		} else {
			for i := nargs; i < p.NumParams; i++ {
				s.stack[base+1+i] = nil
			}
			s.top = base + 1 + p.NumParams
		}
		frameTop := newBase + p.MaxStack
		s.grow(frameTop - s.top)
		for s.top < frameTop {
			s.stack[s.top] = nil
			s.top++
		}
		ci := &CallInfo{funcIndex: base, base: newBase, top: frameTop, closure: fn, savedPC: 0, nResults: nresults, nVarargs: nVarargs}
		s.pushCallInfo(ci)
		return precallLua

	default:
		panic(s.newRuntimeError("attempt to call a %s value", TypeName(fnVal)))
	}
}

// adjustVarargs rebases a vararg call the way luaD_adjustvarargs does:
// the fixed parameters are copied forward above the supplied
// arguments, so the extras end up sitting just below the new base
// where VARARG can find them.
func (s *State) adjustVarargs(base, nargs, numParams int) (newBase, nVarargs int) {
	fixedBase := base + 1 + nargs
	extra := nargs - numParams
	if extra < 0 {
		extra = 0
	}
	s.grow(fixedBase - s.top + numParams)
	for i := 0; i < numParams; i++ {
		if i < nargs {
			s.stack[fixedBase+i] = s.stack[base+1+i]
		} else {
			s.stack[fixedBase+i] = nil
		}
	}
	s.top = fixedBase + numParams
	return fixedBase, extra
}

// adjustResults normalizes a callee's actual result count to what the
// caller asked for, shifting results down to base (luaD_poscall).
func (s *State) adjustResults(base, resultsAt, nres, wanted int) {
	if resultsAt != base {
		for i := 0; i < nres; i++ {
			s.stack[base+i] = s.stack[resultsAt+i]
		}
	}
	if wanted < 0 {
		s.top = base + nres
		return
	}
	for i := nres; i < wanted; i++ {
		s.stack[base+i] = nil
	}
	s.top = base + wanted
}

// execute is the fetch-decode-dispatch loop over the current call's
// instruction array. Calling into another Lua closure recurses
// (precall -> execute); calling a Go closure returns immediately from
// precall. Go's own call stack stands in for luaV_execute's "goto
// reentry" trampoline; TAILCALL is the one case that avoids recursing,
// reusing this CallInfo in place instead (see tailCall).
func (s *State) execute() {
	ci := s.ci
	lc := ci.closure.(*LuaClosure)
	proto := lc.Proto
	code := proto.Code
	consts := proto.Constants
	base := ci.base
	pc := 0

	rk := func(x int) Value {
		if opcode.IsK(x) {
			return consts[opcode.IndexK(x)]
		}
		return s.stack[base+x]
	}

	for {
		inst := code[pc]
		pc++
		// savedPC points one past the running instruction, so error
		// reporting and debug info index LineInfo[savedPC-1].
		ci.savedPC = pc
		op := inst.Op()
		a := inst.A()

		switch op {
		case opcode.Move:
			s.stack[base+a] = s.stack[base+inst.B()]

		case opcode.LoadK:
			s.stack[base+a] = consts[inst.Bx()]

		case opcode.LoadBool:
			s.stack[base+a] = Boolean(inst.B() != 0)
			if inst.C() != 0 {
				pc++
			}

		case opcode.LoadNil:
			b := inst.B()
			for i := a; i <= b; i++ {
				s.stack[base+i] = nil
			}

		case opcode.GetUpval:
			s.stack[base+a] = *lc.Upvals[inst.B()].v

		case opcode.SetUpval:
			uv := lc.Upvals[inst.B()]
			*uv.v = s.stack[base+a]
			s.g.gc.barrierValue(uv, *uv.v)

		case opcode.GetGlobal:
			key := consts[inst.Bx()]
			s.stack[base+a] = s.index(lc.Env, key)

		case opcode.SetGlobal:
			key := consts[inst.Bx()]
			s.newindex(lc.Env, key, s.stack[base+a])

		case opcode.GetTable:
			s.stack[base+a] = s.index(s.stack[base+inst.B()], rk(inst.C()))

		case opcode.SetTable:
			s.newindex(s.stack[base+a], rk(inst.B()), rk(inst.C()))

		case opcode.NewTable:
			s.stack[base+a] = s.g.newTable(opcode.Fb2int(inst.B()), opcode.Fb2int(inst.C()))
			s.g.checkGC(64)

		case opcode.Self:
			obj := s.stack[base+inst.B()]
			s.stack[base+a+1] = obj
			s.stack[base+a] = s.index(obj, rk(inst.C()))

		case opcode.Add, opcode.Sub, opcode.Mul, opcode.Div, opcode.Mod, opcode.Pow:
			s.stack[base+a] = s.arith(op, rk(inst.B()), rk(inst.C()))

		case opcode.Unm:
			v := s.stack[base+inst.B()]
			if n, ok := v.(Number); ok {
				s.stack[base+a] = -n
			} else {
				s.stack[base+a] = s.arithMeta(tmUnm, v, v, "unm")
			}

		case opcode.Not:
			s.stack[base+a] = Boolean(!Truthy(s.stack[base+inst.B()]))

		case opcode.Len:
			s.stack[base+a] = s.length(s.stack[base+inst.B()])

		case opcode.Concat:
			s.stack[base+a] = s.concat(base+inst.B(), base+inst.C())
			s.g.checkGC(32)

		case opcode.Jmp:
			pc += inst.SBx()

		case opcode.Eq:
			if s.equals(rk(inst.B()), rk(inst.C())) != (a != 0) {
				pc++
			}

		case opcode.Lt:
			if s.lessThan(rk(inst.B()), rk(inst.C())) != (a != 0) {
				pc++
			}

		case opcode.Le:
			if s.lessEqual(rk(inst.B()), rk(inst.C())) != (a != 0) {
				pc++
			}

		case opcode.Test:
			if Truthy(s.stack[base+a]) != (inst.C() != 0) {
				pc++
			}

		case opcode.TestSet:
			v := s.stack[base+inst.B()]
			if Truthy(v) == (inst.C() != 0) {
				s.stack[base+a] = v
			} else {
				pc++
			}

		case opcode.Call:
			nargs := inst.B() - 1
			if inst.B() == 0 {
				nargs = s.top - (base + a + 1)
			}
			nres := inst.C() - 1
			s.doCall(base+a, nargs, nres)
			if nres >= 0 {
				s.top = ci.top
			}

		case opcode.TailCall:
			nargs := inst.B() - 1
			if inst.B() == 0 {
				nargs = s.top - (base + a + 1)
			}
			if s.tailCall(ci, base, a, nargs) {
				lc = ci.closure.(*LuaClosure)
				proto = lc.Proto
				code = proto.Code
				consts = proto.Constants
				base = ci.base
				pc = 0
				continue
			}
			return

		case opcode.Return:
			b := inst.B()
			n := b - 1
			if b == 0 {
				n = s.top - (base + a)
			}
			s.finishReturn(ci, base+a, n)
			return

		case opcode.ForPrep:
			idx := base + a
			initV, okI := toNumber(s.stack[idx])
			limitV, okL := toNumber(s.stack[idx+1])
			stepV, okS := toNumber(s.stack[idx+2])
			if !okI {
				panic(s.newRuntimeError("'for' initial value must be a number"))
			}
			if !okL {
				panic(s.newRuntimeError("'for' limit must be a number"))
			}
			if !okS {
				panic(s.newRuntimeError("'for' step must be a number"))
			}
			s.stack[idx] = initV - stepV
			s.stack[idx+1] = limitV
			s.stack[idx+2] = stepV
			pc += inst.SBx()

		case opcode.ForLoop:
			idx := base + a
			step := s.stack[idx+2].(Number)
			next := s.stack[idx].(Number) + step
			limit := s.stack[idx+1].(Number)
			cont := (step > 0 && next <= limit) || (step < 0 && next >= limit)
			if cont {
				s.stack[idx] = next
				s.stack[idx+3] = next
				pc += inst.SBx()
			}

		case opcode.TForLoop:
			callBase := base + a + 3
			s.grow(callBase + 3 - s.top)
			s.stack[callBase] = s.stack[base+a]
			s.stack[callBase+1] = s.stack[base+a+1]
			s.stack[callBase+2] = s.stack[base+a+2]
			nres := inst.C()
			s.doCall(callBase, 2, nres)
			s.top = ci.top
			if s.stack[callBase] == nil {
				pc++ // skip the following JMP: iteration is over
			} else {
				s.stack[base+a+2] = s.stack[callBase]
			}

		case opcode.SetList:
			b := inst.B()
			n := b
			if b == 0 {
				n = s.top - (base + a) - 1
			}
			c := inst.C()
			t := s.stack[base+a].(*Table)
			const fieldsPerFlush = 50
			start := (c - 1) * fieldsPerFlush
			for i := 1; i <= n; i++ {
				t.set(Number(start+i), s.stack[base+a+i])
			}
			s.g.gc.barrierBack(t)
			s.g.checkGC(n * 8)

		case opcode.Close:
			s.closeUpvals(base + a)

		case opcode.Closure:
			proto2 := proto.Protos[inst.Bx()]
			cl := &LuaClosure{Proto: proto2, Env: lc.Env}
			cl.Upvals = make([]*Upvalue, len(proto2.Upvals))
			for i, ud := range proto2.Upvals {
				if ud.InStack {
					cl.Upvals[i] = s.findOrCreateUpvalue(base + ud.Index)
				} else {
					cl.Upvals[i] = lc.Upvals[ud.Index]
				}
			}
			s.g.gc.link(cl, 32)
			s.g.checkGC(32)
			s.stack[base+a] = cl
			pc += len(proto2.Upvals)

		case opcode.Vararg:
			avail := ci.nVarargs
			varargBase := base - avail
			b := inst.B()
			n := b - 1
			if b == 0 {
				n = avail
			}
			s.grow(base + a + n - s.top)
			for i := 0; i < n; i++ {
				if i < avail {
					s.stack[base+a+i] = s.stack[varargBase+i]
				} else {
					s.stack[base+a+i] = nil
				}
			}
			if b == 0 {
				s.top = base + a + n
			}

		default:
			panic(s.newRuntimeError("unknown opcode %v", op))
		}
	}
}

// finishReturn copies n results down to the slot the caller expects
// (the one the callee itself occupied) and pops the CallInfo.
func (s *State) finishReturn(ci *CallInfo, resultsAt, n int) {
	s.closeUpvals(ci.base)
	wanted := ci.nResults
	at := ci.funcIndex
	s.popCallInfo()
	s.adjustResults(at, resultsAt, n, wanted)
}

// tailCall closes upvalues above the current base, shifts the callee
// and its arguments down over the caller's own frame, and reuses the
// CallInfo instead of growing the call-info stack. Returns true if it
// reused the frame in place (Lua-to-Lua, which execute continues
// looping on); false if it fell back to a normal nested call (the
// callee is a Go function or reached via __call), in which case this
// frame's RETURN has already effectively happened.
func (s *State) tailCall(ci *CallInfo, base, a, nargs int) bool {
	fnBase := base + a
	fnVal := s.stack[fnBase]
	target, ok := s.callTarget(fnVal)
	if !ok {
		panic(s.newRuntimeError("attempt to call a %s value", TypeName(fnVal)))
	}
	lcNew, isLua := target.(*LuaClosure)
	s.closeUpvals(ci.base)

	if !isLua || target != fnVal {
		// Not a call we can flatten: run it as an ordinary call and
		// return its results as this frame's results.
		s.doCall(fnBase, nargs, -1)
		s.finishReturn(ci, fnBase, s.top-fnBase)
		return false
	}

	wanted := ci.nResults
	callerFunc := ci.funcIndex // the slot our own closure occupied
	copy(s.stack[callerFunc:], s.stack[fnBase:fnBase+1+nargs])
	s.top = callerFunc + 1 + nargs
	tailcalls := ci.tailcalls + 1

	p := lcNew.Proto
	s.grow(p.MaxStack + 1)
	newBase := callerFunc + 1
	nVarargs := 0
	if p.IsVararg {
		newBase, nVarargs = s.adjustVarargs(callerFunc, nargs, p.NumParams)
	} else {
		for i := nargs; i < p.NumParams; i++ {
			s.stack[callerFunc+1+i] = nil
		}
		s.top = callerFunc + 1 + p.NumParams
	}
	frameTop := newBase + p.MaxStack
	s.grow(frameTop - s.top)
	for s.top < frameTop {
		s.stack[s.top] = nil
		s.top++
	}

	ci.closure = lcNew
	ci.funcIndex = callerFunc
	ci.base = newBase
	ci.top = frameTop
	ci.nResults = wanted
	ci.isTailcall = true
	ci.tailcalls = tailcalls
	ci.nVarargs = nVarargs
	return true
}
