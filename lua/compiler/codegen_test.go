// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"strings"
	"testing"

	"github.com/aclements/go-minilua/lua"
	"github.com/aclements/go-minilua/lua/opcode"
)

func compileChunk(t *testing.T, src string) *lua.Proto {
	t.Helper()
	s := lua.NewState()
	cl, err := Compile(s, strings.NewReader(src), "test")
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return cl.Proto
}

func hasOp(p *lua.Proto, op opcode.Op) bool {
	for _, inst := range p.Code {
		if inst.Op() == op {
			return true
		}
	}
	return false
}

func TestConstantFoldingArithmetic(t *testing.T) {
	p := compileChunk(t, "return 1 + 2 * 3")
	if hasOp(p, opcode.Add) || hasOp(p, opcode.Mul) {
		t.Fatalf("literal arithmetic not folded: %v", p.Code)
	}
	found := false
	for _, k := range p.Constants {
		if k == lua.Number(7) {
			found = true
		}
	}
	if !found {
		t.Fatalf("folded constant 7 missing from pool %v", p.Constants)
	}
}

func TestNoFoldingOfDivisionByZero(t *testing.T) {
	p := compileChunk(t, "return 1 / 0")
	if !hasOp(p, opcode.Div) {
		t.Fatalf("division by zero must not be folded: %v", p.Code)
	}
}

func TestUnaryMinusFoldsLiterals(t *testing.T) {
	p := compileChunk(t, "return -5")
	for _, k := range p.Constants {
		if k == lua.Number(-5) {
			return
		}
	}
	t.Fatalf("-5 not folded into the constant pool: %v", p.Constants)
}

func TestTailCallEmitted(t *testing.T) {
	p := compileChunk(t, `
		local function f(n)
			return f(n)
		end
	`)
	if len(p.Protos) != 1 {
		t.Fatalf("want 1 nested prototype, got %d", len(p.Protos))
	}
	if !hasOp(p.Protos[0], opcode.TailCall) {
		t.Fatalf("`return f(n)` did not compile to TAILCALL: %v", p.Protos[0].Code)
	}
}

// TestClosurePseudoInstructions checks the pairing the VM relies on:
// every CLOSURE instruction is followed by exactly one MOVE or
// GETUPVAL filler per upvalue the nested prototype captures.
func TestClosurePseudoInstructions(t *testing.T) {
	p := compileChunk(t, `
		local x = 0
		local function inc()
			x = x + 1
			return function() return x end
		end
	`)
	var walk func(p *lua.Proto)
	walk = func(p *lua.Proto) {
		for i, inst := range p.Code {
			if inst.Op() != opcode.Closure {
				continue
			}
			inner := p.Protos[inst.Bx()]
			for j := 1; j <= len(inner.Upvals); j++ {
				if i+j >= len(p.Code) {
					t.Fatalf("CLOSURE at pc %d runs off the end of the code", i)
				}
				op := p.Code[i+j].Op()
				if op != opcode.Move && op != opcode.GetUpval {
					t.Fatalf("CLOSURE at pc %d: filler %d is %v, want MOVE or GETUPVAL", i, j, op)
				}
			}
		}
		for _, inner := range p.Protos {
			walk(inner)
		}
	}
	walk(p)
}

func TestUpvalueResolutionThroughTwoLevels(t *testing.T) {
	p := compileChunk(t, `
		local x = 1
		local function outer()
			local function inner()
				return x
			end
			return inner
		end
	`)
	outer := p.Protos[0]
	if len(outer.Upvals) != 1 || !outer.Upvals[0].InStack {
		t.Fatalf("outer should capture x from the enclosing stack: %+v", outer.Upvals)
	}
	inner := outer.Protos[0]
	if len(inner.Upvals) != 1 || inner.Upvals[0].InStack {
		t.Fatalf("inner should reach x through outer's upvalue: %+v", inner.Upvals)
	}
}

func TestSyntaxErrorHasPosition(t *testing.T) {
	s := lua.NewState()
	_, err := Compile(s, strings.NewReader("local = 3"), "bad")
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if !strings.HasPrefix(err.Error(), "bad:1:") {
		t.Fatalf("error %q, want a bad:1: prefix", err.Error())
	}
}
