// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua_test

import (
	"strings"
	"testing"

	"github.com/aclements/go-minilua/lua"
	"github.com/aclements/go-minilua/lua/compiler"
	"github.com/aclements/go-minilua/lua/stdlib"
)

func mustRun(t *testing.T, src string) []lua.Value {
	t.Helper()
	s := lua.NewState()
	stdlib.Open(s)
	cl, err := compiler.Compile(s, strings.NewReader(src), "test")
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	results, err := s.Call(cl)
	if err != nil {
		t.Fatalf("run %q: %v", src, err)
	}
	return results
}

func asNumber(t *testing.T, v lua.Value) float64 {
	t.Helper()
	n, ok := v.(lua.Number)
	if !ok {
		t.Fatalf("want number, got %T (%v)", v, v)
	}
	return float64(n)
}

func asString(t *testing.T, v lua.Value) string {
	t.Helper()
	s, ok := v.(*lua.Str)
	if !ok {
		t.Fatalf("want string, got %T (%v)", v, v)
	}
	return s.String()
}

// TestFibonacci exercises recursion through a local function.
func TestFibonacci(t *testing.T) {
	results := mustRun(t, `
		local function f(n) if n<2 then return n else return f(n-1)+f(n-2) end end
		return f(10)
	`)
	if len(results) != 1 || asNumber(t, results[0]) != 55 {
		t.Fatalf("f(10) = %v, want 55", results)
	}
}

// TestTableLengthAfterInsert checks that # reports a border even
// with an integer key beyond a hole.
func TestTableLengthAfterInsert(t *testing.T) {
	results := mustRun(t, `
		local t={1,2,3}; t[5]=5; return #t
	`)
	if len(results) != 1 || asNumber(t, results[0]) != 3 {
		t.Fatalf("#t = %v, want 3 (boundary at 3, index 4 is nil)", results)
	}
}

// TestIndexMetamethodChain checks a function-valued __index.
func TestIndexMetamethodChain(t *testing.T) {
	results := mustRun(t, `
		local a=setmetatable({},{__index=function(t,k) return k..'!' end})
		return a.hi
	`)
	if len(results) != 1 || asString(t, results[0]) != "hi!" {
		t.Fatalf("a.hi = %v, want %q", results, "hi!")
	}
}

// TestClosureCapturesUpvalue checks that an inner closure shares and
// mutates a captured local across calls.
func TestClosureCapturesUpvalue(t *testing.T) {
	results := mustRun(t, `
		local function mk() local x=0; return function() x=x+1; return x end end
		local c=mk(); c();c();return c()
	`)
	if len(results) != 1 || asNumber(t, results[0]) != 3 {
		t.Fatalf("c() = %v, want 3", results)
	}
}

// TestPCallCatchesRuntimeError checks protected-call error capture.
func TestPCallCatchesRuntimeError(t *testing.T) {
	results := mustRun(t, `
		local ok, err = pcall(function() error("boom") end)
		return ok, err
	`)
	if len(results) != 2 {
		t.Fatalf("pcall results = %v, want 2 values", results)
	}
	if ok, isBool := results[0].(lua.Boolean); !isBool || bool(ok) {
		t.Fatalf("ok = %v, want false", results[0])
	}
	errStr := asString(t, results[1])
	if !strings.HasSuffix(errStr, "boom") {
		t.Fatalf("err = %q, want suffix %q", errStr, "boom")
	}
}

// TestGenericForOverPairs checks the generic for protocol against
// the pairs iterator.
func TestGenericForOverPairs(t *testing.T) {
	results := mustRun(t, `
		local t={a=1,b=2}; local s=0; for k,v in pairs(t) do s=s+v end; return s
	`)
	if len(results) != 1 || asNumber(t, results[0]) != 3 {
		t.Fatalf("s = %v, want 3", results)
	}
}



func TestNumericForLaw(t *testing.T) {
	results := mustRun(t, `
		local s=0
		for i=10,1,-2 do s=s+i end
		return s
	`)
	// 10+8+6+4+2 = 30
	if len(results) != 1 || asNumber(t, results[0]) != 30 {
		t.Fatalf("s = %v, want 30", results)
	}
}

func TestStringLengthLaw(t *testing.T) {
	results := mustRun(t, `return #"hello"`)
	if len(results) != 1 || asNumber(t, results[0]) != 5 {
		t.Fatalf("#\"hello\" = %v, want 5", results)
	}
}

func TestToStringToNumberLaw(t *testing.T) {
	results := mustRun(t, `return tostring(tonumber("3.14"))`)
	if len(results) != 1 || asString(t, results[0]) != "3.14" {
		t.Fatalf("tostring(tonumber(\"3.14\")) = %v, want %q", results, "3.14")
	}
}

func TestStringIdentityAfterInterning(t *testing.T) {
	results := mustRun(t, `
		local a = "foo" .. "bar"
		local b = "foobar"
		return a == b
	`)
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}
	if b, ok := results[0].(lua.Boolean); !ok || !bool(b) {
		t.Fatalf("a == b = %v, want true (two equal-content strings are interned to one)", results[0])
	}
}

func TestMetatableArithmetic(t *testing.T) {
	results := mustRun(t, `
		local mt = {__add = function(a, b) return a.v + b.v end}
		local function vec(v) return setmetatable({v=v}, mt) end
		return vec(3) + vec(4)
	`)
	if len(results) != 1 || asNumber(t, results[0]) != 7 {
		t.Fatalf("vec(3)+vec(4) = %v, want 7", results)
	}
}

func TestTailCallDoesNotGrowStack(t *testing.T) {
	results := mustRun(t, `
		local function loop(n, acc)
			if n == 0 then return acc end
			return loop(n - 1, acc + n)
		end
		return loop(100000, 0)
	`)
	if len(results) != 1 || asNumber(t, results[0]) != 5000050000 {
		t.Fatalf("loop(100000,0) = %v, want 5000050000", results)
	}
}

func TestVarargAndMultipleAssignment(t *testing.T) {
	results := mustRun(t, `
		local function f(...) return select('#', ...), ... end
		local n, a, b = f(10, 20)
		return n, a, b
	`)
	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	if asNumber(t, results[0]) != 2 || asNumber(t, results[1]) != 10 || asNumber(t, results[2]) != 20 {
		t.Fatalf("n,a,b = %v, want 2,10,20", results)
	}
}

func TestTableLibInsertRemoveSort(t *testing.T) {
	results := mustRun(t, `
		local t = {3, 1, 2}
		table.insert(t, 4)
		table.sort(t)
		local removed = table.remove(t, 1)
		return removed, table.concat(t, ",")
	`)
	if len(results) != 2 || asNumber(t, results[0]) != 1 || asString(t, results[1]) != "2,3,4" {
		t.Fatalf("results = %v, want 1, \"2,3,4\"", results)
	}
}

func TestStringLibBasics(t *testing.T) {
	results := mustRun(t, `
		return string.upper("abc"), string.sub("hello world", 1, 5), string.rep("ab", 3)
	`)
	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	if asString(t, results[0]) != "ABC" || asString(t, results[1]) != "hello" || asString(t, results[2]) != "ababab" {
		t.Fatalf("results = %v", results)
	}
}

func TestSyntaxErrorReportsPosition(t *testing.T) {
	s := lua.NewState()
	stdlib.Open(s)
	_, err := compiler.Compile(s, strings.NewReader("local x = \n"), "chunk")
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	if !strings.Contains(err.Error(), "chunk:") {
		t.Fatalf("error %q does not carry chunkname:line prefix", err.Error())
	}
}

func TestVarargWithFixedParams(t *testing.T) {
	results := mustRun(t, `
		local function f(a, ...) return a, ... end
		return f(1, 2, 3)
	`)
	if len(results) != 3 {
		t.Fatalf("results = %v, want 3 values", results)
	}
	for i, want := range []float64{1, 2, 3} {
		if asNumber(t, results[i]) != want {
			t.Fatalf("result %d = %v, want %v", i, results[i], want)
		}
	}
}

func TestMethodCallSyntax(t *testing.T) {
	results := mustRun(t, `
		local obj = {n = 10}
		function obj:bump(d) self.n = self.n + d; return self.n end
		return obj:bump(5)
	`)
	if len(results) != 1 || asNumber(t, results[0]) != 15 {
		t.Fatalf("obj:bump(5) = %v, want 15", results)
	}
}

func TestMultipleAssignmentSwap(t *testing.T) {
	results := mustRun(t, `
		local a, b = 1, 2
		a, b = b, a
		return a, b
	`)
	if len(results) != 2 || asNumber(t, results[0]) != 2 || asNumber(t, results[1]) != 1 {
		t.Fatalf("a, b = %v, want 2, 1", results)
	}
}

func TestWhileRepeatBreak(t *testing.T) {
	results := mustRun(t, `
		local i, s = 0, 0
		while true do
			i = i + 1
			if i > 4 then break end
			s = s + i
		end
		local j = 0
		repeat j = j + 1 until j >= 3
		return s, j
	`)
	if len(results) != 2 || asNumber(t, results[0]) != 10 || asNumber(t, results[1]) != 3 {
		t.Fatalf("s, j = %v, want 10, 3", results)
	}
}

func TestStringCoercionInArithmetic(t *testing.T) {
	results := mustRun(t, `return "10" + 1, 2 .. 3`)
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	if asNumber(t, results[0]) != 11 || asString(t, results[1]) != "23" {
		t.Fatalf("results = %v, want 11, \"23\"", results)
	}
}

func TestFlooredModulo(t *testing.T) {
	results := mustRun(t, `return -5 % 3, 5 % -3`)
	if len(results) != 2 || asNumber(t, results[0]) != 1 || asNumber(t, results[1]) != -1 {
		t.Fatalf("results = %v, want 1, -1", results)
	}
}

func TestNewIndexMetamethod(t *testing.T) {
	results := mustRun(t, `
		local log = {}
		local proxy = setmetatable({}, {__newindex = function(t, k, v)
			log[#log + 1] = k
			rawset(t, k, v * 2)
		end})
		proxy.a = 10
		return proxy.a, log[1]
	`)
	if len(results) != 2 || asNumber(t, results[0]) != 20 || asString(t, results[1]) != "a" {
		t.Fatalf("results = %v, want 20, \"a\"", results)
	}
}

func TestStringFormat(t *testing.T) {
	results := mustRun(t, `return string.format("%d/%s/%05.1f", 7, "x", 2.5)`)
	if len(results) != 1 || asString(t, results[0]) != "7/x/002.5" {
		t.Fatalf("format = %v, want %q", results, "7/x/002.5")
	}
}

func TestSelectAndUnpack(t *testing.T) {
	results := mustRun(t, `
		local t = {10, 20, 30}
		return select(2, unpack(t))
	`)
	if len(results) != 2 || asNumber(t, results[0]) != 20 || asNumber(t, results[1]) != 30 {
		t.Fatalf("results = %v, want 20, 30", results)
	}
}

func TestStringMethodSyntax(t *testing.T) {
	results := mustRun(t, `return ("abc"):upper()`)
	if len(results) != 1 || asString(t, results[0]) != "ABC" {
		t.Fatalf("(\"abc\"):upper() = %v, want ABC", results)
	}
}

func TestRuntimeErrorCarriesPosition(t *testing.T) {
	s := lua.NewState()
	stdlib.Open(s)
	cl, err := compiler.Compile(s, strings.NewReader("local x\nreturn x.y"), "chunk")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = s.Call(cl)
	if err == nil {
		t.Fatal("indexing a nil value should error")
	}
	if !strings.Contains(err.Error(), "chunk:2:") {
		t.Fatalf("error %q does not name chunk:2", err.Error())
	}
}
