// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stdlib

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aclements/go-minilua/lua"
)

// toDisplayString implements tostring()'s conversion rule: honor a
// __tostring metamethod, else the raw string/number conversion, else
// a fixed spelling for nil/booleans, else "type: %p".
func toDisplayString(s *lua.State, idx int) string {
	v := s.Get(idx)
	if s.GetMetatable(idx) {
		mt := s.Top()
		s.GetField(mt, "__tostring")
		if s.IsFunction(-1) {
			fn := s.Get(-1)
			s.Pop(2)
			results, err := s.Call(fn, v)
			if err == nil && len(results) > 0 {
				if str, ok := results[0].(*lua.Str); ok {
					return str.String()
				}
			}
		} else {
			s.Pop(2)
		}
	}
	switch x := v.(type) {
	case nil:
		return "nil"
	case lua.Boolean:
		if x {
			return "true"
		}
		return "false"
	}
	if str, ok := s.ToString(idx); ok {
		return str
	}
	return fmt.Sprintf("%s: %p", lua.TypeName(v), v)
}

func optString(s *lua.State, idx int, def string) string {
	if s.IsNil(idx) {
		return def
	}
	str, _ := s.ToString(idx)
	return str
}

func optInt(s *lua.State, idx int, def int) int {
	if s.IsNil(idx) {
		return def
	}
	n, _ := s.ToInteger(idx)
	return int(n)
}

func luaPrint(s *lua.State) (int, error) {
	n := s.Top()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = toDisplayString(s, i)
	}
	fmt.Println(strings.Join(parts, "\t"))
	return 0, nil
}

func luaType(s *lua.State) (int, error) {
	s.PushString(s.Type(1))
	return 1, nil
}

func luaToString(s *lua.State) (int, error) {
	s.PushString(toDisplayString(s, 1))
	return 1, nil
}

// luaToNumber mirrors luaB_tonumber: base 10 uses the
// normal numeric-string conversion, any other base 2..36 parses a
// string with strconv.ParseInt.
func luaToNumber(s *lua.State) (int, error) {
	base := optInt(s, 2, 10)
	if base == 10 {
		if n, ok := s.ToNumber(1); ok {
			s.PushNumber(n)
			return 1, nil
		}
		s.PushNil()
		return 1, nil
	}
	str, ok := s.ToString(1)
	if !ok {
		return 0, s.RuntimeErrorf("bad argument #1 to 'tonumber' (string expected)")
	}
	if base < 2 || base > 36 {
		return 0, s.RuntimeErrorf("bad argument #2 to 'tonumber' (base out of range)")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(str), base, 64)
	if err != nil {
		s.PushNil()
		return 1, nil
	}
	s.PushNumber(float64(n))
	return 1, nil
}

// luaNext mirrors luaB_next: a missing
// key defaults to nil, and a lone nil is pushed when iteration is
// done.
func luaNext(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'next' (table expected)")
	}
	s.SetTop(2)
	if s.Next(1) {
		return 2, nil
	}
	s.PushNil()
	return 1, nil
}

// ipairsAux advances a numeric 1-based scan, stopping at the first
// nil (luaB_ipairs's auxiliary), using rawget so it never triggers
// __index.
func ipairsAux(s *lua.State) (int, error) {
	i := optInt(s, 2, 0) + 1
	s.PushInteger(int64(i))
	s.RawGetI(1, i)
	if s.IsNil(-1) {
		return 0, nil
	}
	return 2, nil
}

func luaIPairs(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'ipairs' (table expected)")
	}
	s.PushGoFunction("ipairsaux", ipairsAux)
	s.PushValue(1)
	s.PushInteger(0)
	return 3, nil
}

func luaPairs(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'pairs' (table expected)")
	}
	s.PushGoFunction("next", luaNext)
	s.PushValue(1)
	s.PushNil()
	return 3, nil
}

func luaSetMetatable(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'setmetatable' (table expected)")
	}
	if !s.IsNil(2) && !s.IsTable(2) {
		return 0, s.RuntimeErrorf("bad argument #2 to 'setmetatable' (nil or table expected)")
	}
	s.SetTop(2)
	s.SetMetatable(1)
	s.SetTop(1)
	return 1, nil
}

func luaGetMetatable(s *lua.State) (int, error) {
	if !s.GetMetatable(1) {
		s.PushNil()
	}
	return 1, nil
}

func luaRawGet(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'rawget' (table expected)")
	}
	s.SetTop(2)
	s.RawGet(1)
	return 1, nil
}

func luaRawSet(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'rawset' (table expected)")
	}
	s.SetTop(3)
	s.RawSet(1)
	s.SetTop(1)
	return 1, nil
}

func luaRawEqual(s *lua.State) (int, error) {
	s.PushBoolean(s.RawEqual(1, 2))
	return 1, nil
}

// luaAssert mirrors luaB_assert: on failure raises the
// message argument (default "assertion failed!"), else returns all
// its arguments unchanged.
func luaAssert(s *lua.State) (int, error) {
	if s.ToBoolean(1) {
		return s.Top(), nil
	}
	msg := optString(s, 2, "assertion failed!")
	return 0, s.RuntimeErrorf("%s", msg)
}

// luaError mirrors luaB_error: level 1 (the default)
// prefixes the current position, level 0 raises the value verbatim.
func luaError(s *lua.State) (int, error) {
	level := optInt(s, 2, 1)
	v := s.Get(1)
	if str, ok := v.(*lua.Str); ok && level > 0 {
		s.Error(s.NewString(s.Where(level) + str.String()))
	}
	s.Error(v)
	return 0, nil
}

// luaPCall mirrors luaB_pcall: call f with no message handler,
// returning a leading boolean status.
func luaPCall(s *lua.State) (int, error) {
	nargs := s.Top() - 1
	if nargs < 0 {
		return 0, s.RuntimeErrorf("bad argument #1 to 'pcall' (value expected)")
	}
	status := s.PCallAPI(nargs, -1, 0)
	s.PushBoolean(status == lua.StatusOK)
	s.Insert(1)
	return s.Top(), nil
}

// luaXPCall is the xpcall(f, handler, ...) surface: the handler is
// invoked once with the error value, and its result replaces the
// error value in the return.
func luaXPCall(s *lua.State) (int, error) {
	nargs := s.Top() - 2
	if nargs < 0 {
		return 0, s.RuntimeErrorf("bad argument #2 to 'xpcall' (value expected)")
	}
	handler := s.Get(2)
	fn := s.Get(1)
	args := make([]lua.Value, nargs)
	for i := 0; i < nargs; i++ {
		args[i] = s.Get(3 + i)
	}
	s.SetTop(0)
	results, status, err := s.PCall(fn, args, handler)
	if e, ok := err.(*lua.Error); ok {
		results = []lua.Value{e.Value}
	}
	s.PushBoolean(status == lua.StatusOK)
	for _, r := range results {
		s.PushAny(r)
	}
	return s.Top(), nil
}

func luaSelect(s *lua.State) (int, error) {
	if str, ok := s.Get(1).(*lua.Str); ok && str.String() == "#" {
		s.PushInteger(int64(s.Top() - 1))
		return 1, nil
	}
	n, ok := s.ToInteger(1)
	if !ok {
		return 0, s.RuntimeErrorf("bad argument #1 to 'select' (number expected)")
	}
	total := s.Top() - 1
	if n < 0 {
		n = int64(total) + n + 1
	}
	if n < 1 {
		return 0, s.RuntimeErrorf("bad argument #1 to 'select' (index out of range)")
	}
	if int(n) > total {
		return 0, nil
	}
	count := total - int(n) + 1
	for i := 0; i < count; i++ {
		s.PushValue(int(n) + 1 + i)
	}
	return count, nil
}

// luaUnpack mirrors luaB_unpack: t[i..j] pushed as multiple
// results, j defaulting to #t.
func luaUnpack(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'unpack' (table expected)")
	}
	i := optInt(s, 2, 1)
	j := optInt(s, 3, s.ObjLen(1))
	if i > j {
		return 0, nil
	}
	n := j - i + 1
	if n <= 0 {
		return 0, s.RuntimeErrorf("too many results to unpack")
	}
	for k := i; k <= j; k++ {
		s.RawGetI(1, k)
	}
	return n, nil
}

// luaCollectGarbage exposes collector control: "collect" (the
// default) runs a full cycle, "count" reports the accounted heap
// size in kilobytes.
func luaCollectGarbage(s *lua.State) (int, error) {
	opt := optString(s, 1, "collect")
	switch opt {
	case "collect", "step":
		s.GC()
		s.PushInteger(0)
	case "count":
		s.PushNumber(float64(s.GCCount()) / 1024)
	default:
		return 0, s.RuntimeErrorf("bad argument #1 to 'collectgarbage' (invalid option '%s')", opt)
	}
	return 1, nil
}

var baseFuncs = []reg{
	{"print", luaPrint},
	{"type", luaType},
	{"tostring", luaToString},
	{"tonumber", luaToNumber},
	{"next", luaNext},
	{"pairs", luaPairs},
	{"ipairs", luaIPairs},
	{"setmetatable", luaSetMetatable},
	{"getmetatable", luaGetMetatable},
	{"rawget", luaRawGet},
	{"rawset", luaRawSet},
	{"rawequal", luaRawEqual},
	{"assert", luaAssert},
	{"error", luaError},
	{"pcall", luaPCall},
	{"xpcall", luaXPCall},
	{"select", luaSelect},
	{"unpack", luaUnpack},
	{"collectgarbage", luaCollectGarbage},
}

func openBase(s *lua.State) {
	register(s, lua.GlobalsIndex, baseFuncs)
	s.PushString("minilua 1.0")
	s.SetField(lua.GlobalsIndex, "_VERSION")
}
