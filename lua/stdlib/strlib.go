// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stdlib

import (
	"fmt"
	"strings"

	"github.com/aclements/go-minilua/lua"
)

// posrelat converts a possibly-negative 1-based string position into
// a non-negative offset (lstrlib's posrelat): -1 means "last byte".
func posrelat(pos, length int) int {
	if pos < 0 {
		pos += length + 1
	}
	if pos < 0 {
		return 0
	}
	return pos
}

func checkString(s *lua.State, idx int) (string, error) {
	str, ok := s.ToString(idx)
	if !ok {
		return "", s.RuntimeErrorf("bad argument #%d (string expected, got %s)", idx, s.Type(idx))
	}
	return str, nil
}

// strSub mirrors str_sub.
func strSub(s *lua.State) (int, error) {
	str, err := checkString(s, 1)
	if err != nil {
		return 0, err
	}
	l := len(str)
	start := posrelat(optInt(s, 2, 1), l)
	end := posrelat(optInt(s, 3, -1), l)
	if start < 1 {
		start = 1
	}
	if end > l {
		end = l
	}
	if start <= end {
		s.PushString(str[start-1 : end])
	} else {
		s.PushString("")
	}
	return 1, nil
}

func strLower(s *lua.State) (int, error) {
	str, err := checkString(s, 1)
	if err != nil {
		return 0, err
	}
	s.PushString(strings.ToLower(str))
	return 1, nil
}

func strUpper(s *lua.State) (int, error) {
	str, err := checkString(s, 1)
	if err != nil {
		return 0, err
	}
	s.PushString(strings.ToUpper(str))
	return 1, nil
}

func strRep(s *lua.State) (int, error) {
	str, err := checkString(s, 1)
	if err != nil {
		return 0, err
	}
	n := optInt(s, 2, 0)
	if n < 0 {
		n = 0
	}
	s.PushString(strings.Repeat(str, n))
	return 1, nil
}

func strLen(s *lua.State) (int, error) {
	str, err := checkString(s, 1)
	if err != nil {
		return 0, err
	}
	s.PushInteger(int64(len(str)))
	return 1, nil
}

// strByte mirrors str_byte: pushes the byte values s[i..j]
// as separate results.
func strByte(s *lua.State) (int, error) {
	str, err := checkString(s, 1)
	if err != nil {
		return 0, err
	}
	l := len(str)
	posi := posrelat(optInt(s, 2, 1), l)
	pose := posrelat(optInt(s, 3, posi), l)
	if posi <= 0 {
		posi = 1
	}
	if pose > l {
		pose = l
	}
	if posi > pose {
		return 0, nil
	}
	n := pose - posi + 1
	for i := 0; i < n; i++ {
		s.PushInteger(int64(str[posi+i-1]))
	}
	return n, nil
}

// strChar mirrors str_char: builds a string from a run of
// byte-value arguments.
func strChar(s *lua.State) (int, error) {
	n := s.Top()
	buf := make([]byte, n)
	for i := 1; i <= n; i++ {
		c, ok := s.ToInteger(i)
		if !ok || c < 0 || c > 255 {
			return 0, s.RuntimeErrorf("bad argument #%d to 'char' (invalid value)", i)
		}
		buf[i-1] = byte(c)
	}
	s.PushString(string(buf))
	return 1, nil
}

// strFormat is a %-directive subset of str_format: %d %i %u
// %s %q %f %g %x %X %o %c %%, width/precision flags passed through to
// Go's fmt since both follow C printf conventions.
func strFormat(s *lua.State) (int, error) {
	format, err := checkString(s, 1)
	if err != nil {
		return 0, err
	}
	var out strings.Builder
	arg := 2
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ #0123456789.", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			return 0, s.RuntimeErrorf("invalid format string to 'format'")
		}
		spec := format[i : j+1]
		verb := format[j]
		i = j
		if verb == '%' {
			out.WriteByte('%')
			continue
		}
		switch verb {
		case 'd', 'i', 'u', 'o', 'x', 'X', 'c':
			n, _ := s.ToInteger(arg)
			arg++
			v := verb
			if v == 'i' || v == 'u' {
				v = 'd'
			}
			fmt.Fprintf(&out, spec[:len(spec)-1]+string(v), n)
		case 'f', 'F', 'g', 'G', 'e', 'E':
			n, _ := s.ToNumber(arg)
			arg++
			fmt.Fprintf(&out, spec, n)
		case 's':
			str := toDisplayString(s, arg)
			arg++
			fmt.Fprintf(&out, spec, str)
		case 'q':
			str := toDisplayString(s, arg)
			arg++
			out.WriteString(strconvQuote(str))
		default:
			return 0, s.RuntimeErrorf("invalid option '%%%c' to 'format'", verb)
		}
	}
	s.PushString(out.String())
	return 1, nil
}

// strconvQuote renders str the way str_format's %q does:
// double-quoted with \n, \", \\ and control bytes escaped so the
// result reads back as the same Lua string literal.
func strconvQuote(str string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(str); i++ {
		c := str[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == 0:
			b.WriteString(`\000`)
		case c < 32 || c == 127:
			fmt.Fprintf(&b, `\%03d`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

var stringFuncs = []reg{
	{"byte", strByte},
	{"char", strChar},
	{"format", strFormat},
	{"len", strLen},
	{"lower", strLower},
	{"rep", strRep},
	{"sub", strSub},
	{"upper", strUpper},
}

// openString installs the string library, minus the pattern-matching
// family (find/match/gmatch/gsub). It also installs the library table
// as every string's __index (luaopen_string's createmetatable), so
// `("x"):upper()` method-call syntax dispatches into it.
func openString(s *lua.State) {
	newLibTable(s, "string", stringFuncs)
	s.GetField(lua.GlobalsIndex, "string")
	libIdx := s.Top()
	s.CreateTable(0, 1)
	mtIdx := s.Top()
	s.PushValue(libIdx)
	s.SetField(mtIdx, "__index")
	mt := s.Get(mtIdx).(*lua.Table)
	s.SetStringMetatable(mt)
	s.Pop(2)
}
