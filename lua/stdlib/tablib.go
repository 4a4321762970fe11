// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stdlib

import (
	"sort"
	"strings"

	"github.com/aclements/go-minilua/lua"
)

// tConcat mirrors tconcat: joins t[i..j] with sep, erroring if any
// element isn't string-convertible.
func tConcat(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'concat' (table expected)")
	}
	sep := optString(s, 2, "")
	i := optInt(s, 3, 1)
	last := optInt(s, 4, s.ObjLen(1))
	var b strings.Builder
	for ; i <= last; i++ {
		s.RawGetI(1, i)
		str, ok := s.ToString(-1)
		typ := s.Type(-1)
		s.Pop(1)
		if !ok {
			return 0, s.RuntimeErrorf("invalid value (%s) at index %d in table for 'concat'", typ, i)
		}
		b.WriteString(str)
		if i < last {
			b.WriteString(sep)
		}
	}
	s.PushString(b.String())
	return 1, nil
}

// tInsert mirrors tinsert: two-argument form appends,
// three-argument form shifts t[pos..e] up by one.
func tInsert(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'insert' (table expected)")
	}
	e := s.ObjLen(1) + 1
	switch s.Top() {
	case 2:
		s.RawSetI(1, e)
	case 3:
		pos := optInt(s, 2, e)
		if pos > e {
			e = pos
		}
		for i := e; i > pos; i-- {
			s.RawGetI(1, i-1)
			s.RawSetI(1, i)
		}
		s.PushValue(3)
		s.RawSetI(1, pos)
	default:
		return 0, s.RuntimeErrorf("wrong number of arguments to 'insert'")
	}
	return 0, nil
}

// tRemove mirrors tremove: removes t[pos] (default the
// last element), shifting everything above it down by one.
func tRemove(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'remove' (table expected)")
	}
	e := s.ObjLen(1)
	pos := optInt(s, 2, e)
	if e == 0 {
		return 0, nil
	}
	if !(1 <= pos && pos <= e) {
		return 0, nil
	}
	s.RawGetI(1, pos)
	for ; pos < e; pos++ {
		s.RawGetI(1, pos+1)
		s.RawSetI(1, pos)
	}
	s.PushNil()
	s.RawSetI(1, e)
	return 1, nil
}

func tGetN(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'getn' (table expected)")
	}
	s.PushInteger(int64(s.ObjLen(1)))
	return 1, nil
}

// tSort is an optional-comparator in-place sort over t[1..#t],
// using the sort package rather than a hand-rolled quicksort; the
// observable behavior (a total order over the array part) is the
// same.
func tSort(s *lua.State) (int, error) {
	if !s.IsTable(1) {
		return 0, s.RuntimeErrorf("bad argument #1 to 'sort' (table expected)")
	}
	n := s.ObjLen(1)
	cmp := s.Get(2)
	vals := make([]lua.Value, n)
	for i := 1; i <= n; i++ {
		s.RawGetI(1, i)
		vals[i-1] = s.Get(-1)
		s.Pop(1)
	}
	var sortErr error
	sort.SliceStable(vals, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		if cmp != nil {
			results, err := s.Call(cmp, vals[i], vals[j])
			if err != nil {
				sortErr = err
				return false
			}
			return len(results) > 0 && lua.Truthy(results[0])
		}
		less, err := s.DefaultLess(vals[i], vals[j])
		if err != nil {
			sortErr = err
			return false
		}
		return less
	})
	if sortErr != nil {
		return 0, sortErr
	}
	for i, v := range vals {
		s.PushAny(v)
		s.RawSetI(1, i+1)
	}
	return 0, nil
}

var tableFuncs = []reg{
	{"concat", tConcat},
	{"insert", tInsert},
	{"remove", tRemove},
	{"getn", tGetN},
	{"sort", tSort},
}

func openTable(s *lua.State) {
	newLibTable(s, "table", tableFuncs)
}
