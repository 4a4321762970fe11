// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

import "testing"

func TestTableArrayFastPath(t *testing.T) {
	tb := newTable(0, 0)
	for i := 1; i <= 8; i++ {
		tb.set(Number(i), Number(i*10))
	}
	if len(tb.array) < 8 {
		t.Fatalf("expected integer keys 1..8 to land in the array part, array len=%d", len(tb.array))
	}
	for i := 1; i <= 8; i++ {
		if got := tb.get(Number(i)); got != Number(i*10) {
			t.Fatalf("t[%d] = %v, want %v", i, got, i*10)
		}
	}
}

func TestTableLenBoundary(t *testing.T) {
	tb := newTable(0, 0)
	tb.set(Number(1), Number(1))
	tb.set(Number(2), Number(2))
	tb.set(Number(3), Number(3))
	tb.set(Number(5), Number(5))
	if n := tb.Len(); n != 3 {
		t.Fatalf("#t = %d, want 3 (index 4 is nil)", n)
	}
}

func TestTableGetMissReturnsSentinel(t *testing.T) {
	tb := newTable(0, 0)
	if v := tb.get(Number(42)); v != nilObject {
		t.Fatalf("get on empty table = %v, want the nilObject sentinel", v)
	}
}

func TestTableNextVisitsEveryKeyOnce(t *testing.T) {
	tb := newTable(0, 0)
	tb.set(Number(1), Number(10))
	tb.set(Number(2), Number(20))
	tb.set(newStr("a"), Number(1))
	tb.set(newStr("b"), Number(2))

	seen := map[Value]bool{}
	var k, v Value
	for {
		nk, nv, ok := tb.next(k)
		if !ok {
			t.Fatalf("next(%v) reported key not found", k)
		}
		if nk == nil {
			break
		}
		if seen[nk] {
			t.Fatalf("key %v visited twice", nk)
		}
		seen[nk] = true
		k, v = nk, nv
		_ = v
	}
	if len(seen) != 4 {
		t.Fatalf("visited %d keys, want 4", len(seen))
	}
}

func TestTableRehashSplitsArrayAndHash(t *testing.T) {
	tb := newTable(0, 0)
	for i := 1; i <= 100; i++ {
		tb.set(Number(i), Number(i))
	}
	if len(tb.array) < 100 {
		t.Fatalf("array part has %d slots, want at least 100 after rehash", len(tb.array))
	}
}

func newStr(s string) *Str {
	return &Str{s: s, hash: strHash(s)}
}
