// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

import "testing"

func countObjects(g *globalState) int {
	n := 0
	for o := g.gc.rootgc; o != nil; o = o.header().next {
		n++
	}
	return n
}

func TestGCCollectsUnreachableTables(t *testing.T) {
	s := NewState()
	before := countObjects(s.g)
	for i := 0; i < 100; i++ {
		s.CreateTable(4, 0)
		s.Pop(1)
	}
	// Two full cycles: the first re-whitens the garbage allocated
	// under the current white, the second actually frees it.
	s.GC()
	s.GC()
	after := countObjects(s.g)
	if after > before+5 {
		t.Fatalf("object count %d after collection, want close to %d", after, before)
	}
}

func TestGCPreservesReachableValues(t *testing.T) {
	s := NewState()
	s.CreateTable(0, 1)
	s.PushString("value")
	s.SetField(1, "key")
	s.GC()
	s.GC()
	s.GetField(1, "key")
	got, ok := s.ToString(-1)
	if !ok || got != "value" {
		t.Fatalf("t.key = %q (%v) after collection, want \"value\"", got, ok)
	}
}

func TestWeakValueTableClearing(t *testing.T) {
	s := NewState()
	s.CreateTable(0, 1) // the weak table, stays at index 1
	s.CreateTable(0, 1) // its metatable
	s.PushString("v")
	s.SetField(2, "__mode")
	s.SetMetatable(1)

	// Store a table value reachable only through the weak table.
	s.CreateTable(0, 0)
	s.SetField(1, "victim")

	s.GC()
	s.GC()
	s.GC()

	s.GetField(1, "victim")
	if !s.IsNil(-1) {
		t.Fatalf("weakly held value survived collection: %v", s.Get(-1))
	}
}

func TestFinalizerRunsOnce(t *testing.T) {
	s := NewState()
	calls := 0
	s.NewUserData("box")
	s.CreateTable(0, 1)
	s.PushGoFunction("fin", func(st *State) (int, error) {
		calls++
		return 0, nil
	})
	s.SetField(2, "__gc")
	s.SetMetatable(1)
	s.Pop(1)

	s.GC()
	s.GC()
	s.GC()
	if calls != 1 {
		t.Fatalf("finalizer ran %d times, want 1", calls)
	}
}

func TestBarrierKeepsNewReferenceAlive(t *testing.T) {
	s := NewState()
	s.CreateTable(0, 1)

	// Drive the collector into its marking phase, then mutate the
	// (already discovered) table.
	s.g.gcStep()
	s.CreateTable(0, 0)
	inner := s.Get(2).(*Table)
	s.SetField(1, "late")

	s.GC()
	s.GC()
	s.GetField(1, "late")
	if got, ok := s.Get(-1).(*Table); !ok || got != inner {
		t.Fatalf("late-added reference lost across collection: %v", s.Get(-1))
	}
}

func TestUpvalueCloseKeepsValue(t *testing.T) {
	s := NewState()
	s.PushNumber(42)
	uv := s.findOrCreateUpvalue(0)
	if !uv.isOpen() {
		t.Fatal("fresh upvalue should be open")
	}
	if *uv.v != Number(42) {
		t.Fatalf("open upvalue reads %v, want 42", *uv.v)
	}
	s.closeUpvals(0)
	if uv.isOpen() {
		t.Fatal("upvalue still open after closeUpvals")
	}
	if *uv.v != Number(42) {
		t.Fatalf("closed upvalue holds %v, want 42", *uv.v)
	}
	if s.openUpvalHead != nil {
		t.Fatal("open-upvalue list not empty after closing")
	}
}

func TestStringInterningIdentity(t *testing.T) {
	s := NewState()
	a := s.NewString("hello world")
	b := s.NewString("hello" + " " + "world")
	if a != b {
		t.Fatalf("equal-content strings interned to distinct pointers %p %p", a, b)
	}
}
