// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

import "fmt"

// Basic-type indices into globalState.metatables.
const (
	typeNil = iota
	typeBoolean
	typeNumber
	typeString
	typeTable
	typeFunction
	typeUserData
	typeThread
	numBasicTypes
)

// metaNameStrings are the reserved metamethod-name strings, interned
// once at startup the way luaT_init does.
var metaNameStrings = []string{
	"__index", "__newindex", "__gc", "__mode", "__eq", "__len",
	"__lt", "__le", "__add", "__sub", "__mul", "__div", "__mod",
	"__pow", "__unm", "__concat", "__call", "__tostring",
}

const (
	tmIndex = iota
	tmNewIndex
	tmGC
	tmMode
	tmEq
	tmLen
	tmLt
	tmLe
	tmAdd
	tmSub
	tmMul
	tmDiv
	tmMod
	tmPow
	tmUnm
	tmConcat
	tmCall
	tmToString
	numTM
)

// globalState is the per-interpreter aggregate shared by every thread
// created from the same root State. Two independent interpreters never
// share one.
type globalState struct {
	strings *stringTable
	gc      *gc

	registry *Table
	globals  *Table

	metatables [numBasicTypes]*Table
	metaNames  [numTM]*Str

	threads []*State

	panicFn func(*State, Value)

	memErrString *Str
}

// CallInfo is the bookkeeping for one active function invocation.
type CallInfo struct {
	funcIndex  int // stack slot holding the closure being called
	base       int // index of the first local in the stack
	top        int // stack ceiling reserved for this frame
	closure    Value
	savedPC    int // saved PC for non-leaf (Lua) frames
	nResults   int // expected return count, -1 means "all"
	isTailcall bool
	tailcalls  int
	nVarargs   int // count of extra varargs stashed just below base
}

// State is one Lua thread: a value stack, a call-info stack, and the
// bits that make error unwinding work. Coroutines are not supported,
// so a globalState normally owns exactly one State, but the type stays
// separate from globalState to keep the stack/call-frame logic
// decoupled from the shared heap, matching the lua_State/global_State
// split.
type State struct {
	g *globalState

	stack []Value
	top   int

	callInfo []*CallInfo

	openUpvalHead *Upvalue

	errFunc int // stack index of the installed message handler, or 0

	ci *CallInfo // == callInfo[len(callInfo)-1], cached for hot path
}

const (
	minStackSize  = 64
	maxStackSize  = 8000 // hard cap on value-stack slots
	maxCallInfos  = 20000
	stackGuard    = 5 // tail guard slots
	maxCCalls     = 200
	maxIndexChain = 100 // __index/__newindex chain hop limit
)

// NewState creates a fresh interpreter with its own global state: its
// own string table, GC arena, registry and globals table. It shares
// nothing with any other State.
func NewState() *State {
	g := &globalState{
		strings: newStringTable(),
		gc:      newGC(),
	}
	for i, n := range metaNameStrings {
		s := g.intern(n)
		s.color |= flagFixed
		g.metaNames[i] = s
	}
	g.memErrString = g.intern("not enough memory")
	g.memErrString.color |= flagFixed
	g.registry = g.newTable(0, 0)
	g.globals = g.newTable(0, 0)

	s := &State{
		g:     g,
		stack: make([]Value, minStackSize+stackGuard),
	}
	g.threads = append(g.threads, s)
	root := &CallInfo{base: 0, top: minStackSize, nResults: -1}
	s.callInfo = []*CallInfo{root}
	s.ci = root
	s.top = 0
	return s
}

// newTable allocates a table registered with the collector.
func (g *globalState) newTable(narray, nhash int) *Table {
	t := newTable(narray, nhash)
	g.gc.link(t, 64+narray*8+nhash*24)
	return t
}

// Globals returns the thread's global-variable table (the default
// environment for new closures, and the GLOBALS pseudo-index target).
func (s *State) Globals() *Table { return s.g.globals }

// Registry returns the registry table (the REGISTRY pseudo-index
// target): a table only Go code can reach, used to stash state across
// calls without polluting globals.
func (s *State) Registry() *Table { return s.g.registry }

func (s *State) grow(n int) {
	need := s.top + n + stackGuard
	if need <= len(s.stack) {
		return
	}
	newSize := len(s.stack) * 2
	for newSize < need {
		newSize *= 2
	}
	if newSize > maxStackSize+stackGuard {
		if need > maxStackSize+stackGuard {
			panic(s.newRuntimeError("stack overflow"))
		}
		newSize = maxStackSize + stackGuard
	}
	old := s.stack
	s.stack = make([]Value, newSize)
	copy(s.stack, old)
	// Growth invalidates every pointer into the old backing array;
	// open upvalues are the only absolute pointers kept, so repoint
	// them (CallInfo fields are indices and survive as-is).
	for uv := s.openUpvalHead; uv != nil; uv = uv.next {
		uv.v = &s.stack[uv.stackIndex]
	}
}

func (s *State) pushCallInfo(ci *CallInfo) {
	if len(s.callInfo) >= maxCallInfos {
		panic(s.newRuntimeError("stack overflow"))
	}
	s.callInfo = append(s.callInfo, ci)
	s.ci = ci
}

func (s *State) popCallInfo() {
	s.callInfo = s.callInfo[:len(s.callInfo)-1]
	s.ci = s.callInfo[len(s.callInfo)-1]
}

// findOrCreateUpvalue returns the open upvalue for stack slot idx,
// creating one and linking it into the address-descending list if
// none exists yet.
func (s *State) findOrCreateUpvalue(idx int) *Upvalue {
	var prev *Upvalue
	cur := s.openUpvalHead
	for cur != nil && cur.stackIndex > idx {
		prev = cur
		cur = cur.next
	}
	if cur != nil && cur.stackIndex == idx {
		return cur
	}
	uv := &Upvalue{
		v:          &s.stack[idx],
		stackIndex: idx,
		thread:     s,
		next:       cur,
	}
	if prev != nil {
		prev.next = uv
		uv.prev = prev
	} else {
		s.openUpvalHead = uv
	}
	if cur != nil {
		cur.prev = uv
	}
	s.g.gc.link(uv, 24)
	return uv
}

// closeUpvals closes every open upvalue at or above stack slot level.
// Because the list is kept address-descending, this is a prefix walk.
func (s *State) closeUpvals(level int) {
	for s.openUpvalHead != nil && s.openUpvalHead.stackIndex >= level {
		s.openUpvalHead.close()
	}
}

// freeObject subtracts a flat 32 bytes from the accounted heap size,
// whatever size was charged when o was linked; Go's own runtime reclaims the
// memory once the last reference from the GC arena's bookkeeping is
// gone, so there is nothing further to release here.
func (g *globalState) freeObject(o gcObject) {
	g.gc.totalBytes -= 32
}

// String returns a debug-oriented description, not part of the
// language surface.
func (s *State) String() string {
	return fmt.Sprintf("lua.State{top=%d, calls=%d}", s.top, len(s.callInfo))
}
