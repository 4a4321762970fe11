// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lua

// gcColor tracks the tri-color state of a collectable object. Two
// white bits are kept (current and "other") so that the meaning of
// "white" can flip every cycle without a relabeling pass over all
// objects.
//
// The barrier discipline is the classic Dijkstra insertion barrier for
// most objects plus a Yuasa-style re-graying back barrier for tables,
// the combination incremental Lua collectors use.
type gcColor uint8

const (
	colorWhite0 gcColor = 1 << iota
	colorWhite1
	colorGray
	colorBlack
	flagFixed // never collected (reserved strings)
	flagFinalized
)

const colorWhiteBits = colorWhite0 | colorWhite1

// gcHeader is embedded in every collectable object. It links the
// object into the global allocation list and carries its mark bits.
type gcHeader struct {
	next  gcObject
	color gcColor
}

func (h *gcHeader) isWhite() bool { return h.color&colorWhiteBits != 0 }
func (h *gcHeader) isBlack() bool { return h.color&colorBlack != 0 }
func (h *gcHeader) isGray() bool  { return h.color&(colorWhiteBits|colorBlack) == 0 }
func (h *gcHeader) isFixed() bool { return h.color&flagFixed != 0 }
func (h *gcHeader) isDead(currentWhite gcColor) bool {
	return h.color&colorWhiteBits&^currentWhite != 0
}

// gcObject is implemented by every heap-allocated, collectable value:
// *Str, *Table, *LuaClosure, *GoClosure, *UserData, *Upvalue.
type gcObject interface {
	header() *gcHeader
	// traverse marks every Value this object directly references and
	// returns an approximate size in bytes, used for the GC step's
	// work budget.
	traverse(g *globalState) int
}

// gcState is one state in the PAUSE -> PROPAGATE -> SWEEPSTRING ->
// SWEEP -> FINALIZE -> PAUSE cycle.
type gcState uint8

const (
	gcPause gcState = iota
	gcPropagate
	gcSweepString
	gcSweep
	gcFinalize
)

// gc is the per-interpreter incremental collector. It lives on
// globalState because all threads sharing a global state share one
// heap and one collection cycle.
type gc struct {
	state gcState

	currentWhite gcColor // colorWhite0 or colorWhite1: "alive this cycle"

	rootgc gcObject // head of the list of all collectable objects

	gray      []gcObject // discovered, not yet traversed
	grayagain []gcObject // black tables revisited in the atomic phase

	weak []*Table // tables with a __mode metafield, revisited post-atomic

	tmudata []*UserData // userdata awaiting finalization

	totalBytes int
	threshold  int // a new cycle starts when totalBytes passes this
	debt       int // bytes allocated since the last step
	stepMul    int // step-size multiplier, percent
	pause      int // cycle-pause multiplier, percent

	sweepCur    gcObject // resume point for the incremental SWEEP phase
	sweepStrIdx int      // cursor into the string-table buckets during SWEEPSTRING
}

const (
	defaultGCPause   = 200 // totalbytes must double before a new cycle starts
	defaultGCStepMul = 200
	gcSweepMax       = 40 // objects examined per sweep step
	gcFinalizeMax    = 1  // __gc calls run per FINALIZE step
)

func newGC() *gc {
	return &gc{
		state:        gcPause,
		currentWhite: colorWhite0,
		stepMul:      defaultGCStepMul,
		pause:        defaultGCPause,
		threshold:    1 << 20,
	}
}

// link registers a freshly allocated object at the head of the
// allocation list, colored the current white (alive-by-default until
// proven unreachable).
func (gcc *gc) link(o gcObject, size int) {
	h := o.header()
	h.color = gcc.currentWhite
	h.next = gcc.rootgc
	gcc.rootgc = o
	gcc.totalBytes += size
}

// barrierForward handles a black object b gaining a reference to a
// white object v (luaC_barrierf): during marking, mark v directly so
// the invariant holds without re-examining b; in any other phase,
// demote b back to white so the next cycle re-derives its color.
func (gcc *gc) barrierForward(b gcObject, v gcObject) {
	if v == nil {
		return
	}
	bh, vh := b.header(), v.header()
	if !bh.isBlack() || !vh.isWhite() {
		return
	}
	if gcc.state == gcPropagate {
		gcc.markObject(v)
		return
	}
	bh.color = gcc.currentWhite
}

// barrierBack handles mutation of a black table (luaC_barrierback):
// the table reverts to gray and is queued for re-traversal in the
// atomic phase, instead of marking its new contents immediately. This
// is cheaper for tables that are written repeatedly, since it defers
// the cost to one re-scan.
func (gcc *gc) barrierBack(t *Table) {
	h := &t.gcHeader
	if !h.isBlack() {
		return
	}
	h.color = colorGray
	gcc.grayagain = append(gcc.grayagain, t)
}

// barrierValue fires the correct barrier for a mutation that stores v
// into owner, dispatching on whether owner is a table (back barrier)
// or anything else (forward barrier).
func (gcc *gc) barrierValue(owner gcObject, v Value) {
	ref, ok := refOf(v)
	if !ok || ref == nil {
		return
	}
	if t, isTable := owner.(*Table); isTable {
		gcc.barrierBack(t)
		return
	}
	gcc.barrierForward(owner, ref)
}

// refOf extracts the collectable object backing v, if any.
func refOf(v Value) (gcObject, bool) {
	switch x := v.(type) {
	case *Str:
		return x, true
	case *Table:
		return x, true
	case *LuaClosure:
		return x, true
	case *GoClosure:
		return x, true
	case *UserData:
		return x, true
	default:
		return nil, false
	}
}

func (gcc *gc) markValue(v Value) {
	if ref, ok := refOf(v); ok && ref != nil {
		gcc.markObject(ref)
	}
}

// markObject moves a white object to gray (queuing it for traversal)
// or, for strings (which reference nothing further), straight to
// black.
func (gcc *gc) markObject(o gcObject) {
	h := o.header()
	if !h.isWhite() {
		return
	}
	if _, isStr := o.(*Str); isStr {
		h.color = h.color&^colorWhiteBits | colorBlack
		return
	}
	h.color = h.color&^colorWhiteBits | colorGray
	gcc.gray = append(gcc.gray, o)
}

// propagateOne pops one object off the gray stack, blackens it, and
// traverses its references. Returns the work performed (bytes), or -1
// if the gray stack was empty.
func (gcc *gc) propagateOne(g *globalState) int {
	if len(gcc.gray) == 0 {
		return -1
	}
	o := gcc.gray[len(gcc.gray)-1]
	gcc.gray = gcc.gray[:len(gcc.gray)-1]
	h := o.header()
	h.color = colorBlack
	work := o.traverse(g)
	if t, ok := o.(*Table); ok && t.weakMode != 0 {
		gcc.weak = append(gcc.weak, t)
	}
	return work
}

// gcStep runs one incremental slice of work, proportional to the
// allocation debt accumulated since the last step, and advances the
// collector's state as phases complete.
func (g *globalState) gcStep() {
	gcc := g.gc
	work := gcc.debt * gcc.stepMul / 100
	if work <= 0 {
		work = 1024
	}
	gcc.debt = 0

	switch gcc.state {
	case gcPause:
		gcc.markRoots(g)
		gcc.state = gcPropagate

	case gcPropagate:
		done := 0
		for done < work {
			w := gcc.propagateOne(g)
			if w < 0 {
				gcc.atomic(g)
				gcc.sweepStrIdx = 0
				gcc.state = gcSweepString
				return
			}
			done += w
		}

	case gcSweepString:
		n := 0
		for gcc.sweepStrIdx < len(g.strings.buckets) && n < gcSweepMax {
			g.strings.sweepBucket(gcc.sweepStrIdx, gcc.currentWhite)
			gcc.sweepStrIdx++
			n++
		}
		if gcc.sweepStrIdx >= len(g.strings.buckets) {
			gcc.sweepCur = gcc.rootgc
			gcc.state = gcSweep
		}

	case gcSweep:
		gcc.sweepStep(g)

	case gcFinalize:
		gcc.finalizeStep(g)
	}
}

// markRoots starts a new cycle: mark the registry, globals, the
// per-basic-type metatables, and every live thread.
func (gcc *gc) markRoots(g *globalState) {
	gcc.gray = gcc.gray[:0]
	gcc.grayagain = gcc.grayagain[:0]
	gcc.weak = gcc.weak[:0]
	gcc.markValue(g.registry)
	gcc.markValue(g.globals)
	for _, mt := range g.metatables {
		if mt != nil {
			gcc.markObject(mt)
		}
	}
	for _, th := range g.threads {
		gcc.markThread(th)
	}
}

func (gcc *gc) markThread(th *State) {
	for i := 0; i < th.top; i++ {
		gcc.markValue(th.stack[i])
	}
	for _, ci := range th.callInfo {
		if ci.closure != nil {
			gcc.markValue(ci.closure)
		}
	}
	for uv := th.openUpvalHead; uv != nil; uv = uv.next {
		gcc.markValue(*uv.v)
	}
}

// atomic is the non-incremental phase: re-mark everything that could
// have mutated during the incremental propagate phase (thread stacks,
// open upvalues, and back-barriered tables), drain gray to empty, then
// resolve weak tables and queue userdata finalizers.
func (gcc *gc) atomic(g *globalState) {
	for _, th := range g.threads {
		gcc.markThread(th)
	}
	gray := gcc.grayagain
	gcc.grayagain = nil
	gcc.gray = append(gcc.gray, gray...)
	for gcc.propagateOne(g) >= 0 {
	}
	gcc.clearWeak()
	gcc.queueFinalizers(g)
}

func (gcc *gc) clearWeak() {
	for _, t := range gcc.weak {
		t.clearWeakRefs(gcc.currentWhite)
	}
}

// queueFinalizers moves dead userdata with a pending finalizer out of
// the allocation list onto the tmudata queue; they are revived (and
// marked finalized, so this happens at most once) as the FINALIZE
// state drains the queue.
func (gcc *gc) queueFinalizers(g *globalState) {
	var prev gcObject
	cur := gcc.rootgc
	for cur != nil {
		h := cur.header()
		next := h.next
		ud, isUD := cur.(*UserData)
		if isUD && ud.finalizer != nil && h.isDead(gcc.currentWhite) && h.color&flagFinalized == 0 {
			if prev == nil {
				gcc.rootgc = next
			} else {
				prev.header().next = next
			}
			h.next = nil
			gcc.tmudata = append(gcc.tmudata, ud)
		} else {
			prev = cur
		}
		cur = next
	}
}

// sweepStep examines up to gcSweepMax objects from the allocation
// list, freeing the dead whites and re-whitening survivors for the
// next cycle.
func (gcc *gc) sweepStep(g *globalState) {
	n := 0
	var prev gcObject
	// Find the predecessor of the resume point.
	if gcc.sweepCur != gcc.rootgc {
		for o := gcc.rootgc; o != nil; o = o.header().next {
			if o.header().next == gcc.sweepCur {
				prev = o
				break
			}
		}
	}
	cur := gcc.sweepCur
	for cur != nil && n < gcSweepMax {
		h := cur.header()
		next := h.next
		switch {
		case h.isFixed():
			prev = cur
		case h.isDead(gcc.currentWhite):
			g.freeObject(cur)
			if prev == nil {
				gcc.rootgc = next
			} else {
				prev.header().next = next
			}
		default:
			h.color = h.color&^(colorWhiteBits|colorBlack) | gcc.currentWhite
			prev = cur
		}
		cur = next
		n++
	}
	gcc.sweepCur = cur
	if cur == nil {
		if len(gcc.tmudata) > 0 {
			gcc.state = gcFinalize
		} else {
			gcc.finishCycle(g)
		}
	}
}

// finalizeStep runs queued __gc finalizers, one per step, reviving
// each userdata into the allocation list with the finalized bit set.
func (gcc *gc) finalizeStep(g *globalState) {
	n := 0
	for n < gcFinalizeMax && len(gcc.tmudata) > 0 {
		ud := gcc.tmudata[len(gcc.tmudata)-1]
		gcc.tmudata = gcc.tmudata[:len(gcc.tmudata)-1]
		h := ud.header()
		h.color = gcc.currentWhite | flagFinalized
		h.next = gcc.rootgc
		gcc.rootgc = ud
		if fin := ud.finalizer; fin != nil {
			ud.finalizer = nil
			fin(ud)
		}
		n++
	}
	if len(gcc.tmudata) == 0 {
		gcc.finishCycle(g)
	}
}

func (gcc *gc) finishCycle(g *globalState) {
	gcc.state = gcPause
	gcc.currentWhite ^= colorWhiteBits
	gcc.threshold = gcc.totalBytes * gcc.pause / 100
}

// checkGC is the per-allocation hook: it accumulates debt and, once
// the threshold is passed, runs a GC step, smoothing pauses across
// allocations rather than running one long stop-the-world pass.
func (g *globalState) checkGC(size int) {
	g.gc.debt += size
	if g.gc.totalBytes >= g.gc.threshold {
		g.gcStep()
	}
}

// collectGarbage drives the collector through one complete cycle,
// the equivalent of lua_gc(L, LUA_GCCOLLECT, 0).
func (g *globalState) collectGarbage() {
	if g.gc.state == gcPause {
		g.gcStep() // start a cycle
	}
	for g.gc.state != gcPause {
		g.gcStep()
	}
}
