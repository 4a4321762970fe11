// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package opcode

// Op is one VM opcode, following the Lua 5.1 instruction set.
type Op uint8

const (
	Move Op = iota
	LoadK
	LoadBool
	LoadNil
	GetUpval
	GetGlobal
	GetTable
	SetGlobal
	SetUpval
	SetTable
	NewTable
	Self
	Add
	Sub
	Mul
	Div
	Mod
	Pow
	Unm
	Not
	Len
	Concat
	Jmp
	Eq
	Lt
	Le
	Test
	TestSet
	Call
	TailCall
	Return
	ForLoop
	ForPrep
	TForLoop
	SetList
	Close
	Closure
	Vararg

	numOps
)

var names = [numOps]string{
	Move:     "MOVE",
	LoadK:    "LOADK",
	LoadBool: "LOADBOOL",
	LoadNil:  "LOADNIL",
	GetUpval: "GETUPVAL",
	GetGlobal: "GETGLOBAL",
	GetTable: "GETTABLE",
	SetGlobal: "SETGLOBAL",
	SetUpval: "SETUPVAL",
	SetTable: "SETTABLE",
	NewTable: "NEWTABLE",
	Self:     "SELF",
	Add:      "ADD",
	Sub:      "SUB",
	Mul:      "MUL",
	Div:      "DIV",
	Mod:      "MOD",
	Pow:      "POW",
	Unm:      "UNM",
	Not:      "NOT",
	Len:      "LEN",
	Concat:   "CONCAT",
	Jmp:      "JMP",
	Eq:       "EQ",
	Lt:       "LT",
	Le:       "LE",
	Test:     "TEST",
	TestSet:  "TESTSET",
	Call:     "CALL",
	TailCall: "TAILCALL",
	Return:   "RETURN",
	ForLoop:  "FORLOOP",
	ForPrep:  "FORPREP",
	TForLoop: "TFORLOOP",
	SetList:  "SETLIST",
	Close:    "CLOSE",
	Closure:  "CLOSURE",
	Vararg:   "VARARG",
}

func (op Op) String() string {
	if int(op) < len(names) {
		return names[op]
	}
	return "UNKNOWN"
}

// Mode describes how an instruction's operands are laid out.
type Mode uint8

const (
	IABC Mode = iota
	IABx
	IASBx
)

var modes = [numOps]Mode{
	LoadK:   IABx,
	GetGlobal: IABx,
	SetGlobal: IABx,
	Jmp:      IASBx,
	ForLoop:  IASBx,
	ForPrep:  IASBx,
	Closure:  IABx,
}

// ModeOf reports op's instruction layout.
func ModeOf(op Op) Mode { return modes[op] }

// TestsNext reports whether op is followed by a conditional JMP that
// is only executed when this instruction "fails" (EQ, LT, LE, TEST,
// TESTSET, and the loop ops all participate in this convention).
func TestsNext(op Op) bool {
	switch op {
	case Eq, Lt, Le, Test, TestSet, TForLoop:
		return true
	}
	return false
}
