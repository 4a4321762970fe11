// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package opcode defines the register-based instruction encoding
// shared by the compiler (which emits instructions) and the virtual
// machine (which dispatches them). It has no dependency on either, so
// importing it from both does not create a cycle.
package opcode

// Instruction is one packed 32-bit VM instruction. Three layouts are
// used, distinguished by the opcode's mode (see Modes):
//
//	iABC:  op:6 A:8 C:9 B:9
//	iABx:  op:6 A:8 Bx:18
//	iAsBx: op:6 A:8 sBx:18 (signed, stored biased by MaxArgSBx)
type Instruction uint32

const (
	sizeOp = 6
	sizeA  = 8
	sizeB  = 9
	sizeC  = 9
	sizeBx = sizeB + sizeC

	posOp = 0
	posA  = posOp + sizeOp
	posC  = posA + sizeA
	posB  = posC + sizeC
	posBx = posC

	MaxArgA  = 1<<sizeA - 1
	MaxArgB  = 1<<sizeB - 1
	MaxArgC  = 1<<sizeC - 1
	MaxArgBx = 1<<sizeBx - 1
	MaxArgSBx = MaxArgBx >> 1
)

func mask1(n, p uint) uint32 { return ^(^uint32(0) << n) << p }
func mask0(n, p uint) uint32 { return ^mask1(n, p) }

// BitRK is set in a B or C operand to mean "this is a constant-pool
// index", unset meaning "this is a register index".
const BitRK = 1 << (sizeB - 1)
const MaxIndexRK = BitRK - 1

// IsK reports whether x (a B or C operand) denotes a constant index.
func IsK(x int) bool { return x&BitRK != 0 }

// IndexK extracts the constant-pool index from a B or C operand for
// which IsK is true.
func IndexK(x int) int { return x &^ BitRK }

// RKAsK encodes constant index i as an RK operand.
func RKAsK(i int) int { return i | BitRK }

func Create(op Op, a, b, c int) Instruction {
	return Instruction(uint32(op)<<posOp |
		uint32(a)<<posA |
		uint32(b)<<posB |
		uint32(c)<<posC)
}

func CreateABx(op Op, a, bx int) Instruction {
	return Instruction(uint32(op)<<posOp |
		uint32(a)<<posA |
		uint32(bx)<<posBx)
}

func CreateAsBx(op Op, a, sbx int) Instruction {
	return CreateABx(op, a, sbx+MaxArgSBx)
}

func (i Instruction) Op() Op { return Op(i >> posOp & (1<<sizeOp - 1)) }
func (i Instruction) A() int { return int(i >> posA & (1<<sizeA - 1)) }
func (i Instruction) B() int { return int(i >> posB & (1<<sizeB - 1)) }
func (i Instruction) C() int { return int(i >> posC & (1<<sizeC - 1)) }
func (i Instruction) Bx() int { return int(i >> posBx & (1<<sizeBx - 1)) }
func (i Instruction) SBx() int { return i.Bx() - MaxArgSBx }

func (i Instruction) SetOp(op Op) Instruction {
	return i&Instruction(mask0(sizeOp, posOp)) | Instruction(op)<<posOp
}
func (i Instruction) SetA(a int) Instruction {
	return i&Instruction(mask0(sizeA, posA)) | Instruction(a)<<posA
}
func (i Instruction) SetB(b int) Instruction {
	return i&Instruction(mask0(sizeB, posB)) | Instruction(b)<<posB
}
func (i Instruction) SetC(c int) Instruction {
	return i&Instruction(mask0(sizeC, posC)) | Instruction(c)<<posC
}
func (i Instruction) SetBx(bx int) Instruction {
	return i&Instruction(mask0(sizeBx, posBx)) | Instruction(bx)<<posBx
}
func (i Instruction) SetSBx(sbx int) Instruction {
	return i.SetBx(sbx + MaxArgSBx)
}

// Int2fb encodes x as an 8-bit "floating byte": a 3-bit mantissa and
// 5-bit exponent, used by NEWTABLE and SETLIST size hints. Values
// below 16 are exact; above that it is a rounded-up approximation.
func Int2fb(x uint) int {
	e := 0
	for x >= 16 {
		x = (x + 1) >> 1
		e++
	}
	if x < 8 {
		return int(x)
	}
	return ((e + 1) << 3) | int(x-8)
}

// Fb2int decodes a floating-byte size hint back to an integer.
func Fb2int(x int) int {
	e := (x >> 3) & 31
	if e == 0 {
		return x
	}
	return ((x & 7) + 8) << uint(e-1)
}
