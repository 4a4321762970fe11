// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compiler implements the lexer and the single-pass
// parser/code-generator for Lua source: no AST is ever built. The
// lexer and code generator live in one package, mirroring how
// llex.c, lparser.c and lcode.c are siblings upstream, since the
// parser drives the lexer token-by-token while emitting bytecode as
// it goes.
package compiler

// tokenKind enumerates every lexical token, reserved words first so a
// simple table lookup can distinguish them from plain identifiers.
type tokenKind int

const (
	tkEOF tokenKind = iota

	// Reserved words.
	tkAnd
	tkBreak
	tkDo
	tkElse
	tkElseif
	tkEnd
	tkFalse
	tkFor
	tkFunction
	tkIf
	tkIn
	tkLocal
	tkNil
	tkNot
	tkOr
	tkRepeat
	tkReturn
	tkThen
	tkTrue
	tkUntil
	tkWhile

	// Symbols.
	tkConcat   // ..
	tkDots     // ...
	tkEq       // ==
	tkGe       // >=
	tkLe       // <=
	tkNe       // ~=
	tkDbColon  // ::  (reserved for forward-compat; unused by the grammar here)

	tkName
	tkString
	tkNumber
)

var keywords = map[string]tokenKind{
	"and": tkAnd, "break": tkBreak, "do": tkDo, "else": tkElse,
	"elseif": tkElseif, "end": tkEnd, "false": tkFalse, "for": tkFor,
	"function": tkFunction, "if": tkIf, "in": tkIn, "local": tkLocal,
	"nil": tkNil, "not": tkNot, "or": tkOr, "repeat": tkRepeat,
	"return": tkReturn, "then": tkThen, "true": tkTrue, "until": tkUntil,
	"while": tkWhile,
}

// token is the lexer's single look-ahead unit.
type token struct {
	kind   tokenKind
	str    string  // tkName, tkString, keywords: text
	num    float64 // tkNumber
	line   int
	sym    byte // for single-character tokens (operators, punctuation)
}
