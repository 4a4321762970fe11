// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"strings"
	"testing"

	"github.com/aclements/go-minilua/lua"
)

func scanAll(t *testing.T, src string) []token {
	t.Helper()
	l := newLexer(strings.NewReader(src), "test")
	var toks []token
	for {
		tok := l.next()
		toks = append(toks, tok)
		if tok.kind == tkEOF {
			return toks
		}
	}
}

func TestLexerNamesAndKeywords(t *testing.T) {
	toks := scanAll(t, "local x = foo")
	want := []tokenKind{tkLocal, tkName, tokenKind('='), tkName, tkEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].kind != k {
			t.Fatalf("token %d kind = %v, want %v", i, toks[i].kind, k)
		}
	}
	if toks[1].str != "x" || toks[3].str != "foo" {
		t.Fatalf("names = %q, %q, want x, foo", toks[1].str, toks[3].str)
	}
}

func TestLexerDecimalNumber(t *testing.T) {
	toks := scanAll(t, "3.14")
	if toks[0].kind != tkNumber || toks[0].num != 3.14 {
		t.Fatalf("token = %+v, want tkNumber 3.14", toks[0])
	}
}

func TestLexerHexNumber(t *testing.T) {
	toks := scanAll(t, "0xFF")
	if toks[0].kind != tkNumber || toks[0].num != 255 {
		t.Fatalf("token = %+v, want tkNumber 255", toks[0])
	}
}

func TestLexerExponentNumber(t *testing.T) {
	toks := scanAll(t, "1e3")
	if toks[0].kind != tkNumber || toks[0].num != 1000 {
		t.Fatalf("token = %+v, want tkNumber 1000", toks[0])
	}
}

func TestLexerShortStringDoubleQuote(t *testing.T) {
	toks := scanAll(t, `"hello\nworld"`)
	if toks[0].kind != tkString || toks[0].str != "hello\nworld" {
		t.Fatalf("token = %+v, want tkString %q", toks[0], "hello\nworld")
	}
}

func TestLexerShortStringSingleQuote(t *testing.T) {
	toks := scanAll(t, `'it\'s'`)
	if toks[0].kind != tkString || toks[0].str != "it's" {
		t.Fatalf("token = %+v, want tkString \"it's\"", toks[0])
	}
}

func TestLexerLongBracketString(t *testing.T) {
	toks := scanAll(t, "[[hello\nworld]]")
	if toks[0].kind != tkString || toks[0].str != "hello\nworld" {
		t.Fatalf("token = %+v, want tkString %q", toks[0], "hello\nworld")
	}
}

func TestLexerLongBracketWithLevel(t *testing.T) {
	toks := scanAll(t, "[==[a]]b]==]")
	if toks[0].kind != tkString || toks[0].str != "a]]b" {
		t.Fatalf("token = %+v, want tkString %q", toks[0], "a]]b")
	}
}

func TestLexerLineComment(t *testing.T) {
	toks := scanAll(t, "-- comment\nlocal")
	if toks[0].kind != tkLocal {
		t.Fatalf("token = %+v, want tkLocal (comment skipped)", toks[0])
	}
	if toks[0].line != 2 {
		t.Fatalf("line = %d, want 2", toks[0].line)
	}
}

func TestLexerLongBracketComment(t *testing.T) {
	toks := scanAll(t, "--[[ a\nmulti-line\ncomment ]]local x")
	if toks[0].kind != tkLocal {
		t.Fatalf("token = %+v, want tkLocal (long comment skipped)", toks[0])
	}
}

func TestLexerCRLFCountsAsOneLine(t *testing.T) {
	toks := scanAll(t, "local\r\nx")
	if toks[1].line != 2 {
		t.Fatalf("line = %d, want 2 (CRLF is one newline)", toks[1].line)
	}
}

func TestLexerMultiCharOperators(t *testing.T) {
	toks := scanAll(t, "== ~= <= >= .. ...")
	want := []tokenKind{tkEq, tkNe, tkLe, tkGe, tkConcat, tkDots, tkEOF}
	for i, k := range want {
		if toks[i].kind != k {
			t.Fatalf("token %d kind = %v, want %v", i, toks[i].kind, k)
		}
	}
}

func TestLexerPeekTokDoesNotConsume(t *testing.T) {
	l := newLexer(strings.NewReader("local x"), "test")
	peeked := l.peekTok()
	if peeked.kind != tkLocal {
		t.Fatalf("peekTok = %+v, want tkLocal", peeked)
	}
	got := l.next()
	if got.kind != tkLocal {
		t.Fatalf("next after peekTok = %+v, want tkLocal", got)
	}
	if l.next().kind != tkName {
		t.Fatalf("second next should be the name token")
	}
}

func TestLexerUnfinishedStringError(t *testing.T) {
	l := newLexer(strings.NewReader(`"unterminated`), "chunk")
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic on unterminated string")
		}
		le, ok := r.(*lua.Error)
		if !ok {
			t.Fatalf("panic value = %T, want *lua.Error", r)
		}
		if !strings.HasPrefix(le.Error(), "chunk:") {
			t.Fatalf("error %q missing chunkname prefix", le.Error())
		}
	}()
	l.next()
}
