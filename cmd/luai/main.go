// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command luai is a small standalone interpreter driver: it opens a
// *lua.State, installs the standard library, and runs either a script
// file, an -e inline chunk, or an interactive REPL, reporting errors
// in the usual "chunkname:line: message" shape.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/aclements/go-minilua/lua"
	"github.com/aclements/go-minilua/lua/compiler"
	"github.com/aclements/go-minilua/lua/stdlib"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("luai: ")

	var inline string
	var interactive bool
	flag.StringVar(&inline, "e", "", "execute `chunk` instead of (or before) a script file")
	flag.BoolVar(&interactive, "i", false, "enter interactive mode after running the script")
	flag.Parse()

	s := lua.NewState()
	stdlib.Open(s)

	ran := false
	if inline != "" {
		if !runChunk(s, []byte(inline), "=(command line)") {
			os.Exit(1)
		}
		ran = true
	}

	if flag.NArg() > 0 {
		path := flag.Arg(0)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("%s", err)
		}
		if !runChunk(s, data, "@"+path) {
			os.Exit(1)
		}
		ran = true
	}

	if interactive || !ran {
		repl(s)
	}
}

// runChunk compiles and runs a chunk, printing any propagated error
// to stderr and reporting whether it succeeded (lua.c's exit-status
// convention: success on ok, failure on any propagated error).
func runChunk(s *lua.State, data []byte, chunkName string) bool {
	// luaO_chunkid strips the leading '@'/'=' sigil before
	// display; since this driver never re-derives a chunkname from a
	// loaded proto elsewhere, strip it once here instead.
	if len(chunkName) > 0 && (chunkName[0] == '@' || chunkName[0] == '=') {
		chunkName = chunkName[1:]
	}
	cl, err := compiler.Compile(s, &bufReader{data: data}, chunkName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "luai: %s\n", err)
		return false
	}
	_, err = s.Call(cl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "luai: %s\n", err)
		return false
	}
	return true
}

// bufReader hands an in-memory chunk to the lexer's io.Reader
// plumbing in a single read.
type bufReader struct {
	data []byte
	done bool
}

func (r *bufReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	if len(r.data) == 0 {
		r.done = true
	}
	return n, nil
}

// repl mirrors lua.c's interactive loop: a "> " prompt reads one
// line at a time, compiling and running it as a chunk named after
// the line number. When stdin isn't a terminal the prompt is
// suppressed and input is consumed as a batch.
func repl(s *lua.State) {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for {
		if interactive {
			fmt.Fprint(os.Stderr, "> ")
		}
		if !in.Scan() {
			if interactive {
				fmt.Fprintln(os.Stderr)
			}
			return
		}
		n++
		line := in.Text()
		if line == "" {
			continue
		}
		chunkName := fmt.Sprintf("=stdin:%d", n)
		runChunk(s, []byte(line), chunkName)
	}
}
