// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bindgen

import (
	"fmt"
	"strconv"
	"strings"
)

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokChar
	tokPunct
)

type ctoken struct {
	kind tokKind
	text string
	file string
	line int
}

// is matches punctuators and identifiers, never literals.
func (t ctoken) is(text string) bool {
	return (t.kind == tokPunct || t.kind == tokIdent) && t.text == text
}

// macro is a #define kept in the output by -dD.
type macro struct {
	name     string
	funcLike bool
	value    []ctoken
	file     string
	line     int
}

// lexer turns preprocessor output into tokens tagged with their origin.
// Line markers ("# 12 "file" flags") move the current origin.
type lexer struct {
	file   string
	line   int
	toks   []ctoken
	macros []macro
	undefs map[string]int // name -> index into macros at the time of #undef
}

func newLexer() *lexer {
	return &lexer{undefs: make(map[string]int)}
}

func (lx *lexer) feed(line string) error {
	lx.line++
	s := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(s, "#") {
		return lx.directive(strings.TrimLeft(s[1:], " \t"))
	}
	toks, err := tokenize(s, lx.file, lx.line)
	if err != nil {
		return err
	}
	lx.toks = append(lx.toks, toks...)
	return nil
}

func (lx *lexer) directive(s string) error {
	switch {
	case s == "":
		return nil
	case isDigit(s[0]):
		return lx.lineMarker(s)
	case strings.HasPrefix(s, "line "):
		return lx.lineMarker(strings.TrimLeft(s[len("line "):], " \t"))
	case strings.HasPrefix(s, "define "):
		return lx.define(strings.TrimLeft(s[len("define "):], " \t"))
	case strings.HasPrefix(s, "undef "):
		name := strings.TrimSpace(s[len("undef "):])
		lx.undefs[name] = len(lx.macros)
	}
	// #pragma, #ident and friends carry no declarations.
	return nil
}

func (lx *lexer) lineMarker(s string) error {
	end := 0
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return fmt.Errorf("%s:%d: bad line marker %q", lx.file, lx.line, s)
	}
	rest := strings.TrimLeft(s[end:], " \t")
	if strings.HasPrefix(rest, `"`) {
		q := closingQuote(rest)
		if q < 0 {
			return fmt.Errorf("%s:%d: bad line marker %q", lx.file, lx.line, s)
		}
		name := rest[:q+1]
		if unq, err := strconv.Unquote(name); err == nil {
			lx.file = unq
		} else {
			lx.file = name[1 : len(name)-1]
		}
	}
	// The marker names the number of the following line.
	lx.line = n - 1
	return nil
}

func (lx *lexer) define(s string) error {
	end := 0
	for end < len(s) && isIdentChar(s[end]) {
		end++
	}
	if end == 0 {
		return nil
	}
	m := macro{name: s[:end], file: lx.file, line: lx.line}
	rest := s[end:]
	if strings.HasPrefix(rest, "(") {
		m.funcLike = true
		return lx.addMacro(m)
	}
	toks, err := tokenize(rest, lx.file, lx.line)
	if err != nil {
		return err
	}
	m.value = toks
	return lx.addMacro(m)
}

func (lx *lexer) addMacro(m macro) error {
	delete(lx.undefs, m.name)
	lx.macros = append(lx.macros, m)
	return nil
}

// liveMacros returns the macros still defined at the end of the stream,
// one per name, in first-definition order with the last value.
func (lx *lexer) liveMacros() []macro {
	index := make(map[string]int)
	var out []macro
	for i, m := range lx.macros {
		if at, ok := lx.undefs[m.name]; ok && i < at {
			continue
		}
		if j, ok := index[m.name]; ok {
			out[j] = m
			continue
		}
		index[m.name] = len(out)
		out = append(out, m)
	}
	return out
}

func tokenize(s, file string, line int) ([]ctoken, error) {
	var toks []ctoken
	emit := func(kind tokKind, text string) {
		toks = append(toks, ctoken{kind: kind, text: text, file: file, line: line})
	}
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			emit(tokIdent, s[i:j])
			i = j
		case isDigit(c) || c == '.' && i+1 < len(s) && isDigit(s[i+1]):
			j := i + 1
			for j < len(s) {
				d := s[j]
				if isIdentChar(d) || d == '.' {
					j++
					continue
				}
				if (d == '+' || d == '-') && strings.IndexByte("eEpP", s[j-1]) >= 0 {
					j++
					continue
				}
				break
			}
			emit(tokNumber, s[i:j])
			i = j
		case c == '"' || c == '\'':
			j := closingQuote(s[i:])
			if j < 0 {
				return nil, fmt.Errorf("%s:%d: unterminated literal", file, line)
			}
			kind := tokString
			if c == '\'' {
				kind = tokChar
			}
			emit(kind, s[i:i+j+1])
			i += j + 1
		case strings.HasPrefix(s[i:], "..."):
			emit(tokPunct, "...")
			i += 3
		case strings.HasPrefix(s[i:], "->"):
			emit(tokPunct, "->")
			i += 2
		default:
			emit(tokPunct, string(c))
			i++
		}
	}
	return toks, nil
}

// closingQuote returns the index of the quote closing the literal that
// starts at s[0], or -1.
func closingQuote(s string) int {
	q := s[0]
	for j := 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j
		}
	}
	return -1
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isIdentStart(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_' || c == '$' || c >= 0x80
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }
