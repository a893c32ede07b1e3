// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bindgen

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Header is the C surface declared by the headers under one include
// directory, in declaration order.
type Header struct {
	Consts  []Const
	Types   []Typedef
	Funcs   []Func
	Skipped []Skip
}

// Const is an object-like macro with a literal value, or an enumerator.
type Const struct {
	Name string
	// Value is a Go literal. It is empty for enumerators, whose value
	// is taken from C.
	Value string
}

// Typedef is a C typedef name.
type Typedef struct {
	Name string
}

// Func is a C function prototype.
type Func struct {
	Name   string
	Result CType
	Params []Param
}

// Param is one function parameter. Name may be empty.
type Param struct {
	Name string
	Type CType
}

// CType is a C type reduced to what a cgo signature needs.
type CType struct {
	// Base is a canonical basic type ("unsigned int"), a tagged type
	// ("struct HTS_Label") or a typedef name.
	Base     string
	Pointers int
	FuncPtr  bool
}

// Skip records a declaration that has no Go rendering.
type Skip struct {
	Name   string
	Reason string
}

func (s Skip) String() string { return s.Name + ": " + s.Reason }

// Parse reads the output of "cc -E -dD" and keeps the declarations that
// originate from files under includeDir.
func Parse(r io.Reader, includeDir string) (*Header, error) {
	lx := newLexer()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if err := lx.feed(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	decls, err := splitDecls(lx.toks)
	if err != nil {
		return nil, err
	}

	p := &declParser{h: &Header{}, seen: make(map[string]bool)}
	for _, m := range lx.liveMacros() {
		if inScope(m.file, includeDir) {
			p.macro(m)
		}
	}
	for _, d := range decls {
		if inScope(d[0].file, includeDir) {
			p.decl(d)
		}
	}
	h := p.h
	if len(h.Consts)+len(h.Types)+len(h.Funcs) == 0 {
		return nil, fmt.Errorf("no declarations found under %s", includeDir)
	}
	return h, nil
}

func inScope(file, includeDir string) bool {
	if file == "" {
		return false
	}
	return strings.HasPrefix(filepath.Clean(file), filepath.Clean(includeDir)+string(filepath.Separator))
}

// splitDecls groups tokens into top-level declarations ending in ";" or,
// for function definitions, in the closing brace of the body.
func splitDecls(toks []ctoken) ([][]ctoken, error) {
	var (
		out    [][]ctoken
		start  int
		nest   int
		brace  int
		isBody bool
	)
	for i, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[":
			nest++
		case ")", "]":
			nest--
		case "{":
			if brace == 0 && nest == 0 {
				isBody = i > start && toks[i-1].text == ")"
			}
			brace++
		case "}":
			brace--
			if brace == 0 && nest == 0 && isBody {
				out = append(out, toks[start:i+1])
				start, isBody = i+1, false
			}
		case ";":
			if brace == 0 && nest == 0 {
				out = append(out, toks[start:i+1])
				start = i + 1
			}
		}
		if nest < 0 || brace < 0 {
			return nil, fmt.Errorf("%s:%d: unbalanced %q", t.file, t.line, t.text)
		}
	}
	if start < len(toks) {
		t := toks[start]
		return nil, fmt.Errorf("%s:%d: unterminated declaration", t.file, t.line)
	}
	return out, nil
}

type declParser struct {
	h    *Header
	seen map[string]bool
}

func (p *declParser) skip(name, reason string) {
	p.h.Skipped = append(p.h.Skipped, Skip{Name: name, Reason: reason})
}

func (p *declParser) claim(name string) bool {
	if p.seen[name] {
		return false
	}
	p.seen[name] = true
	return true
}

func (p *declParser) macro(m macro) {
	switch {
	case m.funcLike:
		p.skip(m.name, "function-like macro")
		return
	case len(m.value) == 0, strings.HasPrefix(m.name, "__"):
		// include guards and reserved names
		return
	}
	v, ok := literal(m.value)
	if !ok {
		p.skip(m.name, "macro value is not a literal")
		return
	}
	if p.claim(m.name) {
		p.h.Consts = append(p.h.Consts, Const{Name: m.name, Value: v})
	}
}

func (p *declParser) decl(toks []ctoken) {
	if toks[len(toks)-1].is(";") {
		toks = toks[:len(toks)-1]
	}
	toks = stripNoise(toks)
	if len(toks) == 0 {
		return
	}
	p.enums(toks)

	switch first := toks[0].text; first {
	case "static":
		return
	case "extern":
		toks = toks[1:]
	case "typedef":
		for _, name := range typedefNames(toks[1:]) {
			if p.claim(name) {
				p.h.Types = append(p.h.Types, Typedef{Name: name})
			}
		}
		return
	}
	if len(toks) == 0 || isTagOnly(toks) {
		return
	}
	if toks[len(toks)-1].is("}") {
		p.skip(declName(toks), "function definition")
		return
	}
	fn, reason := parseFunc(toks)
	if reason != "" {
		p.skip(declName(toks), reason)
		return
	}
	if p.claim(fn.Name) {
		p.h.Funcs = append(p.h.Funcs, *fn)
	}
}

// enums collects the enumerators of every enum body in toks.
func (p *declParser) enums(toks []ctoken) {
	for i := 0; i < len(toks); i++ {
		if !toks[i].is("enum") {
			continue
		}
		j := i + 1
		if j < len(toks) && toks[j].kind == tokIdent {
			j++
		}
		if j >= len(toks) || !toks[j].is("{") {
			continue
		}
		end := matching(toks, j)
		for _, item := range splitTop(toks[j+1 : end]) {
			if len(item) > 0 && item[0].kind == tokIdent && p.claim(item[0].text) {
				p.h.Consts = append(p.h.Consts, Const{Name: item[0].text})
			}
		}
		i = end
	}
}

var noise = map[string]bool{
	"__extension__": true,
	"__inline":      true,
	"__inline__":    true,
	"inline":        true,
	"_Noreturn":     true,
	"__restrict":    true,
	"__restrict__":  true,
	"restrict":      true,
}

var noiseWithArgs = map[string]bool{
	"__attribute__": true,
	"__attribute":   true,
	"__asm__":       true,
	"__asm":         true,
	"asm":           true,
	"__declspec":    true,
}

// stripNoise drops compiler extensions that do not change the Go
// signature.
func stripNoise(toks []ctoken) []ctoken {
	out := make([]ctoken, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind == tokIdent && noiseWithArgs[t.text] {
			if i+1 < len(toks) && toks[i+1].is("(") {
				i = matching(toks, i+1)
			}
			continue
		}
		if t.kind == tokIdent && noise[t.text] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// matching returns the index of the bracket closing toks[open], or the
// last index when it is missing.
func matching(toks []ctoken, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].text {
		case "(", "[", "{":
			if toks[i].kind == tokPunct {
				depth++
			}
		case ")", "]", "}":
			if toks[i].kind == tokPunct {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return len(toks) - 1
}

// splitTop splits toks on commas outside any brackets.
func splitTop(toks []ctoken) [][]ctoken {
	var (
		out   [][]ctoken
		depth int
		start int
	)
	for i, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case ",":
			if depth == 0 {
				out = append(out, toks[start:i])
				start = i + 1
			}
		}
	}
	return append(out, toks[start:])
}

var keywords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true, "_Complex": true, "const": true, "volatile": true,
	"struct": true, "union": true, "enum": true, "typedef": true,
	"extern": true, "static": true, "register": true, "auto": true,
}

func isTag(s string) bool { return s == "struct" || s == "union" || s == "enum" }

// isTagOnly reports declarations such as "struct X;" or "enum E {...}".
func isTagOnly(toks []ctoken) bool {
	if !isTag(toks[0].text) {
		return false
	}
	i := 1
	if i < len(toks) && toks[i].kind == tokIdent {
		i++
	}
	if i == len(toks) {
		return true
	}
	return toks[i].is("{") && matching(toks, i) == len(toks)-1
}

// typedefNames returns the names declared by a typedef, without the
// leading keyword.
func typedefNames(toks []ctoken) []string {
	var names []string
	for _, part := range splitTop(toks) {
		if name := declarator(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// declarator finds the identifier declared by one declarator.
func declarator(toks []ctoken) string {
	// (*name)(...) or (**name)[...]
	braces := 0
	for i := 0; i+1 < len(toks); i++ {
		switch {
		case toks[i].is("{"):
			braces++
		case toks[i].is("}"):
			braces--
		}
		if braces == 0 && toks[i].is("(") && toks[i+1].is("*") {
			for j := i + 1; j < len(toks); j++ {
				if toks[j].is("*") {
					continue
				}
				if toks[j].kind == tokIdent && !keywords[toks[j].text] {
					return toks[j].text
				}
				break
			}
		}
	}
	name := ""
	depth := 0
	for _, t := range toks {
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
			continue
		}
		if depth == 0 && t.kind == tokIdent && !keywords[t.text] {
			name = t.text
		}
	}
	if n := len(toks); n >= 2 && isTag(toks[n-2].text) && toks[n-1].text == name {
		// "typedef struct X" declares nothing.
		return ""
	}
	return name
}

func declName(toks []ctoken) string {
	if i := indexTop(toks, "("); i > 0 {
		return toks[i-1].text
	}
	if name := declarator(toks); name != "" {
		return name
	}
	return toks[0].text
}

// indexTop returns the index of the first punctuator s outside braces.
func indexTop(toks []ctoken, s string) int {
	depth := 0
	for i, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "{":
			depth++
		case "}":
			depth--
		case s:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseFunc parses "result name(params)". A non-empty reason means the
// declaration is not a plain function prototype.
func parseFunc(toks []ctoken) (*Func, string) {
	open := indexTop(toks, "(")
	if open < 0 {
		return nil, "variable"
	}
	if open+1 < len(toks) && toks[open+1].is("*") || open == 0 {
		return nil, "function pointer variable"
	}
	name := toks[open-1]
	if name.kind != tokIdent || keywords[name.text] {
		return nil, "unsupported declarator"
	}
	closing := matching(toks, open)
	if closing != len(toks)-1 {
		return nil, "unsupported declarator"
	}
	if open-1 == 0 {
		return nil, "implicit result type"
	}

	result, err := parseType(toks[:open-1], false)
	if err != nil {
		return nil, err.Error()
	}
	fn := &Func{Name: name.text, Result: result.Type}

	inner := toks[open+1 : closing]
	if len(inner) == 0 || len(inner) == 1 && inner[0].is("void") {
		return fn, ""
	}
	for _, part := range splitTop(inner) {
		if len(part) == 1 && part[0].is("...") {
			return nil, "variadic"
		}
		param, err := parseType(part, true)
		if err != nil {
			return nil, err.Error()
		}
		fn.Params = append(fn.Params, param)
	}
	return fn, ""
}

// parseType reads a type, optionally followed by a parameter name.
func parseType(toks []ctoken, named bool) (Param, error) {
	var words []ctoken
	for _, t := range toks {
		switch t.text {
		case "const", "volatile", "register":
			continue
		}
		words = append(words, t)
	}
	if len(words) == 0 {
		return Param{}, fmt.Errorf("missing type")
	}

	// function pointer: ret (*name)(args)
	for i := 0; i+1 < len(words); i++ {
		if words[i].is("(") && words[i+1].is("*") {
			p := Param{Type: CType{FuncPtr: true}}
			if named {
				p.Name = declarator(words)
			}
			return p, nil
		}
	}

	var p Param
	for len(words) > 0 && words[len(words)-1].is("]") {
		open := len(words) - 1
		for open > 0 && !words[open].is("[") {
			open--
		}
		words = words[:open]
		p.Type.Pointers++
	}
	var base []ctoken
	for _, t := range words {
		if t.is("*") {
			p.Type.Pointers++
			continue
		}
		if t.kind != tokIdent {
			return Param{}, fmt.Errorf("unsupported type near %q", t.text)
		}
		base = append(base, t)
	}
	if n := len(base); named && n >= 2 && !keywords[base[n-1].text] && !isTag(base[n-2].text) {
		p.Name = base[n-1].text
		base = base[:n-1]
	}
	b, err := canonical(base)
	if err != nil {
		return Param{}, err
	}
	p.Type.Base = b
	return p, nil
}

// canonical folds type specifier words into one spelling.
func canonical(words []ctoken) (string, error) {
	if len(words) == 0 {
		return "", fmt.Errorf("missing type")
	}
	if isTag(words[0].text) {
		if len(words) != 2 {
			return "", fmt.Errorf("unsupported type %q", join(words))
		}
		return words[0].text + " " + words[1].text, nil
	}
	if len(words) == 1 && !keywords[words[0].text] {
		return words[0].text, nil
	}

	count := make(map[string]int)
	for _, w := range words {
		if !keywords[w.text] {
			return "", fmt.Errorf("unsupported type %q", join(words))
		}
		count[w.text]++
	}
	unsigned := ""
	if count["unsigned"] > 0 {
		unsigned = "unsigned "
	}
	switch {
	case count["void"] > 0:
		return "void", nil
	case count["_Bool"] > 0:
		return "_Bool", nil
	case count["_Complex"] > 0:
		return "", fmt.Errorf("unsupported type %q", join(words))
	case count["char"] > 0:
		if count["signed"] > 0 {
			return "signed char", nil
		}
		return unsigned + "char", nil
	case count["short"] > 0:
		return unsigned + "short", nil
	case count["long"] >= 2:
		return unsigned + "long long", nil
	case count["long"] == 1 && count["double"] > 0:
		return "long double", nil
	case count["long"] == 1:
		return unsigned + "long", nil
	case count["float"] > 0:
		return "float", nil
	case count["double"] > 0:
		return "double", nil
	}
	return unsigned + "int", nil
}

func join(toks []ctoken) string {
	s := make([]string, len(toks))
	for i, t := range toks {
		s[i] = t.text
	}
	return strings.Join(s, " ")
}
