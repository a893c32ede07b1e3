// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bindgen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"regexp"
	"strconv"
	"strings"
)

// Config controls the generated Go file.
type Config struct {
	Package  string
	Header   string   // named in the generated-code banner
	Includes []string // preamble #include lines
	CFlags   []string
	LDFlags  []string
}

var cgoTypes = map[string]string{
	"char":               "C.char",
	"signed char":        "C.schar",
	"unsigned char":      "C.uchar",
	"short":              "C.short",
	"unsigned short":     "C.ushort",
	"int":                "C.int",
	"unsigned int":       "C.uint",
	"long":               "C.long",
	"unsigned long":      "C.ulong",
	"long long":          "C.longlong",
	"unsigned long long": "C.ulonglong",
	"float":              "C.float",
	"double":             "C.double",
}

type emitter struct {
	buf     bytes.Buffer
	local   map[string]bool
	skipped []Skip
	unsafe  bool
}

// Emit renders h as a gofmt'ed cgo source file.
func Emit(h *Header, cfg Config) ([]byte, error) {
	if !token.IsIdentifier(cfg.Package) {
		return nil, fmt.Errorf("invalid package name %q", cfg.Package)
	}
	e := &emitter{local: make(map[string]bool)}
	for _, t := range h.Types {
		e.local[t.Name] = true
	}

	var consts, types, funcs bytes.Buffer
	for _, c := range h.Consts {
		if !e.goName(c.Name) {
			continue
		}
		v := c.Value
		if v == "" {
			v = "C." + c.Name
		}
		fmt.Fprintf(&consts, "\t%s = %s\n", c.Name, v)
	}
	for _, t := range h.Types {
		if !e.goName(t.Name) {
			delete(e.local, t.Name)
			continue
		}
		fmt.Fprintf(&types, "\t%s = C.%s\n", t.Name, t.Name)
	}
	for _, fn := range h.Funcs {
		if !e.goName(fn.Name) {
			continue
		}
		if err := e.function(&funcs, fn); err != nil {
			e.skipped = append(e.skipped, Skip{Name: fn.Name, Reason: err.Error()})
		}
	}

	b := &e.buf
	fmt.Fprintf(b, "// Code generated by htsbuild from %s. DO NOT EDIT.\n\n", cfg.Header)
	fmt.Fprintf(b, "package %s\n\n", cfg.Package)
	b.WriteString("/*\n")
	if len(cfg.CFlags) > 0 {
		fmt.Fprintf(b, "#cgo CFLAGS: %s\n", joinFlags(cfg.CFlags))
	}
	if len(cfg.LDFlags) > 0 {
		fmt.Fprintf(b, "#cgo LDFLAGS: %s\n", joinFlags(cfg.LDFlags))
	}
	for _, inc := range cfg.Includes {
		b.WriteString(inc + "\n")
	}
	b.WriteString("*/\nimport \"C\"\n\n")
	if e.unsafe {
		b.WriteString("import \"unsafe\"\n\n")
	}
	if consts.Len() > 0 {
		fmt.Fprintf(b, "const (\n%s)\n\n", consts.Bytes())
	}
	if types.Len() > 0 {
		fmt.Fprintf(b, "type (\n%s)\n\n", types.Bytes())
	}
	b.Write(funcs.Bytes())

	skipped := append(append([]Skip(nil), h.Skipped...), e.skipped...)
	if len(skipped) > 0 {
		b.WriteString("// The following declarations have no Go binding:\n")
		for _, s := range skipped {
			fmt.Fprintf(b, "//\t%s\n", s)
		}
	}
	return format.Source(b.Bytes())
}

// goName reports whether name can be declared at package level.
func (e *emitter) goName(name string) bool {
	switch {
	case !token.IsIdentifier(name), name == "_":
		e.skipped = append(e.skipped, Skip{Name: name, Reason: "not a Go identifier"})
		return false
	case token.IsKeyword(name), name == "C", name == "unsafe":
		e.skipped = append(e.skipped, Skip{Name: name, Reason: "reserved in Go"})
		return false
	}
	return true
}

func (e *emitter) function(w *bytes.Buffer, fn Func) error {
	result, usesUnsafe, err := e.goType(fn.Result)
	if err != nil {
		return err
	}

	taken := make(map[string]bool)
	params := make([]string, len(fn.Params))
	args := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		typ, u, err := e.goType(p.Type)
		if err != nil {
			return err
		}
		usesUnsafe = usesUnsafe || u
		name := paramName(p.Name, i, taken)
		params[i] = name + " " + typ
		args[i] = name
	}

	fmt.Fprintf(w, "// %s calls the C function of the same name.\n", fn.Name)
	fmt.Fprintf(w, "func %s(%s) %s {\n", fn.Name, strings.Join(params, ", "), result)
	call := fmt.Sprintf("C.%s(%s)", fn.Name, strings.Join(args, ", "))
	if result == "" {
		fmt.Fprintf(w, "\t%s\n}\n\n", call)
	} else {
		fmt.Fprintf(w, "\treturn %s\n}\n\n", call)
	}
	e.unsafe = e.unsafe || usesUnsafe
	return nil
}

func paramName(name string, i int, taken map[string]bool) string {
	switch {
	case name == "", name == "_":
		name = fmt.Sprintf("p%d", i)
	case token.IsKeyword(name), name == "C", name == "unsafe":
		name += "_"
	}
	for taken[name] {
		name += "_"
	}
	taken[name] = true
	return name
}

// goType maps a C type to the cgo spelling used in a signature. The
// second result reports whether the spelling needs package unsafe.
func (e *emitter) goType(t CType) (string, bool, error) {
	if t.FuncPtr {
		return "*[0]byte", false, nil
	}
	stars := strings.Repeat("*", t.Pointers)
	switch base := t.Base; {
	case base == "void":
		if t.Pointers == 0 {
			return "", false, nil
		}
		return stars[1:] + "unsafe.Pointer", true, nil
	case cgoTypes[base] != "":
		return stars + cgoTypes[base], false, nil
	case base == "long double", base == "_Bool":
		return "", false, fmt.Errorf("no cgo type for %s", base)
	case strings.HasPrefix(base, "struct "), strings.HasPrefix(base, "union "), strings.HasPrefix(base, "enum "):
		tag, name, _ := strings.Cut(base, " ")
		return stars + "C." + tag + "_" + name, false, nil
	case e.local[base]:
		return stars + base, false, nil
	default:
		return stars + "C." + base, false, nil
	}
}

func joinFlags(flags []string) string {
	out := make([]string, len(flags))
	for i, f := range flags {
		if strings.ContainsAny(f, " \t'\"") {
			f = "'" + strings.ReplaceAll(f, "'", `'\''`) + "'"
		}
		out[i] = f
	}
	return strings.Join(out, " ")
}

var (
	intLit   = regexp.MustCompile(`^(0[xX][0-9a-fA-F]+|[0-9]+)[uUlL]*$`)
	floatLit = regexp.MustCompile(`^((?:[0-9]+\.[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?|[0-9]+[eE][+-]?[0-9]+)[fFlL]?$`)
)

// literal converts a macro body to a Go constant expression. Only
// numbers, optionally signed and parenthesized, and string literals are
// accepted.
func literal(toks []ctoken) (string, bool) {
	toks = unparen(toks)
	if len(toks) == 0 {
		return "", false
	}
	if toks[0].kind == tokString {
		return goString(toks)
	}
	sign := ""
	if toks[0].is("-") || toks[0].is("+") {
		if toks[0].text == "-" {
			sign = "-"
		}
		toks = unparen(toks[1:])
	}
	if len(toks) != 1 || toks[0].kind != tokNumber {
		return "", false
	}
	text := toks[0].text
	if m := intLit.FindStringSubmatch(text); m != nil {
		return sign + m[1], true
	}
	if m := floatLit.FindStringSubmatch(text); m != nil {
		return sign + m[1], true
	}
	return "", false
}

func unparen(toks []ctoken) []ctoken {
	for len(toks) >= 2 && toks[0].is("(") && matching(toks, 0) == len(toks)-1 {
		toks = toks[1 : len(toks)-1]
	}
	return toks
}

// goString joins adjacent C string literals into one Go literal.
func goString(toks []ctoken) (string, bool) {
	var b strings.Builder
	for _, t := range toks {
		if t.kind != tokString || !strings.HasPrefix(t.text, `"`) {
			return "", false
		}
		s := t.text[1 : len(t.text)-1]
		for i := 0; i < len(s); i++ {
			c := s[i]
			if c != '\\' {
				b.WriteByte(c)
				continue
			}
			i++
			if i == len(s) {
				return "", false
			}
			switch c = s[i]; {
			case strings.IndexByte(`abfnrtv\"`, c) >= 0:
				b.WriteByte('\\')
				b.WriteByte(c)
			case c == '\'' || c == '?':
				b.WriteByte(c)
			case c == 'x':
				j := i + 1
				for j < len(s) && strings.IndexByte("0123456789abcdefABCDEF", s[j]) >= 0 {
					j++
				}
				v, err := strconv.ParseUint(s[i+1:j], 16, 8)
				if err != nil {
					return "", false
				}
				fmt.Fprintf(&b, `\x%02x`, v)
				i = j - 1
			case '0' <= c && c <= '7':
				j := i
				for j < len(s) && j < i+3 && '0' <= s[j] && s[j] <= '7' {
					j++
				}
				v, err := strconv.ParseUint(s[i:j], 8, 8)
				if err != nil {
					return "", false
				}
				fmt.Fprintf(&b, `\x%02x`, v)
				i = j - 1
			default:
				return "", false
			}
		}
	}
	return `"` + b.String() + `"`, true
}
