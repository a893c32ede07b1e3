// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bindgen

import (
	"context"
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/htsengine/pkgs/buildsys"
)

const fixtureInclude = "/opt/hts/installed/include"

func fixture(t *testing.T, includeDir, workDir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "HTS_engine.i"))
	require.NoError(t, err)
	s := strings.ReplaceAll(string(data), "@INCLUDE@", includeDir)
	return strings.ReplaceAll(s, "@WORK@", workDir)
}

func parseFixture(t *testing.T) *Header {
	t.Helper()
	h, err := Parse(strings.NewReader(fixture(t, fixtureInclude, "/opt/hts")), fixtureInclude)
	require.NoError(t, err)
	return h
}

func constNames(h *Header) []string {
	var names []string
	for _, c := range h.Consts {
		names = append(names, c.Name)
	}
	return names
}

func TestParseScope(t *testing.T) {
	h := parseFixture(t)

	assert.Equal(t, []string{
		"TRUE", "FALSE", "ZERO", "LZERO", "HTS_COPYRIGHT", "HTS_VERSION",
		"HTS_NODATA", "MAX_F0", "HTS_MASK", "HTS_FIRST", "HTS_SECOND",
	}, constNames(h))

	var types []string
	for _, td := range h.Types {
		types = append(types, td.Name)
	}
	assert.Equal(t, []string{
		"HTS_Boolean", "HTS_Audio", "HTS_ModelSet", "HTS_Order", "HTS_Callback", "HTS_Engine",
	}, types)

	var funcs []string
	for _, fn := range h.Funcs {
		funcs = append(funcs, fn.Name)
	}
	assert.Contains(t, funcs, "HTS_Engine_initialize")
	assert.Contains(t, funcs, "HTS_Engine_clear")
	assert.NotContains(t, funcs, "printf", "system headers are out of scope")
	assert.NotContains(t, funcs, "fopen")
	assert.NotContains(t, funcs, "HTS_error")

	assert.Equal(t, []Skip{
		{Name: "HTS_MAX", Reason: "function-like macro"},
		{Name: "HTS_error", Reason: "variadic"},
	}, h.Skipped)
}

func TestParseValues(t *testing.T) {
	h := parseFixture(t)
	values := make(map[string]string)
	for _, c := range h.Consts {
		values[c.Name] = c.Value
	}
	assert.Equal(t, "1", values["TRUE"])
	assert.Equal(t, "1.0e-10", values["ZERO"])
	assert.Equal(t, "-1.0e+10", values["LZERO"])
	assert.Equal(t, "0x0F", values["HTS_MASK"])
	assert.Equal(t, `"1.10"`, values["HTS_VERSION"])
	assert.Equal(t,
		`"The HMM-Based Speech Synthesis Engine \"hts_engine API\"\nVersion 1.10 (http://hts-engine.sourceforge.net/)"`,
		values["HTS_COPYRIGHT"])
	assert.Equal(t, "", values["HTS_FIRST"], "enumerators take their value from C")
}

func TestParseSignatures(t *testing.T) {
	h := parseFixture(t)
	funcs := make(map[string]Func)
	for _, fn := range h.Funcs {
		funcs[fn.Name] = fn
	}

	assert.Equal(t, Func{
		Name:   "HTS_Engine_load",
		Result: CType{Base: "HTS_Boolean"},
		Params: []Param{
			{Name: "engine", Type: CType{Base: "HTS_Engine", Pointers: 1}},
			{Name: "voices", Type: CType{Base: "char", Pointers: 2}},
			{Name: "num_voices", Type: CType{Base: "size_t"}},
		},
	}, funcs["HTS_Engine_load"])

	assert.Equal(t, Func{
		Name:   "HTS_calloc",
		Result: CType{Base: "void", Pointers: 1},
		Params: []Param{
			{Name: "num", Type: CType{Base: "size_t"}},
			{Name: "size", Type: CType{Base: "size_t"}},
		},
	}, funcs["HTS_calloc"])

	assert.Empty(t, funcs["HTS_precise"].Params, "(void) declares no parameters")
	assert.Equal(t, CType{Base: "long double"}, funcs["HTS_precise"].Result)
	assert.Equal(t, CType{Base: "unsigned long"}, funcs["HTS_Engine_get_nstate"].Result)
	assert.Equal(t, Param{Name: "buffer", Type: CType{Base: "float", Pointers: 1}}, funcs["HTS_fill"].Params[1])
	assert.Equal(t, Param{Name: "done", Type: CType{FuncPtr: true}}, funcs["HTS_Engine_set_callback"].Params[2])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unterminated", "# 1 \"/inc/a.h\"\nvoid f(int\n"},
		{"unbalanced", "# 1 \"/inc/a.h\"\nvoid f(int));\n"},
		{"unterminated string", "# 1 \"/inc/a.h\"\n#define S \"abc\n"},
		{"nothing in scope", "# 1 \"/usr/include/stdio.h\"\nint puts(const char *s);\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in), "/inc")
			assert.Error(t, err)
		})
	}
}

func TestParseRedefinedMacro(t *testing.T) {
	in := "# 1 \"/inc/a.h\"\n#define A 1\n#define B 2\n#undef B\n#define A 3\nvoid f(void);\n"
	h, err := Parse(strings.NewReader(in), "/inc")
	require.NoError(t, err)
	assert.Equal(t, []Const{{Name: "A", Value: "3"}}, h.Consts)
}

func TestEmit(t *testing.T) {
	h := parseFixture(t)
	cfg := Config{
		Package:  "engine",
		Header:   "HTS_engine.h",
		Includes: []string{"#include <HTS_engine.h>"},
		CFlags:   []string{"-I" + fixtureInclude},
		LDFlags:  []string{"-L/opt/hts/installed/lib", "-lHTSEngine", "-lm"},
	}
	src, err := Emit(h, cfg)
	require.NoError(t, err)
	out := string(src)

	assert.True(t, strings.HasPrefix(out, "// Code generated by htsbuild from HTS_engine.h. DO NOT EDIT.\n"))
	assert.Contains(t, out, "#cgo CFLAGS: -I/opt/hts/installed/include\n")
	assert.Contains(t, out, "#cgo LDFLAGS: -L/opt/hts/installed/lib -lHTSEngine -lm\n")
	assert.Contains(t, out, "#include <HTS_engine.h>\n*/\nimport \"C\"")
	assert.Contains(t, out, "import \"unsafe\"")
	assert.Regexp(t, `\n\tHTS_Engine\s+= C\.HTS_Engine\n`, out)
	assert.Regexp(t, `\n\tHTS_FIRST\s+= C\.HTS_FIRST\n`, out)
	assert.Regexp(t, `\n\tLZERO\s+= -1\.0e\+10\n`, out)
	assert.Contains(t, out, "func HTS_Engine_load(engine *HTS_Engine, voices **C.char, num_voices C.size_t) HTS_Boolean {\n\treturn C.HTS_Engine_load(engine, voices, num_voices)\n}")
	assert.Contains(t, out, "func HTS_Engine_initialize(engine *HTS_Engine) {\n\tC.HTS_Engine_initialize(engine)\n}")
	assert.Contains(t, out, "func HTS_calloc(num C.size_t, size C.size_t) unsafe.Pointer {")
	assert.Contains(t, out, "func HTS_show_copyright(fp *C.FILE) {")
	assert.Contains(t, out, "func HTS_type(type_ C.int) C.int {")
	assert.Contains(t, out, "func HTS_Engine_set_callback(engine *HTS_Engine, cb HTS_Callback, done *[0]byte) {")
	assert.NotContains(t, out, "func HTS_precise")
	assert.Contains(t, out, "//\tHTS_error: variadic\n")
	assert.Contains(t, out, "//\tHTS_precise: no cgo type for long double\n")

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "zz_bindings.go", src, parser.ParseComments)
	require.NoError(t, err)
	assert.Equal(t, "engine", f.Name.Name)
	assert.True(t, ast.IsGenerated(f))

	again, err := Emit(parseFixture(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, src, again, "output must be byte-identical across runs")
}

func TestEmitWithoutPointers(t *testing.T) {
	h := &Header{Funcs: []Func{{Name: "f", Result: CType{Base: "int"}, Params: []Param{{Type: CType{Base: "int"}}, {Type: CType{Base: "int"}}}}}}
	src, err := Emit(h, Config{Package: "p", Header: "a.h"})
	require.NoError(t, err)
	assert.NotContains(t, string(src), "unsafe")
	assert.Contains(t, string(src), "func f(p0 C.int, p1 C.int) C.int {")
}

func TestEmitInvalidPackage(t *testing.T) {
	_, err := Emit(&Header{}, Config{Package: "not a name"})
	assert.Error(t, err)
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"42", "42", true},
		{"42UL", "42", true},
		{"0x7fffffffLL", "0x7fffffff", true},
		{"(((-3)))", "-3", true},
		{"2.5f", "2.5", true},
		{".5", ".5", true},
		{"1e10", "1e10", true},
		{`"a\'b\?"`, `"a'b?"`, true},
		{`"\0\x41\101"`, `"\x00\x41\x41"`, true},
		{`"x" "y"`, `"xy"`, true},
		{"'a'", "", false},
		{"1 + 2", "", false},
		{"SOME_OTHER", "", false},
		{`"\q"`, "", false},
		{`"\x"`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			toks, err := tokenize(tt.in, "a.h", 1)
			require.NoError(t, err)
			got, ok := literal(toks)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"int":                    "int",
		"signed":                 "int",
		"unsigned":               "unsigned int",
		"long int":               "long",
		"long unsigned int":      "unsigned long",
		"unsigned long long int": "unsigned long long",
		"short int":              "short",
		"signed char":            "signed char",
		"char unsigned":          "unsigned char",
		"long double":            "long double",
		"struct HTS_Label":       "struct HTS_Label",
		"HTS_Boolean":            "HTS_Boolean",
	}
	for in, want := range tests {
		toks, err := tokenize(in, "a.h", 1)
		require.NoError(t, err)
		got, err := canonical(toks)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	toks, _ := tokenize("HTS_Boolean HTS_Engine", "a.h", 1)
	_, err := canonical(toks)
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	root := t.TempDir()
	install := filepath.Join(root, "installed")
	inc := filepath.Join(install, "include")
	require.NoError(t, os.MkdirAll(inc, 0o755))

	var got *buildsys.Command
	runner := buildsys.RunnerFunc(func(ctx context.Context, cmd *buildsys.Command) (*buildsys.Output, error) {
		got = cmd
		return &buildsys.Output{Stdout: []byte(fixture(t, inc, root))}, nil
	})
	src, err := Generate(context.Background(), Options{
		InstallDir: install,
		WorkDir:    root,
		CC:         "gcc -std=c99",
		Package:    "hts",
		Runner:     runner,
	})
	require.NoError(t, err)

	wrapper := filepath.Join(root, WrapperName)
	data, err := os.ReadFile(wrapper)
	require.NoError(t, err)
	assert.Equal(t, "#include <HTS_engine.h>\n", string(data))

	require.NotNil(t, got)
	assert.Equal(t, "preprocess", got.Step)
	assert.Equal(t, "gcc", got.Path)
	assert.Equal(t, []string{"-std=c99", "-E", "-dD", "-I" + inc, wrapper}, got.Args)

	out := string(src)
	assert.Contains(t, out, "package hts\n")
	assert.Contains(t, out, "#cgo LDFLAGS: -L"+filepath.Join(install, "lib")+" -lHTSEngine -lm\n")
	assert.Contains(t, out, "func HTS_Engine_clear(engine *HTS_Engine) {")
}

func TestGenerateErrors(t *testing.T) {
	t.Run("missing include dir", func(t *testing.T) {
		_, err := Generate(context.Background(), Options{InstallDir: t.TempDir(), CC: "cc"})
		assert.True(t, errors.Is(err, ErrParse))
	})

	t.Run("no compiler", func(t *testing.T) {
		install := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(install, "include"), 0o755))
		_, err := Generate(context.Background(), Options{InstallDir: install, CC: "  "})
		assert.True(t, errors.Is(err, ErrParse))
	})

	t.Run("preprocessor fails", func(t *testing.T) {
		install := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(install, "include"), 0o755))
		boom := buildsys.RunnerFunc(func(context.Context, *buildsys.Command) (*buildsys.Output, error) {
			return nil, &buildsys.StepError{Step: "preprocess", Err: errors.New("exit status 1")}
		})
		_, err := Generate(context.Background(), Options{InstallDir: install, CC: "cc", Runner: boom})
		assert.True(t, errors.Is(err, ErrParse))
		assert.True(t, errors.Is(err, buildsys.ErrStepFailed))
	})
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "zz_bindings.go")
	require.NoError(t, WriteFile(path, []byte("package engine\n")))
	require.NoError(t, WriteFile(path, []byte("package engine // again\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package engine // again\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	err = WriteFile(filepath.Join(blocker, "x.go"), nil)
	assert.True(t, errors.Is(err, ErrWrite))
}

func TestGenerateWithCompiler(t *testing.T) {
	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("no C compiler")
	}
	install := t.TempDir()
	inc := filepath.Join(install, "include")
	require.NoError(t, os.MkdirAll(inc, 0o755))
	header := `#ifndef HTS_ENGINE_H
#define HTS_ENGINE_H
#include <stddef.h>
#define HTS_VERSION "1.10"
typedef char HTS_Boolean;
typedef struct _HTS_Engine { size_t n; } HTS_Engine;
void HTS_Engine_initialize(HTS_Engine * engine);
HTS_Boolean HTS_Engine_load(HTS_Engine * engine, char **voices, size_t num_voices);
#endif
`
	require.NoError(t, os.WriteFile(filepath.Join(inc, "HTS_engine.h"), []byte(header), 0o644))

	src, err := Generate(context.Background(), Options{InstallDir: install, WorkDir: t.TempDir(), CC: cc})
	require.NoError(t, err)
	out := string(src)
	assert.Contains(t, out, `HTS_VERSION = "1.10"`)
	assert.Contains(t, out, "func HTS_Engine_load(engine *HTS_Engine, voices **C.char, num_voices C.size_t) HTS_Boolean {")
	assert.NotContains(t, out, "size_t =", "stddef.h is outside the include directory")
}
