// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bindgen generates cgo bindings for the installed hts_engine
// headers. The headers are expanded by the C compiler, so the bindings
// see exactly what a C consumer of the library sees.
package bindgen

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/goplus/htsengine/pkgs/buildsys"
)

//go:embed wrapper.h
var wrapperHeader []byte

// WrapperName is the file the wrapper header is written to.
const WrapperName = "wrapper.h"

// DefaultPackage is the package clause of generated bindings.
const DefaultPackage = "engine"

// DefaultLibs are linked by the generated bindings.
var DefaultLibs = []string{"HTSEngine", "m"}

var (
	ErrParse = errors.New("cannot parse headers")
	ErrWrite = errors.New("cannot write bindings")
)

// Error reports a failed generation.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bindgen %s: %v: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// Options configures Generate.
type Options struct {
	// InstallDir is the install prefix holding include/ and lib/.
	InstallDir string
	// WorkDir receives the wrapper header.
	WorkDir string
	// CC is the compiler command, possibly with arguments.
	CC      string
	Package string
	// Wrapper overrides the embedded wrapper header.
	Wrapper []byte
	Libs    []string
	Runner  buildsys.Runner
}

func (o *Options) setDefaults() {
	if o.Package == "" {
		o.Package = DefaultPackage
	}
	if o.Wrapper == nil {
		o.Wrapper = wrapperHeader
	}
	if o.Libs == nil {
		o.Libs = DefaultLibs
	}
	if o.Runner == nil {
		o.Runner = buildsys.Exec
	}
	if o.WorkDir == "" {
		o.WorkDir = o.InstallDir
	}
}

// Generate preprocesses the wrapper header against InstallDir/include
// and returns the formatted Go bindings.
func Generate(ctx context.Context, opts Options) ([]byte, error) {
	opts.setDefaults()
	includeDir, err := filepath.Abs(filepath.Join(opts.InstallDir, "include"))
	if err != nil {
		return nil, &Error{Kind: ErrParse, Path: opts.InstallDir, Err: err}
	}
	libDir := filepath.Join(filepath.Dir(includeDir), "lib")
	if info, err := os.Stat(includeDir); err != nil || !info.IsDir() {
		if err == nil {
			err = errors.New("not a directory")
		}
		return nil, &Error{Kind: ErrParse, Path: includeDir, Err: err}
	}

	if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
		return nil, &Error{Kind: ErrWrite, Path: opts.WorkDir, Err: err}
	}
	wrapper := filepath.Join(opts.WorkDir, WrapperName)
	if err := os.WriteFile(wrapper, opts.Wrapper, 0o644); err != nil {
		return nil, &Error{Kind: ErrWrite, Path: wrapper, Err: err}
	}

	out, err := Preprocess(ctx, opts.Runner, opts.CC, includeDir, wrapper)
	if err != nil {
		return nil, &Error{Kind: ErrParse, Path: wrapper, Err: err}
	}
	h, err := Parse(bytes.NewReader(out), includeDir)
	if err != nil {
		return nil, &Error{Kind: ErrParse, Path: includeDir, Err: err}
	}
	log.Debugf("parsed %d constants, %d types and %d functions from %s",
		len(h.Consts), len(h.Types), len(h.Funcs), includeDir)
	for _, s := range h.Skipped {
		log.Debugf("no binding for %s", s)
	}

	ldflags := []string{"-L" + libDir}
	for _, lib := range opts.Libs {
		ldflags = append(ldflags, "-l"+lib)
	}
	includes := includeLines(opts.Wrapper)
	src, err := Emit(h, Config{
		Package:  opts.Package,
		Header:   headerNames(includes),
		Includes: includes,
		CFlags:   []string{"-I" + includeDir},
		LDFlags:  ldflags,
	})
	if err != nil {
		return nil, &Error{Kind: ErrParse, Path: includeDir, Err: err}
	}
	return src, nil
}

// Preprocess runs "cc -E -dD" on header and returns the expanded text.
func Preprocess(ctx context.Context, r buildsys.Runner, cc, includeDir, header string) ([]byte, error) {
	fields := strings.Fields(cc)
	if len(fields) == 0 {
		return nil, errors.New("no C compiler configured")
	}
	args := append(fields[1:len(fields):len(fields)], "-E", "-dD", "-I"+includeDir, header)
	out, err := r.Run(ctx, &buildsys.Command{
		Step:     "preprocess",
		Path:     fields[0],
		Args:     args,
		Dir:      filepath.Dir(header),
		Compiler: cc,
	})
	if err != nil {
		return nil, err
	}
	return out.Stdout, nil
}

// WriteFile replaces path with src. The file is written next to path and
// renamed into place so readers never see partial output.
func WriteFile(path string, src []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Kind: ErrWrite, Path: path, Err: err}
	}
	f, err := os.CreateTemp(dir, ".bindings-*")
	if err != nil {
		return &Error{Kind: ErrWrite, Path: path, Err: err}
	}
	tmp := f.Name()
	_, err = f.Write(src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o644)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return &Error{Kind: ErrWrite, Path: path, Err: err}
	}
	return nil
}

func includeLines(wrapper []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(wrapper))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#include") {
			lines = append(lines, line)
		}
	}
	return lines
}

func headerNames(includes []string) string {
	names := make([]string, 0, len(includes))
	for _, inc := range includes {
		name := strings.TrimSpace(strings.TrimPrefix(inc, "#include"))
		names = append(names, strings.Trim(name, `<>"`))
	}
	if len(names) == 0 {
		return WrapperName
	}
	return strings.Join(names, ", ")
}
