// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package announce tells the enclosing Go build where the installed
// library and its headers live.
package announce

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Kind is the meaning of a Directive.
type Kind int

const (
	// LinkSearch adds a directory to the linker search path.
	LinkSearch Kind = iota
	// Include adds a directory to the C header search path.
	Include
)

func (k Kind) String() string {
	switch k {
	case LinkSearch:
		return "link-search"
	case Include:
		return "include"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Directive is one path handed to the consumer.
type Directive struct {
	Kind Kind
	Path string
}

// Variable returns the cgo environment variable carrying d.
func (d Directive) Variable() string {
	if d.Kind == LinkSearch {
		return "CGO_LDFLAGS"
	}
	return "CGO_CFLAGS"
}

// Flag returns d as a compiler or linker flag.
func (d Directive) Flag() string {
	if d.Kind == LinkSearch {
		return "-L" + d.Path
	}
	return "-I" + d.Path
}

// Directives returns the link search path then the include path of
// installDir.
func Directives(installDir string) []Directive {
	return []Directive{
		{Kind: LinkSearch, Path: filepath.Join(installDir, "lib")},
		{Kind: Include, Path: filepath.Join(installDir, "include")},
	}
}

// Format selects how directives are rendered.
type Format string

const (
	// FormatEnv prints KEY=value lines, suitable for "go env -w" or an
	// env file.
	FormatEnv Format = "env"
	// FormatShell prints export statements for eval.
	FormatShell Format = "shell"
	// FormatMake prints Makefile assignments.
	FormatMake Format = "make"
)

// Formats lists the supported formats.
var Formats = []Format{FormatEnv, FormatShell, FormatMake}

// ParseFormat validates s. The empty string selects FormatEnv.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatEnv, nil
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown format %q (want one of %s)", s, strings.Join(names, ", "))
}

// Announcer writes directives in one format.
type Announcer struct {
	Format Format
}

// New returns an Announcer for f.
func New(f Format) *Announcer {
	return &Announcer{Format: f}
}

// Announce writes the two directives of installDir to w.
func (a *Announcer) Announce(w io.Writer, installDir string) error {
	for _, d := range Directives(installDir) {
		if _, err := io.WriteString(w, a.line(d)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func (a *Announcer) line(d Directive) string {
	switch a.Format {
	case FormatShell:
		return "export " + d.Variable() + "=" + shellQuote(d.Flag())
	case FormatMake:
		return d.Variable() + " += " + d.Flag()
	}
	return d.Variable() + "=" + d.Flag()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
