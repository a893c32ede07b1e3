// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package build runs the whole pipeline: fetch, extract, compile,
// generate bindings and announce the install paths.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/qiniu/x/log"

	"github.com/goplus/htsengine/internal/announce"
	"github.com/goplus/htsengine/internal/archive"
	"github.com/goplus/htsengine/internal/bindgen"
	"github.com/goplus/htsengine/internal/env"
	"github.com/goplus/htsengine/internal/source"
	"github.com/goplus/htsengine/pkgs/buildsys"
	"github.com/goplus/htsengine/pkgs/buildsys/autotools"
)

// Pipeline stages, in execution order.
const (
	StageFetch    = "fetch"
	StageExtract  = "extract"
	StageBuild    = "build"
	StageBindgen  = "bindgen"
	StageRecord   = "record"
	StageAnnounce = "announce"
)

// StageError names the stage that stopped the pipeline.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Workspace directory layout:
//
//	OutDir/
//	  hts_engine_API-<version>/   # SourceDir, extracted archive
//	  installed/                  # InstallDir, make install prefix
//	    include/
//	    lib/
//	  wrapper.h                   # bindgen input
//	  bindings.go                 # default bindings output
//	  htsbuild.json               # build record
type Layout struct {
	OutDir     string
	SourceDir  string
	InstallDir string
}

// NewLayout derives the layout of d under outDir.
func NewLayout(outDir string, d source.Descriptor) Layout {
	return Layout{
		OutDir:     outDir,
		SourceDir:  filepath.Join(outDir, d.DirName()),
		InstallDir: filepath.Join(outDir, "installed"),
	}
}

// RecordPath is where the build record is written.
func (l Layout) RecordPath() string { return filepath.Join(l.OutDir, recordFile) }

// DefaultBindings is the bindings path used when none is given.
func (l Layout) DefaultBindings() string { return filepath.Join(l.OutDir, "bindings.go") }

// Options configures a Builder.
type Options struct {
	Config *env.Config

	// Source defaults to source.Default().
	Source source.Descriptor
	// Output is the bindings file. Empty means Layout.DefaultBindings.
	Output  string
	Package string

	Format announce.Format
	// Announce receives the directives. Nil means os.Stdout.
	Announce io.Writer

	// Fetcher defaults to one honoring Config.FetchTimeout.
	Fetcher *source.Fetcher
	// Runner executes configure, make and the preprocessor.
	Runner buildsys.Runner

	// Optional live copies of the native build output.
	Stdout io.Writer
	Stderr io.Writer
}

// Result describes a successful run.
type Result struct {
	Layout     Layout
	Bindings   string
	Directives []announce.Directive
	Record     *Record
}

// Builder runs the pipeline once per Build call.
type Builder struct {
	opts   Options
	layout Layout
}

// NewBuilder validates opts and fills in defaults.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Config == nil {
		return nil, errors.New("build: no configuration")
	}
	if opts.Source == (source.Descriptor{}) {
		opts.Source = source.Default()
	}
	if err := opts.Source.Validate(); err != nil {
		return nil, err
	}
	format, err := announce.ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	opts.Format = format
	if opts.Package == "" {
		opts.Package = bindgen.DefaultPackage
	}
	if opts.Announce == nil {
		opts.Announce = os.Stdout
	}
	if opts.Fetcher == nil {
		opts.Fetcher = source.NewFetcher(source.WithTimeout(opts.Config.FetchTimeout))
	}
	if opts.Runner == nil {
		opts.Runner = buildsys.Exec
	}

	layout := NewLayout(opts.Config.OutDir, opts.Source)
	if opts.Output == "" {
		opts.Output = layout.DefaultBindings()
	}
	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("build: resolve output: %w", err)
	}
	opts.Output = output
	return &Builder{opts: opts, layout: layout}, nil
}

// Layout returns the directories the pipeline works in.
func (b *Builder) Layout() Layout { return b.layout }

// Build runs every stage in order and stops at the first failure.
// Directives are written only after everything else has succeeded.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	cfg, desc, layout := b.opts.Config, b.opts.Source, b.layout

	log.Infof("[%s] %s", StageFetch, desc.URL())
	a, err := b.opts.Fetcher.Fetch(ctx, desc)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: err}
	}

	log.Infof("[%s] %s", StageExtract, layout.OutDir)
	sourceDir, err := archive.Install(a, layout.OutDir, desc.DirName())
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}

	log.Infof("[%s] %s -> %s (make -j%d)", StageBuild, sourceDir, layout.InstallDir, cfg.Jobs)
	tools := autotools.New(autotools.Options{
		SourceDir:  sourceDir,
		InstallDir: layout.InstallDir,
		Jobs:       cfg.Jobs,
		Runner:     b.opts.Runner,
		Stdout:     b.opts.Stdout,
		Stderr:     b.opts.Stderr,
	})
	for k, v := range cfg.BuildEnv() {
		tools.Env(k, v)
	}
	if err := tools.Run(ctx); err != nil {
		return nil, &StageError{Stage: StageBuild, Err: err}
	}

	log.Infof("[%s] %s", StageBindgen, b.opts.Output)
	if err := b.generate(ctx); err != nil {
		return nil, &StageError{Stage: StageBindgen, Err: err}
	}

	rec, err := newRecord(b.opts, layout)
	if err != nil {
		return nil, &StageError{Stage: StageRecord, Err: err}
	}
	if err := saveRecord(layout.RecordPath(), rec); err != nil {
		return nil, &StageError{Stage: StageRecord, Err: err}
	}
	log.Debugf("[%s] %s %s", StageRecord, layout.RecordPath(), rec.TreeHash)

	if err := announce.New(b.opts.Format).Announce(b.opts.Announce, layout.InstallDir); err != nil {
		return nil, &StageError{Stage: StageAnnounce, Err: err}
	}
	return &Result{
		Layout:     layout,
		Bindings:   b.opts.Output,
		Directives: announce.Directives(layout.InstallDir),
		Record:     rec,
	}, nil
}

func (b *Builder) generate(ctx context.Context) error {
	cc, err := b.opts.Config.Compiler()
	if err != nil {
		return err
	}
	src, err := bindgen.Generate(ctx, bindgen.Options{
		InstallDir: b.layout.InstallDir,
		WorkDir:    b.layout.OutDir,
		CC:         cc,
		Package:    b.opts.Package,
		Runner:     b.opts.Runner,
	})
	if err != nil {
		return err
	}
	return bindgen.WriteFile(b.opts.Output, src)
}
