// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package autotools drives the classic configure / make / make install sequence.
package autotools

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goplus/htsengine/pkgs/buildsys"
)

// DefaultJobs is the make parallelism used when none is configured.
const DefaultJobs = 4

// DefaultCompiler names the compiler when no CC override is set.
const DefaultCompiler = "<configure default>"

// Options configures an AutoTools helper.
type Options struct {
	SourceDir  string
	InstallDir string
	Jobs       int

	// Runner executes every step. Nil means buildsys.Exec.
	Runner buildsys.Runner

	// Optional live copies of the step output.
	Stdout io.Writer
	Stderr io.Writer
}

// AutoTools wraps the Autotools build steps. Every step runs with the
// source directory as its working directory.
type AutoTools struct {
	SourceDir  string
	installDir string
	jobs       int
	env        map[string]string
	runner     buildsys.Runner
	stdout     io.Writer
	stderr     io.Writer
}

var _ buildsys.BuildSystem = (*AutoTools)(nil)

// New creates a new AutoTools helper.
func New(opts Options) *AutoTools {
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = DefaultJobs
	}
	runner := opts.Runner
	if runner == nil {
		runner = buildsys.Exec
	}
	return &AutoTools{
		SourceDir:  opts.SourceDir,
		installDir: opts.InstallDir,
		jobs:       jobs,
		env:        map[string]string{},
		runner:     runner,
		stdout:     opts.Stdout,
		stderr:     opts.Stderr,
	}
}

func (a *AutoTools) Source(dir string) {
	a.SourceDir = dir
}

func (a *AutoTools) InstallDir(dir string) {
	a.installDir = dir
}

// Env records key=value for every command spawned later. Unlike a plain
// os.Setenv the override stays local to this helper.
func (a *AutoTools) Env(key, value string) {
	if a.env == nil {
		a.env = map[string]string{}
	}
	a.env[key] = value
}

// Configure runs <SourceDir>/configure. --prefix is prepended when an
// install directory is set, which is created first if missing.
// configure requires an absolute prefix.
func (a *AutoTools) Configure(ctx context.Context, args ...string) error {
	configArgs := []string{}
	if a.installDir != "" {
		prefix, err := filepath.Abs(a.installDir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(prefix, 0o755); err != nil {
			return err
		}
		configArgs = append(configArgs, "--prefix="+prefix)
	}
	configArgs = append(configArgs, args...)

	exe, err := filepath.Abs(filepath.Join(a.SourceDir, "configure"))
	if err != nil {
		return err
	}
	return a.run(ctx, "configure", exe, configArgs)
}

// Build runs make with the configured parallelism, or the provided args.
func (a *AutoTools) Build(ctx context.Context, args ...string) error {
	cmdArgs := []string{"make", "-j" + strconv.Itoa(a.jobs)}
	if len(args) > 0 {
		cmdArgs = args
	}
	return a.run(ctx, "build", cmdArgs[0], cmdArgs[1:])
}

// Install runs make install, or the provided args.
func (a *AutoTools) Install(ctx context.Context, args ...string) error {
	cmdArgs := []string{"make", "install"}
	if len(args) > 0 {
		cmdArgs = args
	}
	return a.run(ctx, "install", cmdArgs[0], cmdArgs[1:])
}

// Run performs configure, build and install in order, stopping at the
// first failing step. Nothing is rolled back on failure.
func (a *AutoTools) Run(ctx context.Context) error {
	if err := a.Configure(ctx); err != nil {
		return err
	}
	if err := a.Build(ctx); err != nil {
		return err
	}
	return a.Install(ctx)
}

// OutputDir returns the install dir if set, otherwise the source dir.
func (a *AutoTools) OutputDir() string {
	if a.installDir != "" {
		return a.installDir
	}
	return a.SourceDir
}

// Jobs returns the make parallelism hint.
func (a *AutoTools) Jobs() int {
	return a.jobs
}

func (a *AutoTools) run(ctx context.Context, step, bin string, args []string) error {
	env := make(map[string]string, len(a.env))
	for k, v := range a.env {
		env[k] = v
	}
	compiler := env["CC"]
	if compiler == "" {
		compiler = DefaultCompiler
	}
	_, err := a.runner.Run(ctx, &buildsys.Command{
		Step:     step,
		Path:     bin,
		Args:     args,
		Dir:      a.SourceDir,
		Env:      env,
		Compiler: compiler,
		Stdout:   a.stdout,
		Stderr:   a.stderr,
	})
	return err
}
