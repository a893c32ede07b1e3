// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buildsys

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qiniu/x/log"
)

// ErrStepFailed is matched by every *StepError.
var ErrStepFailed = errors.New("build step failed")

// Command describes a single child process.
type Command struct {
	Step string            // human name of the step, e.g. "configure"
	Path string            // executable
	Args []string          // arguments, without Path
	Dir  string            // working directory
	Env  map[string]string // overrides merged onto the process environment

	// Compiler is the C compiler in effect, reported on failure.
	Compiler string

	// Optional live copies of the captured streams.
	Stdout io.Writer
	Stderr io.Writer
}

// String returns a shell-like description of the invocation.
func (c *Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Path))
	for _, arg := range c.Args {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

// Output holds the captured streams of a finished command.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes commands. The default implementation spawns real processes;
// tests substitute recording fakes.
type Runner interface {
	Run(ctx context.Context, cmd *Command) (*Output, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd *Command) (*Output, error)

func (f RunnerFunc) Run(ctx context.Context, cmd *Command) (*Output, error) {
	return f(ctx, cmd)
}

// Exec is the Runner backed by os/exec.
var Exec Runner = RunnerFunc(Run)

// Run starts cmd, waits for it and captures stdout and stderr. Success is
// decided by the exit status alone. Any failure, including failure to launch,
// is returned as a *StepError.
func Run(ctx context.Context, c *Command) (*Output, error) {
	log.Debugf("[%s] %s (dir %s)", c.Step, c, c.Dir)

	path := c.Path
	if c.Dir != "" && strings.Contains(path, string(filepath.Separator)) && !filepath.IsAbs(path) {
		path = filepath.Join(c.Dir, path)
	}
	if err := checkExecutable(path); err != nil {
		return nil, newStepError(c, &Output{}, -1, err)
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), c.Env)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, c.Stdout)
	cmd.Stderr = tee(&stderr, c.Stderr)

	err := cmd.Run()
	out := &Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return out, newStepError(c, out, code, err)
	}
	return out, nil
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// StepError is the diagnostic bundle of a failed command: what was run, with
// which overrides, and everything it printed.
type StepError struct {
	Step     string
	Command  string
	Env      map[string]string
	Compiler string
	Stdout   []byte
	Stderr   []byte
	ExitCode int // -1 when the process never ran to completion
	Err      error
}

func newStepError(c *Command, out *Output, code int, err error) *StepError {
	env := make(map[string]string, len(c.Env))
	for k, v := range c.Env {
		env[k] = v
	}
	return &StepError{
		Step:     c.Step,
		Command:  c.String(),
		Env:      env,
		Compiler: c.Compiler,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		ExitCode: code,
		Err:      err,
	}
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed: %v\n", e.Step, e.Err)
	fmt.Fprintf(&b, "command: %s\n", e.Command)
	if e.Compiler != "" {
		fmt.Fprintf(&b, "compiler: %s\n", e.Compiler)
	}
	keys := make([]string, 0, len(e.Env))
	for k := range e.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, e.Env[k])
	}
	fmt.Fprintf(&b, "--- stdout ---\n%s", ensureNewline(e.Stdout))
	fmt.Fprintf(&b, "--- stderr ---\n%s", ensureNewline(e.Stderr))
	return b.String()
}

func (e *StepError) Unwrap() error { return e.Err }

func (e *StepError) Is(target error) bool { return target == ErrStepFailed }

func ensureNewline(p []byte) string {
	s := string(p)
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n'\"\\$`") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

// mergeEnv returns base with every key in override replaced or appended.
// The result is sorted so that child environments are reproducible.
func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
