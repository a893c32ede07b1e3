// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package env reads the build environment once, at startup.
package env

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/qiniu/x/log"
)

const (
	// DefaultJobs is the make parallelism when NUM_JOBS is unset.
	DefaultJobs = 4
	// OptFlag is always appended to CFLAGS.
	OptFlag = "-O2"
)

// Config is the build environment. It is not modified after Load.
type Config struct {
	OutDir       string        `env:"OUT_DIR"`
	CC           string        `env:"CC"`
	CFlags       string        `env:"CFLAGS"`
	Jobs         int           `env:"NUM_JOBS" envDefault:"4"`
	LogLevel     string        `env:"HTSBUILD_LOG_LEVEL" envDefault:"info"`
	FetchTimeout time.Duration `env:"HTSBUILD_FETCH_TIMEOUT" envDefault:"0s"`
}

// WorkDir returns the default output directory.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".htsbuild"), nil
}

// Load reads Config from environ, a list of KEY=VALUE pairs as returned
// by os.Environ.
func Load(environ []string) (*Config, error) {
	return FromMap(Map(environ))
}

// Map converts KEY=VALUE pairs to a map. Later pairs win.
func Map(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			m[k] = v
		}
	}
	return m
}

// FromMap reads Config from vars and fills in defaults.
func FromMap(vars map[string]string) (*Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if c.Jobs < 1 {
		return nil, fmt.Errorf("NUM_JOBS must be at least 1, got %d", c.Jobs)
	}
	if c.FetchTimeout < 0 {
		return nil, fmt.Errorf("HTSBUILD_FETCH_TIMEOUT must not be negative, got %s", c.FetchTimeout)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return nil, err
	}

	if c.OutDir == "" {
		dir, err := WorkDir()
		if err != nil {
			return nil, fmt.Errorf("no OUT_DIR and no user cache directory: %w", err)
		}
		c.OutDir = dir
	}
	outDir, err := filepath.Abs(c.OutDir)
	if err != nil {
		return nil, fmt.Errorf("resolve OUT_DIR: %w", err)
	}
	c.OutDir = outDir

	c.CC = strings.TrimSpace(c.CC)
	if c.CC == "" {
		if _, err := exec.LookPath("cc"); err == nil {
			c.CC = "cc"
		} else {
			log.Debugf("CC is unset and cc is not on PATH; configure will pick a compiler")
		}
	}
	return &c, nil
}

// ReadFile adds the assignments of a dotenv file to vars. Variables
// already present in vars are kept.
func ReadFile(path string, vars map[string]string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	for k, v := range values {
		if _, ok := vars[k]; !ok {
			vars[k] = v
		}
	}
	return nil
}

// CompilerFlags returns CFLAGS with OptFlag appended.
func (c *Config) CompilerFlags() string {
	return strings.TrimSpace(c.CFlags + " " + OptFlag)
}

// BuildEnv returns the variables passed to configure. CC is included only
// when known.
func (c *Config) BuildEnv() map[string]string {
	m := map[string]string{"CFLAGS": c.CompilerFlags()}
	if c.CC != "" {
		m["CC"] = c.CC
	}
	return m
}

// Compiler returns the command used to preprocess headers.
func (c *Config) Compiler() (string, error) {
	if c.CC == "" {
		return "", errors.New("no C compiler: set CC or put cc on PATH")
	}
	return c.CC, nil
}

var levels = map[string]int{
	"debug":   log.Ldebug,
	"info":    log.Linfo,
	"warn":    log.Lwarn,
	"warning": log.Lwarn,
	"error":   log.Lerror,
}

// ParseLogLevel maps a level name to a github.com/qiniu/x/log level.
func ParseLogLevel(s string) (int, error) {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
