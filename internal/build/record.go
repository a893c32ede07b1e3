// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/mod/sumdb/dirhash"
)

const recordFile = "htsbuild.json"

// Record describes the last successful run in an output directory. It is
// informational: no stage reads it back to skip work.
type Record struct {
	Version    string    `json:"version"`
	SHA256     string    `json:"sha256"`
	SourceURL  string    `json:"source_url"`
	InstallDir string    `json:"install_dir"`
	Bindings   string    `json:"bindings"`
	Package    string    `json:"package"`
	TreeHash   string    `json:"tree_hash"`
	CC         string    `json:"cc,omitempty"`
	CFLAGS     string    `json:"cflags"`
	Jobs       int       `json:"jobs"`
	BuildTime  time.Time `json:"build_time"`
}

// TreeHash returns the h1: hash of every file under dir.
func TreeHash(dir string) (string, error) {
	return dirhash.HashDir(dir, "", dirhash.Hash1)
}

func newRecord(opts Options, layout Layout) (*Record, error) {
	sum, err := TreeHash(layout.InstallDir)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", layout.InstallDir, err)
	}
	return &Record{
		Version:    opts.Source.Version,
		SHA256:     opts.Source.SHA256,
		SourceURL:  opts.Source.URL(),
		InstallDir: layout.InstallDir,
		Bindings:   opts.Output,
		Package:    opts.Package,
		TreeHash:   sum,
		CC:         opts.Config.CC,
		CFLAGS:     opts.Config.CompilerFlags(),
		Jobs:       opts.Config.Jobs,
		BuildTime:  time.Now().UTC().Truncate(time.Second),
	}, nil
}

// LoadRecord reads the record stored in outDir.
func LoadRecord(outDir string) (*Record, error) {
	return loadRecord(Layout{OutDir: outDir}.RecordPath())
}

func loadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rec, nil
}

func saveRecord(path string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
