// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package archive unpacks verified .tar.gz source archives.
package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/gzip"
	"github.com/qiniu/x/log"

	"github.com/goplus/htsengine/internal/source"
)

var (
	ErrFilesystem      = errors.New("filesystem error")
	ErrMalformed       = errors.New("malformed archive")
	ErrMissingTopLevel = errors.New("missing top-level directory")
)

// Error reports a failed extraction.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract %s: %v", e.Path, e.Kind)
	}
	return fmt.Sprintf("extract %s: %v: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Install extracts a into dir and returns dir/topLevel, which must exist
// after extraction. dir is created if missing.
func Install(a *source.Archive, dir, topLevel string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &Error{Kind: ErrFilesystem, Path: dir, Err: err}
	}
	if err := Extract(bytes.NewReader(a.Data), dir); err != nil {
		return "", err
	}

	sourceDir := filepath.Join(dir, topLevel)
	info, err := os.Stat(sourceDir)
	if err != nil {
		return "", &Error{Kind: ErrMissingTopLevel, Path: sourceDir, Err: err}
	}
	if !info.IsDir() {
		return "", &Error{Kind: ErrMissingTopLevel, Path: sourceDir, Err: fmt.Errorf("not a directory")}
	}
	log.Debugf("extracted sources to %s", sourceDir)
	return sourceDir, nil
}

// Extract decompresses a gzip'd tar stream into dir. File modes and
// modification times are preserved so that autotools does not try to
// regenerate its own outputs. Entries escaping dir are rejected.
func Extract(r io.Reader, dir string) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return &Error{Kind: ErrMalformed, Path: dir, Err: err}
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &Error{Kind: ErrMalformed, Path: dir, Err: err}
		}
		if err := extractEntry(tr, hdr, dir); err != nil {
			return err
		}
	}
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, dir string) error {
	target, err := resolve(dir, hdr.Name)
	if err != nil {
		return &Error{Kind: ErrMalformed, Path: hdr.Name, Err: err}
	}
	mode := hdr.FileInfo().Mode().Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, mode|0o700); err != nil {
			return &Error{Kind: ErrFilesystem, Path: target, Err: err}
		}
	case tar.TypeReg:
		if err := writeFile(tr, target, mode); err != nil {
			return err
		}
		if err := os.Chtimes(target, hdr.ModTime, hdr.ModTime); err != nil {
			return &Error{Kind: ErrFilesystem, Path: target, Err: err}
		}
	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return &Error{Kind: ErrMalformed, Path: hdr.Name, Err: fmt.Errorf("absolute symlink target %q", hdr.Linkname)}
		}
		if _, err := safeJoin(dir, filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil {
			return &Error{Kind: ErrMalformed, Path: hdr.Name, Err: err}
		}
		if err := replace(target); err != nil {
			return err
		}
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return &Error{Kind: ErrFilesystem, Path: target, Err: err}
		}
	case tar.TypeLink:
		oldname, err := resolve(dir, hdr.Linkname)
		if err != nil {
			return &Error{Kind: ErrMalformed, Path: hdr.Name, Err: err}
		}
		if err := replace(target); err != nil {
			return err
		}
		if err := os.Link(oldname, target); err != nil {
			return &Error{Kind: ErrFilesystem, Path: target, Err: err}
		}
	default:
		log.Debugf("skipping %s (tar type %q)", hdr.Name, hdr.Typeflag)
	}
	return nil
}

func writeFile(r io.Reader, target string, mode os.FileMode) error {
	if err := replace(target); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return &Error{Kind: ErrFilesystem, Path: target, Err: err}
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return &Error{Kind: ErrMalformed, Path: target, Err: err}
	}
	if err := f.Close(); err != nil {
		return &Error{Kind: ErrFilesystem, Path: target, Err: err}
	}
	return nil
}

// replace removes a stale non-directory entry left by a previous run.
func replace(target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &Error{Kind: ErrFilesystem, Path: target, Err: err}
	}
	info, err := os.Lstat(target)
	if err != nil || info.IsDir() {
		return nil
	}
	if err := os.Remove(target); err != nil {
		return &Error{Kind: ErrFilesystem, Path: target, Err: err}
	}
	return nil
}

// resolve joins name to dir and rejects names whose parent directory, as
// it exists on disk, is not the one named. Symlinks extracted earlier can
// therefore never carry a later entry out of dir.
func resolve(dir, name string) (string, error) {
	target, err := safeJoin(dir, name)
	if err != nil {
		return "", err
	}
	if target == filepath.Clean(dir) {
		return target, nil
	}
	parent := filepath.Dir(target)
	rel, err := filepath.Rel(filepath.Clean(dir), parent)
	if err != nil {
		return "", err
	}
	onDisk, err := securejoin.SecureJoin(dir, rel)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", name, err)
	}
	if onDisk != parent {
		return "", fmt.Errorf("path %q passes through a symlink", name)
	}
	return target, nil
}

func safeJoin(dir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("absolute path %q", name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the destination", name)
	}
	return filepath.Join(dir, clean), nil
}
