// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source pins and fetches the hts_engine API source archive.
package source

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Pinned upstream artifact.
const (
	DefaultBaseURL = "https://udomain.dl.sourceforge.net/project/hts-engine/hts_engine%20API"
	DefaultVersion = "1.10"
	DefaultSHA256  = "e2132be5860d8fb4a460be766454cfd7c3e21cf67b509c48e1804feab14968f7"
)

// Descriptor identifies the exact upstream archive to fetch.
type Descriptor struct {
	BaseURL string
	Version string
	SHA256  string // lowercase hex
}

// Default returns the pinned descriptor.
func Default() Descriptor {
	return Descriptor{
		BaseURL: DefaultBaseURL,
		Version: DefaultVersion,
		SHA256:  DefaultSHA256,
	}
}

// DirName is the top-level folder of the archive: hts_engine_API-<version>.
func (d Descriptor) DirName() string {
	return "hts_engine_API-" + d.Version
}

// URL renders {base}/hts_engine_API-{version}/hts_engine_API-{version}.tar.gz.
func (d Descriptor) URL() string {
	base := strings.TrimSuffix(d.BaseURL, "/")
	return fmt.Sprintf("%s/%s/%s.tar.gz", base, d.DirName(), d.DirName())
}

// Validate checks that the descriptor is complete and the digest is a
// 256-bit lowercase hex string.
func (d Descriptor) Validate() error {
	if d.BaseURL == "" {
		return fmt.Errorf("source: empty base URL")
	}
	// Upstream releases are numbered MAJOR.MINOR[.PATCH].
	if !semver.IsValid("v"+d.Version) || strings.ContainsAny(d.Version, "+-") {
		return fmt.Errorf("source: invalid version %q", d.Version)
	}
	if len(d.SHA256) != 64 {
		return fmt.Errorf("source: digest must be 64 hex characters, got %d", len(d.SHA256))
	}
	for _, c := range d.SHA256 {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return fmt.Errorf("source: digest %q is not lowercase hex", d.SHA256)
		}
	}
	return nil
}
