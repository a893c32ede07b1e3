// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/qiniu/x/log"
)

var (
	ErrTransport = errors.New("transport error")
	ErrStatus    = errors.New("unexpected HTTP status")
	ErrIntegrity = errors.New("digest mismatch")
)

// Error reports a failed fetch. Kind is one of ErrTransport, ErrStatus
// or ErrIntegrity.
type Error struct {
	Kind   error
	URL    string
	Status int    // set for ErrStatus
	Want   string // set for ErrIntegrity
	Got    string // set for ErrIntegrity
	Err    error  // set for ErrTransport
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrStatus:
		return fmt.Sprintf("download %s: HTTP %d", e.URL, e.Status)
	case ErrIntegrity:
		return fmt.Sprintf("download %s: %v: archive may be corrupted or tampered with (want sha256 %s, got %s)",
			e.URL, e.Kind, e.Want, e.Got)
	}
	if e.Err != nil {
		return fmt.Sprintf("download %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Kind)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Archive is a verified, still compressed source archive held in memory.
type Archive struct {
	Data       []byte
	StatusCode int
	Digest     string
}

// Fetcher downloads archives and verifies them against a pinned digest.
type Fetcher struct {
	httpClient *http.Client
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for downloads. Nil means a zero
// http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithTimeout bounds the whole download. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		var c http.Client
		if f.httpClient != nil {
			c = *f.httpClient
		}
		c.Timeout = d
		f.httpClient = &c
	}
}

// NewFetcher creates a Fetcher. By default downloads are never timed out.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{}
	}
	return f
}

// Fetch downloads d.URL() and returns the body only when its SHA-256
// equals d.SHA256. No retry is attempted.
func (f *Fetcher) Fetch(ctx context.Context, d Descriptor) (*Archive, error) {
	url := d.URL()
	log.Infof("fetching %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: ErrTransport, URL: url, Err: err}
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrTransport, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: ErrStatus, URL: url, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrTransport, URL: url, Err: err}
	}

	digest, err := Verify(data, d.SHA256)
	if err != nil {
		var fetchErr *Error
		if errors.As(err, &fetchErr) {
			fetchErr.URL = url
		}
		return nil, err
	}
	log.Debugf("verified %s (%d bytes, sha256 %s)", url, len(data), digest)

	return &Archive{Data: data, StatusCode: resp.StatusCode, Digest: digest}, nil
}

// Verify returns the hex SHA-256 of data, or an ErrIntegrity error when it
// does not equal want exactly.
func Verify(data []byte, want string) (string, error) {
	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if got != want {
		return got, &Error{Kind: ErrIntegrity, Want: want, Got: got}
	}
	return got, nil
}
