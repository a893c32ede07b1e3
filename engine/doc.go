// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine holds the generated cgo bindings for hts_engine API.
//
// Run "go generate" in this directory to build the library and write
// zz_bindings.go; then build with the CGO_LDFLAGS and CGO_CFLAGS that
// htsbuild prints.
package engine

//go:generate go run ../cmd/htsbuild -o zz_bindings.go -p engine
