// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command htsbuild fetches, builds and binds the hts_engine API library.
//
// It is meant to run from go:generate, before the package that links the
// library is compiled:
//
//	//go:generate go run github.com/goplus/htsengine/cmd/htsbuild -o zz_bindings.go
package main

import "github.com/goplus/htsengine/cmd/htsbuild/internal"

func main() {
	internal.Execute()
}
