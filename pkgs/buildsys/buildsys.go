// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buildsys

import "context"

// BuildSystem captures the lifecycle shared by native build helpers.
// Every step runs through a Runner so that failures carry the full
// diagnostic bundle of the failed command.
type BuildSystem interface {
	// Basic paths.
	Source(dir string)
	InstallDir(dir string)

	// Env records an override passed to every spawned command.
	Env(key, val string)

	// Lifecycle.
	Configure(ctx context.Context, args ...string) error
	Build(ctx context.Context, args ...string) error
	Install(ctx context.Context, args ...string) error

	// Where artifacts land.
	OutputDir() string
}
