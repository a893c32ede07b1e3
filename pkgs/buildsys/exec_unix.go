// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package buildsys

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// checkExecutable reports a missing or non-executable script before exec
// turns it into a bare "permission denied". Bare names are left to PATH lookup.
func checkExecutable(path string) error {
	if !strings.Contains(path, "/") {
		return nil
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return fmt.Errorf("%s is not executable: %w", path, err)
	}
	return nil
}
