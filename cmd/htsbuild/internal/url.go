// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/htsengine/internal/source"
)

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the pinned source URL and digest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := source.Default()
		fmt.Fprintln(cmd.OutOrStdout(), d.URL())
		fmt.Fprintf(cmd.OutOrStdout(), "sha256 %s\n", d.SHA256)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(urlCmd)
}
