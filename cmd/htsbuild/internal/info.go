// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/goplus/htsengine/internal/build"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the record of the last successful build in $OUT_DIR",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rec, err := build.LoadRecord(cfg.OutDir)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("no build recorded in %s", cfg.OutDir)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "version:\t%s\n", rec.Version)
	fmt.Fprintf(w, "source:\t%s\n", rec.SourceURL)
	fmt.Fprintf(w, "sha256:\t%s\n", rec.SHA256)
	fmt.Fprintf(w, "install dir:\t%s\n", rec.InstallDir)
	fmt.Fprintf(w, "tree hash:\t%s\n", rec.TreeHash)
	fmt.Fprintf(w, "bindings:\t%s (package %s)\n", rec.Bindings, rec.Package)
	fmt.Fprintf(w, "cc:\t%s\n", rec.CC)
	fmt.Fprintf(w, "cflags:\t%s\n", rec.CFLAGS)
	fmt.Fprintf(w, "jobs:\t%d\n", rec.Jobs)
	fmt.Fprintf(w, "built:\t%s\n", rec.BuildTime.Format(time.RFC3339))
	return w.Flush()
}
