// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"

	"github.com/goplus/htsengine/internal/announce"
	"github.com/goplus/htsengine/internal/build"
	"github.com/goplus/htsengine/internal/env"
)

var (
	envFile string
	verbose bool

	buildOutput  string
	buildPackage string
	buildFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "htsbuild",
	Short: "htsbuild prepares the hts_engine API library for cgo",
	Long: `htsbuild downloads the pinned hts_engine API release, verifies its digest,
builds and installs it under $OUT_DIR, generates cgo bindings for HTS_engine.h
and prints the CGO_LDFLAGS / CGO_CFLAGS needed to link against it.

Environment:
  OUT_DIR                  working directory (default: <user cache>/.htsbuild)
  CC                       C compiler (default: cc)
  CFLAGS                   extra compiler flags; -O2 is always appended
  NUM_JOBS                 make parallelism (default: 4)
  HTSBUILD_LOG_LEVEL       debug, info, warn or error (default: info)
  HTSBUILD_FETCH_TIMEOUT   download timeout, 0 for none (default: 0)`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBuild,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Read unset environment variables from a dotenv file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages and stream the native build output to stderr")
	rootCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Bindings file (default $OUT_DIR/bindings.go)")
	rootCmd.Flags().StringVarP(&buildPackage, "package", "p", "engine", "Package name of the generated bindings")
	rootCmd.Flags().StringVar(&buildFormat, "format", string(announce.FormatEnv), "Directive format: env, shell or make")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the process environment, then the --env-file, and
// sets the log level.
func loadConfig() (*env.Config, error) {
	vars := env.Map(os.Environ())
	if envFile != "" {
		if err := env.ReadFile(envFile, vars); err != nil {
			return nil, err
		}
	}
	cfg, err := env.FromMap(vars)
	if err != nil {
		return nil, err
	}
	level, err := env.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = log.Ldebug
	}
	log.SetOutputLevel(level)
	return cfg, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	format, err := announce.ParseFormat(buildFormat)
	if err != nil {
		return err
	}

	opts := build.Options{
		Config:   cfg,
		Output:   buildOutput,
		Package:  buildPackage,
		Format:   format,
		Announce: cmd.OutOrStdout(),
	}
	if verbose {
		// stdout carries the directives only
		opts.Stdout = cmd.ErrOrStderr()
		opts.Stderr = cmd.ErrOrStderr()
	}
	builder, err := build.NewBuilder(opts)
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}
	res, err := builder.Build(cmd.Context())
	if err != nil {
		return err
	}
	log.Infof("bindings written to %s", res.Bindings)
	return nil
}
