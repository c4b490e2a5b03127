// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package cmd

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iron-fish/snapshotter/cmd/exportcmd"
	"github.com/iron-fish/snapshotter/cmd/listcmd"
	"github.com/iron-fish/snapshotter/cmd/verifycmd"
	"github.com/iron-fish/snapshotter/pkg/application"
	"github.com/iron-fish/snapshotter/pkg/config"
	"github.com/iron-fish/snapshotter/pkg/constants"
	"github.com/iron-fish/snapshotter/pkg/ux"
)

var (
	app *application.Snapshotter

	logLevel string
	cfgFile  string
	Version  = "1.0.0"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "snapshotter",
		Long: `Iron Fish snapshot export tooling.

The snapshotter streams the chain's blocks out of a running node, packs
them into a single compressed archive, records an integrity digest, and
optionally publishes the archive and its manifest to a snapshot bucket.

COMMAND OVERVIEW:

  export    Stream blocks from a node and produce a snapshot archive
  verify    Check a local archive against its manifest
  list      List locally produced snapshot archives

QUICK START:

  # Export a snapshot into a directory
  snapshotter export --path ./snapshot

  # Export and publish to a bucket
  snapshotter export --bucket snapshots.ironfish.network

For detailed command help, use: snapshotter <command> --help`,
		PersistentPreRunE: createApp,
		Version:           Version,
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.snapshotter/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "ERROR", "log level for the application")

	rootCmd.AddCommand(exportcmd.NewCmd(app))
	rootCmd.AddCommand(verifycmd.NewCmd(app))
	rootCmd.AddCommand(listcmd.NewCmd(app))

	return rootCmd
}

func createApp(_ *cobra.Command, _ []string) error {
	baseDir, err := setupEnv()
	if err != nil {
		return err
	}
	log, err := setupLogging(baseDir)
	if err != nil {
		return err
	}

	cf := config.New()
	app.Setup(baseDir, log, cf)

	initConfig()
	return nil
}

func setupEnv() (string, error) {
	// Set base dir
	usr, err := user.Current()
	if err != nil {
		// no logger here yet
		fmt.Printf("unable to get system user %s\n", err)
		return "", err
	}
	baseDir := filepath.Join(usr.HomeDir, constants.BaseDirName)

	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		// no logger here yet
		fmt.Printf("failed creating the basedir %s: %s\n", baseDir, err)
		return "", err
	}

	snapshotsDir := filepath.Join(baseDir, constants.SnapshotsDirName)
	if err := os.MkdirAll(snapshotsDir, 0o750); err != nil {
		fmt.Printf("failed creating the snapshots dir %s: %s\n", snapshotsDir, err)
		return "", err
	}

	return baseDir, nil
}

func setupLogging(baseDir string) (*zap.SugaredLogger, error) {
	logDir := filepath.Join(baseDir, constants.LogDir)
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed creating log directory: %w", err)
	}

	level := zapcore.ErrorLevel
	if parsed, err := zapcore.ParseLevel(logLevel); err == nil {
		level = parsed
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{
		"stderr",
		filepath.Join(logDir, constants.LogFileName),
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed setting up logging, exiting: %w", err)
	}
	log := logger.Sugar()

	// create the user facing logger as a global var
	// User output goes to stdout, logs go to stderr
	ux.NewUserLog(log, os.Stdout)
	return log, nil
}

// initConfig reads in config file and ENV variables if set.
// Priority: flags > env vars > config file > defaults
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in ~/.snapshotter/ directory
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(filepath.Join(home, constants.BaseDirName))
		viper.SetConfigType("json")
		viper.SetConfigName("config")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		app.Log.Debugw("using config file", "config-file", viper.ConfigFileUsed())
	}
	// No config file is normal - most users don't have one, so we silently continue
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	app = application.New()
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\nERROR: %s\n", err)
		os.Exit(1)
	}
}
