// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.
package application

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/iron-fish/snapshotter/pkg/config"
	"github.com/iron-fish/snapshotter/pkg/constants"
)

// Snapshotter holds the state shared by all commands: the structured log,
// the resolved base directory, and the configuration layer.
type Snapshotter struct {
	Log     *zap.SugaredLogger
	baseDir string
	Conf    *config.Config
}

func New() *Snapshotter {
	return &Snapshotter{}
}

func (app *Snapshotter) Setup(baseDir string, log *zap.SugaredLogger, conf *config.Config) {
	app.baseDir = baseDir
	app.Log = log
	app.Conf = conf
}

func (app *Snapshotter) GetBaseDir() string {
	return app.baseDir
}

func (app *Snapshotter) GetSnapshotsDir() string {
	return filepath.Join(app.baseDir, constants.SnapshotsDirName)
}

func (app *Snapshotter) GetLogDir() string {
	return filepath.Join(app.baseDir, constants.LogDir)
}

func (app *Snapshotter) ConfigFileExists() bool {
	return app.Conf.ConfigFileExists()
}
