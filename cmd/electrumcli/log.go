// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/go-electrum/electrum"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to standard error as well
// as the log rotator, when one is initialized.  Command output goes to
// standard out, so logging never pollutes it.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stderr.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs.  It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	log     = backendLog.Logger("ECLI")
	elecLog = backendLog.Logger("ELEC")
)

func init() {
	electrum.UseLogger(elecLog)
}

// initLogRotator initializes the logging rotator to write logs to logFile
// and create roll files in the same directory.  It must be called before the
// package-global log rotator variables are used.
func initLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %v", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %v", err)
	}

	logRotator = r
	return nil
}

// setLogLevel sets the logging level of both subsystem loggers.
func setLogLevel(logLevel string) {
	level, _ := btclog.LevelFromString(logLevel)
	log.SetLevel(level)
	elecLog.SetLevel(level)
}

// validDebugLevel reports whether logLevel is a recognized debug level.
func validDebugLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}
