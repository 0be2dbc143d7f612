// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/walletbridge/build"
	"github.com/btcsuite/walletbridge/internal/logging"
)

// Subsystem defines the logging code for this command.
const Subsystem = "WBCT"

// logWriter writes to stdout and, once initLogRotator has been called, to a
// rotating log file.
var logWriter = build.NewLogWriter(os.Stdout)

// subLoggers holds every subsystem logger of the process.
var subLoggers = build.NewSubLoggers(logWriter)

// log is the logger of the command itself.
var log = btclog.Disabled

func init() {
	subLoggers.Register(Subsystem, func(logger btclog.Logger) {
		log = logger
	})
	logging.Register(subLoggers)
}

// initLogRotator initializes the logging rotater to write logs to logFile and
// create roll files in the same directory.  It must be called before the
// package-global log rotater variables are used.
func initLogRotator(logFile string) error {
	return logWriter.InitLogRotator(logFile, 10*1024, 3)
}
