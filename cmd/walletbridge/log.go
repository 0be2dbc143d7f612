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

const (
	// Subsystem defines the logging code for the C boundary.
	Subsystem = "WBLB"

	// debugLevelEnv names the environment variable holding the debug
	// level, in the same syntax as the watchwallet --debuglevel option.
	debugLevelEnv = "WALLETBRIDGE_DEBUGLEVEL"

	defaultLogLevel = "info"
)

// subLoggers writes every subsystem to stderr; the host owns stdout.
var subLoggers = build.NewSubLoggers(build.NewLogWriter(os.Stderr))

var log = btclog.Disabled

func init() {
	subLoggers.Register(Subsystem, func(logger btclog.Logger) {
		log = logger
	})
	logging.Register(subLoggers)

	subLoggers.SetLogLevels(defaultLogLevel)
	if level := os.Getenv(debugLevelEnv); level != "" {
		err := logging.ParseAndSetDebugLevels(subLoggers, level)
		if err != nil {
			log.Warnf("Ignoring %s: %v", debugLevelEnv, err)
		}
	}
}
