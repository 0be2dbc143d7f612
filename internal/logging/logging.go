// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logging wires the library subsystem loggers into a shared backend
// for the walletbridge binaries.
package logging

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btclog"
	"github.com/btcsuite/walletbridge/bridge"
	"github.com/btcsuite/walletbridge/build"
	"github.com/btcsuite/walletbridge/executor"
	"github.com/btcsuite/walletbridge/port"
	"github.com/btcsuite/walletbridge/transport"
	"github.com/btcsuite/walletbridge/wallet"
)

// RPCSubsystem is the logging code of the btcd RPC client.
const RPCSubsystem = "RPCC"

// Register adds every library subsystem to loggers.
func Register(loggers *build.SubLoggers) {
	loggers.Register(bridge.Subsystem, bridge.UseLogger)
	loggers.Register(executor.Subsystem, executor.UseLogger)
	loggers.Register(port.Subsystem, port.UseLogger)
	loggers.Register(transport.Subsystem, transport.UseLogger)
	loggers.Register(wallet.Subsystem, wallet.UseLogger)
	loggers.Register(RPCSubsystem, rpcclient.UseLogger)
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  The level is either a single level for every
// subsystem or a comma separated list of subsystem=level pairs.
func ParseAndSetDebugLevels(loggers *build.SubLoggers,
	debugLevel string) error {

	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {

		if !validLogLevel(debugLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		loggers.SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(logLevelPair, "=")
		if len(fields) != 2 {
			str := "the specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		subsysID, logLevel := fields[0], fields[1]
		if _, ok := loggers.Logger(subsysID); !ok {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsystems %v"
			return fmt.Errorf(str, subsysID, loggers.Subsystems())
		}
		if !validLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		loggers.SetLogLevel(subsysID, logLevel)
	}

	return nil
}
