// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package logging

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/walletbridge/bridge"
	"github.com/btcsuite/walletbridge/build"
	"github.com/btcsuite/walletbridge/wallet"
	"github.com/stretchr/testify/require"
)

// TestParseAndSetDebugLevels checks global and per-subsystem levels.
func TestParseAndSetDebugLevels(t *testing.T) {
	var buf bytes.Buffer
	loggers := build.NewSubLoggers(&buf)
	Register(loggers)

	require.Equal(t, []string{
		bridge.Subsystem, "EXEC", "PORT", RPCSubsystem, "TRNS",
		wallet.Subsystem,
	}, loggers.Subsystems())

	level := func(subsystem string) btclog.Level {
		logger, ok := loggers.Logger(subsystem)
		require.True(t, ok)
		return logger.Level()
	}

	require.NoError(t, ParseAndSetDebugLevels(loggers, "debug"))
	for _, subsystem := range loggers.Subsystems() {
		require.Equal(t, btclog.LevelDebug, level(subsystem))
	}

	err := ParseAndSetDebugLevels(loggers, "BRDG=trace,WLLT=warn")
	require.NoError(t, err)
	require.Equal(t, btclog.LevelTrace, level(bridge.Subsystem))
	require.Equal(t, btclog.LevelWarn, level(wallet.Subsystem))
	require.Equal(t, btclog.LevelDebug, level("EXEC"))

	for _, bad := range []string{
		"loud", "BRDG=loud", "NOPE=info", "BRDG", "BRDG=info=x,",
	} {
		require.Error(t, ParseAndSetDebugLevels(loggers, bad), bad)
	}
}
