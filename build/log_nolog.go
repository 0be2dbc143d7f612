//go:build nolog && !stdlog
// +build nolog,!stdlog

// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

// LogLevel silences every subsystem.
var LogLevel = "none"

// LoggingType disables package loggers entirely.
const LoggingType = LogTypeNone
