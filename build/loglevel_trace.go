//go:build trace && !debug && !nolog
// +build trace,!debug,!nolog

// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

// LogLevel is the level of stdout package loggers in development builds.
var LogLevel = "trace"
