//go:build !nolog && !stdlog
// +build !nolog,!stdlog

// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

// LoggingType routes package loggers through the backend a binary installs:
// stdout or stderr plus the log rotator for watchwallet, stderr for the C
// library.
const LoggingType = LogTypeDefault
