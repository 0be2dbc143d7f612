//go:build stdlog
// +build stdlog

// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

// LoggingType gives every package logger its own stdout backend.
const LoggingType = LogTypeStdOut
