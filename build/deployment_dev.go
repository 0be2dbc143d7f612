//go:build dev
// +build dev

// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

// Deployment specifies a development build.  Package loggers are created
// according to LoggingType, so unit tests built with the stdlog tag print
// directly to stdout.
const Deployment = Development
