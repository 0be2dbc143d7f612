//go:build !dev
// +build !dev

// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

// Deployment specifies a production build.  Sub-loggers are created from the
// backend each binary installs.
const Deployment = Production
