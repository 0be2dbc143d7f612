// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"errors"
	"fmt"
)

// StatusCode is the closed set of results every boundary call reports.  The
// numbering is part of the C ABI and must not change.
type StatusCode int32

// These constants are used to identify a specific Error.
const (
	// Ok means the call succeeded.
	Ok StatusCode = iota

	// FailedToCreateRuntime means the executor could not be built, most
	// often because fewer than one worker thread was requested.
	FailedToCreateRuntime

	// RuntimeIsNotInitialized means a null or stale runtime handle was
	// passed.
	RuntimeIsNotInitialized

	// TransportIsNotInitialized means a null or stale transport handle was
	// passed.
	TransportIsNotInitialized

	// SubscriptionIsNotInitialized means a null or stale subscription
	// handle was passed.
	SubscriptionIsNotInitialized

	// FailedToSubscribeToWallet means the wallet subscription could not
	// be established.  It is normally delivered asynchronously.
	FailedToSubscribeToWallet

	// InvalidUrl means the transport configuration string is malformed.
	InvalidUrl

	// InvalidPublicKey means the public key is not valid hex or not a
	// compressed secp256k1 point.
	InvalidPublicKey
)

// Map of StatusCode values back to their constant names for pretty printing.
var statusCodeStrings = map[StatusCode]string{
	Ok:                           "Ok",
	FailedToCreateRuntime:        "FailedToCreateRuntime",
	RuntimeIsNotInitialized:      "RuntimeIsNotInitialized",
	TransportIsNotInitialized:    "TransportIsNotInitialized",
	SubscriptionIsNotInitialized: "SubscriptionIsNotInitialized",
	FailedToSubscribeToWallet:    "FailedToSubscribeToWallet",
	InvalidUrl:                   "InvalidUrl",
	InvalidPublicKey:             "InvalidPublicKey",
}

// String returns the StatusCode as a human-readable name.
func (c StatusCode) String() string {
	if s := statusCodeStrings[c]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown StatusCode (%d)", int32(c))
}

// Error provides a single type for the failures of boundary calls.
type Error struct {
	Code        StatusCode // Describes the kind of error
	Description string     // Human readable description of the issue
	Err         error      // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// bridgeError creates an Error given a set of arguments.
func bridgeError(c StatusCode, desc string, err error) Error {
	return Error{Code: c, Description: desc, Err: err}
}

// Status maps the result of a boundary call to its status code.  A nil error
// is Ok.  Errors not produced by this package map to fallback.
func Status(err error, fallback StatusCode) StatusCode {
	if err == nil {
		return Ok
	}

	var e Error
	if errors.As(err, &e) {
		return e.Code
	}

	return fallback
}
