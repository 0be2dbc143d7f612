// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cfgutil holds go-flags option types and path and address helpers
// shared by the command line tools.
package cfgutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// AmountFlag is a bitcoin amount option.  Values are given in BTC with an
// optional " BTC" suffix, or in satoshis with a "sat" suffix.
type AmountFlag struct {
	btcutil.Amount
}

// NewAmountFlag returns an AmountFlag defaulting to defaultValue.
func NewAmountFlag(defaultValue btcutil.Amount) *AmountFlag {
	return &AmountFlag{defaultValue}
}

// MarshalFlag implements flags.Marshaler.
func (a *AmountFlag) MarshalFlag() (string, error) {
	return a.Amount.String(), nil
}

// UnmarshalFlag implements flags.Unmarshaler.
func (a *AmountFlag) UnmarshalFlag(value string) error {
	value = strings.TrimSpace(value)

	if sats, ok := strings.CutSuffix(value, "sat"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(sats), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", value, err)
		}
		a.Amount = btcutil.Amount(n)
		return nil
	}

	value = strings.TrimSpace(strings.TrimSuffix(value, "BTC"))
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", value, err)
	}
	amount, err := btcutil.NewAmount(f)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", value, err)
	}
	a.Amount = amount

	return nil
}

// ExplicitString is a string option that remembers whether it was set on the
// command line or in the config file, so a default can be told apart from the
// same value given explicitly.
type ExplicitString struct {
	Value string

	explicit bool
}

// NewExplicitString returns an unset option holding defaultValue.
func NewExplicitString(defaultValue string) *ExplicitString {
	return &ExplicitString{Value: defaultValue}
}

// ExplicitlySet reports whether UnmarshalFlag has been called.
func (e *ExplicitString) ExplicitlySet() bool {
	return e.explicit
}

// MarshalFlag implements flags.Marshaler.
func (e *ExplicitString) MarshalFlag() (string, error) {
	return e.Value, nil
}

// UnmarshalFlag implements flags.Unmarshaler.
func (e *ExplicitString) UnmarshalFlag(value string) error {
	e.Value = value
	e.explicit = true
	return nil
}
