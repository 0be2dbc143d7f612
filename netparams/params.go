// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
)

// Params is used to group parameters for various networks such as the main
// network and test networks.
type Params struct {
	*chaincfg.Params

	// RPCClientPort is the default port of the backend's websocket and
	// HTTP POST RPC server.
	RPCClientPort string
}

// MainNetParams contains parameters specific to the main network
// (wire.MainNet).
var MainNetParams = Params{
	Params:        &chaincfg.MainNetParams,
	RPCClientPort: "8334",
}

// TestNet3Params contains parameters specific to the test network (version 3)
// (wire.TestNet3).
var TestNet3Params = Params{
	Params:        &chaincfg.TestNet3Params,
	RPCClientPort: "18334",
}

// TestNet4Params contains parameters specific to the test network (version 4).
var TestNet4Params = Params{
	Params:        &TestNet4ChainParams,
	RPCClientPort: "48334",
}

// RegressionNetParams contains parameters specific to the regression test
// network (wire.TestNet).
var RegressionNetParams = Params{
	Params:        &chaincfg.RegressionNetParams,
	RPCClientPort: "18334",
}

// SimNetParams contains parameters specific to the simulation test network
// (wire.SimNet).
var SimNetParams = Params{
	Params:        &chaincfg.SimNetParams,
	RPCClientPort: "18556",
}

// SigNetParams contains parameters specific to the default signet network
// (wire.SigNet).
var SigNetParams = Params{
	Params:        &chaincfg.SigNetParams,
	RPCClientPort: "38332",
}

// byName maps the short network names accepted in configuration to their
// parameters.
var byName = map[string]*Params{
	"mainnet":  &MainNetParams,
	"testnet3": &TestNet3Params,
	"testnet4": &TestNet4Params,
	"regtest":  &RegressionNetParams,
	"simnet":   &SimNetParams,
	"signet":   &SigNetParams,
}

// ByName returns the parameters of the network with the given short name.
func ByName(name string) (*Params, error) {
	params, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown network %q, expected one of %v",
			name, Names())
	}

	return params, nil
}

// Names returns the short names of all known networks in sorted order.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
