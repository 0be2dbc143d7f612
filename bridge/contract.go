// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"fmt"
	"strings"

	"github.com/btcsuite/walletbridge/port"
	"github.com/btcsuite/walletbridge/wallet"
)

// ContractType is the host visible contract selector.  Its numbering is part
// of the C ABI.
type ContractType int32

const (
	// SafeMultisig is the standard multi-signature wallet.
	SafeMultisig ContractType = iota

	// SafeMultisig24h is the standard multi-signature wallet behind a one
	// day time lock.
	SafeMultisig24h

	// SetcodeMultisig is the upgradable multi-signature wallet.
	SetcodeMultisig

	// Surf is the third-party multi-signature wallet.
	Surf

	// WalletV3 is the simple single-signature wallet.
	WalletV3
)

// ContractTypes lists every host contract type in numeric order.
var ContractTypes = []ContractType{
	SafeMultisig, SafeMultisig24h, SetcodeMultisig, Surf, WalletV3,
}

var contractTypeStrings = map[ContractType]string{
	SafeMultisig:    "SafeMultisig",
	SafeMultisig24h: "SafeMultisig24h",
	SetcodeMultisig: "SetcodeMultisig",
	Surf:            "Surf",
	WalletV3:        "WalletV3",
}

// String returns the ContractType as a human-readable name.
func (c ContractType) String() string {
	if s := contractTypeStrings[c]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ContractType (%d)", int32(c))
}

// Valid reports whether c is one of the enumerated contract types.
func (c ContractType) Valid() bool {
	_, ok := contractTypeStrings[c]
	return ok
}

// Contract returns the wallet contract variant for c.  Every enumerated value
// has exactly one variant; the second result is false only for numbers outside
// the enumeration, which the C boundary can pass.
func (c ContractType) Contract() (wallet.ContractType, bool) {
	switch c {
	case SafeMultisig:
		return wallet.Multisig{Type: wallet.SafeMultisigWallet}, true
	case SafeMultisig24h:
		return wallet.Multisig{Type: wallet.SafeMultisigWallet24h}, true
	case SetcodeMultisig:
		return wallet.Multisig{Type: wallet.SetcodeMultisigWallet}, true
	case Surf:
		return wallet.Multisig{Type: wallet.SurfWallet}, true
	case WalletV3:
		return wallet.WalletV3{}, true
	}

	return nil, false
}

// ParseContractType returns the contract type with the given name, ignoring
// case.
func ParseContractType(name string) (ContractType, error) {
	for _, c := range ContractTypes {
		if strings.EqualFold(c.String(), name) {
			return c, nil
		}
	}

	return 0, fmt.Errorf("unknown contract type %q", name)
}

// Forwarding selects which wallet notifications are posted to a
// subscription's event port.
//
// MessageSent and MessageExpired report transactions tracked by wallet.Send.
// The bridge has no send operation, so subscriptions created through it only
// produce them when the same wallet is also driven from Go.
type Forwarding uint32

const (
	// ForwardStateChanged forwards account state changes as StateChanged
	// messages carrying the balance.
	ForwardStateChanged Forwarding = 1 << iota

	// ForwardMessageSent forwards confirmations of sent transactions.
	ForwardMessageSent

	// ForwardMessageExpired forwards expiries of sent transactions.
	ForwardMessageExpired

	// ForwardTransactionsFound forwards batches of newly found
	// transactions.
	ForwardTransactionsFound

	// DefaultForwarding forwards balance changes only.
	DefaultForwarding = ForwardStateChanged

	// ForwardAll forwards every notification kind.
	ForwardAll = ForwardStateChanged | ForwardMessageSent |
		ForwardMessageExpired | ForwardTransactionsFound
)

var forwardingTags = map[Forwarding]port.Tag{
	ForwardStateChanged:      port.TagStateChanged,
	ForwardMessageSent:       port.TagMessageSent,
	ForwardMessageExpired:    port.TagMessageExpired,
	ForwardTransactionsFound: port.TagTransactionsFound,
}

// String lists the enabled kinds.
func (f Forwarding) String() string {
	var kinds []string
	for _, kind := range []Forwarding{
		ForwardStateChanged, ForwardMessageSent,
		ForwardMessageExpired, ForwardTransactionsFound,
	} {
		if f&kind != 0 {
			kinds = append(kinds, forwardingTags[kind].String())
		}
	}
	if rest := f &^ ForwardAll; rest != 0 {
		kinds = append(kinds, fmt.Sprintf("0x%x", uint32(rest)))
	}
	if len(kinds) == 0 {
		return "none"
	}

	return strings.Join(kinds, "|")
}

// ParseForwarding builds a Forwarding from message tag names such as
// "StateChanged", ignoring case.  "all" and "none" are accepted as well.
func ParseForwarding(names []string) (Forwarding, error) {
	var f Forwarding
	for _, name := range names {
		switch strings.ToLower(name) {
		case "all":
			f |= ForwardAll
			continue
		case "none":
			continue
		}

		found := false
		for kind, tag := range forwardingTags {
			if strings.EqualFold(tag.String(), name) {
				f |= kind
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown notification kind %q", name)
		}
	}

	return f, nil
}
