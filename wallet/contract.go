// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// safeMultisigDelay is the relative lock, in blocks, of the time-locked safe
// multisig variant.  144 blocks is roughly one day.
const safeMultisigDelay = 144

var (
	// ErrInvalidPublicKey is returned when a public key cannot be decoded
	// from its hex form or is not a point on the secp256k1 curve.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrUnknownContract is returned when deriving the address of a
	// contract variant this package does not know.
	ErrUnknownContract = errors.New("unknown contract type")
)

// ParsePublicKey decodes a hex encoded, compressed secp256k1 public key.
func ParsePublicKey(hexKey string) (*btcec.PublicKey, error) {
	data, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(data) != btcec.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("%w: got %d bytes, want %d",
			ErrInvalidPublicKey, len(data),
			btcec.PubKeyBytesLenCompressed)
	}

	key, err := btcec.ParsePubKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	return key, nil
}

// MultisigType enumerates the multi-signature wallet contracts.
type MultisigType uint8

const (
	// SafeMultisigWallet is the standard multi-signature wallet.
	SafeMultisigWallet MultisigType = iota

	// SafeMultisigWallet24h is the standard wallet behind a one day
	// relative time lock.
	SafeMultisigWallet24h

	// SetcodeMultisigWallet is the upgradable wallet.  Its code may be
	// replaced later, so it is committed to through a taproot output.
	SetcodeMultisigWallet

	// SurfWallet is the third-party multi-signature wallet, deployed as
	// legacy pay-to-script-hash.
	SurfWallet
)

// String returns the MultisigType as a human-readable name.
func (t MultisigType) String() string {
	switch t {
	case SafeMultisigWallet:
		return "SafeMultisigWallet"
	case SafeMultisigWallet24h:
		return "SafeMultisigWallet24h"
	case SetcodeMultisigWallet:
		return "SetcodeMultisigWallet"
	case SurfWallet:
		return "SurfWallet"
	default:
		return fmt.Sprintf("Unknown MultisigType (%d)", uint8(t))
	}
}

// ContractType is the wallet contract a public key is watched under.  The
// variants are Multisig and WalletV3.
type ContractType interface {
	// Address derives the address the contract controls for key on the
	// given network.
	Address(key *btcec.PublicKey, params *chaincfg.Params) (btcutil.Address,
		error)

	fmt.Stringer

	isContractType()
}

// Multisig is a multi-signature contract of the given flavour.
type Multisig struct {
	Type MultisigType
}

// WalletV3 is the simple single-signature wallet.
type WalletV3 struct{}

// A compile-time check to ensure both variants satisfy ContractType.
var (
	_ ContractType = Multisig{}
	_ ContractType = WalletV3{}
)

func (Multisig) isContractType() {}
func (WalletV3) isContractType() {}

// String implements fmt.Stringer.
func (m Multisig) String() string {
	return "Multisig(" + m.Type.String() + ")"
}

// String implements fmt.Stringer.
func (WalletV3) String() string {
	return "WalletV3"
}

// Address implements ContractType.
func (m Multisig) Address(key *btcec.PublicKey,
	params *chaincfg.Params) (btcutil.Address, error) {

	switch m.Type {
	case SafeMultisigWallet:
		script, err := multisigScript(nil, key)
		if err != nil {
			return nil, err
		}
		return witnessScriptAddress(script, params)

	case SafeMultisigWallet24h:
		lock := txscript.NewScriptBuilder().
			AddInt64(safeMultisigDelay).
			AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
			AddOp(txscript.OP_DROP)
		script, err := multisigScript(lock, key)
		if err != nil {
			return nil, err
		}
		return witnessScriptAddress(script, params)

	case SetcodeMultisigWallet:
		outputKey := txscript.ComputeTaprootOutputKey(key, nil)
		return btcutil.NewAddressTaproot(
			schnorr.SerializePubKey(outputKey), params,
		)

	case SurfWallet:
		script, err := multisigScript(nil, key)
		if err != nil {
			return nil, err
		}
		return btcutil.NewAddressScriptHash(script, params)

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownContract, m.Type)
	}
}

// Address implements ContractType.
func (WalletV3) Address(key *btcec.PublicKey,
	params *chaincfg.Params) (btcutil.Address, error) {

	return btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(key.SerializeCompressed()), params,
	)
}

// multisigScript appends a 1-of-1 CHECKMULTISIG over key to the script held
// by prefix, which may be nil.
func multisigScript(prefix *txscript.ScriptBuilder,
	key *btcec.PublicKey) ([]byte, error) {

	if prefix == nil {
		prefix = txscript.NewScriptBuilder()
	}

	return prefix.
		AddOp(txscript.OP_1).
		AddData(key.SerializeCompressed()).
		AddOp(txscript.OP_1).
		AddOp(txscript.OP_CHECKMULTISIG).
		Script()
}

func witnessScriptAddress(script []byte,
	params *chaincfg.Params) (btcutil.Address, error) {

	scriptHash := sha256.Sum256(script)
	return btcutil.NewAddressWitnessScriptHash(scriptHash[:], params)
}
