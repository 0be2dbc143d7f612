// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Testnet4 is the network magic of testnet4.
const Testnet4 wire.BitcoinNet = 0x1c163f28

// TestNet4ChainParams holds the testnet4 parameters a watch-only client needs:
// network identity and address encodings.  The pinned btcd release does not
// ship them.  Consensus fields are left zero since blocks are never validated
// here.
var TestNet4ChainParams = chaincfg.Params{
	Name:         "testnet4",
	Net:          Testnet4,
	DefaultPort:  "48333",
	GenesisBlock: &testNet4GenesisBlock,
	GenesisHash:  &testNet4GenesisHash,

	CoinbaseMaturity: 100,
	RelayNonStdTxs:   true,

	Bech32HRPSegwit:         "tb",
	PubKeyHashAddrID:        0x6f,
	ScriptHashAddrID:        0xc4,
	WitnessPubKeyHashAddrID: 0x03,
	WitnessScriptHashAddrID: 0x28,
	PrivateKeyID:            0xef,
	HDPrivateKeyID:          [4]byte{0x04, 0x35, 0x83, 0x94},
	HDPublicKeyID:           [4]byte{0x04, 0x35, 0x87, 0xcf},
	HDCoinType:              1,
}

var (
	testNet4GenesisHash = mustHash(
		"00000000da84f2bafbbc53dee25a72ae507ff4914b867c565be350b0da8bf043",
	)

	testNet4GenesisBlock = wire.MsgBlock{
		Header: wire.BlockHeader{
			Version: 1,
			MerkleRoot: mustHash(
				"7aa0a7ae1e223414cb807e40cd57e667b718e42aaf9306db9102fe28912b7b4e",
			),
			Timestamp: time.Unix(1714777860, 0),
			Bits:      0x1d00ffff,
			Nonce:     393743547,
		},
		Transactions: []*wire.MsgTx{{
			Version: 1,
			TxIn: []*wire.TxIn{{
				PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
				SignatureScript: mustHex(
					"04ffff001d01044c4c30332f4d61792f3230323420303030" +
						"303030303030303030303030303030303031656264353863" +
						"323434393730623361613964373833626230303130313166" +
						"62653865613865393865303065",
				),
				Sequence: wire.MaxTxInSequenceNum,
			}},
			TxOut: []*wire.TxOut{{
				Value: 50 * 1e8,
				PkScript: mustHex(
					"21" + "00" + hexZeros(32) + "ac",
				),
			}},
		}},
	}
)

func mustHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func hexZeros(n int) string {
	b := make([]byte, 2*n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
