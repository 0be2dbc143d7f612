// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Transport is the ledger backend a wallet is watched through.  A single
// transport is shared by many wallets, so implementations must be safe for
// concurrent use.  Calls must return once their context is done, even while
// the backend is unreachable.
type Transport interface {
	// Params returns the network the backend serves.
	Params() *chaincfg.Params

	// BestBlock returns the height of the current chain tip.
	BestBlock(ctx context.Context) (int32, error)

	// AddressHistory returns every transaction touching addr, mempool
	// ones included, with its net effect on addr's balance.
	AddressHistory(ctx context.Context,
		addr btcutil.Address) ([]Transaction, error)

	// SendTransaction broadcasts tx.
	SendTransaction(ctx context.Context,
		tx *wire.MsgTx) (*chainhash.Hash, error)

	// SubscribeBlocks returns a channel carrying the latest connected
	// block and a function that ends the subscription.  Only the newest
	// block is kept for a slow reader.
	SubscribeBlocks() (<-chan BlockStamp, func())
}

// Handler receives the asynchronous notifications of a watched wallet.  All
// calls for one wallet are made from a single goroutine, in order.  Calls for
// different wallets may be concurrent.
type Handler interface {
	// OnMessageSent is called when a transaction broadcast through Send
	// confirms.
	OnMessageSent(pending PendingTransaction, tx fn.Option[Transaction])

	// OnMessageExpired is called when a transaction broadcast through
	// Send did not confirm before its expiry height.
	OnMessageExpired(pending PendingTransaction)

	// OnStateChanged is called with the initial account state and
	// whenever it changes afterwards.
	OnStateChanged(state AccountState)

	// OnTransactionsFound is called with confirmed transactions not
	// reported before.
	OnTransactionsFound(txs []Transaction, info TransactionsBatchInfo)
}

// BlockStamp identifies a connected block.
type BlockStamp struct {
	Hash   chainhash.Hash
	Height int32
	Time   time.Time
}

// Transaction is a transaction touching the watched address.
type Transaction struct {
	// ID is the transaction hash.
	ID chainhash.Hash

	// Height is the height of the including block, or -1 while the
	// transaction is unconfirmed.
	Height int32

	// Time is the block time, or the time first seen while unconfirmed.
	Time time.Time

	// Delta is the net effect on the watched address's balance.
	Delta btcutil.Amount
}

// Confirmed reports whether the transaction is in a block.
func (t *Transaction) Confirmed() bool {
	return t.Height >= 0
}

// AccountState is the state of the watched address as of SyncHeight.
type AccountState struct {
	// Balance is the sum of all confirmed deltas.
	Balance btcutil.Amount

	// TxCount is the number of confirmed transactions.
	TxCount int

	// LastTransactionID is the most recent confirmed transaction, if
	// any.
	LastTransactionID fn.Option[chainhash.Hash]

	// SyncHeight is the chain height the state was computed at.
	SyncHeight int32
}

// sameAccount reports whether a and b describe the same account, ignoring the
// height they were observed at.
func sameAccount(a, b AccountState) bool {
	return a.Balance == b.Balance && a.TxCount == b.TxCount &&
		a.LastTransactionID.UnwrapOr(chainhash.Hash{}) ==
			b.LastTransactionID.UnwrapOr(chainhash.Hash{})
}

// PendingTransaction is an outgoing transaction awaiting confirmation.
type PendingTransaction struct {
	ID       chainhash.Hash
	ExpireAt int32
	Sent     time.Time
}

// BatchKind tells whether a batch of found transactions is the history that
// existed at subscription time or new activity.
type BatchKind uint8

const (
	// BatchInitial is the history found when the wallet was subscribed.
	BatchInitial BatchKind = iota

	// BatchNew is activity seen after subscription.
	BatchNew
)

// TransactionsBatchInfo describes a batch passed to OnTransactionsFound.
type TransactionsBatchInfo struct {
	MinHeight int32
	MaxHeight int32
	Kind      BatchKind
}
