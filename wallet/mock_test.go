// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
)

// mockTransport is a mock implementation of the Transport interface.
type mockTransport struct {
	mock.Mock
}

// A compile-time assertion to ensure that mockTransport implements the
// Transport interface.
var _ Transport = (*mockTransport)(nil)

// Params implements the Transport interface.
func (m *mockTransport) Params() *chaincfg.Params {
	args := m.Called()
	return args.Get(0).(*chaincfg.Params)
}

// BestBlock implements the Transport interface.
func (m *mockTransport) BestBlock(ctx context.Context) (int32, error) {
	args := m.Called(ctx)
	return int32(args.Int(0)), args.Error(1)
}

// AddressHistory implements the Transport interface.
func (m *mockTransport) AddressHistory(ctx context.Context,
	addr btcutil.Address) ([]Transaction, error) {

	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]Transaction), args.Error(1)
}

// SendTransaction implements the Transport interface.
func (m *mockTransport) SendTransaction(ctx context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*chainhash.Hash), args.Error(1)
}

// SubscribeBlocks implements the Transport interface.
func (m *mockTransport) SubscribeBlocks() (<-chan BlockStamp, func()) {
	args := m.Called()
	return args.Get(0).(chan BlockStamp), args.Get(1).(func())
}

// event is one handler call seen by recordingHandler.
type event struct {
	kind    string
	state   AccountState
	pending PendingTransaction
	tx      fn.Option[Transaction]
	txs     []Transaction
	batch   TransactionsBatchInfo
}

// recordingHandler is a Handler that queues every call it receives.
type recordingHandler struct {
	events chan event
}

var _ Handler = (*recordingHandler)(nil)

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{events: make(chan event, 100)}
}

func (h *recordingHandler) OnMessageSent(p PendingTransaction,
	tx fn.Option[Transaction]) {

	h.events <- event{kind: "sent", pending: p, tx: tx}
}

func (h *recordingHandler) OnMessageExpired(p PendingTransaction) {
	h.events <- event{kind: "expired", pending: p}
}

func (h *recordingHandler) OnStateChanged(state AccountState) {
	h.events <- event{kind: "state", state: state}
}

func (h *recordingHandler) OnTransactionsFound(txs []Transaction,
	info TransactionsBatchInfo) {

	h.events <- event{kind: "found", txs: txs, batch: info}
}
