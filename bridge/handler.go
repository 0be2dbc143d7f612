// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/walletbridge/build"
	"github.com/btcsuite/walletbridge/port"
	"github.com/btcsuite/walletbridge/wallet"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// eventHandler posts the notifications of one subscription to its event
// port.  Once closed it posts nothing.
type eventHandler struct {
	bridge *Bridge
	id     uuid.UUID
	events port.Address

	// mu is held for reading across every post and for writing by close,
	// so no post is in flight once close returns.
	mu     sync.RWMutex
	closed bool
}

// A compile-time check to ensure eventHandler satisfies wallet.Handler.
var _ wallet.Handler = (*eventHandler)(nil)

func newEventHandler(b *Bridge, id uuid.UUID,
	events port.Address) *eventHandler {

	return &eventHandler{
		bridge: b,
		id:     id,
		events: events,
	}
}

// close shuts the gate.
func (h *eventHandler) close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// emit posts msg if the subscription is still live and kind is forwarded.
func (h *eventHandler) emit(kind Forwarding, msg port.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		h.bridge.metrics.droppedEvent(msg.Tag(), "closed")
		log.Tracef("Subscription %v closed, dropping %v", h.id,
			msg.Tag())
		return
	}
	if h.bridge.Forwarding()&kind == 0 {
		h.bridge.metrics.droppedEvent(msg.Tag(), "disabled")
		log.Tracef("Subscription %v: not forwarding %v", h.id,
			build.NewLogClosure(func() string {
				return spew.Sdump(msg)
			}))
		return
	}

	h.bridge.post(h.events, msg)
}

// OnStateChanged forwards the new balance.
func (h *eventHandler) OnStateChanged(state wallet.AccountState) {
	log.Debugf("Subscription %v: balance %v after %d transaction(s)",
		h.id, state.Balance, state.TxCount)

	h.emit(ForwardStateChanged, port.StateChanged{
		Balance: int64(state.Balance),
	})
}

// OnMessageSent reports a pending transaction as sent.  It is confirmed when
// the ledger transaction is known.
func (h *eventHandler) OnMessageSent(p wallet.PendingTransaction,
	tx fn.Option[wallet.Transaction]) {

	msg := port.MessageSent{
		TxID:   p.ID,
		Height: -1,
	}
	tx.WhenSome(func(t wallet.Transaction) {
		msg.Confirmed = t.Confirmed()
		msg.Height = t.Height
	})

	log.Debugf("Subscription %v: message %v sent", h.id, p.ID)

	h.emit(ForwardMessageSent, msg)
}

// OnMessageExpired reports a pending transaction that never confirmed.
func (h *eventHandler) OnMessageExpired(p wallet.PendingTransaction) {
	log.Debugf("Subscription %v: message %v expired at height %d", h.id,
		p.ID, p.ExpireAt)

	h.emit(ForwardMessageExpired, port.MessageExpired{TxID: p.ID})
}

// OnTransactionsFound forwards the ids of a batch of transactions.
func (h *eventHandler) OnTransactionsFound(txs []wallet.Transaction,
	info wallet.TransactionsBatchInfo) {

	ids := make([]chainhash.Hash, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}

	log.Debugf("Subscription %v: %d transaction(s) found in [%d, %d]",
		h.id, len(txs), info.MinHeight, info.MaxHeight)

	h.emit(ForwardTransactionsFound, port.TransactionsFound{
		TxIDs:     ids,
		MinHeight: info.MinHeight,
		MaxHeight: info.MaxHeight,
		Initial:   info.Kind == wallet.BatchInitial,
	})
}
