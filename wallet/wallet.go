// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet watches a single contract address through a Transport and
// reports account changes to a Handler.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletbridge/build"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/ticker"
)

// DefaultPollInterval is how often a wallet refreshes when no block arrives.
const DefaultPollInterval = 30 * time.Second

// ErrWalletClosed is returned by Send once the wallet has been closed.
var ErrWalletClosed = errors.New("wallet closed")

// Config holds the optional parameters of a watched wallet.
type Config struct {
	// PollInterval is the refresh period used when the transport does
	// not deliver block notifications.  Defaults to DefaultPollInterval.
	PollInterval time.Duration

	// Ticker overrides the ticker built from PollInterval.
	Ticker ticker.Ticker

	// Clock stamps pending transactions.  Defaults to the wall clock.
	Clock clock.Clock
}

// Wallet is a live watch over one contract address.
type Wallet struct {
	transport Transport
	contract  ContractType
	address   btcutil.Address
	handler   Handler
	ticker    ticker.Ticker
	clock     clock.Clock

	mu      sync.RWMutex
	closed  bool
	state   AccountState
	seen    map[chainhash.Hash]struct{}
	pending map[chainhash.Hash]PendingTransaction

	blocks       <-chan BlockStamp
	cancelBlocks func()

	// ctx bounds every transport call made by the watch goroutine and
	// is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Subscribe derives the address controlled by key under contract, loads its
// current state from transport and starts watching it.  The initial state,
// and the confirmed history if any, are delivered to handler before any later
// change.  ctx bounds the initial load only.  An error means nothing was
// started.
func Subscribe(ctx context.Context, transport Transport, key *btcec.PublicKey,
	contract ContractType, handler Handler, cfg Config) (*Wallet, error) {

	if key == nil {
		return nil, ErrInvalidPublicKey
	}

	address, err := contract.Address(key, transport.Params())
	if err != nil {
		return nil, fmt.Errorf("unable to derive %v address: %w",
			contract, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Ticker == nil {
		interval := cfg.PollInterval
		if interval <= 0 {
			interval = DefaultPollInterval
		}
		cfg.Ticker = ticker.New(interval)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	w := &Wallet{
		ctx:       watchCtx,
		cancel:    cancel,
		transport: transport,
		contract:  contract,
		address:   address,
		handler:   handler,
		ticker:    cfg.Ticker,
		clock:     cfg.Clock,
		seen:      make(map[chainhash.Hash]struct{}),
		pending:   make(map[chainhash.Hash]PendingTransaction),
		quit:      make(chan struct{}),
	}

	// Subscribe to blocks before the first fetch so that nothing connected
	// in between is missed.
	w.blocks, w.cancelBlocks = transport.SubscribeBlocks()

	initial, err := w.load(ctx)
	if err != nil {
		cancel()
		w.cancelBlocks()
		return nil, fmt.Errorf("unable to load %v: %w", address, err)
	}

	log.Infof("Watching %v address %v", contract, address)

	w.wg.Add(1)
	go w.watch(initial)

	return w, nil
}

// Address returns the watched address.
func (w *Wallet) Address() btcutil.Address {
	return w.address
}

// Contract returns the contract variant the address was derived for.
func (w *Wallet) Contract() ContractType {
	return w.contract
}

// State returns the most recently observed account state.
func (w *Wallet) State() AccountState {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.state
}

// Send broadcasts tx and tracks it until it confirms or expireAfter blocks
// pass without it confirming.
func (w *Wallet) Send(ctx context.Context, tx *wire.MsgTx,
	expireAfter uint32) (PendingTransaction, error) {

	if err := ctx.Err(); err != nil {
		return PendingTransaction{}, err
	}

	w.mu.RLock()
	closed := w.closed
	w.mu.RUnlock()
	if closed {
		return PendingTransaction{}, ErrWalletClosed
	}

	best, err := w.transport.BestBlock(ctx)
	if err != nil {
		return PendingTransaction{}, fmt.Errorf("unable to get best "+
			"block: %w", err)
	}

	txid, err := w.transport.SendTransaction(ctx, tx)
	if err != nil {
		return PendingTransaction{}, fmt.Errorf("unable to broadcast "+
			"%v: %w", tx.TxHash(), err)
	}

	pending := PendingTransaction{
		ID:       *txid,
		ExpireAt: best + int32(expireAfter),
		Sent:     w.clock.Now(),
	}

	w.mu.Lock()
	w.pending[pending.ID] = pending
	w.mu.Unlock()

	log.Debugf("Sent %v from %v, expires after height %d", pending.ID,
		w.address, pending.ExpireAt)

	return pending, nil
}

// Close stops watching and waits for the watch goroutine to exit.  No handler
// method is called once Close returns.
func (w *Wallet) Close() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		close(w.quit)
		w.cancel()
		w.wg.Wait()
		w.cancelBlocks()

		log.Infof("Stopped watching %v", w.address)
	})
}

// load fetches the account state at subscription time and returns the
// confirmed history found.
func (w *Wallet) load(ctx context.Context) ([]Transaction, error) {
	best, history, err := w.fetch(ctx)
	if err != nil {
		return nil, err
	}

	confirmed := confirmedHistory(history)
	for _, tx := range confirmed {
		w.seen[tx.ID] = struct{}{}
	}
	w.state = accountState(confirmed, best)

	return confirmed, nil
}

func (w *Wallet) fetch(ctx context.Context) (int32, []Transaction, error) {
	best, err := w.transport.BestBlock(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("unable to get best block: %w", err)
	}

	history, err := w.transport.AddressHistory(ctx, w.address)
	if err != nil {
		return 0, nil, fmt.Errorf("unable to get address history: %w",
			err)
	}

	return best, history, nil
}

// watch delivers the initial notifications and then refreshes on every block
// and poll tick until the wallet is closed.
func (w *Wallet) watch(initial []Transaction) {
	defer w.wg.Done()

	w.handler.OnStateChanged(w.State())
	if len(initial) > 0 {
		w.handler.OnTransactionsFound(
			initial, batchInfo(initial, BatchInitial),
		)
	}

	w.ticker.Resume()
	defer w.ticker.Stop()

	blocks := w.blocks
	for {
		select {
		case block, ok := <-blocks:
			if !ok {
				log.Debugf("Block notifications for %v ended, "+
					"polling only", w.address)
				blocks = nil
				continue
			}
			log.Tracef("Block %v (%d) connected, refreshing %v",
				block.Hash, block.Height, w.address)
			w.refresh()

		case <-w.ticker.Ticks():
			w.refresh()

		case <-w.quit:
			return
		}
	}
}

// update is the outcome of one refresh, delivered to the handler after the
// wallet lock is released.
type update struct {
	found   []Transaction
	sent    []PendingTransaction
	sentTxs []Transaction
	expired []PendingTransaction
	state   AccountState
	changed bool
}

// refresh reloads the address history and notifies the handler of anything
// that changed.
func (w *Wallet) refresh() {
	best, history, err := w.fetch(w.ctx)
	switch {
	case w.ctx.Err() != nil:
		return

	case err != nil:
		log.Warnf("Unable to refresh %v: %v", w.address, err)
		return
	}

	u := w.apply(best, history)

	log.Tracef("Refreshed %v: %v", w.address, build.NewLogClosure(
		func() string {
			return spew.Sdump(u.state)
		},
	))

	for i, p := range u.sent {
		w.handler.OnMessageSent(p, fn.Some(u.sentTxs[i]))
	}
	for _, p := range u.expired {
		w.handler.OnMessageExpired(p)
	}
	if len(u.found) > 0 {
		w.handler.OnTransactionsFound(
			u.found, batchInfo(u.found, BatchNew),
		)
	}
	if u.changed {
		w.handler.OnStateChanged(u.state)
	}
}

// apply folds a fresh history into the wallet state.
func (w *Wallet) apply(best int32, history []Transaction) update {
	confirmed := confirmedHistory(history)
	byID := make(map[chainhash.Hash]Transaction, len(confirmed))
	for _, tx := range confirmed {
		byID[tx.ID] = tx
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var u update
	for _, tx := range confirmed {
		if _, ok := w.seen[tx.ID]; ok {
			continue
		}
		w.seen[tx.ID] = struct{}{}
		u.found = append(u.found, tx)
	}

	ids := make([]chainhash.Hash, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return w.pending[ids[i]].ExpireAt < w.pending[ids[j]].ExpireAt
	})
	for _, id := range ids {
		p := w.pending[id]
		switch tx, ok := byID[id]; {
		case ok:
			u.sent = append(u.sent, p)
			u.sentTxs = append(u.sentTxs, tx)
			delete(w.pending, id)

		case best > p.ExpireAt:
			u.expired = append(u.expired, p)
			delete(w.pending, id)
		}
	}

	state := accountState(confirmed, best)
	u.changed = !sameAccount(w.state, state)
	u.state = state
	w.state = state

	return u
}

// confirmedHistory returns the confirmed part of history ordered by height.
func confirmedHistory(history []Transaction) []Transaction {
	confirmed := make([]Transaction, 0, len(history))
	for _, tx := range history {
		if tx.Confirmed() {
			confirmed = append(confirmed, tx)
		}
	}
	sort.SliceStable(confirmed, func(i, j int) bool {
		return confirmed[i].Height < confirmed[j].Height
	})

	return confirmed
}

// accountState sums a height ordered confirmed history.
func accountState(confirmed []Transaction, best int32) AccountState {
	state := AccountState{
		TxCount:           len(confirmed),
		LastTransactionID: fn.None[chainhash.Hash](),
		SyncHeight:        best,
	}
	for _, tx := range confirmed {
		state.Balance += tx.Delta
	}
	if len(confirmed) > 0 {
		state.LastTransactionID = fn.Some(confirmed[len(confirmed)-1].ID)
	}

	return state
}

func batchInfo(txs []Transaction, kind BatchKind) TransactionsBatchInfo {
	info := TransactionsBatchInfo{
		MinHeight: txs[0].Height,
		MaxHeight: txs[0].Height,
		Kind:      kind,
	}
	for _, tx := range txs[1:] {
		if tx.Height < info.MinHeight {
			info.MinHeight = tx.Height
		}
		if tx.Height > info.MaxHeight {
			info.MaxHeight = tx.Height
		}
	}

	return info
}
