// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transport provides the reference counted ledger connection that
// watched wallets share.
package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletbridge/wallet"
)

// historyPageSize is the number of transactions requested per
// searchrawtransactions call.
const historyPageSize = 100

// ErrShutdown is returned by every call made after the last share of the
// connection was released.
var ErrShutdown = errors.New("transport shut down")

// backend is the subset of *rpcclient.Client the connection drives.
type backend interface {
	Connect(tries int) error
	NotifyBlocks() error
	GetBestBlock() (*chainhash.Hash, int32, error)
	SearchRawTransactionsVerbose(address btcutil.Address, skip, count int,
		includePrevOut, reverse bool,
		filterAddrs []string) ([]*btcjson.SearchRawTransactionsResult,
		error)
	SendRawTransaction(tx *wire.MsgTx,
		allowHighFees bool) (*chainhash.Hash, error)
	Shutdown()
	WaitForShutdown()
}

// A compile-time check to ensure the rpcclient satisfies backend.
var _ backend = (*rpcclient.Client)(nil)

// Connection is a lazily established, reference counted client connection to
// a btcd backend.  Every holder of a share must call Release exactly once.
type Connection struct {
	cfg    *Config
	client backend

	// connMtx guards connected and dialing.
	connMtx   sync.Mutex
	connected bool
	dialing   *dialAttempt

	refMtx sync.Mutex
	refs   int

	enqueueBlock chan wallet.BlockStamp

	listenerMtx  sync.Mutex
	listeners    map[uint64]chan wallet.BlockStamp
	nextListener uint64

	quit chan struct{}
	wg   sync.WaitGroup
}

// A compile-time check to ensure Connection satisfies wallet.Transport.
var _ wallet.Transport = (*Connection)(nil)

// New creates a connection holding a single share.  No network activity
// happens until the connection is first used.
func New(cfg *Config) (*Connection, error) {
	c := newConnection(cfg)

	var ntfnCallbacks *rpcclient.NotificationHandlers
	if cfg.Websocket() {
		ntfnCallbacks = &rpcclient.NotificationHandlers{
			OnBlockConnected: c.onBlockConnected,
		}
	}

	client, err := rpcclient.New(cfg.Conn, ntfnCallbacks)
	if err != nil {
		return nil, err
	}
	c.client = client

	return c, nil
}

func newConnection(cfg *Config) *Connection {
	return &Connection{
		cfg:          cfg,
		refs:         1,
		enqueueBlock: make(chan wallet.BlockStamp),
		listeners:    make(map[uint64]chan wallet.BlockStamp),
		quit:         make(chan struct{}),
	}
}

// Params implements wallet.Transport.
func (c *Connection) Params() *chaincfg.Params {
	return c.cfg.Net.Params
}

// Acquire takes an additional share of the connection.  It returns false if
// the connection has already been shut down.
func (c *Connection) Acquire() bool {
	c.refMtx.Lock()
	defer c.refMtx.Unlock()

	if c.refs == 0 {
		return false
	}
	c.refs++

	return true
}

// Release gives up one share.  Releasing the last share shuts the client down
// without waiting for it; see WaitForShutdown.
func (c *Connection) Release() {
	c.refMtx.Lock()
	if c.refs == 0 {
		c.refMtx.Unlock()
		log.Warnf("Release of %s with no outstanding shares",
			c.cfg.Conn.Host)
		return
	}
	c.refs--
	last := c.refs == 0
	c.refMtx.Unlock()

	if last {
		c.shutdown()
	}
}

// Refs returns the number of outstanding shares.
func (c *Connection) Refs() int {
	c.refMtx.Lock()
	defer c.refMtx.Unlock()

	return c.refs
}

func (c *Connection) shutdown() {
	log.Infof("Shutting down connection to %s", c.cfg.Conn.Host)

	// Closing quit under connMtx keeps the handler from being started
	// after WaitForShutdown may have begun.
	c.connMtx.Lock()
	close(c.quit)
	c.connMtx.Unlock()

	c.client.Shutdown()

	c.listenerMtx.Lock()
	for id, ch := range c.listeners {
		close(ch)
		delete(c.listeners, id)
	}
	c.listenerMtx.Unlock()
}

// WaitForShutdown blocks until the client has finished disconnecting and the
// notification handler has exited.
func (c *Connection) WaitForShutdown() {
	c.client.WaitForShutdown()
	c.wg.Wait()
}

// dialAttempt is one connection attempt shared by every caller waiting on it.
type dialAttempt struct {
	done chan struct{}
	err  error
}

// ensureConnected dials the backend on first use and, over a websocket,
// registers for block notifications.  The dial runs on its own goroutine so
// that a caller can give up on it through ctx.
func (c *Connection) ensureConnected(ctx context.Context) error {
	c.connMtx.Lock()

	select {
	case <-c.quit:
		c.connMtx.Unlock()
		return ErrShutdown
	default:
	}

	if c.connected {
		c.connMtx.Unlock()
		return nil
	}
	if !c.cfg.Websocket() {
		c.connected = true
		c.connMtx.Unlock()
		return nil
	}

	a := c.dialing
	if a == nil {
		a = &dialAttempt{done: make(chan struct{})}
		c.dialing = a
		go c.dial(a)
	}
	c.connMtx.Unlock()

	select {
	case <-a.done:
		return a.err

	case <-ctx.Done():
		return ctx.Err()

	case <-c.quit:
		return ErrShutdown
	}
}

// dial runs a connection attempt and publishes its outcome.  A failed attempt
// is retried by the next caller.
func (c *Connection) dial(a *dialAttempt) {
	log.Infof("Connecting to %s", c.cfg.Conn.Host)

	err := c.client.Connect(c.cfg.ReconnectAttempts)
	if err != nil {
		err = fmt.Errorf("unable to connect to %s: %w",
			c.cfg.Conn.Host, err)
	} else if err = c.client.NotifyBlocks(); err != nil {
		err = fmt.Errorf("unable to register for blocks: %w", err)
	}

	c.connMtx.Lock()
	c.dialing = nil
	if err == nil {
		select {
		case <-c.quit:
			err = ErrShutdown

		default:
			c.connected = true
			c.wg.Add(1)
			go c.handler()
		}
	}
	c.connMtx.Unlock()

	a.err = err
	close(a.done)
}

// await runs f on its own goroutine and waits for its result, for ctx to be
// done or for the connection to shut down, whichever comes first.  An
// abandoned request still completes in the background; the client fails every
// outstanding request when it is shut down.
func await[T any](c *Connection, ctx context.Context,
	f func() (T, error)) (T, error) {

	type result struct {
		value T
		err   error
	}

	results := make(chan result, 1)
	go func() {
		value, err := f()
		results <- result{value, err}
	}()

	var zero T
	select {
	case r := <-results:
		return r.value, r.err

	case <-ctx.Done():
		return zero, ctx.Err()

	case <-c.quit:
		return zero, ErrShutdown
	}
}

// BestBlock implements wallet.Transport.
func (c *Connection) BestBlock(ctx context.Context) (int32, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return 0, err
	}

	return c.bestHeight(ctx)
}

func (c *Connection) bestHeight(ctx context.Context) (int32, error) {
	return await(c, ctx, func() (int32, error) {
		_, height, err := c.client.GetBestBlock()
		return height, err
	})
}

// SendTransaction implements wallet.Transport.
func (c *Connection) SendTransaction(ctx context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	return await(c, ctx, func() (*chainhash.Hash, error) {
		return c.client.SendRawTransaction(tx, false)
	})
}

// AddressHistory implements wallet.Transport.  It requires a backend running
// with the address index.
func (c *Connection) AddressHistory(ctx context.Context,
	addr btcutil.Address) ([]wallet.Transaction, error) {

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	best, err := c.bestHeight(ctx)
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	scriptHex := hex.EncodeToString(pkScript)
	encoded := addr.EncodeAddress()

	var history []wallet.Transaction
	for skip := 0; ; {
		offset := skip
		page, err := await(c, ctx, func() (
			[]*btcjson.SearchRawTransactionsResult, error) {

			return c.client.SearchRawTransactionsVerbose(
				addr, offset, historyPageSize, true, false, nil,
			)
		})
		if isNoTxInfo(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to search transactions "+
				"of %v: %w", addr, err)
		}

		for _, result := range page {
			tx, err := historyEntry(result, scriptHex, encoded, best)
			if err != nil {
				return nil, err
			}
			history = append(history, tx)
		}

		if len(page) < historyPageSize {
			break
		}
		skip += len(page)
	}

	return history, nil
}

// isNoTxInfo reports whether err is the backend's answer for an address with
// no (further) transactions.
func isNoTxInfo(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo
}

// historyEntry converts a search result into the net effect it had on the
// address paid by scriptHex.
func historyEntry(result *btcjson.SearchRawTransactionsResult,
	scriptHex, addr string, best int32) (wallet.Transaction, error) {

	txid, err := chainhash.NewHashFromStr(result.Txid)
	if err != nil {
		return wallet.Transaction{}, err
	}

	tx := wallet.Transaction{
		ID:     *txid,
		Height: -1,
		Time:   time.Unix(result.Time, 0),
	}
	if result.Confirmations > 0 {
		tx.Height = best - int32(result.Confirmations) + 1
		tx.Time = time.Unix(result.Blocktime, 0)
	}

	var delta float64
	for _, out := range result.Vout {
		if out.ScriptPubKey.Hex == scriptHex {
			delta += out.Value
		}
	}
	for _, in := range result.Vin {
		if in.PrevOut == nil {
			continue
		}
		for _, a := range in.PrevOut.Addresses {
			if a == addr {
				delta -= in.PrevOut.Value
				break
			}
		}
	}

	tx.Delta, err = btcutil.NewAmount(delta)
	if err != nil {
		return wallet.Transaction{}, err
	}

	return tx, nil
}

// SubscribeBlocks implements wallet.Transport.  The returned channel holds at
// most the newest block and is closed when the connection shuts down.
func (c *Connection) SubscribeBlocks() (<-chan wallet.BlockStamp, func()) {
	ch := make(chan wallet.BlockStamp, 1)

	c.listenerMtx.Lock()
	defer c.listenerMtx.Unlock()

	select {
	case <-c.quit:
		close(ch)
		return ch, func() {}
	default:
	}

	id := c.nextListener
	c.nextListener++
	c.listeners[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.listenerMtx.Lock()
			defer c.listenerMtx.Unlock()

			if _, ok := c.listeners[id]; ok {
				delete(c.listeners, id)
				close(ch)
			}
		})
	}

	return ch, cancel
}

func (c *Connection) onBlockConnected(hash *chainhash.Hash, height int32,
	t time.Time) {

	select {
	case c.enqueueBlock <- wallet.BlockStamp{
		Hash:   *hash,
		Height: height,
		Time:   t,
	}:
	case <-c.quit:
	}
}

// handler fans connected blocks out to every listener.  A listener that has
// not consumed the previous block has it replaced by the newer one.
func (c *Connection) handler() {
	defer c.wg.Done()

	for {
		select {
		case block := <-c.enqueueBlock:
			log.Debugf("Block %v connected at height %d", block.Hash,
				block.Height)
			c.notify(block)

		case <-c.quit:
			return
		}
	}
}

func (c *Connection) notify(block wallet.BlockStamp) {
	c.listenerMtx.Lock()
	defer c.listenerMtx.Unlock()

	for _, ch := range c.listeners {
		select {
		case <-ch:
		default:
		}
		ch <- block
	}
}
