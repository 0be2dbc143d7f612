// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/walletbridge/port"
	"github.com/btcsuite/walletbridge/wallet"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 5 * time.Second
	quietPeriod = 100 * time.Millisecond

	// testKey is the compressed secp256k1 generator point.
	testKey = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
)

var errSubscribe = errors.New("ledger unavailable")

// fakeTransport counts shares and never touches the network.
type fakeTransport struct {
	mu       sync.Mutex
	refs     int
	shutdown bool
}

var _ Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{refs: 1}
}

func (f *fakeTransport) Params() *chaincfg.Params {
	return &chaincfg.RegressionNetParams
}

func (f *fakeTransport) BestBlock(context.Context) (int32, error) {
	return 0, nil
}

func (f *fakeTransport) AddressHistory(context.Context,
	btcutil.Address) ([]wallet.Transaction, error) {

	return nil, nil
}

func (f *fakeTransport) SendTransaction(_ context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	hash := tx.TxHash()
	return &hash, nil
}

func (f *fakeTransport) SubscribeBlocks() (<-chan wallet.BlockStamp, func()) {
	return make(chan wallet.BlockStamp), func() {}
}

func (f *fakeTransport) Acquire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.shutdown {
		return false
	}
	f.refs++

	return true
}

func (f *fakeTransport) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refs--
	if f.refs == 0 {
		f.shutdown = true
	}
}

func (f *fakeTransport) Refs() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.refs
}

// fakeSubscription records whether it has been closed.
type fakeSubscription struct {
	closed chan struct{}
	once   sync.Once
}

func (s *fakeSubscription) Close() {
	s.once.Do(func() { close(s.closed) })
}

// subscribeCall is one request seen by fakeSubscriber.
type subscribeCall struct {
	key      *btcec.PublicKey
	contract wallet.ContractType
	handler  wallet.Handler
	watch    *fakeSubscription
}

// fakeSubscriber stands in for wallet.Subscribe.  It fails with err when set.
type fakeSubscriber struct {
	err   error
	calls chan subscribeCall
}

func newFakeSubscriber(err error) *fakeSubscriber {
	return &fakeSubscriber{
		err:   err,
		calls: make(chan subscribeCall, 16),
	}
}

func (f *fakeSubscriber) subscribe(_ context.Context, _ wallet.Transport,
	key *btcec.PublicKey, contract wallet.ContractType,
	h wallet.Handler) (Subscription, error) {

	if f.err != nil {
		f.calls <- subscribeCall{key: key, contract: contract}
		return nil, f.err
	}

	watch := &fakeSubscription{closed: make(chan struct{})}
	f.calls <- subscribeCall{
		key:      key,
		contract: contract,
		handler:  h,
		watch:    watch,
	}

	return watch, nil
}

func (f *fakeSubscriber) next(t *testing.T) subscribeCall {
	t.Helper()

	select {
	case call := <-f.calls:
		return call
	case <-time.After(testTimeout):
		t.Fatal("subscriber not called")
		return subscribeCall{}
	}
}

// testHarness bundles a bridge with an in-process port registry.
type testHarness struct {
	t          *testing.T
	bridge     *Bridge
	ports      *port.Registry
	subscriber *fakeSubscriber

	// transport is the most recently dialed transport.
	transport *fakeTransport
}

func newTestHarness(t *testing.T, subscribeErr error) *testHarness {
	t.Helper()

	h := &testHarness{
		t:          t,
		ports:      port.NewRegistry(),
		subscriber: newFakeSubscriber(subscribeErr),
	}
	h.bridge = New(Config{
		Sink:      h.ports,
		Subscribe: h.subscriber.subscribe,
		Dial: func(string) (Transport, error) {
			h.transport = newFakeTransport()
			return h.transport, nil
		},
	})
	t.Cleanup(h.bridge.Close)

	return h
}

func (h *testHarness) runtime() Handle {
	h.t.Helper()

	rt, err := h.bridge.CreateRuntime(2)
	require.NoError(h.t, err)

	return rt
}

func (h *testHarness) connection() Handle {
	h.t.Helper()

	tr, err := h.bridge.CreateTransport("ws://127.0.0.1")
	require.NoError(h.t, err)

	return tr
}

func (h *testHarness) open() *port.Port {
	h.t.Helper()

	p := h.ports.Open()
	h.t.Cleanup(p.Close)

	return p
}

// subscribe requests a subscription and returns its posted result.
func (h *testHarness) subscribe(contract ContractType,
	events *port.Port) port.SubscriptionResult {

	h.t.Helper()

	result := h.open()
	err := h.bridge.SubscribeToWallet(
		h.runtime(), h.connection(), testKey, contract,
		events.Address(), result.Address(),
	)
	require.NoError(h.t, err)

	msg := receive(h.t, result)
	res, ok := msg.(port.SubscriptionResult)
	require.True(h.t, ok, "unexpected %v", msg.Tag())
	requireQuiet(h.t, result)

	return res
}

func receive(t *testing.T, p *port.Port) port.Message {
	t.Helper()

	select {
	case msg := <-p.Messages():
		return msg
	case <-time.After(testTimeout):
		t.Fatalf("no message on port %d", p.Address())
		return nil
	}
}

func requireQuiet(t *testing.T, p *port.Port) {
	t.Helper()

	select {
	case msg := <-p.Messages():
		t.Fatalf("unexpected %v on port %d", msg.Tag(), p.Address())
	case <-time.After(quietPeriod):
	}
}
