// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bridge

import (
	"context"
	"encoding/hex"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/walletbridge/port"
	"github.com/btcsuite/walletbridge/wallet"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestCreateRuntime checks worker count validation and that runtime handles
// are never reused.
func TestCreateRuntime(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)

	rt, err := h.bridge.CreateRuntime(0)
	require.Equal(t, FailedToCreateRuntime, Status(err, Ok))
	require.Equal(t, NullHandle, rt)

	seen := make(map[Handle]struct{})
	for i := 0; i < 5; i++ {
		rt, err := h.bridge.CreateRuntime(1)
		require.NoError(t, err)
		require.NotEqual(t, NullHandle, rt)
		require.NotContains(t, seen, rt)
		seen[rt] = struct{}{}

		require.NoError(t, h.bridge.DeleteRuntime(rt))
	}

	require.Zero(t, testutil.ToFloat64(
		h.bridge.Metrics().liveHandles.WithLabelValues(kindRuntime),
	))
}

// TestDeleteUninitialized checks that deleting null or stale handles reports
// the matching status.
func TestDeleteUninitialized(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)

	staleRuntime := h.runtime()
	require.NoError(t, h.bridge.DeleteRuntime(staleRuntime))
	staleTransport := h.connection()
	require.NoError(t, h.bridge.DeleteTransport(staleTransport))

	testCases := []struct {
		name   string
		delete func() error
		code   StatusCode
	}{{
		name: "null runtime",
		delete: func() error {
			return h.bridge.DeleteRuntime(NullHandle)
		},
		code: RuntimeIsNotInitialized,
	}, {
		name: "stale runtime",
		delete: func() error {
			return h.bridge.DeleteRuntime(staleRuntime)
		},
		code: RuntimeIsNotInitialized,
	}, {
		name: "null transport",
		delete: func() error {
			return h.bridge.DeleteTransport(NullHandle)
		},
		code: TransportIsNotInitialized,
	}, {
		name: "stale transport",
		delete: func() error {
			return h.bridge.DeleteTransport(staleTransport)
		},
		code: TransportIsNotInitialized,
	}, {
		name: "null subscription",
		delete: func() error {
			return h.bridge.DeleteSubscription(NullHandle)
		},
		code: SubscriptionIsNotInitialized,
	}, {
		name: "unknown subscription",
		delete: func() error {
			return h.bridge.DeleteSubscription(42)
		},
		code: SubscriptionIsNotInitialized,
	}}

	for _, tc := range testCases {
		err := tc.delete()
		require.Equal(t, tc.code, Status(err, Ok), tc.name)
	}
}

// TestWait checks that a wait fires once, no earlier than requested.
func TestWait(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	testClock := clock.NewTestClock(start)
	ports := port.NewRegistry()
	b := New(Config{Sink: ports, Clock: testClock})
	t.Cleanup(b.Close)

	rt, err := b.CreateRuntime(1)
	require.NoError(t, err)

	p := ports.Open()
	t.Cleanup(p.Close)

	require.NoError(t, b.Wait(rt, 3, p.Address()))
	requireQuiet(t, p)

	testClock.SetTime(start.Add(2 * time.Second))
	requireQuiet(t, p)

	testClock.SetTime(start.Add(3 * time.Second))
	require.Equal(t, port.Unit{}, receive(t, p))

	testClock.SetTime(start.Add(time.Hour))
	requireQuiet(t, p)

	err = b.Wait(NullHandle, 1, p.Address())
	require.Equal(t, RuntimeIsNotInitialized, Status(err, Ok))
}

// TestWaitLongest checks that the longest possible wait does not fire early.
func TestWaitLongest(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	testClock := clock.NewTestClock(start)
	ports := port.NewRegistry()
	b := New(Config{Sink: ports, Clock: testClock})
	t.Cleanup(b.Close)

	rt, err := b.CreateRuntime(1)
	require.NoError(t, err)

	p := ports.Open()
	t.Cleanup(p.Close)

	require.NoError(t, b.Wait(rt, math.MaxUint32, p.Address()))
	requireQuiet(t, p)

	longest := time.Duration(math.MaxUint32) * time.Second
	require.Positive(t, longest)

	testClock.SetTime(start.Add(longest - time.Second))
	requireQuiet(t, p)

	testClock.SetTime(start.Add(longest))
	require.Equal(t, port.Unit{}, receive(t, p))
}

// TestWaitDroppedByDelete checks that deleting a runtime cancels its pending
// waits.
func TestWaitDroppedByDelete(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	testClock := clock.NewTestClock(start)
	ports := port.NewRegistry()
	b := New(Config{Sink: ports, Clock: testClock})
	t.Cleanup(b.Close)

	rt, err := b.CreateRuntime(1)
	require.NoError(t, err)

	p := ports.Open()
	t.Cleanup(p.Close)

	require.NoError(t, b.Wait(rt, 1, p.Address()))
	require.NoError(t, b.DeleteRuntime(rt))
	b.WaitForShutdown()

	testClock.SetTime(start.Add(time.Minute))
	requireQuiet(t, p)
}

// TestSubscribeAbandonedByDelete checks that deleting a runtime abandons both
// an in-flight and a queued subscription request without posting a result,
// and that their transport shares are given back.
func TestSubscribeAbandonedByDelete(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 2)
	subscribe := func(ctx context.Context, _ wallet.Transport,
		_ *btcec.PublicKey, _ wallet.ContractType,
		_ wallet.Handler) (Subscription, error) {

		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}

	tr := newFakeTransport()
	ports := port.NewRegistry()
	b := New(Config{
		Sink:      ports,
		Subscribe: subscribe,
		Dial: func(string) (Transport, error) {
			return tr, nil
		},
	})
	t.Cleanup(b.Close)

	rt, err := b.CreateRuntime(1)
	require.NoError(t, err)
	trh, err := b.CreateTransport("ws://127.0.0.1")
	require.NoError(t, err)

	results := []*port.Port{ports.Open(), ports.Open()}
	for _, result := range results {
		t.Cleanup(result.Close)
		require.NoError(t, b.SubscribeToWallet(
			rt, trh, testKey, WalletV3, result.Address(),
			result.Address(),
		))
	}
	require.Equal(t, 3, tr.Refs())

	select {
	case <-started:
	case <-time.After(testTimeout):
		t.Fatal("subscription request not started")
	}

	require.NoError(t, b.DeleteRuntime(rt))
	b.WaitForShutdown()

	for _, result := range results {
		requireQuiet(t, result)
	}
	require.Equal(t, 1, tr.Refs())
	require.Zero(t, b.Counts().Subscriptions)
}

// TestCreateTransportInvalid checks that malformed configuration strings are
// rejected without a handle.
func TestCreateTransportInvalid(t *testing.T) {
	t.Parallel()

	b := New(Config{})
	t.Cleanup(b.Close)

	for _, url := range []string{
		"",
		"not a url",
		"ftp://127.0.0.1",
		"ws://",
		"ws://127.0.0.1/path",
		"ws://127.0.0.1?net=moonnet",
		"ws://127.0.0.1?reconnect=-1",
		"ws://127.0.0.1?bogus=1",
	} {
		tr, err := b.CreateTransport(url)
		require.Equal(t, InvalidUrl, Status(err, Ok), url)
		require.Equal(t, NullHandle, tr, url)
	}

	require.Zero(t, b.transports.len())
}

// TestCreateTransport checks that a valid configuration builds a btcd
// connection without dialing.
func TestCreateTransport(t *testing.T) {
	t.Parallel()

	b := New(Config{})
	t.Cleanup(b.Close)

	tr, err := b.CreateTransport("ws://user:pass@127.0.0.1:1?net=regtest")
	require.NoError(t, err)
	require.NotEqual(t, NullHandle, tr)

	conn, ok := b.transports.get(tr)
	require.True(t, ok)
	require.Equal(t, "regtest", conn.Params().Name)

	require.NoError(t, b.DeleteTransport(tr))
	b.WaitForShutdown()
}

// TestSubscribeSynchronousFailures checks the calls rejected before any work
// is scheduled.  None of them posts a result.
func TestSubscribeSynchronousFailures(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	rt := h.runtime()
	tr := h.connection()
	transport := h.transport

	testCases := []struct {
		name     string
		rt, tr   Handle
		key      string
		contract ContractType
		code     StatusCode
	}{{
		name:     "null runtime",
		rt:       NullHandle,
		tr:       tr,
		key:      testKey,
		contract: SafeMultisig,
		code:     RuntimeIsNotInitialized,
	}, {
		name:     "null transport",
		rt:       rt,
		tr:       NullHandle,
		key:      testKey,
		contract: SafeMultisig,
		code:     TransportIsNotInitialized,
	}, {
		name:     "bad hex",
		rt:       rt,
		tr:       tr,
		key:      "zz" + testKey[2:],
		contract: WalletV3,
		code:     InvalidPublicKey,
	}, {
		name:     "bad prefix",
		rt:       rt,
		tr:       tr,
		key:      "04" + testKey[2:],
		contract: WalletV3,
		code:     InvalidPublicKey,
	}, {
		name: "x beyond field",
		rt:   rt,
		tr:   tr,
		key: "02ffffffffffffffffffffffffffffffff" +
			"fffffffffffffffffffffffefffffc2f",
		contract: WalletV3,
		code:     InvalidPublicKey,
	}, {
		name:     "empty key",
		rt:       rt,
		tr:       tr,
		key:      "",
		contract: Surf,
		code:     InvalidPublicKey,
	}, {
		name:     "contract out of range",
		rt:       rt,
		tr:       tr,
		key:      testKey,
		contract: ContractType(17),
		code:     FailedToSubscribeToWallet,
	}}

	result := h.open()
	events := h.open()
	for _, tc := range testCases {
		err := h.bridge.SubscribeToWallet(
			tc.rt, tc.tr, tc.key, tc.contract,
			events.Address(), result.Address(),
		)
		require.Equal(t, tc.code, Status(err, Ok), tc.name)
	}

	requireQuiet(t, result)
	require.Empty(t, h.subscriber.calls)
	require.Equal(t, 1, transport.Refs())
}

// TestSubscribeResult checks that each accepted request posts exactly one
// result.
func TestSubscribeResult(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t, nil)
		res := h.subscribe(SafeMultisig, h.open())

		require.Equal(t, int32(Ok), res.Status)
		require.NotZero(t, res.Handle)
		require.Equal(t, 2, h.transport.Refs())
		require.Equal(t, 1.0, testutil.ToFloat64(
			h.bridge.Metrics().subscriptions.WithLabelValues(
				Ok.String(),
			),
		))
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t, errSubscribe)
		res := h.subscribe(WalletV3, h.open())

		require.Equal(t, int32(FailedToSubscribeToWallet), res.Status)
		require.Zero(t, res.Handle)
		require.Equal(t, 1, h.transport.Refs())
		require.Zero(t, h.bridge.subscriptions.len())
	})
}

// TestSubscribeContractMapping checks that every host contract type reaches
// the wallet as its own variant.
func TestSubscribeContractMapping(t *testing.T) {
	t.Parallel()

	want := map[ContractType]wallet.ContractType{
		SafeMultisig: wallet.Multisig{
			Type: wallet.SafeMultisigWallet,
		},
		SafeMultisig24h: wallet.Multisig{
			Type: wallet.SafeMultisigWallet24h,
		},
		SetcodeMultisig: wallet.Multisig{
			Type: wallet.SetcodeMultisigWallet,
		},
		Surf:     wallet.Multisig{Type: wallet.SurfWallet},
		WalletV3: wallet.WalletV3{},
	}
	require.Len(t, want, len(ContractTypes))

	h := newTestHarness(t, nil)
	for _, c := range ContractTypes {
		res := h.subscribe(c, h.open())
		require.Equal(t, int32(Ok), res.Status)

		call := h.subscriber.next(t)
		require.Equal(t, want[c], call.contract, c.String())
		require.Equal(t, testKey,
			hex.EncodeToString(call.key.SerializeCompressed()))
	}
}

// TestDeleteSubscriptionStopsEvents checks that nothing reaches the event
// port once DeleteSubscription has returned.
func TestDeleteSubscriptionStopsEvents(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	events := h.open()
	res := h.subscribe(SafeMultisig24h, events)
	require.Equal(t, int32(Ok), res.Status)
	call := h.subscriber.next(t)
	transport := h.transport

	call.handler.OnStateChanged(wallet.AccountState{Balance: 5000})
	require.Equal(t, port.StateChanged{Balance: 5000}, receive(t, events))

	require.NoError(t, h.bridge.DeleteSubscription(Handle(res.Handle)))

	call.handler.OnStateChanged(wallet.AccountState{Balance: 1})
	h.bridge.SetForwarding(ForwardAll)
	call.handler.OnMessageExpired(wallet.PendingTransaction{})
	requireQuiet(t, events)

	h.bridge.WaitForShutdown()
	select {
	case <-call.watch.closed:
	default:
		t.Fatal("watch not closed")
	}
	require.Equal(t, 1, transport.Refs())

	err := h.bridge.DeleteSubscription(Handle(res.Handle))
	require.Equal(t, SubscriptionIsNotInitialized, Status(err, Ok))
}

// TestDeleteSubscriptionConcurrentEvents checks that events emitted while
// DeleteSubscription runs are either posted before it returns or dropped.
func TestDeleteSubscriptionConcurrentEvents(t *testing.T) {
	t.Parallel()

	const emitters = 4

	h := newTestHarness(t, nil)
	h.bridge.SetForwarding(ForwardAll)
	events := h.open()
	res := h.subscribe(Surf, events)
	require.Equal(t, int32(Ok), res.Status)
	handler := h.subscriber.next(t).handler

	var (
		emitted atomic.Int64
		stop    = make(chan struct{})
		done    = make(chan struct{}, emitters)
	)
	for i := 0; i < emitters; i++ {
		go func() {
			defer func() { done <- struct{}{} }()

			for {
				select {
				case <-stop:
					return
				default:
				}

				handler.OnStateChanged(wallet.AccountState{
					Balance: btcutil.Amount(emitted.Add(1)),
				})
				handler.OnMessageExpired(
					wallet.PendingTransaction{},
				)
			}
		}()
	}
	defer func() {
		close(stop)
		for i := 0; i < emitters; i++ {
			<-done
		}
	}()

	// Let some events through before deleting.
	receive(t, events)

	require.NoError(t, h.bridge.DeleteSubscription(Handle(res.Handle)))
	before := emitted.Load()

	// Everything queued ahead of the marker was posted before the delete
	// returned.
	require.True(t, h.ports.Post(events.Address(), port.Unit{}))
	for receive(t, events).Tag() != port.TagUnit {
	}

	// Keep emitting past the delete.
	require.Eventually(t, func() bool {
		return emitted.Load() > before+100
	}, testTimeout, time.Millisecond)
	requireQuiet(t, events)
}

// TestForwarding checks which notifications reach the event port for each
// forwarding setting.
func TestForwarding(t *testing.T) {
	t.Parallel()

	txid := chainhash.Hash{1}
	pending := wallet.PendingTransaction{ID: txid, ExpireAt: 120}
	found := []wallet.Transaction{
		{ID: chainhash.Hash{2}, Height: 100, Delta: 10},
		{ID: chainhash.Hash{3}, Height: 105, Delta: -3},
	}
	batch := wallet.TransactionsBatchInfo{
		MinHeight: 100,
		MaxHeight: 105,
		Kind:      wallet.BatchNew,
	}

	notify := func(handler wallet.Handler) {
		handler.OnStateChanged(wallet.AccountState{
			Balance: btcutil.Amount(7),
		})
		handler.OnMessageSent(pending, fn.Some(wallet.Transaction{
			ID:     txid,
			Height: 110,
		}))
		handler.OnMessageSent(pending, fn.None[wallet.Transaction]())
		handler.OnMessageExpired(pending)
		handler.OnTransactionsFound(found, batch)
	}

	all := []port.Message{
		port.StateChanged{Balance: 7},
		port.MessageSent{TxID: txid, Confirmed: true, Height: 110},
		port.MessageSent{TxID: txid, Height: -1},
		port.MessageExpired{TxID: txid},
		port.TransactionsFound{
			TxIDs:     []chainhash.Hash{{2}, {3}},
			MinHeight: 100,
			MaxHeight: 105,
		},
	}

	testCases := []struct {
		name       string
		forwarding Forwarding
		want       []port.Message
	}{{
		name:       "default",
		forwarding: DefaultForwarding,
		want:       all[:1],
	}, {
		name:       "all",
		forwarding: ForwardAll,
		want:       all,
	}, {
		name:       "sent and expired",
		forwarding: ForwardMessageSent | ForwardMessageExpired,
		want:       all[1:4],
	}, {
		name:       "found",
		forwarding: ForwardTransactionsFound,
		want:       all[4:],
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHarness(t, nil)
			h.bridge.SetForwarding(tc.forwarding)
			require.Equal(t, tc.forwarding, h.bridge.Forwarding())

			events := h.open()
			res := h.subscribe(Surf, events)
			require.Equal(t, int32(Ok), res.Status)

			notify(h.subscriber.next(t).handler)
			for _, want := range tc.want {
				require.Equal(t, want, receive(t, events))
			}
			requireQuiet(t, events)
		})
	}
}

// TestSetForwardingUnknownBits checks that bits outside the known kinds are
// ignored.
func TestSetForwardingUnknownBits(t *testing.T) {
	t.Parallel()

	b := New(Config{})
	require.Equal(t, DefaultForwarding, b.Forwarding())

	b.SetForwarding(ForwardMessageExpired | 1<<10)
	require.Equal(t, ForwardMessageExpired, b.Forwarding())
}

// TestClose checks that Close deletes every live handle.
func TestClose(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, nil)
	res := h.subscribe(WalletV3, h.open())
	require.Equal(t, int32(Ok), res.Status)
	call := h.subscriber.next(t)
	transport := h.transport

	h.bridge.Close()

	require.Equal(t, Counts{}, h.bridge.Counts())
	require.Zero(t, transport.Refs())

	select {
	case <-call.watch.closed:
	default:
		t.Fatal("watch not closed")
	}

	for _, kind := range []string{
		kindRuntime, kindTransport, kindSubscription,
	} {
		require.Zero(t, testutil.ToFloat64(
			h.bridge.Metrics().liveHandles.WithLabelValues(kind),
		), kind)
	}
}

// stallingTransport behaves like an unreachable backend once stalled: every
// BestBlock call blocks until its context is done.
type stallingTransport struct {
	*fakeTransport

	stall   atomic.Bool
	stalled chan struct{}
	blocks  chan wallet.BlockStamp
}

func (s *stallingTransport) BestBlock(ctx context.Context) (int32, error) {
	if !s.stall.Load() {
		return 0, nil
	}

	s.stalled <- struct{}{}
	<-ctx.Done()

	return 0, ctx.Err()
}

func (s *stallingTransport) SubscribeBlocks() (<-chan wallet.BlockStamp,
	func()) {

	return s.blocks, func() {}
}

// TestCloseWithStalledBackend checks that Close returns while a live wallet
// is refreshing and a subscription request is loading against a backend that
// never answers.
func TestCloseWithStalledBackend(t *testing.T) {
	t.Parallel()

	tr := &stallingTransport{
		fakeTransport: newFakeTransport(),
		stalled:       make(chan struct{}, 4),
		blocks:        make(chan wallet.BlockStamp, 1),
	}
	ports := port.NewRegistry()
	b := New(Config{
		Sink: ports,
		Dial: func(string) (Transport, error) {
			return tr, nil
		},
		PollInterval: time.Hour,
	})

	rt, err := b.CreateRuntime(2)
	require.NoError(t, err)
	trh, err := b.CreateTransport("ws://127.0.0.1")
	require.NoError(t, err)

	events, result, pending := ports.Open(), ports.Open(), ports.Open()
	t.Cleanup(events.Close)
	t.Cleanup(result.Close)
	t.Cleanup(pending.Close)

	require.NoError(t, b.SubscribeToWallet(
		rt, trh, testKey, WalletV3, events.Address(), result.Address(),
	))
	res, ok := receive(t, result).(port.SubscriptionResult)
	require.True(t, ok)
	require.Equal(t, int32(Ok), res.Status)

	// Stall the live wallet's next refresh.
	tr.stall.Store(true)
	tr.blocks <- wallet.BlockStamp{Height: 1}
	waitStalled(t, tr.stalled)

	// Stall a second request in its initial load.
	require.NoError(t, b.SubscribeToWallet(
		rt, trh, testKey, SafeMultisig, pending.Address(),
		pending.Address(),
	))
	waitStalled(t, tr.stalled)

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(testTimeout):
		t.Fatal("Close blocked on a stalled backend")
	}

	require.Zero(t, tr.Refs())
	require.Equal(t, Counts{}, b.Counts())
	requireQuiet(t, pending)
}

func waitStalled(t *testing.T, stalled <-chan struct{}) {
	t.Helper()

	select {
	case <-stalled:
	case <-time.After(testTimeout):
		t.Fatal("backend call not made")
	}
}
