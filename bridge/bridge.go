// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bridge exposes runtimes, transports and wallet subscriptions to a
// foreign host through opaque handles.  Every call validates its arguments
// and either completes synchronously or schedules work on a runtime whose
// outcome is posted to a completion port.  A failing call never starts
// background work and never hands out a handle.
package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/walletbridge/executor"
	"github.com/btcsuite/walletbridge/port"
	"github.com/btcsuite/walletbridge/transport"
	"github.com/btcsuite/walletbridge/wallet"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
)

// Transport is a shared ledger connection.  Each subscription holds its own
// share, taken with Acquire and given back with Release.
type Transport interface {
	wallet.Transport

	// Acquire takes a share, returning false once the connection has
	// been shut down.
	Acquire() bool

	// Release gives a share back.
	Release()
}

// Subscription is a live wallet watch.
type Subscription interface {
	// Close stops the watch.  No handler method is called once Close
	// returns.
	Close()
}

// Subscriber starts watching key under contract through t, reporting to h.
type Subscriber func(ctx context.Context, t wallet.Transport,
	key *btcec.PublicKey, contract wallet.ContractType,
	h wallet.Handler) (Subscription, error)

// Dialer builds a transport from its configuration string without any
// network activity.
type Dialer func(url string) (Transport, error)

// Config holds the parameters of a Bridge.  Only Sink is required.
type Config struct {
	// Sink receives every completion port message.
	Sink port.Sink

	// Forwarding selects the forwarded wallet notifications.  The zero
	// value means DefaultForwarding.
	Forwarding Forwarding

	// Subscribe starts wallet watches.  Defaults to wallet.Subscribe.
	Subscribe Subscriber

	// Dial builds transports.  Defaults to a btcd connection.
	Dial Dialer

	// PollInterval is passed to the default Subscribe.
	PollInterval time.Duration

	// Clock drives the timers of created runtimes.
	Clock clock.Clock

	// Metrics receives the bridge metrics.  Defaults to a fresh set.
	Metrics *Metrics
}

// subscription is the object behind a subscription handle.
type subscription struct {
	id        uuid.UUID
	watch     Subscription
	handler   *eventHandler
	transport Transport
}

// Bridge owns every object created through it until the matching delete.
type Bridge struct {
	cfg        Config
	forwarding atomic.Uint32
	metrics    *Metrics

	runtimes      *handleTable[*executor.Runtime]
	transports    *handleTable[Transport]
	subscriptions *handleTable[*subscription]

	// wg tracks teardown that continues after a delete call returns.
	wg sync.WaitGroup
}

// New creates a bridge posting to cfg.Sink.
func New(cfg Config) *Bridge {
	if cfg.Sink == nil {
		cfg.Sink = port.Discard
	}
	if cfg.Forwarding == 0 {
		cfg.Forwarding = DefaultForwarding
	}
	if cfg.Subscribe == nil {
		cfg.Subscribe = walletSubscriber(cfg.PollInterval)
	}
	if cfg.Dial == nil {
		cfg.Dial = dialBtcd
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics("")
	}

	b := &Bridge{
		cfg:           cfg,
		metrics:       cfg.Metrics,
		runtimes:      newHandleTable[*executor.Runtime](),
		transports:    newHandleTable[Transport](),
		subscriptions: newHandleTable[*subscription](),
	}
	b.forwarding.Store(uint32(cfg.Forwarding))

	return b
}

func walletSubscriber(pollInterval time.Duration) Subscriber {
	return func(ctx context.Context, t wallet.Transport,
		key *btcec.PublicKey, contract wallet.ContractType,
		h wallet.Handler) (Subscription, error) {

		w, err := wallet.Subscribe(ctx, t, key, contract, h,
			wallet.Config{PollInterval: pollInterval})
		if err != nil {
			return nil, err
		}

		return w, nil
	}
}

func dialBtcd(url string) (Transport, error) {
	cfg, err := transport.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	conn, err := transport.New(cfg)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// Metrics returns the bridge metrics.
func (b *Bridge) Metrics() *Metrics {
	return b.metrics
}

// Counts is the number of live handles of each kind.
type Counts struct {
	Runtimes      int
	Transports    int
	Subscriptions int
}

// Counts returns the number of live handles of each kind.
func (b *Bridge) Counts() Counts {
	return Counts{
		Runtimes:      b.runtimes.len(),
		Transports:    b.transports.len(),
		Subscriptions: b.subscriptions.len(),
	}
}

// Forwarding returns the notification kinds currently forwarded.
func (b *Bridge) Forwarding() Forwarding {
	return Forwarding(b.forwarding.Load())
}

// SetForwarding changes the forwarded notification kinds for every
// subscription, live or future.  Unknown bits are ignored.
func (b *Bridge) SetForwarding(f Forwarding) {
	if unknown := f &^ ForwardAll; unknown != 0 {
		log.Warnf("Ignoring unknown forwarding bits %v", unknown)
		f &= ForwardAll
	}
	b.forwarding.Store(uint32(f))

	log.Infof("Forwarding %v", f)
}

// CreateRuntime starts a runtime with the given number of worker threads.
func (b *Bridge) CreateRuntime(workerThreads int) (Handle, error) {
	r, err := executor.New(executor.Config{
		WorkerThreads: workerThreads,
		Clock:         b.cfg.Clock,
	})
	if err != nil {
		return NullHandle, b.metrics.call("create_runtime", bridgeError(
			FailedToCreateRuntime, "unable to create runtime", err,
		))
	}

	h := b.runtimes.insert(r)
	b.metrics.handleOpened(kindRuntime)
	log.Infof("Created runtime %d with %d worker(s)", h, workerThreads)

	return h, b.metrics.call("create_runtime", nil)
}

// DeleteRuntime stops a runtime.  Pending waits never post and queued
// subscription requests are abandoned without a result, releasing their
// transport share.  Handles created with it must have been deleted first.
func (b *Bridge) DeleteRuntime(h Handle) error {
	r, ok := b.runtimes.remove(h)
	if !ok {
		return b.metrics.call("delete_runtime", bridgeError(
			RuntimeIsNotInitialized, "runtime not initialized", nil,
		))
	}
	b.metrics.handleClosed(kindRuntime)

	r.Stop()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		r.WaitForShutdown()
		log.Debugf("Runtime %d shut down", h)
	}()

	log.Infof("Deleted runtime %d", h)

	return b.metrics.call("delete_runtime", nil)
}

// Wait posts a Unit message to addr once, no earlier than seconds from now.
// The longest wait, math.MaxUint32 seconds, fits a time.Duration.
func (b *Bridge) Wait(rt Handle, seconds uint32, addr port.Address) error {
	r, ok := b.runtimes.get(rt)
	if !ok {
		return b.metrics.call("wait", bridgeError(
			RuntimeIsNotInitialized, "runtime not initialized", nil,
		))
	}

	d := time.Duration(seconds) * time.Second
	scheduled := r.SpawnAfter(d, func(ctx context.Context) {
		if ctx.Err() != nil {
			return
		}
		b.post(addr, port.Unit{})
	})
	if !scheduled {
		return b.metrics.call("wait", bridgeError(
			RuntimeIsNotInitialized, "runtime stopped", nil,
		))
	}

	log.Debugf("Runtime %d: posting to port %d in %v", rt, addr, d)

	return b.metrics.call("wait", nil)
}

// CreateTransport builds a transport from url.  Nothing is dialed until a
// subscription first uses it.
func (b *Bridge) CreateTransport(url string) (Handle, error) {
	t, err := b.cfg.Dial(url)
	if err != nil {
		return NullHandle, b.metrics.call("create_transport", bridgeError(
			InvalidUrl, "invalid transport url", err,
		))
	}

	h := b.transports.insert(t)
	b.metrics.handleOpened(kindTransport)
	log.Infof("Created transport %d on %s", h, t.Params().Name)

	return h, b.metrics.call("create_transport", nil)
}

// DeleteTransport releases the bridge's share of a transport.  Subscriptions
// built on it keep their own shares.
func (b *Bridge) DeleteTransport(h Handle) error {
	t, ok := b.transports.remove(h)
	if !ok {
		return b.metrics.call("delete_transport", bridgeError(
			TransportIsNotInitialized, "transport not initialized",
			nil,
		))
	}
	b.metrics.handleClosed(kindTransport)

	t.Release()
	log.Infof("Deleted transport %d", h)

	return b.metrics.call("delete_transport", nil)
}

// SubscribeToWallet requests a watch over the address pubKeyHex controls
// under contract.  On a nil error exactly one SubscriptionResult is later
// posted to result: Ok with the new handle, or FailedToSubscribeToWallet with
// NullHandle.  Wallet notifications go to events once the watch is active.
func (b *Bridge) SubscribeToWallet(rt, tr Handle, pubKeyHex string,
	contract ContractType, events, result port.Address) error {

	r, ok := b.runtimes.get(rt)
	if !ok {
		return b.metrics.call("subscribe_to_wallet", bridgeError(
			RuntimeIsNotInitialized, "runtime not initialized", nil,
		))
	}
	t, ok := b.transports.get(tr)
	if !ok {
		return b.metrics.call("subscribe_to_wallet", bridgeError(
			TransportIsNotInitialized, "transport not initialized",
			nil,
		))
	}

	key, err := wallet.ParsePublicKey(pubKeyHex)
	if err != nil {
		return b.metrics.call("subscribe_to_wallet", bridgeError(
			InvalidPublicKey, "invalid public key", err,
		))
	}

	variant, ok := contract.Contract()
	if !ok {
		return b.metrics.call("subscribe_to_wallet", bridgeError(
			FailedToSubscribeToWallet, contract.String(), nil,
		))
	}

	if !t.Acquire() {
		return b.metrics.call("subscribe_to_wallet", bridgeError(
			TransportIsNotInitialized, "transport shut down", nil,
		))
	}

	id := uuid.New()
	handler := newEventHandler(b, id, events)

	spawned := r.Spawn(func(ctx context.Context) {
		b.subscribe(ctx, id, t, key, variant, handler, result)
	})
	if !spawned {
		t.Release()
		return b.metrics.call("subscribe_to_wallet", bridgeError(
			RuntimeIsNotInitialized, "runtime stopped", nil,
		))
	}

	log.Infof("Subscription %v requested: %v wallet %x on runtime %d, "+
		"transport %d", id, contract, key.SerializeCompressed(), rt, tr)

	return b.metrics.call("subscribe_to_wallet", nil)
}

// subscribe runs on a runtime worker and posts the outcome of a request.
func (b *Bridge) subscribe(ctx context.Context, id uuid.UUID, t Transport,
	key *btcec.PublicKey, contract wallet.ContractType,
	handler *eventHandler, result port.Address) {

	// A runtime deleted before or during the request abandons it
	// without posting a result.
	if ctx.Err() != nil {
		log.Debugf("Subscription %v abandoned: runtime stopped", id)
		handler.close()
		t.Release()
		return
	}

	watch, err := b.cfg.Subscribe(ctx, t, key, contract, handler)
	if ctx.Err() != nil {
		log.Debugf("Subscription %v abandoned: runtime stopped", id)
		handler.close()
		if watch != nil {
			watch.Close()
		}
		t.Release()
		return
	}
	if err != nil {
		log.Errorf("Subscription %v failed: %v", id, err)

		handler.close()
		t.Release()

		b.metrics.subscribed(FailedToSubscribeToWallet)
		b.post(result, port.SubscriptionResult{
			Status: int32(FailedToSubscribeToWallet),
		})
		return
	}

	h := b.subscriptions.insert(&subscription{
		id:        id,
		watch:     watch,
		handler:   handler,
		transport: t,
	})
	b.metrics.handleOpened(kindSubscription)
	log.Infof("Subscription %v active as handle %d", id, h)

	b.metrics.subscribed(Ok)
	b.post(result, port.SubscriptionResult{
		Status: int32(Ok),
		Handle: uint64(h),
	})
}

// DeleteSubscription stops a subscription.  No message is posted to its event
// port once DeleteSubscription returns.  The watch itself and its transport
// share are torn down in the background.
func (b *Bridge) DeleteSubscription(h Handle) error {
	s, ok := b.subscriptions.remove(h)
	if !ok {
		return b.metrics.call("delete_subscription", bridgeError(
			SubscriptionIsNotInitialized,
			"subscription not initialized", nil,
		))
	}
	b.metrics.handleClosed(kindSubscription)

	s.handler.close()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		s.watch.Close()
		s.transport.Release()
		log.Debugf("Subscription %v torn down", s.id)
	}()

	log.Infof("Deleted subscription %d (%v)", h, s.id)

	return b.metrics.call("delete_subscription", nil)
}

// Close deletes every live subscription, transport and runtime, in that
// order, and waits for their background teardown.
func (b *Bridge) Close() {
	for _, h := range b.subscriptions.handles() {
		_ = b.DeleteSubscription(h)
	}
	for _, h := range b.transports.handles() {
		_ = b.DeleteTransport(h)
	}
	for _, h := range b.runtimes.handles() {
		_ = b.DeleteRuntime(h)
	}

	b.wg.Wait()
}

// WaitForShutdown blocks until the teardown started by earlier delete calls
// has finished.
func (b *Bridge) WaitForShutdown() {
	b.wg.Wait()
}

// post delivers msg to addr.  The sink gives no guarantee, so the outcome is
// only logged and counted.
func (b *Bridge) post(addr port.Address, msg port.Message) {
	delivered := b.cfg.Sink.Post(addr, msg)
	b.metrics.posted(msg.Tag(), delivered)

	if !delivered {
		log.Debugf("Port %d did not accept %v", addr, msg.Tag())
	}
}
