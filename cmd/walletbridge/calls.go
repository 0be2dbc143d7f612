// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"sync"
	"sync/atomic"

	"github.com/btcsuite/walletbridge/bridge"
	"github.com/btcsuite/walletbridge/port"
)

// hostSend hands an encoded message to the host post function fn.
type hostSend func(fn *[0]byte, addr port.Address, b []byte) bool

// library holds the state behind the exported calls.  Pointer arguments
// arrive here already converted from their C types; nil stands for a null
// pointer.
type library struct {
	send hostSend

	// postFn is the host post function stored by register.
	postFn   atomic.Pointer[[0]byte]
	initOnce sync.Once

	bridge *bridge.Bridge
}

func newLibrary(send hostSend) *library {
	l := &library{send: send}
	l.bridge = bridge.New(bridge.Config{
		Sink: port.SinkFunc(l.post),
	})

	return l
}

// post encodes msg and hands it to the host.
func (l *library) post(addr port.Address, msg port.Message) bool {
	fn := l.postFn.Load()
	if fn == nil {
		log.Warnf("Dropping %v for port %d: wb_init not called",
			msg.Tag(), addr)
		return false
	}

	b, err := port.Encode(msg)
	if err != nil {
		log.Errorf("Unable to encode %v: %v", msg.Tag(), err)
		return false
	}

	return l.send(fn, addr, b)
}

// register stores the host post function.  Only the first non-nil function
// is kept; it reports whether fn was registered.
func (l *library) register(fn *[0]byte) bool {
	if fn == nil {
		log.Errorf("wb_init called with a null post function")
		return false
	}

	registered := false
	l.initOnce.Do(func() {
		l.postFn.Store(fn)
		registered = true
	})
	if !registered {
		log.Warnf("wb_init called more than once, keeping the first " +
			"post function")
		return false
	}

	log.Infof("Wallet bridge initialized")

	return true
}

func (l *library) createRuntime(workers uint32,
	out *uint64) bridge.StatusCode {

	if out == nil {
		log.Errorf("wb_create_runtime called with a null handle " +
			"pointer")
		return bridge.FailedToCreateRuntime
	}
	*out = uint64(bridge.NullHandle)

	h, err := l.bridge.CreateRuntime(int(workers))
	if err != nil {
		log.Errorf("wb_create_runtime: %v", err)
		return bridge.Status(err, bridge.FailedToCreateRuntime)
	}
	*out = uint64(h)

	return bridge.Ok
}

func (l *library) createTransport(url *string,
	out *uint64) bridge.StatusCode {

	if out == nil {
		log.Errorf("wb_create_transport called with a null handle " +
			"pointer")
		return bridge.InvalidUrl
	}
	*out = uint64(bridge.NullHandle)

	if url == nil {
		log.Errorf("wb_create_transport called with a null URL")
		return bridge.InvalidUrl
	}

	h, err := l.bridge.CreateTransport(*url)
	if err != nil {
		log.Errorf("wb_create_transport: %v", err)
		return bridge.Status(err, bridge.InvalidUrl)
	}
	*out = uint64(h)

	return bridge.Ok
}

func (l *library) subscribe(rt, tr uint64, pubKey *string, contract int32,
	eventPort, resultPort int64) bridge.StatusCode {

	if pubKey == nil {
		log.Errorf("wb_subscribe_to_wallet called with a null public " +
			"key")
		return bridge.InvalidPublicKey
	}

	err := l.bridge.SubscribeToWallet(
		bridge.Handle(rt), bridge.Handle(tr), *pubKey,
		bridge.ContractType(contract), port.Address(eventPort),
		port.Address(resultPort),
	)
	if err != nil {
		log.Errorf("wb_subscribe_to_wallet: %v", err)
	}

	return bridge.Status(err, bridge.FailedToSubscribeToWallet)
}
