// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package port implements completion ports: integer-addressed sinks that the
// native side posts tagged result values to.  A post is fire-and-forget.  The
// native side never learns whether the host received the value, and a slow or
// vanished receiver never blocks the poster.
package port

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Address identifies a sink in the host's own registry.  The bridge never
// checks that an address is still live.
type Address int64

// Tag identifies the kind of a posted message.
type Tag uint8

const (
	// TagUnit marks a value-less completion, e.g. an elapsed wait.
	TagUnit Tag = iota

	// TagSubscriptionResult marks the single outcome of a subscription
	// request.
	TagSubscriptionResult

	// TagStateChanged marks an account state change of a live wallet.
	TagStateChanged

	// TagMessageSent marks a pending outgoing transaction that left the
	// pending set because it confirmed.
	TagMessageSent

	// TagMessageExpired marks a pending outgoing transaction that was not
	// confirmed before its expiry height.
	TagMessageExpired

	// TagTransactionsFound marks a batch of transactions touching the
	// watched address.
	TagTransactionsFound
)

var tagStrings = map[Tag]string{
	TagUnit:               "Unit",
	TagSubscriptionResult: "SubscriptionResult",
	TagStateChanged:       "StateChanged",
	TagMessageSent:        "MessageSent",
	TagMessageExpired:     "MessageExpired",
	TagTransactionsFound:  "TransactionsFound",
}

// String returns the tag as a human-readable name.
func (t Tag) String() string {
	if s, ok := tagStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Tag (%d)", uint8(t))
}

// Message is a tagged value posted to a port.
type Message interface {
	Tag() Tag
}

// Unit is posted when a wait elapses.
type Unit struct{}

// SubscriptionResult is the single message posted for every accepted
// subscription request.  Handle is zero whenever Status is not zero.
type SubscriptionResult struct {
	Status int32
	Handle uint64
}

// StateChanged carries the new balance, in satoshis, of a watched wallet.
type StateChanged struct {
	Balance int64
}

// MessageSent reports a tracked outgoing transaction that confirmed.
type MessageSent struct {
	TxID      chainhash.Hash
	Confirmed bool
	Height    int32
}

// MessageExpired reports a tracked outgoing transaction that expired.
type MessageExpired struct {
	TxID chainhash.Hash
}

// TransactionsFound reports transactions newly seen for a watched wallet.
type TransactionsFound struct {
	TxIDs     []chainhash.Hash
	MinHeight int32
	MaxHeight int32
	Initial   bool
}

// Tag implements Message.
func (Unit) Tag() Tag { return TagUnit }

// Tag implements Message.
func (SubscriptionResult) Tag() Tag { return TagSubscriptionResult }

// Tag implements Message.
func (StateChanged) Tag() Tag { return TagStateChanged }

// Tag implements Message.
func (MessageSent) Tag() Tag { return TagMessageSent }

// Tag implements Message.
func (MessageExpired) Tag() Tag { return TagMessageExpired }

// Tag implements Message.
func (TransactionsFound) Tag() Tag { return TagTransactionsFound }

// Sink delivers messages to host-side ports.  Post must not block on the
// receiver and reports only whether the message was handed off.
type Sink interface {
	Post(addr Address, msg Message) bool
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(addr Address, msg Message) bool

// Post implements Sink.
func (f SinkFunc) Post(addr Address, msg Message) bool {
	return f(addr, msg)
}

// Discard is a Sink that drops every message.  It stands in for the host
// sink until one is registered.
var Discard Sink = SinkFunc(func(addr Address, msg Message) bool {
	log.Debugf("Dropping %v for port %d: no sink registered",
		msg.Tag(), addr)
	return false
})
