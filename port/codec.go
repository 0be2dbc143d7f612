// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package port

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/tlv"
)

// Messages cross the C boundary as a single TLV stream.  Type 0 always carries
// the tag; the remaining types are shared by all message kinds and only the
// ones a kind uses are present.
const (
	typeTag       tlv.Type = 0
	typeStatus    tlv.Type = 1
	typeHandle    tlv.Type = 2
	typeBalance   tlv.Type = 3
	typeTxID      tlv.Type = 4
	typeConfirmed tlv.Type = 5
	typeHeight    tlv.Type = 6
	typeTxIDs     tlv.Type = 7
	typeMinHeight tlv.Type = 8
	typeMaxHeight tlv.Type = 9
	typeInitial   tlv.Type = 10
)

// ErrUnknownTag is returned when decoding a stream whose tag is not one of
// the known message kinds.
var ErrUnknownTag = errors.New("unknown message tag")

// Encode serializes msg as a TLV stream.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("cannot encode nil message")
	}

	tag := uint8(msg.Tag())
	records := []tlv.Record{tlv.MakePrimitiveRecord(typeTag, &tag)}

	switch m := msg.(type) {
	case Unit:

	case SubscriptionResult:
		status := uint32(m.Status)
		handle := m.Handle
		records = append(records,
			tlv.MakePrimitiveRecord(typeStatus, &status),
			tlv.MakePrimitiveRecord(typeHandle, &handle),
		)

	case StateChanged:
		balance := uint64(m.Balance)
		records = append(records,
			tlv.MakePrimitiveRecord(typeBalance, &balance),
		)

	case MessageSent:
		txid := [32]byte(m.TxID)
		confirmed := boolByte(m.Confirmed)
		height := uint32(m.Height)
		records = append(records,
			tlv.MakePrimitiveRecord(typeTxID, &txid),
			tlv.MakePrimitiveRecord(typeConfirmed, &confirmed),
			tlv.MakePrimitiveRecord(typeHeight, &height),
		)

	case MessageExpired:
		txid := [32]byte(m.TxID)
		records = append(records,
			tlv.MakePrimitiveRecord(typeTxID, &txid),
		)

	case TransactionsFound:
		txids := make([]byte, 0, len(m.TxIDs)*chainhash.HashSize)
		for i := range m.TxIDs {
			txids = append(txids, m.TxIDs[i][:]...)
		}
		minHeight := uint32(m.MinHeight)
		maxHeight := uint32(m.MaxHeight)
		initial := boolByte(m.Initial)
		records = append(records,
			tlv.MakePrimitiveRecord(typeTxIDs, &txids),
			tlv.MakePrimitiveRecord(typeMinHeight, &minHeight),
			tlv.MakePrimitiveRecord(typeMaxHeight, &maxHeight),
			tlv.MakePrimitiveRecord(typeInitial, &initial),
		)

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownTag, msg.Tag())
	}

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a TLV stream produced by Encode.
func Decode(b []byte) (Message, error) {
	var (
		tag, confirmed, initial    uint8
		status, height, minH, maxH uint32
		handle, balance            uint64
		txid                       [32]byte
		txids                      []byte
	)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeTag, &tag),
		tlv.MakePrimitiveRecord(typeStatus, &status),
		tlv.MakePrimitiveRecord(typeHandle, &handle),
		tlv.MakePrimitiveRecord(typeBalance, &balance),
		tlv.MakePrimitiveRecord(typeTxID, &txid),
		tlv.MakePrimitiveRecord(typeConfirmed, &confirmed),
		tlv.MakePrimitiveRecord(typeHeight, &height),
		tlv.MakePrimitiveRecord(typeTxIDs, &txids),
		tlv.MakePrimitiveRecord(typeMinHeight, &minH),
		tlv.MakePrimitiveRecord(typeMaxHeight, &maxH),
		tlv.MakePrimitiveRecord(typeInitial, &initial),
	)
	if err != nil {
		return nil, err
	}
	if err := stream.Decode(bytes.NewReader(b)); err != nil {
		return nil, err
	}

	switch Tag(tag) {
	case TagUnit:
		return Unit{}, nil

	case TagSubscriptionResult:
		return SubscriptionResult{
			Status: int32(status),
			Handle: handle,
		}, nil

	case TagStateChanged:
		return StateChanged{Balance: int64(balance)}, nil

	case TagMessageSent:
		return MessageSent{
			TxID:      chainhash.Hash(txid),
			Confirmed: confirmed != 0,
			Height:    int32(height),
		}, nil

	case TagMessageExpired:
		return MessageExpired{TxID: chainhash.Hash(txid)}, nil

	case TagTransactionsFound:
		if len(txids)%chainhash.HashSize != 0 {
			return nil, fmt.Errorf("transaction id list has length "+
				"%d, not a multiple of %d", len(txids),
				chainhash.HashSize)
		}
		found := TransactionsFound{
			MinHeight: int32(minH),
			MaxHeight: int32(maxH),
			Initial:   initial != 0,
		}
		for i := 0; i < len(txids); i += chainhash.HashSize {
			var h chainhash.Hash
			copy(h[:], txids[i:i+chainhash.HashSize])
			found.TxIDs = append(found.TxIDs, h)
		}
		return found, nil
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
