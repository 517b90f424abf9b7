// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

import (
	"encoding/binary"
	"fmt"
)

const (
	CommandAPDU byte = 0x05
	CommandAck  byte = 0x06

	// MinChunkSize is the smallest chunk that carries a header and payload.
	MinChunkSize = 8

	firstHeaderSize = 5
	nextHeaderSize  = 3
)

// Chunk is one physical fragment of a logical message.
//
// Wire layout, big-endian:
//
//	first: [command][seq hi][seq lo][total hi][total lo][payload...]
//	other: [command][seq hi][seq lo][payload...]
type Chunk struct {
	Command  byte
	Sequence uint16
	// First marks the chunk that carries Total.
	First bool
	// Total is the full message length, only meaningful when First is set.
	Total   uint16
	Payload []byte
}

func (c Chunk) headerSize() int {
	if c.First {
		return firstHeaderSize
	}
	return nextHeaderSize
}

// Bytes encodes the chunk in its wire layout.
func (c Chunk) Bytes() []byte {
	out := make([]byte, c.headerSize(), c.headerSize()+len(c.Payload))
	out[0] = c.Command
	binary.BigEndian.PutUint16(out[1:3], c.Sequence)
	if c.First {
		binary.BigEndian.PutUint16(out[3:5], c.Total)
	}
	return append(out, c.Payload...)
}

// ParseChunk decodes a raw chunk. first selects the header layout; the payload
// aliases raw.
func ParseChunk(raw []byte, first bool) (Chunk, error) {
	c := Chunk{First: first}
	if len(raw) < c.headerSize() {
		return Chunk{}, fmt.Errorf("%w: %d bytes", ErrTruncatedChunk, len(raw))
	}
	c.Command = raw[0]
	c.Sequence = binary.BigEndian.Uint16(raw[1:3])
	if first {
		c.Total = binary.BigEndian.Uint16(raw[3:5])
	}
	c.Payload = raw[c.headerSize():]
	return c, nil
}
