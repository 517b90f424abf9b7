// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

import (
	"bytes"
	"fmt"
	"math"
)

// Split turns message into an ordered sequence of chunks no larger than
// chunkSize. Payloads alias message. An empty message yields no chunks.
// Messages longer than 0xFFFF bytes fail with ErrMessageTooLong, as the total
// length field of the first chunk is 16 bits.
func Split(command byte, message []byte, chunkSize int) ([]Chunk, error) {
	if chunkSize < MinChunkSize {
		return nil, fmt.Errorf("%w: %d, must be at least %d", ErrInvalidChunkSize, chunkSize, MinChunkSize)
	}
	if len(message) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(message))
	}

	var chunks []Chunk
	offset := 0
	// seq wraps silently past 0xFFFF; the length cap above keeps it from happening.
	for seq := uint16(0); offset < len(message); seq++ {
		chunk := Chunk{Command: command, Sequence: seq, First: offset == 0}
		if chunk.First {
			// first packet has the total transport length
			chunk.Total = uint16(len(message))
		}
		n := min(chunkSize-chunk.headerSize(), len(message)-offset)
		chunk.Payload = message[offset : offset+n]
		offset += n
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// Reassembler accumulates chunks of one message in arrival order. After any
// error it is spent and keeps returning that error.
type Reassembler struct {
	command   byte
	next      uint16
	started   bool
	remaining int
	buffer    []byte
	err       error
}

func NewReassembler(command byte) *Reassembler {
	return &Reassembler{command: command}
}

// Add validates and appends the next chunk.
func (r *Reassembler) Add(chunk Chunk) error {
	if r.err != nil {
		return r.err
	}
	r.err = r.add(chunk)
	return r.err
}

func (r *Reassembler) add(chunk Chunk) error {
	if chunk.Command != r.command {
		return fmt.Errorf("%w: expected 0x%02x, observed 0x%02x", ErrUnexpectedCommand, r.command, chunk.Command)
	}
	if chunk.Sequence != r.next {
		return &SequenceError{Expected: r.next, Observed: chunk.Sequence}
	}
	r.next++

	if !r.started {
		if len(chunk.Payload) > int(chunk.Total) {
			return fmt.Errorf("%w: %d > %d", ErrOversizedFirstChunk, len(chunk.Payload), chunk.Total)
		}
		r.started = true
		r.remaining = int(chunk.Total)
		r.buffer = make([]byte, 0, chunk.Total)
	} else if len(chunk.Payload) > r.remaining {
		return fmt.Errorf("%w: %d > %d", ErrOversizedChunk, len(chunk.Payload), r.remaining)
	}

	r.buffer = append(r.buffer, chunk.Payload...)
	r.remaining -= len(chunk.Payload)
	return nil
}

// Remaining is the number of bytes still expected, or -1 before the first chunk.
func (r *Reassembler) Remaining() int {
	if !r.started {
		return -1
	}
	return r.remaining
}

func (r *Reassembler) Complete() bool {
	return r.err == nil && r.started && r.remaining == 0
}

// Message returns the reassembled message, ErrIncomplete when more chunks are
// needed, or the error that spent the Reassembler.
func (r *Reassembler) Message() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if !r.Complete() {
		return nil, ErrIncomplete
	}
	return r.buffer, nil
}

// Join reassembles chunks split with the same command. It returns
// ErrIncomplete if the chunks do not yet cover the declared total length.
// No chunks at all join to the empty message.
func Join(command byte, chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return []byte{}, nil
	}
	r := NewReassembler(command)
	for _, chunk := range chunks {
		if err := r.Add(chunk); err != nil {
			return nil, err
		}
	}
	return r.Message()
}

// JoinPackets decodes raw chunks, each exactly as received, and joins them.
func JoinPackets(command byte, packets [][]byte) ([]byte, error) {
	chunks := make([]Chunk, 0, len(packets))
	for i, packet := range packets {
		chunk, err := ParseChunk(packet, i == 0)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return Join(command, chunks)
}

// WrapCommandAPDU splits command into chunks and encodes each one into a
// zero padded packet of packetSize bytes.
func WrapCommandAPDU(tag byte, command []byte, packetSize int) ([][]byte, error) {
	chunks, err := Split(tag, command, packetSize)
	if err != nil {
		return nil, err
	}

	packets := make([][]byte, 0, len(chunks))
	for _, chunk := range chunks {
		packet := make([]byte, packetSize)
		copy(packet, chunk.Bytes())
		packets = append(packets, packet)
	}
	return packets, nil
}

// UnwrapResponseAPDU feeds one padded packet to r and reports whether the
// message is complete. Bytes past the declared length must be zero padding;
// anything else fails as an oversized chunk.
func UnwrapResponseAPDU(r *Reassembler, packet []byte) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	chunk, err := ParseChunk(packet, !r.started)
	if err != nil {
		return false, err
	}

	limit := r.remaining
	if chunk.First {
		limit = int(chunk.Total)
	}
	var tail []byte
	if len(chunk.Payload) > limit {
		tail = chunk.Payload[limit:]
		chunk.Payload = chunk.Payload[:limit]
	}

	if err := r.Add(chunk); err != nil {
		return false, err
	}
	if !isPadding(tail) {
		kind := ErrOversizedChunk
		if chunk.First {
			kind = ErrOversizedFirstChunk
		}
		r.err = fmt.Errorf("%w: %d bytes past the declared length", kind, len(tail))
		return false, r.err
	}
	return r.Complete(), nil
}

func isPadding(b []byte) bool {
	return len(bytes.Trim(b, "\x00")) == 0
}
