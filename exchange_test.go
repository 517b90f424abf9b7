// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedIO replays canned packets and records what was written.
type scriptedIO struct {
	reads    [][]byte
	writes   [][]byte
	readErr  error
	writeErr error
	closed   bool
}

func (s *scriptedIO) WritePacket(packet []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, bytes.Clone(packet))
	return nil
}

func (s *scriptedIO) ReadPacket() ([]byte, error) {
	if len(s.reads) == 0 {
		if s.readErr != nil {
			return nil, s.readErr
		}
		return nil, errors.New("script exhausted")
	}
	packet := s.reads[0]
	s.reads = s.reads[1:]
	return packet, nil
}

func (s *scriptedIO) Close() error {
	s.closed = true
	return nil
}

func unwrappedConfig(packetSize int) TransportConfig {
	return TransportConfig{PacketSize: packetSize}
}

func wrappedConfig(packetSize int) TransportConfig {
	return TransportConfig{PacketSize: packetSize, CommandTag: int(CommandAPDU), Wrapped: true}
}

func Test_NewExchangerMode(t *testing.T) {
	x, err := NewExchanger(&scriptedIO{}, wrappedConfig(64))
	require.NoError(t, err)
	assert.Equal(t, ModeWrapped, x.Mode())

	x, err = NewExchanger(&scriptedIO{}, unwrappedConfig(64))
	require.NoError(t, err)
	assert.Equal(t, ModeUnwrapped, x.Mode())
	assert.Equal(t, "unwrapped", x.Mode().String())
}

func Test_NewExchangerInvalidConfig(t *testing.T) {
	_, err := NewExchanger(&scriptedIO{}, wrappedConfig(7))
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = NewExchanger(&scriptedIO{}, unwrappedConfig(1))
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	cfg := wrappedConfig(64)
	cfg.CommandTag = 0x105
	_, err = NewExchanger(&scriptedIO{}, cfg)
	assert.ErrorIs(t, err, ErrInvalidCommandTag)
}

func Test_ExchangeEmptyCommand(t *testing.T) {
	io := &scriptedIO{}
	x, err := NewExchanger(io, wrappedConfig(64))
	require.NoError(t, err)

	_, err = x.Exchange(nil)
	assert.ErrorIs(t, err, ErrExchangeFailed)
	assert.Empty(t, io.writes)
}

func Test_UnwrappedShortResponse(t *testing.T) {
	io := &scriptedIO{reads: [][]byte{{0x6D, 0x00, 0xFF, 0xFF}}}
	x, err := NewExchanger(io, unwrappedConfig(4))
	require.NoError(t, err)

	response, err := x.Exchange([]byte{0xE0, 0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x6D, 0x00}, response)
}

func Test_UnwrappedExtendedResponse(t *testing.T) {
	io := &scriptedIO{reads: [][]byte{
		{0x61, 10, 0, 1, 2, 3, 4, 5},
		{6, 7, 8, 9, 0x90, 0x00, 0xEE, 0xEE},
	}}
	x, err := NewExchanger(io, unwrappedConfig(8))
	require.NoError(t, err)

	response, err := x.Exchange([]byte{0xE0, 0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0x90, 0x00}, response)
	assert.Empty(t, io.reads)
}

func Test_UnwrappedExtendedResponseInFirstPacket(t *testing.T) {
	first := make([]byte, PacketSize)
	first[0], first[1] = SW1DataAvailable, 2
	copy(first[2:], []byte{0xAB, 0xCD, 0x90, 0x00})
	io := &scriptedIO{reads: [][]byte{first}}
	x, err := NewExchanger(io, unwrappedConfig(PacketSize))
	require.NoError(t, err)

	response, err := x.Exchange([]byte{0xE0, 0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0xCD, 0x90, 0x00}, response)
}

func Test_UnwrappedWritesPaddedPackets(t *testing.T) {
	io := &scriptedIO{reads: [][]byte{{0x90, 0x00, 0, 0, 0, 0, 0, 0}}}
	x, err := NewExchanger(io, unwrappedConfig(8))
	require.NoError(t, err)

	_, err = x.Exchange(sequentialBytes(10))
	require.NoError(t, err)
	require.Len(t, io.writes, 2)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7}, io.writes[0])
	assert.Equal(t, []byte{8, 9, 0, 0, 0, 0, 0, 0}, io.writes[1])
}

func Test_WrappedExchange(t *testing.T) {
	command := sequentialBytes(40)
	response := append(sequentialBytes(30), 0x90, 0x00)

	replies, err := WrapCommandAPDU(CommandAPDU, response, 16)
	require.NoError(t, err)
	io := &scriptedIO{reads: replies}

	x, err := NewExchanger(io, wrappedConfig(16))
	require.NoError(t, err)

	got, err := x.Exchange(command)
	require.NoError(t, err)
	assert.Equal(t, response, got)

	expected, err := WrapCommandAPDU(CommandAPDU, command, 16)
	require.NoError(t, err)
	assert.Equal(t, expected, io.writes)
}

func Test_WrappedExchangeStopsWhenComplete(t *testing.T) {
	replies, err := WrapCommandAPDU(CommandAPDU, []byte{0x90, 0x00}, 16)
	require.NoError(t, err)
	extra := make([]byte, 16)
	io := &scriptedIO{reads: append(replies, extra)}

	x, err := NewExchanger(io, wrappedConfig(16))
	require.NoError(t, err)

	got, err := x.Exchange([]byte{0xE0, 0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, got)
	assert.Len(t, io.reads, 1)
}

func Test_WrappedExchangeSequenceMismatch(t *testing.T) {
	replies, err := WrapCommandAPDU(CommandAPDU, sequentialBytes(40), 16)
	require.NoError(t, err)
	replies[1][2] = 0x07

	x, err := NewExchanger(&scriptedIO{reads: replies}, wrappedConfig(16))
	require.NoError(t, err)

	_, err = x.Exchange([]byte{0xE0, 0x01, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrExchangeFailed)
	assert.ErrorIs(t, err, ErrSequenceMismatch)
}

func Test_WrappedExchangeUnexpectedCommand(t *testing.T) {
	replies, err := WrapCommandAPDU(CommandAck, []byte{0x90, 0x00}, 16)
	require.NoError(t, err)

	x, err := NewExchanger(&scriptedIO{reads: replies}, wrappedConfig(16))
	require.NoError(t, err)

	_, err = x.Exchange([]byte{0xE0, 0x01, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrExchangeFailed)
	assert.ErrorIs(t, err, ErrUnexpectedCommand)
}

func Test_WrappedExchangeOversizedChunk(t *testing.T) {
	first := Chunk{Command: CommandAPDU, First: true, Total: 12, Payload: sequentialBytes(11)}
	second := Chunk{Command: CommandAPDU, Sequence: 1, Payload: []byte{0x90, 0x00, 0x01}}
	replies := [][]byte{padded(first.Bytes(), 16), padded(second.Bytes(), 16)}

	x, err := NewExchanger(&scriptedIO{reads: replies}, wrappedConfig(16))
	require.NoError(t, err)

	_, err = x.Exchange([]byte{0xE0, 0x01, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrExchangeFailed)
	assert.ErrorIs(t, err, ErrOversizedChunk)
}

func Test_ExchangeTransportFailure(t *testing.T) {
	ioErr := errors.New("device unplugged")

	for _, cfg := range []TransportConfig{wrappedConfig(64), unwrappedConfig(64)} {
		x, err := NewExchanger(&scriptedIO{writeErr: ioErr}, cfg)
		require.NoError(t, err)
		_, err = x.Exchange([]byte{0xE0, 0x01, 0x00, 0x00, 0x00})
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, ioErr)

		x, err = NewExchanger(&scriptedIO{readErr: ioErr}, cfg)
		require.NoError(t, err)
		_, err = x.Exchange([]byte{0xE0, 0x01, 0x00, 0x00, 0x00})
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, ioErr)
		assert.NotErrorIs(t, err, ErrExchangeFailed)
	}
}

func Test_ExchangerClose(t *testing.T) {
	io := &scriptedIO{}
	x, err := NewExchanger(io, wrappedConfig(64))
	require.NoError(t, err)
	require.NoError(t, x.Close())
	assert.True(t, io.closed)
}
