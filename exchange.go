// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

import (
	"errors"
	"fmt"
)

// PacketIO is a duplex channel of fixed-size packets. Both calls block; any
// timeout belongs to the implementation. WritePacket must not retain packet.
type PacketIO interface {
	WritePacket(packet []byte) error
	ReadPacket() ([]byte, error)
	Close() error
}

// Mode is the wire encoding used by a channel.
type Mode int

const (
	// ModeUnwrapped writes raw APDU bytes and reads an sw1/sw2 prefixed reply.
	ModeUnwrapped Mode = iota
	// ModeWrapped frames both directions with Split and Reassembler.
	ModeWrapped
)

func (m Mode) String() string {
	switch m {
	case ModeUnwrapped:
		return "unwrapped"
	case ModeWrapped:
		return "wrapped"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type exchangeStrategy interface {
	send(x *Exchanger, command []byte) error
	receive(x *Exchanger) ([]byte, error)
}

// Exchanger runs one command/response exchange at a time over a PacketIO.
// It is not safe for concurrent use.
type Exchanger struct {
	io         PacketIO
	mode       Mode
	packetSize int
	strategy   exchangeStrategy
	transfer   []byte
}

// NewExchanger selects the wire mode once from cfg.
func NewExchanger(io PacketIO, cfg TransportConfig) (*Exchanger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	x := &Exchanger{
		io:         io,
		packetSize: cfg.PacketSize,
		transfer:   make([]byte, cfg.PacketSize),
	}
	if cfg.Wrapped {
		x.mode = ModeWrapped
		x.strategy = wrappedExchange{tag: cfg.tag()}
	} else {
		x.mode = ModeUnwrapped
		x.strategy = unwrappedExchange{}
	}
	return x, nil
}

func (x *Exchanger) Mode() Mode {
	return x.mode
}

// Exchange sends command and blocks until the full response is read.
// Framing errors match ErrExchangeFailed, I/O errors match ErrTransport.
func (x *Exchanger) Exchange(command []byte) ([]byte, error) {
	if len(command) == 0 {
		return nil, exchangeFailed(errors.New("APDU command is empty"))
	}

	log.Debugf("[%s] => %x", x.mode, command)

	if err := x.strategy.send(x, command); err != nil {
		log.Debugf("[%s] send: %v", x.mode, err)
		return nil, err
	}

	response, err := x.strategy.receive(x)
	if err != nil {
		log.Debugf("[%s] receive: %v", x.mode, err)
		return nil, err
	}

	log.Debugf("[%s] <= %x", x.mode, response)
	return response, nil
}

// Close releases the channel. It must not be called during an exchange.
func (x *Exchanger) Close() error {
	return x.io.Close()
}

// writePacket stages data zero padded in the transfer buffer.
func (x *Exchanger) writePacket(data []byte) error {
	n := copy(x.transfer, data)
	clear(x.transfer[n:])
	if err := x.io.WritePacket(x.transfer); err != nil {
		return transportFailure(err)
	}
	return nil
}

// readPacket returns the next packet normalised to packetSize bytes. The
// result is only valid until the next read.
func (x *Exchanger) readPacket() ([]byte, error) {
	packet, err := x.io.ReadPacket()
	if err != nil {
		return nil, transportFailure(err)
	}
	n := copy(x.transfer, packet)
	clear(x.transfer[n:])
	return x.transfer, nil
}
