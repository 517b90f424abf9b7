// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

import (
	"errors"
	"fmt"
	"sync"
)

var (
	errEmulatorClosed = errors.New("emulator closed")
	errNoResponse     = errors.New("no response pending")
)

// Handler computes the device reply, status word included, to one APDU.
type Handler func(command []byte) []byte

// Emulator is the device end of a packet channel. It decodes commands written
// to it, answers them with a Handler and queues the encoded reply for
// ReadPacket. It never blocks: reading with nothing queued is an error.
type Emulator struct {
	cfg     TransportConfig
	handler Handler

	mu       sync.Mutex
	inbound  *Reassembler
	pending  []byte
	outbound [][]byte
	closed   bool
}

func NewEmulator(cfg TransportConfig, handler Handler) *Emulator {
	return &Emulator{cfg: cfg, handler: handler}
}

func (e *Emulator) WritePacket(packet []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errEmulatorClosed
	}
	if len(packet) != e.cfg.PacketSize {
		return fmt.Errorf("packet is %d bytes, want %d", len(packet), e.cfg.PacketSize)
	}

	if e.cfg.Wrapped {
		if e.inbound == nil {
			e.inbound = NewReassembler(e.cfg.tag())
		}
		complete, err := UnwrapResponseAPDU(e.inbound, packet)
		if err != nil {
			e.inbound = nil
			return err
		}
		if !complete {
			return nil
		}
		command, err := e.inbound.Message()
		e.inbound = nil
		if err != nil {
			return err
		}
		return e.respond(command)
	}

	// unwrapped commands carry no framing, so rely on the APDU Lc byte
	e.pending = append(e.pending, packet...)
	if len(e.pending) < 5 {
		return nil
	}
	need := 5 + int(e.pending[4])
	if len(e.pending) < need {
		return nil
	}
	command := e.pending[:need]
	e.pending = nil
	return e.respond(command)
}

func (e *Emulator) respond(command []byte) error {
	response := e.handler(command)

	if e.cfg.Wrapped {
		packets, err := WrapCommandAPDU(e.cfg.tag(), response, e.cfg.PacketSize)
		if err != nil {
			return err
		}
		e.outbound = append(e.outbound, packets...)
		return nil
	}

	if len(response) < 2 || len(response)-2 > 0xff {
		return fmt.Errorf("unwrapped response of %d bytes cannot be encoded", len(response))
	}
	var stream []byte
	if len(response) == 2 && response[0] != SW1DataAvailable {
		stream = response
	} else {
		stream = append([]byte{SW1DataAvailable, byte(len(response) - 2)}, response...)
	}
	for offset := 0; offset < len(stream); offset += e.cfg.PacketSize {
		packet := make([]byte, e.cfg.PacketSize)
		copy(packet, stream[offset:])
		e.outbound = append(e.outbound, packet)
	}
	return nil
}

func (e *Emulator) ReadPacket() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errEmulatorClosed
	}
	if len(e.outbound) == 0 {
		return nil, errNoResponse
	}
	packet := e.outbound[0]
	e.outbound = e.outbound[1:]
	return packet, nil
}

func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
