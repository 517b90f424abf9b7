// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

type wrappedExchange struct {
	tag byte
}

func (w wrappedExchange) send(x *Exchanger, command []byte) error {
	packets, err := WrapCommandAPDU(w.tag, command, x.packetSize)
	if err != nil {
		return exchangeFailed(err)
	}
	for _, packet := range packets {
		if err := x.writePacket(packet); err != nil {
			return err
		}
	}
	return nil
}

func (w wrappedExchange) receive(x *Exchanger) ([]byte, error) {
	r := NewReassembler(w.tag)
	for {
		packet, err := x.readPacket()
		if err != nil {
			return nil, err
		}
		complete, err := UnwrapResponseAPDU(r, packet)
		if err != nil {
			return nil, exchangeFailed(err)
		}
		if complete {
			return r.Message()
		}
	}
}
