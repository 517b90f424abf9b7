// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

// SW1DataAvailable marks an unwrapped reply whose sw2 is a length.
const SW1DataAvailable = 0x61

type unwrappedExchange struct{}

func (unwrappedExchange) send(x *Exchanger, command []byte) error {
	for offset := 0; offset < len(command); offset += x.packetSize {
		end := min(offset+x.packetSize, len(command))
		if err := x.writePacket(command[offset:end]); err != nil {
			return err
		}
	}
	return nil
}

func (unwrappedExchange) receive(x *Exchanger) ([]byte, error) {
	packet, err := x.readPacket()
	if err != nil {
		return nil, err
	}

	sw1, sw2 := packet[0], packet[1]
	if sw1 != SW1DataAvailable {
		return []byte{sw1, sw2}, nil
	}

	size := int(sw2) + 2
	response := make([]byte, 0, size)
	response = append(response, packet[2:2+min(size, x.packetSize-2)]...)
	for len(response) < size {
		packet, err = x.readPacket()
		if err != nil {
			return nil, err
		}
		response = append(response, packet[:min(size-len(response), x.packetSize)]...)
	}
	return response, nil
}
