// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

import (
	"errors"
	"fmt"
)

// LedgerAdmin defines the interface for managing Ledger devices.
type LedgerAdmin interface {
	CountDevices() int
	ListDevices() ([]string, error)
	Connect(deviceIndex int) (LedgerDevice, error)
}

// LedgerDevice defines the interface for interacting with a Ledger device.
type LedgerDevice interface {
	Exchange(command []byte) ([]byte, error)
	Close() error
}

var errDeviceNotFound = errors.New("device not found")

func exchangeAPDU(x *Exchanger, command []byte) ([]byte, error) {
	if len(command) < 5 {
		return nil, errors.New("APDU commands should not be smaller than 5")
	}

	response, err := x.Exchange(command)
	if err != nil {
		return nil, err
	}
	if len(response) < 2 {
		return nil, fmt.Errorf("response too short: %d bytes", len(response))
	}
	return response, nil
}
