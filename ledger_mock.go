//go:build ledger_mock
// +build ledger_mock

// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

type LedgerAdminMock struct {
	cfg TransportConfig
}

type LedgerDeviceMock struct {
	exchanger *Exchanger
}

func NewLedgerAdmin() LedgerAdmin {
	return NewLedgerAdminWithConfig(DefaultTransportConfig())
}

func NewLedgerAdminWithConfig(cfg TransportConfig) LedgerAdmin {
	return &LedgerAdminMock{cfg: cfg}
}

func (admin *LedgerAdminMock) CountDevices() int {
	return 1
}

func (admin *LedgerAdminMock) ListDevices() ([]string, error) {
	return []string{"mock"}, nil
}

func (admin *LedgerAdminMock) Connect(deviceIndex int) (LedgerDevice, error) {
	if deviceIndex != 0 {
		return nil, errDeviceNotFound
	}
	exchanger, err := NewExchanger(NewEmulator(admin.cfg, mockHandler), admin.cfg)
	if err != nil {
		return nil, err
	}
	return &LedgerDeviceMock{exchanger: exchanger}, nil
}

// mockHandler answers every command with the success status word.
func mockHandler([]byte) []byte {
	return []byte{0x90, 0x00}
}

func (ledger *LedgerDeviceMock) Exchange(command []byte) ([]byte, error) {
	return exchangeAPDU(ledger.exchanger, command)
}

func (ledger *LedgerDeviceMock) Close() error {
	return ledger.exchanger.Close()
}
