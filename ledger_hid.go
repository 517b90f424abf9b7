//go:build !ledger_mock
// +build !ledger_mock

// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

import (
	"errors"
	"sync"
	"time"

	"github.com/luxfi/hid"
)

const (
	VendorLedger         = 0x2c97
	UsagePageLedgerNanoS = 0xffa0
)

var errReadTimeout = errors.New("timeout reading from device")

type LedgerAdminHID struct {
	cfg TransportConfig
}

type LedgerDeviceHID struct {
	exchanger *Exchanger
}

// list of supported product ids as well as their corresponding interfaces
// based on https://github.com/LedgerHQ/ledger-live/blob/develop/libs/ledgerjs/packages/devices/src/index.ts
var supportedLedgerProductID = map[uint8]int{
	0x40: 0, // Ledger Nano X
	0x10: 0, // Ledger Nano S
	0x50: 0, // Ledger Nano S Plus
	0x60: 0, // Ledger Stax
	0x70: 0, // Ledger Flex
}

func NewLedgerAdmin() LedgerAdmin {
	return NewLedgerAdminWithConfig(DefaultTransportConfig())
}

func NewLedgerAdminWithConfig(cfg TransportConfig) LedgerAdmin {
	return &LedgerAdminHID{cfg: cfg}
}

func (admin *LedgerAdminHID) ledgerDevices() []hid.DeviceInfo {
	var found []hid.DeviceInfo
	for _, d := range hid.Enumerate(0, 0) {
		if d.VendorID == VendorLedger && isLedgerDevice(d) {
			found = append(found, d)
		}
	}
	return found
}

func (admin *LedgerAdminHID) ListDevices() ([]string, error) {
	devices := admin.ledgerDevices()
	if len(devices) == 0 {
		log.Debug("No devices. Ledger LOCKED OR Other Program/Web Browser may have control of device.")
	}

	paths := make([]string, 0, len(devices))
	for _, d := range devices {
		logDeviceInfo(d)
		paths = append(paths, d.Path)
	}
	return paths, nil
}

func logDeviceInfo(d hid.DeviceInfo) {
	log.Debugf("============ %s", d.Path)
	log.Debugf("VendorID      : %x", d.VendorID)
	log.Debugf("ProductID     : %x", d.ProductID)
	log.Debugf("Release       : %x", d.Release)
	log.Debugf("Serial        : %x", d.Serial)
	log.Debugf("Manufacturer  : %s", d.Manufacturer)
	log.Debugf("Product       : %s", d.Product)
	log.Debugf("UsagePage     : %x", d.UsagePage)
	log.Debugf("Usage         : %x", d.Usage)
}

func isLedgerDevice(d hid.DeviceInfo) bool {
	deviceFound := d.UsagePage == UsagePageLedgerNanoS

	// Workarounds for possible empty usage pages
	productIDMM := uint8(d.ProductID >> 8)
	if interfaceID, supported := supportedLedgerProductID[productIDMM]; deviceFound || (supported && (interfaceID == d.Interface)) {
		return true
	}

	return false
}

func (admin *LedgerAdminHID) CountDevices() int {
	return len(admin.ledgerDevices())
}

func (admin *LedgerAdminHID) Connect(deviceIndex int) (LedgerDevice, error) {
	devices := admin.ledgerDevices()
	if deviceIndex < 0 || deviceIndex >= len(devices) {
		return nil, errDeviceNotFound
	}

	device, err := devices[deviceIndex].Open()
	if err != nil {
		return nil, err
	}

	exchanger, err := NewExchanger(newHIDPacketIO(device, admin.cfg), admin.cfg)
	if err != nil {
		_ = device.Close()
		return nil, err
	}
	log.Debugf("connected to %s in %s mode", devices[deviceIndex].Path, exchanger.Mode())
	return &LedgerDeviceHID{exchanger: exchanger}, nil
}

func (ledger *LedgerDeviceHID) Exchange(command []byte) ([]byte, error) {
	return exchangeAPDU(ledger.exchanger, command)
}

func (ledger *LedgerDeviceHID) Close() error {
	return ledger.exchanger.Close()
}

// hidDevice is the subset of *hid.Device used for packet I/O.
type hidDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// hidPacketIO moves fixed-size reports over a HID device. A single reader
// goroutine feeds readChannel so ReadPacket can honour the timeout.
type hidPacketIO struct {
	device      hidDevice
	packetSize  int
	timeout     time.Duration
	readCo      *sync.Once
	readChannel chan []byte
	closeCo     *sync.Once
	done        chan struct{}
	// stale is set by a read timeout; the late reply is dropped before the
	// next request goes out.
	stale bool
}

func newHIDPacketIO(device hidDevice, cfg TransportConfig) *hidPacketIO {
	return &hidPacketIO{
		device:      device,
		packetSize:  cfg.PacketSize,
		timeout:     cfg.ReadTimeout,
		readCo:      &sync.Once{},
		readChannel: make(chan []byte, 1),
		closeCo:     &sync.Once{},
		done:        make(chan struct{}),
	}
}

// drain discards packets already read for an exchange that timed out.
func (h *hidPacketIO) drain() {
	for {
		select {
		case buffer, ok := <-h.readChannel:
			if !ok {
				return
			}
			log.Debugf("[HID] dropping late packet %x", buffer)
		default:
			return
		}
	}
}

func (h *hidPacketIO) WritePacket(packet []byte) error {
	if h.stale {
		h.drain()
		h.stale = false
	}

	totalBytes := len(packet)
	totalWrittenBytes := 0
	for totalBytes > totalWrittenBytes {
		writtenBytes, err := h.device.Write(packet[totalWrittenBytes:])
		if err != nil {
			return err
		}
		totalWrittenBytes += writtenBytes
	}
	return nil
}

func (h *hidPacketIO) ReadPacket() ([]byte, error) {
	h.readCo.Do(func() {
		go h.readThread()
	})

	var timeout <-chan time.Time
	if h.timeout > 0 {
		timer := time.NewTimer(h.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case buffer, ok := <-h.readChannel:
		if !ok {
			return nil, errors.New("read channel closed")
		}
		return buffer, nil
	case <-timeout:
		h.stale = true
		return nil, errReadTimeout
	}
}

func (h *hidPacketIO) readThread() {
	defer close(h.readChannel)
	for {
		buffer := make([]byte, h.packetSize)
		readBytes, err := h.device.Read(buffer)
		if err != nil {
			return
		}
		select {
		case h.readChannel <- buffer[:readBytes]:
		case <-h.done:
			return
		}
	}
}

func (h *hidPacketIO) Close() error {
	var err error
	h.closeCo.Do(func() {
		close(h.done)
		err = h.device.Close()
	})
	return err
}
