// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_transport

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunkSize is returned by Split when the chunk size cannot hold a
	// header plus at least one payload byte.
	ErrInvalidChunkSize = errors.New("invalid chunk size")
	// ErrMessageTooLong is returned when a message does not fit the 16-bit
	// total length field of the first chunk.
	ErrMessageTooLong = errors.New("message too long")
	// ErrInvalidCommandTag is returned when a configured command tag does not
	// fit in a byte.
	ErrInvalidCommandTag = errors.New("command tag out of range")
	// ErrTruncatedChunk is returned when a raw chunk is shorter than its header.
	ErrTruncatedChunk = errors.New("chunk shorter than its header")

	ErrUnexpectedCommand   = errors.New("unexpected command")
	ErrSequenceMismatch    = errors.New("invalid chunk sequence counter")
	ErrOversizedFirstChunk = errors.New("first chunk data length bigger than total data length")
	ErrOversizedChunk      = errors.New("too much data in the last chunk")

	// ErrIncomplete is not a failure: more chunks are needed before the
	// message can be returned.
	ErrIncomplete = errors.New("message incomplete")

	ErrExchangeFailed = errors.New("exchange failed")
	ErrTransport      = errors.New("transport failure")
)

// SequenceError reports a chunk whose sequence number is not the next one.
type SequenceError struct {
	Expected uint16
	Observed uint16
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%v, expected: %d, observed: %d", ErrSequenceMismatch, e.Expected, e.Observed)
}

func (e *SequenceError) Is(target error) bool {
	return target == ErrSequenceMismatch
}

func exchangeFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrExchangeFailed, err)
}

func transportFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
