// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

// Package streamtyped recovers plain text from message bodies written
// in the layout that predates the typedstream archive format.
//
// The decoder is deliberately narrow: it locates a fixed start and end
// byte pattern framing the text payload and validates the embedded
// timestamp and prefix between them. It supports unstyled plain text
// only — no attribute reconstruction is possible from this path.
package streamtyped

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrNoStartPattern reports that the start marker is absent.
	ErrNoStartPattern = errors.New("streamtyped: no start pattern found")
	// ErrNoEndPattern reports that the end marker is absent.
	ErrNoEndPattern = errors.New("streamtyped: no end pattern found")
	// ErrInvalidPrefix reports a prefix length field that does not
	// carry the expected value.
	ErrInvalidPrefix = errors.New("streamtyped: prefix length is not standard")
	// ErrInvalidTimestamp reports an embedded timestamp outside the
	// sane range.
	ErrInvalidTimestamp = errors.New("streamtyped: timestamp is not valid")
	// ErrInvalidText reports a framed payload that is not UTF-8.
	ErrInvalidText = errors.New("streamtyped: payload is not valid UTF-8")
)

// startPattern begins the framed payload; endPattern terminates it.
// Both were pinned against reference fixtures.
var (
	startPattern = []byte{0x01, 0x2b}
	endPattern   = []byte{0x86, 0x84}
)

const (
	// expectedPrefixLength is the required value of the prefix length
	// field following the timestamp.
	expectedPrefixLength = 0x06

	// maxTimestamp bounds the embedded timestamp (seconds since
	// 2001-01-01). 1.6e9 seconds is roughly the year 2051; anything
	// beyond it means we are not looking at a timestamp at all.
	maxTimestamp = 1_600_000_000
)

// Parse extracts the plain text framed between the start and end
// patterns. The text begins after the validated timestamp and prefix
// and never includes the markers themselves.
func Parse(data []byte) (string, error) {
	start := bytes.Index(data, startPattern)
	if start < 0 {
		return "", ErrNoStartPattern
	}
	rest := data[start+len(startPattern):]

	if len(rest) < 4 {
		return "", fmt.Errorf("%d bytes after start pattern: %w", len(rest), ErrInvalidTimestamp)
	}
	timestamp := binary.BigEndian.Uint32(rest[:4])
	if timestamp == 0 || timestamp > maxTimestamp {
		return "", fmt.Errorf("timestamp %d: %w", timestamp, ErrInvalidTimestamp)
	}
	rest = rest[4:]

	if len(rest) < 1 || rest[0] != expectedPrefixLength {
		return "", ErrInvalidPrefix
	}
	prefixLength := int(rest[0])
	if len(rest) < 1+prefixLength {
		return "", fmt.Errorf("prefix of %d bytes missing: %w", prefixLength, ErrInvalidPrefix)
	}
	rest = rest[1+prefixLength:]

	end := bytes.Index(rest, endPattern)
	if end < 0 {
		return "", ErrNoEndPattern
	}
	if !utf8.Valid(rest[:end]) {
		return "", ErrInvalidText
	}
	return string(rest[:end]), nil
}
