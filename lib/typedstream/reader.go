// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package typedstream

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Integer width markers. A value byte below the marker range is the
// value itself; the markers announce a wider little-endian value in
// the following bytes. This space-saving convention was pinned against
// reference fixtures; there is no public specification.
const (
	tagI16   = 0x81 // next 2 bytes are the value
	tagI32   = 0x82 // next 4 bytes are the value
	tagFloat = 0x83 // next 4 or 8 bytes are an IEEE 754 value
	tagStart = 0x84 // start of a type signature, object, or class
	tagNil   = 0x85 // nil object / end of a class chain
	tagEnd   = 0x86 // end of an object's field values

	// Bytes at or above referenceBase are back-reference tokens;
	// token minus referenceBase is an index into a reference table.
	referenceBase = 0x92
)

// reader is a cursor over an immutable byte buffer. Every read
// advances the cursor by exactly the consumed width, and no read may
// advance past the end of the buffer: out-of-bounds access fails with
// ErrTruncated instead of panicking.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

// peek returns the byte at the cursor without consuming it.
func (r *reader) peek() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("peek at offset %d: %w", r.pos, ErrTruncated)
	}
	return r.data[r.pos], nil
}

func (r *reader) skip(n int) {
	r.pos += n
}

// take consumes and returns the next n bytes. The returned slice
// aliases the input buffer; callers that retain it must copy.
func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("take %d bytes at offset %d: %w", n, r.pos, ErrTruncated)
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) readU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readI8() (int8, error) {
	v, err := r.readU8()
	return int8(v), err
}

func (r *reader) readU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) readI16() (int16, error) {
	v, err := r.readU16()
	return int16(v), err
}

func (r *reader) readU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readI32() (int32, error) {
	v, err := r.readU32()
	return int32(v), err
}

func (r *reader) readU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) readI64() (int64, error) {
	v, err := r.readU64()
	return int64(v), err
}

// readUint decodes a marker-prefixed unsigned integer: a leading 0x81
// announces a 2-byte value, 0x82 a 4-byte value, and any other byte is
// the value itself.
func (r *reader) readUint() (uint64, error) {
	marker, err := r.readU8()
	if err != nil {
		return 0, err
	}
	switch marker {
	case tagI16:
		v, err := r.readU16()
		return uint64(v), err
	case tagI32:
		v, err := r.readU32()
		return uint64(v), err
	default:
		return uint64(marker), nil
	}
}

// readInt decodes a marker-prefixed signed integer. An unmarked byte
// is interpreted as a signed 8-bit value.
func (r *reader) readInt() (int64, error) {
	marker, err := r.readU8()
	if err != nil {
		return 0, err
	}
	switch marker {
	case tagI16:
		v, err := r.readI16()
		return int64(v), err
	case tagI32:
		v, err := r.readI32()
		return int64(v), err
	default:
		return int64(int8(marker)), nil
	}
}

// readFloat decodes a floating-point value of the given byte width. A
// leading 0x83 announces a real IEEE 754 payload; without it the value
// was stored as a marker-prefixed integer (archivers do this for whole
// numbers).
func (r *reader) readFloat(width int) (float64, error) {
	marker, err := r.peek()
	if err != nil {
		return 0, err
	}
	if marker != tagFloat {
		v, err := r.readInt()
		return float64(v), err
	}
	r.skip(1)
	switch width {
	case 4:
		v, err := r.readU32()
		if err != nil {
			return 0, err
		}
		return float64(math.Float32frombits(v)), nil
	default:
		v, err := r.readU64()
		if err != nil {
			return 0, err
		}
		return math.Float64frombits(v), nil
	}
}

// readLengthPrefixedBytes reads a marker-prefixed length followed by
// that many raw bytes.
func (r *reader) readLengthPrefixedBytes() ([]byte, error) {
	length, err := r.readUint()
	if err != nil {
		return nil, err
	}
	if length > uint64(r.remaining()) {
		return nil, fmt.Errorf("byte array of %d at offset %d: %w", length, r.pos, ErrTruncated)
	}
	return r.take(int(length))
}

// readString reads a length-prefixed UTF-8 string.
func (r *reader) readString() (string, error) {
	raw, err := r.readLengthPrefixedBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("string at offset %d: %w", r.pos, ErrInvalidString)
	}
	return string(raw), nil
}
