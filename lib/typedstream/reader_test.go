// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package typedstream

import (
	"errors"
	"math"
	"testing"
)

func TestReadUintWidths(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint64
	}{
		{"literal zero", []byte{0x00}, 0},
		{"literal max", []byte{0x80}, 0x80},
		{"two byte", []byte{0x81, 0xE8, 0x03}, 1000},
		{"four byte", []byte{0x82, 0x40, 0xE2, 0x01, 0x00}, 123456},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reader{data: tt.data}
			got, err := r.readUint()
			if err != nil {
				t.Fatalf("readUint: %v", err)
			}
			if got != tt.want {
				t.Errorf("readUint = %d, want %d", got, tt.want)
			}
			if r.remaining() != 0 {
				t.Errorf("%d bytes left unconsumed", r.remaining())
			}
		})
	}
}

func TestReadIntWidths(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int64
	}{
		{"literal positive", []byte{0x05}, 5},
		{"literal negative", []byte{0xFF}, -1},
		{"two byte negative", []byte{0x81, 0x18, 0xFC}, -1000},
		{"four byte", []byte{0x82, 0x00, 0xCA, 0x9A, 0x3B}, 1_000_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reader{data: tt.data}
			got, err := r.readInt()
			if err != nil {
				t.Fatalf("readInt: %v", err)
			}
			if got != tt.want {
				t.Errorf("readInt = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReadFloat(t *testing.T) {
	bits32 := math.Float32bits(1.5)
	r := reader{data: []byte{tagFloat, byte(bits32), byte(bits32 >> 8), byte(bits32 >> 16), byte(bits32 >> 24)}}
	got, err := r.readFloat(4)
	if err != nil {
		t.Fatalf("readFloat(4): %v", err)
	}
	if got != 1.5 {
		t.Errorf("readFloat(4) = %v, want 1.5", got)
	}

	bits64 := math.Float64bits(-2.25)
	data := []byte{tagFloat}
	for i := 0; i < 8; i++ {
		data = append(data, byte(bits64>>(8*i)))
	}
	r = reader{data: data}
	got, err = r.readFloat(8)
	if err != nil {
		t.Fatalf("readFloat(8): %v", err)
	}
	if got != -2.25 {
		t.Errorf("readFloat(8) = %v, want -2.25", got)
	}
}

func TestReadFloatIntegerFallback(t *testing.T) {
	// Whole numbers are archived as marker integers without the
	// float tag.
	r := reader{data: []byte{0x07}}
	got, err := r.readFloat(8)
	if err != nil {
		t.Fatalf("readFloat: %v", err)
	}
	if got != 7 {
		t.Errorf("readFloat = %v, want 7", got)
	}
}

func TestReadString(t *testing.T) {
	// 0xC3 alone is a truncated UTF-8 sequence.
	r := reader{data: []byte{0x02, 'h', 0xC3}}
	if _, err := r.readString(); !errors.Is(err, ErrInvalidString) {
		t.Errorf("split UTF-8 sequence: got %v, want ErrInvalidString", err)
	}

	r = reader{data: append([]byte{0x0B}, "streamtyped"...)}
	s, err := r.readString()
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if s != "streamtyped" {
		t.Errorf("readString = %q", s)
	}
}

func TestTruncatedReads(t *testing.T) {
	tests := []struct {
		name string
		read func(r *reader) error
		data []byte
	}{
		{"empty uint", func(r *reader) error { _, err := r.readUint(); return err }, nil},
		{"cut two byte", func(r *reader) error { _, err := r.readUint(); return err }, []byte{0x81, 0x01}},
		{"cut four byte", func(r *reader) error { _, err := r.readUint(); return err }, []byte{0x82, 0x01, 0x02}},
		{"string length past end", func(r *reader) error { _, err := r.readString(); return err }, []byte{0x10, 'a'}},
		{"take past end", func(r *reader) error { _, err := r.take(4); return err }, []byte{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reader{data: tt.data}
			if err := tt.read(&r); !errors.Is(err, ErrTruncated) {
				t.Errorf("got %v, want ErrTruncated", err)
			}
		})
	}
}
