// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the deterministic CBOR configuration used for
// decoded-node dumps.
//
// The typedstream wire format has no public specification, so its
// decoding rules are pinned by golden files: a reference blob decodes
// to a node sequence, and the sequence's canonical encoding must never
// change. CBOR with Core Deterministic Encoding (RFC 8949 §4.2:
// sorted map keys, smallest integer encoding, no indefinite-length
// items) guarantees the same logical data always produces identical
// bytes, which is what a byte-for-byte fixture contract needs.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Dump tooling decodes into any-typed targets; pick the map
		// type the rest of the codebase (and encoding/json) expects.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Encoder = cbor.Encoder

// NewEncoder returns a CBOR encoder writing to w with the standard
// deterministic configuration.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for
// data. Used by the debug subcommand to render node dumps readably.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
