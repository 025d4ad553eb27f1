// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package body

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/deven/imessage-exporter/lib/typedstream"
)

// stringArchive builds the smallest archive that carries text: one
// NSString object whose field is the string.
func stringArchive(text string) []byte {
	var blob []byte
	pstr := func(s string) {
		blob = append(blob, byte(len(s)))
		blob = append(blob, s...)
	}
	blob = append(blob, 0x04)
	pstr("streamtyped")
	blob = append(blob, 0x81, 0xE8, 0x03) // system version 1000
	blob = append(blob, 0x84)             // declare signature
	pstr("@")
	blob = append(blob, 0x84) // object start
	blob = append(blob, 0x84) // fresh class link
	pstr("NSString")
	blob = append(blob, 0x01) // class version
	blob = append(blob, 0x85) // chain ends
	blob = append(blob, 0x84) // field signature
	pstr("+")
	pstr(text)
	blob = append(blob, 0x86) // object end
	return blob
}

// legacyBlob frames text in the pre-archive layout.
func legacyBlob(text string) []byte {
	blob := []byte{0x01, 0x2B}
	blob = binary.BigEndian.AppendUint32(blob, 700000000)
	blob = append(blob, 0x06, 0, 0, 0, 0, 0, 0)
	blob = append(blob, text...)
	return append(blob, 0x86, 0x84)
}

func TestDecodeTypedStream(t *testing.T) {
	res, err := Decode(stringArchive("Noter test"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Source != SourceTypedStream {
		t.Errorf("source = %v, want typedstream", res.Source)
	}
	if res.Text != "Noter test" {
		t.Errorf("text = %q", res.Text)
	}
	if len(res.Nodes) == 0 {
		t.Error("no nodes alongside a typedstream result")
	}
}

func TestDecodeLegacyFallback(t *testing.T) {
	res, err := Decode(legacyBlob("old style"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Source != SourceLegacy {
		t.Errorf("source = %v, want legacy", res.Source)
	}
	if res.Text != "old style" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Nodes != nil {
		t.Errorf("legacy result carries %d nodes, want none", len(res.Nodes))
	}
}

func TestDecodeTruncatedArchiveFallsBack(t *testing.T) {
	// An archive cut mid-object must not be half-decoded; with no
	// legacy frame either, the result is ErrNoText.
	blob := stringArchive("cut me")
	if _, err := Decode(blob[:len(blob)-4]); !errors.Is(err, ErrNoText) {
		t.Errorf("got %v, want ErrNoText", err)
	}
}

func TestDecodeBothFail(t *testing.T) {
	if _, err := Decode([]byte("neither format")); !errors.Is(err, ErrNoText) {
		t.Errorf("got %v, want ErrNoText", err)
	}
	if _, err := Decode(nil); !errors.Is(err, ErrNoText) {
		t.Errorf("empty blob: got %v, want ErrNoText", err)
	}
}

func TestExtractTextDescendsAttributedString(t *testing.T) {
	wrapper := typedstream.Node{
		Kind:    typedstream.NodeObject,
		Classes: []typedstream.Class{{Name: "NSObject"}, {Name: "NSAttributedString"}, {Name: "NSMutableAttributedString"}},
		Fields:  []typedstream.Node{nsString("nested text")},
	}
	text, ok := extractText([]typedstream.Node{wrapper})
	if !ok || text != "nested text" {
		t.Errorf("extractText = %q, %v", text, ok)
	}

	if _, ok := extractText([]typedstream.Node{intRun(1)}); ok {
		t.Error("extractText found text in a value run")
	}
}
