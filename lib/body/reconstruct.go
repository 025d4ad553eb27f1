// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package body

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"unicode/utf16"

	"github.com/deven/imessage-exporter/lib/typedstream"
)

// ErrRangeOverflow reports an attribute range that would run past the
// end of the plain text. The reconstructor tolerates unrecognized
// input, so this can only mean the decoder and reconstructor disagree
// about the text — a bug, not a malformed message.
var ErrRangeOverflow = errors.New("body: attribute range exceeds text length")

// Run is a half-open range of the plain text tagged with one effect.
// Offsets are UTF-16 code units. Ranges with the same effect axis do
// not overlap; uncovered stretches are implicitly plain.
type Run struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Effect Effect `json:"effect"`
}

// PlaceholderKind discriminates the two inline placeholder scalars.
type PlaceholderKind int

const (
	// PlaceholderAttachment is U+FFFC, one per attached file.
	PlaceholderAttachment PlaceholderKind = iota
	// PlaceholderApp is U+FFFD, marking app-generated content.
	PlaceholderApp
)

func (k PlaceholderKind) String() string {
	if k == PlaceholderApp {
		return "app"
	}
	return "attachment"
}

// MarshalText lets PlaceholderKind serialize as its name in JSON.
func (k PlaceholderKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Placeholder marks the position of out-of-band content in the plain
// text. The position is a UTF-16 code unit offset. Resolving a
// placeholder to actual attachment or app data is the caller's
// concern.
type Placeholder struct {
	Position int             `json:"position"`
	Kind     PlaceholderKind `json:"kind"`
}

// Reconstruct interprets a decoded node sequence as attribute ranges
// over the plain text. A value run carrying a range length,
// immediately followed by a dictionary object, applies that
// dictionary's effects to the next length code units. Placeholder
// scalars are collected by scanning the text itself, independent of
// the attribute walk.
//
// Unrecognized node shapes are skipped, not fatal. The only hard
// error is a cursor overflow past the text length.
func Reconstruct(text string, nodes []typedstream.Node) ([]Run, []Placeholder, error) {
	total := Length(text)
	placeholders := scanPlaceholders(text)

	var runs []Run
	cursor := 0
	for i := 0; i < len(nodes); i++ {
		length, ok := rangeLength(&nodes[i])
		if !ok || i+1 >= len(nodes) {
			continue
		}
		dict := &nodes[i+1]
		if dict.Kind != typedstream.NodeObject || !dict.IsClass("NSDictionary") {
			continue
		}
		if cursor+length > total {
			return nil, nil, fmt.Errorf("range [%d,%d) over %d code units: %w",
				cursor, cursor+length, total, ErrRangeOverflow)
		}
		for _, effect := range dictionaryEffects(dict) {
			runs = append(runs, Run{Start: cursor, End: cursor + length, Effect: effect})
		}
		cursor += length
		i++ // the dictionary is consumed with its range record
	}
	return runs, placeholders, nil
}

// rangeLength recognizes a range record: a value run whose final
// integer is the run's length in code units.
func rangeLength(node *typedstream.Node) (int, bool) {
	if node.Kind != typedstream.NodeValues {
		return 0, false
	}
	for i := len(node.Values) - 1; i >= 0; i-- {
		switch v := node.Values[i]; v.Kind {
		case typedstream.ValueSigned:
			if v.Int < 0 {
				return 0, false
			}
			return int(v.Int), true
		case typedstream.ValueUnsigned:
			if v.Uint > math.MaxInt64 {
				return 0, false
			}
			return int(v.Uint), true
		}
	}
	return 0, false
}

// dictionaryEffects walks a dictionary object's fields — a leading
// entry count followed by alternating key and value nodes — and maps
// each entry to effects.
func dictionaryEffects(dict *typedstream.Node) []Effect {
	fields := dict.Fields
	index := 0
	// Leading value run is the entry count; pairing below does not
	// depend on it.
	if index < len(fields) && fields[index].Kind == typedstream.NodeValues {
		index++
	}

	var effects []Effect
	for index < len(fields) {
		key, ok := fields[index].Text()
		if !ok {
			index++
			continue
		}
		var value *typedstream.Node
		if index+1 < len(fields) {
			value = &fields[index+1]
			index += 2
		} else {
			index++
		}
		effects = append(effects, effectsForEntry(key, value)...)
	}
	return effects
}

// WithPlainGaps returns the run list extended with explicit plain runs
// over every stretch of text no attributed run covers, so the result
// collectively spans [0, textLen).
func WithPlainGaps(runs []Run, textLen int) []Run {
	out := make([]Run, 0, len(runs)+1)
	out = append(out, runs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})

	// Merge covered intervals, then emit plain runs for the gaps.
	covered := 0
	var plain []Run
	for _, run := range out {
		if run.Start > covered {
			plain = append(plain, Run{Start: covered, End: run.Start, Effect: Effect{Kind: EffectPlain}})
		}
		if run.End > covered {
			covered = run.End
		}
	}
	if covered < textLen {
		plain = append(plain, Run{Start: covered, End: textLen, Effect: Effect{Kind: EffectPlain}})
	}

	out = append(out, plain...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

// Length counts the UTF-16 code units of s, the unit all run offsets
// are measured in.
func Length(s string) int {
	length := 0
	for _, r := range s {
		length += runeWidth16(r)
	}
	return length
}

// Slice extracts the substring covered by a [start, end) code unit
// range. Out-of-range or surrogate-splitting bounds return "".
func Slice(s string, start, end int) string {
	if start < 0 || end < start {
		return ""
	}
	units := utf16.Encode([]rune(s))
	if end > len(units) {
		return ""
	}
	return string(utf16.Decode(units[start:end]))
}

func runeWidth16(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}

// scanPlaceholders records the position of every placeholder scalar
// in the text.
func scanPlaceholders(text string) []Placeholder {
	var placeholders []Placeholder
	offset := 0
	for _, r := range text {
		switch r {
		case '￼':
			placeholders = append(placeholders, Placeholder{Position: offset, Kind: PlaceholderAttachment})
		case '�':
			placeholders = append(placeholders, Placeholder{Position: offset, Kind: PlaceholderApp})
		}
		offset += runeWidth16(r)
	}
	return placeholders
}
