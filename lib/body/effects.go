// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package body

import (
	"fmt"

	"github.com/deven/imessage-exporter/lib/typedstream"
)

// Attribute dictionary keys the reconstructor understands. Anything
// else is preserved as EffectUnknown rather than dropped, so newer
// archive producers do not silently lose information.
const (
	attrMessagePart      = "__kIMMessagePartAttributeName"
	attrFileTransferGUID = "__kIMFileTransferGUIDAttributeName"
	attrMention          = "__kIMMentionConfirmedMention"
	attrLink             = "__kIMLinkAttributeName"
	attrOneTimeCode      = "__kIMOneTimeCodeAttributeName"
	attrBold             = "__kIMTextBoldAttributeName"
	attrItalic           = "__kIMTextItalicAttributeName"
	attrUnderline        = "__kIMTextUnderlineAttributeName"
	attrStrikethrough    = "__kIMTextStrikethroughAttributeName"
	attrTextEffect       = "__kIMTextEffectAttributeName"
	attrUnitConversion   = "__kIMUnitConversionAttributeName"
	attrWritingDirection = "__kIMBaseWritingDirectionAttributeName"
	attrDataDetected     = "__kIMDataDetectedAttributeName"
)

// EffectKind discriminates the formatting and semantic effects a text
// range can carry.
type EffectKind int

const (
	EffectPlain EffectKind = iota
	EffectBold
	EffectItalic
	EffectUnderline
	EffectStrikethrough
	EffectMention
	EffectLink
	EffectOneTimeCode
	EffectConversion
	EffectAnimated
	EffectWritingDirection
	EffectAttachment
	EffectUnknown
)

var effectKindNames = map[EffectKind]string{
	EffectPlain:            "plain",
	EffectBold:             "bold",
	EffectItalic:           "italic",
	EffectUnderline:        "underline",
	EffectStrikethrough:    "strikethrough",
	EffectMention:          "mention",
	EffectLink:             "link",
	EffectOneTimeCode:      "one-time-code",
	EffectConversion:       "unit-conversion",
	EffectAnimated:         "animated",
	EffectWritingDirection: "writing-direction",
	EffectAttachment:       "attachment",
	EffectUnknown:          "unknown",
}

func (k EffectKind) String() string {
	if name, ok := effectKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("effect(%d)", int(k))
}

// MarshalText lets EffectKind serialize as its name in JSON output.
func (k EffectKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Effect is one formatting or semantic tag on a text range. Only the
// payload fields relevant to Kind are set.
type Effect struct {
	Kind EffectKind `json:"kind"`

	// Target is the mention handle, link URL, or attachment transfer
	// GUID, depending on Kind.
	Target string `json:"target,omitempty"`

	// Animation is set for EffectAnimated.
	Animation Animation `json:"animation,omitempty"`

	// Unit is set for EffectConversion.
	Unit Unit `json:"unit,omitempty"`

	// Direction is set for EffectWritingDirection (-1 natural,
	// 0 left-to-right, 1 right-to-left).
	Direction int64 `json:"direction,omitempty"`

	// Key and Raw preserve an unrecognized attribute entry verbatim
	// for EffectUnknown.
	Key string `json:"key,omitempty"`
	Raw string `json:"raw,omitempty"`
}

// Animation is a per-range animated text effect.
type Animation int

const (
	AnimationUnknown Animation = iota
	AnimationBig
	AnimationSmall
	AnimationShake
	AnimationNod
	AnimationExplode
	AnimationRipple
	AnimationBloom
	AnimationJitter
)

// animationFromCode maps the archived numeric effect kind. The codes
// were pinned against reference fixtures.
func animationFromCode(code int64) Animation {
	switch code {
	case 4:
		return AnimationRipple
	case 5:
		return AnimationBig
	case 6:
		return AnimationBloom
	case 8:
		return AnimationNod
	case 9:
		return AnimationShake
	case 10:
		return AnimationJitter
	case 11:
		return AnimationSmall
	case 12:
		return AnimationExplode
	default:
		return AnimationUnknown
	}
}

// MarshalText lets Animation serialize as its name in JSON output.
func (a Animation) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a Animation) String() string {
	switch a {
	case AnimationBig:
		return "big"
	case AnimationSmall:
		return "small"
	case AnimationShake:
		return "shake"
	case AnimationNod:
		return "nod"
	case AnimationExplode:
		return "explode"
	case AnimationRipple:
		return "ripple"
	case AnimationBloom:
		return "bloom"
	case AnimationJitter:
		return "jitter"
	default:
		return "unknown"
	}
}

// Unit is the measurement kind of a unit-conversion range.
type Unit int

const (
	UnitUnknown Unit = iota
	UnitCurrency
	UnitDistance
	UnitTemperature
	UnitTimezone
	UnitVolume
	UnitWeight
)

// unitFromCode maps the archived numeric unit kind, pinned against
// reference fixtures.
func unitFromCode(code int64) Unit {
	switch code {
	case 0:
		return UnitCurrency
	case 1:
		return UnitDistance
	case 2:
		return UnitTemperature
	case 3:
		return UnitTimezone
	case 4:
		return UnitVolume
	case 5:
		return UnitWeight
	default:
		return UnitUnknown
	}
}

// MarshalText lets Unit serialize as its name in JSON output.
func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u Unit) String() string {
	switch u {
	case UnitCurrency:
		return "currency"
	case UnitDistance:
		return "distance"
	case UnitTemperature:
		return "temperature"
	case UnitTimezone:
		return "timezone"
	case UnitVolume:
		return "volume"
	case UnitWeight:
		return "weight"
	default:
		return "unknown"
	}
}

// effectsForEntry maps one attribute dictionary entry to zero or more
// effects. Structural entries (message part index, data detector
// blobs) yield nothing; unrecognized keys yield EffectUnknown.
func effectsForEntry(key string, value *typedstream.Node) []Effect {
	switch key {
	case attrMessagePart, attrDataDetected:
		// Part indexes are bookkeeping for the bubble splitter, and
		// data-detector payloads are opaque re-archived blobs; neither
		// is a text effect.
		return nil
	case attrFileTransferGUID:
		guid, _ := nodeString(value)
		return []Effect{{Kind: EffectAttachment, Target: guid}}
	case attrMention:
		target, _ := nodeString(value)
		return []Effect{{Kind: EffectMention, Target: target}}
	case attrLink:
		url, _ := nodeString(value)
		return []Effect{{Kind: EffectLink, Target: url}}
	case attrOneTimeCode:
		return []Effect{{Kind: EffectOneTimeCode}}
	case attrBold:
		return styleEffect(value, EffectBold)
	case attrItalic:
		return styleEffect(value, EffectItalic)
	case attrUnderline:
		return styleEffect(value, EffectUnderline)
	case attrStrikethrough:
		return styleEffect(value, EffectStrikethrough)
	case attrTextEffect:
		code, _ := nodeInt(value)
		return []Effect{{Kind: EffectAnimated, Animation: animationFromCode(code)}}
	case attrUnitConversion:
		code, _ := nodeInt(value)
		return []Effect{{Kind: EffectConversion, Unit: unitFromCode(code)}}
	case attrWritingDirection:
		direction, _ := nodeInt(value)
		return []Effect{{Kind: EffectWritingDirection, Direction: direction}}
	default:
		return []Effect{{Kind: EffectUnknown, Key: key, Raw: describeNode(value)}}
	}
}

// styleEffect emits a style effect when the attribute's number box is
// truthy. Producers write explicit zeroes when a style toggles off
// mid-message.
func styleEffect(value *typedstream.Node, kind EffectKind) []Effect {
	if v, ok := nodeInt(value); ok && v == 0 {
		return nil
	}
	return []Effect{{Kind: kind}}
}

// nodeString extracts a string payload from an attribute value,
// descending into URL-class containers whose backing string is nested
// one level down.
func nodeString(node *typedstream.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	if s, ok := node.Text(); ok {
		return s, true
	}
	for i := range node.Fields {
		if s, ok := nodeString(&node.Fields[i]); ok {
			return s, true
		}
	}
	return "", false
}

func nodeInt(node *typedstream.Node) (int64, bool) {
	if node == nil {
		return 0, false
	}
	return node.Int()
}

// describeNode renders an arbitrary node value for EffectUnknown
// preservation.
func describeNode(node *typedstream.Node) string {
	if node == nil {
		return ""
	}
	if s, ok := nodeString(node); ok {
		return s
	}
	if v, ok := node.Int(); ok {
		return fmt.Sprintf("%d", v)
	}
	if name := node.ClassName(); name != "" {
		return name
	}
	return fmt.Sprintf("%d values", len(node.Values))
}
