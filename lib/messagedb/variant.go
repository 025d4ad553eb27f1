// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package messagedb

import "strings"

// Variant is the broad kind of a message row.
type Variant int

const (
	VariantNormal Variant = iota
	VariantEdited
	VariantTapback
	VariantSticker
	VariantApp
	VariantSharePlay
	VariantUnknown
)

func (v Variant) String() string {
	switch v {
	case VariantNormal:
		return "normal"
	case VariantEdited:
		return "edited"
	case VariantTapback:
		return "tapback"
	case VariantSticker:
		return "sticker"
	case VariantApp:
		return "app"
	case VariantSharePlay:
		return "shareplay"
	default:
		return "unknown"
	}
}

// MarshalText renders the variant for exporters.
func (v Variant) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// TapbackKind is one of the reaction types a tapback message carries.
type TapbackKind int

const (
	TapbackLoved TapbackKind = iota
	TapbackLiked
	TapbackDisliked
	TapbackLaughed
	TapbackEmphasized
	TapbackQuestioned
	TapbackEmoji
)

func (t TapbackKind) String() string {
	switch t {
	case TapbackLoved:
		return "loved"
	case TapbackLiked:
		return "liked"
	case TapbackDisliked:
		return "disliked"
	case TapbackLaughed:
		return "laughed"
	case TapbackEmphasized:
		return "emphasized"
	case TapbackQuestioned:
		return "questioned"
	case TapbackEmoji:
		return "emoji"
	default:
		return "unknown"
	}
}

// Tapback describes a reaction: what it was, whether it was added or
// removed, and the emoji for custom reactions.
type Tapback struct {
	Kind    TapbackKind
	Removed bool
	Emoji   string
}

// Variant classifies the row by its associated message type. The
// 2000 band is tapback additions, the 3000 band removals; 1000 is a
// sticker placement and 0 a plain message.
func (m *Message) Variant() Variant {
	switch m.AssociatedMessageType {
	case 0:
		if m.DateEdited != 0 {
			return VariantEdited
		}
		if m.BalloonBundleID != "" {
			return VariantApp
		}
		return VariantNormal
	case 2, 3:
		// SharePlay session start / end markers.
		return VariantSharePlay
	case 1000:
		return VariantSticker
	case 2000, 2001, 2002, 2003, 2004, 2005, 2006,
		3000, 3001, 3002, 3003, 3004, 3005, 3006:
		return VariantTapback
	case 2007, 3007:
		// Sticker tapbacks placed on a specific part.
		return VariantTapback
	default:
		return VariantUnknown
	}
}

// Tapback resolves the reaction details, or false when the message is
// not a tapback.
func (m *Message) Tapback() (Tapback, bool) {
	t := m.AssociatedMessageType
	if t < 2000 || t > 3007 {
		return Tapback{}, false
	}
	tb := Tapback{Removed: t >= 3000}
	switch t % 1000 {
	case 0:
		tb.Kind = TapbackLoved
	case 1:
		tb.Kind = TapbackLiked
	case 2:
		tb.Kind = TapbackDisliked
	case 3:
		tb.Kind = TapbackLaughed
	case 4:
		tb.Kind = TapbackEmphasized
	case 5:
		tb.Kind = TapbackQuestioned
	case 6, 7:
		tb.Kind = TapbackEmoji
		tb.Emoji = m.AssociatedEmoji
	default:
		return Tapback{}, false
	}
	return tb, true
}

// Expressive is a send effect attached to the whole message.
type Expressive struct {
	// Screen is true for full-screen effects, false for bubble effects.
	Screen bool
	Name   string
}

// Bubble and screen effect identifiers as stored in
// expressive_send_style_id.
var expressives = map[string]Expressive{
	"com.apple.MobileSMS.expressivesend.gentle":        {Screen: false, Name: "gentle"},
	"com.apple.MobileSMS.expressivesend.impact":        {Screen: false, Name: "slam"},
	"com.apple.MobileSMS.expressivesend.invisibleink":  {Screen: false, Name: "invisible ink"},
	"com.apple.MobileSMS.expressivesend.loud":          {Screen: false, Name: "loud"},
	"com.apple.messages.effect.CKConfettiEffect":       {Screen: true, Name: "confetti"},
	"com.apple.messages.effect.CKEchoEffect":           {Screen: true, Name: "echo"},
	"com.apple.messages.effect.CKFireworksEffect":      {Screen: true, Name: "fireworks"},
	"com.apple.messages.effect.CKHappyBirthdayEffect":  {Screen: true, Name: "balloons"},
	"com.apple.messages.effect.CKHeartEffect":          {Screen: true, Name: "heart"},
	"com.apple.messages.effect.CKLasersEffect":         {Screen: true, Name: "lasers"},
	"com.apple.messages.effect.CKShootingStarEffect":   {Screen: true, Name: "shooting star"},
	"com.apple.messages.effect.CKSparklesEffect":       {Screen: true, Name: "sparkles"},
	"com.apple.messages.effect.CKSpotlightEffect":      {Screen: true, Name: "spotlight"},
}

// Expressive resolves the send effect, or false when there is none.
// Unrecognized identifiers are surfaced with their raw suffix so new
// effects still appear in exports.
func (m *Message) Expressive() (Expressive, bool) {
	id := m.ExpressiveSendStyleID
	if id == "" {
		return Expressive{}, false
	}
	if e, ok := expressives[id]; ok {
		return e, true
	}
	name := id
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		name = id[i+1:]
	}
	return Expressive{Screen: strings.Contains(id, ".effect."), Name: name}, true
}

// Announcement describes a group event row rather than a chat message.
type Announcement struct {
	Kind  AnnouncementKind
	Title string
}

// AnnouncementKind enumerates the group events the message table records.
type AnnouncementKind int

const (
	AnnouncementNameChange AnnouncementKind = iota
	AnnouncementPhotoChange
	AnnouncementPhotoRemoved
	AnnouncementParticipantChange
	AnnouncementUnsent
)

func (k AnnouncementKind) String() string {
	switch k {
	case AnnouncementNameChange:
		return "name change"
	case AnnouncementPhotoChange:
		return "photo change"
	case AnnouncementPhotoRemoved:
		return "photo removed"
	case AnnouncementParticipantChange:
		return "participant change"
	case AnnouncementUnsent:
		return "unsent"
	default:
		return "unknown"
	}
}

// Announcement resolves the group event, or false for ordinary
// messages. item_type 2 is a rename, 3 a membership change; item_type
// 1 with group_action_type distinguishes photo set from photo removed.
// A fully retracted message surfaces as an unsent announcement.
func (m *Message) Announcement() (Announcement, bool) {
	switch m.ItemType {
	case 1:
		if m.GroupActionType == 1 {
			return Announcement{Kind: AnnouncementPhotoChange}, true
		}
		if m.GroupActionType == 2 {
			return Announcement{Kind: AnnouncementPhotoRemoved}, true
		}
		return Announcement{Kind: AnnouncementParticipantChange}, true
	case 2:
		return Announcement{Kind: AnnouncementNameChange, Title: m.GroupTitle}, true
	case 3:
		return Announcement{Kind: AnnouncementParticipantChange}, true
	}
	if m.DateEdited != 0 && m.Text == "" && m.NumAttachments == 0 {
		return Announcement{Kind: AnnouncementUnsent}, true
	}
	return Announcement{}, false
}
