// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package messagedb

import (
	"testing"
	"time"
)

func TestVariantClassification(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want Variant
	}{
		{"normal", Message{}, VariantNormal},
		{"edited", Message{DateEdited: 5}, VariantEdited},
		{"app balloon", Message{BalloonBundleID: "com.apple.messages.URLBalloonProvider"}, VariantApp},
		{"shareplay", Message{AssociatedMessageType: 3}, VariantSharePlay},
		{"sticker", Message{AssociatedMessageType: 1000}, VariantSticker},
		{"tapback add", Message{AssociatedMessageType: 2001}, VariantTapback},
		{"tapback remove", Message{AssociatedMessageType: 3005}, VariantTapback},
		{"sticker tapback", Message{AssociatedMessageType: 2007}, VariantTapback},
		{"unrecognized", Message{AssociatedMessageType: 4242}, VariantUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Variant(); got != tt.want {
				t.Errorf("Variant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTapbackMapping(t *testing.T) {
	tests := []struct {
		typ     int64
		kind    TapbackKind
		removed bool
	}{
		{2000, TapbackLoved, false},
		{2001, TapbackLiked, false},
		{2002, TapbackDisliked, false},
		{2003, TapbackLaughed, false},
		{2004, TapbackEmphasized, false},
		{2005, TapbackQuestioned, false},
		{2006, TapbackEmoji, false},
		{3000, TapbackLoved, true},
		{3003, TapbackLaughed, true},
		{3006, TapbackEmoji, true},
	}
	for _, tt := range tests {
		m := Message{AssociatedMessageType: tt.typ, AssociatedEmoji: "🔥"}
		tb, ok := m.Tapback()
		if !ok {
			t.Errorf("type %d: not recognized as a tapback", tt.typ)
			continue
		}
		if tb.Kind != tt.kind || tb.Removed != tt.removed {
			t.Errorf("type %d: got %+v, want kind %v removed %v", tt.typ, tb, tt.kind, tt.removed)
		}
		if tt.kind == TapbackEmoji && tb.Emoji != "🔥" {
			t.Errorf("type %d: emoji = %q", tt.typ, tb.Emoji)
		}
	}

	if _, ok := (&Message{AssociatedMessageType: 0}).Tapback(); ok {
		t.Error("a plain message classified as a tapback")
	}
}

func TestExpressive(t *testing.T) {
	screen := Message{ExpressiveSendStyleID: "com.apple.messages.effect.CKConfettiEffect"}
	if e, ok := screen.Expressive(); !ok || !e.Screen || e.Name != "confetti" {
		t.Errorf("confetti = %+v, %v", e, ok)
	}

	bubble := Message{ExpressiveSendStyleID: "com.apple.MobileSMS.expressivesend.impact"}
	if e, ok := bubble.Expressive(); !ok || e.Screen || e.Name != "slam" {
		t.Errorf("slam = %+v, %v", e, ok)
	}

	// Unknown identifiers surface their suffix instead of vanishing.
	future := Message{ExpressiveSendStyleID: "com.apple.messages.effect.CKWarpEffect"}
	if e, ok := future.Expressive(); !ok || e.Name != "CKWarpEffect" || !e.Screen {
		t.Errorf("unknown effect = %+v, %v", e, ok)
	}

	if _, ok := (&Message{}).Expressive(); ok {
		t.Error("empty identifier classified as expressive")
	}
}

func TestAnnouncement(t *testing.T) {
	rename := Message{ItemType: 2, GroupTitle: "Group Chat"}
	if a, ok := rename.Announcement(); !ok || a.Kind != AnnouncementNameChange || a.Title != "Group Chat" {
		t.Errorf("rename = %+v, %v", a, ok)
	}

	photo := Message{ItemType: 1, GroupActionType: 1}
	if a, ok := photo.Announcement(); !ok || a.Kind != AnnouncementPhotoChange {
		t.Errorf("photo = %+v, %v", a, ok)
	}

	unsent := Message{DateEdited: 77}
	if a, ok := unsent.Announcement(); !ok || a.Kind != AnnouncementUnsent {
		t.Errorf("unsent = %+v, %v", a, ok)
	}

	editedWithText := Message{DateEdited: 77, Text: "still here"}
	if _, ok := editedWithText.Announcement(); ok {
		t.Error("an edited message with text classified as an announcement")
	}

	if _, ok := (&Message{}).Announcement(); ok {
		t.Error("a plain message classified as an announcement")
	}
}

func TestAppleTime(t *testing.T) {
	// Modern databases store nanoseconds: 6e17 ns past the 2001 epoch
	// lands in January 2020.
	got := appleTime(600_000_000_000_000_000)
	want := time.Date(2020, 1, 6, 10, 40, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nanosecond value: got %v, want %v", got, want)
	}

	// Oldest databases store whole seconds.
	got = appleTime(86400)
	want = time.Date(2001, 1, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("second value: got %v, want %v", got, want)
	}

	if !appleTime(0).IsZero() {
		t.Error("zero column value is not the zero time")
	}
}

func TestIsReply(t *testing.T) {
	if (&Message{}).IsReply() {
		t.Error("message with no thread originator is a reply")
	}
	if !(&Message{ThreadOriginatorGUID: "GUID-X"}).IsReply() {
		t.Error("threaded message not recognized as a reply")
	}
}
