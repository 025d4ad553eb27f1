// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package messagedb

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"howett.net/plist"
	"zombiezen.com/go/sqlite"

	"github.com/deven/imessage-exporter/lib/body"
)

// EditStatus says what happened to one part of an edited message.
type EditStatus int

const (
	// EditStatusEdited parts have at least one revision after the
	// original send.
	EditStatusEdited EditStatus = iota
	// EditStatusUnsent parts were retracted entirely.
	EditStatusUnsent
)

func (s EditStatus) String() string {
	if s == EditStatusUnsent {
		return "unsent"
	}
	return "edited"
}

// EditEvent is one revision of a message part: when it happened and
// the text it produced. The first event of an edited part is the
// original text.
type EditEvent struct {
	Date time.Time
	Text string
}

// EditedPart is the revision history of one message part.
type EditedPart struct {
	Index  int
	Status EditStatus
	// History is the revision sequence in send order. Empty for
	// unsent parts.
	History []EditEvent
}

// EditedMessage is the full edit record of a message, one entry per
// part that was edited or unsent. Parts are ordered by index.
type EditedMessage struct {
	Parts []EditedPart
}

// summaryInfo mirrors the plist layout of message_summary_info. The
// edit history keys parts by their index rendered as a string; each
// revision carries the replacement body as a nested typedstream blob.
type summaryInfo struct {
	EditedContent map[string][]struct {
		Text []byte  `plist:"t"`
		Date float64 `plist:"d"`
	} `plist:"ec"`
	RetractedParts []int `plist:"rp"`
}

// EditedMessage parses the edit history, or returns (nil, nil) when
// the message was never edited.
func (m *Message) EditedMessage(conn *sqlite.Conn) (*EditedMessage, error) {
	if m.DateEdited == 0 {
		return nil, nil
	}
	data, err := m.blob(conn, columnMessageSummaryInfo)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return parseEditedMessage(data)
}

func parseEditedMessage(data []byte) (*EditedMessage, error) {
	var info summaryInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("messagedb: parse message summary: %w", err)
	}

	edited := &EditedMessage{}
	for key, revisions := range info.EditedContent {
		index, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("messagedb: edit history has non-numeric part key %q", key)
		}
		part := EditedPart{Index: index, Status: EditStatusEdited}
		for _, rev := range revisions {
			event := EditEvent{Date: appleSeconds(rev.Date)}
			if len(rev.Text) > 0 {
				// Each revision embeds a complete body archive.
				res, derr := body.Decode(rev.Text)
				if derr == nil {
					event.Text = res.Text
				}
			}
			part.History = append(part.History, event)
		}
		edited.Parts = append(edited.Parts, part)
	}
	for _, index := range info.RetractedParts {
		edited.Parts = append(edited.Parts, EditedPart{Index: index, Status: EditStatusUnsent})
	}
	if len(edited.Parts) == 0 {
		return nil, nil
	}
	sort.Slice(edited.Parts, func(i, j int) bool {
		return edited.Parts[i].Index < edited.Parts[j].Index
	})
	return edited, nil
}

// PayloadMetadata decodes the payload_data property list carried by
// app balloon messages. The layout varies per balloon provider, so the
// result is a generic tree; (nil, nil) means no payload.
func (m *Message) PayloadMetadata(conn *sqlite.Conn) (map[string]any, error) {
	data, err := m.blob(conn, columnPayloadData)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var payload map[string]any
	if _, err := plist.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("messagedb: parse payload for rowid %d: %w", m.RowID, err)
	}
	return payload, nil
}

// Edit timestamps in the summary plist are fractional seconds from
// the 2001 epoch, unlike the nanosecond columns on the row itself.
func appleSeconds(v float64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(appleEpochUnix+sec, nsec).UTC()
}
