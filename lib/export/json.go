// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/deven/imessage-exporter/lib/body"
	"github.com/deven/imessage-exporter/lib/messagedb"
)

// Each per-chat file is a JSON array built incrementally: header on
// creation, a separator between records, footer at Finish. Records
// are indented to sit two levels deep inside the array.
const (
	jsonHeader    = "[\n  "
	jsonSeparator = ",\n  "
	jsonFooter    = "\n]\n"
)

// JSONExporter writes one JSON array of message records per chat.
type JSONExporter struct {
	files *fileSet
}

// NewJSON creates a JSON exporter writing into opts.Path.
func NewJSON(opts Options) (*JSONExporter, error) {
	files, err := newFileSet(opts, ".json")
	if err != nil {
		return nil, err
	}
	return &JSONExporter{files: files}, nil
}

// record is the serialized form of one message. Zero-valued optional
// fields are omitted so ordinary messages stay compact.
type record struct {
	RowID         int64              `json:"rowid"`
	GUID          string             `json:"guid"`
	Date          time.Time          `json:"date"`
	DateRead      *time.Time         `json:"date_read,omitempty"`
	DateDelivered *time.Time         `json:"date_delivered,omitempty"`
	DateEdited    *time.Time         `json:"date_edited,omitempty"`
	IsFromMe      bool               `json:"is_from_me"`
	HandleID      int64              `json:"handle_id,omitempty"`
	Service       string             `json:"service,omitempty"`
	Subject       string             `json:"subject,omitempty"`
	Text          string             `json:"text,omitempty"`
	Variant       messagedb.Variant  `json:"variant"`
	Tapback       *tapbackRecord     `json:"tapback,omitempty"`
	Expressive    string             `json:"expressive,omitempty"`
	ReplyTo       string             `json:"reply_to,omitempty"`
	NumReplies    int64              `json:"num_replies,omitempty"`
	Attachments   int64              `json:"num_attachments,omitempty"`
	Deleted       bool               `json:"deleted,omitempty"`
	Runs          []body.Run         `json:"runs,omitempty"`
	Placeholders  []body.Placeholder `json:"placeholders,omitempty"`
}

type tapbackRecord struct {
	Kind    string `json:"kind"`
	Removed bool   `json:"removed,omitempty"`
	Emoji   string `json:"emoji,omitempty"`
	Target  string `json:"target,omitempty"`
}

func buildRecord(m *messagedb.Message) record {
	r := record{
		RowID:        m.RowID,
		GUID:         m.GUID,
		Date:         m.Time(),
		IsFromMe:     m.IsFromMe,
		HandleID:     m.HandleID,
		Service:      m.Service,
		Subject:      m.Subject,
		Text:         m.Text,
		Variant:      m.Variant(),
		ReplyTo:      m.ThreadOriginatorGUID,
		NumReplies:   m.NumReplies,
		Attachments:  m.NumAttachments,
		Deleted:      m.WasDeleted,
		Runs:         m.Runs,
		Placeholders: m.Placeholders,
	}
	if t := m.TimeRead(); !t.IsZero() {
		r.DateRead = &t
	}
	if t := m.TimeDelivered(); !t.IsZero() {
		r.DateDelivered = &t
	}
	if t := m.TimeEdited(); !t.IsZero() {
		r.DateEdited = &t
	}
	if tb, ok := m.Tapback(); ok {
		r.Tapback = &tapbackRecord{
			Kind:    tb.Kind.String(),
			Removed: tb.Removed,
			Emoji:   tb.Emoji,
			Target:  m.AssociatedMessageGUID,
		}
	}
	if exp, ok := m.Expressive(); ok {
		r.Expressive = exp.Name
	}
	return r
}

func (e *JSONExporter) Export(m *messagedb.Message) error {
	out, created, err := e.files.get(chatKey(m))
	if err != nil {
		return err
	}
	prefix := jsonSeparator
	if created {
		prefix = jsonHeader
	}
	data, err := json.MarshalIndent(buildRecord(m), "  ", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal message %d: %w", m.RowID, err)
	}
	if _, err := out.Write([]byte(prefix)); err != nil {
		return fmt.Errorf("export: write message %d: %w", m.RowID, err)
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("export: write message %d: %w", m.RowID, err)
	}
	out.records++
	return nil
}

// Finish closes every array. A chat file that somehow has no records
// still becomes valid JSON: its footer alone would not be, so an
// empty array is written explicitly.
func (e *JSONExporter) Finish() error {
	for _, f := range e.files.files {
		if f.records == 0 {
			if _, err := f.Write([]byte("[]\n")); err != nil {
				return err
			}
			continue
		}
		if _, err := f.Write([]byte(jsonFooter)); err != nil {
			return err
		}
	}
	return e.files.closeAll()
}
