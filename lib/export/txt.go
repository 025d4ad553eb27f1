// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"fmt"
	"strings"

	"github.com/deven/imessage-exporter/lib/body"
	"github.com/deven/imessage-exporter/lib/messagedb"
)

// TxtExporter renders a human-readable transcript, one file per chat.
type TxtExporter struct {
	files *fileSet
}

// NewTxt creates a transcript exporter writing into opts.Path.
func NewTxt(opts Options) (*TxtExporter, error) {
	files, err := newFileSet(opts, ".txt")
	if err != nil {
		return nil, err
	}
	return &TxtExporter{files: files}, nil
}

func (e *TxtExporter) Export(m *messagedb.Message) error {
	out, _, err := e.files.get(chatKey(m))
	if err != nil {
		return err
	}
	if _, err := out.Write([]byte(formatMessage(m))); err != nil {
		return fmt.Errorf("export: write message %d: %w", m.RowID, err)
	}
	out.records++
	return nil
}

func (e *TxtExporter) Finish() error { return e.files.closeAll() }

func formatMessage(m *messagedb.Message) string {
	var b strings.Builder

	b.WriteString(m.Time().Format("Jan 02, 2006  3:04:05 PM"))
	if m.IsFromMe {
		b.WriteString("\nMe")
	} else {
		fmt.Fprintf(&b, "\nHandle %d", m.HandleID)
	}
	if m.Service != "" && m.Service != "iMessage" {
		fmt.Fprintf(&b, " (%s)", m.Service)
	}
	b.WriteByte('\n')

	if ann, ok := m.Announcement(); ok {
		switch ann.Kind {
		case messagedb.AnnouncementNameChange:
			fmt.Fprintf(&b, "renamed the conversation to %q\n\n", ann.Title)
		case messagedb.AnnouncementUnsent:
			b.WriteString("unsent a message\n\n")
		default:
			fmt.Fprintf(&b, "%s\n\n", ann.Kind)
		}
		return b.String()
	}

	if tb, ok := m.Tapback(); ok {
		verb := tb.Kind.String()
		if tb.Kind == messagedb.TapbackEmoji && tb.Emoji != "" {
			verb = fmt.Sprintf("reacted %s to", tb.Emoji)
		}
		if tb.Removed {
			verb = "removed " + verb + " from"
		}
		fmt.Fprintf(&b, "%s %s\n\n", verb, m.AssociatedMessageGUID)
		return b.String()
	}

	if m.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", m.Subject)
	}
	if m.IsReply() {
		fmt.Fprintf(&b, "Reply to %s\n", m.ThreadOriginatorGUID)
	}

	writeBody(&b, m)

	if exp, ok := m.Expressive(); ok {
		kind := "bubble"
		if exp.Screen {
			kind = "screen"
		}
		fmt.Fprintf(&b, "Sent with %s effect: %s\n", kind, exp.Name)
	}
	if m.Variant() == messagedb.VariantEdited {
		fmt.Fprintf(&b, "Edited %s\n", m.TimeEdited().Format("Jan 02, 2006  3:04:05 PM"))
	}

	b.WriteByte('\n')
	return b.String()
}

// writeBody emits the text with styled ranges annotated inline and
// placeholder positions called out, since plain text cannot carry the
// attributes themselves.
func writeBody(b *strings.Builder, m *messagedb.Message) {
	if m.Text == "" {
		b.WriteString("<no text>\n")
		return
	}
	b.WriteString(m.Text)
	b.WriteByte('\n')

	for _, run := range m.Runs {
		if run.Effect.Kind == body.EffectPlain {
			continue
		}
		segment := body.Slice(m.Text, run.Start, run.End)
		fmt.Fprintf(b, "  [%s] %q\n", describeEffect(run.Effect), segment)
	}
	for _, ph := range m.Placeholders {
		fmt.Fprintf(b, "  <%s at offset %d>\n", ph.Kind, ph.Position)
	}
}

func describeEffect(e body.Effect) string {
	switch e.Kind {
	case body.EffectLink:
		if e.Target != "" {
			return "link " + e.Target
		}
		return "link"
	case body.EffectMention:
		if e.Target != "" {
			return "mention " + e.Target
		}
		return "mention"
	case body.EffectAnimated:
		return "animated " + e.Animation.String()
	case body.EffectConversion:
		return "convertible " + e.Unit.String()
	case body.EffectUnknown:
		return "unknown attribute " + e.Key
	default:
		return e.Kind.String()
	}
}
