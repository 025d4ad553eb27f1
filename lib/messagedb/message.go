// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package messagedb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/deven/imessage-exporter/lib/body"
)

// ErrNoText is returned by GenerateText when a message has neither a
// decodable body blob nor a plain text column.
var ErrNoText = errors.New("messagedb: message has no text")

// Message is one row of the message table, joined with its chat
// membership. Text, Runs, Placeholders and BodySource are empty until
// GenerateText runs.
type Message struct {
	RowID                 int64
	GUID                  string
	Text                  string
	Service               string
	HandleID              int64
	Subject               string
	Date                  int64
	DateRead              int64
	DateDelivered         int64
	IsFromMe              bool
	IsRead                bool
	ItemType              int64
	GroupTitle            string
	GroupActionType       int64
	AssociatedMessageGUID string
	AssociatedMessageType int64
	BalloonBundleID       string
	ExpressiveSendStyleID string
	ThreadOriginatorGUID  string
	ThreadOriginatorPart  string
	DateEdited            int64
	AssociatedEmoji       string
	ChatID                int64
	HasChat               bool
	NumAttachments        int64
	DeletedFromChatID     int64
	WasDeleted            bool
	NumReplies            int64

	Runs         []body.Run
	Placeholders []body.Placeholder
	BodySource   body.Source
}

// The three query generations select the same column list in the same
// order; older schemas substitute NULL for columns they lack so that
// positional reads below stay valid for all of them.
const (
	selectColumns = `
    m.ROWID, m.guid, m.text, m.service, m.handle_id, m.subject,
    m.date, m.date_read, m.date_delivered, m.is_from_me, m.is_read,
    m.item_type, m.group_title, m.group_action_type,
    m.associated_message_guid, m.associated_message_type,
    m.balloon_bundle_id, m.expressive_send_style_id`

	queryNewest = `SELECT` + selectColumns + `,
    m.thread_originator_guid, m.thread_originator_part, m.date_edited,
    m.associated_message_emoji,
    c.chat_id,
    (SELECT COUNT(*) FROM message_attachment_join a WHERE m.ROWID = a.message_id) AS num_attachments,
    d.chat_id AS deleted_from,
    (SELECT COUNT(*) FROM message r WHERE r.thread_originator_guid = m.guid) AS num_replies
FROM message AS m
LEFT JOIN chat_message_join AS c ON m.ROWID = c.message_id
LEFT JOIN chat_recoverable_message_join AS d ON m.ROWID = d.message_id
ORDER BY m.date`

	queryThreaded = `SELECT` + selectColumns + `,
    m.thread_originator_guid, m.thread_originator_part, m.date_edited,
    NULL AS associated_message_emoji,
    c.chat_id,
    (SELECT COUNT(*) FROM message_attachment_join a WHERE m.ROWID = a.message_id) AS num_attachments,
    NULL AS deleted_from,
    (SELECT COUNT(*) FROM message r WHERE r.thread_originator_guid = m.guid) AS num_replies
FROM message AS m
LEFT JOIN chat_message_join AS c ON m.ROWID = c.message_id
ORDER BY m.date`

	queryLegacy = `SELECT` + selectColumns + `,
    NULL AS thread_originator_guid, NULL AS thread_originator_part,
    NULL AS date_edited, NULL AS associated_message_emoji,
    c.chat_id,
    (SELECT COUNT(*) FROM message_attachment_join a WHERE m.ROWID = a.message_id) AS num_attachments,
    NULL AS deleted_from,
    0 AS num_replies
FROM message AS m
LEFT JOIN chat_message_join AS c ON m.ROWID = c.message_id
ORDER BY m.date`
)

// streamQueries is ordered newest schema first; the first one that
// prepares against the open database wins.
var streamQueries = []string{queryNewest, queryThreaded, queryLegacy}

// StreamMessages runs fn once per message row in date order. A non-nil
// error from fn stops the stream and is returned. The query adapts to
// the database's schema generation automatically.
func StreamMessages(ctx context.Context, conn *sqlite.Conn, fn func(*Message) error) error {
	var firstErr error
	for _, query := range streamQueries {
		stmt, _, err := conn.PrepareTransient(query)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		err = stepMessages(ctx, stmt, fn)
		if ferr := stmt.Finalize(); err == nil {
			err = ferr
		}
		return err
	}
	return fmt.Errorf("messagedb: no message query matches this schema: %w", firstErr)
}

func stepMessages(ctx context.Context, stmt *sqlite.Stmt, fn func(*Message) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := stmt.Step()
		if err != nil {
			return fmt.Errorf("messagedb: step message row: %w", err)
		}
		if !ok {
			return nil
		}
		msg := scanMessage(stmt)
		if err := fn(msg); err != nil {
			return err
		}
	}
}

// CountMessages returns the total number of rows in the message table.
func CountMessages(conn *sqlite.Conn) (int64, error) {
	stmt, _, err := conn.PrepareTransient("SELECT COUNT(*) FROM message")
	if err != nil {
		return 0, fmt.Errorf("messagedb: count messages: %w", err)
	}
	defer stmt.Finalize()
	ok, err := stmt.Step()
	if err != nil {
		return 0, fmt.Errorf("messagedb: count messages: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("messagedb: count messages: no result row")
	}
	return stmt.ColumnInt64(0), nil
}

// MessageByRowID fetches a single message. Used by the diagnostic
// surface to inspect one row's decode in isolation.
func MessageByRowID(ctx context.Context, conn *sqlite.Conn, rowid int64) (*Message, error) {
	var found *Message
	err := StreamMessages(ctx, conn, func(m *Message) error {
		if m.RowID == rowid {
			found = m
			return errStopStream
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopStream) {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("messagedb: no message with rowid %d", rowid)
	}
	return found, nil
}

var errStopStream = errors.New("stop stream")

func scanMessage(stmt *sqlite.Stmt) *Message {
	m := &Message{
		RowID:                 stmt.ColumnInt64(0),
		GUID:                  stmt.ColumnText(1),
		Text:                  stmt.ColumnText(2),
		Service:               stmt.ColumnText(3),
		HandleID:              stmt.ColumnInt64(4),
		Subject:               stmt.ColumnText(5),
		Date:                  stmt.ColumnInt64(6),
		DateRead:              stmt.ColumnInt64(7),
		DateDelivered:         stmt.ColumnInt64(8),
		IsFromMe:              stmt.ColumnInt64(9) != 0,
		IsRead:                stmt.ColumnInt64(10) != 0,
		ItemType:              stmt.ColumnInt64(11),
		GroupTitle:            stmt.ColumnText(12),
		GroupActionType:       stmt.ColumnInt64(13),
		AssociatedMessageGUID: stmt.ColumnText(14),
		AssociatedMessageType: stmt.ColumnInt64(15),
		BalloonBundleID:       stmt.ColumnText(16),
		ExpressiveSendStyleID: stmt.ColumnText(17),
		ThreadOriginatorGUID:  stmt.ColumnText(18),
		ThreadOriginatorPart:  stmt.ColumnText(19),
		DateEdited:            stmt.ColumnInt64(20),
		AssociatedEmoji:       stmt.ColumnText(21),
		NumAttachments:        stmt.ColumnInt64(23),
		NumReplies:            stmt.ColumnInt64(25),
	}
	if !stmt.ColumnIsNull(22) {
		m.ChatID = stmt.ColumnInt64(22)
		m.HasChat = true
	}
	if !stmt.ColumnIsNull(24) {
		m.DeletedFromChatID = stmt.ColumnInt64(24)
		m.WasDeleted = true
	}
	return m
}

// Blob columns that hold per-message binary payloads.
const (
	columnAttributedBody     = "attributedBody"
	columnPayloadData        = "payload_data"
	columnMessageSummaryInfo = "message_summary_info"
)

// blob reads an entire blob column for this message. A NULL column
// yields a nil slice and no error.
func (m *Message) blob(conn *sqlite.Conn, column string) ([]byte, error) {
	b, err := conn.OpenBlob("main", "message", column, m.RowID, false)
	if err != nil {
		// SQLite reports a NULL blob as an open error ("cannot open
		// value of type null"); callers treat an absent payload the
		// same as an empty one.
		if strings.Contains(strings.ToLower(err.Error()), "null") {
			return nil, nil
		}
		return nil, fmt.Errorf("messagedb: open %s blob for rowid %d: %w", column, m.RowID, err)
	}
	defer b.Close()
	data, err := io.ReadAll(b)
	if err != nil {
		return nil, fmt.Errorf("messagedb: read %s blob for rowid %d: %w", column, m.RowID, err)
	}
	return data, nil
}

// AttributedBody returns the raw body archive, or nil if the message
// stores its text only in the plain text column.
func (m *Message) AttributedBody(conn *sqlite.Conn) ([]byte, error) {
	return m.blob(conn, columnAttributedBody)
}

// PayloadData returns the raw app payload blob for balloon messages.
func (m *Message) PayloadData(conn *sqlite.Conn) ([]byte, error) {
	return m.blob(conn, columnPayloadData)
}

// GenerateText resolves the message's displayable text. The body
// archive wins when it decodes; otherwise the plain text column is
// kept as-is. Both empty is ErrNoText. A corrupt archive on a message
// that still has column text is not an error: the column text stands.
//
// A reconstruction failure means the decoder and reconstructor
// disagree about the text, a bug worth surfacing, so it is logged
// before the runs are dropped. A nil logger discards it.
func (m *Message) GenerateText(conn *sqlite.Conn, logger *slog.Logger) error {
	blob, err := m.AttributedBody(conn)
	if err != nil {
		return err
	}
	if len(blob) > 0 {
		res, derr := body.Decode(blob)
		if derr == nil {
			m.Text = res.Text
			m.BodySource = res.Source
			runs, placeholders, rerr := body.Reconstruct(res.Text, res.Nodes)
			if rerr == nil {
				m.Runs = body.WithPlainGaps(runs, body.Length(res.Text))
				m.Placeholders = placeholders
			} else if logger != nil {
				logger.Warn("dropping attribute runs", "rowid", m.RowID, "error", rerr)
			}
			return nil
		}
	}
	if m.Text != "" {
		return nil
	}
	return fmt.Errorf("%w: rowid %d", ErrNoText, m.RowID)
}

// Apple stores timestamps as offsets from 2001-01-01 00:00:00 UTC,
// in nanoseconds on modern databases and whole seconds on the oldest.
const appleEpochUnix = 978307200

func appleTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	// A seconds-denominated value large enough to be mistaken for
	// nanoseconds would be tens of thousands of years from the epoch.
	if v > 1_000_000_000_000 {
		return time.Unix(appleEpochUnix+v/1_000_000_000, v%1_000_000_000).UTC()
	}
	return time.Unix(appleEpochUnix+v, 0).UTC()
}

// Time is the message's send timestamp.
func (m *Message) Time() time.Time { return appleTime(m.Date) }

// TimeRead is when the recipient read the message, or zero.
func (m *Message) TimeRead() time.Time { return appleTime(m.DateRead) }

// TimeDelivered is when the message was delivered, or zero.
func (m *Message) TimeDelivered() time.Time { return appleTime(m.DateDelivered) }

// TimeEdited is when the message was last edited, or zero.
func (m *Message) TimeEdited() time.Time { return appleTime(m.DateEdited) }

// IsReply reports whether the message is a threaded reply.
func (m *Message) IsReply() bool { return m.ThreadOriginatorGUID != "" }

// HasAttachments reports whether any attachment rows join this message.
func (m *Message) HasAttachments() bool { return m.NumAttachments > 0 }
