// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package messagedb_test

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/deven/imessage-exporter/lib/body"
	"github.com/deven/imessage-exporter/lib/messagedb"
)

const schemaNewest = `
CREATE TABLE message (
	ROWID INTEGER PRIMARY KEY,
	guid TEXT NOT NULL,
	text TEXT,
	service TEXT,
	handle_id INTEGER DEFAULT 0,
	subject TEXT,
	date INTEGER DEFAULT 0,
	date_read INTEGER DEFAULT 0,
	date_delivered INTEGER DEFAULT 0,
	is_from_me INTEGER DEFAULT 0,
	is_read INTEGER DEFAULT 0,
	item_type INTEGER DEFAULT 0,
	group_title TEXT,
	group_action_type INTEGER DEFAULT 0,
	associated_message_guid TEXT,
	associated_message_type INTEGER DEFAULT 0,
	balloon_bundle_id TEXT,
	expressive_send_style_id TEXT,
	thread_originator_guid TEXT,
	thread_originator_part TEXT,
	date_edited INTEGER DEFAULT 0,
	associated_message_emoji TEXT,
	attributedBody BLOB,
	payload_data BLOB,
	message_summary_info BLOB
);
CREATE TABLE chat_message_join (chat_id INTEGER, message_id INTEGER);
CREATE TABLE message_attachment_join (message_id INTEGER, attachment_id INTEGER);
CREATE TABLE chat_recoverable_message_join (chat_id INTEGER, message_id INTEGER);
`

// schemaLegacy drops the columns and tables the newest query needs,
// forcing the oldest query generation.
const schemaLegacy = `
CREATE TABLE message (
	ROWID INTEGER PRIMARY KEY,
	guid TEXT NOT NULL,
	text TEXT,
	service TEXT,
	handle_id INTEGER DEFAULT 0,
	subject TEXT,
	date INTEGER DEFAULT 0,
	date_read INTEGER DEFAULT 0,
	date_delivered INTEGER DEFAULT 0,
	is_from_me INTEGER DEFAULT 0,
	is_read INTEGER DEFAULT 0,
	item_type INTEGER DEFAULT 0,
	group_title TEXT,
	group_action_type INTEGER DEFAULT 0,
	associated_message_guid TEXT,
	associated_message_type INTEGER DEFAULT 0,
	balloon_bundle_id TEXT,
	expressive_send_style_id TEXT,
	attributedBody BLOB
);
CREATE TABLE chat_message_join (chat_id INTEGER, message_id INTEGER);
CREATE TABLE message_attachment_join (message_id INTEGER, attachment_id INTEGER);
`

// legacyBlob frames text in the pre-archive body layout, the easiest
// valid blob to construct in a fixture.
func legacyBlob(text string) []byte {
	blob := []byte{0x01, 0x2B}
	blob = binary.BigEndian.AppendUint32(blob, 700000000)
	blob = append(blob, 0x06, 0, 0, 0, 0, 0, 0)
	blob = append(blob, text...)
	return append(blob, 0x86, 0x84)
}

func createTestDB(t *testing.T, schema string, inserts []string, args [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		t.Fatalf("create fixture db: %v", err)
	}
	defer conn.Close()
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	for i, stmt := range inserts {
		var opts *sqlitex.ExecOptions
		if args[i] != nil {
			opts = &sqlitex.ExecOptions{Args: args[i]}
		}
		if err := sqlitex.Execute(conn, stmt, opts); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	return path
}

func newestFixture(t *testing.T) string {
	t.Helper()
	return createTestDB(t, schemaNewest,
		[]string{
			`INSERT INTO message (ROWID, guid, service, date, is_from_me, attributedBody)
			 VALUES (1, 'GUID-1', 'iMessage', 1000000000, 1, ?)`,
			`INSERT INTO message (ROWID, guid, text, service, date)
			 VALUES (2, 'GUID-2', 'plain column text', 'SMS', 2000000000)`,
			`INSERT INTO message (ROWID, guid, service, date) VALUES (3, 'GUID-3', 'iMessage', 3000000000)`,
			`INSERT INTO message (ROWID, guid, service, date, associated_message_guid, associated_message_type)
			 VALUES (4, 'GUID-4', 'iMessage', 4000000000, 'p:0/GUID-1', 2000)`,
			`INSERT INTO chat_message_join (chat_id, message_id) VALUES (7, 1), (7, 2), (7, 4)`,
			`INSERT INTO message_attachment_join (message_id, attachment_id) VALUES (1, 100)`,
		},
		[][]any{{legacyBlob("Hello from blob")}, nil, nil, nil, nil, nil})
}

func openTestDB(t *testing.T, path string) *messagedb.DB {
	t.Helper()
	db, err := messagedb.Open(messagedb.Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func takeConn(t *testing.T, db *messagedb.DB) *sqlite.Conn {
	t.Helper()
	conn, err := db.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	t.Cleanup(func() { db.Put(conn) })
	return conn
}

func TestOpenMissingDatabase(t *testing.T) {
	if _, err := messagedb.Open(messagedb.Config{Path: filepath.Join(t.TempDir(), "absent.db")}); err == nil {
		t.Error("Open accepted a missing database")
	}
	if _, err := messagedb.Open(messagedb.Config{}); err == nil {
		t.Error("Open accepted an empty path")
	}
}

func TestStreamMessages(t *testing.T) {
	db := openTestDB(t, newestFixture(t))
	conn := takeConn(t, db)

	var messages []*messagedb.Message
	err := messagedb.StreamMessages(context.Background(), conn, func(m *messagedb.Message) error {
		messages = append(messages, m)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamMessages: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(messages))
	}
	for i, want := range []string{"GUID-1", "GUID-2", "GUID-3", "GUID-4"} {
		if messages[i].GUID != want {
			t.Errorf("message %d guid = %q, want %q (date order)", i, messages[i].GUID, want)
		}
	}

	first := messages[0]
	if !first.IsFromMe || !first.HasChat || first.ChatID != 7 {
		t.Errorf("first message = %+v", first)
	}
	if first.NumAttachments != 1 || !first.HasAttachments() {
		t.Errorf("NumAttachments = %d, want 1", first.NumAttachments)
	}
	if messages[2].HasChat {
		t.Error("message 3 has no chat join but HasChat is set")
	}
	if messages[3].AssociatedMessageType != 2000 {
		t.Errorf("tapback type = %d", messages[3].AssociatedMessageType)
	}
}

func TestGenerateText(t *testing.T) {
	db := openTestDB(t, newestFixture(t))
	conn := takeConn(t, db)

	byGUID := map[string]*messagedb.Message{}
	err := messagedb.StreamMessages(context.Background(), conn, func(m *messagedb.Message) error {
		byGUID[m.GUID] = m
		return nil
	})
	if err != nil {
		t.Fatalf("StreamMessages: %v", err)
	}

	blobMsg := byGUID["GUID-1"]
	if err := blobMsg.GenerateText(conn, nil); err != nil {
		t.Fatalf("GenerateText from blob: %v", err)
	}
	if blobMsg.Text != "Hello from blob" {
		t.Errorf("blob text = %q", blobMsg.Text)
	}
	if blobMsg.BodySource != body.SourceLegacy {
		t.Errorf("blob source = %v", blobMsg.BodySource)
	}

	columnMsg := byGUID["GUID-2"]
	if err := columnMsg.GenerateText(conn, nil); err != nil {
		t.Fatalf("GenerateText from column: %v", err)
	}
	if columnMsg.Text != "plain column text" {
		t.Errorf("column text = %q", columnMsg.Text)
	}
	// No decoder ran, so the source must stay the zero value. The
	// diagnostic counters tell column-only messages apart by it.
	if columnMsg.BodySource != body.SourceNone {
		t.Errorf("column source = %v, want none", columnMsg.BodySource)
	}

	empty := byGUID["GUID-3"]
	if err := empty.GenerateText(conn, nil); !errors.Is(err, messagedb.ErrNoText) {
		t.Errorf("empty message: got %v, want ErrNoText", err)
	}
}

func TestSchemaFallback(t *testing.T) {
	path := createTestDB(t, schemaLegacy,
		[]string{
			`INSERT INTO message (ROWID, guid, text, service, date) VALUES (1, 'OLD-1', 'vintage', 'iMessage', 500)`,
			`INSERT INTO chat_message_join (chat_id, message_id) VALUES (3, 1)`,
		},
		[][]any{nil, nil})
	db := openTestDB(t, path)
	conn := takeConn(t, db)

	var messages []*messagedb.Message
	err := messagedb.StreamMessages(context.Background(), conn, func(m *messagedb.Message) error {
		messages = append(messages, m)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamMessages on old schema: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	m := messages[0]
	if m.GUID != "OLD-1" || m.Text != "vintage" || m.ChatID != 3 {
		t.Errorf("message = %+v", m)
	}
	if m.ThreadOriginatorGUID != "" || m.DateEdited != 0 || m.WasDeleted {
		t.Errorf("missing columns leaked values: %+v", m)
	}
}

func TestCountMessages(t *testing.T) {
	db := openTestDB(t, newestFixture(t))
	conn := takeConn(t, db)

	count, err := messagedb.CountMessages(conn)
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
}

func TestMessageByRowID(t *testing.T) {
	db := openTestDB(t, newestFixture(t))
	conn := takeConn(t, db)

	m, err := messagedb.MessageByRowID(context.Background(), conn, 2)
	if err != nil {
		t.Fatalf("MessageByRowID: %v", err)
	}
	if m.GUID != "GUID-2" {
		t.Errorf("guid = %q", m.GUID)
	}

	if _, err := messagedb.MessageByRowID(context.Background(), conn, 999); err == nil {
		t.Error("MessageByRowID found a nonexistent row")
	}
}

func TestConnectionsAreReadOnly(t *testing.T) {
	db := openTestDB(t, newestFixture(t))
	conn := takeConn(t, db)

	err := sqlitex.Execute(conn, "DELETE FROM message", nil)
	if err == nil {
		t.Fatal("a write statement succeeded on a read-only connection")
	}
}
