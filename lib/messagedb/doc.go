// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

// Package messagedb reads message rows out of a Messages database
// (chat.db) and turns their body blobs into renderable text.
//
// The database is always opened read-only: the source file is the
// live store of another application and must never be mutated, not
// even by WAL housekeeping. All access goes through a fixed-size
// connection pool; individual connections are not safe for concurrent
// use, so each goroutine takes its own connection and puts it back
// when done.
//
// The message table's schema has changed across database generations.
// Queries are written for the newest schema first and fall back to
// progressively older column sets when preparation fails, so the same
// binary handles databases from older systems without configuration.
//
// Body decoding is per-row and isolated: a blob that cannot be decoded
// marks that one message as having no text and never aborts a batch.
package messagedb
