// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

// Package export writes decoded messages to per-chat output files.
//
// Each chat gets its own file in the output directory, created lazily
// the first time a message for that chat arrives; messages with no
// chat membership collect in an orphaned file. Two formats exist: a
// human-readable text transcript and a JSON array of message records.
// Either can be wrapped in zstd compression.
//
// Exporters buffer aggressively and only guarantee durability after
// Finish, which closes every open file.
package export
