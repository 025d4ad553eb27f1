// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"fmt"

	"github.com/deven/imessage-exporter/lib/messagedb"
)

// Exporter writes messages to their per-chat destination. Exporters
// are not safe for concurrent use; an export run feeds one goroutine.
type Exporter interface {
	// Export writes one message. The message must already have had
	// its text generated.
	Export(m *messagedb.Message) error

	// Finish flushes and closes all output files. The exporter is
	// unusable afterwards.
	Finish() error
}

// New builds the exporter for a format name from config.
func New(format string, opts Options) (Exporter, error) {
	switch format {
	case "txt":
		return NewTxt(opts)
	case "json":
		return NewJSON(opts)
	default:
		return nil, fmt.Errorf("export: unknown format %q", format)
	}
}

// chatKey maps a message to its output file key.
func chatKey(m *messagedb.Message) int64 {
	if m.HasChat {
		return m.ChatID
	}
	return chatOrphaned
}
