// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package body

import (
	"errors"
	"fmt"

	"github.com/deven/imessage-exporter/lib/streamtyped"
	"github.com/deven/imessage-exporter/lib/typedstream"
)

// ErrNoText reports that both the typedstream decoder and the legacy
// fallback failed to recover any text from a body blob. Callers treat
// this as a per-message outcome, not a batch-fatal error.
var ErrNoText = errors.New("body: no text recovered")

// Source identifies which decoder produced a result.
type Source int

const (
	// SourceNone is the zero value: no decoder has run. Messages that
	// carry only column text keep this value.
	SourceNone Source = iota
	// SourceTypedStream means the primary archive decoder succeeded
	// and the node sequence is available for rich-text reconstruction.
	SourceTypedStream
	// SourceLegacy means the legacy pattern decoder recovered the
	// text. No node sequence exists; the text is unstyled.
	SourceLegacy
)

func (s Source) String() string {
	switch s {
	case SourceTypedStream:
		return "typedstream"
	case SourceLegacy:
		return "legacy"
	}
	return "none"
}

// Result is the outcome of decoding a body blob.
type Result struct {
	// Text is the recovered plain string.
	Text string
	// Nodes is the decoded node sequence, empty for SourceLegacy.
	Nodes []typedstream.Node
	// Source records which decoder produced Text.
	Source Source
}

// Decode recovers the plain text of a message body. It tries the
// typedstream decoder first; on any error (or an archive that carries
// no string container) it falls back to the legacy pattern decoder.
// If both fail the error wraps ErrNoText.
func Decode(blob []byte) (Result, error) {
	nodes, primaryErr := typedstream.Parse(blob)
	if primaryErr == nil {
		if text, ok := extractText(nodes); ok {
			return Result{Text: text, Nodes: nodes, Source: SourceTypedStream}, nil
		}
		primaryErr = errors.New("archive carries no string container")
	}

	text, legacyErr := streamtyped.Parse(blob)
	if legacyErr != nil {
		return Result{}, fmt.Errorf("primary: %v; legacy: %v: %w", primaryErr, legacyErr, ErrNoText)
	}
	return Result{Text: text, Source: SourceLegacy}, nil
}

// extractText finds the message's plain string: the first string
// container in the sequence. Attributed-string wrappers nest their
// backing store one level down, so the search descends into object
// fields.
func extractText(nodes []typedstream.Node) (string, bool) {
	for i := range nodes {
		if text, ok := stringPayload(&nodes[i]); ok {
			return text, true
		}
	}
	return "", false
}

func stringPayload(node *typedstream.Node) (string, bool) {
	if node.Kind != typedstream.NodeObject {
		return "", false
	}
	if node.IsClass("NSString") {
		return node.Text()
	}
	if node.IsClass("NSAttributedString") {
		for i := range node.Fields {
			if text, ok := stringPayload(&node.Fields[i]); ok {
				return text, true
			}
		}
	}
	return "", false
}
