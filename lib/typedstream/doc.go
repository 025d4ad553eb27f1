// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

// Package typedstream decodes the legacy binary object-archive format
// used for the message table's attributedBody column.
//
// The format is a back-reference-using, variable-width binary encoding
// with no public specification. The decoder reconstructs an ordered
// sequence of nodes mirroring on-wire order: archived objects (a class
// descriptor chain plus nested field values) and value runs (groups of
// primitive leaves decoded together). The sequence is deliberately not
// collapsed into a single rooted tree — downstream rich-text
// reconstruction needs range-length records positionally adjacent to
// the attribute dictionaries that follow them.
//
// Decoding is all-or-nothing per call: any malformed event (bad
// marker, back-reference out of range, truncated buffer) aborts with a
// typed error and partial output is discarded. The decoder holds no
// state between calls; both reference tables are scoped to a single
// Parse invocation, so concurrent decodes of separate blobs need no
// coordination.
//
// Streams that do not begin with the expected signature fail with
// [ErrNotTypedStream], which callers treat as "try the older
// streamtyped layout instead" rather than as a malformed archive.
package typedstream
