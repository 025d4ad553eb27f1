// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package typedstream

import "fmt"

// Stream header. Every archive starts with the encoder version, the
// literal signature string, and the writing system's version.
const (
	streamVersion       = 4
	streamSignature     = "streamtyped"
	streamSystemVersion = 1000
)

// fieldKind classifies one character of a type signature.
type fieldKind int

const (
	fieldObject     fieldKind = iota // '@'
	fieldString                      // '+'
	fieldBytes                       // '*' length-prefixed raw data
	fieldSigned                      // 'c' 's' 'i' 'l' marker-width signed
	fieldSigned64                    // 'q' fixed 8-byte signed
	fieldUnsigned                    // 'C' 'S' 'I' 'L' 'b' marker-width unsigned
	fieldUnsigned64                  // 'Q' fixed 8-byte unsigned
	fieldFloat32                     // 'f'
	fieldFloat64                     // 'd'
	fieldArray                       // '[Nc]' fixed-size byte array
)

type fieldType struct {
	kind fieldKind
	size int // fieldArray only
}

// classEntry is one slot in the class-descriptor table. Exactly one of
// the two fields is set: a type signature declared with 0x84, or a
// class descriptor chain (most-derived first) declared inside an
// object event. Back-references must resolve to the matching flavor.
type classEntry struct {
	signature []fieldType
	chain     []Class
}

// parser drives the primitive reader and the two reference tables to
// produce the ordered node sequence. All state is scoped to one Parse
// call; nothing survives it.
type parser struct {
	r          reader
	classTable []classEntry
	valueTable []Node
}

// Parse decodes an archive blob into its ordered node sequence. The
// input is never mutated and may be reused by the caller afterwards.
// Decoding is all-or-nothing: any malformed event returns a typed
// error and no nodes.
func Parse(data []byte) ([]Node, error) {
	p := &parser{r: reader{data: data}}
	if err := p.validateHeader(); err != nil {
		return nil, err
	}

	var out []Node
	for p.r.remaining() > 0 {
		b, err := p.r.peek()
		if err != nil {
			return nil, err
		}
		// Stray end markers between top-level records close objects
		// that were emitted through shared references.
		if b == tagEnd {
			p.r.skip(1)
			continue
		}
		signature, err := p.readSignature()
		if err != nil {
			return nil, err
		}
		nodes, err := p.decodeRecord(signature)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

// validateHeader checks the fixed signature prefix. Any mismatch (or a
// buffer too short to hold the prefix) reports ErrNotTypedStream so
// the caller can try the legacy decoder.
func (p *parser) validateHeader() error {
	version, err := p.r.readUint()
	if err != nil || version != streamVersion {
		return fmt.Errorf("stream version %d: %w", version, ErrNotTypedStream)
	}
	signature, err := p.r.readString()
	if err != nil || signature != streamSignature {
		return fmt.Errorf("signature %q: %w", signature, ErrNotTypedStream)
	}
	systemVersion, err := p.r.readInt()
	if err != nil || systemVersion != streamSystemVersion {
		return fmt.Errorf("system version %d: %w", systemVersion, ErrNotTypedStream)
	}
	return nil
}

// readSignature reads the type signature governing the next record:
// either a fresh declaration (appended to the class table) or a
// back-reference to an earlier one.
func (p *parser) readSignature() ([]fieldType, error) {
	b, err := p.r.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case b == tagStart:
		p.r.skip(1)
		raw, err := p.r.readLengthPrefixedBytes()
		if err != nil {
			return nil, err
		}
		signature, err := parseSignature(raw)
		if err != nil {
			return nil, err
		}
		p.classTable = append(p.classTable, classEntry{signature: signature})
		return signature, nil
	case b >= referenceBase || b == tagI16 || b == tagI32:
		entry, err := p.resolveClass()
		if err != nil {
			return nil, err
		}
		if entry.signature == nil {
			return nil, fmt.Errorf("reference resolves to a class, not a signature: %w", ErrBadBackreference)
		}
		return entry.signature, nil
	default:
		return nil, fmt.Errorf("signature marker %#02x at offset %d: %w", b, p.r.pos, ErrBadMarker)
	}
}

// resolveClass consumes a back-reference token and returns the class
// table entry it names.
func (p *parser) resolveClass() (classEntry, error) {
	token, err := p.r.readUint()
	if err != nil {
		return classEntry{}, err
	}
	if token < referenceBase {
		return classEntry{}, fmt.Errorf("class token %#x below reference base: %w", token, ErrBadBackreference)
	}
	index := token - referenceBase
	if index >= uint64(len(p.classTable)) {
		return classEntry{}, fmt.Errorf("class index %d of %d: %w", index, len(p.classTable), ErrBadBackreference)
	}
	return p.classTable[index], nil
}

// parseSignature maps type encoding characters to field kinds. An
// unknown character aborts the decode: guessing at an unknown field's
// width would desynchronize the cursor for everything after it.
func parseSignature(raw []byte) ([]fieldType, error) {
	var signature []fieldType
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; c {
		case '@':
			signature = append(signature, fieldType{kind: fieldObject})
		case '+':
			signature = append(signature, fieldType{kind: fieldString})
		case '*':
			signature = append(signature, fieldType{kind: fieldBytes})
		case 'c', 's', 'i', 'l':
			signature = append(signature, fieldType{kind: fieldSigned})
		case 'q':
			signature = append(signature, fieldType{kind: fieldSigned64})
		case 'C', 'S', 'I', 'L', 'b', 'B':
			signature = append(signature, fieldType{kind: fieldUnsigned})
		case 'Q':
			signature = append(signature, fieldType{kind: fieldUnsigned64})
		case 'f':
			signature = append(signature, fieldType{kind: fieldFloat32})
		case 'd':
			signature = append(signature, fieldType{kind: fieldFloat64})
		case '[':
			size := 0
			j := i + 1
			for j < len(raw) && raw[j] >= '0' && raw[j] <= '9' {
				size = size*10 + int(raw[j]-'0')
				j++
			}
			for j < len(raw) && raw[j] != ']' {
				j++
			}
			if j >= len(raw) {
				return nil, fmt.Errorf("unterminated array encoding %q: %w", raw, ErrUnsupportedType)
			}
			signature = append(signature, fieldType{kind: fieldArray, size: size})
			i = j
		default:
			return nil, fmt.Errorf("type encoding %q: %w", c, ErrUnsupportedType)
		}
	}
	if len(signature) == 0 {
		return nil, fmt.Errorf("empty type signature: %w", ErrBadMarker)
	}
	return signature, nil
}

// decodeRecord decodes the values a type signature describes.
// Consecutive primitives accumulate into a single value run; each
// object becomes its own node, preserving on-wire order.
func (p *parser) decodeRecord(signature []fieldType) ([]Node, error) {
	var nodes []Node
	var run []Value
	flush := func() {
		if len(run) > 0 {
			nodes = append(nodes, Node{Kind: NodeValues, Values: run})
			run = nil
		}
	}

	for _, field := range signature {
		switch field.kind {
		case fieldObject:
			flush()
			object, err := p.decodeObject()
			if err != nil {
				return nil, err
			}
			if object != nil {
				nodes = append(nodes, *object)
			}
		case fieldString:
			s, err := p.r.readString()
			if err != nil {
				return nil, err
			}
			run = append(run, Value{Kind: ValueString, Str: s})
		case fieldBytes:
			raw, err := p.r.readLengthPrefixedBytes()
			if err != nil {
				return nil, err
			}
			run = append(run, Value{Kind: ValueBytes, Bytes: append([]byte(nil), raw...)})
		case fieldSigned:
			v, err := p.r.readInt()
			if err != nil {
				return nil, err
			}
			run = append(run, Value{Kind: ValueSigned, Int: v})
		case fieldSigned64:
			v, err := p.r.readI64()
			if err != nil {
				return nil, err
			}
			run = append(run, Value{Kind: ValueSigned, Int: v})
		case fieldUnsigned:
			v, err := p.r.readUint()
			if err != nil {
				return nil, err
			}
			run = append(run, Value{Kind: ValueUnsigned, Uint: v})
		case fieldUnsigned64:
			v, err := p.r.readU64()
			if err != nil {
				return nil, err
			}
			run = append(run, Value{Kind: ValueUnsigned, Uint: v})
		case fieldFloat32:
			v, err := p.r.readFloat(4)
			if err != nil {
				return nil, err
			}
			run = append(run, Value{Kind: ValueFloat, Float: v})
		case fieldFloat64:
			v, err := p.r.readFloat(8)
			if err != nil {
				return nil, err
			}
			run = append(run, Value{Kind: ValueFloat, Float: v})
		case fieldArray:
			raw, err := p.r.take(field.size)
			if err != nil {
				return nil, err
			}
			run = append(run, Value{Kind: ValueBytes, Bytes: append([]byte(nil), raw...)})
		}
	}
	flush()
	return nodes, nil
}

// decodeObject decodes one object event: a fresh instance (class chain
// plus field values up to the end marker), a nil object, or a shared
// reference to an already-decoded value. Shared references emit the
// stored node unchanged — the same logical value reappears at a second
// position in the output sequence.
func (p *parser) decodeObject() (*Node, error) {
	b, err := p.r.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case b == tagNil:
		p.r.skip(1)
		return nil, nil

	case b == tagStart:
		p.r.skip(1)
		chain, err := p.readClassChain()
		if err != nil {
			return nil, err
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("object with empty class chain at offset %d: %w", p.r.pos, ErrBadMarker)
		}
		classes := oldestFirst(chain)

		// Reserve the object's slot before its fields decode so the
		// value table's index order matches declaration order.
		slot := len(p.valueTable)
		p.valueTable = append(p.valueTable, Node{Kind: NodeObject, Classes: classes})

		var fields []Node
		for {
			b, err := p.r.peek()
			if err != nil {
				return nil, err
			}
			if b == tagEnd {
				p.r.skip(1)
				break
			}
			signature, err := p.readSignature()
			if err != nil {
				return nil, err
			}
			nodes, err := p.decodeRecord(signature)
			if err != nil {
				return nil, err
			}
			fields = append(fields, nodes...)
		}

		node := Node{Kind: NodeObject, Classes: classes, Fields: fields}
		p.valueTable[slot] = node
		return &node, nil

	case b >= referenceBase || b == tagI16 || b == tagI32:
		token, err := p.r.readUint()
		if err != nil {
			return nil, err
		}
		if token < referenceBase {
			return nil, fmt.Errorf("value token %#x below reference base: %w", token, ErrBadBackreference)
		}
		index := token - referenceBase
		if index >= uint64(len(p.valueTable)) {
			return nil, fmt.Errorf("value index %d of %d: %w", index, len(p.valueTable), ErrBadBackreference)
		}
		node := p.valueTable[index]
		return &node, nil

	default:
		return nil, fmt.Errorf("object marker %#02x at offset %d: %w", b, p.r.pos, ErrBadMarker)
	}
}

// readClassChain reads an object's class descriptor chain. On the wire
// the chain runs most-derived first; each link is either a fresh
// declaration (name plus version) or a back-reference covering the
// remainder of the chain. A nil marker terminates at the root class.
// Every freshly declared link registers a suffix entry in the class
// table so later objects can reference it.
func (p *parser) readClassChain() ([]Class, error) {
	var chain []Class
	declared := 0

	for done := false; !done; {
		b, err := p.r.peek()
		if err != nil {
			return nil, err
		}
		switch {
		case b == tagNil:
			p.r.skip(1)
			done = true
		case b == tagStart:
			p.r.skip(1)
			name, err := p.r.readString()
			if err != nil {
				return nil, err
			}
			version, err := p.r.readUint()
			if err != nil {
				return nil, err
			}
			chain = append(chain, Class{Name: name, Version: version})
			declared++
		case b >= referenceBase || b == tagI16 || b == tagI32:
			entry, err := p.resolveClass()
			if err != nil {
				return nil, err
			}
			if entry.chain == nil {
				return nil, fmt.Errorf("reference resolves to a signature, not a class: %w", ErrBadBackreference)
			}
			chain = append(chain, entry.chain...)
			done = true
		default:
			return nil, fmt.Errorf("class marker %#02x at offset %d: %w", b, p.r.pos, ErrBadMarker)
		}
	}

	for i := 0; i < declared; i++ {
		suffix := make([]Class, len(chain)-i)
		copy(suffix, chain[i:])
		p.classTable = append(p.classTable, classEntry{chain: suffix})
	}
	return chain, nil
}

// oldestFirst reverses a most-derived-first chain into the stored
// order (oldest ancestor first).
func oldestFirst(chain []Class) []Class {
	out := make([]Class, len(chain))
	for i, c := range chain {
		out[len(chain)-1-i] = c
	}
	return out
}
