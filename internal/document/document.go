package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// DeclaredSizeMultiplier scales the serialized length into the fileSize the
// context store receives. The store has always been sent length*16 and nobody
// has confirmed what unit it expects, so the value is kept as-is.
const DeclaredSizeMultiplier = 16

// Document is a fetched schema document. Raw holds the compacted bytes the
// origin sent; key order, number text and string escapes are kept as-is and
// never modified after Decode.
type Document struct {
	Raw       json.RawMessage
	FetchedAt time.Time
}

// Decode reads a single JSON value from r and compacts it.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding document: unexpected data after top-level value")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return &Document{Raw: buf.Bytes(), FetchedAt: time.Now().UTC()}, nil
}

// Parse is Decode over a string.
func Parse(s string) (*Document, error) {
	return Decode(strings.NewReader(s))
}

// Empty reports whether the origin produced no usable value: a nil document
// or one whose value is falsy (null, false, 0 or ""). Empty objects and
// arrays count as present.
func (d *Document) Empty() bool {
	if d == nil || len(d.Raw) == 0 {
		return true
	}
	switch d.Raw[0] {
	case 'n', 'f':
		return true
	case '"':
		return string(d.Raw) == `""`
	case '{', '[', 't':
		return false
	}
	f, err := strconv.ParseFloat(string(d.Raw), 64)
	return err == nil && f == 0
}

// Serialize returns the content sent on upload: the compacted bytes as
// received, with no trailing newline.
func (d *Document) Serialize() (string, error) {
	if d == nil || len(d.Raw) == 0 {
		return "", errors.New("serializing document: no content")
	}
	return string(d.Raw), nil
}

// object returns the root's members, or nil when the root is not an object.
func (d *Document) object() map[string]json.RawMessage {
	if d == nil || len(d.Raw) == 0 || d.Raw[0] != '{' {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(d.Raw, &m); err != nil {
		return nil
	}
	return m
}

// TopLevelCount returns the number of keys in the root object, or 0 when the
// root is not an object.
func (d *Document) TopLevelCount() int {
	return len(d.object())
}

// PathCount returns the number of entries under the top-level "paths" key.
func (d *Document) PathCount() int {
	paths, ok := d.object()["paths"]
	if !ok || len(paths) == 0 || paths[0] != '{' {
		return 0
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(paths, &m); err != nil {
		return 0
	}
	return len(m)
}

// Length counts s in UTF-16 code units, which is how the store has always
// measured content.
func Length(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// DeclaredSize is the fileSize reported for serialized content.
func DeclaredSize(serialized string) int {
	return Length(serialized) * DeclaredSizeMultiplier
}
