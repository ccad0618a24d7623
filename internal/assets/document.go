package assets

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Document is an off-chain token metadata document. Unknown fields are kept
// so the uploaded JSON carries everything the source provided.
type Document struct {
	fields map[string]any
}

// ParseDocument decodes a metadata JSON object. Numbers stay json.Number so
// large integers survive the round trip to the uploaded copy unchanged.
func ParseDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("metadata must be a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("metadata has trailing data after the JSON object")
	}
	return &Document{fields: fields}, nil
}

// NewDocument builds a document from explicit fields.
func NewDocument(fields map[string]any) *Document {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return &Document{fields: cp}
}

// Name returns the document's "name" field.
func (d *Document) Name() string {
	if d == nil {
		return ""
	}
	name, _ := d.fields["name"].(string)
	return strings.TrimSpace(name)
}

// Image returns the document's "image" field.
func (d *Document) Image() string {
	if d == nil {
		return ""
	}
	image, _ := d.fields["image"].(string)
	return image
}

// Field returns a raw top-level field.
func (d *Document) Field(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.fields[key]
	return v, ok
}

// WithImage returns a copy with the image URI spliced in. When the document
// lists properties.files, the first entry's uri is updated as well.
func (d *Document) WithImage(uri string) *Document {
	next := NewDocument(d.fields)
	next.fields["image"] = uri
	props, ok := next.fields["properties"].(map[string]any)
	if !ok {
		return next
	}
	files, ok := props["files"].([]any)
	if !ok || len(files) == 0 {
		return next
	}
	first, ok := files[0].(map[string]any)
	if !ok {
		return next
	}
	propsCopy := make(map[string]any, len(props))
	for k, v := range props {
		propsCopy[k] = v
	}
	filesCopy := append([]any(nil), files...)
	firstCopy := make(map[string]any, len(first))
	for k, v := range first {
		firstCopy[k] = v
	}
	firstCopy["uri"] = uri
	filesCopy[0] = firstCopy
	propsCopy["files"] = filesCopy
	next.fields["properties"] = propsCopy
	return next
}

// MarshalJSON encodes the document fields.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.fields)
}
