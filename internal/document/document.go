// Package document converts drawings to and from the JSON export format:
//
//	{
//	  "title": "Painting Title",
//	  "objects": [
//	    {"id": "circle-1a2b3c4d-1", "type": "circle", "x": 10, "y": 10}
//	  ],
//	  "timestamp": "2026-10-19T12:00:00Z"
//	}
//
// Decode validates the whole document, including each object's kind, and
// reports malformed text as a parse failure and anything else that is not a
// drawing as an invalid format.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"ShapeBoard/internal/errors"
	"ShapeBoard/internal/state"
)

// Document is the on-disk form of a drawing.
type Document struct {
	Title     string                `json:"title"`
	Objects   []state.ShapeInstance `json:"objects"`
	Timestamp string                `json:"timestamp,omitempty"`
}

// Encode serializes d with the given export time.
func Encode(d state.Drawing, now time.Time) ([]byte, error) {
	objs := d.Objects
	if objs == nil {
		objs = []state.ShapeInstance{}
	}
	doc := Document{
		Title:     d.Title,
		Objects:   objs,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "encode drawing")
	}
	return data, nil
}

// Decode parses and validates a document. The timestamp is not part of the
// returned drawing.
func Decode(data []byte) (state.Drawing, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return state.Drawing{}, errors.Wrap(errors.CodeParseFailure, err, "parse drawing")
	}
	if _, err := dec.Token(); err != io.EOF {
		return state.Drawing{}, errors.New(errors.CodeParseFailure, "trailing data after drawing")
	}

	top, ok := raw.(map[string]any)
	if !ok {
		return state.Drawing{}, errors.New(errors.CodeInvalidFormat, "drawing must be a JSON object")
	}
	title, ok := top["title"].(string)
	if !ok {
		return state.Drawing{}, errors.New(errors.CodeInvalidFormat, "missing string field \"title\"")
	}
	items, ok := top["objects"].([]any)
	if !ok {
		return state.Drawing{}, errors.New(errors.CodeInvalidFormat, "missing array field \"objects\"")
	}

	objs := make([]state.ShapeInstance, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		shape, err := decodeShape(item)
		if err != nil {
			return state.Drawing{}, errors.Wrap(errors.CodeInvalidFormat, err, "object %d", i)
		}
		if seen[shape.ID] {
			return state.Drawing{}, errors.New(errors.CodeInvalidFormat, "object %d: duplicate id %q", i, shape.ID)
		}
		seen[shape.ID] = true
		objs = append(objs, shape)
	}
	return state.Drawing{Title: title, Objects: objs}, nil
}

func decodeShape(item any) (state.ShapeInstance, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return state.ShapeInstance{}, fmt.Errorf("not an object")
	}
	id, ok := m["id"].(string)
	if !ok || id == "" {
		return state.ShapeInstance{}, fmt.Errorf("missing id")
	}
	tag, ok := m["type"].(string)
	if !ok {
		return state.ShapeInstance{}, fmt.Errorf("missing type")
	}
	kind, err := state.ParseShapeKind(tag)
	if err != nil {
		return state.ShapeInstance{}, err
	}
	x, err := number(m, "x")
	if err != nil {
		return state.ShapeInstance{}, err
	}
	y, err := number(m, "y")
	if err != nil {
		return state.ShapeInstance{}, err
	}
	return state.ShapeInstance{ID: id, Kind: kind, X: x, Y: y}, nil
}

func number(m map[string]any, key string) (float64, error) {
	n, ok := m[key].(json.Number)
	if !ok {
		return 0, fmt.Errorf("field %q must be a number", key)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return f, nil
}

var (
	whitespace  = regexp.MustCompile(`\s+`)
	unsafeChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)
)

// FileName derives the download name for a drawing title: whitespace runs
// become underscores and characters that are not allowed in file names are
// dropped.
func FileName(title string) string {
	name := whitespace.ReplaceAllString(strings.TrimSpace(title), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, ".")
	if name == "" {
		name = "drawing"
	}
	return name + ".json"
}
