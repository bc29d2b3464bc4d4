package document

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShapeBoard/internal/errors"
	"ShapeBoard/internal/state"
)

func TestRoundTrip(t *testing.T) {
	s := state.NewStore(nil)
	s.SetTitle("My Sunset")
	s.AddShape(state.Circle, 10, 10)
	s.AddShape(state.Triangle, -40.5, 1200)
	s.AddShape(state.Square, 0, 0)
	want := s.Snapshot()

	data, err := Encode(want, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeLayout(t *testing.T) {
	d := state.Drawing{Title: "t", Objects: []state.ShapeInstance{{ID: "a", Kind: state.Square, X: 1, Y: 2}}}
	data, err := Encode(d, time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600)))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "t", m["title"])
	assert.Equal(t, "2026-01-02T02:04:05Z", m["timestamp"])
	obj := m["objects"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"id": "a", "type": "square", "x": 1.0, "y": 2.0}, obj)
}

func TestEncodeEmptyDrawingHasObjectsArray(t *testing.T) {
	data, err := Encode(state.Drawing{Title: "empty"}, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"objects": []`)

	d, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, d.Objects)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  errors.Code
	}{
		{"not json", `{not json`, errors.CodeParseFailure},
		{"empty", ``, errors.CodeParseFailure},
		{"trailing", `{"title":"x","objects":[]} {}`, errors.CodeParseFailure},
		{"trailing garbage", `{"title":"x","objects":[]} garbage`, errors.CodeParseFailure},
		{"stray closing brace", `{"title":"x","objects":[]}}`, errors.CodeParseFailure},
		{"stray closing bracket", `{"title":"x","objects":[]}]`, errors.CodeParseFailure},
		{"missing objects", `{"title": "x"}`, errors.CodeInvalidFormat},
		{"missing title", `{"objects": []}`, errors.CodeInvalidFormat},
		{"title not string", `{"title": 3, "objects": []}`, errors.CodeInvalidFormat},
		{"objects not array", `{"title": "x", "objects": {}}`, errors.CodeInvalidFormat},
		{"array top level", `[]`, errors.CodeInvalidFormat},
		{"unknown kind", `{"title":"x","objects":[{"id":"a","type":"hexagon","x":1,"y":1}]}`, errors.CodeInvalidFormat},
		{"missing id", `{"title":"x","objects":[{"type":"circle","x":1,"y":1}]}`, errors.CodeInvalidFormat},
		{"string coordinate", `{"title":"x","objects":[{"id":"a","type":"circle","x":"1","y":1}]}`, errors.CodeInvalidFormat},
		{"element not object", `{"title":"x","objects":[5]}`, errors.CodeInvalidFormat},
		{"duplicate id", `{"title":"x","objects":[{"id":"a","type":"circle","x":1,"y":1},{"id":"a","type":"square","x":2,"y":2}]}`, errors.CodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err), err.Error())
		})
	}
}

func TestDecodeAllowsTrailingWhitespace(t *testing.T) {
	d, err := Decode([]byte("{\"title\":\"x\",\"objects\":[]}\n\t \r\n"))
	require.NoError(t, err)
	assert.Equal(t, "x", d.Title)
	assert.Empty(t, d.Objects)
}

func TestDecodeIgnoresTimestampAndExtraFields(t *testing.T) {
	d, err := Decode([]byte(`{"title":"x","objects":[{"id":"a","type":"triangle","x":-3,"y":4.5,"color":"red"}],"timestamp":"2026-10-19T00:00:00Z","version":2}`))
	require.NoError(t, err)
	assert.Equal(t, state.Drawing{Title: "x", Objects: []state.ShapeInstance{{ID: "a", Kind: state.Triangle, X: -3, Y: 4.5}}}, d)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Painting Title", "Painting_Title.json"},
		{"  spaced   out\ttitle ", "spaced_out_title.json"},
		{"a/b\\c:d", "abcd.json"},
		{"", "drawing.json"},
		{"..", "drawing.json"},
		{"café", "café.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.title), tt.title)
	}
}
