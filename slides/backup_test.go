package slides

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackupRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "{"},
		{name: "wrong shape", data: `{"foo": 1}`},
		{name: "top level array", data: `[{"imageUrl":"x"}]`},
		{name: "null", data: `null`},
		{name: "slides not array", data: `{"slides": {}, "glowColor": "#fff"}`},
		{name: "color not string", data: `{"slides": [], "glowColor": 5}`},
		{name: "missing color", data: `{"slides": []}`},
		{name: "slide without image", data: `{"slides": [{"quote":"q"}], "glowColor": "#fff"}`},
		{name: "slide with numeric image", data: `{"slides": [{"imageUrl": 3}], "glowColor": "#fff"}`},
		{name: "slide not object", data: `{"slides": ["x"], "glowColor": "#fff"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBackup([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformedBackup)
		})
	}
}

func TestParseBackupAcceptsMinimalSlides(t *testing.T) {
	b, err := ParseBackup([]byte(`{"slides": [{"imageUrl": "x"}], "glowColor": ""}`))
	require.NoError(t, err)
	assert.Equal(t, Backup{Slides: []Slide{{ImageURL: "x"}}, GlowColor: ""}, b)
}

func TestExportImportRoundTrip(t *testing.T) {
	src, _ := newTestStore(t)
	require.NoError(t, src.ReplaceAll([]Slide{slideA, slideB}))
	src.SetGlowColor("#22c55e")

	data, err := src.Export().Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"slides\": [")

	b, err := ParseBackup(data)
	require.NoError(t, err)

	dst, _ := newTestStore(t)
	var got Change
	dst.OnChange(func(c Change) { got = c })
	require.NoError(t, dst.Import(b))

	assert.Equal(t, src.Slides(), dst.Slides())
	assert.Equal(t, "#22c55e", dst.Preferences().GlowColor)
	assert.Equal(t, SlidesReplaced, got.Kind)
	assert.Equal(t, 2, got.Len)
}

func TestMalformedImportLeavesStateUnchanged(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetGlowColor("#111111")
	before := s.Export()

	_, err := ParseBackup([]byte(`{"foo": 1}`))
	require.ErrorIs(t, err, ErrMalformedBackup)

	err = s.Import(Backup{Slides: []Slide{{Quote: "no image"}}, GlowColor: "#222222"})
	require.ErrorIs(t, err, ErrMalformedBackup)

	assert.Equal(t, before, s.Export())
}

func TestMarshalEmptyCollection(t *testing.T) {
	data, err := Backup{GlowColor: "#fff"}.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"slides": [], "glowColor": "#fff"}`, string(data))
}
