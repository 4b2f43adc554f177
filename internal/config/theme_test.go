package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go-imagepick"
)

func TestLoadTheme_YAML(t *testing.T) {
	path := writeFile(t, "body.yaml", `
title: Human body
workers: 4
terms:
  - key: " eye "
    labels: {fr: oeil, mk: око}
  - key: knee
`)
	th, err := LoadTheme(path)
	require.NoError(t, err)

	assert.Equal(t, "body", th.Name)
	assert.Equal(t, "Human body", th.Title)
	assert.Equal(t, 4, th.Workers)
	assert.Zero(t, th.ImagesPerTerm)
	require.Len(t, th.Terms, 2)
	assert.Equal(t, "eye", th.Terms[0].Key)
	assert.Equal(t, "oeil", th.Terms[0].Label("fr"))
	assert.Equal(t, "knee", th.Terms[1].Label("fr"))
}

func TestLoadTheme_LegacyJSON(t *testing.T) {
	path := writeFile(t, "meteo.json", `{
  "titre": "La météo",
  "max_workers": 20,
  "images_par_element": 5,
  "elements": [
    {"mot_anglais": "rain", "nom_francais": "pluie", "nom_macedonien": "дожд"},
    {"mot_anglais": "snow", "nom_francais": "neige"}
  ]
}`)
	th, err := LoadTheme(path)
	require.NoError(t, err)

	assert.Equal(t, "meteo", th.Name)
	assert.Equal(t, "La météo", th.Title)
	assert.Equal(t, 20, th.Workers)
	assert.Equal(t, 5, th.ImagesPerTerm)
	require.Len(t, th.Terms, 2)
	assert.Equal(t, imagepick.Term{Key: "rain", Labels: map[string]string{"fr": "pluie", "mk": "дожд"}}, th.Terms[0])
	assert.Equal(t, map[string]string{"fr": "neige"}, th.Terms[1].Labels)
}

func TestLoadTheme_Invalid(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"empty", "a.yaml", "title: nothing\n"},
		{"blank key", "b.yaml", "terms:\n  - key: \"  \"\n"},
		{"duplicate", "c.yaml", "terms:\n  - key: eye\n  - key: eye\n"},
		{"bad json", "d.json", "{"},
		{"bad yaml", "e.yaml", "terms: [\n"},
		{"negative workers", "f.json", `{"max_workers": -1, "elements": [{"mot_anglais": "rain"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTheme(writeFile(t, tt.file, tt.content))
			var cfgErr *imagepick.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadTheme_MissingFile(t *testing.T) {
	_, err := LoadTheme("/does/not/exist.yaml")
	assert.Error(t, err)
}
