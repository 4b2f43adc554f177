package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anatolykoptev/go-imagepick"
)

// Theme is a named list of terms to illustrate. Workers and ImagesPerTerm
// are zero unless the file sets them.
type Theme struct {
	Name          string
	Title         string
	Terms         []imagepick.Term
	Workers       int
	ImagesPerTerm int
}

// themeFile accepts two layouts:
//
//	title: Human body
//	workers: 4
//	images_per_term: 3
//	terms:
//	  - key: eye
//	    labels: {fr: oeil, mk: око}
//
// and the legacy JSON layout {"titre": ..., "max_workers": ...,
// "images_par_element": ..., "elements": [{"mot_anglais", "nom_francais",
// "nom_macedonien"}]}.
type themeFile struct {
	Title         string           `json:"title" yaml:"title"`
	Workers       int              `json:"workers" yaml:"workers"`
	ImagesPerTerm int              `json:"images_per_term" yaml:"images_per_term"`
	Terms         []imagepick.Term `json:"terms" yaml:"terms"`

	Titre            string          `json:"titre" yaml:"titre"`
	MaxWorkers       int             `json:"max_workers" yaml:"max_workers"`
	ImagesParElement int             `json:"images_par_element" yaml:"images_par_element"`
	Elements         []legacyElement `json:"elements" yaml:"elements"`
}

type legacyElement struct {
	English    string `json:"mot_anglais" yaml:"mot_anglais"`
	French     string `json:"nom_francais" yaml:"nom_francais"`
	Macedonian string `json:"nom_macedonien" yaml:"nom_macedonien"`
}

func (e legacyElement) term() imagepick.Term {
	t := imagepick.Term{Key: strings.TrimSpace(e.English)}
	labels := map[string]string{}
	if e.French != "" {
		labels["fr"] = e.French
	}
	if e.Macedonian != "" {
		labels["mk"] = e.Macedonian
	}
	if len(labels) > 0 {
		t.Labels = labels
	}
	return t
}

// LoadTheme reads a YAML or JSON theme file. The theme name is the file name
// without extension. Term lists that are empty or hold blank or duplicate
// keys yield a *imagepick.ConfigurationError.
func LoadTheme(path string) (*Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading theme: %w", err)
	}
	return ParseTheme(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), filepath.Ext(path), data)
}

// ParseTheme decodes theme data; ext selects the decoder (".json" or YAML otherwise).
func ParseTheme(name, ext string, data []byte) (*Theme, error) {
	var f themeFile
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, &imagepick.ConfigurationError{Reason: fmt.Sprintf("parse theme %s: %v", name, err)}
	}

	th := &Theme{
		Name:          name,
		Title:         cmp.Or(f.Title, f.Titre),
		Workers:       cmp.Or(f.Workers, f.MaxWorkers),
		ImagesPerTerm: cmp.Or(f.ImagesPerTerm, f.ImagesParElement),
	}
	if th.Workers < 0 || th.ImagesPerTerm < 0 {
		return nil, &imagepick.ConfigurationError{Reason: fmt.Sprintf("theme %s: workers and images per term must not be negative", name)}
	}
	for _, t := range f.Terms {
		t.Key = strings.TrimSpace(t.Key)
		th.Terms = append(th.Terms, t)
	}
	for _, e := range f.Elements {
		th.Terms = append(th.Terms, e.term())
	}

	if err := imagepick.ValidateTerms(th.Terms); err != nil {
		return nil, err
	}
	return th, nil
}
