// Package reference is a deterministic, local stand-in for the Processing
// Worker's translation and embedding models, grounded on this codebase's
// GeminiEmbeddingClient.textToVector fallback-embedding idiom and its
// provider-switch construction. It exists for tests and for running the
// whole pipeline without a hosted model.
package reference

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var phrasesYAML []byte

type phraseEntry struct {
	Language string `yaml:"language"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
}

type phraseFile struct {
	Phrases []phraseEntry `yaml:"phrases"`
}

// Dictionary is the reference worker's bundled translation memory: an
// exact-match lookup from a lowercase, trimmed source phrase to its
// canonical English translation.
type Dictionary struct {
	bySource map[string]phraseEntry
}

// LoadDictionary parses the embedded phrases.yaml fixture.
func LoadDictionary() (*Dictionary, error) {
	var parsed phraseFile
	if err := yaml.Unmarshal(phrasesYAML, &parsed); err != nil {
		return nil, err
	}

	d := &Dictionary{bySource: make(map[string]phraseEntry, len(parsed.Phrases))}
	for _, p := range parsed.Phrases {
		d.bySource[normalize(p.Source)] = p
	}
	return d, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Translate returns the canonical translation of text if it (or its
// normalized form) is present verbatim in the dictionary.
func (d *Dictionary) Translate(text string) (string, bool) {
	entry, ok := d.bySource[normalize(text)]
	if !ok {
		return "", false
	}
	return entry.Target, true
}

// LanguageOf returns the language tag recorded for a dictionary entry
// matching text exactly, if any.
func (d *Dictionary) LanguageOf(text string) (string, bool) {
	entry, ok := d.bySource[normalize(text)]
	if !ok {
		return "", false
	}
	return entry.Language, true
}
