package reference

import (
	"strings"
	"unicode"
)

// Detector guesses a two-letter language code for a piece of text.
type Detector interface {
	Detect(text string) string
}

// HeuristicDetector is a small, deterministic stand-in for a real language
// identification model: it looks the text up in the bundled dictionary,
// then looks for language-distinctive accented characters, and otherwise
// assumes English.
// It exists so the reference worker can exercise the full pipeline
// end-to-end without a production model.
type HeuristicDetector struct {
	Dictionary *Dictionary
}

func NewHeuristicDetector(dict *Dictionary) *HeuristicDetector {
	return &HeuristicDetector{Dictionary: dict}
}

func (d *HeuristicDetector) Detect(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "en"
	}

	if lang, ok := d.Dictionary.LanguageOf(lower); ok {
		return lang
	}

	if containsAny(lower, "àâçéèêëîïôûùüÿñæœ") {
		return "fr"
	}
	if containsAny(lower, "áéíóúñ¿¡") {
		return "es"
	}
	if hasVietnameseTone(lower) {
		return "vi"
	}
	return "en"
}

func containsAny(s, chars string) bool {
	for _, c := range chars {
		if strings.ContainsRune(s, c) {
			return true
		}
	}
	return false
}

// hasVietnameseTone checks for combining/tone marks common in Vietnamese
// that don't overlap with French/Spanish accents checked above.
func hasVietnameseTone(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'ạ' && r <= 'ỹ':
			return true
		case unicode.Is(unicode.Mn, r):
			return true
		}
	}
	return strings.ContainsAny(s, "ươđ")
}
