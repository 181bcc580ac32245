package reference

import "strings"

// Translator converts text in sourceLanguage into the canonical target
// language. When sourceLanguage already equals target, or no translation
// is known, it returns the input verbatim.
type Translator interface {
	Translate(text, sourceLanguage, targetLanguage string) string
}

// DictionaryTranslator looks up exact phrases in a bundled Dictionary and
// falls back to passthrough. Translation need not be deterministic across
// implementations, only stable under identical input, and an exact-match
// table is trivially stable.
type DictionaryTranslator struct {
	Dictionary *Dictionary
}

func NewDictionaryTranslator(dict *Dictionary) *DictionaryTranslator {
	return &DictionaryTranslator{Dictionary: dict}
}

func (t *DictionaryTranslator) Translate(text, sourceLanguage, targetLanguage string) string {
	if canonicalLanguage(sourceLanguage) == canonicalLanguage(targetLanguage) {
		return text
	}
	if translated, ok := t.Dictionary.Translate(text); ok {
		return translated
	}
	return text
}

// canonicalLanguage strips an NLLB-style script suffix ("eng_Latn" -> "en")
// so a bare two-letter detector code compares equal to the configured
// target language.
func canonicalLanguage(lang string) string {
	lang = strings.ToLower(lang)
	if idx := strings.Index(lang, "_"); idx > 0 {
		lang = lang[:idx]
	}
	if len(lang) >= 3 && strings.HasPrefix(lang, "eng") {
		return "en"
	}
	return lang
}
