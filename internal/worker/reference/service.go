package reference

import (
	"fmt"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
)

// Item mirrors the wire protocol's per-item batch request.
type Item struct {
	ID             int64
	Text           string
	SourceLanguage string // empty means "detect"
}

// Result mirrors the wire protocol's per-item batch response: either a
// success (all fields populated, Err empty) or a per-item failure (Err
// set, everything else zero).
type Result struct {
	ID               int64
	DetectedLanguage string
	TranslatedText   string
	Vector           [domain.EmbeddingDim]float32
	Err              string
}

// Service implements the Processing Worker's batch semantics over
// injectable Detector/Translator/Embedder, modeled the way PromptService
// composes POIServiceInterface/TagServiceInterface/EmbeddingClientInterface
// behind one façade.
type Service struct {
	Detector       Detector
	Translator     Translator
	Embedder       Embedder
	TargetLanguage string
}

// New builds a Service with the bundled dictionary-backed detector,
// translator and hashing embedder.
func New(targetLanguage string) (*Service, error) {
	dict, err := LoadDictionary()
	if err != nil {
		return nil, fmt.Errorf("reference: load dictionary: %w", err)
	}
	return &Service{
		Detector:       NewHeuristicDetector(dict),
		Translator:     NewDictionaryTranslator(dict),
		Embedder:       HashingEmbedder{},
		TargetLanguage: targetLanguage,
	}, nil
}

// DetectLanguage implements POST /detect-language.
func (s *Service) DetectLanguage(text string) string {
	return s.Detector.Detect(text)
}

// Translate implements POST /translate. When sourceLanguage is empty it is
// detected first.
func (s *Service) Translate(text, sourceLanguage string) (translated, detected string) {
	detected = sourceLanguage
	if detected == "" {
		detected = s.Detector.Detect(text)
	}
	return s.Translator.Translate(text, detected, s.TargetLanguage), detected
}

// Embed implements POST /embed.
func (s *Service) Embed(text string) [domain.EmbeddingDim]float32 {
	return s.Embedder.Embed(text)
}

// ProcessBatch implements POST /process-batch: for each item, detect (if
// needed), translate (if needed), embed; results preserve
// input order and are tagged with their input ID. A per-item failure never
// fails the batch as a whole. ProcessBatch has no error return: this
// reference implementation has no model-loading step or other batch-wide
// condition that can fail.
func (s *Service) ProcessBatch(items []Item) []Result {
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = s.processOne(item)
	}
	return results
}

func (s *Service) processOne(item Item) Result {
	if item.Text == "" {
		return Result{ID: item.ID, Err: "empty text"}
	}

	translated, detected := s.Translate(item.Text, item.SourceLanguage)
	vector := s.Embed(translated)

	return Result{
		ID:               item.ID,
		DetectedLanguage: detected,
		TranslatedText:   translated,
		Vector:           vector,
	}
}
