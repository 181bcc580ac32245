package reference

import (
	"hash/fnv"
	"math"
	"strings"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
)

// Embedder produces a fixed-length vector representation of text.
type Embedder interface {
	Embed(text string) [domain.EmbeddingDim]float32
}

// HashingEmbedder is a deterministic bag-of-words embedder: each word
// hashes into one of EmbeddingDim buckets, contributing +1 to that
// dimension, and the result is unit-normalized. It is grounded on
// GeminiEmbeddingClient.textToVector's hashWord fallback in spirit
// (deterministic hash-based projection standing in for a real embedding
// model) but widened from that method's ad hoc dimensionality to the
// pipeline's fixed 384.
//
// Determinism: identical input text always yields a bit-identical vector
// within a process lifetime, since hashing and summation order are both
// deterministic for a fixed tokenization.
type HashingEmbedder struct{}

func (HashingEmbedder) Embed(text string) [domain.EmbeddingDim]float32 {
	var v [domain.EmbeddingDim]float32
	words := tokenize(text)
	for _, w := range words {
		idx := hashWord(w) % domain.EmbeddingDim
		v[idx] += 1.0
	}
	return normalizeUnit(v)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

func hashWord(word string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return h.Sum32()
}

func normalizeUnit(v [domain.EmbeddingDim]float32) [domain.EmbeddingDim]float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	var out [domain.EmbeddingDim]float32
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
