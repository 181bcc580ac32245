package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ProcessBatch_OrderPreservedAndTagged(t *testing.T) {
	svc, err := New("eng_Latn")
	require.NoError(t, err)

	items := []Item{
		{ID: 3, Text: "hello"},
		{ID: 1, Text: "bonjour"},
		{ID: 2, Text: "hola"},
	}

	results := svc.ProcessBatch(items)

	require.Len(t, results, 3)
	assert.Equal(t, int64(3), results[0].ID)
	assert.Equal(t, int64(1), results[1].ID)
	assert.Equal(t, int64(2), results[2].ID)
}

func TestService_ProcessBatch_TranslatesKnownPhrases(t *testing.T) {
	svc, err := New("eng_Latn")
	require.NoError(t, err)

	results := svc.ProcessBatch([]Item{
		{ID: 1, Text: "bonjour"},
		{ID: 2, Text: "hola"},
		{ID: 3, Text: "hello"},
	})

	assert.Equal(t, "hello", results[0].TranslatedText)
	assert.Equal(t, "fr", results[0].DetectedLanguage)
	assert.Equal(t, "hello", results[1].TranslatedText)
	assert.Equal(t, "es", results[1].DetectedLanguage)
	assert.Equal(t, "hello", results[2].TranslatedText)
	assert.Equal(t, "en", results[2].DetectedLanguage)
}

func TestService_ProcessBatch_PassthroughWhenSourceMatchesTarget(t *testing.T) {
	svc, err := New("eng_Latn")
	require.NoError(t, err)

	results := svc.ProcessBatch([]Item{
		{ID: 1, Text: "some unmapped english text", SourceLanguage: "en"},
	})

	assert.Equal(t, "some unmapped english text", results[0].TranslatedText)
}

func TestService_ProcessBatch_EmptyTextIsPerItemError(t *testing.T) {
	svc, err := New("eng_Latn")
	require.NoError(t, err)

	results := svc.ProcessBatch([]Item{{ID: 1, Text: ""}})

	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Err)
}

func TestEmbed_Deterministic(t *testing.T) {
	svc, err := New("eng_Latn")
	require.NoError(t, err)

	a := svc.Embed("avoid the tourist restaurants near the tower")
	b := svc.Embed("avoid the tourist restaurants near the tower")

	assert.Equal(t, a, b)
}

func TestEmbed_UnitNormalized(t *testing.T) {
	svc, err := New("eng_Latn")
	require.NoError(t, err)

	v := svc.Embed("some reasonably long piece of text to embed")

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSq, 0.001)
}

func TestMultiLanguageMerge_SameEmbeddingClusterCandidate(t *testing.T) {
	svc, err := New("eng_Latn")
	require.NoError(t, err)

	en := svc.Embed("avoid the tourist restaurants near the tower")
	frResult := svc.ProcessBatch([]Item{{ID: 1, Text: "Évitez les restaurants touristiques près de la tour"}})
	esResult := svc.ProcessBatch([]Item{{ID: 2, Text: "Evite los restaurantes turísticos cerca de la torre"}})

	assert.Equal(t, en, frResult[0].Vector)
	assert.Equal(t, en, esResult[0].Vector)
}
