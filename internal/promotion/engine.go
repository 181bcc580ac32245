// Package promotion implements a greedy, order-stable clustering algorithm
// over processed tips. It groups a location's processed tips by embedding
// similarity and emits ranked Promotions.
package promotion

import (
	"math"
	"sort"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
)

// Config holds the two process-wide clustering thresholds.
type Config struct {
	SimilarityThreshold float64
	MinMentions         int
}

// DefaultConfig returns the engine's literal defaults.
func DefaultConfig() Config {
	return Config{SimilarityThreshold: 0.85, MinMentions: 3}
}

// Cluster runs the greedy representative-first algorithm over tips (all
// belonging to one location) and returns promotions sorted by
// mention_count desc, similarity_score desc, tip_id asc.
//
// The algorithm is deliberately O(n^2) in cluster-membership comparisons:
// n per location is small, the result is deterministic and explainable,
// and the oldest tip is a stable representative. It normalizes every
// vector defensively even though the worker is expected to hand back unit
// vectors already.
func Cluster(tips []domain.ProcessedTip, cfg Config) []domain.Promotion {
	units := make([]unit, len(tips))
	for i, t := range tips {
		units[i] = unit{tip: t, vec: normalize(t.Vector)}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].tip.TipID < units[j].tip.TipID })

	remaining := units
	var candidates []candidate

	for len(remaining) > 0 {
		head := remaining[0]
		rest := remaining[1:]

		var cluster []unit
		var leftover []unit
		for _, x := range rest {
			if cosine(head.vec, x.vec) >= cfg.SimilarityThreshold {
				cluster = append(cluster, x)
			} else {
				leftover = append(leftover, x)
			}
		}
		remaining = leftover

		size := len(cluster) + 1
		if size >= cfg.MinMentions {
			var sum float64
			for _, m := range cluster {
				sum += cosine(head.vec, m.vec)
			}
			similarity := 1.0
			if len(cluster) > 0 {
				similarity = sum / float64(len(cluster))
			}
			candidates = append(candidates, candidate{
				representativeTipID: head.tip.TipID,
				promotion: domain.Promotion{
					TipText:         head.tip.TranslatedText,
					MentionCount:    size,
					SimilarityScore: similarity,
				},
			})
		}
	}

	// Sort by mention_count desc, similarity_score desc, tip_id asc, keyed
	// on the cluster representative's tip_id since Promotion itself
	// carries no tip_id.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.promotion.MentionCount != b.promotion.MentionCount {
			return a.promotion.MentionCount > b.promotion.MentionCount
		}
		if a.promotion.SimilarityScore != b.promotion.SimilarityScore {
			return a.promotion.SimilarityScore > b.promotion.SimilarityScore
		}
		return a.representativeTipID < b.representativeTipID
	})

	promotions := make([]domain.Promotion, len(candidates))
	for i, c := range candidates {
		promotions[i] = c.promotion
	}
	return promotions
}

type candidate struct {
	representativeTipID int64
	promotion            domain.Promotion
}

type unit struct {
	tip domain.ProcessedTip
	vec [domain.EmbeddingDim]float32
}

// normalize defensively unit-normalizes a vector; if it's already a unit
// vector (as the worker promises) this is a no-op up to float rounding.
func normalize(v [domain.EmbeddingDim]float32) [domain.EmbeddingDim]float32 {
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

// cosine computes the cosine similarity of two (already unit-normalized)
// vectors; with unit inputs this reduces to a dot product.
func cosine(a, b [domain.EmbeddingDim]float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
