// Package memory is an in-memory Gateway fake, following the teacher's
// interface-first repository design which makes a drop-in fake natural.
// It backs Coordinator and Promotion Engine unit tests without a live
// Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
)

// Gateway implements storage.Gateway over plain maps guarded by a mutex.
// It is not intended for concurrent-coordinator tests beyond what a single
// mutex can serialize; claim ordering and single-claim semantics are still
// correct under concurrent callers.
type Gateway struct {
	mu sync.Mutex

	tips       map[int64]domain.Tip
	embeddings map[int64]domain.Embedding
	promotions map[int64][]domain.Promotion

	nextTipID       int64
	nextEmbeddingID int64
	nextPromoID     int64
}

// New returns an empty Gateway.
func New() *Gateway {
	return &Gateway{
		tips:       make(map[int64]domain.Tip),
		embeddings: make(map[int64]domain.Embedding),
		promotions: make(map[int64][]domain.Promotion),
	}
}

// SeedTip inserts a pending tip directly (test helper, bypasses ingestion).
func (g *Gateway) SeedTip(locationID int64, rawText string, submittedAt time.Time) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextTipID++
	id := g.nextTipID
	g.tips[id] = domain.Tip{
		ID:          id,
		RawText:     rawText,
		LocationID:  locationID,
		SubmittedAt: submittedAt,
		Status:      domain.TipPending,
	}
	return id
}

// Tip returns a copy of the tip for assertions in tests.
func (g *Gateway) Tip(id int64) (domain.Tip, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tips[id]
	return t, ok
}

// Promotions returns a copy of the current promotion set for a location.
func (g *Gateway) Promotions(locationID int64) []domain.Promotion {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Promotion, len(g.promotions[locationID]))
	copy(out, g.promotions[locationID])
	return out
}

func (g *Gateway) ClaimPending(ctx context.Context, limit int) ([]domain.Tip, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}

	var pending []domain.Tip
	for _, t := range g.tips {
		if t.Status == domain.TipPending {
			pending = append(pending, t)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].SubmittedAt.Before(pending[j].SubmittedAt)
	})

	if len(pending) > limit {
		pending = pending[:limit]
	}

	claimed := make([]domain.Tip, len(pending))
	for i, t := range pending {
		t.Status = domain.TipProcessing
		g.tips[t.ID] = t
		claimed[i] = t
	}
	return claimed, nil
}

func (g *Gateway) RecordResult(ctx context.Context, tipID int64, detectedLanguage, translatedText string, vector [domain.EmbeddingDim]float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tips[tipID]
	if !ok {
		return nil // unknown tip: nothing to do, treated as idempotent no-op
	}
	if t.Status == domain.TipProcessed {
		return nil // already recorded: a repeated call changes nothing
	}

	now := time.Now()
	t.DetectedLanguage = &detectedLanguage
	t.TranslatedText = &translatedText
	t.Status = domain.TipProcessed
	t.ProcessedAt = &now
	t.LanguageAttempts = append(append([]string{}, t.LanguageAttempts...), detectedLanguage)
	g.tips[tipID] = t

	for _, e := range g.embeddings {
		if e.TipID == tipID {
			// idempotent: overwrite existing embedding, don't duplicate
			e.Vector = vector
			g.embeddings[e.ID] = e
			return nil
		}
	}

	g.nextEmbeddingID++
	g.embeddings[g.nextEmbeddingID] = domain.Embedding{
		ID:        g.nextEmbeddingID,
		TipID:     tipID,
		Vector:    vector,
		CreatedAt: now,
	}
	return nil
}

func (g *Gateway) RecordFailure(ctx context.Context, tipID int64, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.tips[tipID]
	if !ok {
		return nil
	}
	now := time.Now()
	t.Status = domain.TipFailed
	t.ProcessedAt = &now
	g.tips[tipID] = t
	return nil
}

func (g *Gateway) RevertToPending(ctx context.Context, tipIDs []int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range tipIDs {
		t, ok := g.tips[id]
		if !ok || t.Status != domain.TipProcessing {
			continue
		}
		t.Status = domain.TipPending
		g.tips[id] = t
	}
	return nil
}

func (g *Gateway) ListProcessed(ctx context.Context, locationID int64) ([]domain.ProcessedTip, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []domain.ProcessedTip
	for _, t := range g.tips {
		if t.LocationID != locationID || t.Status != domain.TipProcessed {
			continue
		}
		var vec [domain.EmbeddingDim]float32
		for _, e := range g.embeddings {
			if e.TipID == t.ID {
				vec = e.Vector
				break
			}
		}
		text := ""
		if t.TranslatedText != nil {
			text = *t.TranslatedText
		}
		out = append(out, domain.ProcessedTip{
			TipID:          t.ID,
			TranslatedText: text,
			Vector:         vec,
			SubmittedAt:    t.SubmittedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TipID < out[j].TipID })
	return out, nil
}

func (g *Gateway) ReplacePromotions(ctx context.Context, locationID int64, promotions []domain.Promotion) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	stamped := make([]domain.Promotion, len(promotions))
	for i, p := range promotions {
		g.nextPromoID++
		p.ID = g.nextPromoID
		p.LocationID = locationID
		if p.PromotedAt.IsZero() {
			p.PromotedAt = time.Now()
		}
		stamped[i] = p
	}
	g.promotions[locationID] = stamped
	return nil
}
