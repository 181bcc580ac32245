// Package storage defines the Persistence Gateway contract. Concrete
// implementations live in storage/postgres (production) and storage/memory
// (tests, local runs without a database).
package storage

import (
	"context"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
)

// Gateway is the transactional interface the Coordinator and Promotion
// Engine depend on. Every method is idempotent where a caller may retry
// it after an uncertain outcome.
type Gateway interface {
	// ClaimPending returns up to limit tips with status=pending, atomically
	// transitioning them to processing, ordered by submitted_at ascending.
	ClaimPending(ctx context.Context, limit int) ([]domain.Tip, error)

	// RecordResult upserts the embedding, updates the tip's translation
	// fields, and sets status=processed, processed_at=now, in one
	// transaction. Calling it twice with the same tipID is a no-op the
	// second time (PersistenceConflict treated as idempotent success).
	RecordResult(ctx context.Context, tipID int64, detectedLanguage, translatedText string, vector [domain.EmbeddingDim]float32) error

	// RecordFailure sets status=failed, processed_at=now. reason is an
	// opaque short string (e.g. "batch_exhausted").
	RecordFailure(ctx context.Context, tipID int64, reason string) error

	// RevertToPending transitions tips (assumed currently processing) back
	// to pending. Used for wake-failure and cancellation compensation.
	RevertToPending(ctx context.Context, tipIDs []int64) error

	// ListProcessed returns every processed tip for a location, in a
	// stable order, for promotion.
	ListProcessed(ctx context.Context, locationID int64) ([]domain.ProcessedTip, error)

	// ReplacePromotions atomically deletes existing promotions for
	// locationID and inserts the new set.
	ReplacePromotions(ctx context.Context, locationID int64, promotions []domain.Promotion) error
}
