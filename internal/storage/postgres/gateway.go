package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/monlai-dev/tip-pipeline/internal/domain"
)

// Gateway implements storage.Gateway against a *gorm.DB, following the
// teacher's repository construction pattern
// (repositories.NewPOIRepository(db)).
type Gateway struct {
	db *gorm.DB
}

// New wraps db as a storage.Gateway.
func New(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// ClaimPending issues SELECT ... FOR UPDATE SKIP LOCKED via db.Raw, the
// same escape hatch the teacher uses in
// PoiEmbededRepository.GetListOfPoiEmbededByVector for a query gorm's
// builder doesn't express, then flips the claimed rows to processing
// inside the same transaction.
func (g *Gateway) ClaimPending(ctx context.Context, limit int) ([]domain.Tip, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []domain.Tip
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []tipRow
		if err := tx.Raw(`
			SELECT * FROM tips
			WHERE status = ?
			ORDER BY submitted_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		`, string(domain.TipPending), limit).Scan(&rows).Error; err != nil {
			return fmt.Errorf("claim_pending: select: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}

		ids := make([]int64, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		if err := tx.Model(&tipRow{}).Where("id IN ?", ids).
			Update("status", string(domain.TipProcessing)).Error; err != nil {
			return fmt.Errorf("claim_pending: update: %w", err)
		}

		claimed = make([]domain.Tip, len(rows))
		for i, r := range rows {
			t := rowToTip(r)
			t.Status = domain.TipProcessing
			claimed[i] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// RecordResult upserts the embedding, appends detectedLanguage to the
// tip's language-attempt history, and updates tip status, all in one
// transaction. A tip that is already processed is left unchanged. A
// unique-violation on the embedding upsert is treated as idempotent
// success (PersistenceConflict).
func (g *Gateway) RecordResult(ctx context.Context, tipID int64, detectedLanguage, translatedText string, vector [domain.EmbeddingDim]float32) error {
	now := time.Now()
	vec := pgvector.NewVector(vector[:])

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current tipRow
		if err := tx.Select("status, language_attempts").Where("id = ?", tipID).First(&current).Error; err != nil {
			return fmt.Errorf("record_result: load tip: %w", err)
		}
		if current.Status == string(domain.TipProcessed) {
			return nil // already recorded: a repeated call changes nothing
		}

		var existing embeddingRow
		err := tx.Where("tip_id = ?", tipID).First(&existing).Error
		switch {
		case err == nil:
			existing.Embedding = vec
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("record_result: update embedding: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := embeddingRow{TipID: tipID, Embedding: vec, CreatedAt: now}
			if err := tx.Create(&row).Error; err != nil {
				// PersistenceConflict: another coordinator raced us to the
				// same unique tip_id. Treated as idempotent success.
				if isUniqueViolation(err) {
					return nil
				}
				return fmt.Errorf("record_result: create embedding: %w", err)
			}
		default:
			return fmt.Errorf("record_result: lookup embedding: %w", err)
		}

		attempts := append(pq.StringArray{}, current.LanguageAttempts...)
		attempts = append(attempts, detectedLanguage)

		update := tx.Model(&tipRow{}).Where("id = ?", tipID).Updates(map[string]any{
			"detected_language": detectedLanguage,
			"translated_text":   translatedText,
			"status":            string(domain.TipProcessed),
			"processed_at":      now,
			"language_attempts": attempts,
		})
		if update.Error != nil {
			return fmt.Errorf("record_result: update tip: %w", update.Error)
		}
		return nil
	})
}

func (g *Gateway) RecordFailure(ctx context.Context, tipID int64, reason string) error {
	now := time.Now()
	result := g.db.WithContext(ctx).Model(&tipRow{}).Where("id = ?", tipID).Updates(map[string]any{
		"status":       string(domain.TipFailed),
		"processed_at": now,
	})
	if result.Error != nil {
		return fmt.Errorf("record_failure(%d, %q): %w", tipID, reason, result.Error)
	}
	return nil
}

func (g *Gateway) RevertToPending(ctx context.Context, tipIDs []int64) error {
	if len(tipIDs) == 0 {
		return nil
	}
	result := g.db.WithContext(ctx).Model(&tipRow{}).
		Where("id IN ? AND status = ?", tipIDs, string(domain.TipProcessing)).
		Update("status", string(domain.TipPending))
	if result.Error != nil {
		return fmt.Errorf("revert_to_pending: %w", result.Error)
	}
	return nil
}

func (g *Gateway) ListProcessed(ctx context.Context, locationID int64) ([]domain.ProcessedTip, error) {
	type joined struct {
		TipID          int64
		TranslatedText *string
		SubmittedAt    time.Time
		Embedding      pgvector.Vector
	}

	var rows []joined
	err := g.db.WithContext(ctx).Table("tips").
		Select("tips.id AS tip_id, tips.translated_text, tips.submitted_at, embeddings.embedding").
		Joins("JOIN embeddings ON embeddings.tip_id = tips.id").
		Where("tips.location_id = ? AND tips.status = ?", locationID, string(domain.TipProcessed)).
		Order("tips.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list_processed(%d): %w", locationID, err)
	}

	out := make([]domain.ProcessedTip, 0, len(rows))
	for _, r := range rows {
		text := ""
		if r.TranslatedText != nil {
			text = *r.TranslatedText
		}
		var vec [domain.EmbeddingDim]float32
		slice := r.Embedding.Slice()
		copy(vec[:], slice)
		out = append(out, domain.ProcessedTip{
			TipID:          r.TipID,
			TranslatedText: text,
			Vector:         vec,
			SubmittedAt:    r.SubmittedAt,
		})
	}
	return out, nil
}

// ReplacePromotions deletes and re-inserts a location's promotions inside
// one transaction, so readers never observe a partial set.
func (g *Gateway) ReplacePromotions(ctx context.Context, locationID int64, promotions []domain.Promotion) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("location_id = ?", locationID).Delete(&promotionRow{}).Error; err != nil {
			return fmt.Errorf("replace_promotions: delete: %w", err)
		}
		if len(promotions) == 0 {
			return nil
		}

		rows := make([]promotionRow, len(promotions))
		for i, p := range promotions {
			promotedAt := p.PromotedAt
			if promotedAt.IsZero() {
				promotedAt = time.Now()
			}
			rows[i] = promotionRow{
				LocationID:      locationID,
				TipText:         p.TipText,
				MentionCount:    p.MentionCount,
				SimilarityScore: p.SimilarityScore,
				PromotedAt:      promotedAt,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("replace_promotions: insert: %w", err)
		}
		return nil
	})
}

func rowToTip(r tipRow) domain.Tip {
	return domain.Tip{
		ID:               r.ID,
		RawText:          r.RawText,
		DetectedLanguage: r.DetectedLanguage,
		TranslatedText:   r.TranslatedText,
		LocationID:       r.LocationID,
		SubmittedAt:      r.SubmittedAt,
		ProcessedAt:      r.ProcessedAt,
		Status:           domain.TipStatus(r.Status),
		LanguageAttempts: []string(r.LanguageAttempts),
	}
}

// isUniqueViolation recognizes Postgres' unique_violation SQLSTATE (23505)
// without importing the pgx error type directly into this file's happy
// path; callers that need the precise code can extend this check.
func isUniqueViolation(err error) bool {
	type sqlStater interface{ SQLState() string }
	var s sqlStater
	for e := err; e != nil; {
		if st, ok := e.(sqlStater); ok {
			s = st
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if s == nil {
		return false
	}
	return s.SQLState() == "23505"
}
