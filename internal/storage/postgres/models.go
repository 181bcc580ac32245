// Package postgres implements storage.Gateway against PostgreSQL via
// gorm.io/gorm, following this codebase's repository pattern
// (a constructor wrapping a *gorm.DB).
package postgres

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// locationRow mirrors the Location entity.
type locationRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	Name      string
	Country   string
	Latitude  *float64
	Longitude *float64
}

func (locationRow) TableName() string { return "locations" }

// tipRow mirrors the Tip entity. LanguageAttempts is a diagnostics-only
// history of detected-language guesses across retries, stored the way the
// teacher stores PoiEmbedding.Tags: a Postgres text[] column.
type tipRow struct {
	ID               int64 `gorm:"primaryKey;autoIncrement"`
	RawText          string
	DetectedLanguage *string
	TranslatedText   *string
	LocationID       int64 `gorm:"index"`
	SubmittedAt      time.Time
	ProcessedAt      *time.Time
	Status           string         `gorm:"index"`
	LanguageAttempts pq.StringArray `gorm:"type:text[]"`
}

func (tipRow) TableName() string { return "tips" }

// embeddingRow mirrors the Embedding entity. The vector column follows the
// teacher's PoiEmbedding.Embedding pgvector.Vector field, sized to the
// pipeline's 384-dim process-wide constant instead of the teacher's 1536.
type embeddingRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	TipID     int64 `gorm:"uniqueIndex"`
	Embedding pgvector.Vector `gorm:"type:vector(384)"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (embeddingRow) TableName() string { return "embeddings" }

// promotionRow mirrors the Promotion entity.
type promotionRow struct {
	ID              int64 `gorm:"primaryKey;autoIncrement"`
	LocationID      int64 `gorm:"index:idx_promotions_location_mentions,priority:1"`
	TipText         string
	MentionCount    int       `gorm:"index:idx_promotions_location_mentions,priority:2,sort:desc"`
	SimilarityScore float64
	PromotedAt      time.Time
}

func (promotionRow) TableName() string { return "promotions" }
