// Package domain holds the plain entities of the tip pipeline: Location,
// Tip, Embedding and Promotion, along with the invariants that constrain
// their fields. Nothing here talks to a database or the network.
package domain

import "time"

// EmbeddingDim is the process-wide embedding width. Changing it requires a
// migration of every stored vector.
const EmbeddingDim = 384

// TipStatus is the lifecycle state of a Tip.
type TipStatus string

const (
	TipPending    TipStatus = "pending"
	TipProcessing TipStatus = "processing"
	TipProcessed  TipStatus = "processed"
	TipFailed     TipStatus = "failed"
)

// Location is a named place a Tip is submitted against. The storage layer
// in this module puts no unique constraint on (name, country), trimmed and
// case-insensitive or otherwise.
type Location struct {
	ID        int64
	Name      string
	Country   string
	Latitude  *float64
	Longitude *float64
}

// Tip is a short textual observation submitted for a Location.
type Tip struct {
	ID               int64
	RawText          string
	DetectedLanguage *string
	TranslatedText   *string
	LocationID       int64
	SubmittedAt      time.Time
	ProcessedAt      *time.Time
	Status           TipStatus

	// LanguageAttempts is the diagnostics-only history of detected-language
	// guesses recorded each time this tip was processed, oldest first. A
	// processed tip that is moved back to pending and processed again gains
	// one more entry, whether or not the worker's guess changed.
	LanguageAttempts []string
}

// Processed reports whether t carries everything status=processed requires.
func (t Tip) Processed() bool {
	return t.Status == TipProcessed && t.TranslatedText != nil && t.ProcessedAt != nil
}

// Embedding is the 384-dim vector representation of a Tip's translated text.
type Embedding struct {
	ID        int64
	TipID     int64
	Vector    [EmbeddingDim]float32
	CreatedAt time.Time
}

// Promotion is a derived consensus-tip record for a Location.
type Promotion struct {
	ID              int64
	LocationID      int64
	TipText         string
	MentionCount    int
	SimilarityScore float64
	PromotedAt      time.Time
}

// ProcessedTip is the narrow projection the Promotion Engine consumes:
// a processed tip's identity, canonical text and embedding, nothing else.
type ProcessedTip struct {
	TipID          int64
	TranslatedText string
	Vector         [EmbeddingDim]float32
	SubmittedAt    time.Time
}
