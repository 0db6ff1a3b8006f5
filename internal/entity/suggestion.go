package entity

import (
	"time"

	"github.com/google/uuid"
)

// Adjustment asks for one item to be removed.
type Adjustment struct {
	ItemID uuid.UUID `json:"item_id"`
	Reason string    `json:"reason"`
}

// Suggestion is the AI-assisted repair for a mismatched receipt.
type Suggestion struct {
	Adjustments []Adjustment `json:"adjustments"`
}

// Analysis is a suggestion remembered for the receipt state it was computed on.
type Analysis struct {
	ReceiptID   uuid.UUID  `json:"receipt_id"`
	Fingerprint string     `json:"fingerprint"`
	Suggestion  Suggestion `json:"suggestion"`
	AnalyzedAt  time.Time  `json:"analyzed_at"`
}
