package model

import "time"

// Token is a fungible asset descriptor, keyed by its mint address.
type Token struct {
	ID        int64     `json:"id"`
	Mint      string    `json:"mint"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Decimals  uint8     `json:"decimals"`
	CreatedAt time.Time `json:"created_at"`
}

// Placeholder metadata used when a mint is first seen without any
// registry lookup. Corrected later by operator curation.
const (
	PlaceholderTokenName     = "Unknown"
	PlaceholderTokenSymbol   = "UNK"
	PlaceholderTokenDecimals = 6
)
