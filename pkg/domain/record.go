package domain

import "time"

// Record represents a single item extracted from a page
type Record struct {
	GUID        string // dedup key, text of the guid var
	Title       string
	Link        string
	Description string
	Published   time.Time // stamped on first insertion, never recomputed
}
