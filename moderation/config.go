package moderation

import (
	"time"
)

type Config struct {
	// Post-increment report count at which an item is forced to FLAGGED.
	ReportThreshold int64
	// Limits in grapheme clusters.
	MaxBodyLength  int
	MaxTitleLength int
	// Identical bodies from one author in a calendar day before the account is flagged.
	DuplicateThreshold int
	// REJECTED items older than this are purged by CleanupRejected.
	RejectedMaxAge   time.Duration
	CleanupBatchSize int
}

func DefaultConfig() Config {
	return Config{
		ReportThreshold:    3,
		MaxBodyLength:      10_000,
		MaxTitleLength:     300,
		DuplicateThreshold: 5,
		RejectedMaxAge:     30 * 24 * time.Hour,
		CleanupBatchSize:   500,
	}
}
