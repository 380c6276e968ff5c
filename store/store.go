package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// Tagged outcome of a get-or-create lookup, so callers can tell first-touch apart from an existing record.
type LookupResult int

const (
	Found LookupResult = iota
	Created
)

func (r LookupResult) String() string {
	if r == Created {
		return "created"
	}
	return "found"
}

// Content persistence. All counter mutations are atomic increments at the storage layer.
type ContentStore interface {
	CreateContent(ctx context.Context, item *ContentItem) error
	// Returns ErrNotFound if missing. Populates ChildIDs.
	GetContent(ctx context.Context, id string) (*ContentItem, error)
	// Direct children of a comment, in insertion order.
	ListChildIDs(ctx context.Context, parentID string) ([]string, error)
	// All comments under a post (any depth), with only the thread structure and moderation status populated.
	ListPostComments(ctx context.Context, postID string) ([]ContentItem, error)
	UpdateModeration(ctx context.Context, id string, status Status, reason string) error
	IncrementContent(ctx context.Context, id string, counter ContentCounter, delta int64) error
	// Atomically increments the report counter, forcing FLAGGED once the post-increment count reaches threshold. Returns the updated item.
	ReportContent(ctx context.Context, id string, threshold int64) (*ContentItem, error)
	SetLocked(ctx context.Context, id string, locked bool) error
	DeleteContent(ctx context.Context, id string) error
	// Number of items of the given kind by author created at or after since.
	CountByAuthorSince(ctx context.Context, authorID int64, kind Kind, since time.Time) (int64, error)
	ListRejectedBefore(ctx context.Context, cutoff time.Time, limit int) ([]ContentItem, error)
	CountByStatus(ctx context.Context, kind Kind, start, end time.Time) (map[Status]int64, error)
}

// User reputation records. Records are created lazily by the first reputation-affecting event.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, userID int64) (*UserRecord, LookupResult, error)
	// Returns ErrNotFound if missing.
	GetUser(ctx context.Context, userID int64) (*UserRecord, error)
	// Applies all deltas atomically (creating the record if needed) and returns the post-increment record.
	IncrementUser(ctx context.Context, userID int64, deltas map[UserField]int64) (*UserRecord, error)
	// Grants a badge and its bonus points in a single transaction. Returns false if the badge was already held.
	AwardBadge(ctx context.Context, userID int64, name string, bonus int64) (bool, error)
	CountUsersInRange(ctx context.Context, start, end time.Time) (*UserRangeCounts, error)
}

type Store interface {
	ContentStore
	UserStore
	// Checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// New opaque content identifier. UUIDv7 values sort by creation time.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
