package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL-backed store (postgres in production, sqlite for development and tests).
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// Wraps an already-configured database handle, running schema migrations.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ContentItem{}, &UserRecord{}, &UserBadge{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}

func (s *GormStore) CreateContent(ctx context.Context, item *ContentItem) error {
	if item.ID == "" {
		item.ID = NewID()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *GormStore) GetContent(ctx context.Context, id string) (*ContentItem, error) {
	var item ContentItem
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if item.Kind == KindComment {
		children, err := s.ListChildIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		item.ChildIDs = children
	}
	return &item, nil
}

func (s *GormStore) ListChildIDs(ctx context.Context, parentID string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&ContentItem{}).
		Where("parent_id = ?", parentID).
		Order("id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GormStore) ListPostComments(ctx context.Context, postID string) ([]ContentItem, error) {
	var items []ContentItem
	err := s.db.WithContext(ctx).
		Select("id", "kind", "author_id", "post_id", "parent_id", "depth", "moderation_status").
		Where("post_id = ? AND kind = ?", postID, string(KindComment)).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *GormStore) UpdateModeration(ctx context.Context, id string, status Status, reason string) error {
	res := s.db.WithContext(ctx).Model(&ContentItem{}).Where("id = ?", id).Updates(map[string]any{
		"moderation_status": string(status),
		"moderation_reason": reason,
		"is_moderated":      true,
		"updated_at":        time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// decrements are clamped at zero; counters are never negative
func counterExpr(col string, delta int64) clause.Expr {
	if delta < 0 {
		return gorm.Expr(fmt.Sprintf("CASE WHEN %s + ? < 0 THEN 0 ELSE %s + ? END", col, col), delta, delta)
	}
	return gorm.Expr(col+" + ?", delta)
}

func (s *GormStore) IncrementContent(ctx context.Context, id string, counter ContentCounter, delta int64) error {
	if !counter.Valid() {
		return fmt.Errorf("unknown content counter: %s", counter)
	}
	res := s.db.WithContext(ctx).Model(&ContentItem{}).Where("id = ?", id).
		UpdateColumn(string(counter), counterExpr(string(counter), delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ReportContent(ctx context.Context, id string, threshold int64) (*ContentItem, error) {
	// single statement: the CASE sees the pre-increment row, so compare against report_count + 1
	res := s.db.WithContext(ctx).Model(&ContentItem{}).Where("id = ?", id).Updates(map[string]any{
		"report_count":      gorm.Expr("report_count + 1"),
		"moderation_status": gorm.Expr("CASE WHEN report_count + 1 >= ? THEN ? ELSE moderation_status END", threshold, string(StatusFlagged)),
		"updated_at":        time.Now().UTC(),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetContent(ctx, id)
}

func (s *GormStore) SetLocked(ctx context.Context, id string, locked bool) error {
	res := s.db.WithContext(ctx).Model(&ContentItem{}).
		Where("id = ? AND kind = ?", id, string(KindPost)).
		Updates(map[string]any{"is_locked": locked, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteContent(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&ContentItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CountByAuthorSince(ctx context.Context, authorID int64, kind Kind, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&ContentItem{}).
		Where("author_id = ? AND kind = ? AND created_at >= ?", authorID, string(kind), since.UTC()).
		Count(&n).Error
	return n, err
}

func (s *GormStore) ListRejectedBefore(ctx context.Context, cutoff time.Time, limit int) ([]ContentItem, error) {
	var items []ContentItem
	err := s.db.WithContext(ctx).
		Where("moderation_status = ? AND updated_at < ?", string(StatusRejected), cutoff.UTC()).
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func emptyStatusCounts() map[Status]int64 {
	return map[Status]int64{
		StatusPending:  0,
		StatusApproved: 0,
		StatusRejected: 0,
		StatusFlagged:  0,
	}
}

type statusCount struct {
	ModerationStatus string
	N                int64
}

func (s *GormStore) CountByStatus(ctx context.Context, kind Kind, start, end time.Time) (map[Status]int64, error) {
	var rows []statusCount
	err := s.db.WithContext(ctx).Model(&ContentItem{}).
		Select("moderation_status, count(*) as n").
		Where("kind = ? AND created_at >= ? AND created_at < ?", string(kind), start.UTC(), end.UTC()).
		Group("moderation_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := emptyStatusCounts()
	for _, r := range rows {
		out[Status(r.ModerationStatus)] = r.N
	}
	return out, nil
}

// inserts an empty record if none exists; reports whether this call created it
func (s *GormStore) ensureUser(ctx context.Context, userID int64) (LookupResult, error) {
	now := time.Now().UTC()
	rec := UserRecord{
		UserID:         userID,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return Found, res.Error
	}
	if res.RowsAffected > 0 {
		return Created, nil
	}
	return Found, nil
}

func (s *GormStore) GetOrCreateUser(ctx context.Context, userID int64) (*UserRecord, LookupResult, error) {
	result, err := s.ensureUser(ctx, userID)
	if err != nil {
		return nil, result, err
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, result, err
	}
	return u, result, nil
}

func (s *GormStore) GetUser(ctx context.Context, userID int64) (*UserRecord, error) {
	var u UserRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	badges := []string{}
	err = s.db.WithContext(ctx).Model(&UserBadge{}).
		Where("user_id = ?", userID).
		Order("id asc").
		Pluck("name", &badges).Error
	if err != nil {
		return nil, err
	}
	u.Badges = badges
	return &u, nil
}

func (s *GormStore) IncrementUser(ctx context.Context, userID int64, deltas map[UserField]int64) (*UserRecord, error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"last_activity_at": now,
		"updated_at":       now,
	}
	for field, delta := range deltas {
		if !field.Valid() {
			return nil, fmt.Errorf("unknown user field: %s", field)
		}
		col := string(field)
		if field == FieldReputation {
			// the ledger itself is allowed to go negative
			updates[col] = gorm.Expr(col+" + ?", delta)
		} else {
			updates[col] = counterExpr(col, delta)
		}
	}
	if _, err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Model(&UserRecord{}).Where("user_id = ?", userID).Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func (s *GormStore) AwardBadge(ctx context.Context, userID int64, name string, bonus int64) (bool, error) {
	awarded := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		badge := UserBadge{
			UserID:    userID,
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&badge)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		awarded = true
		if bonus == 0 {
			return nil
		}
		return tx.Model(&UserRecord{}).Where("user_id = ?", userID).
			UpdateColumn("reputation_score", gorm.Expr("reputation_score + ?", bonus)).Error
	})
	if err != nil {
		return false, err
	}
	return awarded, nil
}

func (s *GormStore) CountUsersInRange(ctx context.Context, start, end time.Time) (*UserRangeCounts, error) {
	var out UserRangeCounts
	err := s.db.WithContext(ctx).Model(&UserRecord{}).
		Where("created_at >= ? AND created_at < ?", start.UTC(), end.UTC()).
		Count(&out.NewUsers).Error
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(&UserRecord{}).
		Where("reputation_score < 0 AND last_activity_at >= ? AND last_activity_at < ?", start.UTC(), end.UTC()).
		Count(&out.LowReputationUsers).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}
