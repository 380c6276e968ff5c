// Reputation ledger: point awards, automatic penalties, activity statistics and badges.
//
// Every score change is an atomic increment at the storage layer. Badge evaluation reads the post-increment record and never re-triggers itself.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/forumkit/steward/moderation/cachestore"
	"github.com/forumkit/steward/notify"
	"github.com/forumkit/steward/store"
)

var (
	ErrUnknownAction    = errors.New("unknown reputation action")
	ErrUnknownViolation = errors.New("unknown violation kind")
	ErrUnknownStatistic = errors.New("unknown statistic")
)

// Cache namespace for reputation scores.
const CacheName = "reputation"

type Engine struct {
	Users  store.UserStore
	Config Config
	Logger *slog.Logger
	// Optional read-through cache for ReputationScore, purged on every change.
	Cache cachestore.CacheStore
	// Optional; nil drops notifications.
	Notify *notify.Dispatcher
}

func NewEngine(users store.UserStore, config Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Users:  users,
		Config: config,
		Logger: logger.With("component", "reputation"),
	}
}

// Outcome of a reputation change.
type Change struct {
	User *store.UserRecord `json:"user"`
	// Whether the record existed before this change.
	Lookup    store.LookupResult `json:"-"`
	Points    int64              `json:"points"`
	NewBadges []string           `json:"newBadges"`
}

func (e *Engine) AddReputation(ctx context.Context, userID int64, action Action) (*Change, error) {
	points, ok := e.Config.Actions[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return e.AddPoints(ctx, userID, points)
}

// Applies an explicit point delta, which may be negative. The record is created if absent.
func (e *Engine) AddPoints(ctx context.Context, userID int64, points int64) (*Change, error) {
	_, lookup, err := e.Users.GetOrCreateUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", userID, err)
	}
	if lookup == store.Created {
		e.Logger.Info("created reputation record", "user", userID)
	}

	u, err := e.Users.IncrementUser(ctx, userID, map[store.UserField]int64{store.FieldReputation: points})
	if err != nil {
		return nil, fmt.Errorf("updating reputation for user %d: %w", userID, err)
	}
	e.purge(ctx, userID)
	if points >= 0 {
		pointsApplied.WithLabelValues("gained").Add(float64(points))
	} else {
		pointsApplied.WithLabelValues("lost").Add(float64(-points))
	}

	change := &Change{User: u, Lookup: lookup, Points: points}
	if err := e.evaluate(ctx, change); err != nil {
		return change, err
	}
	return change, nil
}

func (e *Engine) ApplyAutoPenalty(ctx context.Context, userID int64, violation Violation) (*Change, error) {
	points, ok := e.Config.Penalties[violation]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownViolation, violation)
	}
	change, err := e.AddPoints(ctx, userID, points)
	if err != nil {
		return nil, err
	}
	penaltyCount.WithLabelValues(string(violation)).Inc()
	e.Logger.Info("applied penalty", "user", userID, "violation", violation, "points", points, "score", change.User.ReputationScore)
	e.Notify.Dispatch(notify.Event{
		Kind:   notify.KindPenaltyApplied,
		UserID: userID,
		Points: points,
		Reason: string(violation),
	})
	return change, nil
}

// Applies statistic deltas atomically, then re-evaluates badges. Unknown statistic names fail the whole update.
func (e *Engine) UpdateStatistics(ctx context.Context, userID int64, deltas map[store.UserField]int64) (*Change, error) {
	for field := range deltas {
		if !statisticFields[field] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatistic, field)
		}
	}
	u, err := e.Users.IncrementUser(ctx, userID, deltas)
	if err != nil {
		return nil, fmt.Errorf("updating statistics for user %d: %w", userID, err)
	}
	change := &Change{User: u, Lookup: store.Found}
	if err := e.evaluate(ctx, change); err != nil {
		return change, err
	}
	return change, nil
}

// Awards every badge the user now qualifies for and does not yet hold. Returns the names of new badges.
func (e *Engine) CheckAndAwardBadges(ctx context.Context, userID int64) ([]string, error) {
	u, _, err := e.Users.GetOrCreateUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", userID, err)
	}
	change := &Change{User: u}
	if err := e.evaluate(ctx, change); err != nil {
		return change.NewBadges, err
	}
	return change.NewBadges, nil
}

// evaluates badges against the snapshot in change.User, refreshing it if anything was awarded
func (e *Engine) evaluate(ctx context.Context, change *Change) error {
	stats := StatsOf(change.User)
	change.NewBadges = []string{}
	for _, b := range e.Config.Badges {
		if change.User.HasBadge(b.Name) || !b.Earned(stats) {
			continue
		}
		awarded, err := e.Users.AwardBadge(ctx, change.User.UserID, b.Name, e.Config.BadgeBonus)
		if err != nil {
			return fmt.Errorf("awarding badge %q to user %d: %w", b.Name, change.User.UserID, err)
		}
		if !awarded {
			// granted concurrently by another request
			continue
		}
		change.NewBadges = append(change.NewBadges, b.Name)
		badgesAwarded.WithLabelValues(b.Name).Inc()
		e.Logger.Info("awarded badge", "user", change.User.UserID, "badge", b.Name)
		e.Notify.Dispatch(notify.Event{
			Kind:   notify.KindBadgeAwarded,
			UserID: change.User.UserID,
			Badge:  b.Name,
			Points: e.Config.BadgeBonus,
		})
	}
	if len(change.NewBadges) == 0 {
		return nil
	}
	e.purge(ctx, change.User.UserID)
	u, err := e.Users.GetUser(ctx, change.User.UserID)
	if err != nil {
		return err
	}
	change.User = u
	return nil
}

func (e *Engine) purge(ctx context.Context, userID int64) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.Purge(ctx, CacheName, strconv.FormatInt(userID, 10)); err != nil {
		e.Logger.Warn("failed to purge reputation cache", "user", userID, "err", err)
	}
}

// Current score, read through the cache. Users without a record score zero.
func (e *Engine) ReputationScore(ctx context.Context, userID int64) (int64, error) {
	key := strconv.FormatInt(userID, 10)
	if e.Cache != nil {
		v, err := e.Cache.Get(ctx, CacheName, key)
		if err != nil {
			e.Logger.Warn("reputation cache read failed", "user", userID, "err", err)
		} else if v != "" {
			if score, err := strconv.ParseInt(v, 10, 64); err == nil {
				return score, nil
			}
		}
	}

	start := time.Now()
	var score int64
	u, err := e.Users.GetUser(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		score = 0
	case err != nil:
		return 0, err
	default:
		score = u.ReputationScore
	}
	scoreLookupDuration.Observe(time.Since(start).Seconds())

	if e.Cache != nil {
		if err := e.Cache.Set(ctx, CacheName, key, strconv.FormatInt(score, 10)); err != nil {
			e.Logger.Warn("reputation cache write failed", "user", userID, "err", err)
		}
	}
	return score, nil
}

// The full record, creating an empty one on first touch.
func (e *Engine) GetRecord(ctx context.Context, userID int64) (*store.UserRecord, error) {
	u, _, err := e.Users.GetOrCreateUser(ctx, userID)
	return u, err
}
