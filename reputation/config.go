package reputation

import (
	"github.com/forumkit/steward/store"
)

type Action string

const (
	ActionPostCreated            Action = "post_created"
	ActionPostLiked              Action = "post_liked"
	ActionCommentCreated         Action = "comment_created"
	ActionCommentLiked           Action = "comment_liked"
	ActionHelpfulAnswer          Action = "helpful_answer"
	ActionPostDeletedByModerator Action = "post_deleted_by_moderator"
	ActionBadgeEarned            Action = "badge_earned"
	ActionFollowed               Action = "followed"
)

type Violation string

const (
	ViolationSpam             Violation = "spam"
	ViolationInappropriate    Violation = "inappropriate"
	ViolationExcessivePosting Violation = "excessive_posting"
	ViolationRuleViolation    Violation = "rule_violation"
)

// Immutable snapshot of a user record, as seen by badge predicates.
type Stats struct {
	Score          int64
	Posts          int64
	Comments       int64
	LikesGiven     int64
	LikesReceived  int64
	HelpfulAnswers int64
	Followers      int64
}

func StatsOf(u *store.UserRecord) Stats {
	return Stats{
		Score:          u.ReputationScore,
		Posts:          u.PostsCount,
		Comments:       u.CommentsCount,
		LikesGiven:     u.LikesGiven,
		LikesReceived:  u.LikesReceived,
		HelpfulAnswers: u.HelpfulAnswers,
		Followers:      u.Followers,
	}
}

type Badge struct {
	Name   string
	Earned func(Stats) bool
}

type Config struct {
	Actions   map[Action]int64
	Penalties map[Violation]int64
	// Evaluated in order. Names must be unique.
	Badges []Badge
	// Points granted alongside each new badge.
	BadgeBonus int64
}

func DefaultConfig() Config {
	return Config{
		Actions: map[Action]int64{
			ActionPostCreated:            5,
			ActionPostLiked:              2,
			ActionCommentCreated:         2,
			ActionCommentLiked:           1,
			ActionHelpfulAnswer:          10,
			ActionPostDeletedByModerator: -10,
			ActionBadgeEarned:            25,
			ActionFollowed:               1,
		},
		Penalties: map[Violation]int64{
			ViolationSpam:             -10,
			ViolationInappropriate:    -15,
			ViolationExcessivePosting: -5,
			ViolationRuleViolation:    -8,
		},
		Badges:     DefaultBadges(),
		BadgeBonus: 25,
	}
}

func DefaultBadges() []Badge {
	return []Badge{
		{Name: "Newcomer", Earned: func(s Stats) bool { return s.Posts >= 1 }},
		{Name: "Contributor", Earned: func(s Stats) bool { return s.Posts >= 10 }},
		{Name: "Helpful", Earned: func(s Stats) bool { return s.LikesReceived >= 50 }},
		{Name: "Popular", Earned: func(s Stats) bool { return s.Followers >= 25 }},
		{Name: "Expert", Earned: func(s Stats) bool { return s.Score >= 500 }},
		{Name: "Mentor", Earned: func(s Stats) bool { return s.HelpfulAnswers >= 100 }},
		{Name: "Community Leader", Earned: func(s Stats) bool { return s.Score >= 1000 }},
	}
}

// Statistic fields which UpdateStatistics accepts. The score itself only moves through points.
var statisticFields = map[store.UserField]bool{
	store.FieldPostsCount:     true,
	store.FieldCommentsCount:  true,
	store.FieldLikesGiven:     true,
	store.FieldLikesReceived:  true,
	store.FieldHelpfulAnswers: true,
	store.FieldFollowers:      true,
}
