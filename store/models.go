package store

import (
	"time"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusFlagged  Status = "FLAGGED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusFlagged:
		return true
	}
	return false
}

type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

func (k Kind) Valid() bool {
	return k == KindPost || k == KindComment
}

// A post or a comment. Both kinds share one table (or collection), discriminated by Kind.
type ContentItem struct {
	ID       string `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Kind     Kind   `gorm:"size:16;index:idx_content_kind_created" bson:"kind" json:"kind"`
	AuthorID int64  `gorm:"index:idx_content_author_created" bson:"authorId" json:"authorId"`

	// comment-only: root post, direct parent (nil for top-level comments), and nesting level
	PostID   string  `gorm:"size:36;index" bson:"postId,omitempty" json:"postId,omitempty"`
	ParentID *string `gorm:"size:36;index" bson:"parentId,omitempty" json:"parentId,omitempty"`
	Depth    int     `bson:"depth" json:"depth"`

	Title string `bson:"title,omitempty" json:"title,omitempty"`
	Body  string `gorm:"type:text" bson:"body" json:"body"`

	ModerationStatus Status `gorm:"size:16;index" bson:"moderationStatus" json:"moderationStatus"`
	ModerationReason string `bson:"moderationReason,omitempty" json:"moderationReason,omitempty"`
	IsModerated      bool   `bson:"isModerated" json:"isModerated"`

	ReportCount  int64 `bson:"reportCount" json:"reportCount"`
	LikeCount    int64 `bson:"likeCount" json:"likeCount"`
	DislikeCount int64 `bson:"dislikeCount" json:"dislikeCount"`

	// post-only
	CommentCount int64 `bson:"commentCount" json:"commentCount"`
	IsLocked     bool  `bson:"isLocked" json:"isLocked"`

	// Populated on read from the children's ParentID. IDs are time-ordered, so this is insertion order.
	ChildIDs []string `gorm:"-" bson:"-" json:"childIds,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_content_kind_created;index:idx_content_author_created" bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" bson:"updatedAt" json:"updatedAt"`
}

func (ContentItem) TableName() string {
	return "content_items"
}

// Named counter columns on a content item which may be atomically incremented.
type ContentCounter string

const (
	CounterLikes    ContentCounter = "like_count"
	CounterDislikes ContentCounter = "dislike_count"
	CounterComments ContentCounter = "comment_count"
)

func (c ContentCounter) Valid() bool {
	switch c {
	case CounterLikes, CounterDislikes, CounterComments:
		return true
	}
	return false
}

// Per-user reputation ledger and activity statistics.
type UserRecord struct {
	UserID          int64 `gorm:"primaryKey;autoIncrement:false" bson:"_id" json:"userId"`
	ReputationScore int64 `gorm:"index" bson:"reputationScore" json:"reputationScore"`

	PostsCount     int64 `bson:"postsCount" json:"postsCount"`
	CommentsCount  int64 `bson:"commentsCount" json:"commentsCount"`
	LikesGiven     int64 `bson:"likesGiven" json:"likesGiven"`
	LikesReceived  int64 `bson:"likesReceived" json:"likesReceived"`
	HelpfulAnswers int64 `bson:"helpfulAnswers" json:"helpfulAnswers"`
	Followers      int64 `bson:"followers" json:"followers"`

	// Populated on read from the badges table, in award order.
	Badges []string `gorm:"-" bson:"badges" json:"badges"`

	LastActivityAt time.Time `gorm:"index" bson:"lastActivityAt" json:"lastActivityAt"`
	CreatedAt      time.Time `gorm:"index" bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (UserRecord) TableName() string {
	return "user_records"
}

// Reputation clamped at zero, for display. The ledger itself may go negative.
func (u *UserRecord) DisplayScore() int64 {
	if u.ReputationScore < 0 {
		return 0
	}
	return u.ReputationScore
}

func (u *UserRecord) HasBadge(name string) bool {
	for _, b := range u.Badges {
		if b == name {
			return true
		}
	}
	return false
}

type UserBadge struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    int64     `gorm:"uniqueIndex:idx_user_badge"`
	Name      string    `gorm:"size:64;uniqueIndex:idx_user_badge"`
	CreatedAt time.Time
}

// Named statistics (and the score) on a user record which may be atomically incremented.
type UserField string

const (
	FieldReputation     UserField = "reputation_score"
	FieldPostsCount     UserField = "posts_count"
	FieldCommentsCount  UserField = "comments_count"
	FieldLikesGiven     UserField = "likes_given"
	FieldLikesReceived  UserField = "likes_received"
	FieldHelpfulAnswers UserField = "helpful_answers"
	FieldFollowers      UserField = "followers"
)

var userFieldBSON = map[UserField]string{
	FieldReputation:     "reputationScore",
	FieldPostsCount:     "postsCount",
	FieldCommentsCount:  "commentsCount",
	FieldLikesGiven:     "likesGiven",
	FieldLikesReceived:  "likesReceived",
	FieldHelpfulAnswers: "helpfulAnswers",
	FieldFollowers:      "followers",
}

func (f UserField) Valid() bool {
	_, ok := userFieldBSON[f]
	return ok
}

// Result of a user report range query.
type UserRangeCounts struct {
	NewUsers           int64
	LowReputationUsers int64
}
