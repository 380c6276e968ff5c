package moderation

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleUser, RoleModerator, RoleAdmin:
		return r, nil
	case "":
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role: %q", raw)
	}
}

// Authenticated caller, as established by the upstream auth layer.
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) IsModerator() bool {
	return a.Role == RoleModerator || a.Role == RoleAdmin
}

func (a Actor) validate() error {
	if a.UserID <= 0 {
		return invalid("user", "missing or non-positive user id")
	}
	return nil
}

// Moderators may act on anything; everyone else only on their own content.
func (a Actor) canModify(authorID int64) bool {
	return a.IsModerator() || a.UserID == authorID
}
