package main

import (
	"net/http"
	"strconv"

	"github.com/forumkit/steward/moderation"

	"github.com/labstack/echo/v4"
)

// Identity headers set by the upstream auth layer.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

const actorKey = "actor"

// Resolves the caller from identity headers. Requests without a user ID proceed anonymously (UserID zero), and the engine rejects them wherever an identity is required.
func (srv *Server) identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var actor moderation.Actor
		if raw := c.Request().Header.Get(HeaderUserID); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+HeaderUserID+" header")
			}
			actor.UserID = id
		}
		role, err := moderation.ParseRole(c.Request().Header.Get(HeaderUserRole))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		actor.Role = role
		c.Set(actorKey, actor)
		return next(c)
	}
}

func actorOf(c echo.Context) moderation.Actor {
	actor, _ := c.Get(actorKey).(moderation.Actor)
	return actor
}

func requireModerator(c echo.Context) (moderation.Actor, error) {
	actor := actorOf(c)
	if !actor.IsModerator() {
		return actor, moderation.ErrForbidden
	}
	return actor, nil
}
