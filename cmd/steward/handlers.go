package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/forumkit/steward/moderation"
	"github.com/forumkit/steward/store"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

var errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")

// Maps an error to an HTTP status and a short machine-readable name.
func errorStatus(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, strings.ReplaceAll(http.StatusText(he.Code), " ", "")
	case errors.Is(err, moderation.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, moderation.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, moderation.ErrRateLimited):
		return http.StatusTooManyRequests, "RateLimited"
	case errors.Is(err, moderation.ErrLocked):
		return http.StatusConflict, "Locked"
	case errors.Is(err, moderation.ErrInvalidTransition):
		return http.StatusConflict, "InvalidTransition"
	case errors.Is(err, moderation.ErrDepthLimit):
		return http.StatusBadRequest, "DepthLimitExceeded"
	case moderation.IsValidation(err):
		return http.StatusBadRequest, "InvalidRequest"
	}
	return http.StatusInternalServerError, "InternalError"
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code, name := errorStatus(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprintf("%v", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("steward-http-internal-error", "err", err, "path", c.Path())
		msg = "internal server error"
	}
	if c.Response().Committed {
		return
	}
	if err := c.JSON(code, GenericError{Error: name, Message: msg}); err != nil {
		srv.logger.Error("failed to write error response", "err", err)
	}
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	if err := srv.store.Ping(c.Request().Context()); err != nil {
		slog.Error("health check failed", "err", err)
		return c.JSON(http.StatusInternalServerError, GenericStatus{Daemon: "steward", Status: "error", Message: "database not reachable"})
	}
	return c.JSON(http.StatusOK, GenericStatus{Daemon: "steward", Status: "ok"})
}

func pathUserID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return nil
}

type analyzeRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (srv *Server) HandleAnalyze(c echo.Context) error {
	var req analyzeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, srv.engine.Analyzer.Analyze(req.Title, req.Body))
}

type submitPostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (srv *Server) HandleSubmitPost(c echo.Context) error {
	var req submitPostRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sub, err := srv.engine.SubmitPost(c.Request().Context(), actorOf(c), req.Title, req.Body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sub)
}

type submitCommentRequest struct {
	Body     string  `json:"body"`
	ParentID *string `json:"parentId,omitempty"`
}

func (srv *Server) HandleSubmitComment(c echo.Context) error {
	var req submitCommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sub, err := srv.engine.SubmitComment(c.Request().Context(), actorOf(c), c.Param("id"), req.Body, req.ParentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sub)
}

func (srv *Server) HandleGetContent(c echo.Context) error {
	item, err := srv.store.GetContent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

type flagsResponse struct {
	ID    string   `json:"id"`
	Flags []string `json:"flags"`
}

func (srv *Server) HandleGetContentFlags(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := srv.store.GetContent(ctx, id); err != nil {
		return err
	}
	flags, err := srv.engine.ContentFlags(ctx, id)
	if err != nil {
		return err
	}
	if flags == nil {
		flags = []string{}
	}
	return c.JSON(http.StatusOK, flagsResponse{ID: id, Flags: flags})
}

func (srv *Server) HandleReport(c echo.Context) error {
	out, err := srv.engine.ReportContent(c.Request().Context(), actorOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) HandleLike(c echo.Context) error {
	item, err := srv.engine.Like(c.Request().Context(), actorOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (srv *Server) HandleDislike(c echo.Context) error {
	item, err := srv.engine.Dislike(c.Request().Context(), actorOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (srv *Server) HandleMarkHelpful(c echo.Context) error {
	change, err := srv.engine.MarkHelpful(c.Request().Context(), actorOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, change)
}

type moderateRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (srv *Server) HandleModerate(c echo.Context) error {
	var req moderateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	status := store.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	item, err := srv.engine.Moderate(c.Request().Context(), actorOf(c), c.Param("id"), status, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

func (srv *Server) HandleSetLocked(c echo.Context) error {
	var req lockRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := srv.engine.SetLocked(ctx, actorOf(c), c.Param("id"), req.Locked); err != nil {
		return err
	}
	item, err := srv.store.GetContent(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (srv *Server) HandleDeletePost(c echo.Context) error {
	d, err := srv.engine.DeletePost(c.Request().Context(), actorOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

type deleteCommentResponse struct {
	ID      string `json:"id"`
	Removed int    `json:"removed"`
}

func (srv *Server) HandleDeleteComment(c echo.Context) error {
	n, err := srv.engine.DeleteComment(c.Request().Context(), actorOf(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deleteCommentResponse{ID: c.Param("id"), Removed: n})
}

func (srv *Server) HandleFollow(c echo.Context) error {
	followee, err := pathUserID(c)
	if err != nil {
		return err
	}
	change, err := srv.engine.RecordFollow(c.Request().Context(), actorOf(c), followee)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, change)
}

type reputationResponse struct {
	*store.UserRecord
	DisplayScore int64    `json:"displayScore"`
	Flags        []string `json:"flags"`
}

func (srv *Server) HandleGetReputation(c echo.Context) error {
	userID, err := pathUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	u, err := srv.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	flags, err := srv.engine.AccountFlags(ctx, userID)
	if err != nil {
		return err
	}
	if flags == nil {
		flags = []string{}
	}
	return c.JSON(http.StatusOK, reputationResponse{UserRecord: u, DisplayScore: u.DisplayScore(), Flags: flags})
}

func (srv *Server) HandleGetBehavior(c echo.Context) error {
	if _, err := requireModerator(c); err != nil {
		return err
	}
	userID, err := pathUserID(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, srv.engine.Behavior.AnalyzeUserBehavior(c.Request().Context(), userID))
}

func (srv *Server) HandleModerationReport(c echo.Context) error {
	if _, err := requireModerator(c); err != nil {
		return err
	}
	start, end, err := parseRange(c.QueryParam("start"), c.QueryParam("end"), time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, srv.reports.Generate(c.Request().Context(), start, end))
}
