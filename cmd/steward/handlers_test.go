package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/forumkit/steward/moderation"
	"github.com/forumkit/steward/report"
	"github.com/forumkit/steward/store"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func testServer(t *testing.T) (*Server, *store.GormStore) {
	eng, st, err := moderation.NewTestEngine()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	srv := &Server{
		store:   st,
		engine:  eng,
		reports: report.NewGenerator(st, st, slog.Default()),
		logger:  slog.Default(),
	}
	srv.echo = srv.newEcho()
	return srv, st
}

type caller struct {
	userID int64
	role   string
}

var (
	anonymous = caller{}
	moderator = caller{userID: 100, role: "moderator"}
)

func user(id int64) caller {
	return caller{userID: id}
}

func doRequest(t *testing.T, srv *Server, who caller, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if who.userID != 0 {
		req.Header.Set(HeaderUserID, strconv.FormatInt(who.userID, 10))
	}
	if who.role != "" {
		req.Header.Set(HeaderUserRole, who.role)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

type submissionBody struct {
	Item     store.ContentItem   `json:"item"`
	Decision moderation.Decision `json:"decision"`
}

func submitPost(t *testing.T, srv *Server, who caller, title, body string) submissionBody {
	rec := doRequest(t, srv, who, http.MethodPost, "/api/posts", map[string]string{"title": title, "body": body})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit post: %d %s", rec.Code, rec.Body.String())
	}
	return decode[submissionBody](t, rec)
}

func TestHealthCheck(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)

	rec := doRequest(t, srv, anonymous, http.MethodGet, "/_health", nil)
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("ok", decode[GenericStatus](t, rec).Status)
}

func TestAnalyzeEndpoint(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)

	rec := doRequest(t, srv, anonymous, http.MethodPost, "/api/analyze", map[string]string{
		"title": "Deal",
		"body":  "Buy now and get rich quick! Click here!",
	})
	assert.Equal(http.StatusOK, rec.Code)
	out := decode[map[string]any](t, rec)
	assert.Equal(true, out["isSpam"])
	assert.Equal(false, out["isInappropriate"])
}

func TestSubmitAndFetchPost(t *testing.T) {
	assert := assert.New(t)
	srv, st := testServer(t)

	sub := submitPost(t, srv, user(7), "Baking", "Looking for advice on sourdough starters")
	assert.Equal(store.StatusApproved, sub.Decision.Status)
	assert.Equal(int64(7), sub.Item.AuthorID)

	rec := doRequest(t, srv, anonymous, http.MethodGet, "/api/content/"+sub.Item.ID, nil)
	assert.Equal(http.StatusOK, rec.Code)
	item := decode[store.ContentItem](t, rec)
	assert.Equal(sub.Item.ID, item.ID)
	assert.Equal(store.KindPost, item.Kind)

	rec = doRequest(t, srv, anonymous, http.MethodGet, "/api/users/7/reputation", nil)
	assert.Equal(http.StatusOK, rec.Code)
	rep := decode[map[string]any](t, rec)
	assert.Equal(float64(30), rep["reputationScore"])
	assert.Equal(float64(30), rep["displayScore"])
	assert.Equal(float64(1), rep["postsCount"])

	u, err := st.GetUser(t.Context(), 7)
	assert.NoError(err)
	assert.Equal([]string{"Newcomer"}, u.Badges)
}

func TestSpamPostFlags(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)

	sub := submitPost(t, srv, user(1), "Deal", "Buy now and get rich quick! Click here!")
	assert.Equal(store.StatusFlagged, sub.Decision.Status)

	rec := doRequest(t, srv, anonymous, http.MethodGet, "/api/content/"+sub.Item.ID+"/flags", nil)
	assert.Equal(http.StatusOK, rec.Code)
	assert.NotEmpty(decode[flagsResponse](t, rec).Flags)

	rec = doRequest(t, srv, anonymous, http.MethodGet, "/api/content/missing/flags", nil)
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestErrorResponses(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)
	post := submitPost(t, srv, user(1), "Gardening", "What are good plants for a shady balcony")

	tests := []struct {
		name   string
		who    caller
		method string
		path   string
		body   any
		code   int
		errStr string
	}{
		{"anonymous submit", anonymous, http.MethodPost, "/api/posts", map[string]string{"title": "t", "body": "b"}, http.StatusBadRequest, "InvalidRequest"},
		{"empty body", user(2), http.MethodPost, "/api/posts", map[string]string{"title": "t"}, http.StatusBadRequest, "InvalidRequest"},
		{"missing content", user(2), http.MethodGet, "/api/content/nope", nil, http.StatusNotFound, "NotFound"},
		{"moderate as user", user(2), http.MethodPost, "/api/content/" + post.Item.ID + "/moderate", map[string]string{"status": "rejected"}, http.StatusForbidden, "Forbidden"},
		{"report as moderator only", user(2), http.MethodGet, "/api/moderation/report", nil, http.StatusForbidden, "Forbidden"},
		{"behavior as user", user(2), http.MethodGet, "/api/users/1/behavior", nil, http.StatusForbidden, "Forbidden"},
		{"delete someone else's post", user(2), http.MethodDelete, "/api/posts/" + post.Item.ID, nil, http.StatusForbidden, "Forbidden"},
		{"self like", user(1), http.MethodPost, "/api/content/" + post.Item.ID + "/like", nil, http.StatusBadRequest, "InvalidRequest"},
		{"bad user path", user(2), http.MethodPost, "/api/users/abc/follow", nil, http.StatusBadRequest, "BadRequest"},
		{"unknown reputation", anonymous, http.MethodGet, "/api/users/999/reputation", nil, http.StatusNotFound, "NotFound"},
		{"bad report range", moderator, http.MethodGet, "/api/moderation/report?start=notadate", nil, http.StatusBadRequest, "BadRequest"},
	}
	for _, tt := range tests {
		rec := doRequest(t, srv, tt.who, tt.method, tt.path, tt.body)
		assert.Equal(tt.code, rec.Code, tt.name)
		assert.Equal(tt.errStr, decode[GenericError](t, rec).Error, tt.name)
	}
}

func TestIdentityHeaders(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/content/x", nil)
	req.Header.Set(HeaderUserID, "abc")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/content/x", nil)
	req.Header.Set(HeaderUserID, "5")
	req.Header.Set(HeaderUserRole, "superuser")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestCommentThreadAndLock(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)
	post := submitPost(t, srv, user(1), "Cycling", "Which tyres do you use for winter commuting")

	commentsPath := "/api/posts/" + post.Item.ID + "/comments"
	rec := doRequest(t, srv, user(2), http.MethodPost, commentsPath, map[string]any{"body": "Studded ones, no question"})
	assert.Equal(http.StatusCreated, rec.Code)
	top := decode[submissionBody](t, rec)
	assert.Equal(0, top.Item.Depth)

	rec = doRequest(t, srv, user(3), http.MethodPost, commentsPath, map[string]any{"body": "Agreed, they help a lot on ice", "parentId": top.Item.ID})
	assert.Equal(http.StatusCreated, rec.Code)
	reply := decode[submissionBody](t, rec)
	assert.Equal(1, reply.Item.Depth)

	rec = doRequest(t, srv, anonymous, http.MethodGet, "/api/content/"+top.Item.ID, nil)
	assert.Equal([]string{reply.Item.ID}, decode[store.ContentItem](t, rec).ChildIDs)

	// only moderators may lock
	rec = doRequest(t, srv, user(1), http.MethodPost, "/api/posts/"+post.Item.ID+"/lock", map[string]bool{"locked": true})
	assert.Equal(http.StatusForbidden, rec.Code)
	rec = doRequest(t, srv, moderator, http.MethodPost, "/api/posts/"+post.Item.ID+"/lock", map[string]bool{"locked": true})
	assert.Equal(http.StatusOK, rec.Code)
	assert.True(decode[store.ContentItem](t, rec).IsLocked)

	rec = doRequest(t, srv, user(4), http.MethodPost, commentsPath, map[string]any{"body": "Too late to join in"})
	assert.Equal(http.StatusConflict, rec.Code)
	assert.Equal("Locked", decode[GenericError](t, rec).Error)

	// cascade from the top-level comment
	rec = doRequest(t, srv, user(2), http.MethodDelete, "/api/comments/"+top.Item.ID, nil)
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal(2, decode[deleteCommentResponse](t, rec).Removed)

	rec = doRequest(t, srv, anonymous, http.MethodGet, "/api/content/"+post.Item.ID, nil)
	assert.Equal(int64(0), decode[store.ContentItem](t, rec).CommentCount)
}

func TestModerationFlow(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)
	post := submitPost(t, srv, user(1), "Deal", "Buy now and get rich quick! Click here!")
	assert.Equal(store.StatusFlagged, post.Decision.Status)

	rec := doRequest(t, srv, moderator, http.MethodPost, "/api/content/"+post.Item.ID+"/moderate", map[string]string{"status": "approved", "reason": "false positive"})
	assert.Equal(http.StatusOK, rec.Code)
	item := decode[store.ContentItem](t, rec)
	assert.Equal(store.StatusApproved, item.ModerationStatus)

	// approved content cannot be re-moderated
	rec = doRequest(t, srv, moderator, http.MethodPost, "/api/content/"+post.Item.ID+"/moderate", map[string]string{"status": "rejected"})
	assert.Equal(http.StatusConflict, rec.Code)
	assert.Equal("InvalidTransition", decode[GenericError](t, rec).Error)

	for reporter := int64(2); reporter <= 4; reporter++ {
		rec = doRequest(t, srv, user(reporter), http.MethodPost, "/api/content/"+post.Item.ID+"/report", nil)
		assert.Equal(http.StatusOK, rec.Code)
	}
	rec = doRequest(t, srv, anonymous, http.MethodGet, "/api/content/"+post.Item.ID, nil)
	item = decode[store.ContentItem](t, rec)
	assert.Equal(int64(3), item.ReportCount)
	assert.Equal(store.StatusFlagged, item.ModerationStatus)

	rec = doRequest(t, srv, moderator, http.MethodGet, "/api/moderation/report", nil)
	assert.Equal(http.StatusOK, rec.Code)
	rep := decode[report.Report](t, rec)
	assert.Equal(int64(1), rep.Posts.Flagged)
	assert.False(rep.Degraded)

	rec = doRequest(t, srv, moderator, http.MethodGet, "/api/users/1/behavior", nil)
	assert.Equal(http.StatusOK, rec.Code)
	activity := decode[map[string]any](t, rec)
	assert.Contains(activity, "recentPosts")
	assert.Contains(activity, "dailyComments")
	assert.NotContains(activity, "RecentPosts")
	assert.Contains(activity, "trustLevel")

	rec = doRequest(t, srv, moderator, http.MethodDelete, "/api/posts/"+post.Item.ID, nil)
	assert.Equal(http.StatusOK, rec.Code)
	rec = doRequest(t, srv, anonymous, http.MethodGet, "/api/content/"+post.Item.ID, nil)
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestInteractionEndpoints(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)
	post := submitPost(t, srv, user(1), "Chess", "Favourite openings for club players")

	rec := doRequest(t, srv, user(2), http.MethodPost, "/api/content/"+post.Item.ID+"/like", nil)
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal(int64(1), decode[store.ContentItem](t, rec).LikeCount)

	rec = doRequest(t, srv, user(2), http.MethodPost, "/api/content/"+post.Item.ID+"/dislike", nil)
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal(int64(1), decode[store.ContentItem](t, rec).DislikeCount)

	rec = doRequest(t, srv, user(2), http.MethodPost, "/api/users/1/follow", nil)
	assert.Equal(http.StatusOK, rec.Code)

	rec = doRequest(t, srv, anonymous, http.MethodGet, "/api/users/1/reputation", nil)
	rep := decode[map[string]any](t, rec)
	// 30 after posting, +2 post liked, +1 followed
	assert.Equal(float64(33), rep["reputationScore"])
	assert.Equal(float64(1), rep["followers"])

	rec = doRequest(t, srv, user(3), http.MethodPost, "/api/posts/"+post.Item.ID+"/comments", map[string]any{"body": "The London system is easy to learn"})
	comment := decode[submissionBody](t, rec)

	rec = doRequest(t, srv, user(4), http.MethodPost, "/api/content/"+comment.Item.ID+"/helpful", nil)
	assert.Equal(http.StatusForbidden, rec.Code)
	rec = doRequest(t, srv, user(1), http.MethodPost, "/api/content/"+comment.Item.ID+"/helpful", nil)
	assert.Equal(http.StatusOK, rec.Code)
	rec = doRequest(t, srv, anonymous, http.MethodGet, "/api/users/3/reputation", nil)
	assert.Equal(float64(1), decode[map[string]any](t, rec)["helpfulAnswers"])
}

func TestErrorStatus(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		err  error
		code int
		name string
	}{
		{moderation.ErrNotFound, http.StatusNotFound, "NotFound"},
		{fmt.Errorf("wrapped: %w", moderation.ErrForbidden), http.StatusForbidden, "Forbidden"},
		{moderation.ErrRateLimited, http.StatusTooManyRequests, "RateLimited"},
		{moderation.ErrLocked, http.StatusConflict, "Locked"},
		{moderation.ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},
		{moderation.ErrDepthLimit, http.StatusBadRequest, "DepthLimitExceeded"},
		{moderation.ErrParentMismatch, http.StatusBadRequest, "InvalidRequest"},
		{&moderation.ValidationError{Field: "body", Reason: "required"}, http.StatusBadRequest, "InvalidRequest"},
		{errTooManyRequests, http.StatusTooManyRequests, "TooManyRequests"},
		{errors.New("boom"), http.StatusInternalServerError, "InternalError"},
	}
	for _, tt := range tests {
		code, name := errorStatus(tt.err)
		assert.Equal(tt.code, code, tt.err.Error())
		assert.Equal(tt.name, name, tt.err.Error())
	}
}

func TestParseRange(t *testing.T) {
	assert := assert.New(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	start, end, err := parseRange("", "", now)
	assert.NoError(err)
	assert.Equal(now, end)
	assert.Equal(now.Add(-24*time.Hour), start)

	start, end, err = parseRange("2024-03-01", "2024-03-02T00:00:00Z", now)
	assert.NoError(err)
	assert.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), end)

	_, _, err = parseRange("yesterday-ish", "", now)
	assert.Error(err)
}

func TestCallerLimiter(t *testing.T) {
	assert := assert.New(t)
	cl := newCallerLimiter(2)

	assert.True(cl.Allow("user/1"))
	allowed := 1
	for range 20 {
		if cl.Allow("user/1") {
			allowed++
		}
	}
	assert.LessOrEqual(allowed, 4)
	assert.True(cl.Allow("user/2"))
}

func TestRequestRateLimit(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)
	srv.limiter = newCallerLimiter(1)

	limited := 0
	for range 10 {
		rec := doRequest(t, srv, user(9), http.MethodGet, "/api/content/x", nil)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Greater(limited, 0)

	// health checks are not limited
	rec := doRequest(t, srv, user(9), http.MethodGet, "/_health", nil)
	assert.Equal(http.StatusOK, rec.Code)
}
