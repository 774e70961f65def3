package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vliewarden/backend/internal/config"
	"github.com/vliewarden/backend/internal/database/testdb"
	"github.com/vliewarden/backend/internal/logger"
	"github.com/vliewarden/backend/internal/models"
	"github.com/vliewarden/backend/internal/votes"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
	ledger *votes.Ledger
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := testdb.Service(t)
	cfg := &config.Config{Mode: "test"}
	cfg.Server.Port = "0"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.TTL = time.Hour

	ledger := votes.NewLedger(svc.GetDB(), logger.Nop())
	s := New(cfg, logger.Nop(), svc, ledger)
	return &testAPI{t: t, router: s.RegisterRoutes(), db: svc.GetDB(), ledger: ledger}
}

func (a *testAPI) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// register creates an account and returns its token and id.
func (a *testAPI) register(username string) (string, int) {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/register", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	}, "")
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(a.t, w)
	user := body["user"].(map[string]any)
	return body["token"].(string), int(user["id"].(float64))
}

func (a *testAPI) login(username string) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.do(http.MethodPost, "/api/auth/login", gin.H{
		"email":    username + "@example.com",
		"password": "password123",
	}, "")
}

func (a *testAPI) createPost(token, title string) int {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/posts", gin.H{
		"title":       title,
		"description": "in good condition",
		"price":       25,
		"category":    "Books",
		"city":        "Amsterdam",
	}, token)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return int(decode(a.t, w)["id"].(float64))
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "up", decode(t, w)["status"])
}

func TestRegisterLoginMe(t *testing.T) {
	api := newTestAPI(t)
	token, id := api.register("alice")

	w := api.do(http.MethodPost, "/api/auth/register", gin.H{
		"username": "alice", "email": "other@example.com", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/auth/register", gin.H{
		"username": "bob", "email": "not-an-email", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/auth/login", gin.H{"email": "alice@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.login("alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])

	w = api.do(http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	assert.Equal(t, "alice@example.com", me["email"])
	assert.EqualValues(t, id, me["id"])

	w = api.do(http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodGet, "/api/users/alice", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "alice@example.com")
}

func TestVoteEndpoints(t *testing.T) {
	api := newTestAPI(t)
	tokenA, _ := api.register("anna")
	tokenB, _ := api.register("bram")
	postID := api.createPost(tokenA, "Desk lamp")

	cast := func(token string, kind string, id, dir int) *httptest.ResponseRecorder {
		return api.do(http.MethodPost, "/api/votes", gin.H{
			"content_type": kind, "content_id": id, "vote_type": dir,
		}, token)
	}

	w := cast(tokenA, "post", postID, 1)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"upvotes":1,"downvotes":0,"score":1,"userVote":1}`, w.Body.String())

	w = cast(tokenB, "post", postID, -1)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"upvotes":1,"downvotes":1,"score":0,"userVote":-1}`, w.Body.String())

	w = cast(tokenA, "post", postID, 1)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"upvotes":0,"downvotes":1,"score":-1,"userVote":0}`, w.Body.String())

	w = api.do(http.MethodGet, fmt.Sprintf("/api/votes/post/%d", postID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"upvotes":0,"downvotes":1,"score":-1}`, w.Body.String())

	w = api.do(http.MethodGet, fmt.Sprintf("/api/votes/post/%d/user", postID), nil, tokenB)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userVote":-1}`, w.Body.String())

	w = api.do(http.MethodGet, fmt.Sprintf("/api/votes/post/%d/user", postID), nil, tokenA)
	assert.JSONEq(t, `{"userVote":0}`, w.Body.String())

	w = api.do(http.MethodDelete, fmt.Sprintf("/api/votes/post/%d", postID), nil, tokenB)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"upvotes":0,"downvotes":0,"score":0,"userVote":0}`, w.Body.String())

	// Withdrawing again is a no-op.
	w = api.do(http.MethodDelete, fmt.Sprintf("/api/votes/post/%d", postID), nil, tokenB)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusBadRequest, cast(tokenA, "user", postID, 1).Code)
	assert.Equal(t, http.StatusBadRequest, cast(tokenA, "post", postID, 0).Code)
	assert.Equal(t, http.StatusBadRequest, cast(tokenA, "post", postID, 2).Code)
	assert.Equal(t, http.StatusBadRequest, cast(tokenA, "post", -4, 1).Code)
	assert.Equal(t, http.StatusUnauthorized, cast("", "post", postID, 1).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/votes/listing/1", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/votes/post/abc", nil, "").Code)

	w = api.do(http.MethodGet, "/api/votes/article_comment/999", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"upvotes":0,"downvotes":0,"score":0}`, w.Body.String())
}

func TestPostListing(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("seller")
	voterToken, _ := api.register("voter")

	first := api.createPost(token, "Bookshelf")
	second := api.createPost(token, "Road bike")

	w := api.do(http.MethodPost, "/api/posts", gin.H{"title": "Bad", "category": "Spaceships"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/votes", gin.H{"content_type": "post", "content_id": first, "vote_type": 1}, voterToken)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", first), gin.H{"body": "Still available?"}, voterToken)
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(http.MethodPut, fmt.Sprintf("/api/posts/%d", second), gin.H{"status": "sold"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodPut, fmt.Sprintf("/api/posts/%d", first), gin.H{"status": "sold"}, voterToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, "/api/posts?limit=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	posts := body["posts"].([]any)
	require.Len(t, posts, 1, "sold listings are hidden by default")
	listed := posts[0].(map[string]any)
	assert.EqualValues(t, first, listed["id"])
	assert.EqualValues(t, 1, listed["upvotes"])
	assert.EqualValues(t, 1, listed["score"])
	assert.EqualValues(t, 1, listed["comment_count"])
	assert.Equal(t, "goods", listed["listing_type"])
	page := body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, page["total"])
	assert.EqualValues(t, 5, page["limit"])

	w = api.do(http.MethodGet, "/api/posts?status=sold", nil, "")
	assert.Len(t, decode(t, w)["posts"].([]any), 1)
	w = api.do(http.MethodGet, "/api/posts?q=BOOK", nil, "")
	assert.Len(t, decode(t, w)["posts"].([]any), 1)
	w = api.do(http.MethodGet, "/api/posts?category=Tutoring", nil, "")
	assert.Empty(t, decode(t, w)["posts"].([]any))

	api.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", first), nil, "")
	w = api.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", first), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["view_count"])

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/posts/9999", nil, "").Code)

	w = api.do(http.MethodGet, "/api/categories?type=services", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var cats []models.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cats))
	for _, c := range cats {
		assert.Equal(t, models.ListingServices, c.Type)
	}
}

func TestProfileTemperature(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	token, ownerID := api.register("owner")
	postID := api.createPost(token, "Sofa")

	w := api.do(http.MethodPost, "/api/articles", gin.H{"title": "Moving tips", "body": "Pack early."}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	articleID := int(decode(t, w)["id"].(float64))

	for voter := 1000; voter < 1060; voter++ {
		_, err := api.ledger.Cast(ctx, voter, votes.KindPost, postID, votes.Up)
		require.NoError(t, err)
	}
	for voter := 1000; voter < 1010; voter++ {
		_, err := api.ledger.Cast(ctx, voter, votes.KindArticle, articleID, votes.Down)
		require.NoError(t, err)
	}

	profile := func() map[string]any {
		w := api.do(http.MethodGet, "/api/users/owner", nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decode(t, w)
	}

	p := profile()
	assert.EqualValues(t, ownerID, p["user"].(map[string]any)["id"])
	assert.Equal(t, 37.0, p["temperature"])
	received := p["votes"].(map[string]any)
	assert.EqualValues(t, 60, received["upvotes_received"])
	assert.EqualValues(t, 10, received["downvotes_received"])
	assert.EqualValues(t, 50, received["net_score"])

	// Deleted content stops counting but its votes stay.
	w = api.do(http.MethodDelete, fmt.Sprintf("/api/posts/%d", postID), nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	p = profile()
	assert.Equal(t, 36.4, p["temperature"])

	var remaining int64
	require.NoError(t, api.db.Model(&models.Vote{}).
		Where("content_type = ? AND content_id = ?", "post", postID).Count(&remaining).Error)
	assert.EqualValues(t, 60, remaining)
}

func TestRatings(t *testing.T) {
	api := newTestAPI(t)
	sellerToken, sellerID := api.register("seller")
	buyerToken, _ := api.register("buyer")
	postID := api.createPost(sellerToken, "Camera")

	w := api.do(http.MethodGet, fmt.Sprintf("/api/ratings/can-rate/%d", postID), nil, buyerToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["canRate"])

	w = api.do(http.MethodPost, "/api/ratings", gin.H{"post_id": postID, "rating": 5}, buyerToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK,
		api.do(http.MethodPut, fmt.Sprintf("/api/posts/%d", postID), gin.H{"status": "sold"}, sellerToken).Code)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/ratings/can-rate/%d", postID), nil, buyerToken)
	body := decode(t, w)
	assert.Equal(t, true, body["canRate"])
	assert.EqualValues(t, sellerID, body["postOwnerId"])

	w = api.do(http.MethodPost, "/api/ratings", gin.H{"post_id": postID, "rating": 6}, buyerToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPost, "/api/ratings", gin.H{"post_id": postID, "rating": 4, "comment": "Smooth"}, sellerToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/ratings", gin.H{"post_id": postID, "rating": 4, "comment": "Smooth"}, buyerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/api/ratings", gin.H{"post_id": postID, "rating": 3}, buyerToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/ratings/user/%d/average", sellerID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"average_rating":4,"total_ratings":1}`, w.Body.String())

	w = api.do(http.MethodGet, fmt.Sprintf("/api/ratings/user/%d", sellerID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var ratings []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ratings))
	require.Len(t, ratings, 1)
	assert.Equal(t, "Smooth", ratings[0]["comment"])
}

func TestModeration(t *testing.T) {
	api := newTestAPI(t)
	userToken, userID := api.register("member")
	_, targetID := api.register("spammer")
	_, modID := api.register("warden")
	postID := api.createPost(userToken, "Free kittens")

	report := gin.H{"content_type": "user", "content_id": targetID, "reason": "spam"}
	w := api.do(http.MethodPost, "/api/moderation/reports", report, userToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = api.do(http.MethodPost, "/api/moderation/reports", report, userToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPost, "/api/moderation/reports",
		gin.H{"content_type": "user", "content_id": userID, "reason": "spam"}, userToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPost, "/api/moderation/reports",
		gin.H{"content_type": "post", "content_id": postID, "reason": "boring"}, userToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/moderation/reports", nil, userToken).Code)

	require.NoError(t, api.db.Model(&models.User{}).Where("id = ?", modID).
		Update("role", models.RoleModerator).Error)
	w = api.login("warden")
	require.Equal(t, http.StatusOK, w.Code)
	modToken := decode(t, w)["token"].(string)

	w = api.do(http.MethodGet, "/api/moderation/reports?status=pending", nil, modToken)
	require.Equal(t, http.StatusOK, w.Code)
	var reports []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	reportID := int(reports[0]["id"].(float64))

	w = api.do(http.MethodPut, fmt.Sprintf("/api/moderation/reports/%d", reportID),
		gin.H{"status": "resolved", "resolution_note": "banned"}, modToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, fmt.Sprintf("/api/moderation/users/%d/ban", targetID), gin.H{"reason": ""}, modToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPost, fmt.Sprintf("/api/moderation/users/%d/ban", modID), gin.H{"reason": "self"}, modToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPost, fmt.Sprintf("/api/moderation/users/%d/ban", targetID), gin.H{"reason": "spam"}, modToken)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusForbidden, api.login("spammer").Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/users/spammer", nil, "").Code)

	w = api.do(http.MethodPut, fmt.Sprintf("/api/moderation/users/%d/role", userID), gin.H{"role": "moderator"}, modToken)
	assert.Equal(t, http.StatusForbidden, w.Code, "role changes are admin-only")

	w = api.do(http.MethodDelete, fmt.Sprintf("/api/moderation/posts/%d", postID), nil, modToken)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodDelete, fmt.Sprintf("/api/moderation/posts/%d", postID), nil, modToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/moderation/stats", nil, modToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pendingReports":0,"totalReports":1,"bannedUsers":1,"totalUsers":3}`, w.Body.String())

	w = api.do(http.MethodPost, fmt.Sprintf("/api/moderation/users/%d/unban", targetID), nil, modToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, api.login("spammer").Code)
}

func TestArticlesAndComments(t *testing.T) {
	api := newTestAPI(t)
	authorToken, _ := api.register("writer")
	readerToken, _ := api.register("reader")

	w := api.do(http.MethodPost, "/api/articles", gin.H{"title": "Hi", "body": "x"}, authorToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/articles", gin.H{"title": "Selling safely", "body": "Meet in public."}, authorToken)
	require.Equal(t, http.StatusCreated, w.Code)
	articleID := int(decode(t, w)["id"].(float64))

	w = api.do(http.MethodPut, fmt.Sprintf("/api/articles/%d", articleID),
		gin.H{"title": "Hijacked", "body": "..."}, readerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, fmt.Sprintf("/api/articles/%d/comments", articleID), gin.H{"body": "Helpful"}, readerToken)
	require.Equal(t, http.StatusCreated, w.Code)
	commentID := int(decode(t, w)["id"].(float64))

	w = api.do(http.MethodPost, "/api/votes",
		gin.H{"content_type": "article_comment", "content_id": commentID, "vote_type": 1}, authorToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/articles/%d/comments", articleID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var comments []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &comments))
	require.Len(t, comments, 1)
	assert.EqualValues(t, 1, comments[0]["upvotes"])

	w = api.do(http.MethodGet, "/api/articles", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)["articles"].([]any)
	require.Len(t, listed, 1)
	assert.EqualValues(t, 1, listed[0].(map[string]any)["comment_count"])

	w = api.do(http.MethodDelete, fmt.Sprintf("/api/articles/comments/%d", commentID), nil, authorToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = api.do(http.MethodDelete, fmt.Sprintf("/api/articles/comments/%d", commentID), nil, readerToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodDelete, fmt.Sprintf("/api/articles/%d", articleID), nil, authorToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, fmt.Sprintf("/api/articles/%d", articleID), nil, "").Code)
}

func TestPostCommentOwnership(t *testing.T) {
	api := newTestAPI(t)
	ownerToken, _ := api.register("poster")
	otherToken, _ := api.register("passerby")
	postID := api.createPost(ownerToken, "Garden chairs")

	w := api.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), gin.H{"body": ""}, otherToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPost, "/api/posts/9999/comments", gin.H{"body": "hello"}, otherToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), gin.H{"body": "Price?"}, otherToken)
	require.Equal(t, http.StatusCreated, w.Code)
	commentID := int(decode(t, w)["id"].(float64))

	w = api.do(http.MethodPut, fmt.Sprintf("/api/comments/%d", commentID), gin.H{"body": "edited"}, ownerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = api.do(http.MethodPut, fmt.Sprintf("/api/comments/%d", commentID), gin.H{"body": "Lowest price?"}, otherToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Lowest price?", decode(t, w)["body"])

	w = api.do(http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", postID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var comments []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &comments))
	require.Len(t, comments, 1)
	assert.EqualValues(t, 0, comments[0]["score"])

	w = api.do(http.MethodDelete, fmt.Sprintf("/api/comments/%d", commentID), nil, otherToken)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodDelete, fmt.Sprintf("/api/comments/%d", commentID), nil, otherToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// promote sets the role directly and returns a fresh token carrying it.
func (a *testAPI) promote(username, role string) string {
	a.t.Helper()
	require.NoError(a.t, a.db.Model(&models.User{}).Where("username = ?", username).Update("role", role).Error)
	w := a.login(username)
	require.Equal(a.t, http.StatusOK, w.Code)
	return decode(a.t, w)["token"].(string)
}

func TestUserRoutesByUsername(t *testing.T) {
	api := newTestAPI(t)
	sellerToken, sellerID := api.register("seller")
	buyerToken, _ := api.register("buyer")
	postID := api.createPost(sellerToken, "Typewriter")
	api.createPost(sellerToken, "Record player")

	w := api.do(http.MethodGet, "/api/users/seller", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)
	assert.EqualValues(t, sellerID, profile["user"].(map[string]any)["id"])
	assert.EqualValues(t, 2, profile["stats"].(map[string]any)["total_posts"])

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/users/nobody", nil, "").Code)

	w = api.do(http.MethodGet, "/api/users/seller/posts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["posts"].([]any), 2)

	w = api.do(http.MethodGet, "/api/users/seller/ratings", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	require.Equal(t, http.StatusOK,
		api.do(http.MethodPut, fmt.Sprintf("/api/posts/%d", postID), gin.H{"status": "sold"}, sellerToken).Code)
	require.Equal(t, http.StatusCreated,
		api.do(http.MethodPost, "/api/ratings", gin.H{"post_id": postID, "rating": 5, "comment": "Works"}, buyerToken).Code)

	w = api.do(http.MethodGet, "/api/users/seller/ratings", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var ratings []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ratings))
	require.Len(t, ratings, 1)
	assert.Equal(t, "Typewriter", ratings[0]["post_title"])
	assert.Equal(t, "buyer", ratings[0]["rater"].(map[string]any)["username"])
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/users/nobody/ratings", nil, "").Code)

	w = api.do(http.MethodPut, fmt.Sprintf("/api/users/%d", sellerID), gin.H{"bio": "Vintage gear"}, sellerToken)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodGet, "/api/users/seller", nil, "")
	assert.Equal(t, "Vintage gear", decode(t, w)["user"].(map[string]any)["bio"])
}

func TestReadsIncludeCallerVoteWhenAuthenticated(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("reader")
	postID := api.createPost(token, "Bike lock")

	w := api.do(http.MethodPost, "/api/votes", gin.H{"content_type": "post", "content_id": postID, "vote_type": -1}, token)
	require.Equal(t, http.StatusOK, w.Code)

	path := fmt.Sprintf("/api/votes/post/%d", postID)
	w = api.do(http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"upvotes":0,"downvotes":1,"score":-1}`, w.Body.String())

	w = api.do(http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"upvotes":0,"downvotes":1,"score":-1,"userVote":-1}`, w.Body.String())

	// A bad token degrades to the anonymous view.
	w = api.do(http.MethodGet, path, nil, "not-a-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode(t, w), "userVote")

	w = api.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode(t, w), "userVote")

	w = api.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, -1, decode(t, w)["userVote"])

	other, _ := api.register("other")
	w = api.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), nil, other)
	assert.EqualValues(t, 0, decode(t, w)["userVote"])
}

func TestReportDetailAndUserList(t *testing.T) {
	api := newTestAPI(t)
	memberToken, _ := api.register("member")
	ownerToken, ownerID := api.register("poster")
	api.register("warden")
	api.register("chief")
	postID := api.createPost(ownerToken, "Suspicious deal")
	w := api.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), gin.H{"body": "first"}, ownerToken)
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(http.MethodPost, "/api/moderation/reports",
		gin.H{"content_type": "post", "content_id": postID, "reason": "scam"}, memberToken)
	require.Equal(t, http.StatusCreated, w.Code)
	postReport := int(decode(t, w)["reportId"].(float64))
	w = api.do(http.MethodPost, "/api/moderation/reports",
		gin.H{"content_type": "user", "content_id": ownerID, "reason": "spam"}, memberToken)
	require.Equal(t, http.StatusCreated, w.Code)
	userReport := int(decode(t, w)["reportId"].(float64))

	modToken := api.promote("warden", models.RoleModerator)
	adminToken := api.promote("chief", models.RoleAdmin)

	assert.Equal(t, http.StatusForbidden,
		api.do(http.MethodGet, fmt.Sprintf("/api/moderation/reports/%d", postReport), nil, memberToken).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/moderation/reports/9999", nil, modToken).Code)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/moderation/reports/%d", postReport), nil, modToken)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.Equal(t, "member", detail["report"].(map[string]any)["reporter"].(map[string]any)["username"])
	content := detail["content"].(map[string]any)
	assert.Equal(t, "Suspicious deal", content["title"])
	assert.Equal(t, "poster", content["user"].(map[string]any)["username"])

	w = api.do(http.MethodGet, fmt.Sprintf("/api/moderation/reports/%d", userReport), nil, modToken)
	require.Equal(t, http.StatusOK, w.Code)
	reported := decode(t, w)["content"].(map[string]any)
	assert.Equal(t, "poster", reported["username"])
	assert.Equal(t, "poster@example.com", reported["email"])

	require.Equal(t, http.StatusOK, api.do(http.MethodPut, fmt.Sprintf("/api/moderation/reports/%d", postReport),
		gin.H{"status": "reviewed"}, modToken).Code)
	w = api.do(http.MethodGet, "/api/moderation/reports?content_type=post", nil, modToken)
	require.Equal(t, http.StatusOK, w.Code)
	var reports []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "warden", reports[0]["reviewer"].(map[string]any)["username"])

	require.Equal(t, http.StatusOK,
		api.do(http.MethodDelete, fmt.Sprintf("/api/moderation/posts/%d", postID), nil, modToken).Code)
	w = api.do(http.MethodGet, fmt.Sprintf("/api/moderation/reports/%d", postReport), nil, modToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["content"])

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/moderation/users", nil, modToken).Code)
	w = api.do(http.MethodGet, "/api/moderation/users", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 4)
	byName := make(map[string]map[string]any, len(users))
	for _, u := range users {
		byName[u["username"].(string)] = u
	}
	assert.EqualValues(t, 0, byName["poster"]["post_count"], "moderator removal deletes the post")
	assert.EqualValues(t, 0, byName["poster"]["comment_count"])
	assert.Equal(t, models.RoleAdmin, byName["chief"]["role"])
	assert.Equal(t, "member@example.com", byName["member"]["email"])
}

func TestCities(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("mover")
	api.createPost(token, "Couch")
	api.createPost(token, "Lamp")
	w := api.do(http.MethodPost, "/api/posts", gin.H{"title": "Bike", "category": "Vehicles", "city": "Utrecht"}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	w = api.do(http.MethodPost, "/api/posts", gin.H{"title": "Tutor", "category": "Tutoring"}, token)
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(http.MethodGet, "/api/cities", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"city":"Amsterdam","listings":2},{"city":"Utrecht","listings":1}]`, w.Body.String())
}
