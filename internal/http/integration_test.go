package httpapp

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alphabot-ai/newsroom/internal/auth"
	"github.com/alphabot-ai/newsroom/internal/client"
	"github.com/alphabot-ai/newsroom/internal/config"
	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/rate"
	"github.com/alphabot-ai/newsroom/internal/reaction"
	"github.com/alphabot-ai/newsroom/internal/store/sqlite"
)

type testClient struct {
	server *httptest.Server
	client *http.Client
	store  *sqlite.Store
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	cfg := config.Config{
		RateLimits:   config.RateLimits{ArticlePerMinute: 1000, CommentPerMinute: 1000, ReactionPerMinute: 1000},
		AdminSecret:  "admin",
		TokenTTL:     time.Hour,
		ChallengeTTL: time.Minute,
	}
	return newTestClientWithConfig(t, cfg)
}

func newTestClientWithConfig(t *testing.T, cfg config.Config) *testClient {
	t.Helper()
	if cfg.AdminSecret == "" {
		cfg.AdminSecret = "admin"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.ChallengeTTL == 0 {
		cfg.ChallengeTTL = time.Minute
	}
	dsnName := strings.NewReplacer("/", "_").Replace(t.Name())
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", dsnName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := reaction.SeedStatuses(context.Background(), st, []string{"like", "dislike"}); err != nil {
		t.Fatalf("seed statuses: %v", err)
	}
	limiter := rate.NewMemory()
	authSvc := auth.NewService(st, cfg.TokenTTL, cfg.ChallengeTTL)
	server := NewServer(st, authSvc, limiter, cfg, nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = st.Close()
	})
	return &testClient{server: ts, client: ts.Client(), store: st}
}

func (c *testClient) do(t *testing.T, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *testClient) postJSON(t *testing.T, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	if body == nil {
		body = map[string]any{}
	}
	return c.do(t, http.MethodPost, path, body, headers)
}

func (c *testClient) get(t *testing.T, path string, headers map[string]string) *http.Response {
	t.Helper()
	return c.do(t, http.MethodGet, path, nil, headers)
}

func decodeJSON[T any](t *testing.T, resp *http.Response, out *T) {
	t.Helper()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("json decode: %v (body %s)", err, string(body))
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, string(b))
	}
}

// createTestAccount creates an account and returns a valid access token
func createTestAccount(t *testing.T, tc *testClient, name string) string {
	t.Helper()
	helper := client.NewTestHelper(tc.server.URL)
	token, err := helper.GetToken(name)
	if err != nil {
		t.Fatalf("create test account: %v", err)
	}
	return token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func createArticle(t *testing.T, tc *testClient, token, title string) model.Article {
	t.Helper()
	resp := tc.postJSON(t, "/api/articles", map[string]any{
		"title":   title,
		"content": "Body of " + title,
	}, bearer(token))
	expectStatus(t, resp, http.StatusCreated)
	var article model.Article
	decodeJSON(t, resp, &article)
	if article.ID == 0 {
		t.Fatalf("expected article id")
	}
	return article
}

func createComment(t *testing.T, tc *testClient, token string, articleID int64, text string) model.Comment {
	t.Helper()
	resp := tc.postJSON(t, fmt.Sprintf("/api/articles/%d/comments", articleID), map[string]any{"text": text}, bearer(token))
	expectStatus(t, resp, http.StatusCreated)
	var comment model.Comment
	decodeJSON(t, resp, &comment)
	return comment
}

func react(t *testing.T, tc *testClient, token, path string, want int) reactionResponse {
	t.Helper()
	resp := tc.postJSON(t, path, nil, bearer(token))
	expectStatus(t, resp, want)
	var out reactionResponse
	decodeJSON(t, resp, &out)
	return out
}

func TestArticleCommentReactionFlow(t *testing.T) {
	tc := newTestClient(t)
	token := createTestAccount(t, tc, "flow-test")

	article := createArticle(t, tc, token, "Integration Article")
	if article.AuthorName != "flow-test" {
		t.Fatalf("expected author_name flow-test, got %q", article.AuthorName)
	}
	if article.Statuses == nil || len(article.Statuses) != 0 {
		t.Fatalf("expected empty statuses on a new article, got %v", article.Statuses)
	}

	path := fmt.Sprintf("/api/articles/%d/statuses/like", article.ID)
	res := react(t, tc, token, path, http.StatusCreated)
	if res.Outcome != model.OutcomeCreated || res.Status == nil || res.Status.Slug != "like" {
		t.Fatalf("unexpected first reaction %+v", res)
	}

	resp := tc.get(t, fmt.Sprintf("/api/articles/%d", article.ID), nil)
	expectStatus(t, resp, http.StatusOK)
	var got model.Article
	decodeJSON(t, resp, &got)
	if got.Statuses["like"] != 1 {
		t.Fatalf("expected like=1, got %v", got.Statuses)
	}

	res = react(t, tc, token, path, http.StatusOK)
	if res.Outcome != model.OutcomeCleared || res.Status != nil {
		t.Fatalf("expected cleared, got %+v", res)
	}

	res = react(t, tc, token, fmt.Sprintf("/api/articles/%d/statuses/dislike", article.ID), http.StatusOK)
	if res.Outcome != model.OutcomeUpdated || res.Status.Slug != "dislike" {
		t.Fatalf("expected updated to dislike, got %+v", res)
	}

	res = react(t, tc, token, path, http.StatusOK)
	if res.Outcome != model.OutcomeUpdated || res.Status.Slug != "like" {
		t.Fatalf("expected updated to like, got %+v", res)
	}

	resp = tc.get(t, fmt.Sprintf("/api/articles/%d/statuses", article.ID), bearer(token))
	expectStatus(t, resp, http.StatusOK)
	var counts statusCountsResponse
	decodeJSON(t, resp, &counts)
	if len(counts.Statuses) != 1 || counts.Statuses["like"] != 1 {
		t.Fatalf("expected only like=1, got %v", counts.Statuses)
	}
	if counts.Mine == nil || counts.Mine.Slug != "like" {
		t.Fatalf("expected mine=like, got %+v", counts.Mine)
	}

	comment := createComment(t, tc, token, article.ID, "First!")
	commentPath := fmt.Sprintf("/api/articles/%d/comments/%d/statuses/like", article.ID, comment.ID)
	react(t, tc, token, commentPath, http.StatusCreated)

	resp = tc.get(t, fmt.Sprintf("/api/articles/%d/comments", article.ID), nil)
	expectStatus(t, resp, http.StatusOK)
	var comments []model.Comment
	decodeJSON(t, resp, &comments)
	if len(comments) != 1 || comments[0].Statuses["like"] != 1 {
		t.Fatalf("expected one comment with like=1, got %+v", comments)
	}

	// The article tally is unaffected by the comment reaction.
	resp = tc.get(t, fmt.Sprintf("/api/articles/%d/statuses", article.ID), nil)
	counts = statusCountsResponse{}
	decodeJSON(t, resp, &counts)
	if counts.Statuses["like"] != 1 || counts.Mine != nil {
		t.Fatalf("unexpected anonymous counts %+v", counts)
	}
}

func TestReactionCountsAcrossAuthors(t *testing.T) {
	tc := newTestClient(t)
	alice := createTestAccount(t, tc, "alice")
	bob := createTestAccount(t, tc, "bob")
	carol := createTestAccount(t, tc, "carol")

	article := createArticle(t, tc, alice, "Popular")
	react(t, tc, alice, fmt.Sprintf("/api/articles/%d/statuses/like", article.ID), http.StatusCreated)
	react(t, tc, bob, fmt.Sprintf("/api/articles/%d/statuses/like", article.ID), http.StatusCreated)
	react(t, tc, carol, fmt.Sprintf("/api/articles/%d/statuses/dislike", article.ID), http.StatusCreated)

	resp := tc.get(t, "/api/articles", nil)
	expectStatus(t, resp, http.StatusOK)
	var articles []model.Article
	decodeJSON(t, resp, &articles)
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].Statuses["like"] != 2 || articles[0].Statuses["dislike"] != 1 {
		t.Fatalf("unexpected counts %v", articles[0].Statuses)
	}
}

func TestReactionErrors(t *testing.T) {
	tc := newTestClient(t)
	token := createTestAccount(t, tc, "errors-test")
	first := createArticle(t, tc, token, "First")
	second := createArticle(t, tc, token, "Second")
	comment := createComment(t, tc, token, first.ID, "on the first article")

	resp := tc.postJSON(t, fmt.Sprintf("/api/articles/%d/statuses/like", first.ID), nil, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/articles/9999/statuses/like", nil, bearer(token))
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = tc.postJSON(t, fmt.Sprintf("/api/articles/%d/statuses/meh", first.ID), nil, bearer(token))
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = tc.postJSON(t, fmt.Sprintf("/api/articles/%d/comments/%d/statuses/like", second.ID, comment.ID), nil, bearer(token))
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/articles/abc/statuses/like", nil, bearer(token))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = tc.get(t, "/api/comments/9999/statuses", nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	n, err := tc.store.CountReactions(context.Background(), model.ArticleTarget(first.ID))
	if err != nil {
		t.Fatalf("count reactions: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no reactions after failed requests, got %d", n)
	}
}

func TestAccountAuthFlow(t *testing.T) {
	tc := newTestClient(t)

	resp := tc.postJSON(t, "/api/register", map[string]any{
		"username": "bot-one",
		"email":    "bot@example.com",
		"password": "correct horse",
	}, nil)
	expectStatus(t, resp, http.StatusCreated)
	var author model.Author
	decodeJSON(t, resp, &author)
	if author.ID == 0 || author.Username != "bot-one" {
		t.Fatalf("unexpected author %+v", author)
	}

	resp = tc.postJSON(t, "/api/register", map[string]any{
		"username": "BOT-ONE",
		"password": "correct horse",
	}, nil)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/token", map[string]any{"username": "bot-one", "password": "wrong horse"}, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/token", map[string]any{"username": "bot-one", "password": "correct horse"}, nil)
	expectStatus(t, resp, http.StatusOK)
	var tokenResp struct {
		AccessToken string       `json:"access_token"`
		Author      model.Author `json:"author"`
	}
	decodeJSON(t, resp, &tokenResp)
	if tokenResp.AccessToken == "" || tokenResp.Author.ID != author.ID {
		t.Fatalf("unexpected token response %+v", tokenResp)
	}
	password := bearer(tokenResp.AccessToken)

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubB64 := base64.StdEncoding.EncodeToString(pub)
	signed := func() map[string]any {
		resp := tc.postJSON(t, "/api/auth/challenge", map[string]any{"alg": "ed25519"}, nil)
		expectStatus(t, resp, http.StatusOK)
		var challengeResp struct {
			Challenge string `json:"challenge"`
		}
		decodeJSON(t, resp, &challengeResp)
		sig := ed25519.Sign(priv, []byte(challengeResp.Challenge))
		return map[string]any{
			"alg":        "ed25519",
			"public_key": pubB64,
			"challenge":  challengeResp.Challenge,
			"signature":  base64.StdEncoding.EncodeToString(sig),
		}
	}

	// An unknown key cannot log in.
	resp = tc.postJSON(t, "/api/auth/verify", signed(), nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/keys", signed(), password)
	expectStatus(t, resp, http.StatusCreated)
	var key model.AuthorKey
	decodeJSON(t, resp, &key)

	resp = tc.postJSON(t, "/api/auth/verify", signed(), nil)
	expectStatus(t, resp, http.StatusOK)
	var verifyResp struct {
		AccessToken string       `json:"access_token"`
		Author      model.Author `json:"author"`
		KeyID       *int64       `json:"key_id"`
	}
	decodeJSON(t, resp, &verifyResp)
	if verifyResp.Author.ID != author.ID || verifyResp.KeyID == nil || *verifyResp.KeyID != key.ID {
		t.Fatalf("unexpected verify response %+v", verifyResp)
	}

	resp = tc.get(t, "/api/authors/me", bearer(verifyResp.AccessToken))
	expectStatus(t, resp, http.StatusOK)
	var me model.Author
	decodeJSON(t, resp, &me)
	if me.Username != "bot-one" {
		t.Fatalf("expected bot-one, got %q", me.Username)
	}

	resp = tc.get(t, "/api/keys", password)
	expectStatus(t, resp, http.StatusOK)
	var keys []model.AuthorKey
	decodeJSON(t, resp, &keys)
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}

	resp = tc.do(t, http.MethodDelete, "/api/keys/"+strconv.FormatInt(key.ID, 10), nil, password)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/auth/verify", signed(), nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestRegisterValidation(t *testing.T) {
	tc := newTestClient(t)
	cases := []map[string]any{
		{"username": "", "password": "long enough"},
		{"username": "has space", "password": "long enough"},
		{"username": "shortpw", "password": "short"},
		{"username": "extra", "password": "long enough", "role": "admin"},
		{"username": "longpw", "password": strings.Repeat("p", 73)},
	}
	for _, body := range cases {
		resp := tc.postJSON(t, "/api/register", body, nil)
		expectStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	}
}

func TestRateLimiting(t *testing.T) {
	cfg := config.Config{
		RateLimits: config.RateLimits{ArticlePerMinute: 1, CommentPerMinute: 1, ReactionPerMinute: 1},
	}
	tc := newTestClientWithConfig(t, cfg)
	token := createTestAccount(t, tc, "rate-test")

	article := createArticle(t, tc, token, "Rate Limit Article")

	resp := tc.postJSON(t, "/api/articles", map[string]any{
		"title":   "Rate Limit Article 2",
		"content": "again",
	}, bearer(token))
	expectStatus(t, resp, http.StatusTooManyRequests)
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	resp.Body.Close()

	path := fmt.Sprintf("/api/articles/%d/statuses/like", article.ID)
	react(t, tc, token, path, http.StatusCreated)
	resp = tc.postJSON(t, path, nil, bearer(token))
	expectStatus(t, resp, http.StatusTooManyRequests)
	resp.Body.Close()

	// The rejected toggle must not have cleared the reaction.
	resp = tc.get(t, fmt.Sprintf("/api/articles/%d/statuses", article.ID), nil)
	var counts statusCountsResponse
	decodeJSON(t, resp, &counts)
	if counts.Statuses["like"] != 1 {
		t.Fatalf("expected like=1, got %v", counts.Statuses)
	}
}

func TestRejectedCommentKeepsRateBudget(t *testing.T) {
	cfg := config.Config{
		RateLimits: config.RateLimits{ArticlePerMinute: 1, CommentPerMinute: 1, ReactionPerMinute: 1},
	}
	tc := newTestClientWithConfig(t, cfg)
	token := createTestAccount(t, tc, "careful")
	article := createArticle(t, tc, token, "Budget")
	path := fmt.Sprintf("/api/articles/%d/comments", article.ID)

	resp := tc.postJSON(t, "/api/articles/abc/comments", map[string]any{"text": "hi"}, bearer(token))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = tc.postJSON(t, path, map[string]any{"text": "   "}, bearer(token))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = tc.postJSON(t, path, map[string]any{"text": strings.Repeat("x", 256)}, bearer(token))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	createComment(t, tc, token, article.ID, "finally valid")

	resp = tc.postJSON(t, path, map[string]any{"text": "one too many"}, bearer(token))
	expectStatus(t, resp, http.StatusTooManyRequests)
	resp.Body.Close()
}

func TestCommentPatchIsPartial(t *testing.T) {
	tc := newTestClient(t)
	token := createTestAccount(t, tc, "editor")
	article := createArticle(t, tc, token, "Edits")
	comment := createComment(t, tc, token, article.ID, "first draft")
	path := fmt.Sprintf("/api/comments/%d", comment.ID)

	resp := tc.do(t, http.MethodPut, path, map[string]any{}, bearer(token))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = tc.do(t, http.MethodPatch, path, map[string]any{}, bearer(token))
	expectStatus(t, resp, http.StatusOK)
	var unchanged model.Comment
	decodeJSON(t, resp, &unchanged)
	if unchanged.Text != "first draft" {
		t.Fatalf("expected text to stay, got %q", unchanged.Text)
	}

	resp = tc.do(t, http.MethodPatch, path, map[string]any{"text": "second draft"}, bearer(token))
	expectStatus(t, resp, http.StatusOK)
	var edited model.Comment
	decodeJSON(t, resp, &edited)
	if edited.Text != "second draft" {
		t.Fatalf("expected edited text, got %q", edited.Text)
	}

	resp = tc.do(t, http.MethodPatch, path, map[string]any{"text": ""}, bearer(token))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestArticleOwnership(t *testing.T) {
	tc := newTestClient(t)
	alice := createTestAccount(t, tc, "alice")
	bob := createTestAccount(t, tc, "bob")
	article := createArticle(t, tc, alice, "Alice's article")
	path := fmt.Sprintf("/api/articles/%d", article.ID)

	resp := tc.do(t, http.MethodPatch, path, map[string]any{"title": "Hijacked"}, bearer(bob))
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = tc.do(t, http.MethodDelete, path, nil, bearer(bob))
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = tc.do(t, http.MethodPut, path, map[string]any{"title": "Only title"}, bearer(alice))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = tc.do(t, http.MethodPatch, path, map[string]any{"title": "Edited"}, bearer(alice))
	expectStatus(t, resp, http.StatusOK)
	var edited model.Article
	decodeJSON(t, resp, &edited)
	if edited.Title != "Edited" || edited.Content != article.Content {
		t.Fatalf("unexpected edit result %+v", edited)
	}

	comment := createComment(t, tc, bob, article.ID, "bob was here")
	commentPath := fmt.Sprintf("/api/comments/%d", comment.ID)
	resp = tc.do(t, http.MethodPut, commentPath, map[string]any{"text": "alice edits"}, bearer(alice))
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = tc.do(t, http.MethodPut, commentPath, map[string]any{"text": "bob edits"}, bearer(bob))
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	headers := bearer(bob)
	headers["X-Admin-Secret"] = "admin"
	resp = tc.do(t, http.MethodDelete, path, nil, headers)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = tc.get(t, commentPath, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestArticleValidation(t *testing.T) {
	tc := newTestClient(t)
	token := createTestAccount(t, tc, "validation-test")

	cases := []map[string]any{
		{"title": "", "content": "x"},
		{"title": "   ", "content": "x"},
		{"title": strings.Repeat("a", 101), "content": "x"},
		{"title": "ok", "content": "x", "url": "https://example.com"},
	}
	for _, body := range cases {
		resp := tc.postJSON(t, "/api/articles", body, bearer(token))
		expectStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	}

	article := createArticle(t, tc, token, strings.Repeat("b", 100))
	resp := tc.postJSON(t, fmt.Sprintf("/api/articles/%d/comments", article.ID), map[string]any{"text": strings.Repeat("c", 256)}, bearer(token))
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/articles/9999/comments", map[string]any{"text": "orphan"}, bearer(token))
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestListArticlesFilters(t *testing.T) {
	tc := newTestClient(t)
	alice := createTestAccount(t, tc, "alice")
	bob := createTestAccount(t, tc, "bob")
	createArticle(t, tc, alice, "Go generics")
	createArticle(t, tc, alice, "Rust traits")
	createArticle(t, tc, bob, "Go channels")

	var articles []model.Article
	decodeJSON(t, tc.get(t, "/api/articles?author=alice", nil), &articles)
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles by alice, got %d", len(articles))
	}

	decodeJSON(t, tc.get(t, "/api/articles?search=Go", nil), &articles)
	if len(articles) != 2 {
		t.Fatalf("expected 2 Go articles, got %d", len(articles))
	}
	if articles[0].Title != "Go channels" {
		t.Fatalf("expected newest first, got %q", articles[0].Title)
	}

	decodeJSON(t, tc.get(t, "/api/articles?limit=1&offset=1", nil), &articles)
	if len(articles) != 1 || articles[0].Title != "Rust traits" {
		t.Fatalf("unexpected page %+v", articles)
	}
}

func TestStatusCatalogAdmin(t *testing.T) {
	tc := newTestClient(t)
	token := createTestAccount(t, tc, "regular")
	admin := map[string]string{"X-Admin-Secret": "admin"}

	resp := tc.postJSON(t, "/api/statuses", map[string]any{"slug": "insightful", "name": "Insightful"}, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/statuses", map[string]any{"slug": "insightful", "name": "Insightful"}, bearer(token))
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/statuses", map[string]any{"slug": "insightful", "name": "Insightful"}, admin)
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/statuses", map[string]any{"slug": "insightful", "name": "Again"}, admin)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = tc.postJSON(t, "/api/statuses", map[string]any{"slug": "Bad Slug", "name": "Bad"}, admin)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	var statuses []model.Status
	decodeJSON(t, tc.get(t, "/api/statuses", nil), &statuses)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}

	resp = tc.do(t, http.MethodPatch, "/api/statuses/insightful", map[string]any{"name": "Very insightful"}, admin)
	expectStatus(t, resp, http.StatusOK)
	var renamed model.Status
	decodeJSON(t, resp, &renamed)
	if renamed.Slug != "insightful" || renamed.Name != "Very insightful" {
		t.Fatalf("unexpected rename result %+v", renamed)
	}

	article := createArticle(t, tc, token, "Deep thoughts")
	react(t, tc, token, fmt.Sprintf("/api/articles/%d/statuses/insightful", article.ID), http.StatusCreated)

	var counts statusCountsResponse
	decodeJSON(t, tc.get(t, fmt.Sprintf("/api/articles/%d/statuses", article.ID), nil), &counts)
	if counts.Statuses["Very insightful"] != 1 {
		t.Fatalf("expected counts keyed by name, got %v", counts.Statuses)
	}

	resp = tc.do(t, http.MethodDelete, "/api/statuses/insightful", nil, admin)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = tc.get(t, "/api/statuses/insightful", nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	counts = statusCountsResponse{}
	decodeJSON(t, tc.get(t, fmt.Sprintf("/api/articles/%d/statuses", article.ID), nil), &counts)
	if len(counts.Statuses) != 0 {
		t.Fatalf("expected no active statuses after delete, got %v", counts.Statuses)
	}

	// The cleared row takes the next status as an update.
	react(t, tc, token, fmt.Sprintf("/api/articles/%d/statuses/like", article.ID), http.StatusOK)
}

func TestAdminAuthor(t *testing.T) {
	tc := newTestClient(t)
	token := createTestAccount(t, tc, "editor")
	victim := createTestAccount(t, tc, "victim")
	createArticle(t, tc, victim, "Soon gone")

	resp := tc.get(t, "/api/authors", bearer(token))
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	editor, err := tc.store.GetAuthorByUsername(context.Background(), "editor")
	if err != nil {
		t.Fatalf("get editor: %v", err)
	}
	if err := tc.store.SetAuthorAdmin(context.Background(), editor.ID, true); err != nil {
		t.Fatalf("promote editor: %v", err)
	}

	resp = tc.get(t, "/api/authors", bearer(token))
	expectStatus(t, resp, http.StatusOK)
	var authors []model.Author
	decodeJSON(t, resp, &authors)
	if len(authors) != 2 {
		t.Fatalf("expected 2 authors, got %d", len(authors))
	}

	v, err := tc.store.GetAuthorByUsername(context.Background(), "victim")
	if err != nil {
		t.Fatalf("get victim: %v", err)
	}
	resp = tc.do(t, http.MethodDelete, "/api/authors/"+strconv.FormatInt(v.ID, 10), nil, bearer(token))
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = tc.get(t, "/api/authors/me", bearer(victim))
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	var articles []model.Article
	decodeJSON(t, tc.get(t, "/api/articles", nil), &articles)
	if len(articles) != 0 {
		t.Fatalf("expected articles removed with their author, got %d", len(articles))
	}
}

func TestAdminAuthFailures(t *testing.T) {
	tc := newTestClient(t)

	resp := tc.get(t, "/api/authors", map[string]string{"X-Admin-Secret": "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = tc.get(t, "/api/authors", map[string]string{"X-Admin-Secret": "admin"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestAuthRequiredForWrites(t *testing.T) {
	tc := newTestClient(t)
	token := createTestAccount(t, tc, "writer")
	article := createArticle(t, tc, token, "Readable")

	writes := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/articles", map[string]any{"title": "x", "content": "y"}},
		{http.MethodPatch, fmt.Sprintf("/api/articles/%d", article.ID), map[string]any{"title": "x"}},
		{http.MethodDelete, fmt.Sprintf("/api/articles/%d", article.ID), nil},
		{http.MethodPost, fmt.Sprintf("/api/articles/%d/comments", article.ID), map[string]any{"text": "x"}},
		{http.MethodPost, fmt.Sprintf("/api/articles/%d/statuses/like", article.ID), map[string]any{}},
		{http.MethodGet, "/api/keys", nil},
		{http.MethodGet, "/api/authors/me", nil},
	}
	for _, w := range writes {
		resp := tc.do(t, w.method, w.path, w.body, map[string]string{"Authorization": "Bearer not-a-token"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", w.method, w.path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := tc.get(t, fmt.Sprintf("/api/articles/%d", article.ID), nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestGetStats(t *testing.T) {
	tc := newTestClient(t)
	token := createTestAccount(t, tc, "stats-test")
	article := createArticle(t, tc, token, "Counted")
	createComment(t, tc, token, article.ID, "also counted")
	react(t, tc, token, fmt.Sprintf("/api/articles/%d/statuses/like", article.ID), http.StatusCreated)

	resp := tc.get(t, "/api/stats", nil)
	expectStatus(t, resp, http.StatusOK)
	var stats model.SiteStats
	decodeJSON(t, resp, &stats)
	want := model.SiteStats{Authors: 1, Articles: 1, Comments: 1, Reactions: 1}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}
