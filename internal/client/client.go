// Package client provides a Go client for the Newsroom API.
package client

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Errors
var (
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotFound          = errors.New("not found")
)

// Client is a Newsroom API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	TokenExp   time.Time
}

// Credentials holds an ed25519 keypair an author can log in with.
type Credentials struct {
	Username   string
	PublicKey  string
	PrivateKey ed25519.PrivateKey
}

// New creates a new Newsroom client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GenerateCredentials creates a new ed25519 keypair for an author.
func GenerateCredentials(username string) (*Credentials, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		Username:   username,
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: priv,
	}, nil
}

// CredentialsFromKeys creates credentials from existing base64 keys.
func CredentialsFromKeys(username, pubKeyB64, privKeyB64 string) (*Credentials, error) {
	privBytes, err := base64.StdEncoding.DecodeString(privKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(privBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}
	return &Credentials{
		Username:   username,
		PublicKey:  pubKeyB64,
		PrivateKey: ed25519.PrivateKey(privBytes),
	}, nil
}

// PrivateKeyBase64 exports the private key for storage.
func (creds *Credentials) PrivateKeyBase64() string {
	return base64.StdEncoding.EncodeToString(creds.PrivateKey)
}

// Sign signs a message with the credentials.
func (creds *Credentials) Sign(message string) string {
	sig := ed25519.Sign(creds.PrivateKey, []byte(message))
	return base64.StdEncoding.EncodeToString(sig)
}

// Author is an account as returned by the API.
type Author struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Key is a public key attached to an author.
type Key struct {
	ID        int64      `json:"id"`
	Alg       string     `json:"alg"`
	PublicKey string     `json:"public_key"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Article represents an article from the API.
type Article struct {
	ID         int64          `json:"id"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	AuthorID   int64          `json:"author_id"`
	AuthorName string         `json:"author_name"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Statuses   map[string]int `json:"statuses"`
}

// Comment represents a comment from the API.
type Comment struct {
	ID         int64          `json:"id"`
	ArticleID  int64          `json:"article_id"`
	Text       string         `json:"text"`
	AuthorID   int64          `json:"author_id"`
	AuthorName string         `json:"author_name"`
	CreatedAt  time.Time      `json:"created_at"`
	Statuses   map[string]int `json:"statuses"`
}

// Status is a catalog entry.
type Status struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Reaction is the result of toggling a status.
type Reaction struct {
	Outcome string  `json:"outcome"`
	Status  *Status `json:"status"`
	Message string  `json:"message"`
}

// StatusCounts is the per-status tally on an article or comment.
type StatusCounts struct {
	Statuses map[string]int `json:"statuses"`
	Mine     *Status        `json:"mine,omitempty"`
}

// ArticleQuery filters GetArticles.
type ArticleQuery struct {
	Author string
	Search string
	Limit  int
	Offset int
}

// Register creates a new author account.
func (c *Client) Register(username, email, password string) (*Author, error) {
	reqBody := map[string]string{
		"username": username,
		"password": password,
	}
	if email != "" {
		reqBody["email"] = email
	}
	var author Author
	err := c.call(http.MethodPost, "/api/register", reqBody, &author, http.StatusCreated)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return nil, ErrAlreadyRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &author, nil
}

// Login exchanges a username and password for a bearer token.
func (c *Client) Login(username, password string) error {
	reqBody := map[string]string{"username": username, "password": password}
	var result tokenResult
	if err := c.call(http.MethodPost, "/api/token", reqBody, &result, http.StatusOK); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.setToken(result)
	return nil
}

// RegisterAndLogin registers (if needed) and logs in with a password.
func (c *Client) RegisterAndLogin(username, password string) error {
	_, err := c.Register(username, "", password)
	if err != nil && !errors.Is(err, ErrAlreadyRegistered) {
		return err
	}
	return c.Login(username, password)
}

// GetChallenge requests an authentication challenge from the server.
func (c *Client) GetChallenge(alg string) (string, error) {
	var result struct {
		Challenge string `json:"challenge"`
	}
	if err := c.call(http.MethodPost, "/api/auth/challenge", map[string]string{"alg": alg}, &result, http.StatusOK); err != nil {
		return "", err
	}
	return result.Challenge, nil
}

func (c *Client) signedChallenge(creds *Credentials) (map[string]string, error) {
	challenge, err := c.GetChallenge("ed25519")
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return map[string]string{
		"alg":        "ed25519",
		"public_key": creds.PublicKey,
		"challenge":  challenge,
		"signature":  creds.Sign(challenge),
	}, nil
}

// AddKey attaches the credentials' public key to the logged-in author.
func (c *Client) AddKey(creds *Credentials) (*Key, error) {
	body, err := c.signedChallenge(creds)
	if err != nil {
		return nil, err
	}
	var key Key
	if err := c.call(http.MethodPost, "/api/keys", body, &key, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("add key: %w", err)
	}
	return &key, nil
}

// Authenticate gets a bearer token by signing a challenge with a key that
// was attached with AddKey.
func (c *Client) Authenticate(creds *Credentials) error {
	body, err := c.signedChallenge(creds)
	if err != nil {
		return err
	}
	var result tokenResult
	if err := c.call(http.MethodPost, "/api/auth/verify", body, &result, http.StatusOK); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	c.setToken(result)
	return nil
}

// IsAuthenticated returns true if the client has a valid token.
func (c *Client) IsAuthenticated() bool {
	return c.Token != "" && time.Now().Before(c.TokenExp)
}

// Me returns the logged-in author.
func (c *Client) Me() (*Author, error) {
	var author Author
	if err := c.call(http.MethodGet, "/api/authors/me", nil, &author, http.StatusOK); err != nil {
		return nil, err
	}
	return &author, nil
}

// PostArticle creates a new article.
func (c *Client) PostArticle(title, content string) (*Article, error) {
	reqBody := map[string]string{"title": title, "content": content}
	var article Article
	if err := c.call(http.MethodPost, "/api/articles", reqBody, &article, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("post article: %w", err)
	}
	return &article, nil
}

// GetArticles fetches articles, newest first.
func (c *Client) GetArticles(q ArticleQuery) ([]Article, error) {
	params := url.Values{}
	if q.Author != "" {
		params.Set("author", q.Author)
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/api/articles"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var articles []Article
	if err := c.call(http.MethodGet, path, nil, &articles, http.StatusOK); err != nil {
		return nil, fmt.Errorf("get articles: %w", err)
	}
	return articles, nil
}

// GetArticle fetches a single article.
func (c *Client) GetArticle(id int64) (*Article, error) {
	var article Article
	if err := c.call(http.MethodGet, fmt.Sprintf("/api/articles/%d", id), nil, &article, http.StatusOK); err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return &article, nil
}

// DeleteArticle deletes an article you own.
func (c *Client) DeleteArticle(id int64) error {
	if err := c.call(http.MethodDelete, fmt.Sprintf("/api/articles/%d", id), nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return nil
}

// PostComment adds a comment to an article.
func (c *Client) PostComment(articleID int64, text string) (*Comment, error) {
	var comment Comment
	path := fmt.Sprintf("/api/articles/%d/comments", articleID)
	if err := c.call(http.MethodPost, path, map[string]string{"text": text}, &comment, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("post comment: %w", err)
	}
	return &comment, nil
}

// GetComments fetches the comments of an article.
func (c *Client) GetComments(articleID int64) ([]Comment, error) {
	var comments []Comment
	path := fmt.Sprintf("/api/articles/%d/comments", articleID)
	if err := c.call(http.MethodGet, path, nil, &comments, http.StatusOK); err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}
	return comments, nil
}

// React toggles a status on an article.
func (c *Client) React(articleID int64, slug string) (*Reaction, error) {
	return c.react(fmt.Sprintf("/api/articles/%d/statuses/%s", articleID, url.PathEscape(slug)))
}

// ReactComment toggles a status on a comment of an article.
func (c *Client) ReactComment(articleID, commentID int64, slug string) (*Reaction, error) {
	return c.react(fmt.Sprintf("/api/articles/%d/comments/%d/statuses/%s", articleID, commentID, url.PathEscape(slug)))
}

func (c *Client) react(path string) (*Reaction, error) {
	var result Reaction
	if err := c.call(http.MethodPost, path, nil, &result, http.StatusCreated, http.StatusOK); err != nil {
		return nil, fmt.Errorf("react: %w", err)
	}
	return &result, nil
}

// StatusCounts fetches the status tally of an article.
func (c *Client) StatusCounts(articleID int64) (*StatusCounts, error) {
	var counts StatusCounts
	if err := c.call(http.MethodGet, fmt.Sprintf("/api/articles/%d/statuses", articleID), nil, &counts, http.StatusOK); err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	return &counts, nil
}

// Statuses lists the status catalog.
func (c *Client) Statuses() ([]Status, error) {
	var statuses []Status
	if err := c.call(http.MethodGet, "/api/statuses", nil, &statuses, http.StatusOK); err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	return statuses, nil
}

type tokenResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (c *Client) setToken(result tokenResult) {
	c.Token = result.AccessToken
	c.TokenExp = result.ExpiresAt
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("(%d) %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// call performs a request and decodes the response into out when the
// status is one of want.
func (c *Client) call(method, path string, body, out any, want ...int) error {
	resp, err := c.doRequest(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	ok := false
	for _, code := range want {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		var payload struct {
			Error string `json:"error"`
		}
		msg := string(bytes.TrimSpace(respBody))
		if json.Unmarshal(respBody, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// doRequest performs an authenticated HTTP request.
func (c *Client) doRequest(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return c.HTTPClient.Do(req)
}

// TestHelper provides utilities for creating authenticated clients in tests.
type TestHelper struct {
	BaseURL string
}

// NewTestHelper creates a new test helper for the given base URL.
func NewTestHelper(baseURL string) *TestHelper {
	return &TestHelper{BaseURL: baseURL}
}

// TestPassword is the password accounts made by TestHelper use.
const TestPassword = "correct-horse-battery"

// CreateAuthenticatedClient registers an author with the given name and
// returns a client logged in as them.
func (h *TestHelper) CreateAuthenticatedClient(name string) (*Client, error) {
	c := New(h.BaseURL)
	if err := c.RegisterAndLogin(name, TestPassword); err != nil {
		return nil, err
	}
	return c, nil
}

// GetToken creates an account (if needed) and returns an access token.
// This is a convenience method for tests that need just the token string.
func (h *TestHelper) GetToken(name string) (string, error) {
	c, err := h.CreateAuthenticatedClient(name)
	if err != nil {
		return "", err
	}
	return c.Token, nil
}
