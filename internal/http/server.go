package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alphabot-ai/newsroom/internal/auth"
	"github.com/alphabot-ai/newsroom/internal/config"
	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/rate"
	"github.com/alphabot-ai/newsroom/internal/reaction"
	"github.com/alphabot-ai/newsroom/internal/store"

	_ "github.com/alphabot-ai/newsroom/docs" // swagger docs

	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

const maxBodyBytes = 1 << 20

type Server struct {
	store     store.Store
	auth      *auth.Service
	reactions *reaction.Engine
	limiter   rate.Limiter
	cfg       config.Config
	logger    *slog.Logger
}

func NewServer(store store.Store, authSvc *auth.Service, limiter rate.Limiter, cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     store,
		auth:      authSvc,
		reactions: reaction.New(store, logger),
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/"):
		s.handleAPI(w, r)
	case strings.HasPrefix(path, "/swagger/"):
		httpSwagger.WrapHandler.ServeHTTP(w, r)
	case path == "/healthz":
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case path == "/":
		http.Redirect(w, r, "/swagger/index.html", http.StatusFound)
	default:
		notFound(w)
	}
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	segments := splitPath(path)

	switch {
	case len(segments) == 1 && segments[0] == "register":
		if r.Method == http.MethodPost {
			s.handleRegister(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "token":
		if r.Method == http.MethodPost {
			s.handleToken(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "auth" && segments[1] == "challenge":
		if r.Method == http.MethodPost {
			s.handleAuthChallenge(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "auth" && segments[1] == "verify":
		if r.Method == http.MethodPost {
			s.handleAuthVerify(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "keys":
		switch r.Method {
		case http.MethodGet:
			s.handleListKeys(w, r)
			return
		case http.MethodPost:
			s.handleAddKey(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "keys":
		if r.Method == http.MethodDelete {
			s.handleRevokeKey(w, r, segments[1])
			return
		}
	case len(segments) == 2 && segments[0] == "authors" && segments[1] == "me":
		if r.Method == http.MethodGet {
			s.handleAuthorMe(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "authors":
		if r.Method == http.MethodGet {
			s.handleListAuthors(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "authors":
		switch r.Method {
		case http.MethodGet:
			s.handleGetAuthor(w, r, segments[1])
			return
		case http.MethodDelete:
			s.handleDeleteAuthor(w, r, segments[1])
			return
		}
	case len(segments) == 1 && segments[0] == "articles":
		switch r.Method {
		case http.MethodGet:
			s.handleListArticles(w, r)
			return
		case http.MethodPost:
			s.handleCreateArticle(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "articles":
		switch r.Method {
		case http.MethodGet:
			s.handleGetArticle(w, r, segments[1])
			return
		case http.MethodPut:
			s.handleUpdateArticle(w, r, segments[1], false)
			return
		case http.MethodPatch:
			s.handleUpdateArticle(w, r, segments[1], true)
			return
		case http.MethodDelete:
			s.handleDeleteArticle(w, r, segments[1])
			return
		}
	case len(segments) == 3 && segments[0] == "articles" && segments[2] == "comments":
		switch r.Method {
		case http.MethodGet:
			s.handleListComments(w, r, segments[1])
			return
		case http.MethodPost:
			s.handleCreateComment(w, r, segments[1])
			return
		}
	case len(segments) == 3 && segments[0] == "articles" && segments[2] == "statuses":
		if r.Method == http.MethodGet {
			s.handleArticleStatuses(w, r, segments[1])
			return
		}
	case len(segments) == 4 && segments[0] == "articles" && segments[2] == "statuses":
		if r.Method == http.MethodPost {
			s.handleReactArticle(w, r, segments[1], segments[3])
			return
		}
	case len(segments) == 6 && segments[0] == "articles" && segments[2] == "comments" && segments[4] == "statuses":
		if r.Method == http.MethodPost {
			s.handleReactComment(w, r, segments[1], segments[3], segments[5])
			return
		}
	case len(segments) == 2 && segments[0] == "comments":
		switch r.Method {
		case http.MethodGet:
			s.handleGetComment(w, r, segments[1])
			return
		case http.MethodPut:
			s.handleUpdateComment(w, r, segments[1], false)
			return
		case http.MethodPatch:
			s.handleUpdateComment(w, r, segments[1], true)
			return
		case http.MethodDelete:
			s.handleDeleteComment(w, r, segments[1])
			return
		}
	case len(segments) == 3 && segments[0] == "comments" && segments[2] == "statuses":
		if r.Method == http.MethodGet {
			s.handleCommentStatuses(w, r, segments[1])
			return
		}
	case len(segments) == 1 && segments[0] == "statuses":
		switch r.Method {
		case http.MethodGet:
			s.handleListStatuses(w, r)
			return
		case http.MethodPost:
			s.handleCreateStatus(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "statuses":
		switch r.Method {
		case http.MethodGet:
			s.handleGetStatus(w, r, segments[1])
			return
		case http.MethodPut, http.MethodPatch:
			s.handleUpdateStatus(w, r, segments[1])
			return
		case http.MethodDelete:
			s.handleDeleteStatus(w, r, segments[1])
			return
		}
	case len(segments) == 1 && segments[0] == "stats":
		if r.Method == http.MethodGet {
			s.handleGetStats(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "version":
		if r.Method == http.MethodGet {
			s.handleVersion(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "openapi.json":
		if r.Method == http.MethodGet {
			s.serveOpenAPIJSON(w, r)
			return
		}
	default:
		notFound(w)
		return
	}
	methodNotAllowed(w)
}

// handleGetStats godoc
//
//	@Summary		Site statistics
//	@Description	Counts of authors, articles, comments and active reactions
//	@Tags			Meta
//	@Produce		json
//	@Success		200	{object}	model.SiteStats
//	@Router			/api/stats [get]
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetSiteStats(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleVersion godoc
//
//	@Summary	Build information
//	@Tags		Meta
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/api/version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    config.Version,
		"commit":     config.Commit,
		"build_time": config.BuildTime,
	})
}

func (s *Server) serveOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int, authorID int64) bool {
	if limit <= 0 {
		return true
	}
	ipKey := fmt.Sprintf("%s:ip:%s", action, s.clientIP(r))
	if ok, retry := s.limiter.Allow(ipKey, limit, time.Minute); !ok {
		writeRateLimit(w, retry)
		return false
	}
	if authorID != 0 {
		authorKey := fmt.Sprintf("%s:author:%d", action, authorID)
		if ok, retry := s.limiter.Allow(authorKey, limit, time.Minute); !ok {
			writeRateLimit(w, retry)
			return false
		}
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func (s *Server) optionalAuth(r *http.Request) *model.Author {
	bearer, ok := bearerToken(r)
	if !ok {
		return nil
	}
	author, err := s.auth.Authenticate(r.Context(), bearer)
	if err != nil {
		return nil
	}
	return &author
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (model.Author, bool) {
	bearer, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
		return model.Author{}, false
	}
	author, err := s.auth.Authenticate(r.Context(), bearer)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, err)
			return model.Author{}, false
		}
		s.writeStoreError(w, r, err)
		return model.Author{}, false
	}
	return author, true
}

func (s *Server) hasAdminSecret(r *http.Request) bool {
	secret := r.Header.Get("X-Admin-Secret")
	return s.cfg.AdminSecret != "" && secret != "" && secret == s.cfg.AdminSecret
}

// requireAdmin accepts either the configured admin secret or a token of an
// author flagged as admin.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if s.hasAdminSecret(r) {
		return true
	}
	author, ok := s.requireAuth(w, r)
	if !ok {
		return false
	}
	if !author.IsAdmin {
		writeError(w, http.StatusForbidden, errors.New("admin only"))
		return false
	}
	return true
}

// canModify reports whether author may change content owned by ownerID.
// Admins may only delete, which callers express with allowAdmin.
func (s *Server) canModify(r *http.Request, author model.Author, ownerID int64, allowAdmin bool) bool {
	if author.ID == ownerID {
		return true
	}
	return allowAdmin && (author.IsAdmin || s.hasAdminSecret(r))
}

// writeStoreError maps domain errors to status codes. Anything unexpected
// is logged and reported as a 500 without its message.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrDuplicateUsername),
		errors.Is(err, store.ErrDuplicateSlug),
		errors.Is(err, store.ErrDuplicateKey):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrUnsupportedAlg),
		errors.Is(err, reaction.ErrInvalidTarget),
		errors.Is(err, reaction.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrChallengeExpired),
		errors.Is(err, auth.ErrKeyRevoked):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusRequestTimeout, err)
	default:
		s.log(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":      "internal server error",
			"request_id": RequestIDFrom(r.Context()),
		})
	}
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func readJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	secs := int(retry.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"retry_after": secs,
	})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func parseID(value, what string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id", what)
	}
	return id, nil
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
