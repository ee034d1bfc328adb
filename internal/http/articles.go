package httpapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/store"
)

const (
	maxTitleLen   = 100
	maxCommentLen = 255
)

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n == 0 || n > maxTitleLen {
		return fmt.Errorf("title must be 1-%d characters", maxTitleLen)
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content required")
	}
	return nil
}

func validateCommentText(text string) error {
	n := utf8.RuneCountInString(text)
	if n == 0 || n > maxCommentLen {
		return fmt.Errorf("text must be 1-%d characters", maxCommentLen)
	}
	return nil
}

func (s *Server) attachArticleStatuses(ctx context.Context, article *model.Article) error {
	counts, err := s.store.CountReactionsByStatus(ctx, model.ArticleTarget(article.ID))
	if err != nil {
		return err
	}
	article.Statuses = counts
	return nil
}

func (s *Server) attachCommentStatuses(ctx context.Context, comment *model.Comment) error {
	counts, err := s.store.CountReactionsByStatus(ctx, model.CommentTarget(comment.ID))
	if err != nil {
		return err
	}
	comment.Statuses = counts
	return nil
}

// handleListArticles godoc
//
//	@Summary		List articles
//	@Description	Newest first. Filter by author username and by a substring of title or content.
//	@Tags			Articles
//	@Produce		json
//	@Param			author	query		string	false	"Author username"
//	@Param			search	query		string	false	"Substring of title or content"
//	@Param			limit	query		int		false	"Results per page"	default(20)	maximum(100)
//	@Param			offset	query		int		false	"Offset"
//	@Success		200		{array}		model.Article
//	@Router			/api/articles [get]
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ArticleListOpts{
		Author: q.Get("author"),
		Search: q.Get("search"),
		Limit:  parseIntDefault(q.Get("limit"), 20),
		Offset: parseIntDefault(q.Get("offset"), 0),
	}
	articles, err := s.store.ListArticles(r.Context(), opts)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if articles == nil {
		articles = []model.Article{}
	}
	for i := range articles {
		if err := s.attachArticleStatuses(r.Context(), &articles[i]); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, articles)
}

// handleCreateArticle godoc
//
//	@Summary	Post an article
//	@Tags		Articles
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		article	body		object{title=string,content=string}	true	"Article"
//	@Success	201		{object}	model.Article
//	@Failure	400		{object}	map[string]string	"Invalid input"
//	@Failure	401		{object}	map[string]string	"Authentication required"
//	@Failure	429		{object}	map[string]string	"Rate limited"
//	@Router		/api/articles [post]
func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validateContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.allowRateLimit(w, r, "article", s.cfg.RateLimits.ArticlePerMinute, author.ID) {
		return
	}

	now := time.Now()
	article := model.Article{
		Title:      req.Title,
		Content:    req.Content,
		AuthorID:   author.ID,
		AuthorName: author.Username,
		CreatedAt:  now,
		UpdatedAt:  now,
		Statuses:   map[string]int{},
	}
	id, err := s.store.CreateArticle(r.Context(), &article)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	article.ID = id
	writeJSON(w, http.StatusCreated, article)
}

// handleGetArticle godoc
//
//	@Summary	Get an article
//	@Tags		Articles
//	@Produce	json
//	@Param		id	path		int	true	"Article ID"
//	@Success	200	{object}	model.Article
//	@Failure	404	{object}	map[string]string	"Article not found"
//	@Router		/api/articles/{id} [get]
func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := parseID(idStr, "article")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	article, err := s.store.GetArticle(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.attachArticleStatuses(r.Context(), &article); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// handleUpdateArticle godoc
//
//	@Summary		Edit an article
//	@Description	PUT replaces title and content; PATCH changes only the fields given. Owner only.
//	@Tags			Articles
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int									true	"Article ID"
//	@Param			article	body		object{title=string,content=string}	true	"Fields"
//	@Success		200		{object}	model.Article
//	@Failure		403		{object}	map[string]string	"Not your article"
//	@Failure		404		{object}	map[string]string	"Article not found"
//	@Router			/api/articles/{id} [put]
//	@Router			/api/articles/{id} [patch]
func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request, idStr string, partial bool) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, err := parseID(idStr, "article")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	article, err := s.store.GetArticle(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !s.canModify(r, author, article.AuthorID, false) {
		writeError(w, http.StatusForbidden, errors.New("you can only edit your own articles"))
		return
	}

	var req struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !partial && (req.Title == nil || req.Content == nil) {
		writeError(w, http.StatusBadRequest, errors.New("title and content required"))
		return
	}
	if req.Title != nil {
		article.Title = strings.TrimSpace(*req.Title)
		if err := validateTitle(article.Title); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.Content != nil {
		article.Content = *req.Content
		if err := validateContent(article.Content); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	article.UpdatedAt = time.Now()
	if err := s.store.UpdateArticle(r.Context(), &article); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.attachArticleStatuses(r.Context(), &article); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// handleDeleteArticle godoc
//
//	@Summary		Delete an article
//	@Description	Owner or admin. Comments and reactions go with it.
//	@Tags			Articles
//	@Security		BearerAuth
//	@Param			id	path	int	true	"Article ID"
//	@Success		204
//	@Failure		403	{object}	map[string]string	"Not your article"
//	@Failure		404	{object}	map[string]string	"Article not found"
//	@Router			/api/articles/{id} [delete]
func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request, idStr string) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, err := parseID(idStr, "article")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	article, err := s.store.GetArticle(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !s.canModify(r, author, article.AuthorID, true) {
		writeError(w, http.StatusForbidden, errors.New("you can only delete your own articles"))
		return
	}
	if err := s.store.DeleteArticle(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListComments godoc
//
//	@Summary	List comments on an article
//	@Tags		Comments
//	@Produce	json
//	@Param		id	path		int	true	"Article ID"
//	@Success	200	{array}		model.Comment
//	@Failure	404	{object}	map[string]string	"Article not found"
//	@Router		/api/articles/{id}/comments [get]
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := parseID(idStr, "article")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.store.GetArticle(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	comments, err := s.store.ListCommentsByArticle(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	for i := range comments {
		if err := s.attachCommentStatuses(r.Context(), &comments[i]); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, comments)
}

// handleCreateComment godoc
//
//	@Summary	Comment on an article
//	@Tags		Comments
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		int					true	"Article ID"
//	@Param		comment	body		object{text=string}	true	"Comment"
//	@Success	201		{object}	model.Comment
//	@Failure	400		{object}	map[string]string	"Invalid input"
//	@Failure	404		{object}	map[string]string	"Article not found"
//	@Failure	429		{object}	map[string]string	"Rate limited"
//	@Router		/api/articles/{id}/comments [post]
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request, idStr string) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	articleID, err := parseID(idStr, "article")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := validateCommentText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.allowRateLimit(w, r, "comment", s.cfg.RateLimits.CommentPerMinute, author.ID) {
		return
	}

	now := time.Now()
	comment := model.Comment{
		ArticleID:  articleID,
		Text:       req.Text,
		AuthorID:   author.ID,
		AuthorName: author.Username,
		CreatedAt:  now,
		UpdatedAt:  now,
		Statuses:   map[string]int{},
	}
	id, err := s.store.CreateComment(r.Context(), &comment)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	comment.ID = id
	writeJSON(w, http.StatusCreated, comment)
}

// handleGetComment godoc
//
//	@Summary	Get a comment
//	@Tags		Comments
//	@Produce	json
//	@Param		id	path		int	true	"Comment ID"
//	@Success	200	{object}	model.Comment
//	@Failure	404	{object}	map[string]string	"Comment not found"
//	@Router		/api/comments/{id} [get]
func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := parseID(idStr, "comment")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	comment, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.attachCommentStatuses(r.Context(), &comment); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// handleUpdateComment godoc
//
//	@Summary		Edit a comment
//	@Description	PUT requires text. PATCH without text leaves the comment unchanged.
//	@Tags			Comments
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int					true	"Comment ID"
//	@Param			comment	body		object{text=string}	true	"Comment"
//	@Success		200		{object}	model.Comment
//	@Failure		400		{object}	map[string]string	"Invalid input"
//	@Failure		403		{object}	map[string]string	"Not your comment"
//	@Failure		404		{object}	map[string]string	"Comment not found"
//	@Router			/api/comments/{id} [put]
//	@Router			/api/comments/{id} [patch]
func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request, idStr string, partial bool) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, err := parseID(idStr, "comment")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	comment, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !s.canModify(r, author, comment.AuthorID, false) {
		writeError(w, http.StatusForbidden, errors.New("you can only edit your own comments"))
		return
	}
	var req struct {
		Text *string `json:"text"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Text == nil && !partial {
		writeError(w, http.StatusBadRequest, errors.New("text required"))
		return
	}
	if req.Text != nil {
		comment.Text = strings.TrimSpace(*req.Text)
		if err := validateCommentText(comment.Text); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		comment.UpdatedAt = time.Now()
		if err := s.store.UpdateComment(r.Context(), &comment); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
	}
	if err := s.attachCommentStatuses(r.Context(), &comment); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// handleDeleteComment godoc
//
//	@Summary	Delete a comment
//	@Tags		Comments
//	@Security	BearerAuth
//	@Param		id	path	int	true	"Comment ID"
//	@Success	204
//	@Failure	403	{object}	map[string]string	"Not your comment"
//	@Failure	404	{object}	map[string]string	"Comment not found"
//	@Router		/api/comments/{id} [delete]
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request, idStr string) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, err := parseID(idStr, "comment")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	comment, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !s.canModify(r, author, comment.AuthorID, true) {
		writeError(w, http.StatusForbidden, errors.New("you can only delete your own comments"))
		return
	}
	if err := s.store.DeleteComment(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
