package httpapp

import (
	"fmt"
	"net/http"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/reaction"
	"github.com/alphabot-ai/newsroom/internal/store"
)

type reactionResponse struct {
	Outcome model.Outcome `json:"outcome"`
	Status  *model.Status `json:"status"`
	Message string        `json:"message"`
}

type statusCountsResponse struct {
	Target   model.Target   `json:"target"`
	Statuses map[string]int `json:"statuses"`
	Mine     *model.Status  `json:"mine,omitempty"`
}

func outcomeMessage(res reaction.Result, slug string) string {
	switch res.Outcome {
	case model.OutcomeCreated:
		return fmt.Sprintf("status %q added", slug)
	case model.OutcomeCleared:
		return fmt.Sprintf("status %q removed", slug)
	default:
		return fmt.Sprintf("status changed to %q", slug)
	}
}

func (s *Server) applyReaction(w http.ResponseWriter, r *http.Request, author model.Author, target model.Target, slug string) {
	if !s.allowRateLimit(w, r, "reaction", s.cfg.RateLimits.ReactionPerMinute, author.ID) {
		return
	}
	res, err := s.reactions.ApplyReaction(r.Context(), author.ID, target, slug)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Outcome == model.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, reactionResponse{
		Outcome: res.Outcome,
		Status:  res.Status,
		Message: outcomeMessage(res, slug),
	})
}

// handleReactArticle godoc
//
//	@Summary		Toggle a status on an article
//	@Description	First call sets the status (201). Repeating the same status clears it, a different status replaces it (200).
//	@Tags			Reactions
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int		true	"Article ID"
//	@Param			slug	path		string	true	"Status slug"
//	@Success		201		{object}	reactionResponse	"Created"
//	@Success		200		{object}	reactionResponse	"Updated or cleared"
//	@Failure		401		{object}	map[string]string	"Authentication required"
//	@Failure		404		{object}	map[string]string	"Article or status not found"
//	@Failure		429		{object}	map[string]string	"Rate limited"
//	@Router			/api/articles/{id}/statuses/{slug} [post]
func (s *Server) handleReactArticle(w http.ResponseWriter, r *http.Request, idStr, slug string) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id, err := parseID(idStr, "article")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.applyReaction(w, r, author, model.ArticleTarget(id), slug)
}

// handleReactComment godoc
//
//	@Summary		Toggle a status on a comment
//	@Description	Same toggle rules as for articles. The comment must belong to the article.
//	@Tags			Reactions
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int		true	"Article ID"
//	@Param			cid		path		int		true	"Comment ID"
//	@Param			slug	path		string	true	"Status slug"
//	@Success		201		{object}	reactionResponse	"Created"
//	@Success		200		{object}	reactionResponse	"Updated or cleared"
//	@Failure		404		{object}	map[string]string	"Article, comment or status not found"
//	@Router			/api/articles/{id}/comments/{cid}/statuses/{slug} [post]
func (s *Server) handleReactComment(w http.ResponseWriter, r *http.Request, articleIDStr, commentIDStr, slug string) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	articleID, err := parseID(articleIDStr, "article")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	commentID, err := parseID(commentIDStr, "comment")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	comment, err := s.store.GetComment(r.Context(), commentID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if comment.ArticleID != articleID {
		writeError(w, http.StatusNotFound, fmt.Errorf("comment %d on article %d: %w", commentID, articleID, store.ErrNotFound))
		return
	}
	s.applyReaction(w, r, author, model.CommentTarget(commentID), slug)
}

func (s *Server) writeStatusCounts(w http.ResponseWriter, r *http.Request, target model.Target) {
	counts, err := s.reactions.StatusCounts(r.Context(), target)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	resp := statusCountsResponse{Target: target, Statuses: counts}
	if author := s.optionalAuth(r); author != nil {
		mine, err := s.reactions.Current(r.Context(), author.ID, target)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		resp.Mine = mine
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleArticleStatuses godoc
//
//	@Summary		Status counts for an article
//	@Description	Active reactions grouped by status name. With a token, also reports the caller's own status.
//	@Tags			Reactions
//	@Produce		json
//	@Param			id	path		int	true	"Article ID"
//	@Success		200	{object}	statusCountsResponse
//	@Failure		404	{object}	map[string]string	"Article not found"
//	@Router			/api/articles/{id}/statuses [get]
func (s *Server) handleArticleStatuses(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := parseID(idStr, "article")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeStatusCounts(w, r, model.ArticleTarget(id))
}

// handleCommentStatuses godoc
//
//	@Summary	Status counts for a comment
//	@Tags		Reactions
//	@Produce	json
//	@Param		id	path		int	true	"Comment ID"
//	@Success	200	{object}	statusCountsResponse
//	@Failure	404	{object}	map[string]string	"Comment not found"
//	@Router		/api/comments/{id}/statuses [get]
func (s *Server) handleCommentStatuses(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := parseID(idStr, "comment")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeStatusCounts(w, r, model.CommentTarget(id))
}
