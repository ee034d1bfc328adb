package httpapp

import (
	"net/http"
	"strings"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/reaction"
)

// handleListStatuses godoc
//
//	@Summary	List the status catalog
//	@Tags		Statuses
//	@Produce	json
//	@Success	200	{array}	model.Status
//	@Router		/api/statuses [get]
func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.store.ListStatuses(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if statuses == nil {
		statuses = []model.Status{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

// handleCreateStatus godoc
//
//	@Summary	Add a status (admin)
//	@Tags		Statuses
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		X-Admin-Secret	header		string						false	"Admin secret"
//	@Param		status			body		object{slug=string,name=string}	true	"Status"
//	@Success	201				{object}	model.Status
//	@Failure	400				{object}	map[string]string	"Invalid slug or name"
//	@Failure	403				{object}	map[string]string	"Admin only"
//	@Failure	409				{object}	map[string]string	"Slug taken"
//	@Router		/api/statuses [post]
func (s *Server) handleCreateStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var req struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status := model.Status{Slug: strings.TrimSpace(req.Slug), Name: strings.TrimSpace(req.Name)}
	if err := reaction.ValidateStatus(status); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	id, err := s.store.CreateStatus(r.Context(), &status)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	status.ID = id
	s.log(r.Context()).Info("status created", "slug", status.Slug)
	writeJSON(w, http.StatusCreated, status)
}

// handleGetStatus godoc
//
//	@Summary	Get a status
//	@Tags		Statuses
//	@Produce	json
//	@Param		slug	path		string	true	"Status slug"
//	@Success	200		{object}	model.Status
//	@Failure	404		{object}	map[string]string	"Status not found"
//	@Router		/api/statuses/{slug} [get]
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request, slug string) {
	status, err := s.store.GetStatusBySlug(r.Context(), slug)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleUpdateStatus godoc
//
//	@Summary		Rename a status (admin)
//	@Description	Fields left out keep their value.
//	@Tags			Statuses
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			slug	path		string							true	"Status slug"
//	@Param			status	body		object{slug=string,name=string}	true	"Fields"
//	@Success		200		{object}	model.Status
//	@Failure		404		{object}	map[string]string	"Status not found"
//	@Failure		409		{object}	map[string]string	"Slug taken"
//	@Router			/api/statuses/{slug} [put]
//	@Router			/api/statuses/{slug} [patch]
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request, slug string) {
	if !s.requireAdmin(w, r) {
		return
	}
	status, err := s.store.GetStatusBySlug(r.Context(), slug)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var req struct {
		Slug *string `json:"slug"`
		Name *string `json:"name"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Slug != nil {
		status.Slug = strings.TrimSpace(*req.Slug)
	}
	if req.Name != nil {
		status.Name = strings.TrimSpace(*req.Name)
	}
	if err := reaction.ValidateStatus(status); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.store.UpdateStatus(r.Context(), &status); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleDeleteStatus godoc
//
//	@Summary		Remove a status (admin)
//	@Description	Reactions that used it stay, with no active status.
//	@Tags			Statuses
//	@Security		BearerAuth
//	@Param			slug	path	string	true	"Status slug"
//	@Success		204
//	@Failure		404	{object}	map[string]string	"Status not found"
//	@Router			/api/statuses/{slug} [delete]
func (s *Server) handleDeleteStatus(w http.ResponseWriter, r *http.Request, slug string) {
	if !s.requireAdmin(w, r) {
		return
	}
	if err := s.store.DeleteStatus(r.Context(), slug); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log(r.Context()).Info("status deleted", "slug", slug)
	w.WriteHeader(http.StatusNoContent)
}
