package httpapp

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alphabot-ai/newsroom/internal/auth"
	"github.com/alphabot-ai/newsroom/internal/model"
)

func tokenResponse(token model.Token, author model.Author) map[string]any {
	return map[string]any{
		"access_token": token.Token,
		"expires_at":   token.ExpiresAt,
		"author":       author,
	}
}

// handleRegister godoc
//
//	@Summary		Register an author
//	@Description	Create an author account with a username and password.
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			author	body		object{username=string,email=string,password=string}	true	"New author"
//	@Success		201		{object}	model.Author
//	@Failure		400		{object}	map[string]string	"Invalid input"
//	@Failure		409		{object}	map[string]string	"Username taken"
//	@Router			/api/register [post]
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.Registration
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	author, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log(r.Context()).Info("author registered", "author_id", author.ID, "username", author.Username)
	writeJSON(w, http.StatusCreated, author)
}

// handleToken godoc
//
//	@Summary		Obtain a token
//	@Description	Exchange username and password for a bearer token.
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			credentials	body		object{username=string,password=string}	true	"Credentials"
//	@Success		200			{object}	map[string]interface{}	"Access token with expiration"
//	@Failure		401			{object}	map[string]string		"Invalid credentials"
//	@Router			/api/token [post]
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, errors.New("username and password required"))
		return
	}
	token, author, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(token, author))
}

// handleAuthChallenge godoc
//
//	@Summary		Get an auth challenge
//	@Description	Get a challenge to sign with a private key, for key login or for attaching a key.
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{alg=string}		true	"Algorithm (ed25519, secp256k1, rsa-sha256, rsa-pss)"
//	@Success		200		{object}	map[string]interface{}	"Challenge with expiration"
//	@Failure		400		{object}	map[string]string		"Missing or unsupported alg"
//	@Router			/api/auth/challenge [post]
func (s *Server) handleAuthChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Alg string `json:"alg"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Alg) == "" {
		writeError(w, http.StatusBadRequest, errors.New("alg required"))
		return
	}
	challenge, err := s.auth.CreateChallenge(r.Context(), req.Alg)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"challenge":  challenge.Challenge,
		"alg":        challenge.Alg,
		"expires_at": challenge.ExpiresAt,
	})
}

type signedChallenge struct {
	Alg       string `json:"alg"`
	PublicKey string `json:"public_key"`
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

func (c signedChallenge) complete() bool {
	return c.Alg != "" && c.PublicKey != "" && c.Challenge != "" && c.Signature != ""
}

// handleAuthVerify godoc
//
//	@Summary		Verify signature and get token
//	@Description	Exchange a challenge signed with a registered key for a bearer token.
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{alg=string,public_key=string,challenge=string,signature=string}	true	"Signed challenge"
//	@Success		200		{object}	map[string]interface{}	"Access token with expiration"
//	@Failure		400		{object}	map[string]string		"Missing fields"
//	@Failure		401		{object}	map[string]string		"Invalid signature or unknown key"
//	@Router			/api/auth/verify [post]
func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	var req signedChallenge
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !req.complete() {
		writeError(w, http.StatusBadRequest, errors.New("missing fields"))
		return
	}
	token, author, err := s.auth.VerifyAndCreateToken(r.Context(),
		strings.TrimSpace(req.Alg),
		strings.TrimSpace(req.PublicKey),
		strings.TrimSpace(req.Challenge),
		strings.TrimSpace(req.Signature),
	)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	resp := tokenResponse(token, author)
	resp["key_id"] = token.KeyID
	writeJSON(w, http.StatusOK, resp)
}

// handleListKeys godoc
//
//	@Summary	List my keys
//	@Tags		Authors
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{array}		model.AuthorKey
//	@Failure	401	{object}	map[string]string	"Authentication required"
//	@Router		/api/keys [get]
func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	keys, err := s.auth.Keys(r.Context(), author.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if keys == nil {
		keys = []model.AuthorKey{}
	}
	writeJSON(w, http.StatusOK, keys)
}

// handleAddKey godoc
//
//	@Summary		Attach a public key
//	@Description	Attach a key to the current author. The body carries a challenge signed with the key.
//	@Tags			Authors
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key	body		object{alg=string,public_key=string,challenge=string,signature=string}	true	"Signed challenge"
//	@Success		201	{object}	model.AuthorKey
//	@Failure		401	{object}	map[string]string	"Invalid signature"
//	@Failure		409	{object}	map[string]string	"Key already registered"
//	@Router			/api/keys [post]
func (s *Server) handleAddKey(w http.ResponseWriter, r *http.Request) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var req signedChallenge
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !req.complete() {
		writeError(w, http.StatusBadRequest, errors.New("missing fields"))
		return
	}
	key, err := s.auth.AddKey(r.Context(), author.ID,
		strings.TrimSpace(req.Alg),
		strings.TrimSpace(req.PublicKey),
		strings.TrimSpace(req.Challenge),
		strings.TrimSpace(req.Signature),
	)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

// handleRevokeKey godoc
//
//	@Summary	Revoke a key
//	@Tags		Authors
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path	int	true	"Key ID"
//	@Success	204
//	@Failure	404	{object}	map[string]string	"Key not found"
//	@Router		/api/keys/{id} [delete]
func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request, idStr string) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	keyID, err := parseID(idStr, "key")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.auth.RevokeKey(r.Context(), author.ID, keyID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAuthorMe godoc
//
//	@Summary	Current author
//	@Tags		Authors
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	model.Author
//	@Failure	401	{object}	map[string]string	"Authentication required"
//	@Router		/api/authors/me [get]
func (s *Server) handleAuthorMe(w http.ResponseWriter, r *http.Request) {
	author, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, author)
}

// handleListAuthors godoc
//
//	@Summary	List authors (admin)
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		X-Admin-Secret	header		string	false	"Admin secret"
//	@Param		limit			query		int		false	"Results per page"	default(20)	maximum(100)
//	@Param		offset			query		int		false	"Offset"
//	@Success	200				{array}		model.Author
//	@Failure	403				{object}	map[string]string	"Admin only"
//	@Router		/api/authors [get]
func (s *Server) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	q := r.URL.Query()
	authors, err := s.store.ListAuthors(r.Context(), parseIntDefault(q.Get("limit"), 20), parseIntDefault(q.Get("offset"), 0))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if authors == nil {
		authors = []model.Author{}
	}
	writeJSON(w, http.StatusOK, authors)
}

// handleGetAuthor godoc
//
//	@Summary	Get an author (admin)
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Author ID"
//	@Success	200	{object}	model.Author
//	@Failure	404	{object}	map[string]string	"Author not found"
//	@Router		/api/authors/{id} [get]
func (s *Server) handleGetAuthor(w http.ResponseWriter, r *http.Request, idStr string) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, err := parseID(idStr, "author")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	author, err := s.store.GetAuthor(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, author)
}

// handleDeleteAuthor godoc
//
//	@Summary		Delete an author (admin)
//	@Description	Deletes the author together with their articles, comments, reactions, keys and tokens.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Param			id	path	int	true	"Author ID"
//	@Success		204
//	@Failure		404	{object}	map[string]string	"Author not found"
//	@Router			/api/authors/{id} [delete]
func (s *Server) handleDeleteAuthor(w http.ResponseWriter, r *http.Request, idStr string) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, err := parseID(idStr, "author")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.DeleteAuthor(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log(r.Context()).Info("author deleted", "author_id", id)
	w.WriteHeader(http.StatusNoContent)
}
