package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/store"
)

func TestAuthorUsernameUnique(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id := mustAuthor(t, st, "Alice")
	_, err := st.CreateAuthor(ctx, &model.Author{Username: "alice", PasswordHash: "x", CreatedAt: time.Now()})
	if !errors.Is(err, store.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}

	got, err := st.GetAuthorByUsername(ctx, "ALICE")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got.ID != id {
		t.Fatalf("expected author %d, got %d", id, got.ID)
	}

	if err := st.SetAuthorAdmin(ctx, id, true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	got, _ = st.GetAuthor(ctx, id)
	if !got.IsAdmin {
		t.Fatalf("expected admin flag")
	}
	if err := st.SetAuthorAdmin(ctx, 999, true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthorKeys(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	authorID := mustAuthor(t, st, "bot")
	keyID, err := st.AddAuthorKey(ctx, authorID, &model.AuthorKey{Alg: "ed25519", PublicKey: "pubkey", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("add key: %v", err)
	}

	k, err := st.FindAuthorKey(ctx, "ed25519", "pubkey")
	if err != nil {
		t.Fatalf("find key: %v", err)
	}
	if k.ID != keyID || k.AuthorID != authorID {
		t.Fatalf("unexpected key %+v", k)
	}

	_, err = st.AddAuthorKey(ctx, authorID, &model.AuthorKey{Alg: "ed25519", PublicKey: "pubkey", CreatedAt: time.Now()})
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	if err := st.RevokeAuthorKey(ctx, authorID, keyID, time.Now()); err != nil {
		t.Fatalf("revoke key: %v", err)
	}
	k, err = st.FindAuthorKey(ctx, "ed25519", "pubkey")
	if err != nil {
		t.Fatalf("find key after revoke: %v", err)
	}
	if k.RevokedAt == nil {
		t.Fatalf("expected revoked_at set")
	}
	keys, err := st.GetAuthorKeys(ctx, authorID)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected no active keys, got %d", len(keys))
	}
	if err := st.RevokeAuthorKey(ctx, authorID, keyID, time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second revoke, got %v", err)
	}
}

func TestChallengeConsumedOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	c := model.Challenge{Challenge: "abc", Alg: "ed25519", ExpiresAt: time.Now().Add(time.Minute)}
	if err := st.CreateChallenge(ctx, c); err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	got, err := st.ConsumeChallenge(ctx, "abc")
	if err != nil {
		t.Fatalf("consume challenge: %v", err)
	}
	if got.Alg != "ed25519" {
		t.Fatalf("unexpected alg %q", got.Alg)
	}
	if _, err := st.ConsumeChallenge(ctx, "abc"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTokensExpireAndCascade(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	authorID := mustAuthor(t, st, "alice")
	now := time.Now()
	if err := st.CreateToken(ctx, model.Token{Token: "old", AuthorID: authorID, ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if err := st.CreateToken(ctx, model.Token{Token: "fresh", AuthorID: authorID, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	n, err := st.DeleteExpiredTokens(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired token removed, got %d", n)
	}
	if _, err := st.GetToken(ctx, "fresh"); err != nil {
		t.Fatalf("fresh token: %v", err)
	}

	if err := st.DeleteAuthor(ctx, authorID); err != nil {
		t.Fatalf("delete author: %v", err)
	}
	if _, err := st.GetToken(ctx, "fresh"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected token to be removed with author, got %v", err)
	}
}
