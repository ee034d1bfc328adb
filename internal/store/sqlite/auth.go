package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/store"
)

func (s *Store) CreateChallenge(ctx context.Context, c model.Challenge) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO auth_challenges (challenge, alg, expires_at, created_at)
VALUES (?, ?, ?, ?)
`, c.Challenge, c.Alg, c.ExpiresAt.Unix(), time.Now().Unix())
	return err
}

// ConsumeChallenge returns the challenge and deletes it, so each one can
// be redeemed once.
func (s *Store) ConsumeChallenge(ctx context.Context, challenge string) (model.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT challenge, alg, expires_at
FROM auth_challenges
WHERE challenge = ?
`, challenge)
	var c model.Challenge
	var expires int64
	if err := row.Scan(&c.Challenge, &c.Alg, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Challenge{}, store.ErrNotFound
		}
		return model.Challenge{}, err
	}
	c.ExpiresAt = time.Unix(expires, 0)
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_challenges WHERE challenge = ?`, challenge)
	if err != nil {
		return model.Challenge{}, err
	}
	if err := expectAffected(res); err != nil {
		return model.Challenge{}, err
	}
	return c, nil
}

func (s *Store) CreateToken(ctx context.Context, token model.Token) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO auth_tokens (token, author_id, key_id, expires_at, created_at)
VALUES (?, ?, ?, ?, ?)
`, token.Token, token.AuthorID, nullableInt(token.KeyID), token.ExpiresAt.Unix(), time.Now().Unix())
	return err
}

func (s *Store) GetToken(ctx context.Context, token string) (model.Token, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT token, author_id, key_id, expires_at
FROM auth_tokens
WHERE token = ?
`, token)
	var t model.Token
	var keyID sql.NullInt64
	var expires int64
	if err := row.Scan(&t.Token, &t.AuthorID, &keyID, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Token{}, store.ErrNotFound
		}
		return model.Token{}, err
	}
	if keyID.Valid {
		id := keyID.Int64
		t.KeyID = &id
	}
	t.ExpiresAt = time.Unix(expires, 0)
	return t, nil
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) AddAuthorKey(ctx context.Context, authorID int64, key *model.AuthorKey) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO author_keys (author_id, alg, public_key, created_at, revoked_at)
VALUES (?, ?, ?, ?, NULL)
`, authorID, key.Alg, key.PublicKey, key.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateKey
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetAuthorKeys(ctx context.Context, authorID int64) ([]model.AuthorKey, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, author_id, alg, public_key, created_at, revoked_at
FROM author_keys
WHERE author_id = ? AND revoked_at IS NULL
ORDER BY created_at ASC, id ASC
`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.AuthorKey
	for rows.Next() {
		k, err := scanAuthorKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) FindAuthorKey(ctx context.Context, alg, publicKey string) (model.AuthorKey, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, author_id, alg, public_key, created_at, revoked_at
FROM author_keys
WHERE alg = ? AND public_key = ?
LIMIT 1
`, alg, publicKey)
	return scanAuthorKey(row)
}

func (s *Store) RevokeAuthorKey(ctx context.Context, authorID, keyID int64, revokedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE author_keys SET revoked_at = ? WHERE id = ? AND author_id = ? AND revoked_at IS NULL
`, revokedAt.Unix(), keyID, authorID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func scanAuthorKey(row scanner) (model.AuthorKey, error) {
	var k model.AuthorKey
	var created int64
	var revoked sql.NullInt64
	if err := row.Scan(&k.ID, &k.AuthorID, &k.Alg, &k.PublicKey, &created, &revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AuthorKey{}, store.ErrNotFound
		}
		return model.AuthorKey{}, err
	}
	k.CreatedAt = time.Unix(created, 0)
	if revoked.Valid {
		t := time.Unix(revoked.Int64, 0)
		k.RevokedAt = &t
	}
	return k, nil
}
