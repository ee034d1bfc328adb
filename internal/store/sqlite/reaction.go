package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/store"
)

// reactionTable maps a target kind to its relation and target column.
// Article and comment reactions live in separate tables with the same
// shape.
func reactionTable(kind model.TargetKind) (table, column string, err error) {
	switch kind {
	case model.TargetArticle:
		return "article_reactions", "article_id", nil
	case model.TargetComment:
		return "comment_reactions", "comment_id", nil
	}
	return "", "", fmt.Errorf("unknown target kind %q", kind)
}

func targetTable(kind model.TargetKind) (string, error) {
	switch kind {
	case model.TargetArticle:
		return "articles", nil
	case model.TargetComment:
		return "comments", nil
	}
	return "", fmt.Errorf("unknown target kind %q", kind)
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type reactionRepo struct {
	q execQuerier
}

func (s *Store) ReactionTx(ctx context.Context, fn func(tx store.ReactionRepo) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(reactionRepo{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r reactionRepo) InsertReaction(ctx context.Context, reaction *model.Reaction) (int64, error) {
	table, column, err := reactionTable(reaction.Target.Kind)
	if err != nil {
		return 0, err
	}
	now := time.Now().Unix()
	res, err := r.q.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (author_id, %s, status_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
`, table, column), reaction.AuthorID, reaction.Target.ID, nullableInt(reaction.StatusID), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateReaction
		}
		if isForeignKeyViolation(err) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (r reactionRepo) FindReaction(ctx context.Context, target model.Target, authorID int64) (model.Reaction, error) {
	table, column, err := reactionTable(target.Kind)
	if err != nil {
		return model.Reaction{}, err
	}
	row := r.q.QueryRowContext(ctx, fmt.Sprintf(`
SELECT id, author_id, status_id
FROM %s
WHERE author_id = ? AND %s = ?
`, table, column), authorID, target.ID)

	reaction := model.Reaction{Target: target}
	var statusID sql.NullInt64
	if err := row.Scan(&reaction.ID, &reaction.AuthorID, &statusID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reaction{}, store.ErrNotFound
		}
		return model.Reaction{}, err
	}
	if statusID.Valid {
		id := statusID.Int64
		reaction.StatusID = &id
	}
	return reaction, nil
}

func (r reactionRepo) UpdateReactionStatus(ctx context.Context, target model.Target, id int64, statusID *int64) error {
	table, _, err := reactionTable(target.Kind)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET status_id = ?, updated_at = ? WHERE id = ?`, table),
		nullableInt(statusID), time.Now().Unix(), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) GetReaction(ctx context.Context, target model.Target, authorID int64) (model.Reaction, error) {
	return reactionRepo{q: s.db}.FindReaction(ctx, target, authorID)
}

// CountReactions counts every row for the target, cleared ones included.
func (s *Store) CountReactions(ctx context.Context, target model.Target) (int, error) {
	table, column, err := reactionTable(target.Kind)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, table, column), target.ID).Scan(&n)
	return n, err
}

// CountReactionsByStatus groups the target's reactions by status name.
// Cleared rows have no status and drop out of the inner join.
func (s *Store) CountReactionsByStatus(ctx context.Context, target model.Target) (map[string]int, error) {
	table, column, err := reactionTable(target.Kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT st.name, COUNT(*)
FROM %s r
JOIN statuses st ON st.id = r.status_id
WHERE r.%s = ?
GROUP BY st.name
`, table, column), target.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

func (s *Store) TargetExists(ctx context.Context, target model.Target) (bool, error) {
	table, err := targetTable(target.Kind)
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, table), target.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
