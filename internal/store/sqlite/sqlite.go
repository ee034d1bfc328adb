package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/store"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

// Open opens the database at path and brings its schema up to date.
// All access goes through a single connection, so transactions on the
// same database never interleave.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", withPragmas(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func withPragmas(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func applySchema(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SchemaVersion reports the last applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (version uint, dirty bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`)
	if err := row.Scan(&version, &dirty); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return version, dirty, nil
}

func (s *Store) CreateAuthor(ctx context.Context, author *model.Author) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO authors (username, email, password_hash, is_admin, created_at)
VALUES (?, ?, ?, ?, ?)
`, author.Username, nullIfEmpty(author.Email), author.PasswordHash, boolToInt(author.IsAdmin), author.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateUsername
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetAuthor(ctx context.Context, id int64) (model.Author, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, username, email, password_hash, is_admin, created_at
FROM authors
WHERE id = ?
`, id)
	return scanAuthor(row)
}

func (s *Store) GetAuthorByUsername(ctx context.Context, username string) (model.Author, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, username, email, password_hash, is_admin, created_at
FROM authors
WHERE username = ?
`, username)
	return scanAuthor(row)
}

func (s *Store) ListAuthors(ctx context.Context, limit, offset int) ([]model.Author, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, username, email, password_hash, is_admin, created_at
FROM authors
ORDER BY id ASC
LIMIT ? OFFSET ?
`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []model.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

func (s *Store) SetAuthorAdmin(ctx context.Context, id int64, admin bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE authors SET is_admin = ? WHERE id = ?`, boolToInt(admin), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DeleteAuthor removes the author; articles, comments, reactions, keys and
// tokens go with it through ON DELETE CASCADE.
func (s *Store) DeleteAuthor(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM authors WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) CreateArticle(ctx context.Context, article *model.Article) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO articles (title, content, author_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
`, article.Title, article.Content, article.AuthorID, article.CreatedAt.Unix(), article.UpdatedAt.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetArticle(ctx context.Context, id int64) (model.Article, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT a.id, a.title, a.content, a.author_id, au.username, a.created_at, a.updated_at
FROM articles a
LEFT JOIN authors au ON au.id = a.author_id
WHERE a.id = ?
`, id)
	return scanArticle(row)
}

func (s *Store) ListArticles(ctx context.Context, opts store.ArticleListOpts) ([]model.Article, error) {
	limit := clampLimit(opts.Limit)
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var where []string
	var args []any
	if author := strings.TrimSpace(opts.Author); author != "" {
		where = append(where, "au.username = ?")
		args = append(args, author)
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where = append(where, `(a.title LIKE ? ESCAPE '\' OR a.content LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	query := `
SELECT a.id, a.title, a.content, a.author_id, au.username, a.created_at, a.updated_at
FROM articles a
LEFT JOIN authors au ON au.id = a.author_id`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY a.created_at DESC, a.id DESC\nLIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

func (s *Store) UpdateArticle(ctx context.Context, article *model.Article) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE articles SET title = ?, content = ?, updated_at = ? WHERE id = ?
`, article.Title, article.Content, article.UpdatedAt.Unix(), article.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) DeleteArticle(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) CreateComment(ctx context.Context, comment *model.Comment) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO comments (article_id, text, author_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
`, comment.ArticleID, comment.Text, comment.AuthorID, comment.CreatedAt.Unix(), comment.UpdatedAt.Unix())
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetComment(ctx context.Context, id int64) (model.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT c.id, c.article_id, c.text, c.author_id, au.username, c.created_at, c.updated_at
FROM comments c
LEFT JOIN authors au ON au.id = c.author_id
WHERE c.id = ?
`, id)
	return scanComment(row)
}

func (s *Store) ListCommentsByArticle(ctx context.Context, articleID int64) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.article_id, c.text, c.author_id, au.username, c.created_at, c.updated_at
FROM comments c
LEFT JOIN authors au ON au.id = c.author_id
WHERE c.article_id = ?
ORDER BY c.created_at ASC, c.id ASC
`, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Store) UpdateComment(ctx context.Context, comment *model.Comment) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE comments SET text = ?, updated_at = ? WHERE id = ?
`, comment.Text, comment.UpdatedAt.Unix(), comment.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) CreateStatus(ctx context.Context, status *model.Status) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO statuses (slug, name) VALUES (?, ?)`, status.Slug, status.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateSlug
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetStatus(ctx context.Context, id int64) (model.Status, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, slug, name FROM statuses WHERE id = ?`, id)
	return scanStatus(row)
}

func (s *Store) GetStatusBySlug(ctx context.Context, slug string) (model.Status, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, slug, name FROM statuses WHERE slug = ?`, slug)
	return scanStatus(row)
}

func (s *Store) ListStatuses(ctx context.Context) ([]model.Status, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, slug, name FROM statuses ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []model.Status
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, status *model.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE statuses SET slug = ?, name = ? WHERE id = ?`, status.Slug, status.Name, status.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateSlug
		}
		return err
	}
	return expectAffected(res)
}

// DeleteStatus removes a catalog entry. Reactions pointing at it keep
// their rows with a NULL status.
func (s *Store) DeleteStatus(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM statuses WHERE slug = ?`, slug)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) GetSiteStats(ctx context.Context) (model.SiteStats, error) {
	var stats model.SiteStats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authors`)
	if err := row.Scan(&stats.Authors); err != nil {
		return stats, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`)
	if err := row.Scan(&stats.Articles); err != nil {
		return stats, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`)
	if err := row.Scan(&stats.Comments); err != nil {
		return stats, err
	}
	row = s.db.QueryRowContext(ctx, `
SELECT (SELECT COUNT(*) FROM article_reactions WHERE status_id IS NOT NULL)
     + (SELECT COUNT(*) FROM comment_reactions WHERE status_id IS NOT NULL)
`)
	if err := row.Scan(&stats.Reactions); err != nil {
		return stats, err
	}
	return stats, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanAuthor(row scanner) (model.Author, error) {
	var a model.Author
	var email sql.NullString
	var admin int
	var created int64
	if err := row.Scan(&a.ID, &a.Username, &email, &a.PasswordHash, &admin, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Author{}, store.ErrNotFound
		}
		return model.Author{}, err
	}
	if email.Valid {
		a.Email = email.String
	}
	a.IsAdmin = admin == 1
	a.CreatedAt = time.Unix(created, 0)
	return a, nil
}

func scanArticle(row scanner) (model.Article, error) {
	var a model.Article
	var authorName sql.NullString
	var created, updated int64
	if err := row.Scan(&a.ID, &a.Title, &a.Content, &a.AuthorID, &authorName, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Article{}, store.ErrNotFound
		}
		return model.Article{}, err
	}
	if authorName.Valid {
		a.AuthorName = authorName.String
	}
	a.CreatedAt = time.Unix(created, 0)
	a.UpdatedAt = time.Unix(updated, 0)
	return a, nil
}

func scanComment(row scanner) (model.Comment, error) {
	var c model.Comment
	var authorName sql.NullString
	var created, updated int64
	if err := row.Scan(&c.ID, &c.ArticleID, &c.Text, &c.AuthorID, &authorName, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Comment{}, store.ErrNotFound
		}
		return model.Comment{}, err
	}
	if authorName.Valid {
		c.AuthorName = authorName.String
	}
	c.CreatedAt = time.Unix(created, 0)
	c.UpdatedAt = time.Unix(updated, 0)
	return c, nil
}

func scanStatus(row scanner) (model.Status, error) {
	var st model.Status
	if err := row.Scan(&st.ID, &st.Slug, &st.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Status{}, store.ErrNotFound
		}
		return model.Status{}, err
	}
	return st, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func clampLimit(v int) int {
	if v <= 0 {
		return 20
	}
	if v > 100 {
		return 100
	}
	return v
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
