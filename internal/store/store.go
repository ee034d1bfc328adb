package store

import (
	"context"
	"errors"
	"time"

	"github.com/alphabot-ai/newsroom/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateReaction = errors.New("duplicate reaction")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateSlug     = errors.New("duplicate status slug")
	ErrDuplicateKey      = errors.New("duplicate key")
)

type ArticleListOpts struct {
	Author string
	Search string
	Limit  int
	Offset int
}

type Store interface {
	AuthorStore
	ArticleStore
	CommentStore
	StatusStore
	ReactionStore
	AuthStore
	GetSiteStats(ctx context.Context) (model.SiteStats, error)
	Close() error
}

type AuthorStore interface {
	CreateAuthor(ctx context.Context, author *model.Author) (int64, error)
	GetAuthor(ctx context.Context, id int64) (model.Author, error)
	GetAuthorByUsername(ctx context.Context, username string) (model.Author, error)
	ListAuthors(ctx context.Context, limit, offset int) ([]model.Author, error)
	SetAuthorAdmin(ctx context.Context, id int64, admin bool) error
	DeleteAuthor(ctx context.Context, id int64) error
}

type ArticleStore interface {
	CreateArticle(ctx context.Context, article *model.Article) (int64, error)
	GetArticle(ctx context.Context, id int64) (model.Article, error)
	ListArticles(ctx context.Context, opts ArticleListOpts) ([]model.Article, error)
	UpdateArticle(ctx context.Context, article *model.Article) error
	DeleteArticle(ctx context.Context, id int64) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *model.Comment) (int64, error)
	GetComment(ctx context.Context, id int64) (model.Comment, error)
	ListCommentsByArticle(ctx context.Context, articleID int64) ([]model.Comment, error)
	UpdateComment(ctx context.Context, comment *model.Comment) error
	DeleteComment(ctx context.Context, id int64) error
}

type StatusStore interface {
	CreateStatus(ctx context.Context, status *model.Status) (int64, error)
	GetStatus(ctx context.Context, id int64) (model.Status, error)
	GetStatusBySlug(ctx context.Context, slug string) (model.Status, error)
	ListStatuses(ctx context.Context) ([]model.Status, error)
	UpdateStatus(ctx context.Context, status *model.Status) error
	DeleteStatus(ctx context.Context, slug string) error
}

// ReactionStore persists reaction rows. Mutations run through ReactionTx
// so that the insert and the follow-up read-modify-write share one
// transaction.
type ReactionStore interface {
	ReactionTx(ctx context.Context, fn func(tx ReactionRepo) error) error
	GetReaction(ctx context.Context, target model.Target, authorID int64) (model.Reaction, error)
	CountReactions(ctx context.Context, target model.Target) (int, error)
	CountReactionsByStatus(ctx context.Context, target model.Target) (map[string]int, error)
	TargetExists(ctx context.Context, target model.Target) (bool, error)
}

// ReactionRepo is the view of the reaction tables available inside a
// ReactionTx. InsertReaction returns ErrDuplicateReaction when the
// (author, target) pair already has a row.
type ReactionRepo interface {
	InsertReaction(ctx context.Context, reaction *model.Reaction) (int64, error)
	FindReaction(ctx context.Context, target model.Target, authorID int64) (model.Reaction, error)
	UpdateReactionStatus(ctx context.Context, target model.Target, id int64, statusID *int64) error
}

type AuthStore interface {
	CreateChallenge(ctx context.Context, c model.Challenge) error
	ConsumeChallenge(ctx context.Context, challenge string) (model.Challenge, error)
	CreateToken(ctx context.Context, token model.Token) error
	GetToken(ctx context.Context, token string) (model.Token, error)
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	AddAuthorKey(ctx context.Context, authorID int64, key *model.AuthorKey) (int64, error)
	GetAuthorKeys(ctx context.Context, authorID int64) ([]model.AuthorKey, error)
	FindAuthorKey(ctx context.Context, alg, publicKey string) (model.AuthorKey, error)
	RevokeAuthorKey(ctx context.Context, authorID, keyID int64, revokedAt time.Time) error
}
