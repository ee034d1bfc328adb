package model

import "time"

type Author struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuthorKey struct {
	ID        int64      `json:"id"`
	AuthorID  int64      `json:"author_id"`
	Alg       string     `json:"alg"`
	PublicKey string     `json:"public_key"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

type Article struct {
	ID         int64          `json:"id"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	AuthorID   int64          `json:"author_id"`
	AuthorName string         `json:"author_name"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Statuses   map[string]int `json:"statuses"`
}

type Comment struct {
	ID         int64          `json:"id"`
	ArticleID  int64          `json:"article_id"`
	Text       string         `json:"text"`
	AuthorID   int64          `json:"author_id"`
	AuthorName string         `json:"author_name"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Statuses   map[string]int `json:"statuses"`
}

// Status is a catalog entry naming one kind of reaction, e.g. "like".
type Status struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// TargetKind tags which relation a reaction is stored in.
type TargetKind string

const (
	TargetArticle TargetKind = "article"
	TargetComment TargetKind = "comment"
)

func (k TargetKind) Valid() bool {
	return k == TargetArticle || k == TargetComment
}

// Target identifies an article or a comment that can be reacted to.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   int64      `json:"id"`
}

func ArticleTarget(id int64) Target { return Target{Kind: TargetArticle, ID: id} }

func CommentTarget(id int64) Target { return Target{Kind: TargetComment, ID: id} }

// Reaction is the single row kept per (author, target). A nil StatusID
// means the reaction was cleared; the row itself stays.
type Reaction struct {
	ID       int64  `json:"id"`
	AuthorID int64  `json:"author_id"`
	Target   Target `json:"target"`
	StatusID *int64 `json:"status_id"`
}

// Outcome reports which transition ApplyReaction performed.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeCleared Outcome = "cleared"
)

type Challenge struct {
	Challenge string
	Alg       string
	ExpiresAt time.Time
}

type Token struct {
	Token     string
	AuthorID  int64
	KeyID     *int64
	ExpiresAt time.Time
}

type SiteStats struct {
	Authors   int64 `json:"authors"`
	Articles  int64 `json:"articles"`
	Comments  int64 `json:"comments"`
	Reactions int64 `json:"reactions"`
}
