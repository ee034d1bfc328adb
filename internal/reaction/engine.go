// Package reaction implements the per-author status toggle for articles
// and comments, and the per-status counts derived from it.
//
// Each (author, target) pair owns at most one row. The first reaction
// inserts it; every later one either clears the row's status (same label)
// or overwrites it (different label). Rows are never deleted here.
package reaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/store"
)

// ErrInvalidTarget is returned for a target with an unknown kind or a
// non-positive id.
var ErrInvalidTarget = errors.New("invalid reaction target")

// errRowVanished marks a unique violation whose conflicting row could not
// be read back. The whole attempt is retried.
var errRowVanished = errors.New("reaction row vanished after conflict")

const maxAttempts = 3

// Store is what the engine needs from persistence.
type Store interface {
	GetStatus(ctx context.Context, id int64) (model.Status, error)
	GetStatusBySlug(ctx context.Context, slug string) (model.Status, error)
	store.ReactionStore
}

type Engine struct {
	store  Store
	logger *slog.Logger
}

// Result describes what ApplyReaction did. Status is nil when the
// reaction ended up cleared.
type Result struct {
	Outcome  model.Outcome
	Status   *model.Status
	Reaction model.Reaction
}

func New(st Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, logger: logger}
}

// ApplyReaction toggles authorID's reaction on target towards the status
// named by slug. Missing targets and unknown slugs yield errors wrapping
// store.ErrNotFound.
func (e *Engine) ApplyReaction(ctx context.Context, authorID int64, target model.Target, slug string) (Result, error) {
	if err := e.requireTarget(ctx, target); err != nil {
		return Result{}, err
	}
	label, err := e.store.GetStatusBySlug(ctx, slug)
	if err != nil {
		return Result{}, fmt.Errorf("status %q: %w", slug, err)
	}

	for attempt := 1; ; attempt++ {
		res, err := e.toggle(ctx, authorID, target, label)
		if errors.Is(err, errRowVanished) && attempt < maxAttempts {
			e.logger.Debug("retrying reaction toggle", "target", target.Kind, "target_id", target.ID, "author_id", authorID, "attempt", attempt)
			continue
		}
		if err != nil {
			return Result{}, err
		}
		e.logger.Debug("reaction applied",
			"target", target.Kind,
			"target_id", target.ID,
			"author_id", authorID,
			"status", slug,
			"outcome", res.Outcome,
		)
		return res, nil
	}
}

func (e *Engine) toggle(ctx context.Context, authorID int64, target model.Target, label model.Status) (Result, error) {
	var res Result
	err := e.store.ReactionTx(ctx, func(tx store.ReactionRepo) error {
		statusID := label.ID
		reaction := model.Reaction{AuthorID: authorID, Target: target, StatusID: &statusID}
		id, err := tx.InsertReaction(ctx, &reaction)
		if err == nil {
			reaction.ID = id
			res = Result{Outcome: model.OutcomeCreated, Status: &label, Reaction: reaction}
			return nil
		}
		if !errors.Is(err, store.ErrDuplicateReaction) {
			return fmt.Errorf("insert reaction: %w", err)
		}

		existing, err := tx.FindReaction(ctx, target, authorID)
		if errors.Is(err, store.ErrNotFound) {
			return errRowVanished
		}
		if err != nil {
			return fmt.Errorf("load reaction: %w", err)
		}

		next, outcome := Transition(existing.StatusID, label.ID)
		if err := tx.UpdateReactionStatus(ctx, target, existing.ID, next); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errRowVanished
			}
			return fmt.Errorf("update reaction: %w", err)
		}
		existing.StatusID = next
		res = Result{Outcome: outcome, Reaction: existing}
		if next != nil {
			res.Status = &label
		}
		return nil
	})
	return res, err
}

// Transition computes the status to store for a pair that already has a
// row: the same label clears it, anything else (including a cleared row)
// becomes the requested label.
func Transition(current *int64, requested int64) (*int64, model.Outcome) {
	if current != nil && *current == requested {
		return nil, model.OutcomeCleared
	}
	next := requested
	return &next, model.OutcomeUpdated
}

// StatusCounts returns how many active reactions each status name has on
// target. Cleared reactions are not counted. The map is empty, never nil,
// when nothing is active.
func (e *Engine) StatusCounts(ctx context.Context, target model.Target) (map[string]int, error) {
	if err := e.requireTarget(ctx, target); err != nil {
		return nil, err
	}
	counts, err := e.store.CountReactionsByStatus(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("count reactions: %w", err)
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}

// Current returns the status authorID has active on target, or nil when
// there is no row or the row is cleared.
func (e *Engine) Current(ctx context.Context, authorID int64, target model.Target) (*model.Status, error) {
	if !target.Kind.Valid() || target.ID <= 0 {
		return nil, ErrInvalidTarget
	}
	r, err := e.store.GetReaction(ctx, target, authorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r.StatusID == nil {
		return nil, nil
	}
	st, err := e.store.GetStatus(ctx, *r.StatusID)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (e *Engine) requireTarget(ctx context.Context, target model.Target) error {
	if !target.Kind.Valid() || target.ID <= 0 {
		return ErrInvalidTarget
	}
	ok, err := e.store.TargetExists(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %d: %w", target.Kind, target.ID, store.ErrNotFound)
	}
	return nil
}
