package reaction_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/reaction"
	"github.com/alphabot-ai/newsroom/internal/store"
	"github.com/alphabot-ai/newsroom/internal/store/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	st      *sqlite.Store
	engine  *reaction.Engine
	alice   int64
	bob     int64
	article int64
	comment int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	now := time.Now()
	f := fixture{st: st, engine: reaction.New(st, nil)}

	f.alice, err = st.CreateAuthor(ctx, &model.Author{Username: "alice", PasswordHash: "x", CreatedAt: now})
	require.NoError(t, err)
	f.bob, err = st.CreateAuthor(ctx, &model.Author{Username: "bob", PasswordHash: "x", CreatedAt: now})
	require.NoError(t, err)
	f.article, err = st.CreateArticle(ctx, &model.Article{Title: "Post", Content: "body", AuthorID: f.alice, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	f.comment, err = st.CreateComment(ctx, &model.Comment{ArticleID: f.article, Text: "hi", AuthorID: f.bob, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	for _, slug := range []string{"like", "dislike"} {
		_, err := st.CreateStatus(ctx, &model.Status{Slug: slug, Name: slug})
		require.NoError(t, err)
	}
	return f
}

func statusSlug(res reaction.Result) string {
	if res.Status == nil {
		return ""
	}
	return res.Status.Slug
}

func TestToggleSequence(t *testing.T) {
	for _, kind := range []model.TargetKind{model.TargetArticle, model.TargetComment} {
		t.Run(string(kind), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			tgt := model.ArticleTarget(f.article)
			if kind == model.TargetComment {
				tgt = model.CommentTarget(f.comment)
			}

			steps := []struct {
				slug    string
				outcome model.Outcome
				status  string
			}{
				{"like", model.OutcomeCreated, "like"},
				{"like", model.OutcomeCleared, ""},
				{"dislike", model.OutcomeUpdated, "dislike"},
				{"dislike", model.OutcomeCleared, ""},
				{"like", model.OutcomeUpdated, "like"},
				{"dislike", model.OutcomeUpdated, "dislike"},
			}
			for i, step := range steps {
				res, err := f.engine.ApplyReaction(ctx, f.alice, tgt, step.slug)
				require.NoError(t, err, "step %d", i)
				assert.Equal(t, step.outcome, res.Outcome, "step %d outcome", i)
				assert.Equal(t, step.status, statusSlug(res), "step %d status", i)

				n, err := f.st.CountReactions(ctx, tgt)
				require.NoError(t, err)
				assert.Equal(t, 1, n, "step %d rows", i)
			}
		})
	}
}

func TestSameLabelTwiceNeverCreatesTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tgt := model.ArticleTarget(f.article)

	first, err := f.engine.ApplyReaction(ctx, f.bob, tgt, "like")
	require.NoError(t, err)
	second, err := f.engine.ApplyReaction(ctx, f.bob, tgt, "like")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCreated, first.Outcome)
	assert.Equal(t, model.OutcomeCleared, second.Outcome)
	assert.Nil(t, second.Status)
	assert.Equal(t, first.Reaction.ID, second.Reaction.ID)
}

func TestStatusCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tgt := model.ArticleTarget(f.article)

	counts, err := f.engine.StatusCounts(ctx, tgt)
	require.NoError(t, err)
	assert.NotNil(t, counts)
	assert.Empty(t, counts)

	_, err = f.engine.ApplyReaction(ctx, f.alice, tgt, "like")
	require.NoError(t, err)
	_, err = f.engine.ApplyReaction(ctx, f.bob, tgt, "like")
	require.NoError(t, err)

	counts, err = f.engine.StatusCounts(ctx, tgt)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"like": 2}, counts)

	_, err = f.engine.ApplyReaction(ctx, f.alice, tgt, "like")
	require.NoError(t, err)

	counts, err = f.engine.StatusCounts(ctx, tgt)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"like": 1}, counts)

	// The comment is a separate target.
	counts, err = f.engine.StatusCounts(ctx, model.CommentTarget(f.comment))
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ApplyReaction(ctx, f.alice, model.ArticleTarget(9999), "like")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.engine.ApplyReaction(ctx, f.alice, model.CommentTarget(9999), "like")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.engine.ApplyReaction(ctx, f.alice, model.ArticleTarget(f.article), "meh")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.engine.StatusCounts(ctx, model.CommentTarget(9999))
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := f.st.CountReactions(ctx, model.ArticleTarget(f.article))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInvalidTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ApplyReaction(ctx, f.alice, model.Target{Kind: "story", ID: 1}, "like")
	assert.ErrorIs(t, err, reaction.ErrInvalidTarget)

	_, err = f.engine.StatusCounts(ctx, model.ArticleTarget(0))
	assert.ErrorIs(t, err, reaction.ErrInvalidTarget)
}

func TestCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tgt := model.CommentTarget(f.comment)

	cur, err := f.engine.Current(ctx, f.alice, tgt)
	require.NoError(t, err)
	assert.Nil(t, cur)

	_, err = f.engine.ApplyReaction(ctx, f.alice, tgt, "dislike")
	require.NoError(t, err)
	cur, err = f.engine.Current(ctx, f.alice, tgt)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "dislike", cur.Slug)

	_, err = f.engine.ApplyReaction(ctx, f.alice, tgt, "dislike")
	require.NoError(t, err)
	cur, err = f.engine.Current(ctx, f.alice, tgt)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestConcurrentToggleKeepsOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tgt := model.ArticleTarget(f.article)

	const workers = 16
	outcomes := make([]model.Outcome, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			slug := "like"
			if i%2 == 1 {
				slug = "dislike"
			}
			res, err := f.engine.ApplyReaction(ctx, f.alice, tgt, slug)
			outcomes[i] = res.Outcome
			errs[i] = err
		}(i)
	}
	close(start)
	wg.Wait()

	created := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		if outcomes[i] == model.OutcomeCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)

	n, err := f.st.CountReactions(ctx, tgt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cur, err := f.engine.Current(ctx, f.alice, tgt)
	require.NoError(t, err)
	if cur != nil {
		assert.Contains(t, []string{"like", "dislike"}, cur.Slug)
	}
}

func TestTransition(t *testing.T) {
	like, dislike := int64(1), int64(2)

	next, outcome := reaction.Transition(&like, like)
	assert.Nil(t, next)
	assert.Equal(t, model.OutcomeCleared, outcome)

	next, outcome = reaction.Transition(&like, dislike)
	require.NotNil(t, next)
	assert.Equal(t, dislike, *next)
	assert.Equal(t, model.OutcomeUpdated, outcome)

	next, outcome = reaction.Transition(nil, like)
	require.NotNil(t, next)
	assert.Equal(t, like, *next)
	assert.Equal(t, model.OutcomeUpdated, outcome)
}
