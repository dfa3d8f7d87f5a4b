package engagement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/backend/internal/constants"
	"aurora/backend/internal/graph"
	"aurora/backend/internal/graph/memory"
	"aurora/backend/internal/metrics"
	apperrors "aurora/backend/pkg/errors"
)

func setup(t *testing.T) (*Service, *memory.Store, *metrics.Collector) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.SeedRealms(ctx, []graph.Realm{{Name: "Art", AllowedMedia: []string{constants.MediaImage}}}))
	for _, name := range []string{"alice", "bob"} {
		_, err := store.CreateUser(ctx, graph.NewUser{Username: name, PasswordHash: "h", CreatedAt: time.Now()})
		require.NoError(t, err)
	}
	_, err := store.CreateSubthread(ctx, "Art", "ink", time.Now())
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, graph.NewPost{
		ID: "p1", Author: "bob", Subthread: "ink", MediaKind: constants.MediaImage,
		VelocityScore: constants.BaselineVelocityScore, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	m := metrics.NewCollector("test")
	return NewService(store, 20, m), store, m
}

func score(t *testing.T, store *memory.Store) float64 {
	t.Helper()
	post, err := store.GetPost(context.Background(), "p1")
	require.NoError(t, err)
	return post.VelocityScore
}

func TestLike_RepeatedAppliesOnce(t *testing.T) {
	svc, store, m := setup(t)
	ctx := context.Background()

	first, err := svc.RecordInteraction(ctx, "alice", "p1", graph.InteractionLike, 0)
	require.NoError(t, err)
	assert.True(t, *first.Created)
	assert.Equal(t, 105.0, *first.NewScore)

	for i := 0; i < 4; i++ {
		again, err := svc.RecordInteraction(ctx, "alice", "p1", graph.InteractionLike, 0)
		require.NoError(t, err)
		assert.False(t, *again.Created)
		assert.Equal(t, 105.0, *again.NewScore)
	}

	assert.Equal(t, constants.BaselineVelocityScore+constants.LikeDelta, score(t, store))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Interactions.WithLabelValues("like", "recorded")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Interactions.WithLabelValues("like", "repeat")))
}

func TestLike_ConcurrentAppliesOnce(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordInteraction(ctx, "alice", "p1", graph.InteractionLike, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 105.0, score(t, store))
}

func TestDislike_SubtractsOnce(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordInteraction(ctx, "alice", "p1", graph.InteractionDislike, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 95.0, score(t, store))
}

func TestView_AppendsWithoutScoreChange(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		res, err := svc.RecordInteraction(ctx, "alice", "p1", graph.InteractionView, 12)
		require.NoError(t, err)
		assert.Equal(t, 12, *res.Duration)
		assert.Nil(t, res.NewScore)
	}
	assert.Equal(t, 4, store.ViewCount("p1"))
	assert.Equal(t, constants.BaselineVelocityScore, score(t, store))

	_, err := svc.RecordInteraction(ctx, "alice", "p1", graph.InteractionView, -1)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 4, store.ViewCount("p1"))
}

func TestRecordInteraction_NotFound(t *testing.T) {
	svc, _, m := setup(t)
	ctx := context.Background()

	_, err := svc.RecordInteraction(ctx, "alice", "missing", graph.InteractionLike, 0)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.RecordInteraction(ctx, "ghost", "p1", graph.InteractionView, 1)
	assert.True(t, apperrors.IsNotFound(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Interactions.WithLabelValues("like", "not_found")))
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind(" LIKE ")
	require.NoError(t, err)
	assert.Equal(t, graph.InteractionLike, kind)

	_, err = ParseKind("share")
	assert.True(t, apperrors.IsValidation(err))
}

func TestFeeds_Window(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	svc.feedWindow = 2

	base := time.Now()
	for i, id := range []string{"p2", "p3"} {
		_, err := store.CreatePost(ctx, graph.NewPost{
			ID: id, Author: "alice", Subthread: "ink", MediaKind: constants.MediaImage,
			CreatedAt: base.Add(time.Duration(i+1) * time.Minute),
		})
		require.NoError(t, err)
	}

	explore, err := svc.ExploreFeed(ctx)
	require.NoError(t, err)
	require.Len(t, explore, 2)
	assert.Equal(t, "p3", explore[0].ID)
	assert.Equal(t, "p2", explore[1].ID)

	mixed, err := svc.MixedFeed(ctx)
	require.NoError(t, err)
	assert.Len(t, mixed, 2)
}
