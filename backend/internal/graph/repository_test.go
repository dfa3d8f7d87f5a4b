package graph

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora/backend/internal/constants"
	apperrors "aurora/backend/pkg/errors"
)

// These tests require a running Neo4j instance.
// Set NEO4J_TEST_URI (and optionally NEO4J_TEST_USER, NEO4J_TEST_PASSWORD).
func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	uri := os.Getenv("NEO4J_TEST_URI")
	if uri == "" {
		t.Skip("NEO4J_TEST_URI not set")
	}
	user := os.Getenv("NEO4J_TEST_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_TEST_PASSWORD")
	if password == "" {
		password = "password"
	}

	ctx := context.Background()
	driver, err := Connect(ctx, uri, user, password)
	require.NoError(t, err)

	repo := NewRepository(driver, "")
	require.NoError(t, repo.EnsureSchema(ctx))

	// Every test works in its own namespace so runs never collide
	prefix := "t" + uuid.NewString()[:8] + "_"
	t.Cleanup(func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, `
			MATCH (n) WHERE n.username STARTS WITH $p OR n.name STARTS WITH $p OR n.id STARTS WITH $p
			DETACH DELETE n`, map[string]interface{}{"p": prefix})
		_ = repo.Close(ctx)
	})
	return repo, prefix
}

func seedFixture(t *testing.T, repo *Repository, prefix string) (realm Realm, user string) {
	t.Helper()
	ctx := context.Background()
	realm = Realm{Name: prefix + "Music", AllowedMedia: []string{constants.MediaAudio}, LimitCount: 5}
	require.NoError(t, repo.SeedRealms(ctx, []Realm{realm}))
	user = prefix + "alice"
	_, err := repo.CreateUser(ctx, NewUser{Username: user, PasswordHash: "hash", CreatedAt: time.Now()})
	require.NoError(t, err)
	return realm, user
}

func TestRepository_CreateUserConflict(t *testing.T) {
	repo, prefix := newTestRepository(t)
	ctx := context.Background()

	bob := NewUser{Username: prefix + "bob", PasswordHash: "h1", CreatedAt: time.Now()}
	created, err := repo.CreateUser(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultReputationScore, created.ReputationScore)

	bob.PasswordHash = "h2"
	_, err = repo.CreateUser(ctx, bob)
	assert.True(t, apperrors.IsConflict(err))

	creds, err := repo.GetCredentials(ctx, bob.Username)
	require.NoError(t, err)
	assert.Equal(t, "h1", creds.PasswordHash)
}

func TestRepository_PlaceholderIsClaimed(t *testing.T) {
	repo, prefix := newTestRepository(t)
	ctx := context.Background()

	msg := Message{ID: prefix + uuid.NewString(), From: prefix + "ghost", To: prefix + "other", Content: "x", Timestamp: time.Now()}
	require.NoError(t, repo.SaveChatMessage(ctx, msg))

	_, err := repo.GetUser(ctx, prefix+"ghost")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = repo.CreateUser(ctx, NewUser{Username: prefix + "ghost", PasswordHash: "h", CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = repo.GetUser(ctx, prefix+"ghost")
	assert.NoError(t, err)
}

func TestRepository_SaveChatMessageReportsConstraintViolation(t *testing.T) {
	repo, prefix := newTestRepository(t)
	ctx := context.Background()

	msg := Message{ID: prefix + "dup", From: prefix + "a", To: prefix + "b", Content: "x", Timestamp: time.Now()}
	require.NoError(t, repo.SaveChatMessage(ctx, msg))

	err := repo.SaveChatMessage(ctx, msg)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeStore))
}

func TestRepository_PostInDisallowedRealm(t *testing.T) {
	repo, prefix := newTestRepository(t)
	ctx := context.Background()
	realm, user := seedFixture(t, repo, prefix)

	_, err := repo.CreateSubthread(ctx, realm.Name, prefix+"jazz", time.Now())
	require.NoError(t, err)

	_, err = repo.CreatePost(ctx, NewPost{
		ID: prefix + "p1", Author: user, Subthread: prefix + "jazz", Title: "clip",
		MediaURL: "u", MediaKind: constants.MediaVideo, VelocityScore: 100, CreatedAt: time.Now(),
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = repo.GetPost(ctx, prefix+"p1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRepository_SubthreadOwnedByAnotherRealm(t *testing.T) {
	repo, prefix := newTestRepository(t)
	ctx := context.Background()
	realm, _ := seedFixture(t, repo, prefix)
	other := Realm{Name: prefix + "Art", AllowedMedia: []string{constants.MediaImage}}
	require.NoError(t, repo.SeedRealms(ctx, []Realm{other}))

	s, err := repo.CreateSubthread(ctx, realm.Name, prefix+"shared", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.Popularity)

	s, err = repo.CreateSubthread(ctx, realm.Name, prefix+"shared", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.Popularity)

	_, err = repo.CreateSubthread(ctx, other.Name, prefix+"shared", time.Now())
	assert.True(t, apperrors.IsConflict(err))

	_, err = repo.CreateSubthread(ctx, prefix+"Nowhere", prefix+"x", time.Now())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRepository_ConcurrentSubthreadClaimsOneRealm(t *testing.T) {
	repo, prefix := newTestRepository(t)
	ctx := context.Background()
	music, _ := seedFixture(t, repo, prefix)
	art := Realm{Name: prefix + "Art", AllowedMedia: []string{constants.MediaImage}}
	require.NoError(t, repo.SeedRealms(ctx, []Realm{art}))

	name := prefix + "contested"
	realms := []string{music.Name, art.Name}
	errs := make([]error, 8)

	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CreateSubthread(ctx, realms[i%2], name, time.Now())
		}(i)
	}
	wg.Wait()

	winners := map[string]int{}
	for i, err := range errs {
		if err == nil {
			winners[realms[i%2]]++
			continue
		}
		assert.True(t, apperrors.IsConflict(err), "unexpected error: %v", err)
	}
	require.Len(t, winners, 1)

	owner, err := repo.GetSubthreadRealm(ctx, name)
	require.NoError(t, err)
	_, ok := winners[owner.Name]
	assert.True(t, ok)

	musicSubs, err := repo.ListSubthreads(ctx, music.Name, 10)
	require.NoError(t, err)
	artSubs, err := repo.ListSubthreads(ctx, art.Name, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, len(musicSubs)+len(artSubs))
}

func TestRepository_ConcurrentLikesApplyOnce(t *testing.T) {
	repo, prefix := newTestRepository(t)
	ctx := context.Background()
	realm, user := seedFixture(t, repo, prefix)

	_, err := repo.CreateSubthread(ctx, realm.Name, prefix+"lofi", time.Now())
	require.NoError(t, err)
	_, err = repo.CreatePost(ctx, NewPost{
		ID: prefix + "p1", Author: user, Subthread: prefix + "lofi", Title: "song",
		MediaURL: "u", MediaKind: constants.MediaAudio, VelocityScore: 100, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.ApplyReaction(ctx, user, prefix+"p1", InteractionLike, constants.LikeDelta, time.Now())
		}()
	}
	wg.Wait()

	post, err := repo.GetPost(ctx, prefix+"p1")
	require.NoError(t, err)
	assert.Equal(t, 105.0, post.VelocityScore)
}

func TestRepository_FollowKeepsFirstTimestamp(t *testing.T) {
	repo, prefix := newTestRepository(t)
	ctx := context.Background()
	_, alice := seedFixture(t, repo, prefix)
	_, err := repo.CreateUser(ctx, NewUser{Username: prefix + "bob", PasswordHash: "h", CreatedAt: time.Now()})
	require.NoError(t, err)

	first, err := repo.Follow(ctx, alice, prefix+"bob", time.Now())
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := repo.Follow(ctx, alice, prefix+"bob", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.True(t, first.Since.Equal(second.Since))

	n, err := repo.CountFollowers(ctx, prefix+"bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepository_HistoryIsSymmetric(t *testing.T) {
	repo, prefix := newTestRepository(t)
	ctx := context.Background()
	a, b := prefix+"a", prefix+"b"
	base := time.Now().UTC()

	require.NoError(t, repo.SaveChatMessage(ctx, Message{ID: prefix + "m1", From: a, To: b, Content: "1", Timestamp: base}))
	require.NoError(t, repo.SaveChatMessage(ctx, Message{ID: prefix + "m2", From: b, To: a, Content: "2", Timestamp: base.Add(time.Second)}))

	ab, err := repo.History(ctx, a, b)
	require.NoError(t, err)
	ba, err := repo.History(ctx, b, a)
	require.NoError(t, err)

	require.Len(t, ab, 2)
	assert.Equal(t, ab, ba)
	assert.Equal(t, a, ab[0].From)
	assert.Equal(t, b, ab[1].From)
}
