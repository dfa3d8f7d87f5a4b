package account

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"aurora/backend/internal/auth"
	"aurora/backend/internal/graph"
	"aurora/backend/internal/graph/memory"
	apperrors "aurora/backend/pkg/errors"
)

func setup(t *testing.T) (*Service, *memory.Store, *auth.Tokens) {
	t.Helper()
	store := memory.NewStore()
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	palette := func(string) []string { return []string{"#111111", "#222222"} }
	return NewService(store, auth.NewPasswords(bcrypt.MinCost), tokens, palette, t.TempDir()), store, tokens
}

func TestRegister(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "bob", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, 50.0, user.ReputationScore)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = svc.Register(ctx, "bob", "another1")
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, 1, store.UserCount("bob"))

	// the original password still works
	_, err = svc.Login(ctx, "bob", "secret1")
	assert.NoError(t, err)
}

func TestRegister_ConcurrentSameName(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, "bob", "secret1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.True(t, apperrors.IsConflict(err))
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, store.UserCount("bob"))
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "ab", "secret1"},
		{"long username", strings.Repeat("x", 51), "secret1"},
		{"slash", "a/b/c", "secret1"},
		{"short password", "carol", "12345"},
		{"long password", "carol", strings.Repeat("p", 73)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.password)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestRegister_ClaimsChatPlaceholder(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, store.SaveChatMessage(ctx, graph.Message{ID: "m1", From: "early", To: "bird", Timestamp: time.Now()}))

	_, err := svc.Login(ctx, "early", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Register(ctx, "early", "secret1")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "early", "secret1")
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	svc, _, tokens := setup(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "password1")
	require.NoError(t, err)

	tok, err := svc.Login(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	sub, err := tokens.Verify(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	_, wrongPassword := svc.Login(ctx, "alice", "password2")
	_, unknownUser := svc.Login(ctx, "nobody", "password1")
	assert.ErrorIs(t, wrongPassword, apperrors.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, apperrors.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestUpdateProfileImage(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "password1")
	require.NoError(t, err)

	_, err = svc.UpdateProfileImage(ctx, "alice", "image/gif", strings.NewReader("GIF89a"))
	assert.True(t, apperrors.IsValidation(err))

	res, err := svc.UpdateProfileImage(ctx, "alice", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.URL, "/uploads/profiles/profile_alice_"))
	assert.Equal(t, []string{"#111111", "#222222"}, res.Colors)

	stored := filepath.Join(svc.uploadsDir, "profiles", filepath.Base(res.URL))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	user, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, user.ProfileImage)
	assert.Equal(t, res.URL, *user.ProfileImage)

	_, err = svc.UpdateProfileImage(ctx, "ghost", "image/jpeg", strings.NewReader("x"))
	assert.True(t, apperrors.IsNotFound(err))
}
