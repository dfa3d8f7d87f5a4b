package account

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"aurora/backend/internal/constants"
	"aurora/backend/internal/graph"
	apperrors "aurora/backend/pkg/errors"
	"aurora/backend/pkg/logger"
)

// bcrypt ignores everything past 72 bytes
const passwordMaxLength = 72

// Store is the slice of the graph store accounts need
type Store interface {
	CreateUser(ctx context.Context, nu graph.NewUser) (*graph.User, error)
	GetCredentials(ctx context.Context, username string) (*graph.Credentials, error)
	UpdateProfileImage(ctx context.Context, username, imageURL string, palette []string) (*graph.User, error)
}

// Hasher is the credential verifier collaborator
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// Minter is the token issuing collaborator
type Minter interface {
	Mint(username string) (string, error)
}

// PaletteFunc extracts a colour palette from an image file
type PaletteFunc func(path string) []string

// Token is the login response
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Service handles registration, login and profile pictures
type Service struct {
	store      Store
	hasher     Hasher
	minter     Minter
	palette    PaletteFunc
	uploadsDir string
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates an account service
func NewService(store Store, hasher Hasher, minter Minter, palette PaletteFunc, uploadsDir string) *Service {
	return &Service{
		store:      store,
		hasher:     hasher,
		minter:     minter,
		palette:    palette,
		uploadsDir: uploadsDir,
		logger:     logger.Named("account"),
		now:        time.Now,
	}
}

// Register creates a user with the default reputation
func (s *Service) Register(ctx context.Context, username, password string) (*graph.User, error) {
	username = strings.TrimSpace(username)
	if n := len(username); n < constants.UsernameMinLength || n > constants.UsernameMaxLength {
		return nil, apperrors.NewValidation("username",
			fmt.Sprintf("must be %d-%d characters", constants.UsernameMinLength, constants.UsernameMaxLength))
	}
	if strings.ContainsAny(username, "/?#") {
		return nil, apperrors.NewValidation("username", "must not contain / ? or #")
	}
	if n := len(password); n < constants.PasswordMinLength || n > passwordMaxLength {
		return nil, apperrors.NewValidation("password",
			fmt.Sprintf("must be %d-%d characters", constants.PasswordMinLength, passwordMaxLength))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	return s.store.CreateUser(ctx, graph.NewUser{Username: username, PasswordHash: hash, CreatedAt: s.now()})
}

// Login checks credentials and mints a bearer token. A missing user and a wrong
// password produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	creds, err := s.store.GetCredentials(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, creds.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	token, err := s.minter.Mint(creds.Username)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: token, TokenType: "bearer"}, nil
}

// ProfileImage is the result of a profile picture update
type ProfileImage struct {
	URL    string   `json:"profile_image"`
	Colors []string `json:"colors"`
}

// UpdateProfileImage stores a JPEG or PNG under the uploads directory, extracts
// its palette and records both on the user
func (s *Service) UpdateProfileImage(ctx context.Context, username, contentType string, body io.Reader) (*ProfileImage, error) {
	if !lo.Contains(constants.ProfileImageTypes, contentType) {
		return nil, apperrors.NewValidation("file", "only JPEG and PNG are allowed")
	}

	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	dir := filepath.Join(s.uploadsDir, "profiles")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	name := fmt.Sprintf("profile_%s_%d%s", username, s.now().UnixNano(), ext)
	path := filepath.Join(dir, name)

	if err := writeFile(path, body); err != nil {
		return nil, err
	}

	colors := s.palette(path)
	url := "/uploads/profiles/" + name
	user, err := s.store.UpdateProfileImage(ctx, username, url, colors)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	s.logger.Info("Profile image updated", zap.String("username", username), zap.Strings("colors", colors))
	return &ProfileImage{URL: *user.ProfileImage, Colors: user.ProfileColors}, nil
}

func writeFile(path string, body io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
