package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"aurora/backend/internal/constants"
	"aurora/backend/internal/graph"
	apperrors "aurora/backend/pkg/errors"
	"aurora/backend/pkg/logger"
)

// Store is the slice of the graph store the content hierarchy needs
type Store interface {
	SeedRealms(ctx context.Context, realms []graph.Realm) error
	GetRealm(ctx context.Context, name string) (*graph.Realm, error)
	ListRealms(ctx context.Context) ([]graph.Realm, error)
	CreateSubthread(ctx context.Context, realm, name string, now time.Time) (*graph.Subthread, error)
	ListSubthreads(ctx context.Context, realm string, limit int) ([]graph.Subthread, error)
	GetSubthreadRealm(ctx context.Context, subthread string) (*graph.Realm, error)
	CreatePost(ctx context.Context, np graph.NewPost) (*graph.PostSummary, error)
	CountPostsByAuthorInRealm(ctx context.Context, author, realm string, since time.Time) (int, error)
}

// Options tunes the content service
type Options struct {
	// EnforceQuota caps posts per author per realm per UTC day at the realm's limit_count
	EnforceQuota bool
}

// realm rules are immutable after seeding, so entries only expire to pick up reseeds
const realmCacheTTL = 10 * time.Minute

// Service implements the Realm / Subthread / Post hierarchy
type Service struct {
	store    Store
	realms   *cache.Cache[graph.Realm]
	validate *validator.Validate
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a content service with its realm-rule cache
func NewService(store Store, opts Options) (*Service, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 12,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create realm cache: %w", err)
	}

	return &Service{
		store:    store,
		realms:   cache.New[graph.Realm](ristretto_store.NewRistretto(client)),
		validate: validator.New(),
		opts:     opts,
		logger:   logger.Named("content"),
		now:      time.Now,
	}, nil
}

// Seed writes the realm catalog to the store
func (s *Service) Seed(ctx context.Context, realms []graph.Realm) error {
	if err := s.store.SeedRealms(ctx, realms); err != nil {
		return err
	}
	for _, realm := range realms {
		s.remember(ctx, "realm:"+realm.Name, realm)
	}
	return nil
}

func (s *Service) remember(ctx context.Context, key string, realm graph.Realm) {
	if err := s.realms.Set(ctx, key, realm, store.WithExpiration(realmCacheTTL), store.WithCost(1)); err != nil {
		s.logger.Debug("Realm cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Realm returns a realm's rules, from cache when possible
func (s *Service) Realm(ctx context.Context, name string) (*graph.Realm, error) {
	key := "realm:" + name
	if realm, err := s.realms.Get(ctx, key); err == nil && realm.Name != "" {
		return &realm, nil
	}
	realm, err := s.store.GetRealm(ctx, name)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, key, *realm)
	return realm, nil
}

// subthreadRealm resolves a subthread's owner. Ownership never changes once made.
func (s *Service) subthreadRealm(ctx context.Context, subthread string) (*graph.Realm, error) {
	key := "subthread:" + subthread
	if realm, err := s.realms.Get(ctx, key); err == nil && realm.Name != "" {
		return &realm, nil
	}
	realm, err := s.store.GetSubthreadRealm(ctx, subthread)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, key, *realm)
	return realm, nil
}

// ListRealms returns every realm ordered by name
func (s *Service) ListRealms(ctx context.Context) ([]graph.Realm, error) {
	return s.store.ListRealms(ctx)
}

// CreateSubthread get-or-creates a subthread under realm and bumps its popularity
func (s *Service) CreateSubthread(ctx context.Context, realm, name string) (*graph.Subthread, error) {
	name = strings.TrimSpace(name)
	if n := len(name); n < constants.SubthreadNameMinLength || n > constants.SubthreadNameMaxLength {
		return nil, apperrors.NewValidation("name", fmt.Sprintf("must be %d-%d characters", constants.SubthreadNameMinLength, constants.SubthreadNameMaxLength))
	}

	sub, err := s.store.CreateSubthread(ctx, realm, name, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Subthread referenced",
		zap.String("realm", sub.Realm),
		zap.String("subthread", sub.Name),
		zap.Int64("popularity", sub.Popularity))
	return sub, nil
}

// ListSubthreads returns the realm's subthreads, most popular first
func (s *Service) ListSubthreads(ctx context.Context, realm string) ([]graph.Subthread, error) {
	if _, err := s.Realm(ctx, realm); err != nil {
		return nil, err
	}
	return s.store.ListSubthreads(ctx, realm, constants.SubthreadListLimit)
}

// PostInput is what an author supplies for a new post
type PostInput struct {
	Author       string
	Subthread    string
	Title        string
	MediaURL     string
	MediaType    string
	ThumbnailURL *string
	Colors       []string             `validate:"omitempty,dive,hexcolor"`
	Timeline     []graph.ColorSegment `validate:"omitempty,dive"`
}

// CreatePost validates the media kind against the owning realm and writes the
// post with its edges in one statement
func (s *Service) CreatePost(ctx context.Context, in PostInput) (*graph.PostSummary, error) {
	if len(in.Title) > constants.CaptionMaxLength {
		return nil, apperrors.NewValidation("caption", fmt.Sprintf("must be at most %d characters", constants.CaptionMaxLength))
	}
	if strings.TrimSpace(in.MediaURL) == "" {
		return nil, apperrors.NewValidation("media_url", "is required")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	realm, err := s.subthreadRealm(ctx, in.Subthread)
	if err != nil {
		return nil, err
	}

	kind := DetectMediaKind(in.MediaType)
	if !realm.Allows(kind) {
		return nil, apperrors.NewValidation("media_kind",
			fmt.Sprintf("%s only accepts %s", realm.Name, strings.Join(realm.AllowedMedia, ", ")))
	}

	now := s.now().UTC()
	if s.opts.EnforceQuota {
		if err := s.checkQuota(ctx, in.Author, *realm, now); err != nil {
			return nil, err
		}
	}

	post, err := s.store.CreatePost(ctx, graph.NewPost{
		ID:            uuid.NewString(),
		Author:        in.Author,
		Subthread:     in.Subthread,
		Title:         in.Title,
		MediaURL:      in.MediaURL,
		MediaKind:     kind,
		ThumbnailURL:  in.ThumbnailURL,
		Colors:        in.Colors,
		Timeline:      in.Timeline,
		VelocityScore: constants.BaselineVelocityScore,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// validationError names the first failing field of a validator error
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.NewValidation(strings.ToLower(fe.Field()), fmt.Sprintf("failed %s check at %s", fe.Tag(), fe.Namespace()))
	}
	return apperrors.NewValidation("payload", err.Error())
}

func (s *Service) checkQuota(ctx context.Context, author string, realm graph.Realm, now time.Time) error {
	if realm.LimitCount <= 0 {
		return nil
	}
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := s.store.CountPostsByAuthorInRealm(ctx, author, realm.Name, dayStart)
	if err != nil {
		return err
	}
	if count >= realm.LimitCount {
		return apperrors.NewValidation("limit_count",
			fmt.Sprintf("daily limit of %d posts in %s reached", realm.LimitCount, realm.Name))
	}
	return nil
}

// PublishInput is a post addressed by realm and subthread name
type PublishInput struct {
	PostInput
	Realm string
}

// Publish get-or-creates the subthread under realm, then creates the post in it
func (s *Service) Publish(ctx context.Context, in PublishInput) (*graph.PostSummary, error) {
	// reject a disallowed kind before the subthread's popularity moves
	realm, err := s.Realm(ctx, in.Realm)
	if err != nil {
		return nil, err
	}
	if kind := DetectMediaKind(in.MediaType); !realm.Allows(kind) {
		return nil, apperrors.NewValidation("media_kind",
			fmt.Sprintf("%s only accepts %s", realm.Name, strings.Join(realm.AllowedMedia, ", ")))
	}

	sub, err := s.CreateSubthread(ctx, in.Realm, in.Subthread)
	if err != nil {
		return nil, err
	}
	in.PostInput.Subthread = sub.Name
	return s.CreatePost(ctx, in.PostInput)
}
