package social

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aurora/backend/internal/graph"
	apperrors "aurora/backend/pkg/errors"
	"aurora/backend/pkg/logger"
)

// Store is the slice of the graph store the follow graph needs
type Store interface {
	GetUser(ctx context.Context, username string) (*graph.User, error)
	Follow(ctx context.Context, follower, followee string, now time.Time) (*graph.FollowEdge, error)
	CountFollowers(ctx context.Context, username string) (int, error)
	CountFollowing(ctx context.Context, username string) (int, error)
	IsFollowing(ctx context.Context, follower, followee string) (bool, error)
}

// Profile is the denormalised view of one user as seen by a viewer
type Profile struct {
	Username        string    `json:"username"`
	ReputationScore float64   `json:"reputation_score"`
	FollowerCount   int       `json:"follower_count"`
	FollowingCount  int       `json:"following_count"`
	IsFollowing     bool      `json:"is_following"`
	CreatedAt       time.Time `json:"created_at"`
	ProfileImage    *string   `json:"profile_image,omitempty"`
	ProfileColors   []string  `json:"profile_colors,omitempty"`
}

// Service manages the follow graph
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a follow graph service
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		logger: logger.Named("social"),
		now:    time.Now,
	}
}

// Follow makes actor follow target. Repeats are no-ops that keep the first timestamp.
func (s *Service) Follow(ctx context.Context, actor, target string) (*graph.FollowEdge, error) {
	if actor == target {
		return nil, apperrors.NewValidation("username", "cannot follow yourself")
	}
	edge, err := s.store.Follow(ctx, actor, target, s.now())
	if err != nil {
		return nil, err
	}
	if edge.Created {
		s.logger.Info("User followed", zap.String("follower", actor), zap.String("followee", target))
	}
	return edge, nil
}

// Profile aggregates follower and following counts and whether viewer follows
// target. The lookups are independent and run concurrently.
func (s *Service) Profile(ctx context.Context, target, viewer string) (*Profile, error) {
	var (
		user                 *graph.User
		followers, following int
		isFollowing          bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.store.GetUser(gctx, target)
		return err
	})
	g.Go(func() error {
		var err error
		followers, err = s.store.CountFollowers(gctx, target)
		return err
	})
	g.Go(func() error {
		var err error
		following, err = s.store.CountFollowing(gctx, target)
		return err
	})
	if viewer != "" && viewer != target {
		g.Go(func() error {
			var err error
			isFollowing, err = s.store.IsFollowing(gctx, viewer, target)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Profile{
		Username:        user.Username,
		ReputationScore: user.ReputationScore,
		FollowerCount:   followers,
		FollowingCount:  following,
		IsFollowing:     isFollowing,
		CreatedAt:       user.CreatedAt,
		ProfileImage:    user.ProfileImage,
		ProfileColors:   user.ProfileColors,
	}, nil
}
