package engagement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"aurora/backend/internal/constants"
	"aurora/backend/internal/graph"
	"aurora/backend/internal/metrics"
	apperrors "aurora/backend/pkg/errors"
	"aurora/backend/pkg/logger"
)

// Store is the slice of the graph store the engagement engine needs
type Store interface {
	ApplyReaction(ctx context.Context, username, postID string, kind graph.InteractionKind, delta float64, now time.Time) (*graph.ScoreChange, error)
	RecordView(ctx context.Context, username, postID string, durationSeconds int, now time.Time) (*graph.ViewRecord, error)
	ExploreFeed(ctx context.Context, limit int) ([]graph.PostSummary, error)
	MixedFeed(ctx context.Context, limit int) ([]graph.Post, error)
}

// Result is the outcome of one interaction. Score fields are set for reactions,
// Duration for views.
type Result struct {
	Status   string                `json:"status"`
	Type     graph.InteractionKind `json:"type"`
	NewScore *float64              `json:"new_score,omitempty"`
	Created  *bool                 `json:"created,omitempty"`
	Duration *int                  `json:"duration_seconds,omitempty"`
}

// Service records engagement and serves the feeds. It holds no per-call state.
type Service struct {
	store      Store
	feedWindow int
	metrics    *metrics.Collector
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates an engagement service. A nil collector disables metrics.
func NewService(store Store, feedWindow int, m *metrics.Collector) *Service {
	if feedWindow <= 0 {
		feedWindow = constants.DefaultFeedWindow
	}
	return &Service{
		store:      store,
		feedWindow: feedWindow,
		metrics:    m,
		logger:     logger.Named("engagement"),
		now:        time.Now,
	}
}

// ParseKind normalises an interaction kind
func ParseKind(raw string) (graph.InteractionKind, error) {
	switch kind := graph.InteractionKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case graph.InteractionLike, graph.InteractionDislike, graph.InteractionView:
		return kind, nil
	}
	return "", apperrors.NewValidation("interaction_type", fmt.Sprintf("unknown interaction %q", raw))
}

// RecordInteraction applies one engagement event. Likes and dislikes change the
// score only the first time per user and post; every view adds an edge.
func (s *Service) RecordInteraction(ctx context.Context, username, postID string, kind graph.InteractionKind, durationSeconds int) (*Result, error) {
	if postID == "" {
		return nil, apperrors.NewValidation("post_id", "is required")
	}

	var (
		result *Result
		err    error
	)
	switch kind {
	case graph.InteractionLike:
		result, err = s.react(ctx, username, postID, kind, constants.LikeDelta)
	case graph.InteractionDislike:
		result, err = s.react(ctx, username, postID, kind, -constants.DislikeDelta)
	case graph.InteractionView:
		result, err = s.view(ctx, username, postID, durationSeconds)
	default:
		_, err = ParseKind(string(kind))
	}

	s.count(kind, result, err)
	return result, err
}

func (s *Service) react(ctx context.Context, username, postID string, kind graph.InteractionKind, delta float64) (*Result, error) {
	change, err := s.store.ApplyReaction(ctx, username, postID, kind, delta, s.now())
	if err != nil {
		return nil, err
	}
	if change.Created {
		s.logger.Debug("Velocity score changed",
			zap.String("post_id", postID),
			zap.String("kind", string(kind)),
			zap.Float64("score", change.Score))
	}
	return &Result{Status: "recorded", Type: kind, NewScore: &change.Score, Created: &change.Created}, nil
}

func (s *Service) view(ctx context.Context, username, postID string, durationSeconds int) (*Result, error) {
	if durationSeconds < 0 {
		return nil, apperrors.NewValidation("duration_seconds", "must not be negative")
	}
	view, err := s.store.RecordView(ctx, username, postID, durationSeconds, s.now())
	if err != nil {
		return nil, err
	}
	return &Result{Status: "recorded", Type: graph.InteractionView, Duration: &view.DurationSeconds}, nil
}

func (s *Service) count(kind graph.InteractionKind, result *Result, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "recorded"
	switch {
	case err != nil:
		outcome = string(apperrors.TypeOf(err))
	case result.Created != nil && !*result.Created:
		outcome = "repeat"
	}
	s.metrics.Interactions.WithLabelValues(string(kind), outcome).Inc()
}

// ExploreFeed returns the newest posts with author, subthread and realm
func (s *Service) ExploreFeed(ctx context.Context) ([]graph.PostSummary, error) {
	return s.store.ExploreFeed(ctx, s.feedWindow)
}

// MixedFeed returns the newest posts, unweighted
func (s *Service) MixedFeed(ctx context.Context) ([]graph.Post, error) {
	return s.store.MixedFeed(ctx, s.feedWindow)
}
