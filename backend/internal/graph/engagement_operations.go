package graph

import (
	"context"
	"fmt"
	"time"

	apperrors "aurora/backend/pkg/errors"
)

// ============================================================================
// Engagement Operations
// ============================================================================

// ApplyReaction get-or-creates a LIKED or DISLIKED edge and applies delta to the
// post's velocity score only when the edge is new. Touching the post first takes
// its write lock, so concurrent reactions on one post serialize and the MERGE
// sees the winner's edge.
func (r *Repository) ApplyReaction(ctx context.Context, username, postID string, kind InteractionKind, delta float64, now time.Time) (*ScoreChange, error) {
	var relType string
	switch kind {
	case InteractionLike:
		relType = "LIKED"
	case InteractionDislike:
		relType = "DISLIKED"
	default:
		return nil, apperrors.NewValidation("type", fmt.Sprintf("%q is not a reaction", kind))
	}

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (u:User {username: $username})
		WHERE coalesce(u.placeholder, false) = false
		MATCH (p:Post {id: $postID})
		SET p.last_engaged_at = datetime($now)
		MERGE (u)-[e:%s]->(p)
		ON CREATE SET e.timestamp = datetime($now), e.fresh = true,
		              p.velocity_score = coalesce(p.velocity_score, 0.0) + $delta
		WITH p, e, coalesce(e.fresh, false) as created
		REMOVE e.fresh
		RETURN p.id as id, p.velocity_score as score, created
	`, relType)

	result, err := session.Run(ctx, query, map[string]interface{}{
		"username": username,
		"postID":   postID,
		"delta":    delta,
		"now":      formatTime(now),
	})
	if err != nil {
		return nil, apperrors.NewStore("record "+string(kind), err)
	}

	if result.Next(ctx) {
		record := result.Record()
		return &ScoreChange{
			PostID:  getStringFromRecord(record, "id"),
			Score:   getFloat64FromRecord(record, "score"),
			Created: getBoolFromRecord(record, "created"),
		}, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("record "+string(kind), err)
	}
	return nil, r.missingEngagementTarget(ctx, username, postID)
}

// RecordView always creates a new VIEWED edge carrying the watch duration
func (r *Repository) RecordView(ctx context.Context, username, postID string, durationSeconds int, now time.Time) (*ViewRecord, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (u:User {username: $username})
		WHERE coalesce(u.placeholder, false) = false
		MATCH (p:Post {id: $postID})
		CREATE (u)-[v:VIEWED {duration_seconds: $duration, timestamp: datetime($now)}]->(p)
		RETURN p.id as id, v.duration_seconds as duration, v.timestamp as at
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"username": username,
		"postID":   postID,
		"duration": durationSeconds,
		"now":      formatTime(now),
	})
	if err != nil {
		return nil, apperrors.NewStore("record view", err)
	}

	if result.Next(ctx) {
		record := result.Record()
		return &ViewRecord{
			PostID:          getStringFromRecord(record, "id"),
			DurationSeconds: int(getInt64FromRecord(record, "duration")),
			At:              getTimeFromRecord(record, "at"),
		}, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("record view", err)
	}
	return nil, r.missingEngagementTarget(ctx, username, postID)
}

// missingEngagementTarget names whichever of user or post is absent
func (r *Repository) missingEngagementTarget(ctx context.Context, username, postID string) error {
	if _, err := r.GetUser(ctx, username); err != nil {
		return err
	}
	if _, err := r.GetPost(ctx, postID); err != nil {
		return err
	}
	return apperrors.NewStore("record interaction", fmt.Errorf("no row returned for %s on %s", username, postID))
}
