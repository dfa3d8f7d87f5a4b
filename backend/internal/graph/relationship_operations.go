package graph

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "aurora/backend/pkg/errors"
)

// ============================================================================
// Follow Operations
// ============================================================================

// Follow get-or-creates follower-[:FOLLOWS]->followee. The first timestamp is kept
// on repeat calls. Self-follows are rejected before touching the store.
func (r *Repository) Follow(ctx context.Context, follower, followee string, now time.Time) (*FollowEdge, error) {
	if follower == followee {
		return nil, apperrors.NewValidation("username", "cannot follow yourself")
	}

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (a:User {username: $follower})
		WHERE coalesce(a.placeholder, false) = false
		MATCH (b:User {username: $followee})
		WHERE coalesce(b.placeholder, false) = false
		SET b.last_followed_at = datetime($now)
		MERGE (a)-[f:FOLLOWS]->(b)
		ON CREATE SET f.since = datetime($now), f.fresh = true
		WITH a, b, f, coalesce(f.fresh, false) as created
		REMOVE f.fresh
		RETURN a.username as follower, b.username as followee, f.since as since, created
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"follower": follower,
		"followee": followee,
		"now":      formatTime(now),
	})
	if err != nil {
		return nil, apperrors.NewStore("follow", err)
	}

	if result.Next(ctx) {
		record := result.Record()
		edge := &FollowEdge{
			Follower: getStringFromRecord(record, "follower"),
			Followee: getStringFromRecord(record, "followee"),
			Since:    getTimeFromRecord(record, "since"),
			Created:  getBoolFromRecord(record, "created"),
		}
		if edge.Created {
			r.logger.Debug("Follow created", zap.String("follower", follower), zap.String("followee", followee))
		}
		return edge, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("follow", err)
	}

	if _, err := r.GetUser(ctx, followee); err != nil {
		return nil, err
	}
	return nil, apperrors.NewNotFound("user", follower)
}

// CountFollowers counts incoming FOLLOWS edges
func (r *Repository) CountFollowers(ctx context.Context, username string) (int, error) {
	return r.countFollows(ctx, username, `MATCH (:User)-[f:FOLLOWS]->(:User {username: $username}) RETURN count(f) as total`)
}

// CountFollowing counts outgoing FOLLOWS edges
func (r *Repository) CountFollowing(ctx context.Context, username string) (int, error) {
	return r.countFollows(ctx, username, `MATCH (:User {username: $username})-[f:FOLLOWS]->(:User) RETURN count(f) as total`)
}

func (r *Repository) countFollows(ctx context.Context, username, query string) (int, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, map[string]interface{}{"username": username})
	if err != nil {
		return 0, apperrors.NewStore("count follows", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, apperrors.NewStore("count follows", err)
	}
	return int(getInt64FromRecord(record, "total")), nil
}

// IsFollowing reports whether follower has a FOLLOWS edge to followee
func (r *Repository) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		OPTIONAL MATCH (:User {username: $follower})-[f:FOLLOWS]->(:User {username: $followee})
		RETURN count(f) > 0 as following
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"follower": follower, "followee": followee})
	if err != nil {
		return false, apperrors.NewStore("is following", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return false, apperrors.NewStore("is following", err)
	}
	return getBoolFromRecord(record, "following"), nil
}
