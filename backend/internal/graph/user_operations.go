package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"aurora/backend/internal/constants"
	apperrors "aurora/backend/pkg/errors"
)

// ============================================================================
// User Operations
// ============================================================================

// registeredUser matches only formally registered users; chat placeholders are skipped
const registeredUser = "coalesce(u.placeholder, false) = false"

const userReturn = `
		RETURN u.username as username, u.reputation_score as reputation_score,
		       u.created_at as created_at, u.profile_image as profile_image,
		       u.profile_colors as profile_colors`

func userFromRecord(record *neo4j.Record) User {
	return User{
		Username:        getStringFromRecord(record, "username"),
		ReputationScore: getFloat64FromRecord(record, "reputation_score"),
		CreatedAt:       getTimeFromRecord(record, "created_at"),
		ProfileImage:    getOptionalStringFromRecord(record, "profile_image"),
		ProfileColors:   getStringSliceFromRecord(record, "profile_colors"),
	}
}

// CreateUser registers a user. A placeholder left behind by chat persistence is
// claimed; an existing registered user is a conflict and is left untouched.
func (r *Repository) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	// The SET before the check takes the node's write lock so two registrations of
	// the same name serialize on it.
	query := `
		MERGE (u:User {username: $username})
		SET u.last_register_attempt = datetime($now)
		WITH u, (u.password_hash IS NULL) as claimable
		FOREACH (ignored IN CASE WHEN claimable THEN [1] ELSE [] END |
			SET u.password_hash = $passwordHash,
			    u.reputation_score = $reputation,
			    u.created_at = datetime($now),
			    u.placeholder = false
		)
		WITH u, claimable
		RETURN claimable,
		       u.username as username, u.reputation_score as reputation_score,
		       u.created_at as created_at, u.profile_image as profile_image,
		       u.profile_colors as profile_colors
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"username":     nu.Username,
		"passwordHash": nu.PasswordHash,
		"reputation":   constants.DefaultReputationScore,
		"now":          formatTime(nu.CreatedAt),
	})
	if err != nil {
		return nil, apperrors.NewStore("create user", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, apperrors.NewStore("create user", err)
	}
	if !getBoolFromRecord(record, "claimable") {
		return nil, apperrors.NewConflict("user", nu.Username, "username already exists")
	}

	user := userFromRecord(record)
	r.logger.Info("User registered", zap.String("username", user.Username))
	return &user, nil
}

// GetCredentials returns the stored password hash for a registered user
func (r *Repository) GetCredentials(ctx context.Context, username string) (*Credentials, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (u:User {username: $username})
		WHERE ` + registeredUser + `
		RETURN u.username as username, u.password_hash as password_hash
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"username": username})
	if err != nil {
		return nil, apperrors.NewStore("get credentials", err)
	}

	if result.Next(ctx) {
		record := result.Record()
		return &Credentials{
			Username:     getStringFromRecord(record, "username"),
			PasswordHash: getStringFromRecord(record, "password_hash"),
		}, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("get credentials", err)
	}
	return nil, apperrors.NewNotFound("user", username)
}

// GetUser retrieves a registered user
func (r *Repository) GetUser(ctx context.Context, username string) (*User, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (u:User {username: $username})
		WHERE ` + registeredUser + userReturn

	result, err := session.Run(ctx, query, map[string]interface{}{"username": username})
	if err != nil {
		return nil, apperrors.NewStore("get user", err)
	}

	if result.Next(ctx) {
		user := userFromRecord(result.Record())
		return &user, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("get user", err)
	}
	return nil, apperrors.NewNotFound("user", username)
}

// UpdateProfileImage sets the profile picture reference and its palette
func (r *Repository) UpdateProfileImage(ctx context.Context, username, imageURL string, palette []string) (*User, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	// We use SET so it works even if the properties did not exist before
	query := `
		MATCH (u:User {username: $username})
		WHERE ` + registeredUser + `
		SET u.profile_image = $imageURL, u.profile_colors = $palette` + userReturn

	result, err := session.Run(ctx, query, map[string]interface{}{
		"username": username,
		"imageURL": imageURL,
		"palette":  palette,
	})
	if err != nil {
		return nil, apperrors.NewStore("update profile image", err)
	}

	if result.Next(ctx) {
		user := userFromRecord(result.Record())
		return &user, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("update profile image", err)
	}
	return nil, apperrors.NewNotFound("user", username)
}
