package graph

import (
	"context"
	"time"
)

// Store is the full graph store surface. The Neo4j Repository and the in-memory
// store both implement it; services depend on the narrower slices they need.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Close(ctx context.Context) error

	SeedRealms(ctx context.Context, realms []Realm) error
	GetRealm(ctx context.Context, name string) (*Realm, error)
	ListRealms(ctx context.Context) ([]Realm, error)
	CreateSubthread(ctx context.Context, realm, name string, now time.Time) (*Subthread, error)
	ListSubthreads(ctx context.Context, realm string, limit int) ([]Subthread, error)
	GetSubthreadRealm(ctx context.Context, subthread string) (*Realm, error)

	CreateUser(ctx context.Context, nu NewUser) (*User, error)
	GetCredentials(ctx context.Context, username string) (*Credentials, error)
	GetUser(ctx context.Context, username string) (*User, error)
	UpdateProfileImage(ctx context.Context, username, imageURL string, palette []string) (*User, error)

	CreatePost(ctx context.Context, np NewPost) (*PostSummary, error)
	CountPostsByAuthorInRealm(ctx context.Context, author, realm string, since time.Time) (int, error)
	GetPost(ctx context.Context, id string) (*Post, error)
	ExploreFeed(ctx context.Context, limit int) ([]PostSummary, error)
	MixedFeed(ctx context.Context, limit int) ([]Post, error)

	ApplyReaction(ctx context.Context, username, postID string, kind InteractionKind, delta float64, now time.Time) (*ScoreChange, error)
	RecordView(ctx context.Context, username, postID string, durationSeconds int, now time.Time) (*ViewRecord, error)

	Follow(ctx context.Context, follower, followee string, now time.Time) (*FollowEdge, error)
	CountFollowers(ctx context.Context, username string) (int, error)
	CountFollowing(ctx context.Context, username string) (int, error)
	IsFollowing(ctx context.Context, follower, followee string) (bool, error)

	SaveChatMessage(ctx context.Context, msg Message) error
	SaveDirectMessage(ctx context.Context, msg Message) (*Message, error)
	History(ctx context.Context, user1, user2 string) ([]HistoryEntry, error)
}

var _ Store = (*Repository)(nil)
