package graph

import (
	"time"

	"github.com/samber/lo"
)

// ============================================================================
// Graph Types
// ============================================================================

// User is a registered identity. Optional properties are nil when unset.
type User struct {
	Username        string    `json:"username"`
	ReputationScore float64   `json:"reputation_score"`
	CreatedAt       time.Time `json:"created_at"`
	ProfileImage    *string   `json:"profile_image,omitempty"`
	ProfileColors   []string  `json:"profile_colors,omitempty"`
}

// NewUser carries what registration writes
type NewUser struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Credentials is the stored login material for one user
type Credentials struct {
	Username     string
	PasswordHash string
}

// Realm is a top-level category with a fixed media whitelist
type Realm struct {
	Name             string   `json:"name" yaml:"name"`
	AllowedMedia     []string `json:"allowed_media" yaml:"allowed_media"`
	LimitCount       int      `json:"limit_count" yaml:"limit_count"`
	MaxVideoDuration *int     `json:"max_video_duration,omitempty" yaml:"max_video_duration,omitempty"`
	MaxAudioDuration *int     `json:"max_audio_duration,omitempty" yaml:"max_audio_duration,omitempty"`
	TranscodeTarget  *string  `json:"transcode_target,omitempty" yaml:"transcode_target,omitempty"`
	RequireAlbumArt  bool     `json:"require_album_art,omitempty" yaml:"require_album_art,omitempty"`
}

// Allows reports whether kind is in the realm's whitelist
func (r Realm) Allows(kind string) bool {
	return lo.Contains(r.AllowedMedia, kind)
}

// Subthread is a named topic owned by exactly one realm
type Subthread struct {
	Name       string    `json:"name"`
	Realm      string    `json:"parent_realm"`
	Popularity int64     `json:"popularity"`
	PostCount  int64     `json:"post_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ColorSegment is one entry of a video's colour timeline
type ColorSegment struct {
	Offset int      `json:"offset" validate:"gte=0"`
	Top    []string `json:"top" validate:"required,min=1,dive,hexcolor"`
	Bottom []string `json:"bottom" validate:"required,min=1,dive,hexcolor"`
}

// NewPost carries everything written in the single post-creation statement
type NewPost struct {
	ID            string
	Author        string
	Subthread     string
	Title         string
	MediaURL      string
	MediaKind     string
	ThumbnailURL  *string
	Colors        []string
	Timeline      []ColorSegment
	VelocityScore float64
	CreatedAt     time.Time
}

// Post is a stored post without its joins
type Post struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	MediaURL      string         `json:"url"`
	MediaKind     string         `json:"type"`
	ThumbnailURL  *string        `json:"thumbnail_url,omitempty"`
	Colors        []string       `json:"colors,omitempty"`
	Timeline      []ColorSegment `json:"timeline,omitempty"`
	VelocityScore float64        `json:"velocity_score"`
	CreatedAt     time.Time      `json:"created_at"`
}

// PostSummary is a post joined with its author, subthread and realm
type PostSummary struct {
	Post
	Author    string `json:"author"`
	Subthread string `json:"subthread"`
	Realm     string `json:"realm"`
}

// InteractionKind enumerates engagement events
type InteractionKind string

const (
	InteractionLike    InteractionKind = "like"
	InteractionDislike InteractionKind = "dislike"
	InteractionView    InteractionKind = "view"
)

// ScoreChange is the outcome of a like or dislike get-or-create
type ScoreChange struct {
	PostID  string
	Score   float64
	Created bool
}

// ViewRecord is one VIEWED edge
type ViewRecord struct {
	PostID          string
	DurationSeconds int
	At              time.Time
}

// FollowEdge is the FOLLOWS relationship as stored
type FollowEdge struct {
	Follower string
	Followee string
	Since    time.Time
	Created  bool
}

// Message is an opaque direct message. Content is never interpreted.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"sender"`
	To        string    `json:"recipient"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryEntry is one message of a two-party conversation, tagged with its sender
type HistoryEntry struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
