package constants

import "time"

// Engagement constants
const (
	// LikeDelta is added to a post's velocity score the first time a user likes it
	LikeDelta = 5.0
	// DislikeDelta is subtracted the first time a user dislikes a post
	DislikeDelta = 5.0
	// BaselineVelocityScore is the score every new post starts with
	BaselineVelocityScore = 100.0
)

// User constants
const (
	// DefaultReputationScore is assigned at registration
	DefaultReputationScore = 50.0
	UsernameMinLength      = 3
	UsernameMaxLength      = 50
	PasswordMinLength      = 6
)

// Content constants
const (
	// SubthreadListLimit caps the honeycomb listing for one realm
	SubthreadListLimit = 100
	// DefaultFeedWindow is the fixed explore window
	DefaultFeedWindow      = 20
	SubthreadNameMinLength = 3
	SubthreadNameMaxLength = 50
	CaptionMaxLength       = 100
)

// Media kinds
const (
	MediaImage   = "image"
	MediaVideo   = "video"
	MediaAudio   = "audio"
	MediaPDF     = "pdf"
	MediaUnknown = "unknown"
)

// Messaging constants
const (
	// DirectMessageMaxLength bounds REST direct messages
	DirectMessageMaxLength = 1000
	// ChatSubject is the NATS subject carrying cross-instance deliveries
	ChatSubject = "aurora.chat.deliveries"
)

// Fallback palette used when colour extraction fails
var DefaultPalette = [2]string{"#0ea5e9", "#8b5cf6"}

// ProfileImageTypes are the content types accepted for profile pictures
var ProfileImageTypes = []string{"image/jpeg", "image/png"}

// UploadURLTTL is the default presigned URL lifetime
const UploadURLTTL = 5 * time.Minute
