package content

import (
	"strings"

	"github.com/samber/lo"

	"aurora/backend/internal/constants"
)

var knownKinds = []string{constants.MediaImage, constants.MediaVideo, constants.MediaAudio, constants.MediaPDF}

func isKnownKind(kind string) bool {
	return lo.Contains(knownKinds, kind)
}

// DetectMediaKind maps a MIME type to a media kind. Bare kinds pass through, and
// anything unrecognised is "unknown", which no realm allows.
func DetectMediaKind(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if isKnownKind(mt) {
		return mt
	}

	switch {
	case mt == "application/pdf":
		return constants.MediaPDF
	case strings.HasPrefix(mt, "image/"):
		return constants.MediaImage
	case strings.HasPrefix(mt, "video/"):
		return constants.MediaVideo
	case strings.HasPrefix(mt, "audio/"):
		return constants.MediaAudio
	}
	return constants.MediaUnknown
}
