package content

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"aurora/backend/internal/constants"
	"aurora/backend/internal/graph"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

// BuiltinRealms is the seed catalog used when no catalog file is configured
func BuiltinRealms() []graph.Realm {
	return []graph.Realm{
		{Name: "Art", AllowedMedia: []string{constants.MediaImage}, LimitCount: 10},
		{Name: "Tech", AllowedMedia: []string{constants.MediaVideo, constants.MediaImage}, LimitCount: 10, MaxVideoDuration: intPtr(600)},
		{Name: "Science", AllowedMedia: []string{constants.MediaPDF, constants.MediaImage}, LimitCount: 5},
		{Name: "Literature", AllowedMedia: []string{constants.MediaPDF, constants.MediaImage}, LimitCount: 5},
		{Name: "Photography", AllowedMedia: []string{constants.MediaImage}, LimitCount: 10},
		{Name: "Cinematography", AllowedMedia: []string{constants.MediaVideo}, LimitCount: 3, MaxVideoDuration: intPtr(180), TranscodeTarget: strPtr("4k")},
		{Name: "Music", AllowedMedia: []string{constants.MediaAudio}, LimitCount: 5, MaxAudioDuration: intPtr(300), RequireAlbumArt: true},
		{Name: "Sports", AllowedMedia: []string{constants.MediaVideo, constants.MediaImage}, LimitCount: 5, MaxVideoDuration: intPtr(60)},
	}
}

type catalogFile struct {
	Realms []graph.Realm `yaml:"realms"`
}

// LoadCatalog reads a YAML realm catalog. An empty path yields the built-in catalog.
func LoadCatalog(path string) ([]graph.Realm, error) {
	if path == "" {
		return BuiltinRealms(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read realm catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and checks a YAML realm catalog
func ParseCatalog(data []byte) ([]graph.Realm, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse realm catalog: %w", err)
	}
	if len(file.Realms) == 0 {
		return nil, fmt.Errorf("realm catalog is empty")
	}

	seen := make(map[string]bool, len(file.Realms))
	for _, realm := range file.Realms {
		if realm.Name == "" {
			return nil, fmt.Errorf("realm catalog entry without a name")
		}
		if seen[realm.Name] {
			return nil, fmt.Errorf("realm %q declared twice", realm.Name)
		}
		seen[realm.Name] = true
		for _, kind := range realm.AllowedMedia {
			if !isKnownKind(kind) {
				return nil, fmt.Errorf("realm %q allows unknown media kind %q", realm.Name, kind)
			}
		}
	}
	return file.Realms, nil
}
