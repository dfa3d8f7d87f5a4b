package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "aurora/backend/pkg/errors"
)

// ============================================================================
// Realm and Subthread Operations
// ============================================================================

const realmReturn = `
		RETURN r.name as name, r.allowed_media as allowed_media, r.limit_count as limit_count,
		       r.max_video_duration as max_video_duration, r.max_audio_duration as max_audio_duration,
		       r.transcode_target as transcode_target, r.require_album_art as require_album_art`

func realmFromRecord(record *neo4j.Record) Realm {
	return Realm{
		Name:             getStringFromRecord(record, "name"),
		AllowedMedia:     getStringSliceFromRecord(record, "allowed_media"),
		LimitCount:       int(getInt64FromRecord(record, "limit_count")),
		MaxVideoDuration: getOptionalIntFromRecord(record, "max_video_duration"),
		MaxAudioDuration: getOptionalIntFromRecord(record, "max_audio_duration"),
		TranscodeTarget:  getOptionalStringFromRecord(record, "transcode_target"),
		RequireAlbumArt:  getBoolFromRecord(record, "require_album_art"),
	}
}

// SeedRealms upserts the realm catalog by name
func (r *Repository) SeedRealms(ctx context.Context, realms []Realm) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MERGE (r:Realm {name: $name})
		SET r.allowed_media = $allowedMedia,
		    r.limit_count = $limitCount,
		    r.max_video_duration = $maxVideo,
		    r.max_audio_duration = $maxAudio,
		    r.transcode_target = $transcode,
		    r.require_album_art = $albumArt
	`

	for _, realm := range realms {
		params := map[string]interface{}{
			"name":         realm.Name,
			"allowedMedia": realm.AllowedMedia,
			"limitCount":   realm.LimitCount,
			"maxVideo":     nil,
			"maxAudio":     nil,
			"transcode":    nil,
			"albumArt":     realm.RequireAlbumArt,
		}
		if realm.MaxVideoDuration != nil {
			params["maxVideo"] = *realm.MaxVideoDuration
		}
		if realm.MaxAudioDuration != nil {
			params["maxAudio"] = *realm.MaxAudioDuration
		}
		if realm.TranscodeTarget != nil {
			params["transcode"] = *realm.TranscodeTarget
		}
		result, err := session.Run(ctx, query, params)
		if err != nil {
			return apperrors.NewStore("seed realm "+realm.Name, err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return apperrors.NewStore("seed realm "+realm.Name, err)
		}
	}

	r.logger.Info("Realms seeded", zap.Int("count", len(realms)))
	return nil
}

// GetRealm retrieves a realm by name
func (r *Repository) GetRealm(ctx context.Context, name string) (*Realm, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `MATCH (r:Realm {name: $name})` + realmReturn

	result, err := session.Run(ctx, query, map[string]interface{}{"name": name})
	if err != nil {
		return nil, apperrors.NewStore("get realm", err)
	}
	if result.Next(ctx) {
		realm := realmFromRecord(result.Record())
		return &realm, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("get realm", err)
	}
	return nil, apperrors.NewNotFound("realm", name)
}

// ListRealms returns every realm ordered by name
func (r *Repository) ListRealms(ctx context.Context) ([]Realm, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `MATCH (r:Realm)` + realmReturn + ` ORDER BY name`

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, apperrors.NewStore("list realms", err)
	}

	var realms []Realm
	for result.Next(ctx) {
		realms = append(realms, realmFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("list realms", err)
	}
	return realms, nil
}

// CreateSubthread get-or-creates a subthread under realm and bumps its popularity.
// Names are global: a subthread already owned by a different realm is a conflict.
func (r *Repository) CreateSubthread(ctx context.Context, realmName, name string, now time.Time) (*Subthread, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	// Lock the subthread before reading its owner so racing realms serialise
	query := `
		MATCH (r:Realm {name: $realm})
		MERGE (s:Subthread {name: $name})
		ON CREATE SET s.popularity = 0, s.created_at = datetime($now)
		SET s._lock = true
		WITH r, s
		OPTIONAL MATCH (s)-[:BELONGS_TO]->(owner:Realm)
		WITH r, s, collect(owner) as owners
		WITH r, s, all(o IN owners WHERE o = r) as owned
		FOREACH (_ IN CASE WHEN owned THEN [1] ELSE [] END |
			SET s.popularity = coalesce(s.popularity, 0) + 1
			MERGE (r)-[:HAS_SUBTHREAD]->(s)
			MERGE (s)-[:BELONGS_TO]->(r)
		)
		REMOVE s._lock
		RETURN s.name as name, r.name as realm, s.popularity as popularity,
		       COUNT { (:Post)-[:BELONGS_TO]->(s) } as post_count,
		       s.created_at as created_at, owned
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"realm": realmName,
		"name":  name,
		"now":   formatTime(now),
	})
	if err != nil {
		return nil, apperrors.NewStore("create subthread", err)
	}

	if result.Next(ctx) {
		record := result.Record()
		if !getBoolFromRecord(record, "owned") {
			return nil, apperrors.NewConflict("subthread", name, "owned by another realm")
		}
		return &Subthread{
			Name:       getStringFromRecord(record, "name"),
			Realm:      getStringFromRecord(record, "realm"),
			Popularity: getInt64FromRecord(record, "popularity"),
			PostCount:  getInt64FromRecord(record, "post_count"),
			CreatedAt:  getTimeFromRecord(record, "created_at"),
		}, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("create subthread", err)
	}

	// No row: the realm is missing
	return nil, apperrors.NewNotFound("realm", realmName)
}

// ListSubthreads returns up to limit subthreads of a realm, most popular first
func (r *Repository) ListSubthreads(ctx context.Context, realmName string, limit int) ([]Subthread, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (r:Realm {name: $realm})-[:HAS_SUBTHREAD]->(s:Subthread)
		RETURN s.name as name, r.name as realm, s.popularity as popularity,
		       COUNT { (:Post)-[:BELONGS_TO]->(s) } as post_count, s.created_at as created_at
		ORDER BY popularity DESC, name ASC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"realm": realmName, "limit": limit})
	if err != nil {
		return nil, apperrors.NewStore("list subthreads", err)
	}

	subthreads := make([]Subthread, 0)
	for result.Next(ctx) {
		record := result.Record()
		subthreads = append(subthreads, Subthread{
			Name:       getStringFromRecord(record, "name"),
			Realm:      getStringFromRecord(record, "realm"),
			Popularity: getInt64FromRecord(record, "popularity"),
			PostCount:  getInt64FromRecord(record, "post_count"),
			CreatedAt:  getTimeFromRecord(record, "created_at"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("list subthreads", err)
	}
	return subthreads, nil
}

// GetSubthreadRealm resolves the realm owning a subthread
func (r *Repository) GetSubthreadRealm(ctx context.Context, subthread string) (*Realm, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `MATCH (:Subthread {name: $name})-[:BELONGS_TO]->(r:Realm)` + realmReturn + ` LIMIT 1`

	result, err := session.Run(ctx, query, map[string]interface{}{"name": subthread})
	if err != nil {
		return nil, apperrors.NewStore("get subthread realm", err)
	}
	if result.Next(ctx) {
		realm := realmFromRecord(result.Record())
		return &realm, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("get subthread realm", err)
	}
	return nil, apperrors.NewNotFound("subthread", subthread)
}
