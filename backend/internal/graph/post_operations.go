package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "aurora/backend/pkg/errors"
)

// ============================================================================
// Post Operations
// ============================================================================

const postReturn = `
		p.id as id, p.title as title, p.url as url, p.type as type,
		p.thumbnail_url as thumbnail_url, p.colors as colors, p.timeline as timeline,
		p.velocity_score as velocity_score, p.created_at as created_at`

func postFromRecord(record *neo4j.Record) Post {
	return Post{
		ID:            getStringFromRecord(record, "id"),
		Title:         getStringFromRecord(record, "title"),
		MediaURL:      getStringFromRecord(record, "url"),
		MediaKind:     getStringFromRecord(record, "type"),
		ThumbnailURL:  getOptionalStringFromRecord(record, "thumbnail_url"),
		Colors:        getStringSliceFromRecord(record, "colors"),
		Timeline:      decodeTimeline(getStringFromRecord(record, "timeline")),
		VelocityScore: getFloat64FromRecord(record, "velocity_score"),
		CreatedAt:     getTimeFromRecord(record, "created_at"),
	}
}

// CreatePost writes the post and its POSTED_BY, BELONGS_TO and IN_REALM edges in one
// statement. The media kind is re-checked against the owning realm inside the write.
func (r *Repository) CreatePost(ctx context.Context, np NewPost) (*PostSummary, error) {
	timeline, err := encodeTimeline(np.Timeline)
	if err != nil {
		return nil, apperrors.NewValidation("timeline", err.Error())
	}

	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (s:Subthread {name: $subthread})-[:BELONGS_TO]->(r:Realm)
		MATCH (u:User {username: $author})
		WHERE coalesce(u.placeholder, false) = false AND $kind IN r.allowed_media
		CREATE (p:Post {
			id: $id,
			title: $title,
			url: $url,
			type: $kind,
			velocity_score: $score,
			created_at: datetime($now)
		})
		SET p.thumbnail_url = $thumbnail, p.colors = $colors, p.timeline = $timeline
		CREATE (p)-[:POSTED_BY]->(u)
		CREATE (p)-[:BELONGS_TO]->(s)
		CREATE (p)-[:IN_REALM]->(r)
		RETURN ` + postReturn + `, u.username as author, s.name as subthread, r.name as realm
	`

	params := map[string]interface{}{
		"id":        np.ID,
		"subthread": np.Subthread,
		"author":    np.Author,
		"title":     np.Title,
		"url":       np.MediaURL,
		"kind":      np.MediaKind,
		"score":     np.VelocityScore,
		"now":       formatTime(np.CreatedAt),
		"thumbnail": nil,
		"colors":    nil,
		"timeline":  nil,
	}
	if np.ThumbnailURL != nil {
		params["thumbnail"] = *np.ThumbnailURL
	}
	if len(np.Colors) > 0 {
		params["colors"] = np.Colors
	}
	if timeline != "" {
		params["timeline"] = timeline
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, apperrors.NewStore("create post", err)
	}

	if result.Next(ctx) {
		summary := postSummaryFromRecord(result.Record())
		r.logger.Info("Post created",
			zap.String("post_id", summary.ID),
			zap.String("subthread", summary.Subthread),
			zap.String("realm", summary.Realm))
		return &summary, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("create post", err)
	}

	// Nothing was written; work out which precondition failed
	realm, err := r.GetSubthreadRealm(ctx, np.Subthread)
	if err != nil {
		return nil, err
	}
	if !realm.Allows(np.MediaKind) {
		return nil, apperrors.NewValidation("media_kind", np.MediaKind+" is not allowed in "+realm.Name)
	}
	return nil, apperrors.NewNotFound("user", np.Author)
}

func postSummaryFromRecord(record *neo4j.Record) PostSummary {
	return PostSummary{
		Post:      postFromRecord(record),
		Author:    getStringFromRecord(record, "author"),
		Subthread: getStringFromRecord(record, "subthread"),
		Realm:     getStringFromRecord(record, "realm"),
	}
}

// CountPostsByAuthorInRealm counts an author's posts in a realm created at or after since
func (r *Repository) CountPostsByAuthorInRealm(ctx context.Context, author, realm string, since time.Time) (int, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (p:Post)-[:POSTED_BY]->(:User {username: $author})
		MATCH (p)-[:IN_REALM]->(:Realm {name: $realm})
		WHERE p.created_at >= datetime($since)
		RETURN count(p) as total
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"author": author,
		"realm":  realm,
		"since":  formatTime(since),
	})
	if err != nil {
		return 0, apperrors.NewStore("count posts", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, apperrors.NewStore("count posts", err)
	}
	return int(getInt64FromRecord(record, "total")), nil
}

// GetPost retrieves a post by id
func (r *Repository) GetPost(ctx context.Context, id string) (*Post, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `MATCH (p:Post {id: $id}) RETURN ` + postReturn

	result, err := session.Run(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return nil, apperrors.NewStore("get post", err)
	}
	if result.Next(ctx) {
		post := postFromRecord(result.Record())
		return &post, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("get post", err)
	}
	return nil, apperrors.NewNotFound("post", id)
}

// ExploreFeed returns the newest posts joined with author, subthread and realm
func (r *Repository) ExploreFeed(ctx context.Context, limit int) ([]PostSummary, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (p:Post)-[:POSTED_BY]->(u:User)
		MATCH (p)-[:BELONGS_TO]->(s:Subthread)
		MATCH (p)-[:IN_REALM]->(r:Realm)
		RETURN ` + postReturn + `, u.username as author, s.name as subthread, r.name as realm
		ORDER BY created_at DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, apperrors.NewStore("explore feed", err)
	}

	feed := make([]PostSummary, 0)
	for result.Next(ctx) {
		feed = append(feed, postSummaryFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("explore feed", err)
	}
	return feed, nil
}

// MixedFeed returns the newest posts without joins or weighting
func (r *Repository) MixedFeed(ctx context.Context, limit int) ([]Post, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (p:Post)
		RETURN ` + postReturn + `
		ORDER BY created_at DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, apperrors.NewStore("mixed feed", err)
	}

	posts := make([]Post, 0)
	for result.Next(ctx) {
		posts = append(posts, postFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("mixed feed", err)
	}
	return posts, nil
}
