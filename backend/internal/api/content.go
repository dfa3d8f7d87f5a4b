package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aurora/backend/internal/content"
	"aurora/backend/internal/engagement"
	"aurora/backend/internal/graph"
)

func (s *Server) listRealms(c *gin.Context) {
	realms, err := s.deps.Content.ListRealms(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, realms)
}

func (s *Server) createTopic(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		ParentRealm string `json:"parent_realm" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	sub, err := s.deps.Content.CreateSubthread(c.Request.Context(), req.ParentRealm, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) listSubthreads(c *gin.Context) {
	subs, err := s.deps.Content.ListSubthreads(c.Request.Context(), c.Param("realm"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

type createPostRequest struct {
	Realm        string               `json:"realm" binding:"required"`
	Subthread    string               `json:"subthread" binding:"required"`
	Caption      string               `json:"caption"`
	MediaURL     string               `json:"media_url" binding:"required"`
	MediaType    string               `json:"media_type" binding:"required"`
	ThumbnailURL *string              `json:"thumbnail_url"`
	Colors       []string             `json:"colors"`
	Timeline     []graph.ColorSegment `json:"timeline"`
}

func (s *Server) createPost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	post, err := s.deps.Content.Publish(c.Request.Context(), content.PublishInput{
		Realm: req.Realm,
		PostInput: content.PostInput{
			Author:       currentUser(c),
			Subthread:    req.Subthread,
			Title:        req.Caption,
			MediaURL:     req.MediaURL,
			MediaType:    req.MediaType,
			ThumbnailURL: req.ThumbnailURL,
			Colors:       req.Colors,
			Timeline:     req.Timeline,
		},
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.PostsCreated.Inc()
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "id": post.ID, "post": post})
}

func (s *Server) signUpload(c *gin.Context) {
	if s.deps.Signer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upload signing is not configured"})
		return
	}
	var req struct {
		Filename string `json:"filename" binding:"required"`
		FileType string `json:"file_type" binding:"required"`
		Realm    string `json:"realm" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	up, err := s.deps.Signer.Sign(c.Request.Context(), req.Filename, req.FileType, req.Realm)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, up)
}

func (s *Server) exploreFeed(c *gin.Context) {
	posts, err := s.deps.Engagement.ExploreFeed(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (s *Server) mixedFeed(c *gin.Context) {
	posts, err := s.deps.Engagement.MixedFeed(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (s *Server) engage(c *gin.Context) {
	var req struct {
		PostID          string `json:"post_id" binding:"required"`
		InteractionType string `json:"interaction_type" binding:"required"`
		DurationSeconds int    `json:"duration_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	kind, err := engagement.ParseKind(req.InteractionType)
	if err != nil {
		s.respondError(c, err)
		return
	}
	res, err := s.deps.Engagement.RecordInteraction(c.Request.Context(), currentUser(c), req.PostID, kind, req.DurationSeconds)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
