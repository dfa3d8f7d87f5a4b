package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "aurora/backend/pkg/errors"
)

// bindError turns a gin binding failure into a validation error
func bindError(err error) error {
	return apperrors.NewValidation("body", err.Error())
}

func (s *Server) register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	user, err := s.deps.Accounts.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// login accepts the OAuth2 password form as well as JSON
func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `form:"username" json:"username" binding:"required"`
		Password string `form:"password" json:"password" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	token, err := s.deps.Accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (s *Server) updateProfileImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, apperrors.NewValidation("file", "is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.respondError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()

	res, err := s.deps.Accounts.UpdateProfileImage(c.Request.Context(), currentUser(c), fh.Header.Get("Content-Type"), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"profile_image": res.URL,
		"colors":        res.Colors,
	})
}
