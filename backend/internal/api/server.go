package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aurora/backend/internal/account"
	"aurora/backend/internal/chat"
	"aurora/backend/internal/content"
	"aurora/backend/internal/engagement"
	"aurora/backend/internal/metrics"
	"aurora/backend/internal/social"
	"aurora/backend/internal/storage"
	"aurora/backend/pkg/logger"
)

// TokenVerifier resolves a bearer token to its username
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// Options carries the HTTP-level settings
type Options struct {
	CORSOrigin string
	UploadsDir string
	Production bool
	Chat       chat.ClientOptions
}

// Deps are the services the handlers call. Signer and Metrics may be nil.
type Deps struct {
	Accounts   *account.Service
	Content    *content.Service
	Engagement *engagement.Service
	Social     *social.Service
	Hub        *chat.Hub
	Tokens     TokenVerifier
	Signer     *storage.Signer
	Metrics    *metrics.Collector
}

// Server holds the handlers and their dependencies
type Server struct {
	deps     Deps
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewRouter wires every route onto a fresh gin engine
func NewRouter(deps Deps, opts Options) *gin.Engine {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: logger.Named("api"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	router := gin.New()
	router.Use(requestLogger(s.logger))
	router.Use(gin.Recovery())
	router.Use(cors(opts.CORSOrigin))
	if deps.Metrics != nil {
		router.Use(instrument(deps.Metrics))
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.UploadsDir != "" {
		router.Static("/uploads", opts.UploadsDir)
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/register", s.register)
		v1.POST("/login", s.login)
		v1.GET("/realms", s.listRealms)
		v1.GET("/feed/mix", s.mixedFeed)
		v1.POST("/topic/create", s.createTopic)
		v1.GET("/profile/:username", s.optionalAuth(), s.profile)

		authed := v1.Group("", s.requireAuth())
		authed.PUT("/profile/image", s.updateProfileImage)
		authed.POST("/user/:username/follow", s.follow)
		authed.POST("/engage", s.engage)
		authed.POST("/dm/send", s.sendDirect)
	}

	api := router.Group("/api")
	{
		api.POST("/upload/sign", s.signUpload)
		api.POST("/posts", s.requireAuth(), s.createPost)
		api.GET("/subthreads/:realm", s.listSubthreads)
		api.GET("/feed/explore", s.exploreFeed)
		api.GET("/chat/history/:user1/:user2", s.chatHistory)
	}

	router.GET("/ws/:identity", s.serveWebsocket)

	return router
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || !s.opts.Production {
		return true
	}
	return origin == s.opts.CORSOrigin
}
