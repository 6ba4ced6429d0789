package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"communityeats/internal/infra/config"
	"communityeats/internal/infra/obs"
)

type Handlers struct {
	Listing        ListingHTTP
	Conversation   ConversationHTTP
	Admin          AdminHTTP
	Image          ImageHTTP
	Feed           *FeedHandler
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	if h.Listing != nil {
		router.GET("/l/:id", h.Listing.ShortLink)
	}

	api := router.Group("/api/v1")
	if h.Feed != nil {
		api.GET("/ws/conversations/:id", h.Feed.Subscribe)
	}
	if h.Listing != nil {
		api.GET("/listings", h.Listing.List)
		api.POST("/listings", h.Listing.Create)
		api.GET("/listings/:id", h.Listing.Get)
		api.PATCH("/listings/:id", h.Listing.Update)
		api.DELETE("/listings/:id", h.Listing.Delete)
		api.POST("/listings/:id/status", h.Listing.SetStatus)
		api.POST("/listings/:id/interest", h.Listing.RegisterInterest)
		api.DELETE("/listings/:id/interest", h.Listing.WithdrawInterest)
	}
	if h.Conversation != nil {
		api.POST("/conversations", h.Conversation.Ensure)
		api.GET("/conversations", h.Conversation.ListMine)
		api.GET("/conversations/:id/messages", h.Conversation.ListMessages)
		api.POST("/conversations/:id/messages", h.Conversation.SendMessage)
	}
	if h.Image != nil {
		api.POST("/images/upload-url", h.Image.UploadURL)
		api.GET("/images/download-url", h.Image.DownloadURL)
	}
	if h.Admin != nil {
		adminGroup := api.Group("/admin")
		adminGroup.GET("/verify", h.Admin.Verify)
		adminGroup.GET("/listings", h.Admin.ListListings)
		adminGroup.POST("/listings/update", h.Admin.SetListingStatus)
		adminGroup.DELETE("/listings/:id", h.Admin.DeleteListing)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
