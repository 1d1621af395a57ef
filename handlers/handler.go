package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pairchat/middleware"
	"pairchat/models"
	"pairchat/presence"
	"pairchat/service"
	"pairchat/utils"
)

// Handler serves the REST API over the domain services.
type Handler struct {
	Accounts *service.Accounts
	Ledger   *service.FriendshipLedger
	Delivery *service.DeliveryCoordinator
	Unread   *service.UnreadAggregator
	Registry *presence.Registry
	Tokens   *utils.TokenIssuer

	SecureCookies bool
}

type RouterOptions struct {
	Log            zerolog.Logger
	AllowedOrigins []string
	Limiter        middleware.RateLimiter
	// WebSocket handles GET /ws when set.
	WebSocket gin.HandlerFunc
	// Files handles GET /files/:filename when set.
	Files gin.HandlerFunc
}

func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(opts.Log))
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	if opts.Files != nil {
		r.GET("/files/:filename", opts.Files)
	}
	if opts.WebSocket != nil {
		r.GET("/ws", opts.WebSocket)
	}

	api := r.Group("/api")

	// Anonymous routes are limited per client IP, protected ones per user.
	auth := api.Group("/auth")
	if opts.Limiter != nil {
		auth.Use(middleware.RateLimit(opts.Limiter))
	}
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(h.Tokens))
	if opts.Limiter != nil {
		protected.Use(middleware.RateLimit(opts.Limiter))
	}
	{
		protected.GET("/auth/check", h.CheckAuth)
		protected.PUT("/auth/update-profile", h.UpdateProfile)
		protected.PUT("/auth/change-password", h.ChangePassword)

		protected.GET("/messages/users", h.GetSidebar)
		protected.GET("/messages/unread", h.GetUnreadCounts)
		protected.GET("/messages/:id", h.GetMessages)
		protected.POST("/messages/send/:id", h.SendMessage)
		protected.POST("/messages/seen/:id", h.MarkSeen)

		protected.GET("/friends/search", h.SearchUsers)
		protected.GET("/friends/requests", h.GetFriendRequests)
		protected.GET("/friends/list", h.GetFriends)
		protected.POST("/friends/request", h.SendFriendRequest)
		protected.PUT("/friends/accept/:friendshipId", h.AcceptFriendRequest)
		protected.PUT("/friends/reject/:friendshipId", h.RejectFriendRequest)
		protected.DELETE("/friends/remove/:friendId", h.RemoveFriend)

		protected.GET("/users/online", h.GetOnlineUsers)
	}

	return r
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(field, value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if strings.HasPrefix(value, "data:") {
		i := strings.Index(value, ",")
		if i < 0 || !strings.HasSuffix(value[:i], ";base64") {
			return nil, models.NewValidationError(map[string]string{field: "must be a base64 data URL"})
		}
		value = value[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, models.NewValidationError(map[string]string{field: "must be base64 encoded"})
	}
	return data, nil
}
