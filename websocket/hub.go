package websocket

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pairchat/presence"
	"pairchat/utils"
)

// SeenMarker applies a markSeen action.
type SeenMarker interface {
	MarkSeen(ctx context.Context, viewerID, peerID string) (int64, error)
}

// Hub upgrades authenticated requests and installs each socket in the
// presence registry.
type Hub struct {
	Registry *presence.Registry
	Tokens   *utils.TokenIssuer
	Seen     SeenMarker
	Log      zerolog.Logger

	// AllowedOrigins lists accepted Origin headers; empty or "*" accepts all.
	AllowedOrigins []string
	// ActionRate and ActionBurst bound inbound actions per connection.
	ActionRate  rate.Limit
	ActionBurst int

	upgrader websocket.Upgrader
}

func NewHub(registry *presence.Registry, tokens *utils.TokenIssuer, seen SeenMarker, log zerolog.Logger) *Hub {
	h := &Hub{
		Registry:    registry,
		Tokens:      tokens,
		Seen:        seen,
		Log:         log,
		ActionRate:  10,
		ActionBurst: 20,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.AllowedOrigins) == 0 || slices.Contains(h.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(h.AllowedOrigins, origin)
}

func tokenFrom(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	if cookie, err := c.Cookie("jwt"); err == nil {
		return cookie
	}
	return ""
}

func (h *Hub) HandleWebSocket(c *gin.Context) {
	token := tokenFrom(c)
	if token == "" {
		utils.Unauthorized(c, "missing token")
		return
	}
	claims, err := h.Tokens.Parse(token)
	if err != nil {
		utils.Unauthorized(c, "invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := utils.GenerateUUID()
	client := &Client{
		id:      id,
		userID:  claims.UserID,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		hub:     h,
		limiter: rate.NewLimiter(h.ActionRate, h.ActionBurst),
		log:     h.Log.With().Str("user_id", claims.UserID).Str("conn_id", id).Logger(),
	}

	// The socket outlives the upgrade request.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	h.Registry.Connect(ctx, claims.UserID, client)

	go client.WritePump()
	go func() {
		defer cancel()
		client.ReadPump(ctx)
	}()
}
