package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pairchat/config"
	"pairchat/database"
	"pairchat/handlers"
	"pairchat/logger"
	"pairchat/middleware"
	"pairchat/presence"
	"pairchat/service"
	"pairchat/storage"
	"pairchat/store/memstore"
	"pairchat/store/sqlstore"
	"pairchat/utils"
	"pairchat/websocket"
)

type stores struct {
	users       service.UserStore
	friendships service.FriendshipStore
	messages    service.MessageStore
	close       func()
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		boot := logger.New("development", os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.Init(cfg.Env)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open stores")
	}
	defer st.close()

	images, files, err := openImageStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("image_store", cfg.ImageStore).Msg("open image store")
	}

	registry := presence.NewRegistry(logger.Component("presence"))
	ledger := &service.FriendshipLedger{
		Users:       st.users,
		Friendships: st.friendships,
		Presence:    registry,
		Log:         logger.Component("friends"),
	}
	unread := &service.UnreadAggregator{
		Messages:    st.messages,
		Users:       st.users,
		Friendships: st.friendships,
		Presence:    registry,
		FriendsOnly: cfg.RequireFriendship,
		Log:         logger.Component("unread"),
	}
	delivery := &service.DeliveryCoordinator{
		Users:             st.users,
		Messages:          st.messages,
		Friends:           ledger,
		Unread:            unread,
		Presence:          registry,
		Images:            images,
		RequireFriendship: cfg.RequireFriendship,
		Log:               logger.Component("delivery"),
	}
	registry.OnConnect(delivery.HandleConnect)

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	hub := websocket.NewHub(registry, tokens, delivery, logger.Component("websocket"))
	hub.AllowedOrigins = cfg.AllowedOrigins()

	h := &handlers.Handler{
		Accounts:      &service.Accounts{Users: st.users, Images: images},
		Ledger:        ledger,
		Delivery:      delivery,
		Unread:        unread,
		Registry:      registry,
		Tokens:        tokens,
		SecureCookies: cfg.IsProduction(),
	}
	router := handlers.NewRouter(h, handlers.RouterOptions{
		Log:            logger.Component("http"),
		AllowedOrigins: cfg.AllowedOrigins(),
		Limiter:        newLimiter(ctx, cfg, log),
		WebSocket:      hub.HandleWebSocket,
		Files:          files,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (stores, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn().Msg("using in-memory store; data is lost on restart")
		db := memstore.New()
		return stores{db.Users(), db.Friendships(), db.Messages(), func() {}}, nil
	}

	db, err := database.Connect(ctx, cfg.MysqlDSN)
	if err != nil {
		return stores{}, err
	}
	if err := database.CreateTables(ctx, db); err != nil {
		db.Close()
		return stores{}, err
	}
	log.Info().Msg("database connected")

	s := sqlstore.New(db)
	return stores{s.Users, s.Friendships, s.Messages, func() { db.Close() }}, nil
}

// openImageStore returns the image store and, for local storage, the handler
// that serves stored files.
func openImageStore(ctx context.Context, cfg *config.Config) (service.ImageStore, gin.HandlerFunc, error) {
	if cfg.ImageStore == "s3" {
		remote, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return remote, nil, nil
	}

	local, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return local, local.ServeFile, nil
}

// newLimiter prefers a shared redis counter and falls back to per-process
// token buckets.
func newLimiter(ctx context.Context, cfg *config.Config, log zerolog.Logger) middleware.RateLimiter {
	if cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			log.Info().Str("addr", cfg.RedisAddr).Msg("rate limiting via redis")
			return &middleware.RedisRateLimiter{
				Client: client,
				Limit:  cfg.RateLimitPerMinute,
				Window: time.Minute,
				Log:    logger.Component("ratelimit"),
			}
		}
		log.Warn().Err(err).Msg("redis unavailable, rate limiting in memory")
		client.Close()
	}
	return middleware.NewMemoryRateLimiter(cfg.RateLimitPerMinute, time.Minute, cfg.RateLimitPerMinute)
}
