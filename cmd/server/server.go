package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/voxnote/internal/database"
	"github.com/thereayou/voxnote/internal/handlers"
	"github.com/thereayou/voxnote/internal/middleware"
	"github.com/thereayou/voxnote/internal/services"
	ws "github.com/thereayou/voxnote/internal/websocket"
	"github.com/thereayou/voxnote/internal/workers"
	"github.com/thereayou/voxnote/pkg/auth"
	"github.com/thereayou/voxnote/pkg/config"
	"github.com/thereayou/voxnote/pkg/storage"
	"go.uber.org/zap"
)

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	Hub        *ws.Hub
	JWTManager *auth.JWTManager
	Identity   *services.IdentityService
	Log        *zap.Logger

	cfg *config.Config
}

// NewServer поднимает базу, redis и хаб и собирает роутер
func NewServer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	dbConn, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := dbConn.Migrate(); err != nil {
		return nil, err
	}

	rdb, err := ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	broker, err := ws.NewRedisBroker(ctx, rdb, log)
	if err != nil {
		return nil, err
	}
	hub := ws.NewHub(broker, log)

	signer, err := storage.NewGCSSigner(cfg.GCSBucket, cfg.GCSAccessID, cfg.GCSPrivateKey, cfg.SignedURLTTL)
	if err != nil {
		return nil, err
	}

	limiter, err := middleware.NewLimiter(cfg.HandshakeRate)
	if err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	pool := workers.NewPool(cfg.StoreWorkers)
	identity := services.NewIdentityService(jwtMgr, dbConn, rdb, pool)

	deps := &handlers.Deps{DB: dbConn, Hub: hub, Signer: signer, Pool: pool, Log: log}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))
	APIEndpoints(router, Endpoints{
		WS:       handlers.NewWebSocketHandler(deps),
		Account:  handlers.NewAccountHandler(deps, identity),
		Identity: identity,
		Limiter:  limiter,
		Log:      log,
	})

	return &Server{
		Router:     router,
		DB:         dbConn,
		Redis:      rdb,
		Hub:        hub,
		JWTManager: jwtMgr,
		Identity:   identity,
		Log:        log,
		cfg:        cfg,
	}, nil
}

// ConnectRedis разбирает REDIS_URL и проверяет соединение
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Run обслуживает запросы, пока не отменён ctx
func (s *Server) Run(ctx context.Context) error {
	go s.Hub.Run()

	srv := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("server starting", zap.String("port", s.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	s.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.close()
	return err
}

func (s *Server) close() {
	s.Hub.Stop()
	if err := s.Redis.Close(); err != nil {
		s.Log.Warn("redis close failed", zap.Error(err))
	}
	if err := s.DB.Close(); err != nil {
		s.Log.Warn("database close failed", zap.Error(err))
	}
}
