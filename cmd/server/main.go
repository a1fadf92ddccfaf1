// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/auth"
	"github.com/jason-s-yu/czar/internal/cache"
	"github.com/jason-s-yu/czar/internal/config"
	"github.com/jason-s-yu/czar/internal/database"
	"github.com/jason-s-yu/czar/internal/game"
	"github.com/jason-s-yu/czar/internal/handlers"
	"github.com/jason-s-yu/czar/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := auth.Init(); err != nil {
		logger.Fatal(err)
	}
	auth.SetTokenExpiry(cfg.TokenExpireTime)
	if err := auth.SetHashParams(cfg.HashParams()); err != nil {
		logger.Fatal(err)
	}

	pool, err := database.ConnectDB(ctx, cfg.DatabaseDSN())
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Fatalf("schema: %v", err)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()
	actions := cache.NewActionLog(rdb, cfg.Historian.QueueName, cfg.Historian.BufferSize, logger)
	actionsDone := make(chan struct{})
	actionsCtx, stopActions := context.WithCancel(context.Background())
	go func() {
		actions.Run(actionsCtx)
		close(actionsDone)
	}()

	hub := handlers.NewHub(logger)
	manager := game.NewManager(game.Dependencies{
		Decks:                 database.Store{},
		Archiver:              database.Store{},
		Broadcaster:           hub,
		Actions:               actions,
		Logger:                logger,
		CzarDisconnectTimeout: cfg.Game.CzarDisconnectTimeout,
		PlayerEvictTimeout:    cfg.Game.PlayerEvictTimeout,
		LobbyIdleTimeout:      cfg.Game.LobbyIdleTimeout,
		JoinCodeLength:        cfg.Game.JoinCodeLength,
	})
	if err := manager.StartJanitor(cfg.Game.JanitorInterval); err != nil {
		logger.Fatalf("janitor: %v", err)
	}

	gs := &handlers.GameServer{
		Manager: manager,
		Hub:     hub,
		Logger:  logger,
		Usernames: func(ctx context.Context, userID uuid.UUID) (string, error) {
			u, err := database.GetUserByID(ctx, userID)
			if err != nil {
				return "", err
			}
			return u.Username, nil
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/user/create", handlers.CreateUserHandler(logger))
	mux.HandleFunc("/user/login", handlers.LoginHandler(logger))
	mux.HandleFunc("/user/stats", handlers.UserStatsHandler(logger))
	mux.HandleFunc("/decks", handlers.DecksHandler(logger))
	mux.HandleFunc("/game/ws", handlers.GameWSHandler(gs))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.Recover(logger)(middleware.LogMiddleware(logger)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("session shutdown")
	}
	stopActions()
	<-actionsDone
}
