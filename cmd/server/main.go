package main

import (
	"context"
	"database/sql"
	"errors"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/livepoll/internal/adapters/handler/http"
	"github.com/vncsmyrnk/livepoll/internal/adapters/oauth/google"
	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/livepoll/internal/config"
	"github.com/vncsmyrnk/livepoll/internal/core/services"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	setupLogger(log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	pollRepo := postgres.NewPollRepository(db)
	voteRepo := postgres.NewVoteRepository(db)
	resultRepo := postgres.NewResultRepository(db)
	userRepo := postgres.NewUserRepository(db)
	authRepo := postgres.NewAuthRepository(db)

	feed := postgres.NewChangeFeed(cfg.DatabaseURL, cfg.ListenerMinReconnect, cfg.ListenerMaxReconnect, log.WithField("component", "change_feed"))
	live := services.NewLiveService(feed, log.WithField("component", "live"))

	identity := http.NewRequestIdentity()
	pollSvc := services.NewPollService(pollRepo, identity, cfg.StorageTimeout, log)
	voteSvc := services.NewVoteService(pollRepo, voteRepo, identity, cfg.StorageTimeout, log)
	resultSvc := services.NewResultService(resultRepo, live, cfg.StorageTimeout, log)
	authSvc := services.NewAuthService(userRepo, authRepo, google.NewVerifier(), cfg.JWTSecret, cfg.GoogleClientID, log)
	userSvc := services.NewUserService(userRepo, identity)

	handlerLog := log.WithField("component", "http")
	resultHandler := http.NewResultHandler(resultSvc, cfg.AllowedOrigins, handlerLog)
	handler := http.NewHandler(http.Handlers{
		Poll:   http.NewPollHandler(pollSvc, handlerLog),
		Vote:   http.NewVoteHandler(voteSvc, handlerLog),
		Result: resultHandler,
		Auth:   http.NewAuthHandler(authSvc, cfg.RedirectURL, cfg.CookieDomain, cfg.CookieSameSite, handlerLog),
		User:   http.NewUserHandler(userSvc, handlerLog),
	}, authSvc, db.PingContext, cfg.AllowedOrigins)

	liveDone := make(chan struct{})
	go func() {
		defer close(liveDone)
		if err := live.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("live update channel stopped")
		}
	}()

	server := &stdhttp.Server{Addr: cfg.HTTPAddr, Handler: handler}
	// live sockets are hijacked, so Shutdown neither waits for nor closes them
	server.RegisterOnShutdown(resultHandler.Shutdown)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("failed to shut down server")
	}
	<-liveDone
}

func setupLogger(log *logrus.Logger, cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
}
