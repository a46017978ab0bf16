package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"primetrade/internal/api"
	"primetrade/internal/auth"
	"primetrade/internal/config"
	"primetrade/internal/database"
	"primetrade/internal/logger"
	"primetrade/internal/notify"
	"primetrade/internal/otp"
	"primetrade/internal/tasks"
	"primetrade/internal/uploads"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := database.ConnectMongoDB(initCtx, cfg.Mongo, log)
	if err != nil {
		return err
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Warn("disconnect mongodb", slog.String("error", err.Error()))
		}
	}()

	userCol := database.UserCollection(client, cfg.Mongo.Database)
	taskCol := database.TaskCollection(client, cfg.Mongo.Database)
	if err := database.EnsureIndexes(initCtx, userCol, taskCol); err != nil {
		return err
	}

	var cooldown *otp.Cooldown
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		if err := rdb.Ping(initCtx).Err(); err != nil {
			log.Warn("redis unreachable, resend cooldown will fail open", slog.String("error", err.Error()))
		}
		cooldown = otp.NewCooldown(rdb, cfg.OTP.ResendCooldown)
	} else {
		log.Info("REDIS_ADDR not set, resend cooldown disabled")
	}

	if !cfg.Email.Enabled() {
		log.Warn("SMTP credentials not set, OTP emails will not be delivered")
	}
	if cfg.App.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, login will fail")
	}

	users := database.NewUserStore(userCol)
	codes := otp.NewService(users, notify.NewEmailNotifier(cfg.Email, log), cooldown, cfg.OTP.TTL, log)
	tokens := auth.NewTokens(cfg.App.JWTSecret, cfg.App.TokenTTL)
	accounts := auth.NewService(users, codes, tokens, log)

	images, err := uploads.NewStorage(cfg.App.UploadDir)
	if err != nil {
		return err
	}
	taskSvc := tasks.NewService(database.NewTaskStore(taskCol), images, log)

	server := api.NewServer(accounts, codes, taskSvc, tokens, api.Options{
		UploadDir:  images.Dir(),
		RateLimit:  cfg.App.RateLimit,
		RateBurst:  cfg.App.RateBurst,
		TrustProxy: cfg.App.TrustProxy,
	}, log)
	go server.SweepLimiter(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      server.Handler(),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server exited gracefully")
	return nil
}
