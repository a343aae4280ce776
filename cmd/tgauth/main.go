package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Miraines/MoonyAndStarry/tgauth/internal/adapters/transport/http/handler"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/app/auth/session"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/tgauth/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/infra/metrics"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/infra/server"
	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth"
)

func main() {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		lg.Must("").Fatal("failed to load config", zap.Error(err))
	}

	zapLog := lg.Must(cfg.LogLevel)
	defer zapLog.Sync()

	opts := []tgauth.Option{tgauth.WithHashExpiration(cfg.HashExpiration)}
	if cfg.UserShapeCheck {
		opts = append(opts, tgauth.WithUserShapeCheck())
	}
	registry, err := tgauth.NewRegistry(cfg.ValidatorCacheSize, opts...)
	if err != nil {
		zapLog.Fatal("failed to init validator registry", zap.Error(err))
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		zapLog.Fatal("failed to register metrics", zap.Error(err))
	}

	var issuer *session.Issuer
	if cfg.SessionSecret != "" {
		issuer, err = session.NewIssuer(cfg.SessionSecret, cfg.SessionTTL, cfg.SessionIssuer)
		if err != nil {
			zapLog.Fatal("failed to init session issuer", zap.Error(err))
		}
	} else {
		zapLog.Warn("SESSION_SECRET is not set, sessions are disabled")
	}

	svc := service.New(registry, cfg.Bots, issuer, m, zapLog)
	router := handler.NewRouter(handler.New(svc, zapLog, ""), zapLog, handler.RouterConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: cfg.AllowCredentials,
	})

	for name, token := range cfg.Bots {
		zapLog.Info("bot configured", zap.String("bot", name), lg.Token(token))
	}
	zapLog.Info("starting",
		zap.Int("tokens", cfg.TokenCount()),
		zap.Duration("hash_expiration", cfg.HashExpiration),
		zap.Bool("sessions", issuer != nil),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.RunHTTP(ctx, cfg.HTTPAddress, router, zapLog)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
		return
	}
	zapLog.Info("shutdown complete")
}
