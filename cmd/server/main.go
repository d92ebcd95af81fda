// Command server runs the content licensing registry HTTP API.
//
//	@title						Content Licensing Registry API
//	@version					1.0
//	@description				Creators list IPFS-backed content with a price and royalty split; buyers purchase access and stream the gated file.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
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
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/libchain-registry/docs"
	"github.com/tbourn/libchain-registry/internal/cache"
	"github.com/tbourn/libchain-registry/internal/config"
	httpapi "github.com/tbourn/libchain-registry/internal/http"
	"github.com/tbourn/libchain-registry/internal/observability"
	"github.com/tbourn/libchain-registry/internal/repo"
	"github.com/tbourn/libchain-registry/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// purgeEvery is how often expired idempotency keys are removed.
const purgeEvery = 10 * time.Minute

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	gin.SetMode(cfg.GinMode)
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server exited gracefully")
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, docs.SwaggerInfo.Version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if cfg.OTEL.Enabled {
		if err := repo.UseTracing(db); err != nil {
			return err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	listings := openCache(ctx, cfg.Cache)
	if c, ok := listings.(*cache.Redis); ok {
		defer c.Close()
	}

	lctx := log.Logger.WithContext(ctx)
	deps, err := httpapi.BuildDeps(lctx, db, cfg, listings)
	if err != nil {
		return err
	}
	if !deps.Pinner.Configured() {
		log.Warn().Msg("PINATA_SECRET_API_KEY not set; uploads are disabled")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, deps)

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Str("auth_mode", cfg.Auth.Mode).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// openCache returns the Redis cache when configured and reachable, the
// in-process LRU otherwise, or nil when caching is disabled.
func openCache(ctx context.Context, cfg config.CacheConfig) cache.Cache {
	if cfg.RedisAddr != "" {
		rc := cache.NewRedis(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		})
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err := rc.Ping(pctx)
		if err == nil {
			log.Info().Str("addr", cfg.RedisAddr).Msg("listing cache: redis")
			return rc
		}
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; falling back to in-process cache")
		_ = rc.Close()
	}
	if cfg.Size == 0 || cfg.TTL == 0 {
		log.Info().Msg("listing cache disabled")
		return nil
	}
	return cache.NewLRU(cfg.Size, cfg.TTL)
}

func purgeIdempotency(ctx context.Context, deps httpapi.Deps) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := deps.Registry.PurgeIdempotency(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("purged expired idempotency keys")
			}
		}
	}
}
