package httpapi

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/libchain-registry/internal/accessurl"
	"github.com/tbourn/libchain-registry/internal/cache"
	"github.com/tbourn/libchain-registry/internal/config"
	"github.com/tbourn/libchain-registry/internal/http/handlers"
	"github.com/tbourn/libchain-registry/internal/identity"
	"github.com/tbourn/libchain-registry/internal/search"
	"github.com/tbourn/libchain-registry/internal/services"
	"github.com/tbourn/libchain-registry/internal/storage"
	"github.com/tbourn/libchain-registry/internal/sysutil"
)

// pendingChallenges bounds outstanding wallet login challenges.
const pendingChallenges = 10_000

// sessionIssuer is the iss claim of session tokens.
const sessionIssuer = "libchain-registry"

// Deps are the services mounted by RegisterRoutes.
type Deps struct {
	Registry   *services.Registry
	Catalog    *services.Catalog
	Dashboard  *services.Dashboard
	Pinner     *storage.Pinata
	Gateway    *storage.Gateway
	Grants     *accessurl.Signer
	Challenges *identity.Challenges
	Sessions   *identity.Sessions
}

// BuildDeps wires the services over db. The listing cache is optional. The
// search index is rebuilt from the ledger before returning.
func BuildDeps(ctx context.Context, db *gorm.DB, cfg config.Config, c cache.Cache) (Deps, error) {
	ledger := services.NewLedger(db)
	registry := services.NewRegistry(
		ledger,
		services.NewPayoutEngine(cfg.Ledger.PlatformAccount, nil),
		identity.NewAddressSet(cfg.Ledger.AdminAddresses),
	)

	catalog := &services.Catalog{Ledger: ledger, Index: search.New(), Cache: c}
	registry.Observe(catalog)
	n, err := catalog.Rebuild(ctx)
	if err != nil {
		return Deps{}, fmt.Errorf("rebuild search index: %w", err)
	}
	log.Ctx(ctx).Info().Int("records", n).Msg("search index rebuilt")

	secret, generated, err := sysutil.SecretOrEphemeral(cfg.Auth.JWTSecret)
	if err != nil {
		return Deps{}, fmt.Errorf("signing secret: %w", err)
	}
	if generated {
		log.Ctx(ctx).Warn().Msg("JWT_SECRET not set; using an ephemeral secret, sessions and stream URLs will not survive a restart")
	}
	grants, err := accessurl.NewSigner(secret, cfg.Storage.StreamURLTTL)
	if err != nil {
		return Deps{}, err
	}
	sessions, err := identity.NewSessions(secret, cfg.Auth.SessionTTL, sessionIssuer)
	if err != nil {
		return Deps{}, err
	}

	return Deps{
		Registry:   registry,
		Catalog:    catalog,
		Dashboard:  &services.Dashboard{DB: db},
		Grants:     grants,
		Sessions:   sessions,
		Challenges: identity.NewChallenges(pendingChallenges, cfg.Auth.ChallengeTTL, cfg.Auth.LoginDomain),
		Pinner: storage.NewPinata(storage.PinataConfig{
			APIURL:    cfg.Storage.PinataAPIURL,
			APIKey:    cfg.Storage.PinataAPIKey,
			APISecret: cfg.Storage.PinataSecret,
			Timeout:   cfg.Storage.UploadTimeout,
		}),
		Gateway: storage.NewGateway(cfg.Storage.Gateway, cfg.Storage.GatewayTimeout),
	}, nil
}

// options converts d into handler options. Nil collaborators stay nil
// interfaces so the handlers can report them as unconfigured.
func (d Deps) options(cfg config.Config) handlers.Options {
	opt := handlers.Options{
		Registry:         d.Registry,
		Catalog:          d.Catalog,
		Dashboard:        d.Dashboard,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		StreamChunkBytes: cfg.Storage.StreamChunkSize,
		MaxUploadBytes:   cfg.Storage.MaxUploadBytes,
		BasePath:         basePath(cfg.APIBasePath),
	}
	if d.Pinner != nil {
		opt.Pinner = d.Pinner
	}
	if d.Gateway != nil {
		opt.Gateway = d.Gateway
	}
	if d.Grants != nil {
		opt.Grants = d.Grants
	}
	if d.Challenges != nil {
		opt.Challenges = d.Challenges
	}
	if d.Sessions != nil {
		opt.Sessions = d.Sessions
	}
	return opt
}

func basePath(p string) string {
	if p == "/" {
		return ""
	}
	return p
}
