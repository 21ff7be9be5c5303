package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resauth/token-service/broadcast"
	"github.com/resauth/token-service/cache"
	"github.com/resauth/token-service/identity"
	"github.com/resauth/token-service/identity/providerfake"
	"github.com/resauth/token-service/internal/config"
	"github.com/resauth/token-service/server"
	"github.com/resauth/token-service/token"
	"github.com/resauth/token-service/token/keys"
	"github.com/resauth/token-service/token/refresh"
	"github.com/resauth/token-service/token/refresh/repofake"
	"github.com/resauth/token-service/token/refresh/repopg"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Key material is loaded once at startup. Without it no token could
	// ever be issued or validated, so a failure here is fatal.
	keyPair, err := loadKeyPair(c)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	signer := keys.NewKeyPairSigner(keyPair)

	repo, err := buildRefreshRepo(ctx, c)
	if err != nil {
		return err
	}

	tokenCache, broadcaster := buildRedisComponents(c)

	refreshManager := refresh.NewManager(repo, refresh.WithSecretLength(c.GetRefreshSecretLength()))
	issuer := token.NewIssuer(signer, tokenCache, c.GetBaseURL())

	provider, err := buildIdentityProvider(ctx, c)
	if err != nil {
		return err
	}

	sweeper := refresh.NewSweeper(refreshManager, c.GetSweepInterval(), log.Logger)
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:    c.GetPort(),
		Handler: server.New(c, issuer, refreshManager, provider, broadcaster, signer),
	}
	go listenAndServe(srv)
	waitForStopSignal()
	return shutdown(srv)
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func loadKeyPair(c config.Config) (*keys.KeyPair, error) {
	if path := c.GetPrivateKeyPath(); path != "" {
		return keys.LoadKeyPairFromFile(path)
	}
	if c.GetEnv() != "DEV" {
		return nil, errors.New("JWT_PRIVATE_KEY_PATH is required outside DEV")
	}
	log.Warn().Msg("no signing key configured, generating an ephemeral DEV key")
	return keys.GenerateRSAKeyPair(2048)
}

func buildRefreshRepo(ctx context.Context, c config.Config) (refresh.Repo, error) {
	dsn := c.GetDatabaseDSN()
	if dsn == "" {
		if c.GetEnv() != "DEV" {
			return nil, errors.New("DATABASE_DSN is required outside DEV")
		}
		log.Warn().Msg("no database configured, using in-memory refresh token store")
		return refreshrepofake.NewFakeRefreshRepo(), nil
	}

	db, err := refreshrepopg.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to refresh token store: %w", err)
	}
	return refreshrepopg.New(db), nil
}

func buildRedisComponents(c config.Config) (cache.Cache, broadcast.Broadcaster) {
	addr := c.GetRedisAddr()
	if addr == "" {
		log.Warn().Msg("no redis configured, access token cache and logout broadcast disabled")
		return cache.Noop{}, broadcast.Noop{}
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return cache.NewRedis(rdb, "resauth"), broadcast.NewRedis(rdb)
}

func buildIdentityProvider(ctx context.Context, c config.Config) (identity.Provider, error) {
	if c.GetOIDCIssuerURL() == "" {
		if c.GetEnv() != "DEV" {
			return nil, errors.New("OIDC_ISSUER_URL is required outside DEV")
		}
		log.Warn().Msg("no identity provider configured, using fake provider")
		return providerfake.NewFakeProvider(), nil
	}
	return identity.NewOIDCProvider(ctx, c)
}

func listenAndServe(srv *http.Server) {
	log.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
