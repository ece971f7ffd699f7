package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/jrsteele09/go-auth-bridge/collection"
	"github.com/jrsteele09/go-auth-bridge/collection/memstore"
	"github.com/jrsteele09/go-auth-bridge/collection/mongostore"
	"github.com/jrsteele09/go-auth-bridge/internal/config"
	"github.com/jrsteele09/go-auth-bridge/metrics"
	"github.com/jrsteele09/go-auth-bridge/oauth"
	"github.com/jrsteele09/go-auth-bridge/pages"
	"github.com/jrsteele09/go-auth-bridge/server"
	"github.com/jrsteele09/go-auth-bridge/storage"
	"github.com/jrsteele09/go-auth-bridge/token"
	"github.com/jrsteele09/go-auth-bridge/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	providerHTTPTimeout    = 10 * time.Second
	revocationCleanupEvery = 10 * time.Minute
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	store, closeStore, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	revoked, err := openRevocationCache(ctx, c)
	if err != nil {
		return err
	}

	providers, err := buildProviders(ctx, c)
	if err != nil {
		return err
	}

	codec := token.NewCodec(c.GetSessionSecret(),
		token.WithLifetime(c.GetSessionLifetime()),
		token.WithRevokedTokenCache(revoked),
	)
	accounts := collection.NewEngine[users.Account](store, collection.WithObserver(collector))
	authService, err := auth.NewService(providers, users.NewResolver(accounts), codec, auth.WithLoginObserver(collector))
	if err != nil {
		return err
	}

	options := []server.Option{
		server.WithPages(pages.NewService(collection.NewEngine[pages.Page](store, collection.WithObserver(collector)))),
		server.WithMetricsHandler(metrics.Handler(registry)),
	}
	if bucket := c.GetUploadBucket(); bucket != "" {
		accessKey, secretKey := c.GetUploadCredentials()
		uploader, err := storage.New(ctx, storage.Settings{
			Bucket:          bucket,
			Region:          c.GetUploadRegion(),
			Endpoint:        c.GetUploadEndpoint(),
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
			Expiry:          c.GetUploadExpiry(),
		})
		if err != nil {
			return err
		}
		options = append(options, server.WithUploader(uploader))
	} else {
		log.Warn().Msg("S3_UPLOAD_BUCKET not set, uploads disabled")
	}

	handler, err := server.New(c, authService, options...)
	if err != nil {
		return err
	}
	defer handler.Close()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go listenAndServe(httpServer, serveErr)
	if err := waitForStop(serveErr); err != nil {
		return err
	}
	returnError = shutdown(httpServer)
	return returnError
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// openStore connects to MongoDB when MONGODB_URI is set and falls back to the
// in-memory store otherwise.
func openStore(ctx context.Context, c config.Config) (collection.Store, func(), error) {
	uri := c.GetMongoURI()
	if uri == "" {
		log.Warn().Msg("MONGODB_URI not set, documents are kept in memory")
		return memstore.New(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := mongostore.Connect(connectCtx, uri, c.GetMongoDatabase())
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("database", c.GetMongoDatabase()).Msg("connected to MongoDB")

	return store, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Err(err).Msg("failed to disconnect from MongoDB")
		}
	}, nil
}

// openRevocationCache uses Redis when REDIS_ADDR is set so revocations are
// shared between instances; otherwise an in-memory cache swept periodically.
func openRevocationCache(ctx context.Context, c config.Config) (token.RevokedTokenCache, error) {
	if addr := c.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("[openRevocationCache] ping %s: %w", addr, err)
		}
		log.Info().Str("addr", addr).Msg("revocations stored in Redis")
		return token.NewRedisRevokedTokenCache(client), nil
	}

	cache := token.NewInMemoryRevokedTokenCache()
	go func() {
		ticker := time.NewTicker(revocationCleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cache.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
	return cache, nil
}

func buildProviders(ctx context.Context, c config.Config) (*oauth.Registry, error) {
	client := &http.Client{Timeout: providerHTTPTimeout}
	settings := c.GetGoogleProvider()

	var cfg oauth.ProviderConfig
	switch {
	case c.GetGoogleClientFile() != "":
		loaded, err := oauth.LoadProviderFile(c.GetGoogleClientFile(), "web")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case settings.Configured():
		cfg = oauth.ProviderConfig{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			AuthURI:      settings.AuthURI,
			TokenURI:     settings.TokenURI,
		}
	default:
		log.Warn().Msg("no Google OAuth client configured, only email sign-in is available")
		return oauth.NewRegistry(), nil
	}
	cfg.Name = "google"
	cfg.Issuer = settings.Issuer
	cfg.CallbackURL = c.GetBaseURL() + strings.Replace(server.RouteAuthCallback, "{provider}", cfg.Name, 1)

	options := []oauth.BridgeOption{oauth.WithHTTPClient(client)}
	if c.GetVerifyIDToken() {
		verifier, err := oauth.NewVerifier(ctx, client, cfg.Issuer, cfg.ClientID)
		if err != nil {
			return nil, err
		}
		options = append(options, oauth.WithVerifier(verifier))
	}

	bridge, err := oauth.NewBridge(cfg, options...)
	if err != nil {
		return nil, err
	}
	return oauth.NewRegistry(bridge), nil
}

func listenAndServe(server *http.Server, serveErr chan<- error) {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		serveErr <- fmt.Errorf("server.ListenAndServe: %w", err)
	}
}

// waitForStop blocks until a stop signal arrives or the listener fails.
func waitForStop(serveErr <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		return nil
	case err := <-serveErr:
		return err
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
