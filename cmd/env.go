package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safebites/safebites-api/internal/oracle"
	"github.com/safebites/safebites-api/internal/resolver"
	"github.com/safebites/safebites-api/internal/service"
	"github.com/safebites/safebites-api/internal/store"
	anthropicpkg "github.com/safebites/safebites-api/pkg/anthropic"
	"github.com/safebites/safebites-api/pkg/geocode"
	"github.com/safebites/safebites-api/pkg/places"
	"github.com/safebites/safebites-api/pkg/serpapi"
)

// serviceEnv holds the initialized store and service for the serve and
// refresh commands.
type serviceEnv struct {
	Store   store.Store
	Service *service.Service
}

// Close releases resources held by the environment.
func (e *serviceEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured backend.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.Driver == "sqlite" {
		return store.NewSQLite(cfg.Store.Path)
	}
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is required for the postgres driver")
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

// initEnv wires the store and every configured collaborator into the
// service. Collaborators with missing credentials are left nil; the
// endpoints that need them answer 503 while the rest of the service keeps
// working.
func initEnv(ctx context.Context) (*serviceEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var placesClient places.Client
	if cfg.Places.Key != "" {
		placesClient = places.NewClient(cfg.Places.Key)
	} else {
		zap.L().Warn("places API key missing; search endpoint disabled")
	}

	var serpClient serpapi.Client
	if cfg.SerpAPI.Key != "" {
		serpClient = serpapi.NewClient(cfg.SerpAPI.Key)
	} else {
		zap.L().Warn("serpapi key missing; review refresh disabled")
	}

	var addressResolver service.AddressResolver
	if cfg.Geocode.Key != "" {
		geocoder := geocode.NewClient(cfg.Geocode.Key)
		addressResolver = resolver.New(geocoder, cfg.Scoring.GeocodeCacheSize)
	} else {
		zap.L().Warn("geocode API key missing; address resolution disabled")
	}

	var safetyOracle service.Oracle
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		timeout := time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second
		safetyOracle = oracle.New(client, cfg.Anthropic.Model, timeout)
	} else {
		zap.L().Warn("anthropic API key missing; safety analysis disabled")
	}

	svc := service.New(st, placesClient, serpClient, addressResolver, safetyOracle, service.Options{
		FreshnessWindow:     time.Duration(cfg.Scoring.FreshnessDays) * 24 * time.Hour,
		SearchRadiusMiles:   cfg.Scoring.SearchRadiusMiles,
		SearchCacheCapacity: cfg.Scoring.SearchCacheSize,
	})

	return &serviceEnv{Store: st, Service: svc}, nil
}
