package main

import (
	"fmt"
	"log"
	"net/http"

	"edgelink/internal/api"
	"edgelink/internal/api/handlers"
	"edgelink/internal/api/middleware"
	"edgelink/internal/engine/analytics"
	"edgelink/internal/engine/links"
	"edgelink/internal/engine/redirect"
	"edgelink/internal/engine/resolve"
	"edgelink/internal/pkg/filter"
	"edgelink/internal/pkg/geoip"
	"edgelink/internal/pkg/logger"
	"edgelink/internal/platform/config"
	"edgelink/internal/platform/database"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open link store: %v", err)
	}
	defer db.Close()

	// Repositories
	linkRepo := links.NewRepository(db)
	analyticsRepo := analytics.NewRepository(db)

	// Fast lookup cache
	var cache redirect.LinkCache
	switch cfg.Cache.Backend {
	case "redis":
		redisCache, err := redirect.NewRedisCache(cfg.Cache.Redis, cfg.Cache.LinkTTL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisCache.Close()
		cache = redisCache
	default:
		cache = redirect.NewMemoryCache(cfg.Cache.LinkTTL)
	}

	// Slug bloom filter, seeded from the store
	var slugFilter *filter.SlugFilter
	if cfg.Bloom.Enabled {
		slugFilter = filter.NewSlugFilter(cfg.Bloom.ExpectedItems, cfg.Bloom.FalsePositiveRate)
		slugs, err := linkRepo.AllSlugs()
		if err != nil {
			log.Fatalf("Failed to seed slug filter: %v", err)
		}
		slugFilter.AddBatch(slugs)
	}

	// Outcome recorder
	forwarder := redirect.NewForwarder(cfg.Recorder.SinkURL, cfg.Recorder.SinkSecret)
	recorder, err := redirect.NewRecorder(analyticsRepo, linkRepo, forwarder, cache, cfg.Recorder.QueueSize, cfg.Recorder.Workers)
	if err != nil {
		log.Fatalf("Failed to start recorder: %v", err)
	}
	defer recorder.Stop()

	// Services
	var registrar links.SlugRegistrar
	if slugFilter != nil {
		registrar = slugFilter
	}
	linkService := links.NewService(linkRepo, cache, registrar)
	analyticsService := analytics.NewService(analyticsRepo)

	// Request context extraction
	extractor := resolve.NewExtractor(geoip.NewNoopResolver(), cfg.GeoIP.Header, cfg.Fingerprint.Secret)

	// Handlers
	deps := &api.Dependencies{
		RedirectHandler:  handlers.NewRedirectHandler(linkRepo, cache, slugFilter, extractor, recorder),
		LinkHandler:      handlers.NewLinkHandler(linkService, cfg.Domains.ShortDomain),
		RoutingHandler:   handlers.NewRoutingHandler(linkService, analyticsService),
		AnalyticsHandler: handlers.NewAnalyticsHandler(linkService, analyticsService),
		HealthHandler:    handlers.NewHealthHandler(db),
		RateLimiter: middleware.NewRateLimiter(map[string]int{
			"redirect":  cfg.RateLimit.RedirectPerMinute,
			"api_read":  cfg.RateLimit.APIReadPerMinute,
			"api_write": cfg.RateLimit.APIWritePerMinute,
		}),
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
