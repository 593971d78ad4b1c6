// Command facetprobe drives the facet coordinator against a running API: it
// loads every facet, optionally searches one, and prints the options as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicretail/internal/adapters/events"
	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/providers"
	"github.com/zatekoja/clinicretail/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
	"github.com/zatekoja/clinicretail/pkg/config"
	"github.com/zatekoja/clinicretail/pkg/facets"
)

func main() {
	var facet, query, invalidate string
	var watch time.Duration
	flag.StringVar(&facet, "facet", "", "Facet to search after the initial load")
	flag.StringVar(&query, "q", "", "Search text for -facet")
	flag.StringVar(&invalidate, "invalidate", "", "Comma separated facets to invalidate server-side first (\"all\" for every facet)")
	flag.DurationVar(&watch, "watch", 0, "Follow facet invalidations over Redis for this long before printing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-facetprobe", cfg.Server.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	transport := facets.NewHTTPTransport(
		cfg.Facets.BaseURL,
		time.Duration(cfg.Facets.TimeoutSeconds)*time.Second,
		cfg.Facets.RateLimit,
	)

	if invalidate != "" {
		var names []string
		if invalidate != "all" {
			for _, name := range strings.Split(invalidate, ",") {
				if name = strings.TrimSpace(name); name != "" {
					names = append(names, name)
				}
			}
		}
		if err := transport.Invalidate(ctx, names...); err != nil {
			log.Fatal().Err(err).Msg("Failed to invalidate facets")
		}
		log.Info().Strs("facets", names).Msg("Server-side facet cache invalidated")
	}

	coordinator := facets.NewCoordinator(transport, facets.Options{
		Debounce: cfg.Facets.Debounce(),
		CacheTTL: cfg.Facets.CacheTTL,
	})
	defer coordinator.Close()

	out := map[string]interface{}{}

	start := time.Now()
	all, err := coordinator.LoadAll(ctx, entities.DefaultCatalog().FacetNames()...)
	if err != nil {
		log.Fatal().Err(err).Msg("Initial facet load failed")
	}
	log.Info().Int("facets", len(all)).Dur("took", time.Since(start)).Msg("Facets loaded")
	out["initial"] = all

	if facet != "" {
		options, err := coordinator.Search(ctx, facet, query)
		if err != nil {
			log.Fatal().Err(err).Str("facet", facet).Msg("Facet search failed")
		}
		out["search"] = map[string]interface{}{
			"facet":   facet,
			"query":   query,
			"phase":   coordinator.Phase(facet).String(),
			"options": options,
		}
	}

	if watch > 0 {
		out["after_watch"] = follow(ctx, cfg, coordinator, watch)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

// follow applies invalidations published by the API for d, then returns what
// the coordinator still holds for every facet
func follow(ctx context.Context, cfg *config.Config, coordinator *facets.Coordinator, d time.Duration) map[string][]facets.Option {
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	bus := events.NewRedisEventBus(redisClient)
	defer bus.Close()

	watchCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	sub, err := bus.Subscribe(watchCtx, providers.EventChannelFacetInvalidations)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to facet invalidations")
	}

	invalidations := make(chan []string)
	go func() {
		defer close(invalidations)
		for event := range sub {
			log.Info().Str("event_id", event.ID).Strs("facets", event.Facets).Msg("Facet invalidation received")
			select {
			case invalidations <- event.Facets:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	log.Info().Dur("for", d).Msg("Watching facet invalidations")
	coordinator.Follow(watchCtx, invalidations)

	cached := make(map[string][]facets.Option)
	for _, name := range entities.DefaultCatalog().FacetNames() {
		cached[name] = coordinator.GetCached(name)
	}
	return cached
}
