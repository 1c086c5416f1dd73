// README: Entry point; loads config, wires services, starts HTTP server and background pollers.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"googlemaps.github.io/maps"

	"chomp/internal/config"
	"chomp/internal/geo"
	httptransport "chomp/internal/http"
	"chomp/internal/infra"
	"chomp/internal/modules/ads"
	"chomp/internal/modules/loyalty"
	"chomp/internal/modules/order"
	"chomp/internal/modules/payment"
	"chomp/internal/modules/rider"
	"chomp/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	// Without an API key the geocoder degrades to the city fallback table and
	// routing to haversine, which keeps local development keyless.
	var mapsClient *maps.Client
	if cfg.Maps.APIKey != "" {
		mapsClient, err = maps.NewClient(maps.WithAPIKey(cfg.Maps.APIKey))
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
	}
	geocoder := geo.NewGeocoder(mapsClient, redisClient)
	roadRouter := geo.NewRouter(mapsClient)

	broker := notify.NewBroker(redisClient)

	loyaltySvc := loyalty.NewService(loyalty.NewStore(dbPool))

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, geocoder, roadRouter, loyaltySvc, broker)

	adsSvc := ads.NewService(ads.NewStore(dbPool))

	gateway := payment.NewHTTPGateway(cfg.Gateway)
	paymentSvc := payment.NewService(payment.NewStore(dbPool), gateway, orderSvc, adsSvc)

	riderSvc := rider.NewService(rider.NewStore(redisClient), cfg.Rider.SearchRadiusKm)

	handler := httptransport.NewRouter(orderSvc, paymentSvc, loyaltySvc, adsSvc, riderSvc)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	pollerInterval := time.Duration(cfg.Poller.IntervalSeconds) * time.Second
	go orderSvc.RunExpiryPoller(ctx, pollerInterval)
	go adsSvc.RunCampaignSweeper(ctx, time.Hour)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
