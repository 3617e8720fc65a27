package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	auction "auction-house/internal/auctionService"
	bidding "auction-house/internal/biddingService"
	"auction-house/internal/catalog"
	"auction-house/internal/config"
	"auction-house/internal/countdown"
	"auction-house/internal/fanout"
	"auction-house/internal/identity"
	"auction-house/internal/metrics"
	"auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/internal/scheduler"
	"auction-house/internal/server"
	"auction-house/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		utils.Fatal("cannot load config", map[string]any{"error": err.Error()})
	}
	if err := utils.SetLogLevel(cfg.LogLevel); err != nil {
		utils.Warn("unknown log level, keeping info", map[string]any{"level": cfg.LogLevel})
	}
	metrics.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openStore(ctx, cfg)
	if err != nil {
		utils.Fatal("cannot open auction store", map[string]any{"driver": cfg.StoreDriver, "error": err.Error()})
	}
	defer closeRepo()

	products := catalog.NewMemoryCatalog()
	users := identity.NewMemoryDirectory()
	if cfg.SeedDemoData {
		seedDemoData(products, users)
	}

	hub := fanout.NewHub(cfg.SubscriberBuffer)
	biddingSvc := bidding.NewBiddingService(repo, products, users, hub)
	auctionSvc := auction.NewAuctionService(repo, products, users, hub)

	sched := scheduler.New(repo, auctionSvc, cfg.SweepInterval)
	auctionSvc.UseTimers(sched)
	if err := sched.Restore(ctx); err != nil {
		utils.Fatal("cannot restore auction timers", map[string]any{"error": err.Error()})
	}

	ticker := countdown.New(repo, biddingSvc, hub, countdown.Config{
		Interval:            cfg.CountdownInterval,
		EndingSoonInterval:  cfg.EndingSoonCheckInterval,
		EndingSoonThreshold: cfg.EndingSoonThreshold,
	})

	router := server.SetupRouter(server.Services{
		Bidding:  biddingSvc,
		Auctions: auctionSvc,
		Events:   hub,
	})
	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return ticker.Run(gctx) })
	g.Go(func() error {
		utils.Info("starting auction server", map[string]any{"address": cfg.ServerAddress, "store": cfg.StoreDriver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		utils.Fatal("auction server stopped", map[string]any{"error": err.Error()})
	}
	utils.Info("auction server stopped", nil)
}

// openStore picks the auction store named by STORE_DRIVER
func openStore(ctx context.Context, cfg config.Config) (repository.AuctionDB, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		repo, err := repository.OpenSQLite(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case config.DriverPostgres:
		repo, err := repository.OpenPostgres(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		return repository.NewMemoryRepo(), func() {}, nil
	}
}

// seedDemoData adds sample products and users to the in-memory directories
func seedDemoData(products *catalog.MemoryCatalog, users *identity.MemoryDirectory) {
	for _, p := range []models.Product{
		{ProductID: "product1", Title: "Vintage camera", StartPrice: decimal.NewFromInt(100000), StockCount: 1, Status: models.ProductAvailable},
		{ProductID: "product2", Title: "Signed guitar", StartPrice: decimal.NewFromInt(250000), StockCount: 1, Status: models.ProductAvailable},
		{ProductID: "product3", Title: "Sneaker bundle", StartPrice: decimal.NewFromInt(50000), StockCount: 3, Status: models.ProductAvailable},
	} {
		products.AddProduct(p)
	}

	for _, u := range []models.User{
		{UserID: "user1", Handle: "alice"},
		{UserID: "user2", Handle: "bobby"},
		{UserID: "user3", Handle: "carol"},
	} {
		users.AddUser(u)
	}
	utils.Info("seeded demo data", map[string]any{"products": 3, "users": 3})
}
