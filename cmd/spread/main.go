package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"

	"main/internal/cache"
	"main/internal/exchange/bybit"
	"main/internal/ingest"
	"main/internal/ops"
	"main/internal/repository"
	"main/internal/spread"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	envPath := flag.String("env", ".env", "Path to env file with credentials")
	flag.Parse()

	// missing env file is fine, credentials may come from the config
	_ = godotenv.Load(*envPath)

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := conn.NewPostgres(conn.PostgresOption{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatalf("postgres connect failed: %v", err)
	}
	defer pg.Close()

	store := repository.New(pg.DB())
	if err := store.AutoMigrate(); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	if cfg.Observability.PyroscopeURL != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Observability.PyroscopeName,
			ServerAddress:   cfg.Observability.PyroscopeURL,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	go serveMetrics(ctx, cfg.Observability.MetricsAddr)

	shared := cache.New()
	api := bybit.New(bybit.Config{
		Ticker:     cfg.Exchange.Ticker,
		Key:        cfg.Exchange.Key,
		Secret:     cfg.Exchange.Secret,
		BaseURL:    cfg.Exchange.BaseURL,
		RecvWindow: cfg.Exchange.RecvWindow,
	})

	workerCfg := spread.Config{
		BotID:       cfg.Bot.ID,
		Exchange:    cfg.Exchange.Name,
		Ticker:      cfg.Exchange.Ticker,
		Account:     cfg.Exchange.Account,
		Fees:        cfg.Fees,
		Interval:    cfg.Bot.Interval(),
		SettleDelay: cfg.Bot.SettleDelay(),
	}

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logs.Errorf("%s exited: %+v", name, err)
			}
		}()
	}

	depthWorker := ingest.NewDepthWorker(cfg.Exchange.Ticker, cfg.Exchange.Name, shared, bybit.NewPublic(ctx))
	balanceWorker := ingest.NewBalanceWorker(cfg.Exchange.Name, cfg.Exchange.Account, shared, api)
	run("depth worker", depthWorker.Run)
	run("balance worker", balanceWorker.Run)

	run("buy worker", spread.NewBuyer(workerCfg, store, api, shared).Run)
	run("sell worker", spread.NewSeller(workerCfg, store, api, shared).Run)

	logs.Infof("bot %d running on %s %s", cfg.Bot.ID, cfg.Exchange.Name, cfg.Exchange.Ticker)
	<-ctx.Done()
	logs.Info("shutting down")
	wg.Wait()
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logs.Errorf("metrics server: %v", err)
	}
}
