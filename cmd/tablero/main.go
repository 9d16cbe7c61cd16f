package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/elecciones-pr/tablero/internal/config"
	"github.com/elecciones-pr/tablero/internal/health"
	"github.com/elecciones-pr/tablero/internal/logging"
	"github.com/elecciones-pr/tablero/internal/mirror"
	"github.com/elecciones-pr/tablero/internal/party"
	"github.com/elecciones-pr/tablero/internal/poller"
	"github.com/elecciones-pr/tablero/internal/presenter"
	"github.com/elecciones-pr/tablero/internal/results"
	"github.com/elecciones-pr/tablero/internal/stream"
	"github.com/elecciones-pr/tablero/internal/web"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("tablero exited")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log.WithFields(log.Fields{
		"env":  cfg.Env,
		"addr": cfg.HTTP.Addr,
	}).Info("tablero starting")

	parties, err := party.Load(cfg.Parties.File, cfg.Parties.DefaultLogo)
	if err != nil {
		return err
	}
	loc, err := cfg.Display.Location()
	if err != nil {
		return err
	}
	pres := presenter.New(parties, loc, cfg.Display.TimeLayout)

	fetcher := results.NewFetcher(cfg.Results.URL, nil)
	log.WithFields(log.Fields{
		"feed":    fetcher.URL(),
		"parties": parties.Len(),
	}).Info("results feed configured")
	p := poller.New(fetcher, poller.Config{
		Interval:  cfg.Results.PollIntervalSec,
		TickEvery: cfg.Results.Tick(),
	})

	bc := stream.NewBroadcaster()
	bc.Register(p)

	// Subscribe everything before the broadcaster starts so no consumer
	// misses the first result.
	monitor := health.NewMonitor(health.Config{
		StaleAfter: time.Duration(cfg.Health.StaleAfterSec) * time.Second,
	}, bc.Subscribe(poller.EventResult))

	var writer *mirror.RedisWriter
	if cfg.Redis.Enabled() {
		client := mirror.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx)
		pingCancel()
		if err != nil {
			return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		writer = mirror.NewRedisWriter(client, bc.Subscribe(poller.EventResult), cfg.Redis.KeyPrefix)
		log.WithField("addr", cfg.Redis.Addr).Info("leader mirror enabled")
	}

	srv, err := web.New(web.Deps{
		Source:    p,
		Stream:    bc,
		Presenter: pres,
		Health:    monitor,
		StaticDir: cfg.HTTP.StaticDir,
	})
	if err != nil {
		return err
	}

	go bc.Run(ctx)
	go monitor.Run(ctx)
	if writer != nil {
		go writer.Run(ctx)
	}
	go p.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("board listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("tablero shutting down")

	// WebSocket sessions are hijacked and invisible to Shutdown.
	srv.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	<-p.Done()
	return nil
}
