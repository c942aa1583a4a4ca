package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Classroom/internal/adapters/http"
	"github.com/dkeye/Classroom/internal/adapters/rtc"
	sig "github.com/dkeye/Classroom/internal/adapters/signal"
	"github.com/dkeye/Classroom/internal/adapters/store"
	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/app/voice"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/core"
)

type participantStore interface {
	core.ParticipantStore
	Close()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	engine, err := rtc.NewEngine(rtc.Options{
		ListenIP:       cfg.RTC.ListenIP,
		AnnouncedIP:    cfg.RTC.AnnouncedIP,
		UDPPort:        cfg.RTC.UDPPort,
		MinPort:        cfg.RTC.MinPort,
		MaxPort:        cfg.RTC.MaxPort,
		STUNURLs:       cfg.RTC.STUNURLs,
		ConnectTimeout: cfg.RTC.ConnectTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start media engine")
	}

	var st participantStore = store.Noop{}
	if cfg.Database.URL != "" {
		dbCtx, dbCancel := context.WithTimeout(ctx, cfg.Database.Timeout)
		pg, err := store.NewPostgres(dbCtx, cfg.Database.URL)
		dbCancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect database")
		}
		st = pg
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	o := (&orch.Orchestrator{
		Registry:     app.NewRegistry(),
		Voice:        voice.NewManager(),
		Engine:       engine,
		Store:        st,
		Policy:       app.SimplePolicy{},
		Metrics:      app.NewMetrics(reg),
		GraceWindow:  cfg.GraceWindow,
		StoreTimeout: cfg.Database.Timeout,
	}).Bind()

	ctrl := sig.NewSignalWSController(o, sig.Options{
		ReadLimit:        cfg.ReadLimit,
		PingPeriod:       cfg.PingPeriod,
		SendBuffer:       cfg.SendBuffer,
		MessagesPerSec:   cfg.Rate.MessagesPerSecond,
		Burst:            cfg.Rate.Burst,
		AnnounceLimit:    cfg.Rate.AnnounceLimit,
		AnnounceInterval: cfg.Rate.AnnounceInterval,
	})
	go ctrl.RunJanitor(ctx)

	r := router.SetupRouter(ctx, cfg, o, ctrl, reg)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Classroom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	// Engine death is fatal.
	go func() {
		select {
		case err := <-engine.Died():
			log.Error().Err(err).Dur("exit_delay", cfg.Engine.ExitDelay).Msg("media engine died, exiting")
			time.Sleep(cfg.Engine.ExitDelay)
			os.Exit(1)
		case <-ctx.Done():
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	o.Shutdown()
	if err := engine.Close(); err != nil {
		log.Error().Err(err).Msg("engine close")
	}
	st.Close()
	log.Info().Msg("Server exited gracefully")
}
