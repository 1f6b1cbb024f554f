package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meridianbank/support-assistant/internal/api"
	"github.com/meridianbank/support-assistant/internal/auth"
	"github.com/meridianbank/support-assistant/internal/config"
	"github.com/meridianbank/support-assistant/internal/core"
	"github.com/meridianbank/support-assistant/internal/logging"
	"github.com/meridianbank/support-assistant/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}
	logging.Init(cfg)

	seedFlag := flag.Int("seed", 0, "Seed the store with N demo customers and exit")
	flag.Parse()

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer dbStore.Close()

	// Handle demo data seeding if the flag is set
	if *seedFlag > 0 {
		n, err := dbStore.Seed(context.Background(), *seedFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("seeding failed")
		}
		log.Info().Int("customers", n).Msg("seeding complete, exiting")
		os.Exit(0)
	}

	llmService, err := core.NewLLMService(context.Background(), cfg.GeminiAPIKey, cfg.LLMTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize completion client")
	}
	defer llmService.Close()

	sessions := core.NewSessions()
	controller := core.NewController(dbStore, llmService, cfg.MaxContextChars)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret)

	apiHandler := api.NewAPIHandler(sessions, controller, tokens)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", serverAddr).Msg("server failed")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited gracefully")
}
