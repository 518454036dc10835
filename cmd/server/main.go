package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	streamchat "github.com/MegaGrindStone/stream-chat"
	"github.com/MegaGrindStone/stream-chat/internal/config"
	"github.com/MegaGrindStone/stream-chat/internal/conversation"
	"github.com/MegaGrindStone/stream-chat/internal/handlers"
	"github.com/MegaGrindStone/stream-chat/internal/logging"
	"github.com/MegaGrindStone/stream-chat/internal/session"
)

func main() {
	defaultCfgPath, err := config.DefaultPath()
	if err != nil {
		log.Fatal(err)
	}
	cfgPath := flag.String("config", defaultCfgPath, "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(fmt.Errorf("error loading config: %w", err))
	}

	logger, logCloser, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		log.Fatal(fmt.Errorf("error initializing logger: %w", err))
	}
	defer logCloser.Close()

	store := conversation.NewStore()
	transport := session.NewHTTPTransport(cfg.Endpoint, &http.Client{}, cfg.MaxEventSize)
	controller := session.NewController(store, transport, logger)

	m, err := handlers.NewMain(store, controller, logger)
	if err != nil {
		panic(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(streamchat.StaticFS, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	// Create custom mux
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/clear", m.HandleClear)
	mux.HandleFunc("/sse/messages", m.HandleSSE)

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			slog.String("port", cfg.Port),
			slog.String("endpoint", cfg.Endpoint))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}
