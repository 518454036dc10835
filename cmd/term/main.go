package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MegaGrindStone/stream-chat/internal/config"
	"github.com/MegaGrindStone/stream-chat/internal/conversation"
	"github.com/MegaGrindStone/stream-chat/internal/logging"
	"github.com/MegaGrindStone/stream-chat/internal/session"
	"github.com/fatih/color"
)

const (
	clearCommand = "/clear"
	quitCommand  = "/quit"
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
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	// Standard output is the chat itself, so logs always go to a file.
	if cfg.Logging.File == "" {
		cfg.Logging.File = defaultLogPath()
	}
	logger, logCloser, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := conversation.NewStore()
	controller := session.NewController(store, session.NewHTTPTransport(cfg.Endpoint, &http.Client{}, cfg.MaxEventSize), logger)

	p := newPrinter(color.Output)
	unsubscribe := store.Subscribe(p.observe)
	defer unsubscribe()

	color.New(color.FgCyan).Printf("Connected to %s. Type %s to clear the history, %s to exit.\n",
		cfg.Endpoint, clearCommand, quitCommand)

	if err := run(ctx, bufio.NewScanner(os.Stdin), store, controller); err != nil {
		logger.Error("Terminal session ended", slog.String("err", err.Error()))
		color.Red("Error: %v\n", err)
	}
	controller.Cancel()
}

// run reads commands and requests from scanner until /quit, the end of input or ctx is done. Input is
// still read while an answer streams, so /clear and /quit work mid-answer; other lines are ignored
// until the answer ends.
func run(ctx context.Context, scanner *bufio.Scanner, store *conversation.Store, controller *session.Controller) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	// done is the open session's Done channel, nil when idle.
	var done <-chan struct{}
	for {
		if done == nil {
			fmt.Print("> ")
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			done = nil
			continue
		case l, ok := <-lines:
			if !ok {
				return scanner.Err()
			}
			line = l
		}

		switch strings.TrimSpace(line) {
		case quitCommand:
			return nil
		case clearCommand:
			controller.Cancel()
			store.Clear()
			continue
		}

		if s, ok := controller.Start(ctx, line); ok {
			done = s.Done()
		}
	}
}

func defaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return filepath.Join(".streamchat", "term.log")
	}
	return filepath.Join(dir, "streamchat", "term.log")
}
