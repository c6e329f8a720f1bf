package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/x/term"

	"tether/agent"
	"tether/config"
	"tether/provider"
	"tether/storage"
	"tether/ui"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	showVersion := flag.Bool("version", false, "print the version and exit")
	plain := flag.Bool("plain", false, "print replies without markdown styling")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tether %s (%s)\n", Version, License)
		return
	}

	if err := run(*plain); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(plain bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog := config.NewLogger(cfg.DataDir())
	defer closeLog()
	logger.Info("starting", "version", Version, "provider", cfg.Provider, "model", cfg.Model)

	client, err := provider.NewClient(cfg.ProviderConfig(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repl *ui.REPL
	a, err := agent.New(ctx, agent.Options{
		Client:       client,
		Persistence:  storage.Open(cfg.DataDir(), cfg.Namespace, logger),
		Namespace:    cfg.Namespace,
		SystemPrompt: cfg.SystemPrompt,
		Manifests:    cfg.Extensions,
		Prompts:      cfg.Prompts,
		InputHandler: func(ctx context.Context, question string) (string, error) {
			return repl.Ask(ctx, question)
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}

	width := 80
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		width = w
	}
	repl = ui.NewREPL(a, os.Stdin, os.Stdout, ui.Options{
		Width:  width,
		Plain:  plain || !term.IsTerminal(os.Stdout.Fd()),
		Logger: logger,
	})

	// Ctrl+C aborts a running turn; at the prompt it exits.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigs {
			if sig == os.Interrupt && repl.Interrupt() {
				continue
			}
			cancel()
			_ = os.Stdin.Close()
			return
		}
	}()

	runErr := repl.Run(ctx)
	signal.Stop(sigs)

	if err := a.Close(context.Background()); err != nil {
		logger.Error("failed to close agent", "err", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
