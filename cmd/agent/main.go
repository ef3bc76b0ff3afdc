package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fernwell/reasonloop/internal/config"
	"github.com/fernwell/reasonloop/internal/orchestrator"
	"github.com/fernwell/reasonloop/internal/provider"
	"github.com/fernwell/reasonloop/internal/provider/anthropic"
	"github.com/fernwell/reasonloop/internal/provider/openai"
	"github.com/fernwell/reasonloop/memory"
	"github.com/fernwell/reasonloop/tools"
)

func main() {
	cfgPath := os.Getenv("RLOOP_CONFIG")
	if cfgPath == "" {
		cfgPath = config.DefaultPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	p, err := buildProvider(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Load prior conversation if it exists
	log, err := memory.LoadTranscript(cfg.TranscriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load persisted transcript: %v\n", err)
		log = memory.NewLog()
	}

	orch := orchestrator.New(p, tools.Registry(), cfg.MaxToolRounds)

	// Graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("Chat with %s (%s, effort=%s; Ctrl-C to quit)\n", cfg.Provider, cfg.Model, cfg.ReasoningEffort)

	// stdin reader goroutine -> lines into channel
	inputCh := make(chan string)
	go func() {
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}
		close(inputCh)
	}()

	var session provider.Usage

outer:
	for {
		fmt.Print("\u001b[94mYou\u001b[0m: ")
		var (
			user string
			ok   bool
		)
		select {
		case <-ctx.Done():
			break outer
		case user, ok = <-inputCh:
			if !ok {
				break outer
			}
		}

		final, usage, err := orch.RunTurn(ctx, log, user)
		session.Add(usage)
		if err != nil {
			switch {
			case errors.Is(err, orchestrator.ErrNoProgress):
				fmt.Fprintln(os.Stderr, "error: model made no progress; try rephrasing")
			case errors.Is(err, orchestrator.ErrRoundLimit):
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			default:
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		} else {
			fmt.Printf("\u001b[93mAgent\u001b[0m: %s\n", final)
			fmt.Printf("\u001b[90mtokens: in=%d out=%d reasoning=%d cached=%d (session in=%d out=%d)\u001b[0m\n",
				usage.InputTokens, usage.OutputTokens, usage.ReasoningTokens, usage.CachedTokens,
				session.InputTokens, session.OutputTokens)
		}

		if err := memory.SaveTranscript(cfg.TranscriptPath, log); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to save transcript: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: stdin read error: %v\n", err)
	}
}

func buildProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, errors.New("missing OPENAI_API_KEY; export it before running")
		}
		return openai.NewClient(key, cfg.Model, cfg.ReasoningEffort, cfg.BaseURL), nil
	case "anthropic":
		// SDK also reads the key from the env
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return nil, errors.New("missing ANTHROPIC_API_KEY; export it before running")
		}
		return anthropic.NewClient("", cfg.Model, cfg.ReasoningEffort), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
