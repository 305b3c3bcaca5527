package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dfl-stack/shared/config"
	"dfl-stack/shared/scheduler"

	feedbackloop "dfl-stack/agents/feedback-loop"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agent := feedbackloop.NewFeedbackAgent(cfg)
	if err := agent.Initialize(); err != nil {
		log.Fatalf("Failed to initialize agent: %v", err)
	}

	s := scheduler.New(cfg, agent, agent.State())

	if len(os.Args) > 1 && os.Args[1] == "--once" {
		fmt.Println("Running one feedback cycle...")
		if err := s.RunOnce(ctx); err != nil {
			log.Fatalf("Failed to run: %v", err)
		}
		fmt.Println(s.Monitor().GetStatusSummary())
		return
	}

	fmt.Println("Starting scheduler...")
	if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Scheduler failed: %v", err)
	}
}
