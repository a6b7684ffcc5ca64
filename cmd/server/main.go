package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Invalid configuration, using defaults: %v", err)
		cfg = config.Default()
	}

	// Flags override the environment
	port := flag.String("port", cfg.Server.Port, "Server port")
	stateDir := flag.String("state-dir", cfg.Persistence.StateDir, "Saved state directory (empty keeps state in memory)")
	manifestDir := flag.String("manifests", cfg.Manifests.Dir, "Component manifest directory")
	killPolicy := flag.String("kill-policy", cfg.Host.KillPolicy, "Kill policy: stop, pause or legacy")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Persistence.StateDir = *stateDir
	cfg.Manifests.Dir = *manifestDir
	cfg.Host.KillPolicy = *killPolicy
	cfg.Logging.Development = *dev
	if *dev {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	srv, err := server.NewServer(cfg, server.Options{})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
