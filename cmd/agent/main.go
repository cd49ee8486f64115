package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ledble-controller/internal/agent"
	"ledble-controller/internal/config"
	"ledble-controller/internal/mqtt"

	"github.com/sirupsen/logrus"
)

// These variables will be set by the build script
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON or YAML config file")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.Infof("Starting LEDBLE Controller Agent version: %s, commit: %s, built: %s", version, commit, date)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logrus.SetLevel(cfg.Level())
	mqtt.SoftwareVersion = version

	a, err := agent.NewAgent(cfg)
	if err != nil {
		logrus.Fatalf("Failed to create agent: %v", err)
	}

	go func() {
		if err := a.Run(); err != nil {
			logrus.Fatalf("Agent stopped: %v", err)
		}
	}()

	// Wait for termination signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down agent...")
	a.Shutdown()
	logrus.Info("Agent shut down gracefully.")
}
