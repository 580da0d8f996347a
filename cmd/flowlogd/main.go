// Command flowlogd runs the broker: it loads configuration, wires the
// partition registry to the UDP command dispatcher, and serves until a
// termination signal arrives.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"flowlog/internal/broker"
	"flowlog/internal/config"
	"flowlog/internal/registry"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults used for any field it omits)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.PathRoot, 0755); err != nil {
		logger.Fatal("failed to create path root", zap.String("path_root", cfg.PathRoot), zap.Error(err))
	}

	reg := registry.New(cfg.PathRoot, cfg.ToPartitionConfig(), logger)
	defer reg.Close()

	brk := broker.NewBroker(cfg.ToBrokerConfig(), reg, logger)

	go func() {
		if err := brk.Start(); err != nil {
			logger.Fatal("broker failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	brk.Stop()
	logger.Info("shutdown complete")
}
