package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"vexdb/internal/config"
	"vexdb/internal/heartbeat"
	"vexdb/internal/log"
	"vexdb/internal/server"
)

func main() {
	configPath := flag.String("config", "configs/store.example.yaml", "path to store config")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Errorf("load config: %v", err)
		os.Exit(1)
	}
	log.Init(cfg.Log)
	defer log.Flush()

	var coordinator heartbeat.Coordinator
	client, err := server.NewCoordinatorClient(cfg.Coordinator.Address)
	if err != nil {
		log.Errorf("connect coordinator: %v", err)
		os.Exit(1)
	}
	if client != nil {
		coordinator = client
		defer func() { _ = client.Close() }()
	}

	srv, err := server.New(cfg, coordinator)
	if err != nil {
		log.Errorf("build server: %v", err)
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		log.Errorf("start server: %v", err)
		srv.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	srv.Stop()
}
