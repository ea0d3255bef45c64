package main

import (
	"flag"

	"github.com/LukeyBoyy/MedusaGuard/internal/config"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
	"github.com/LukeyBoyy/MedusaGuard/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the campaign configuration file")
	addr := flag.String("addr", ":8000", "listen address")
	flag.Parse()

	log := logging.Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Infof("starting campaign server with config %s", *configPath)

	if err := server.New(cfg).Run(*addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
