package main

import (
	"log"

	cpumon "github.com/Antkuz17/Mickey-Hackies"
)

func main() {
	cfg := cpumon.LoadAppConfig()

	opts := []cpumon.Option{
		cpumon.WithHost(cfg.Host),
		cpumon.WithPort(cfg.Port),
	}
	if cfg.ConfigFile != "" {
		opts = append(opts, cpumon.WithConfigFile(cfg.ConfigFile))
	}

	s := cpumon.New(opts...)
	if err := s.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
