package main

import (
	"log"
	_ "time/tzdata" // schedule and provider day boundaries use Europe/Moscow

	"wb-seller-stats/app"
	"wb-seller-stats/config"
	"wb-seller-stats/logger"
)

func main() {
	// Load config from .env file
	cfg := config.LoadFromEnv()

	appLog, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal(err)
	}

	// Create and start app
	application := app.New(cfg, appLog)
	if err := application.Start(); err != nil {
		appLog.Fatal(err)
	}
}
