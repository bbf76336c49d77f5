// @title Olimpo API
// @version 1.0
// @description Servidor backend de la plataforma de olimpiadas académicas Olimpo.

// @contact.name Soporte API
// @contact.email soporte@olimpo.example.com

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"

	"olimpo_backend/internal/app"
	"olimpo_backend/internal/config"
	"olimpo_backend/pkg/configwatcher"
	"olimpo_backend/pkg/logger"
)

func main() {
	configDir := flag.String("config", "configs", "directorio del archivo de configuración")
	watchConfig := flag.Bool("watch-config", false, "recargar la configuración al cambiar el archivo")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	if *watchConfig {
		go configwatcher.WatchConfig(*configDir+"/config.yaml", application.ApplyConfig)
	}

	application.Run()
}
