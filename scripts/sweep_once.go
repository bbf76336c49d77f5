// Manual trigger for the maintenance sweeps.
//
// Expiry and stale-session cleanup run inside the main application as
// periodic background tasks. This script forces a single pass, for example
// after the service was down across an evaluation deadline.
//
// Usage: go run scripts/sweep_once.go
package main

import (
	"log"

	"olimpo_backend/internal/config"
	"olimpo_backend/internal/repository"
	"olimpo_backend/internal/service"
	"olimpo_backend/pkg/database"
	"olimpo_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.InitLogger(cfg.Server.Mode)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	monitors := repository.NewMonitorRepository(db)
	evaluations := repository.NewEvaluationRepository(db)
	questions := repository.NewQuestionRepository(db)
	quotas := repository.NewQuotaRepository(db)
	results := repository.NewResultRepository(db)

	ledger := service.NewLedgerService(quotas, evaluations)
	resultSvc := service.NewResultService(results, questions, evaluations, ledger)
	monitorSvc := service.NewMonitorService(monitors, evaluations, resultSvc, ledger, nil)
	sweep := service.NewSweepService(monitors, evaluations, resultSvc, monitorSvc, nil, cfg.Monitor)

	expired, err := sweep.SweepExpiredAttempts()
	if err != nil {
		log.Fatalf("expiry sweep: %v", err)
	}
	purged, err := sweep.SweepStaleSessions()
	if err != nil {
		log.Fatalf("stale sweep: %v", err)
	}
	log.Printf("done: %d attempts expired, %d evaluations purged", expired, purged)
}
