package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"olimpo_backend/internal/config"
	"olimpo_backend/internal/controller"
	"olimpo_backend/internal/repository"
	"olimpo_backend/internal/service"
	"olimpo_backend/pkg/database"
	"olimpo_backend/pkg/logger"
	"olimpo_backend/pkg/monitoring"
	"olimpo_backend/pkg/security"
	"olimpo_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	sweepCancel     context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	evaluation  *repository.EvaluationRepository
	participant *repository.ParticipantRepository
	question    *repository.QuestionRepository
	quota       *repository.QuotaRepository
	result      *repository.ResultRepository
	monitor     *repository.MonitorRepository
	advancement *repository.AdvancementRepository
}

type services struct {
	ledger  *service.LedgerService
	result  *service.ResultService
	ranking *service.RankingService
	monitor *service.MonitorService
	sweep   *service.SweepService
	hub     *service.MonitorHub
}

type controllers struct {
	evaluation *controller.EvaluationController
	exam       *controller.ExamController
	monitor    *controller.MonitorController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig swaps in the hot-reloadable sections of a freshly loaded
// config. Structural settings (port, database, redis) keep their boot values.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Config.Olympiad = cfg.Olympiad
	a.Config.Monitor = cfg.Monitor
	a.Config.RateLimit = cfg.RateLimit
	logger.Log.Info("configuration reloaded",
		zap.Int("active_year", cfg.Olympiad.ActiveYear),
		zap.Int("stage_count", cfg.Olympiad.StageCount))
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		evaluation:  repository.NewEvaluationRepository(db),
		participant: repository.NewParticipantRepository(db),
		question:    repository.NewQuestionRepository(db),
		quota:       repository.NewQuotaRepository(db),
		result:      repository.NewResultRepository(db),
		monitor:     repository.NewMonitorRepository(db),
		advancement: repository.NewAdvancementRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.hub = service.NewMonitorHub(rdb)
	go s.hub.Run()

	s.ledger = service.NewLedgerService(repos.quota, repos.evaluation)
	s.result = service.NewResultService(repos.result, repos.question, repos.evaluation, s.ledger)
	s.ranking = service.NewRankingService(repos.result, repos.evaluation, repos.participant, repos.advancement)
	s.monitor = service.NewMonitorService(repos.monitor, repos.evaluation, s.result, s.ledger, s.hub)
	s.sweep = service.NewSweepService(repos.monitor, repos.evaluation, s.result, s.monitor, s.hub, cfg.Monitor)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB) *controllers {
	return &controllers{
		evaluation: controller.NewEvaluationController(repos.evaluation, s.ranking, s.ledger, a.Config),
		exam:       controller.NewExamController(s.monitor, s.result, s.ranking, repos.participant, s.hub, a.Config),
		monitor:    controller.NewMonitorController(s.monitor, s.hub),
		health:     controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	ctx, cancel := context.WithCancel(context.Background())
	a.sweepCancel = cancel
	s.sweep.Start(ctx)
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg.Server.Mode)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, repos, db)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("olimpo-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, cfg)

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop the sweep loops before the hub so nothing broadcasts into a
	// closed shard.
	if a.sweepCancel != nil {
		a.sweepCancel()
	}
	if a.services != nil && a.services.hub != nil {
		a.services.hub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
