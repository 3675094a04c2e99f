package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/Cumplimiento-api/internal/application/compliance"
	"github.com/jhoicas/Cumplimiento-api/internal/application/dto"
	"github.com/jhoicas/Cumplimiento-api/internal/application/ledger"
	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/internal/application/transmission"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/repository"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/cache"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/countries"
	infradian "github.com/jhoicas/Cumplimiento-api/internal/infrastructure/dian"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/email"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/memory"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/metrics"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/platform"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/vies"
	httpRouter "github.com/jhoicas/Cumplimiento-api/internal/interfaces/http"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
	"github.com/jhoicas/Cumplimiento-api/pkg/config"
	"github.com/jhoicas/Cumplimiento-api/pkg/logger"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	clk := clock.System{}
	promMetrics := metrics.New(prometheus.DefaultRegisterer)

	store, err := countries.Load(cfg.Compliance.CountriesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("tabla de países")
	}
	log.Info().Int("countries", len(store.Codes())).Msg("tabla de países cargada")

	// Caché compartida (Redis) o local al proceso
	var (
		sharedCache ports.Cache
		redisClient *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer redisClient.Close()
		sharedCache = cache.NewRedis(redisClient, cfg.App.Name)
	} else {
		sharedCache = cache.NewMemory(clk)
	}

	// Persistencia de la numeración y de las credenciales
	var (
		pool         *pgxpool.Pool
		numberRepo   repository.NumberingRepository
		settingsRepo repository.ComplianceSettingsRepository
	)
	if cfg.Compliance.NumberingStore == "memory" {
		log.Warn().Msg("numeración en memoria: los consecutivos se pierden al reiniciar")
		numberRepo = memory.NewNumberingRepository()
		settingsRepo = memory.NewComplianceSettingsRepository()
	} else {
		pool, err = postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("esquema de cumplimiento")
		}
		numberRepo = postgres.NewNumberingRepository(pool)
		settingsRepo = postgres.NewComplianceSettingsRepository(pool)
	}

	// Motor de decisión
	var validator compliance.TaxIDValidator
	if !cfg.VIES.Disabled {
		validator = vies.NewClient(cfg.VIES.URL, cfg.VIES.Timeout, log.Component("vies"))
	}
	checker := compliance.NewTaxIDChecker(validator, sharedCache, cfg.VIES.CacheTTL, promMetrics, log.Component("taxid"))
	complianceSvc := compliance.NewService(store,
		compliance.NewContextBuilder(store, checker, log.Component("context")),
		compliance.NewRuleResolver(store, log.Component("rules")),
		log.Component("compliance"))

	ledgerSvc := ledger.NewService(numberRepo, store, clk, promMetrics, log.Component("ledger"))
	correctionSvc := compliance.NewCorrectionService(store, ledgerSvc, log.Component("corrections"))

	// Estrategias de transmisión: DIAN, plataformas REST y email como respaldo
	var dianSubmitter infradian.Submitter
	if cfg.DIAN.AppEnv != infradian.AppEnvDev && cfg.DIAN.AppEnv != "" {
		soap, err := infradian.NewSOAPClient(cfg.DIAN.AppEnv, cfg.DIAN.TestSetID, "")
		if err != nil {
			log.Fatal().Err(err).Msg("cliente SOAP DIAN")
		}
		dianSubmitter = soap
	}
	platformHTTP := &http.Client{Timeout: cfg.Resilience.CallTimeout}
	credentials := platform.NewCredentialResolver(settingsRepo, cfg.Platforms)
	tokens := platform.NewTokenSource(platformHTTP, sharedCache, clk, log.Component("tokens"))

	registry, err := transmission.NewRegistry(
		email.NewStrategy(cfg.SMTP, nil, clk, log.Component("email")),
		infradian.NewStrategy(cfg.DIAN.AppEnv, dianSubmitter, clk, log.Component("dian")),
		platform.NewRESTStrategy(config.RESTPlatforms, credentials, tokens, platformHTTP, clk, log.Component("rest")),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("registro de estrategias")
	}
	dispatcher := transmission.NewDispatcher(registry, dispatcherConfig(cfg.Resilience), clk, promMetrics, log.Component("dispatcher"))
	log.Info().Strs("strategies", dispatcher.Platforms()).Msg("estrategias de transmisión registradas")

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.Resilience.CallTimeout * time.Duration(cfg.Resilience.MaxAttempts+1),
		IdleTimeout:  time.Second * 60,
		BodyLimit:    20 * 1024 * 1024,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Cumplimiento API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		out := dto.HealthResponse{Status: "ok", Database: "disabled", Cache: "memory", Countries: len(store.Codes())}
		status := fiber.StatusOK
		if pool != nil {
			out.Database = "ok"
			if err := pool.Ping(c.UserContext()); err != nil {
				out.Database, out.Status, status = "down", "degraded", fiber.StatusServiceUnavailable
			}
		}
		if redisClient != nil {
			out.Cache = "ok"
			if err := redisClient.Ping(c.UserContext()).Err(); err != nil {
				// la caché es prescindible: se degrada pero sigue sirviendo
				out.Cache, out.Status = "down", "degraded"
			}
		}
		return c.Status(status).JSON(out)
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Compliance:   complianceSvc,
		Corrections:  correctionSvc,
		Ledger:       ledgerSvc,
		Dispatcher:   dispatcher,
		SettingsRepo: settingsRepo,
		Features:     cfg.Features,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// dispatcherConfig traslada la configuración de resiliencia; los ceros conservan los valores
// por defecto.
func dispatcherConfig(rc config.ResilienceConfig) transmission.Config {
	out := transmission.DefaultConfig()
	if rc.FailureThreshold > 0 {
		out.Breaker.FailureThreshold = rc.FailureThreshold
	}
	if rc.ResetTimeout > 0 {
		out.Breaker.ResetTimeout = rc.ResetTimeout
	}
	if rc.HalfOpenMaxAttempts > 0 {
		out.Breaker.HalfOpenMaxAttempts = rc.HalfOpenMaxAttempts
	}
	retry := resilience.DefaultRetryPolicy()
	if rc.MaxAttempts > 0 {
		retry.MaxAttempts = rc.MaxAttempts
	}
	if rc.InitialDelay > 0 {
		retry.InitialDelay = rc.InitialDelay
	}
	if rc.MaxDelay > 0 {
		retry.MaxDelay = rc.MaxDelay
	}
	if rc.Multiplier > 0 {
		retry.Multiplier = rc.Multiplier
	}
	out.Retry = retry
	if rc.StatusMaxAttempts > 0 {
		out.StatusMaxAttempts = rc.StatusMaxAttempts
	}
	if rc.CallTimeout > 0 {
		out.CallTimeout = rc.CallTimeout
	}
	out.RatePerSecond = rc.RatePerSecond
	return out
}
