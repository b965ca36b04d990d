package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travelbook/internal/api"
	"travelbook/internal/bot"
	"travelbook/internal/config"
	"travelbook/internal/database"
	"travelbook/internal/events"
	"travelbook/internal/google"
	"travelbook/internal/logging"
	"travelbook/internal/metrics"
	"travelbook/internal/models"
	"travelbook/internal/notify"
	"travelbook/internal/payment"
	"travelbook/internal/repository"
	"travelbook/internal/service"
	"travelbook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	services, err := loadServices(cfg.Booking.ServicesFile, logger)
	if err != nil {
		return err
	}
	catalog, err := service.NewCatalogService(services, logging.Component(logger, "catalog"))
	if err != nil {
		logger.Error().Err(err).Msg("invalid service catalog")
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	bus := events.NewEventBus(logging.Component(logger, "events"))

	identities := service.NewIdentityService(db, bus, logging.Component(logger, "identity"))
	if err := identities.SeedAdmins(ctx, cfg.Admins); err != nil {
		logger.Error().Err(err).Msg("seed admins")
		return err
	}
	approvals := service.NewApprovalService(db, bus, logging.Component(logger, "approval"))
	gateway := payment.NewTransferGateway(db, cfg.Payment, logging.Component(logger, "payment"))
	bookings := service.NewBookingService(
		sessionRepository(ctx, cfg, redisClient, logger),
		catalog,
		identities,
		gateway,
		bus,
		cfg.Booking,
		logging.Component(logger, "booking"),
	)

	initTelegram(ctx, cfg, bus, approvals, identities, logger)
	initLedger(ctx, cfg, db, redisClient, bus, logger)

	backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
	go backup.Start(ctx)

	go watchCatalog(ctx, cfg.Booking.ServicesFile, catalog, logger)

	startMetrics(ctx, cfg, logger)

	httpServer, err := api.NewHTTPServer(cfg.API, api.Services{
		Catalog:    catalog,
		Identities: identities,
		Approvals:  approvals,
		Bookings:   bookings,
		Payments:   gateway,
		ExportDir:  cfg.Exports.Path,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("create http server")
		return err
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, catalog, identities, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

func loadServices(path string, logger *zerolog.Logger) ([]models.Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("services_path", path).Msg("read services")
		return nil, err
	}

	var servicesConfig struct {
		Services []models.Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &servicesConfig); err != nil {
		logger.Error().Err(err).Str("services_path", path).Msg("parse services")
		return nil, err
	}

	return servicesConfig.Services, nil
}

// watchCatalog reloads services.yaml on SIGHUP. A broken file keeps the old catalog.
func watchCatalog(ctx context.Context, path string, catalog *service.CatalogService, logger *zerolog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			services, err := loadServices(path, logger)
			if err != nil {
				continue
			}
			if err := catalog.Replace(services); err != nil {
				logger.Error().Err(err).Msg("catalog reload rejected")
			}
		}
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func sessionRepository(
	ctx context.Context,
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) repository.SessionRepository {
	memory := repository.NewMemorySessionRepository(cfg.Booking.SessionTTL())
	// the fallback store holds sessions too, so it is swept in both modes
	go memory.StartCleanup(ctx, cfg.Booking.SessionTTL())
	if redisClient == nil {
		logger.Info().Msg("booking sessions kept in memory")
		return memory
	}
	primary := repository.NewRedisSessionRepository(redisClient, cfg.Booking.SessionTTL())
	return repository.NewFailoverSessionRepository(primary, memory, logging.Component(logger, "sessions"))
}

func initTelegram(
	ctx context.Context,
	cfg *config.Config,
	bus *events.EventBus,
	approvals *service.ApprovalService,
	identities *service.IdentityService,
	logger *zerolog.Logger,
) {
	if !cfg.Telegram.Enabled {
		return
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	botAPI.Debug = cfg.Telegram.Debug
	logger.Info().Str("bot", botAPI.Self.UserName).Msg("telegram bot authorized")

	notifier := notify.NewNotifier(
		service.NewTelegramService(botAPI),
		cfg.Telegram.AdminChatIDs,
		logging.Component(logger, "notify"),
	)
	notifier.Subscribe(bus)

	if cfg.Telegram.ReviewBot {
		reviewBot := bot.NewBot(botAPI, approvals, identities, cfg.Admins, logging.Component(logger, "review-bot"))
		go reviewBot.Start(ctx)
	}
}

func initLedger(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	bus *events.EventBus,
	logger *zerolog.Logger,
) {
	if !cfg.Ledger.Enabled {
		return
	}

	ledgerLogger := logging.Component(logger, "ledger")
	sheets, err := google.NewLedgerSheets(ctx, cfg.Google.CredentialsFile, cfg.Google.LedgerSpreadsheetID, cfg.Ledger, ledgerLogger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without ledger")
		return
	}
	if email, err := google.ServiceAccountEmail(cfg.Google.CredentialsFile); err == nil {
		ledgerLogger.Info().Str("service_account", email).Msg("ledger spreadsheet must be shared with this account")
	}
	if err := sheets.TestConnection(ctx); err != nil {
		// строки копятся в очереди до восстановления доступа
		ledgerLogger.Warn().Err(err).Msg("ledger spreadsheet is not reachable yet")
	}

	w := worker.NewLedgerWorker(db, sheets, redisClient, worker.RetryPolicyFrom(cfg.Ledger), ledgerLogger)
	w.Subscribe(ctx, bus)
	go w.Start(ctx)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
