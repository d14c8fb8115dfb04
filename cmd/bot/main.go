package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"flexiseat/internal/bot"
	"flexiseat/internal/config"
	"flexiseat/internal/database"
	"flexiseat/internal/domain"
	"flexiseat/internal/google"
	"flexiseat/internal/logging"
	"flexiseat/internal/models"
	"flexiseat/internal/repository"
	"flexiseat/internal/service"
	"flexiseat/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
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
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	desks, err := loadDesks(cfg, &logger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()
	db.SetDesks(desks)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// Воркер синхронизации работает рядом с ботом: решения лидов сразу
	// уходят в таблицу.
	var sheetsWorker *worker.SheetsWorker
	if cfg.Google.GoogleCredentialsFile != "" && cfg.Google.LedgerSpreadSheetID != "" {
		sheetsService, sheetsErr := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.LedgerSpreadSheetID)
		if sheetsErr == nil {
			sheetsErr = sheetsService.TestConnection(ctx)
		}
		if sheetsErr != nil {
			logger.Warn().Err(sheetsErr).Msg("google sheets init failed, continuing without sheets")
		} else {
			sheetsWorker = worker.NewSheetsWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, &logger)
			go sheetsWorker.Start(ctx)
		}
	}

	directoryService := service.NewDirectoryService(db, nil, cfg.Auth.SuperAdminEmail, &logger)
	if err := directoryService.EnsureSuperAdmin(ctx, cfg.Auth.SeedAdminPassword); err != nil {
		logger.Error().Err(err).Msg("ensure super admin")
		return err
	}

	bookingService := service.NewBookingService(db, nil, syncWorkerOrNil(sheetsWorker), &logger)

	return startBot(ctx, cfg, db, bookingService, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	return cfg, logger, closer, nil
}

func loadDesks(cfg *config.Config, logger *zerolog.Logger) ([]models.Desk, error) {
	if len(cfg.Desks) > 0 {
		return cfg.Desks, nil
	}

	desksPath := os.Getenv("DESKS_PATH")
	if desksPath == "" {
		desksPath = "configs/desks.yaml"
	}
	data, err := os.ReadFile(desksPath)
	if err != nil {
		logger.Error().Err(err).Str("desks_path", desksPath).Msg("read floor plan")
		return nil, err
	}

	var plan struct {
		Desks []models.Desk `yaml:"desks"`
	}
	if err := yaml.Unmarshal(data, &plan); err != nil {
		logger.Error().Err(err).Str("desks_path", desksPath).Msg("parse floor plan")
		return nil, err
	}

	if err := config.ValidateDesks(plan.Desks); err != nil {
		logger.Error().Err(err).Msg("floor plan validation failed")
		return nil, err
	}
	return plan.Desks, nil
}

func syncWorkerOrNil(w *worker.SheetsWorker) domain.SyncWorker {
	if w == nil {
		return nil
	}
	return w
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	bookingService *service.BookingService,
	logger *zerolog.Logger,
) error {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Error().Msg("Задайте токен бота в config.yaml")
		return os.ErrInvalid
	}
	if len(cfg.Telegram.LeadChat) == 0 {
		logger.Error().Msg("telegram.lead_chats is empty, nobody can approve bookings")
		return os.ErrInvalid
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	telegramBot := bot.NewBot(bot.NewAPIWrapper(botAPI), cfg, db, bookingService, logger)

	logger.Info().Msg("Бот запущен...")
	telegramBot.StartPendingWatch(ctx)
	telegramBot.StartReminders(ctx)
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}
