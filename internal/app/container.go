package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/nekogravitycat/massage-booking-backend/internal/admin"
	"github.com/nekogravitycat/massage-booking-backend/internal/api"
	"github.com/nekogravitycat/massage-booking-backend/internal/auth"
	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
	"github.com/nekogravitycat/massage-booking-backend/internal/bot"
	"github.com/nekogravitycat/massage-booking-backend/internal/catalog"
	"github.com/nekogravitycat/massage-booking-backend/internal/cleanup"
	"github.com/nekogravitycat/massage-booking-backend/internal/config"
	"github.com/nekogravitycat/massage-booking-backend/internal/db"
	"github.com/nekogravitycat/massage-booking-backend/internal/gcal"
	"github.com/nekogravitycat/massage-booking-backend/internal/lock"
	"github.com/nekogravitycat/massage-booking-backend/internal/notify"
)

const (
	lockPrefix = "massage-booking:"
	lockTTL    = 30 * time.Second
)

// Container holds the initialized components that are needed externally.
type Container struct {
	Logger         *zap.Logger
	Repository     booking.Repository
	BookingService booking.Service
	Notifier       *notify.Dispatcher
	Router         *gin.Engine
	JWTManager     *auth.JWTManager

	// Bot and BotAPI are nil without TELEGRAM_BOT_TOKEN.
	Bot    *bot.Bot
	BotAPI *tgbotapi.BotAPI

	closers []func() error
}

// OpenRepository connects the configured booking store. The returned close
// function releases its connections.
func OpenRepository(ctx context.Context, cfg *config.Config) (booking.Repository, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		return booking.NewPgxRepository(pool), pool.Close, nil
	default:
		repo, err := gcal.New(ctx, gcal.Config{
			CalendarID:      cfg.CalendarID,
			CredentialsFile: cfg.CredentialsFile,
			Location:        cfg.Location,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	}
}

// LoadCatalog returns the catalog from SERVICE_CATALOG_FILE, or the built-in one.
func LoadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.ServiceCatalogFile == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.ServiceCatalogFile)
}

// RedisOpt is the asynq connection for the cleanup queue.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NewContainer initializes all modules and returns the container.
// On error every component opened so far is closed again.
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Container, err error) {
	c := &Container{Logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	// Booking store
	repo, closeRepo, err := OpenRepository(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open booking store: %w", err)
	}
	c.Repository = repo
	c.onClose(func() error { closeRepo(); return nil })

	// Service catalog
	cat, err := LoadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	// Commit lock
	var locker lock.Locker
	switch cfg.LockBackend {
	case config.LockNone:
		locker = lock.Nop{}
	case config.LockRedis:
		client, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		c.onClose(client.Close)
		locker = lock.NewRedis(client, lockPrefix, lockTTL)
	default:
		locker = lock.NewLocal()
	}

	// Telegram
	if cfg.TelegramBotToken != "" {
		if c.BotAPI, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken); err != nil {
			return nil, fmt.Errorf("connect telegram bot: %w", err)
		}
		logger.Info("telegram bot authorized", zap.String("username", c.BotAPI.Self.UserName))
	}

	// Administrator notifications
	var sinks notify.Multi
	if c.BotAPI != nil && cfg.AdminChatID != 0 {
		sinks = append(sinks, notify.NewTelegram(c.BotAPI, cfg.AdminChatID, cfg.Location))
	}
	if len(cfg.KafkaBrokers) > 0 {
		writer := notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		c.onClose(writer.Close)
		sinks = append(sinks, notify.NewKafka(writer))
	}
	if len(sinks) == 0 {
		logger.Warn("no administrator notification sink configured")
	}
	c.Notifier = notify.NewDispatcher(sinks, cfg.NotifyTimeout, logger)

	// Delayed cleanup
	var scheduler booking.CleanupScheduler
	if cfg.CleanupEnabled {
		client := asynq.NewClient(RedisOpt(cfg))
		inspector := asynq.NewInspector(RedisOpt(cfg))
		c.onClose(client.Close)
		c.onClose(inspector.Close)
		scheduler = cleanup.NewScheduler(client, inspector, cfg.CleanupQueue)
	}

	// Booking Module
	c.BookingService = booking.NewService(repo, booking.Options{
		Rules:           cfg.Rules,
		Catalog:         cat,
		DefaultDuration: cfg.DefaultDuration,
		MatchTolerance:  cfg.CancelMatchTolerance,
		Locker:          locker,
		Notifier:        c.Notifier,
		Cleanup:         scheduler,
		Logger:          logger,
	})

	// Admin Module
	passwordHasher := auth.NewBcryptPasswordHasherWithCost(cfg.BcryptCost)
	c.JWTManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)
	adminService := admin.NewService(cfg.AdminPasswordHash, passwordHasher, c.JWTManager)

	// Router
	c.Router = api.NewRouter(api.Config{
		IsProduction:     cfg.IsProduction,
		ProdOrigins:      cfg.ProdOrigins,
		BookingService:   c.BookingService,
		AdminService:     adminService,
		JWTManager:       c.JWTManager,
		Logger:           logger,
		BookRateInterval: cfg.BookRateInterval,
		BookRateBurst:    cfg.BookRateBurst,
	})

	if c.BotAPI != nil {
		c.Bot = bot.New(c.BotAPI, c.BookingService, cfg.WebAppURL, logger.Named("bot"))
	}

	return c, nil
}

func (c *Container) onClose(f func() error) {
	c.closers = append(c.closers, f)
}

// Close waits for pending notifications, then releases connections in
// reverse order of opening.
func (c *Container) Close() error {
	if c.Notifier != nil {
		c.Notifier.Wait()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
