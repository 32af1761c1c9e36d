package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookcal/internal/api"
	"bookcal/internal/cache"
	"bookcal/internal/config"
	"bookcal/internal/database"
	"bookcal/internal/events"
	"bookcal/internal/metrics"
	"bookcal/internal/models"
	"bookcal/internal/service"
	"bookcal/internal/slots"
	"bookcal/internal/waitlist"
	"bookcal/shared/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("BOOKCAL_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Logging)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	schedules := cache.NewSchedules(db, rdb, cfg.Redis.CacheTTL, logger)

	if err := config.WatchSchedules(ctx, cfg.Schedules.Path, cfg.Schedules.WatchInterval, logger, func(sc *config.SchedulesConfig) {
		syncSchedules(ctx, db, schedules, sc, logger)
	}); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Schedules.Path).Msg("load schedules error")
	}

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, logger).Start(ctx)
	}

	notifier := newNotifier(cfg.Telegram, logger)

	matcherOpts := []waitlist.Option{}
	if rdb != nil {
		matcherOpts = append(matcherOpts, waitlist.WithClaimer(cache.NewClaimer(rdb, cfg.Waitlist.ClaimTTL)))
	}
	if cfg.Waitlist.FirstComeFirstServed {
		matcherOpts = append(matcherOpts, waitlist.WithOrdering(waitlist.SortByRegistration))
	}
	matcher := waitlist.NewMatcher(db, db, notifier, logger, matcherOpts...)

	bus := events.NewEventBus(logger)
	bus.Subscribe(events.TypeSlotFreed, service.FreedIntervalHandler(matcher, logger))

	calc := slots.NewCalculator(slots.Options{
		Interval:   cfg.Slots.IntervalMinutes,
		Now:        time.Now,
		MinAdvance: cfg.MinAdvance(),
	})
	availability := service.NewAvailabilityService(schedules, db, calc)
	bookings := service.NewBookingService(db, db, schedules, bus, logger)

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if !cfg.API.Enabled {
		logger.Info().Msg("bookcal engine started without API")
		<-ctx.Done()
		return
	}

	server := api.NewHTTPServer(cfg.API, cfg.Calendar, availability, bookings, matcher, logger)
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
	}()

	logger.Info().Msg("bookcal engine started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.JSON {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func newNotifier(cfg config.TelegramConfig, logger zerolog.Logger) waitlist.Notifier {
	if cfg.BotToken == "" || cfg.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Warn().Msg("telegram.bot_token not set, waiting-list offers are only logged")
		return notify.NewLogNotifier(logger)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}
	bot.Debug = cfg.Debug

	tgCfg := notify.DefaultTelegramConfig()
	tgCfg.RatePerSecond = cfg.RatePerSecond
	tgCfg.Burst = cfg.Burst
	return notify.NewTelegramNotifier(bot, tgCfg, notify.NewMetrics(prometheus.DefaultRegisterer, "bookcal"), logger)
}

// syncSchedules writes the file's staff templates and overrides to the store.
func syncSchedules(ctx context.Context, db *database.DB, schedules *cache.Schedules, sc *config.SchedulesConfig, logger zerolog.Logger) {
	for _, staff := range sc.StaffModels() {
		if err := db.UpsertStaff(ctx, staff); err != nil {
			logger.Error().Err(err).Int64("staff_id", staff.ID).Msg("sync staff failed")
			continue
		}
		schedules.InvalidateStaff(ctx, staff.ID)
	}

	overrides := sc.OverrideModels()
	for i := range overrides {
		o := &overrides[i]
		if err := db.UpsertOverride(ctx, o); err != nil {
			logger.Error().Err(err).Str("date", models.DateKey(o.Date)).Msg("sync override failed")
			continue
		}
		schedules.InvalidateOverrides(ctx, o.Date)
	}
	logger.Info().Int("staff", len(sc.Staff)).Int("overrides", len(overrides)).Msg("schedules synced")
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
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
