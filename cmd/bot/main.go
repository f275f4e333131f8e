package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/subosito/gotenv"

	"github.com/daddygpt/daddygpt-bot/internal/backup"
	"github.com/daddygpt/daddygpt-bot/internal/bot"
	"github.com/daddygpt/daddygpt-bot/internal/config"
	"github.com/daddygpt/daddygpt-bot/internal/domain/authz"
	"github.com/daddygpt/daddygpt-bot/internal/domain/chatlog"
	"github.com/daddygpt/daddygpt-bot/internal/domain/prompts"
	"github.com/daddygpt/daddygpt-bot/internal/domain/settings"
	"github.com/daddygpt/daddygpt-bot/internal/domain/users"
	"github.com/daddygpt/daddygpt-bot/internal/export"
	"github.com/daddygpt/daddygpt-bot/internal/infra/db"
	httpx "github.com/daddygpt/daddygpt-bot/internal/infra/http"
	"github.com/daddygpt/daddygpt-bot/internal/infra/logger"
	"github.com/daddygpt/daddygpt-bot/internal/infra/metrics"
	"github.com/daddygpt/daddygpt-bot/internal/llm"
	"github.com/daddygpt/daddygpt-bot/internal/secret"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

// loadToken decrypts the stored bot token, prompting for it on first
// run. A decryption failure is fatal; there is no plaintext fallback.
func loadToken(store *secret.Store, log *slog.Logger) (string, error) {
	token, err := store.Load()
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, secret.ErrNoToken) {
		return "", err
	}

	fmt.Print("Bot token: ")
	line, rerr := bufio.NewReader(os.Stdin).ReadString('\n')
	if rerr != nil {
		return "", fmt.Errorf("read token: %w", rerr)
	}
	token = strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("empty token")
	}
	if err := store.Save(token); err != nil {
		return "", err
	}
	log.Info("token saved encrypted")
	return token, nil
}

// bootstrapAdmins seeds the admin set on first run; a bot with zero
// admins cannot be administered.
func bootstrapAdmins(ctx context.Context, svc *authz.Service, log *slog.Logger) error {
	n, err := svc.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	fmt.Print("Initial admin user ids (space separated): ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read admin ids: %w", err)
	}
	for _, f := range strings.Fields(strings.ReplaceAll(line, ",", " ")) {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid user id %q", f)
		}
		if _, err := svc.GrantAdmin(ctx, authz.Ref{ID: id}); err != nil {
			return err
		}
		log.Info("admin granted", "user", id)
	}
	return nil
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	usersRepo := users.NewRepo(pool)
	settingsRepo := settings.NewRepo(pool)
	promptsRepo := prompts.NewRepo(pool)
	chatlogRepo := chatlog.NewRepo(pool)
	authzSvc := authz.NewService(pool, usersRepo, authz.NewRepo(pool))
	exporter := export.NewStore(pool)

	secretStore := secret.NewStore(cfg.Secret.KeyEnv, cfg.Secret.KeyFile, cfg.Secret.TokenFile)
	token, err := loadToken(secretStore, log)
	if err != nil {
		log.Error("token unavailable", "err", err)
		return
	}

	if err := bootstrapAdmins(ctx, authzSvc, log); err != nil {
		log.Error("admin bootstrap failed", "err", err)
		return
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Error("telegram auth failed", "err", err)
		return
	}
	log.Info("telegram connected", "username", api.Self.UserName)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, reg)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	llmClient := llm.NewClient(cfg.Ollama.URL, cfg.Ollama.Model, time.Duration(cfg.Ollama.TimeoutS)*time.Second)

	b := bot.New(api, log, bot.Deps{
		Users:    usersRepo,
		Authz:    authzSvc,
		Settings: settingsRepo,
		Prompts:  promptsRepo,
		Chatlog:  chatlogRepo,
		Exporter: exporter,
		LLM:      llmClient,
		Metrics:  m,
	}, time.Duration(cfg.Bot.RateLimitSeconds*float64(time.Second)), cfg.Telegram.TriggerName)

	loc, err := time.LoadLocation(cfg.Backup.Timezone)
	if err != nil {
		log.Error("bad backup timezone", "tz", cfg.Backup.Timezone, "err", err)
		return
	}
	backupSvc := backup.NewService(exporter, settingsRepo, authzSvc, b, cfg.Backup.Dir, loc, log, m)
	b.SetBackups(backupSvc)

	sched := backup.NewScheduler(loc)
	if _, err := sched.ScheduleDaily(cfg.Backup.Time, func() {
		backupSvc.RunScheduled(context.Background())
	}); err != nil {
		log.Error("bad backup time", "time", cfg.Backup.Time, "err", err)
		return
	}
	sched.Start()
	log.Info("backup scheduled", "time", cfg.Backup.Time, "tz", cfg.Backup.Timezone)

	if err := b.Run(ctx, cfg.Telegram.PollTimeoutSec); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bot stopped", "err", err)
	}

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
