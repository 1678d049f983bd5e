package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/PoluyanbIch/DocxQuizBot/internal/config"
	"github.com/PoluyanbIch/DocxQuizBot/internal/logger"
	"github.com/PoluyanbIch/DocxQuizBot/internal/metrics"
	"github.com/PoluyanbIch/DocxQuizBot/internal/service"
	"github.com/PoluyanbIch/DocxQuizBot/internal/telegram"
)

func main() {
	// .env is optional; the token may come from the real environment
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("BOT_CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Sync()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logg.Fatal("telegram auth failed", "error", err)
	}
	api.Debug = cfg.Telegram.Debug
	logg.Info("authorised", "account", api.Self.UserName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, m.Handler()); err != nil {
				logg.Error("metrics server stopped", "error", err)
			}
		}()
	}

	// Gist backend when GITHUB_GIST_ID and GITHUB_TOKEN are set, memory otherwise
	leaderboard := service.NewLeaderboardService(cfg.Leaderboard.GistID, cfg.Leaderboard.GitHubToken, cfg.Leaderboard.HTTPTimeout, logg)

	driver := service.NewDriver(service.NewSessionStore(), service.WithShuffle(cfg.Quiz.ShuffleQuestions))
	downloader := telegram.NewDownloader(cfg.Quiz.DownloadTimeout, cfg.Quiz.MaxFileSize, cfg.Quiz.MaxConcurrentDownloads)

	bot := telegram.NewBot(api, driver, leaderboard, downloader, m, logg, telegram.Options{
		UpdateTimeout:        cfg.Telegram.UpdateTimeout,
		MaxConcurrentUpdates: cfg.Telegram.MaxConcurrentUpdates,
		LeaderboardSize:      cfg.Leaderboard.Size,
	})

	logg.Info("bot is starting")
	bot.Start(ctx)
	logg.Info("bot stopped")
}
