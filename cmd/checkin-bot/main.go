// Command checkin-bot runs the Discord check-in/check-out bot: it registers
// the slash commands, handles interactions, maintains one status message per
// channel, and optionally serves an ops HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hordalan/checkin-bot/internal/bot"
	"github.com/hordalan/checkin-bot/internal/config"
	httpapi "github.com/hordalan/checkin-bot/internal/http"
	"github.com/hordalan/checkin-bot/internal/jobs"
	"github.com/hordalan/checkin-bot/internal/observability"
	"github.com/hordalan/checkin-bot/internal/repo"
	"github.com/hordalan/checkin-bot/internal/services"
	"github.com/hordalan/checkin-bot/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	interactionTimeout = 10 * time.Second
	shutdownTimeout    = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("checkin-bot exited")
	}
}

func run() error {
	if envFile := os.Getenv("DISCORD_BOT_ENV"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return err
		}
	} else {
		_ = godotenv.Load()
	}

	path := os.Getenv("DISCORD_BOT_CONFIG")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if cfg.Token == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}

	logFile, err := sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}

	gormLevel := logger.Silent
	if cfg.LogLevel == "debug" {
		gormLevel = logger.Info
	}
	db, err := repo.Open(cfg.Database, repo.Options{LogLevel: gormLevel, Tracing: cfg.OTEL.Enabled})
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	h := &bot.Handler{
		Session:         dg,
		Presence:        services.NewPresenceService(db, cfg.MaxMessageRunes),
		Status:          services.NewStatusService(db, bot.Deleter{Session: dg}),
		Receipts:        bot.GormReceipts{DB: db, TTL: cfg.ReceiptTTL},
		EphemeralTTL:    cfg.EphemeralTTL(),
		Timeout:         interactionTimeout,
		MaxMessageRunes: cfg.MaxMessageRunes,
	}
	dg.AddHandler(h.OnInteraction)
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		appID := r.User.ID
		if r.Application != nil && r.Application.ID != "" {
			appID = r.Application.ID
		}
		log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("connected")
		if err := bot.Register(ctx, s, appID, cfg.GuildIDs); err != nil {
			log.Error().Err(err).Msg("command registration failed")
		}
	})

	sched, err := jobs.New(db, cfg.PruneSchedule)
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.Ops.Enabled {
		gin.SetMode(cfg.Ops.GinMode)
		r := gin.New()
		httpapi.RegisterRoutes(r, db, cfg)
		srv = httpapi.NewServer(cfg.Ops.Addr, r)
		go func() {
			log.Info().Str("addr", cfg.Ops.Addr).Msg("ops server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("ops server failed")
				stop()
			}
		}()
	}

	if err := dg.Open(); err != nil {
		shutdown(srv, sched, nil, h, shutdownTracing, db)
		return err
	}
	sched.Start()
	log.Info().Str("version", version).Strs("guilds", cfg.GuildIDs).Msg("checkin-bot running")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdown(srv, sched, dg, h, shutdownTracing, db)
	return nil
}

// shutdown releases everything run started, in reverse dependency order.
func shutdown(srv *http.Server, sched *jobs.Scheduler, dg *discordgo.Session, h *bot.Handler, tracing observability.Shutdown, db *gorm.DB) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if n := h.Close(); n > 0 {
		log.Info().Int("dropped", n).Msg("pending ephemeral cleanups stopped")
	}

	if dg != nil {
		if err := dg.Close(); err != nil {
			log.Warn().Err(err).Msg("discord close")
		}
	}
	if err := sched.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("scheduler stop")
	}
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("ops server shutdown")
		}
	}
	if err := tracing(ctx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
