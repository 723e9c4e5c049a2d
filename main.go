package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/directors-cut/server/internal/core"
	"github.com/directors-cut/server/internal/director"
	"github.com/directors-cut/server/internal/emotion"
	"github.com/directors-cut/server/internal/gemini"
	"github.com/directors-cut/server/internal/narrator"
	"github.com/directors-cut/server/internal/pipeline"
	"github.com/directors-cut/server/internal/server"
	"github.com/directors-cut/server/internal/session"
	"github.com/directors-cut/server/internal/story"
	logx "github.com/directors-cut/server/pkg/logger"
	pkgredis "github.com/directors-cut/server/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig defines all configurable parameters for the server, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string        `envconfig:"APP_ENV" default:"development"`
	StoryPath   string        `envconfig:"STORY_PATH" default:"story.json"`
	SessionTTL  time.Duration `envconfig:"SESSION_STATE_TTL" default:"24h"`

	// Infrastructure
	Server server.Config
	Redis  pkgredis.Config

	// Generation
	Gemini   gemini.Config
	Pipeline pipeline.Config
}

func main() {
	ctx := context.Background()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.Opts{Environment: core.ParseEnvironment(cfg.Environment)})

	graph, err := story.Load(cfg.StoryPath)
	if err != nil {
		logx.Fatal().Err(err).Str("path", cfg.StoryPath).Msg("failed to load story")
	}
	logx.Info().Int("scenes", graph.Len()).Str("path", cfg.StoryPath).Msg("story loaded")

	clients, err := gemini.NewClients(ctx, cfg.Gemini)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise Gemini clients")
	}

	var store session.StateStore = session.NewMemoryStore()
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New()
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to initialise Redis client")
		}
		defer rdb.Close()
		store = session.NewRedisStateStore(rdb, cfg.SessionTTL)
		logx.Info().Dur("ttl", cfg.SessionTTL).Msg("session state persisted to redis")
	} else {
		logx.Info().Msg("redis not configured, session state held in memory")
	}

	deps := session.Deps{
		Graph:      graph,
		Classifier: emotion.NewGeminiClassifier(clients),
		Director:   director.New(director.NewGeminiAdvisor(clients)),
		Narrator:   narrator.New(narrator.NewGeminiRewriter(clients)),
		Generator:  pipeline.NewGenerator(pipeline.NewGeminiBackend(clients, cfg.Pipeline), graph, cfg.Pipeline),
		Store:      store,
	}

	srv := server.New(cfg.Server, deps, session.NewRegistry())

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.ListenAndServe(runCtx); err != nil {
		logx.Fatal().Err(err).Msg("server exited")
	}
}
