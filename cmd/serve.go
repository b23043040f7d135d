package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prepdeck/interviewd/internal/ai"
	"github.com/prepdeck/interviewd/internal/ai/gemini"
	"github.com/prepdeck/interviewd/internal/interview"
	"github.com/prepdeck/interviewd/internal/logger"
	"github.com/prepdeck/interviewd/internal/secrets"
	"github.com/prepdeck/interviewd/internal/server"
	"github.com/prepdeck/interviewd/internal/session"
	"github.com/prepdeck/interviewd/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultListen = ":8080"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interviewd HTTP server",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on")

	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

// serve wires the whole stack together and blocks until shutdown.
func serve(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		config = &Config{}
	}

	logger.Info("starting the interviewd", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	store, err := buildSessionStore(ctx, config.Store, logger)
	if err != nil {
		logger.Fatal("building session store", zap.Error(err))
	}

	db, err := openStorage(ctx, config.Database)
	if err != nil {
		logger.Fatal(
			"opening database",
			zap.Error(err),
			zap.String("hint", "set DATABASE_URL environment variable or the 'database.dsn' key in the configuration file"),
		)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("migrating database", zap.Error(err))
	}

	oracle, err := buildOracle(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal(
			"building ai oracle",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE environment variable or the 'ai.gemini.api-key-file' key in the configuration file"),
		)
	}

	sessions := session.NewManager(store, logger)
	orchestrator := interview.NewOrchestrator(store, oracle, logger)
	service := interview.NewService(sessions, orchestrator, oracle, db, logger)

	listen := strings.TrimSpace(config.Listen)
	if listen == "" {
		listen = defaultListen
	}

	logger.Info("listening", zap.String("addr", listen))

	if err := server.New(service, logger).Listen(ctx, listen); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func buildSessionStore(ctx context.Context, cfg *StoreConfig, logger *zap.Logger) (session.Store, error) {
	backend := "redis"
	if cfg != nil && cfg.Backend != "" {
		backend = strings.TrimSpace(strings.ToLower(cfg.Backend))
	}

	switch backend {
	case "memory":
		logger.Warn("using in-memory session store, sessions will not survive restarts")
		return session.NewMemoryStore(), nil
	case "redis":
		opts := &redis.Options{Addr: "localhost:6379"}
		if cfg != nil && cfg.Redis != nil {
			if cfg.Redis.Addr != "" {
				opts.Addr = cfg.Redis.Addr
			}
			opts.Password = cfg.Redis.Password
			opts.DB = cfg.Redis.DB
		}

		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
		}

		logger.Info("connected to redis", zap.String("addr", opts.Addr))
		return session.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported session store backend: %s", backend)
	}
}

func openStorage(ctx context.Context, cfg *DatabaseConfig) (*storage.Storage, error) {
	src := secrets.Source{
		Name: "database dsn",
		Env:  "DATABASE_URL",
	}
	if cfg != nil {
		src.Value = cfg.DSN
		src.File = cfg.DSNFile
	}

	dsn, err := secrets.Load(src)
	if err != nil {
		return nil, err
	}

	return storage.Open(ctx, dsn)
}

func buildOracle(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Oracle, error) {
	if cfg != nil {
		provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
		if provider != "" && provider != "gemini" {
			return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
		}
	}

	src := secrets.Source{
		Name: "gemini api key",
		Env:  "GEMINI_API_KEY",
	}
	model := ""
	maxLogLength := 0
	if cfg != nil && cfg.Gemini != nil {
		src.Value = cfg.Gemini.APIKey
		src.File = cfg.Gemini.APIKeyFile
		model = cfg.Gemini.Model
		maxLogLength = cfg.Gemini.MaxLogLength
	}

	apiKey, err := secrets.Load(src)
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}

	oracleLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", model),
	)

	return gemini.NewOracle(generator, oracleLogger, maxLogLength), nil
}
