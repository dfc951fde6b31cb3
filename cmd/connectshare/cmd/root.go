package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/alinasr783/connect-share/baas"
	"github.com/alinasr783/connect-share/cmd/connectshare/internal/config"
	"github.com/alinasr783/connect-share/internal/logging"
)

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "connectshare",
	Short: "Clinic-rental marketplace portal and account tooling",
	Long: `connectshare serves the clinic-rental web portal and manages the accounts
behind it. Settings come from flags, CONNECTSHARE_* environment variables and
an optional connectshare.yaml file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath, cmd.Flags())
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger, err = logging.Setup(cfg.Logging())
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "", "Config file (default ./connectshare.yaml)")
	f.String("redis-url", "", "Redis URL (env: CONNECTSHARE_REDIS_URL)")
	f.Bool("embedded-redis", false, "Use an in-process Redis; data is lost on exit (env: CONNECTSHARE_EMBEDDED_REDIS)")
	f.String("signing-key", "", "Access-token signing key, at least 32 bytes (env: CONNECTSHARE_SIGNING_KEY)")
	f.String("key-prefix", "", "Redis key prefix (env: CONNECTSHARE_KEY_PREFIX)")
	f.String("log-level", "", "Log level: "+logging.LevelNames()+" (env: CONNECTSHARE_LOG_LEVEL)")
	f.String("log-format", "", "Log format: text, json (env: CONNECTSHARE_LOG_FORMAT)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(profileCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openBackend connects to Redis, or starts an embedded one, and builds the auth
// service backend. The returned func releases both.
func openBackend(ctx context.Context) (*baas.Backend, func(), error) {
	bcfg, err := cfg.BackendConfig()
	if err != nil {
		return nil, nil, err
	}
	bcfg.Logger = logger

	var (
		opts    *redis.Options
		cleanup = func() {}
	)
	if cfg.EmbeddedRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("embedded redis: %w", err)
		}
		logger.Warn("using embedded redis; accounts are lost on exit", "addr", mr.Addr())
		opts = &redis.Options{Addr: mr.Addr()}
		cleanup = mr.Close
	} else {
		opts, err = redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis url: %w", err)
		}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		cleanup()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	backend, err := baas.NewBackend(rdb, bcfg)
	if err != nil {
		_ = rdb.Close()
		cleanup()
		return nil, nil, err
	}
	return backend, func() {
		_ = rdb.Close()
		cleanup()
	}, nil
}
