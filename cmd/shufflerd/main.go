// Package main provides the shufflerd CLI application entry point.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"shufflerd/internal/core"
	httpserver "shufflerd/internal/http"
	"shufflerd/internal/spotify"
	"shufflerd/internal/store"
)

const managedSetCapacity = 10000

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shufflerd",
	Short: "shufflerd - play-count aware Spotify shuffle daemon",
	Long: `shufflerd is a personal background daemon that compensates for Spotify's
weak shuffle by tracking per-playlist play counts and steering playback
toward the least-played tracks through a daemon-owned shadow playlist.`,
	RunE: runShufflerd,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("spotify-redirect-url", "", "Spotify OAuth redirect URL")
	rootCmd.PersistentFlags().String("spotify-token-path", "", "path to the persisted OAuth token")
	rootCmd.PersistentFlags().String("db-path", "", "path to the play-count database")
	rootCmd.PersistentFlags().Int("queue-depth", 5, "target number of managed tracks kept queued")
	rootCmd.PersistentFlags().Int("tick-interval", 15, "reconciliation interval in seconds")
	rootCmd.PersistentFlags().Int("add-delay", 2, "delay between queue additions in seconds")
	rootCmd.PersistentFlags().String("playlist-prefix", "", "reserved name prefix for shadow playlists")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("SHUFFLERD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	if v := viper.GetString("spotify-redirect-url"); v != "" {
		cfg.Spotify.RedirectURL = v
	}
	if v := viper.GetString("spotify-token-path"); v != "" {
		cfg.Spotify.TokenPath = v
	}

	if v := viper.GetString("db-path"); v != "" {
		cfg.Store.DBPath = v
	}

	if v := viper.GetInt("queue-depth"); v > 0 {
		cfg.Shuffle.QueueDepth = v
	}
	if v := viper.GetInt("tick-interval"); v > 0 {
		cfg.Shuffle.TickInterval = time.Duration(v) * time.Second
	}
	if v := viper.GetInt("add-delay"); v > 0 {
		cfg.Shuffle.AddDelay = time.Duration(v) * time.Second
	}
	if v := viper.GetString("playlist-prefix"); v != "" {
		cfg.Shuffle.PlaylistPrefix = v
	}

	if v := viper.GetString("server-host"); v != "" {
		cfg.Server.Host = v
	}
	if v := viper.GetInt("server-port"); v != 0 {
		cfg.Server.Port = v
	}

	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runShufflerd(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting shufflerd",
		zap.String("db_path", config.Store.DBPath),
		zap.Int("queue_depth", config.Shuffle.QueueDepth),
		zap.Duration("tick_interval", config.Shuffle.TickInterval))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	playStore, err := store.Open(config.Store.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open play-count store: %w", err)
	}
	defer playStore.Close()

	spotifyClient := spotify.NewClient(&config.Spotify, logger.Named("spotify"))
	if err := spotifyClient.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to authenticate with Spotify: %w", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // Track selection doesn't require crypto-secure randomness

	session := core.NewSession()
	managed := store.NewManagedSet(managedSetCapacity, 0.001)
	syncer := core.NewSyncer(spotifyClient, playStore, logger.Named("syncer"))
	selector := core.NewSelector(playStore, rng, logger.Named("selector"))
	shadow := core.NewShadowManager(spotifyClient, config.Shuffle.PlaylistPrefix, logger.Named("shadow"))

	reconciler := core.NewReconciler(
		&config.Shuffle,
		spotifyClient,
		playStore,
		selector,
		session,
		managed,
		logger.Named("reconciler"),
	)

	controller := core.NewController(
		&config.Shuffle,
		spotifyClient,
		playStore,
		syncer,
		selector,
		shadow,
		reconciler,
		session,
		managed,
		logger.Named("controller"),
	)

	httpServer := httpserver.NewServer(&config.Server, controller, logger.Named("http"))
	reconciler.SetMetrics(httpServer)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return reconciler.Run(gCtx)
	})

	logger.Info("shufflerd started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("shufflerd stopped with error", zap.Error(err))
		return err
	}

	logger.Info("shufflerd stopped gracefully")
	return nil
}

func validateConfig() error {
	if config.Spotify.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}

	if config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required")
	}

	if config.Shuffle.QueueDepth <= 0 {
		return fmt.Errorf("queue depth must be positive")
	}

	return nil
}
