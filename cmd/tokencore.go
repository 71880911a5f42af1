package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/tokenlab/tokencore/pkg/registry"
	"github.com/tokenlab/tokencore/pkg/server"
)

// fileConfig is the optional YAML configuration; flags override it.
type fileConfig struct {
	Port       string        `yaml:"port"`
	DataFile   string        `yaml:"data_file"`
	MaxHistory int           `yaml:"max_history"`
	AutoSave   time.Duration `yaml:"auto_save"`
	Debug      bool          `yaml:"debug"`
}

func main() {
	var (
		port       = flag.String("port", "8080", "Server port")
		dataFile   = flag.String("data-file", "tokencore_data.tkdb", "Data file path for persistence")
		maxHistory = flag.Int("max-history", 1000, "Maximum retained change entries")
		autoSave   = flag.Duration("auto-save", 0, "Per-session auto-save interval (e.g. 30s). 0 disables.")
		configPath = flag.String("config", "", "Optional YAML config file (flags override it)")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		showHelp   = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ntokencore is the data-consistency core for a design-token editor.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                  # Start with defaults\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090 -auto-save 30s        # Custom port, auto-save sessions\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config tokencore.yaml           # Load settings from a config file\n", os.Args[0])
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)

	if *configPath != "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config file")
		}
		applyConfig(cfg, port, dataFile, maxHistory, autoSave, debug)
		logger.Info().Str("path", *configPath).Msg("loaded config file")
	}
	if *debug {
		logger = logger.Level(zerolog.DebugLevel)
	}

	regOptions := []registry.Option{
		registry.WithDataFile(*dataFile),
		registry.WithMaxHistory(*maxHistory),
		registry.WithLogger(logger),
	}
	if *autoSave > 0 {
		regOptions = append(regOptions, registry.WithAutoSave(*autoSave))
		logger.Info().Dur("interval", *autoSave).Msg("session auto-save enabled")
	}

	reg, err := registry.New(regOptions...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize services")
	}

	srv := server.NewServer(reg, logger)
	httpServer := &http.Server{
		Addr:    ":" + *port,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info().Str("port", *port).Str("data_file", *dataFile).Msg("tokencore listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown: stop HTTP, then flush state.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	if err := reg.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to flush state")
	}
	logger.Info().Msg("shutdown complete")
}

func loadConfig(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return &cfg, nil
}

// applyConfig fills in settings the user did not pass as flags.
func applyConfig(cfg *fileConfig, port, dataFile *string, maxHistory *int, autoSave *time.Duration, debug *bool) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if cfg.Port != "" && !set["port"] {
		*port = cfg.Port
	}
	if cfg.DataFile != "" && !set["data-file"] {
		*dataFile = cfg.DataFile
	}
	if cfg.MaxHistory > 0 && !set["max-history"] {
		*maxHistory = cfg.MaxHistory
	}
	if cfg.AutoSave > 0 && !set["auto-save"] {
		*autoSave = cfg.AutoSave
	}
	if cfg.Debug && !set["debug"] {
		*debug = true
	}
}
