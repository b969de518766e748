// Copyright 2025 AI Chatbot Widget Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides the chat widget backend service. It serves the
// embeddable widget script, the visitor chat API, the playground and the
// owner dashboard endpoints from a single process.
package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/ai-chatbot-widget/internal/config"
	"github.com/your-org/ai-chatbot-widget/internal/generate"
	"github.com/your-org/ai-chatbot-widget/internal/ingest"
	"github.com/your-org/ai-chatbot-widget/internal/scraper"
	"github.com/your-org/ai-chatbot-widget/internal/server"
	"github.com/your-org/ai-chatbot-widget/internal/store"
)

func main() {
	var configPath string
	var port int

	rootCmd := &cobra.Command{
		Use:   "chatwidget-server",
		Short: "AI chatbot widget backend",
		Long: "Runs the chat widget backend: visitor chat with conversation " +
			"persistence, prompt playground, website scraping and document upload.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath, port)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file (default: search ./configs and .)")
	rootCmd.Flags().IntVar(&port, "port", 0, "Override the configured HTTP port")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, portOverride int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("service", "chatwidget"),
		zap.Int("port", masked.Server.Port),
		zap.String("db_path", masked.Store.DBPath),
		zap.String("llm_endpoint", masked.LLM.Endpoint),
		zap.String("llm_model", masked.LLM.Model),
		zap.String("llm_api_key", masked.LLM.APIKey),
		zap.Duration("scrape_cache_ttl", masked.Scraper.CacheTTL),
	)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := store.New(cfg.Store.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}()

	sc := scraper.New(scraper.Config{
		Timeout:          cfg.Scraper.Timeout,
		MaxContentLength: cfg.Scraper.MaxContentLength,
		UserAgent:        cfg.Scraper.UserAgent,
	}, logger)

	ex := ingest.New(cfg.Upload.MaxFileSize, logger)

	genCfg := generate.Config{
		Endpoint:    cfg.LLM.Endpoint,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: float32(cfg.LLM.Temperature),
		Timeout:     cfg.LLM.Timeout,
	}
	if cfg.HasAPIKey() {
		genCfg.APIKey = cfg.LLM.APIKey
	}
	gen := generate.New(genCfg, logger)

	srv := server.New(cfg, st, sc, ex, gen, logger)
	return srv.Run()
}

// initializeLogger creates a logger based on configuration settings
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if cfg.Logging.Output == "file" {
		zapConfig.OutputPaths = []string{"chatwidget.log"}
		zapConfig.ErrorOutputPaths = []string{"chatwidget.log"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}
