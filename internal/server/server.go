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

// Package server wires the HTTP API: conversation turns, the playground,
// site scraping, document upload and the embeddable widget script.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/ai-chatbot-widget/internal/config"
	"github.com/your-org/ai-chatbot-widget/internal/generate"
	"github.com/your-org/ai-chatbot-widget/internal/health"
	"github.com/your-org/ai-chatbot-widget/internal/ingest"
	"github.com/your-org/ai-chatbot-widget/internal/scraper"
	"github.com/your-org/ai-chatbot-widget/internal/store"
)

// Version is the reported service version
const Version = "1.0.0"

// Server holds the wired components behind the HTTP API
type Server struct {
	config    *config.Config
	logger    *zap.Logger
	store     *store.Store
	scraper   *scraper.Scraper
	extractor *ingest.Extractor
	generator *generate.Generator
	health    *health.Manager
}

// New wires a server from its components
func New(cfg *config.Config, st *store.Store, sc *scraper.Scraper,
	ex *ingest.Extractor, gen *generate.Generator, logger *zap.Logger) *Server {

	healthManager := health.NewManager("chatwidget", Version, logger)
	healthManager.AddChecker("store", health.PingChecker(st.Ping))

	llmStatus := health.StatusHealthy
	llmMeta := map[string]interface{}{"mode": "model", "model": cfg.LLM.Model}
	if gen.Offline() {
		// Offline mode is degraded, not broken: fallback replies still work
		llmStatus = health.StatusDegraded
		llmMeta = map[string]interface{}{"mode": "offline"}
	}
	healthManager.AddChecker("llm", health.StaticChecker(llmStatus, llmMeta))

	return &Server{
		config:    cfg,
		logger:    logger,
		store:     st,
		scraper:   sc,
		extractor: ex,
		generator: gen,
		health:    healthManager,
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(s.cors())

	router.GET("/health", s.handleHealth)
	router.GET("/widget.js", s.handleWidgetScript)
	router.GET("/widget-embed", s.handleWidgetEmbed)

	api := router.Group("/api")
	{
		api.POST("/chat", s.handleChat)
		api.GET("/conversations", s.handleListConversations)
		api.POST("/conversations/:sessionId/close", s.handleCloseConversation)
		api.POST("/playground", s.handlePlayground)
		api.POST("/scrape", s.handleScrape)
		api.POST("/upload", s.handleUpload)
	}

	return router
}

// Run starts the HTTP server on the configured port
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	s.logger.Info("Starting chatwidget server",
		zap.String("addr", addr),
		zap.Bool("llm_offline", s.generator.Offline()))

	return s.Router().Run(addr)
}

// requestLogger logs one line per request with latency and status
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// cors allows the widget iframe and dashboard to call the API cross-origin
func (s *Server) cors() gin.HandlerFunc {
	origin := s.config.Server.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// handleHealth reports overall service health with dependency detail
func (s *Server) handleHealth(c *gin.Context) {
	result := s.health.Check(c.Request.Context())

	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, result)
}
