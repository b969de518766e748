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

// Package generate produces assistant replies. With a configured credential
// it makes exactly one call to a hosted completion API; without one, or on
// any upstream failure, it substitutes a deterministic keyword-matched
// canned response. Generate never returns an error to the caller.
package generate

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/ai-chatbot-widget/internal/prompt"
)

const (
	// DefaultModel is the completion model used when none is configured
	DefaultModel = "llama-3.1-8b-instant"
	// DefaultMaxTokens bounds the completion length
	DefaultMaxTokens = 150
	// DefaultTemperature keeps replies focused
	DefaultTemperature = 0.5
	// DefaultTimeout bounds the upstream call client-side
	DefaultTimeout = 30 * time.Second
)

// ReplySource records which path produced a reply
type ReplySource string

const (
	// SourceModel means the hosted completion API produced the text
	SourceModel ReplySource = "model"
	// SourceFallback means the deterministic canned table produced the text
	SourceFallback ReplySource = "fallback"
)

// Reply is a generated assistant response
type Reply struct {
	Text    string
	Routing *RoutingOffer
	Source  ReplySource
}

// Request carries everything needed to generate one reply
type Request struct {
	Message      string
	Prompt       prompt.Prompt
	Mode         prompt.Mode
	HasGrounding bool
}

// Config holds generator settings
type Config struct {
	APIKey      string
	Endpoint    string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// completionClient abstracts the go-openai client for testing
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator produces replies via the completion API with a deterministic
// offline fallback
type Generator struct {
	client      completionClient
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	logger      *zap.Logger
}

// New creates a generator. An empty APIKey selects offline mode: every
// reply comes from the fallback table.
func New(cfg Config, logger *zap.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var client completionClient
	if cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			clientConfig.BaseURL = cfg.Endpoint
		}
		client = openai.NewClientWithConfig(clientConfig)
		logger.Info("Completion client initialized",
			zap.String("model", cfg.Model),
			zap.String("endpoint", cfg.Endpoint))
	} else {
		logger.Info("No completion API credential configured, running in offline fallback mode")
	}

	return &Generator{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Offline reports whether the generator runs without an upstream client
func (g *Generator) Offline() bool {
	return g.client == nil
}

// Generate produces a reply for the request. It always returns a usable
// reply: upstream errors, empty completions and missing credentials all
// resolve to the deterministic fallback path.
func (g *Generator) Generate(ctx context.Context, req Request) *Reply {
	text, source := g.generateText(ctx, req)

	reply := &Reply{Text: text, Source: source}
	if req.Mode == prompt.ModeAgent {
		reply.Routing = DetectRouting(req.Message, text)
	}

	return reply
}

// generateText returns the reply text and which path produced it
func (g *Generator) generateText(ctx context.Context, req Request) (string, ReplySource) {
	if g.client == nil {
		return FallbackResponse(req.Message, req.HasGrounding), SourceFallback
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Prompt.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.Prompt.System,
	})
	for _, turn := range req.Prompt.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// Exactly one attempt, no retries: the fallback path is always safe,
	// so a reachable model is an enhancement rather than a dependency.
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		g.logger.Warn("Completion API call failed, using fallback",
			zap.Error(err),
			zap.String("mode", string(req.Mode)))
		return FallbackResponse(req.Message, req.HasGrounding), SourceFallback
	}

	if len(resp.Choices) == 0 {
		g.logger.Warn("Completion API returned no choices, using fallback")
		return FallbackResponse(req.Message, req.HasGrounding), SourceFallback
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		g.logger.Warn("Completion API returned empty text, using fallback")
		return FallbackResponse(req.Message, req.HasGrounding), SourceFallback
	}

	g.logger.Debug("Completion succeeded",
		zap.String("model", g.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return text, SourceModel
}
