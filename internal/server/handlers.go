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

package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/ai-chatbot-widget/internal/generate"
	"github.com/your-org/ai-chatbot-widget/internal/ingest"
	"github.com/your-org/ai-chatbot-widget/internal/prompt"
	"github.com/your-org/ai-chatbot-widget/internal/store"
)

// ChatRequest is a conversation turn from the widget
type ChatRequest struct {
	Message    string `json:"message"`
	SessionID  string `json:"sessionId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	WebsiteURL string `json:"websiteUrl"`
}

// handleChat starts or continues a persisted conversation
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message and sessionId are required"})
		return
	}

	// Serialize the read-modify-write for this session token so two
	// concurrent turns cannot interleave their appends
	unlock := s.store.LockSession(req.SessionID)
	defer unlock()

	conv, err := s.store.GetConversation(req.SessionID)
	if err != nil {
		s.logger.Error("Failed to load conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if conv == nil {
		if req.Name == "" || req.Email == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found. Please provide name and email."})
			return
		}
		conv, err = s.store.CreateConversation(req.SessionID, req.Name, req.Email, req.WebsiteURL)
		if err != nil {
			s.logger.Error("Failed to create conversation", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	grounding := s.siteGrounding(conv, req.WebsiteURL)

	history := make([]prompt.Turn, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		history = append(history, prompt.Turn{Role: string(msg.Role), Content: msg.Content})
	}

	assembled := prompt.Assemble(prompt.ModeBasic, grounding, history, prompt.ChatHistoryWindow)
	reply := s.generator.Generate(c.Request.Context(), generate.Request{
		Message:      req.Message,
		Prompt:       assembled,
		Mode:         prompt.ModeBasic,
		HasGrounding: grounding != "",
	})

	err = s.store.AppendMessages(req.SessionID,
		store.Message{Role: store.UserRole, Content: req.Message},
		store.Message{Role: store.AssistantRole, Content: reply.Text},
	)
	if err != nil {
		s.logger.Error("Failed to persist turns", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	resp := gin.H{
		"response":  reply.Text,
		"sessionId": conv.SessionID,
	}
	if reply.Routing != nil {
		resp["routing"] = reply.Routing
	}

	c.JSON(http.StatusOK, resp)
}

// siteGrounding builds grounding text from the snapshot for the
// conversation's site, if one exists
func (s *Server) siteGrounding(conv *store.Conversation, requestURL string) string {
	websiteURL := requestURL
	if websiteURL == "" {
		websiteURL = conv.WebsiteURL
	}
	if websiteURL == "" {
		return ""
	}

	snap, err := s.store.GetSnapshot(websiteURL)
	if err != nil {
		s.logger.Warn("Failed to load site snapshot", zap.String("url", websiteURL), zap.Error(err))
		return ""
	}
	if snap == nil {
		return ""
	}

	return prompt.SiteGrounding(snap.Title, snap.Description, snap.Content)
}

// conversationView is the dashboard-facing serialization of a conversation
type conversationView struct {
	SessionID    string          `json:"sessionId"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	WebsiteURL   string          `json:"websiteUrl,omitempty"`
	Status       string          `json:"status"`
	Messages     []store.Message `json:"messages"`
	MessageCount int             `json:"messageCount"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// handleListConversations returns conversations newest-updated first
func (s *Server) handleListConversations(c *gin.Context) {
	status := store.ConversationStatus(c.Query("status"))

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	conversations, err := s.store.ListConversations(status, limit)
	if err != nil {
		s.logger.Error("Failed to list conversations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}

	views := make([]conversationView, 0, len(conversations))
	for _, conv := range conversations {
		messages := conv.Messages
		if messages == nil {
			messages = []store.Message{}
		}
		views = append(views, conversationView{
			SessionID:    conv.SessionID,
			Name:         conv.Name,
			Email:        conv.Email,
			WebsiteURL:   conv.WebsiteURL,
			Status:       string(conv.Status),
			Messages:     messages,
			MessageCount: len(messages),
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"conversations": views})
}

// handleCloseConversation marks a conversation closed for dashboard triage.
// The session token stays valid; closing only changes the lifecycle status.
func (s *Server) handleCloseConversation(c *gin.Context) {
	sessionID := c.Param("sessionId")

	unlock := s.store.LockSession(sessionID)
	defer unlock()

	if err := s.store.CloseConversation(sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation closed"})
}

// knowledgeBaseEntry is one uploaded document held client-side
type knowledgeBaseEntry struct {
	Content string `json:"content"`
}

// PlaygroundRequest is one stateless playground turn. Mode and history are
// supplied by the caller each time; the server holds no session.
type PlaygroundRequest struct {
	Message       string                        `json:"message"`
	Mode          string                        `json:"mode"`
	History       []prompt.Turn                 `json:"history"`
	KnowledgeBase map[string]knowledgeBaseEntry `json:"knowledgeBase"`
}

// handlePlayground runs one turn through the same pipeline as chat, minus
// persistence
func (s *Server) handlePlayground(c *gin.Context) {
	var req PlaygroundRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	mode := prompt.ParseMode(req.Mode)

	var grounding string
	if mode == prompt.ModeKnowledge {
		grounding = prompt.KnowledgeGrounding(knowledgeDocs(req.KnowledgeBase))
	}

	assembled := prompt.Assemble(mode, grounding, req.History, prompt.PlaygroundHistoryWindow)
	reply := s.generator.Generate(c.Request.Context(), generate.Request{
		Message:      req.Message,
		Prompt:       assembled,
		Mode:         mode,
		HasGrounding: grounding != "",
	})

	resp := gin.H{
		"response":  reply.Text,
		"mode":      string(mode),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if reply.Routing != nil {
		resp["routing"] = reply.Routing
	}

	c.JSON(http.StatusOK, resp)
}

// ScrapeRequest asks for a site snapshot refresh
type ScrapeRequest struct {
	WebsiteURL string `json:"websiteUrl"`
}

// handleScrape refreshes the snapshot for a site unless a fresh one exists
func (s *Server) handleScrape(c *gin.Context) {
	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WebsiteURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Website URL is required"})
		return
	}

	parsed, err := url.ParseRequestURI(req.WebsiteURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL format"})
		return
	}

	snap, err := s.store.GetSnapshot(req.WebsiteURL)
	if err != nil {
		s.logger.Error("Failed to load snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if snap != nil && snap.Age() < s.config.Scraper.CacheTTL {
		c.JSON(http.StatusOK, gin.H{"message": "Using cached content", "cached": true})
		return
	}

	page, err := s.scraper.Fetch(c.Request.Context(), req.WebsiteURL)
	if err != nil {
		s.logger.Error("Scrape failed", zap.String("url", req.WebsiteURL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scrape website content"})
		return
	}

	err = s.store.UpsertSnapshot(&store.SiteSnapshot{
		WebsiteURL:  req.WebsiteURL,
		Content:     page.Content,
		Title:       page.Title,
		Description: page.Description,
		Pages: []store.PageExtract{
			{URL: req.WebsiteURL, Content: page.Content, Title: page.Title},
		},
		LastScraped: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("Failed to store snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Website content scraped successfully", "cached": false})
}

// uploadPreviewLength bounds the preview substring returned to the caller
const uploadPreviewLength = 500

// handleUpload validates an uploaded file, extracts its text and returns it
// for client-side retention. Document content is not persisted server-side.
func (s *Server) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	if err := s.extractor.Validate(fileHeader.Filename, fileHeader.Size); err != nil {
		if errors.Is(err, ingest.ErrUnsupportedType) || errors.Is(err, ingest.ErrTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": capitalize(err.Error())})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.logger.Error("Failed to open upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("Failed to read upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	extraction, err := s.extractor.Extract(data, fileHeader.Filename)
	if err != nil {
		// Size/type re-check against actual bytes
		if errors.Is(err, ingest.ErrUnsupportedType) || errors.Is(err, ingest.ErrTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": capitalize(err.Error())})
			return
		}
		s.logger.Error("Extraction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	preview := truncateAtRune(extraction.Content, uploadPreviewLength)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"fileName": extraction.FileName,
		"fileSize": extraction.FileSize,
		"content":  extraction.Content,
		"preview":  preview,
		"message":  "File uploaded successfully. Knowledge base updated!",
	})
}

// knowledgeDocs flattens the client-held knowledge base in filename order,
// so identical requests assemble identical grounding blocks
func knowledgeDocs(kb map[string]knowledgeBaseEntry) []prompt.Document {
	names := make([]string, 0, len(kb))
	for name := range kb {
		names = append(names, name)
	}
	sort.Strings(names)

	docs := make([]prompt.Document, 0, len(names))
	for _, name := range names {
		docs = append(docs, prompt.Document{Name: name, Content: kb[name].Content})
	}
	return docs
}

// truncateAtRune cuts s to at most max bytes without splitting a UTF-8 rune
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// capitalize upper-cases the first letter for user-facing error strings
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
