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

// Package scraper fetches a web page and extracts a bounded plain-text
// version of its content for use as chat grounding. It issues exactly one
// GET per call: no JavaScript execution, no crawling beyond the given URL.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds the page fetch
	DefaultTimeout = 10 * time.Second
	// DefaultMaxContentLength caps extracted text to bound prompt size
	DefaultMaxContentLength = 5000
	// DefaultUserAgent is a browser-like agent so sites serve real markup
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// FetchError indicates the page could not be fetched or parsed
type FetchError struct {
	URL     string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to scrape %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PageContent is the extracted text of one page
type PageContent struct {
	Content     string
	Title       string
	Description string
}

// Config holds scraper settings
type Config struct {
	Timeout          time.Duration
	MaxContentLength int
	UserAgent        string
}

// DefaultConfig returns default scraper settings
func DefaultConfig() Config {
	return Config{
		Timeout:          DefaultTimeout,
		MaxContentLength: DefaultMaxContentLength,
		UserAgent:        DefaultUserAgent,
	}
}

// Scraper fetches and extracts website content
type Scraper struct {
	client *http.Client
	config Config
	logger *zap.Logger
}

// New creates a scraper with the given settings
func New(config Config, logger *zap.Logger) *Scraper {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxContentLength <= 0 {
		config.MaxContentLength = DefaultMaxContentLength
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}

	return &Scraper{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
		logger: logger,
	}
}

// Fetch retrieves a page and returns its extracted text, title and
// description. Fails with *FetchError on network errors, timeouts and
// non-HTML responses.
func (s *Scraper) Fetch(ctx context.Context, url string) (*PageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Message: "invalid request", Err: err}
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("Page fetch failed", zap.String("url", url), zap.Error(err))
		return nil, &FetchError{URL: url, Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			URL:     url,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") {
		return nil, &FetchError{
			URL:     url,
			Message: fmt.Sprintf("non-HTML response (%s)", contentType),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Message: "failed to parse HTML", Err: err}
	}

	page := s.extract(doc)

	s.logger.Info("Scraped page",
		zap.String("url", url),
		zap.String("title", page.Title),
		zap.Int("content_length", len(page.Content)))

	return page, nil
}

// extract pulls title, description and main text out of a parsed document
func (s *Scraper) extract(doc *goquery.Document) *PageContent {
	// Boilerplate nodes pollute the extract with menus and legal footers
	doc.Find("script, style, nav, footer, header").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	description, _ := doc.Find(`meta[name="description"]`).Attr("content")

	content := doc.Find("main").Text()
	if strings.TrimSpace(content) == "" {
		content = doc.Find("article").Text()
	}
	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}

	content = collapseWhitespace(content)
	if len(content) > s.config.MaxContentLength {
		cut := s.config.MaxContentLength
		// Back off to a rune boundary so the cap never splits a multi-byte character
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	return &PageContent{
		Content:     content,
		Title:       title,
		Description: strings.TrimSpace(description),
	}
}

// collapseWhitespace reduces runs of whitespace to single spaces
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
