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

package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScraper(config Config) *Scraper {
	return New(config, zap.NewNop())
}

func serve(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchExtractsMainContent(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html>
			<head>
				<title>Acme Corp</title>
				<meta name="description" content="We make everything">
				<style>body { color: red; }</style>
			</head>
			<body>
				<nav>Home About Contact</nav>
				<header>Acme header</header>
				<main>Welcome    to Acme.
					We sell widgets.</main>
				<footer>Copyright Acme</footer>
				<script>console.log("tracking")</script>
			</body>
		</html>`))
	})

	s := newTestScraper(DefaultConfig())
	page, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", page.Title)
	assert.Equal(t, "We make everything", page.Description)
	assert.Equal(t, "Welcome to Acme. We sell widgets.", page.Content)
	assert.NotContains(t, page.Content, "tracking")
	assert.NotContains(t, page.Content, "Home About Contact")
	assert.NotContains(t, page.Content, "Copyright Acme")
}

func TestFetchFallsBackToBody(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head></head><body><h1>Plain Site</h1><p>Body text only.</p></body></html>`))
	})

	s := newTestScraper(DefaultConfig())
	page, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	// No <title>, first <h1> is used
	assert.Equal(t, "Plain Site", page.Title)
	assert.Contains(t, page.Content, "Body text only.")
}

func TestFetchTruncatesContent(t *testing.T) {
	long := strings.Repeat("word ", 3000)
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><main>" + long + "</main></body></html>"))
	})

	cfg := DefaultConfig()
	cfg.MaxContentLength = 5000
	s := newTestScraper(cfg)

	page, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, page.Content, 5000)
}

func TestFetchTruncationKeepsValidUTF8(t *testing.T) {
	// Three-byte runes never divide the cap evenly, so a byte-indexed cut
	// would split the last character
	long := strings.Repeat("€", 2000)
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><main>" + long + "</main></body></html>"))
	})

	cfg := DefaultConfig()
	cfg.MaxContentLength = 5000
	s := newTestScraper(cfg)

	page, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(page.Content))
	assert.Len(t, page.Content, 4998)
}

func TestFetchNonHTMLResponse(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"not":"html"}`))
	})

	s := newTestScraper(DefaultConfig())
	_, err := s.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Contains(t, fetchErr.Message, "non-HTML")
}

func TestFetchServerError(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	s := newTestScraper(DefaultConfig())
	_, err := s.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Contains(t, fetchErr.Message, "status 500")
}

func TestFetchTimeout(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>late</body></html>"))
	})

	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	s := newTestScraper(cfg)

	_, err := s.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestFetchUnreachableHost(t *testing.T) {
	s := newTestScraper(DefaultConfig())
	_, err := s.Fetch(context.Background(), "http://127.0.0.1:1")
	require.Error(t, err)

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestFetchSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	})

	s := newTestScraper(DefaultConfig())
	_, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, gotUA, "Mozilla/5.0")
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", collapseWhitespace("  a \n\n b\t\tc  "))
	assert.Equal(t, "", collapseWhitespace(" \n\t "))
}
