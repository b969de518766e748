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
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed assets/widget.js
var widgetScript []byte

//go:embed assets/widget-embed.html
var widgetEmbedPage []byte

// handleWidgetScript serves the embeddable loader script. Customer sites
// include it with a plain script tag, so it must stay dependency-free and
// cacheable.
func (s *Server) handleWidgetScript(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", widgetScript)
}

// handleWidgetEmbed serves the chat page the loader opens in its iframe
func (s *Server) handleWidgetEmbed(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", widgetEmbedPage)
}
