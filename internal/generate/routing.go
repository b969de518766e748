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

package generate

import "strings"

// RoutingKind tags a routing offer in serialized responses
const RoutingKind = "routing_offer"

// Department is one destination the client can route a visitor to
type Department struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Departments is the fixed set of routing destinations in agent mode
var Departments = []Department{
	{ID: "sales", Label: "Sales Team", Description: "For product inquiries and pricing"},
	{ID: "support", Label: "Technical Support", Description: "For technical issues and setup"},
	{ID: "service", Label: "Customer Service", Description: "For general questions"},
	{ID: "contact", Label: "Contact Form", Description: "For direct contact requests"},
	{ID: "billing", Label: "Billing Department", Description: "For billing and payment issues"},
}

// RoutingOffer is the structured routing signal attached to agent-mode
// replies. The client renders it as buttons; no magic marker string crosses
// the API.
type RoutingOffer struct {
	Kind        string       `json:"kind"`
	Departments []Department `json:"departments"`
}

// NewRoutingOffer builds the standard offer over all departments
func NewRoutingOffer() *RoutingOffer {
	return &RoutingOffer{Kind: RoutingKind, Departments: Departments}
}

// intentKeywords are user-message substrings that signal a routable intent
var intentKeywords = []string{
	"sales", "buy", "purchase", "pricing", "price", "quote",
	"support", "technical", "bug", "broken", "error", "not working",
	"contact", "speak", "talk to", "human", "agent", "representative",
	"billing", "payment", "invoice", "refund", "subscription",
}

// handoffPhrases are model-reply fragments that signal the model itself
// proposed a handoff
var handoffPhrases = []string{
	"connect you with",
	"transfer you",
	"route you",
	"requires", // "this requires [department] attention"
}

// DetectRouting decides whether an agent-mode reply should carry a routing
// offer. It checks the visitor's message for routable intents and the
// reply text for handoff phrasing.
func DetectRouting(userMessage, replyText string) *RoutingOffer {
	message := strings.ToLower(userMessage)
	for _, keyword := range intentKeywords {
		if strings.Contains(message, keyword) {
			return NewRoutingOffer()
		}
	}

	reply := strings.ToLower(replyText)
	for _, phrase := range handoffPhrases {
		if strings.Contains(reply, phrase) {
			return NewRoutingOffer()
		}
	}

	return nil
}
