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

import (
	"strings"
	"unicode"
)

// FallbackRule pairs a message predicate with a canned response. Rules are
// evaluated in order, first match wins.
type FallbackRule struct {
	Name     string
	Match    func(message string) bool
	Response string
}

// FallbackRules is the ordered canned-response table used when the
// completion API is unconfigured or fails. It is a deterministic, offline
// substitute for the model, not an error path: the system must stay
// demoable without network access or paid credentials.
var FallbackRules = []FallbackRule{
	{
		Name:  "pricing",
		Match: containsAny("price", "cost", "pricing"),
		Response: "Our pricing starts at $99/month for small businesses. We offer flexible plans " +
			"based on your needs. Would you like me to connect you with our sales team for a custom quote?",
	},
	{
		Name:  "services",
		Match: containsAny("service", "feature", "what do you do"),
		Response: "We offer Web Development, Mobile Apps, Cloud Solutions, and AI Integration services. " +
			"Our team specializes in creating custom solutions tailored to your business needs. " +
			"Which service are you most interested in?",
	},
	{
		Name:  "contact",
		Match: containsAny("contact", "email", "phone"),
		Response: "You can reach us at info@aichat.fi. " +
			"We're available Monday-Friday, 9am-6pm EET. " +
			"Would you like us to get back to you by email?",
	},
	{
		Name: "greeting",
		// Whole words only: a substring check would fire on "this", "chip"
		Match: containsAnyWord("hello", "hi", "hey"),
		Response: "Hello! Thanks for reaching out. I'm here to help answer any questions about " +
			"our services. What would you like to know?",
	},
	{
		Name:  "help",
		Match: containsAny("help", "support"),
		Response: "I'm here to help! You can ask me about our services, pricing, contact information, " +
			"or any other questions you have. What would you like to know more about?",
	},
	{
		Name:  "how-it-works",
		Match: howItWorks,
		Response: "It's simple: we scrape your website or train on your uploaded documents, and the " +
			"chatbot answers visitor questions from that content. You embed it with a single " +
			"script tag. Would you like to try the playground?",
	},
	{
		Name:  "integration",
		Match: containsAny("integration", "integrate", "setup", "install", "embed"),
		Response: "Setup takes a few minutes: add our widget script tag to your site, point it at " +
			"your website URL, and the chatbot is live. No code changes beyond that one snippet. " +
			"Want me to walk you through it?",
	},
}

const (
	// fallbackGeneric is the default acknowledgement when no rule matches
	fallbackGeneric = "Thank you for your message! I'm here to help answer your questions. " +
		"You can ask me about our services, pricing, or how to get in touch. What would you like to know?"

	// fallbackGenericGrounded is used instead when grounding text was supplied
	fallbackGenericGrounded = "Thanks for your question! Based on our website information, I can help you " +
		"with details about our services, pricing, and contact information. Could you please be more " +
		"specific about what you'd like to know?"
)

// FallbackResponse returns the deterministic canned reply for a message.
// The lowercased message is checked against FallbackRules in order; when
// none match, a generic acknowledgement is returned, grounding-aware.
func FallbackResponse(message string, hasGrounding bool) string {
	lowered := strings.ToLower(message)

	for _, rule := range FallbackRules {
		if rule.Match(lowered) {
			return rule.Response
		}
	}

	if hasGrounding {
		return fallbackGenericGrounded
	}
	return fallbackGeneric
}

// containsAny builds a predicate matching any of the given substrings
func containsAny(substrings ...string) func(string) bool {
	return func(message string) bool {
		for _, s := range substrings {
			if strings.Contains(message, s) {
				return true
			}
		}
		return false
	}
}

// containsAnyWord builds a predicate matching any of the given whole words
func containsAnyWord(words ...string) func(string) bool {
	return func(message string) bool {
		for _, field := range strings.FieldsFunc(message, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}) {
			for _, w := range words {
				if field == w {
					return true
				}
			}
		}
		return false
	}
}

// howItWorks matches questions like "how does it work"
func howItWorks(message string) bool {
	return strings.Contains(message, "how") && strings.Contains(message, "work")
}
