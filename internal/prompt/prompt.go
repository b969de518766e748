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

// Package prompt assembles the system instruction and bounded history
// window sent to the completion API. It is a pure transform from
// (mode, grounding, history) to a prompt; both the persisted chat path and
// the stateless playground path share it.
package prompt

import (
	"fmt"
	"strings"
)

// Mode selects a conversational behavior profile
type Mode string

const (
	// ModeBasic is a concise general service-description assistant
	ModeBasic Mode = "basic"
	// ModeMemory instructs the model to reference and build on prior turns
	ModeMemory Mode = "memory"
	// ModeKnowledge grounds answers strictly in uploaded document text
	ModeKnowledge Mode = "knowledge"
	// ModeAgent detects intents and offers department routing
	ModeAgent Mode = "agent"
)

const (
	// ChatHistoryWindow bounds history on the persisted-conversation path
	ChatHistoryWindow = 10
	// PlaygroundHistoryWindow bounds history on the playground path
	PlaygroundHistoryWindow = 5
)

// ParseMode maps a request string to a Mode, defaulting to basic
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMemory:
		return ModeMemory
	case ModeKnowledge:
		return ModeKnowledge
	case ModeAgent:
		return ModeAgent
	default:
		return ModeBasic
	}
}

// Turn is one prior exchange in the conversation
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Document is one uploaded knowledge-base file's extracted text
type Document struct {
	Name    string
	Content string
}

// Prompt is an assembled system instruction plus bounded trailing history
type Prompt struct {
	System  string
	History []Turn
}

// Assemble builds the prompt for a mode with optional grounding text.
// History is windowed to the most recent maxTurns entries in original order.
func Assemble(mode Mode, grounding string, history []Turn, maxTurns int) Prompt {
	return Prompt{
		System:  systemPrompt(mode, grounding),
		History: Window(history, maxTurns),
	}
}

// Window returns the most recent maxTurns entries in original order.
// Older turns are dropped, not summarized; the limit is turn-count based.
func Window(history []Turn, maxTurns int) []Turn {
	if maxTurns <= 0 || len(history) <= maxTurns {
		return history
	}
	return history[len(history)-maxTurns:]
}

// SiteGrounding formats a scraped-site snapshot as grounding text
func SiteGrounding(title, description, content string) string {
	return fmt.Sprintf("Website: %s\n%s\n\n%s", title, description, content)
}

// KnowledgeGrounding concatenates uploaded documents into grounding text,
// each block labeled with its source filename
func KnowledgeGrounding(docs []Document) string {
	var blocks []string
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("--- Source: %s ---\n%s", doc.Name, doc.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// systemPrompt selects the instruction template for a mode
func systemPrompt(mode Mode, grounding string) string {
	switch mode {
	case ModeMemory:
		return memoryTemplate
	case ModeKnowledge:
		if strings.TrimSpace(grounding) == "" {
			return knowledgeEmptyTemplate
		}
		return fmt.Sprintf(knowledgeTemplate, grounding)
	case ModeAgent:
		return agentTemplate
	default:
		if strings.TrimSpace(grounding) != "" {
			return fmt.Sprintf(groundedTemplate, grounding)
		}
		return basicTemplate
	}
}

// groundedTemplate constrains answers to a specific business's scraped
// website content
const groundedTemplate = `You are a customer support AI assistant for this specific business website. Use ONLY the following website information to answer questions:

%s

IMPORTANT RULES:
- Answer questions based ONLY on the website information provided above
- Be specific about THIS business's services, pricing, and contact details
- If asked about services, describe the services from the website content
- Keep responses concise (2-3 sentences max)
- If the question is not about this business, politely redirect to the website content
- Never provide generic AI assistant information about yourself`

const basicTemplate = `You are a helpful AI assistant for the AI Chatbot Widget service.

COMPANY INFO:
- Company: AI Chatbot Widget (Finland-based)
- Contact: info@aichat.fi
- Service: Embeddable AI chatbots for websites

SERVICES:
1. Basic Chatbot - Simple Q&A ($99/month)
2. Memory-Based Chatbot - Remembers conversations ($199/month)
3. Knowledge Base Chatbot - Custom training ($299/month)
4. Agent Mode Chatbot - Department routing ($499/month)

Keep responses concise and helpful. Focus on answering the user's question directly.`

const memoryTemplate = `You are a memory-based AI assistant that remembers past conversations.

IMPORTANT: Reference previous messages when relevant. Use context from conversation history.

COMPANY INFO:
- Service: Memory-Based Chatbot ($199/month)
- Features: Conversation tracking, personalized responses, context awareness
- Best for: E-commerce, SaaS, returning customers

Always acknowledge what you remember from previous messages. Build on past context.`

const knowledgeTemplate = `You are a Knowledge Base AI assistant trained on the documents below.

KNOWLEDGE BASE:
%s

IMPORTANT RULES:
- Answer questions based ONLY on the knowledge base above
- When the knowledge base does not cover a question, say so explicitly
- Cite the source filename when it helps the user
- Keep responses concise and accurate`

const knowledgeEmptyTemplate = `You are a Knowledge Base AI assistant.

No knowledge base has been loaded yet. Tell the user that no documents have been uploaded, and that you can be trained on custom data: file uploads (PDF/CSV/TXT/MD/JSON) or website scraping.`

const agentTemplate = `You are an intelligent Agent Mode chatbot with department routing capabilities.

ROUTING LOGIC:
- Sales inquiries -> Sales Team
- Technical issues -> Technical Support
- General questions -> Customer Service
- Contact requests -> Contact Form
- Billing and payments -> Billing Department

COMPANY INFO:
- Service: Agent Mode Chatbot ($499/month)
- Features: Intent detection, smart routing, live agent handoff
- Best for: Enterprise, multiple departments

IMPORTANT: When you detect a sales, support, contact or billing intent, say you can connect the user with the right team, for example "I'll connect you with our sales team". Also answer general questions, but always offer to route for complex matters.`
