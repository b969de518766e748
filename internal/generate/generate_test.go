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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/ai-chatbot-widget/internal/prompt"
)

// stubClient fakes the completion API
type stubClient struct {
	resp    openai.ChatCompletionResponse
	err     error
	lastReq openai.ChatCompletionRequest
	calls   int
}

func (s *stubClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.calls++
	s.lastReq = req
	return s.resp, s.err
}

func newOfflineGenerator() *Generator {
	return New(Config{}, zap.NewNop())
}

func newStubbedGenerator(stub *stubClient) *Generator {
	g := New(Config{APIKey: "gsk-test"}, zap.NewNop())
	g.client = stub
	return g
}

func basicRequest(message string) Request {
	return Request{
		Message: message,
		Prompt:  prompt.Assemble(prompt.ModeBasic, "", nil, 10),
		Mode:    prompt.ModeBasic,
	}
}

func TestOfflineFallbackDeterministic(t *testing.T) {
	g := newOfflineGenerator()
	require.True(t, g.Offline())

	pricing := g.Generate(context.Background(), basicRequest("What is your pricing?"))
	assert.Equal(t, SourceFallback, pricing.Source)
	assert.Contains(t, pricing.Text, "$99/month")

	greeting := g.Generate(context.Background(), basicRequest("hello"))
	assert.Contains(t, greeting.Text, "Hello! Thanks for reaching out.")

	unmatched := g.Generate(context.Background(), basicRequest("xyzzy"))
	assert.Contains(t, unmatched.Text, "Thank you for your message!")

	// Deterministic across calls
	again := g.Generate(context.Background(), basicRequest("What is your pricing?"))
	assert.Equal(t, pricing.Text, again.Text)
}

func TestFallbackRulesFirstMatchWins(t *testing.T) {
	// "price" appears before "hello" in the rule order
	text := FallbackResponse("hello, what does it cost?", false)
	assert.Contains(t, text, "$99/month")
}

func TestFallbackRulesTable(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"What is your PRICE?", "$99/month"},
		{"what services do you offer", "Web Development"},
		{"how can I contact you", "info@aichat.fi"},
		{"hey there", "Thanks for reaching out"},
		{"I need help", "I'm here to help!"},
		{"how does this work?", "scrape your website"},
		{"setup instructions please", "script tag"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Contains(t, FallbackResponse(tt.message, false), tt.want)
		})
	}
}

func TestFallbackGenericGroundingAware(t *testing.T) {
	plain := FallbackResponse("xyzzy", false)
	grounded := FallbackResponse("xyzzy", true)

	assert.NotEqual(t, plain, grounded)
	assert.Contains(t, grounded, "website information")
}

func TestFallbackRulesAreEnumerable(t *testing.T) {
	// Each rule must match at least its own canonical trigger
	triggers := map[string]string{
		"pricing":      "price",
		"services":     "service",
		"contact":      "contact",
		"greeting":     "hello",
		"help":         "help",
		"how-it-works": "how does it work",
		"integration":  "integration",
	}

	for _, rule := range FallbackRules {
		trigger, ok := triggers[rule.Name]
		require.True(t, ok, "unexpected rule %q", rule.Name)
		assert.True(t, rule.Match(trigger), "rule %q must match %q", rule.Name, trigger)
		assert.NotEmpty(t, rule.Response)
	}
	assert.Len(t, FallbackRules, len(triggers))
}

func TestGenerateUsesModelReply(t *testing.T) {
	stub := &stubClient{
		resp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "  We sell widgets.  "}},
			},
		},
	}
	g := newStubbedGenerator(stub)

	reply := g.Generate(context.Background(), basicRequest("tell me about widgets"))

	assert.Equal(t, SourceModel, reply.Source)
	assert.Equal(t, "We sell widgets.", reply.Text, "reply is trimmed")
	assert.Equal(t, 1, stub.calls)
}

func TestGenerateBuildsMessagesInOrder(t *testing.T) {
	stub := &stubClient{
		resp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "ok"}},
			},
		},
	}
	g := newStubbedGenerator(stub)

	p := prompt.Assemble(prompt.ModeMemory, "", []prompt.Turn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
	}, 10)

	g.Generate(context.Background(), Request{Message: "third", Prompt: p, Mode: prompt.ModeMemory})

	msgs := stub.lastReq.Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "second", msgs[2].Content)
	assert.Equal(t, "third", msgs[3].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[3].Role)
}

func TestGenerateErrorFallsBack(t *testing.T) {
	stub := &stubClient{err: errors.New("rate limit exceeded")}
	g := newStubbedGenerator(stub)

	reply := g.Generate(context.Background(), basicRequest("What is your pricing?"))

	assert.Equal(t, SourceFallback, reply.Source)
	assert.Contains(t, reply.Text, "$99/month")
	assert.Equal(t, 1, stub.calls, "exactly one attempt, no retries")
}

func TestGenerateEmptyCompletionFallsBack(t *testing.T) {
	stub := &stubClient{
		resp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "   "}},
			},
		},
	}
	g := newStubbedGenerator(stub)

	reply := g.Generate(context.Background(), basicRequest("hello"))

	assert.Equal(t, SourceFallback, reply.Source)
	assert.Contains(t, reply.Text, "Hello! Thanks for reaching out.")
}

func TestGenerateNoChoicesFallsBack(t *testing.T) {
	stub := &stubClient{resp: openai.ChatCompletionResponse{}}
	g := newStubbedGenerator(stub)

	reply := g.Generate(context.Background(), basicRequest("hello"))
	assert.Equal(t, SourceFallback, reply.Source)
}

func TestAgentModeAttachesRoutingOffer(t *testing.T) {
	g := newOfflineGenerator()

	req := Request{
		Message: "I want to talk to sales about pricing",
		Prompt:  prompt.Assemble(prompt.ModeAgent, "", nil, 5),
		Mode:    prompt.ModeAgent,
	}
	reply := g.Generate(context.Background(), req)

	require.NotNil(t, reply.Routing)
	assert.Equal(t, RoutingKind, reply.Routing.Kind)
	assert.Len(t, reply.Routing.Departments, 5)
}

func TestNonAgentModeNeverRoutes(t *testing.T) {
	g := newOfflineGenerator()

	reply := g.Generate(context.Background(), basicRequest("I want to talk to sales"))
	assert.Nil(t, reply.Routing)
}

func TestDetectRouting(t *testing.T) {
	tests := []struct {
		name    string
		message string
		reply   string
		want    bool
	}{
		{"sales intent", "connect me with sales", "sure", true},
		{"billing intent", "my invoice is wrong", "sorry to hear", true},
		{"support intent", "the widget is broken", "let me check", true},
		{"handoff phrase in reply", "tell me more", "I'll connect you with our sales team", true},
		{"no intent", "what's the weather", "I can't say", false},
		{"case insensitive", "BILLING question", "ok", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer := DetectRouting(tt.message, tt.reply)
			if tt.want {
				require.NotNil(t, offer)
				assert.Equal(t, RoutingKind, offer.Kind)
			} else {
				assert.Nil(t, offer)
			}
		})
	}
}

func TestRoutingOfferDepartmentIDs(t *testing.T) {
	offer := NewRoutingOffer()

	var ids []string
	for _, d := range offer.Departments {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"sales", "support", "service", "contact", "billing"}, ids)

	for _, d := range offer.Departments {
		assert.NotEmpty(t, d.Label)
		assert.True(t, strings.HasPrefix(d.Description, "For "))
	}
}
