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

package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCheckAllHealthy(t *testing.T) {
	m := NewManager("chatwidget-test", "1.0.0", zap.NewNop())
	m.AddCheckerFunc("store", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	m.AddCheckerFunc("llm", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})

	resp := m.Check(context.Background())

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "chatwidget-test", resp.Service)
	assert.Len(t, resp.Dependencies, 2)
	assert.NotEmpty(t, resp.Metadata["go_version"])
}

func TestCheckUnhealthyDominates(t *testing.T) {
	m := NewManager("chatwidget-test", "1.0.0", zap.NewNop())
	m.AddCheckerFunc("ok", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	m.AddCheckerFunc("down", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusUnhealthy, Error: "connection refused"}
	})
	m.AddCheckerFunc("slow", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded}
	})

	resp := m.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "connection refused", resp.Dependencies["down"].Error)
}

func TestCheckDegraded(t *testing.T) {
	m := NewManager("chatwidget-test", "1.0.0", zap.NewNop())
	m.AddCheckerFunc("ok", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	m.AddCheckerFunc("slow", func(_ context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded}
	})

	resp := m.Check(context.Background())
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestPingChecker(t *testing.T) {
	ok := PingChecker(func() error { return nil })
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	bad := PingChecker(func() error { return errors.New("db locked") })
	result := bad.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "db locked", result.Error)
}

func TestStaticChecker(t *testing.T) {
	c := StaticChecker(StatusDegraded, map[string]interface{}{"mode": "offline"})
	result := c.Check(context.Background())

	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, "offline", result.Metadata["mode"])
}
