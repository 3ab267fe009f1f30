package llm

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ShaunandDavid/lead-generator-firecrawl/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(modelID, text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Model:   modelID,
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage: anthropic.TokenUsage{
			InputTokens:          100,
			OutputTokens:         40,
			CacheReadInputTokens: 10,
		},
	}
}
