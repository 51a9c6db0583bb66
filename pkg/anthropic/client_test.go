package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "Hello "},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: "world"},
		},
	}
	assert.Equal(t, "Hello world", resp.Text())
}

func TestMessageResponse_TextEmpty(t *testing.T) {
	resp := &MessageResponse{}
	assert.Equal(t, "", resp.Text())
}

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "", Content: "defaults to user"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
}

func TestMockClient(t *testing.T) {
	m := new(MockClient)
	m.On("CreateMessage", mock.Anything, mock.Anything).Return(&MessageResponse{
		Content: []ContentBlock{{Type: "text", Text: "summary"}},
		Usage:   TokenUsage{InputTokens: 100, OutputTokens: 20},
	}, nil)

	resp, err := m.CreateMessage(context.Background(), MessageRequest{Model: "claude-sonnet-4-5"})
	require.NoError(t, err)
	assert.Equal(t, "summary", resp.Text())
	assert.Equal(t, int64(100), resp.Usage.InputTokens)
	m.AssertExpectations(t)
}
