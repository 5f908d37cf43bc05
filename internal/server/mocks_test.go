package server

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tcm-wellness-backend/internal/consult"
)

type MockChatStreamer struct {
	mock.Mock
}

func (m *MockChatStreamer) StreamChat(ctx context.Context, apiKey string, messages []consult.Message, onToken func(string) error) (string, error) {
	args := m.Called(ctx, apiKey, messages, onToken)
	return args.String(0), args.Error(1)
}

// emit returns a Run func that feeds tokens to the onToken callback.
func emit(tokens ...string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		onToken := args.Get(3).(func(string) error)
		for _, tok := range tokens {
			if err := onToken(tok); err != nil {
				return
			}
		}
	}
}
