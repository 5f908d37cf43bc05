package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"tcm-wellness-backend/internal/consult"
)

var ErrMissingAPIKey = errors.New("deepseek api key is missing")

// ChatStreamer streams a chat completion, calling onToken for every non-empty
// delta. It returns the concatenated reply. On a mid-stream failure the
// partial reply is returned together with the error.
type ChatStreamer interface {
	StreamChat(ctx context.Context, apiKey string, messages []consult.Message, onToken func(string) error) (string, error)
}

type Settings struct {
	// APIKey is the server's own key. Only its SDK client is kept.
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	HTTPClient  *http.Client
}

// Client talks to DeepSeek's OpenAI-compatible endpoint. Keys other than the
// server's get a short-lived SDK client per call and are never retained.
type Client struct {
	settings Settings
	http     *http.Client
	server   *openai.Client
}

func NewClient(s Settings) *Client {
	s.APIKey = strings.TrimSpace(s.APIKey)
	c := &Client{settings: s, http: s.HTTPClient}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if s.APIKey != "" {
		c.server = c.newSDKClient(s.APIKey)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.settings.Model }

func (c *Client) newSDKClient(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if c.settings.BaseURL != "" {
		cfg.BaseURL = c.settings.BaseURL
	}
	cfg.HTTPClient = c.http
	return openai.NewClientWithConfig(cfg)
}

func (c *Client) clientFor(apiKey string) *openai.Client {
	if c.server != nil && apiKey == c.settings.APIKey {
		return c.server
	}
	return c.newSDKClient(apiKey)
}

func (c *Client) StreamChat(ctx context.Context, apiKey string, messages []consult.Message, onToken func(string) error) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", ErrMissingAPIKey
	}
	stream, err := c.clientFor(apiKey).CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.settings.Model,
		Messages:    convertMessages(messages),
		Temperature: c.settings.Temperature,
		Stream:      true,
	})
	if err != nil {
		return "", fmt.Errorf("chat stream init failed: %w", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return builder.String(), fmt.Errorf("chat stream recv failed: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		chunk := response.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		builder.WriteString(chunk)
		if onToken != nil {
			if err := onToken(chunk); err != nil {
				return builder.String(), err
			}
		}
	}
	return builder.String(), nil
}

func convertMessages(msgs []consult.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := string(m.Role)
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// IsAuthError reports whether the provider rejected the API key.
func IsAuthError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden
	}
	return errors.Is(err, ErrMissingAPIKey)
}
