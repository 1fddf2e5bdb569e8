package llm

import (
	"context"
	"fmt"
	"net/http"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"jarvis/internal/fault"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Chatter is a chat-completion endpoint: ordered role/content pairs in, one reply out.
type Chatter interface {
	Chat(ctx context.Context, msgs []Message) (Message, error)
}

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client talks to any OpenAI-compatible chat completions endpoint.
type Client struct {
	api   openai.Client
	model string
}

func NewClient(opt Options) *Client {
	opts := []option.RequestOption{option.WithAPIKey(opt.APIKey)}
	if opt.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(opt.BaseURL))
	}
	if opt.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(opt.HTTPClient))
	}

	return &Client{
		api:   openai.NewClient(opts...),
		model: opt.Model,
	}
}

func (c *Client) Chat(ctx context.Context, msgs []Message) (Message, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: toParams(msgs),
		Model:    openai.ChatModel(c.model),
	})
	if err != nil {
		return Message{}, fault.Unreachable(fmt.Errorf("chat completion: %w", err))
	}

	if len(resp.Choices) == 0 {
		return Message{}, fault.Unreachable(fmt.Errorf("no choices in response"))
	}

	reply := resp.Choices[0].Message

	log.Debug("Chat completion", "model", c.model, "messages", len(msgs), "tokens", resp.Usage.TotalTokens)

	role := Role(reply.Role)
	if role == "" {
		role = RoleAssistant
	}

	return Message{Role: role, Content: reply.Content}, nil
}

func toParams(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
