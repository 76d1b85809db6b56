package collab

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/modaio/stylist/core"
)

const stylistSystemPrompt = `You are a friendly personal fashion stylist. Give concise, practical styling advice: what goes together, what suits an occasion, how to combine pieces. Stay on fashion topics. Keep replies under 120 words.`

// ChatConfig configures the stylist chat client.
type ChatConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	APIKey        string        `yaml:"api_key" json:"api_key"`
	Model         string        `yaml:"model" json:"model"`
	MaxConcurrent int64         `yaml:"max_concurrent" json:"max_concurrent"`
	RetryBackoff  time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

// DefaultChatConfig returns production defaults.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		Model:         openai.GPT4oMini,
		MaxConcurrent: 4,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// StylistChat produces styling advice replies. Implements core.ChatModel.
type StylistChat struct {
	client *openai.Client
	cfg    ChatConfig
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewStylistChat builds the chat client.
func NewStylistChat(cfg ChatConfig, logger *slog.Logger) *StylistChat {
	def := DefaultChatConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &StylistChat{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger,
	}
}

// Chat forwards the bounded turn history and returns the stylist reply.
func (s *StylistChat) Chat(ctx context.Context, turns []core.Turn) (string, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrCollaborator, err)
	}
	defer s.sem.Release(1)

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: stylistSystemPrompt,
	})
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == core.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:    s.cfg.Model,
		Messages: messages,
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		s.logger.Warn("chat call failed, retrying once", "error", err)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", core.ErrCollaborator, ctx.Err())
		case <-time.After(s.cfg.RetryBackoff):
		}
		resp, err = s.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("%w: %v", core.ErrCollaborator, err)
		}
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty chat response", core.ErrCollaborator)
	}
	return resp.Choices[0].Message.Content, nil
}
