package collab

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/modaio/stylist/core"
)

// TranscriberConfig configures the speech-to-text client.
type TranscriberConfig struct {
	BaseURL       string `yaml:"base_url" json:"base_url"`
	APIKey        string `yaml:"api_key" json:"api_key"`
	Model         string `yaml:"model" json:"model"`
	MaxConcurrent int64  `yaml:"max_concurrent" json:"max_concurrent"`
}

// DefaultTranscriberConfig returns production defaults.
func DefaultTranscriberConfig() TranscriberConfig {
	return TranscriberConfig{
		Model:         openai.Whisper1,
		MaxConcurrent: 2,
	}
}

// WhisperTranscriber converts voice clips to text. Implements core.Transcriber.
type WhisperTranscriber struct {
	client *openai.Client
	cfg    TranscriberConfig
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewWhisperTranscriber builds the transcription client.
func NewWhisperTranscriber(cfg TranscriberConfig, logger *slog.Logger) *WhisperTranscriber {
	def := DefaultTranscriberConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &WhisperTranscriber{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger,
	}
}

// Transcribe converts audio to text. filename carries the extension the
// upstream service uses to sniff the container format.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", core.ErrValidation)
	}
	if filename == "" {
		filename = "voice.wav"
	}

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrCollaborator, err)
	}
	defer w.sem.Release(1)

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.cfg.Model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("%w: transcription: %v", core.ErrCollaborator, err)
	}
	return resp.Text, nil
}
