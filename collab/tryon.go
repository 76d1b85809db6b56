package collab

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/modaio/stylist/core"
)

// TryOnConfig configures the virtual try-on rendering client. The upstream
// service processes renders as asynchronous tasks: submit, poll, download.
type TryOnConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	APIKey        string        `yaml:"api_key" json:"api_key"`
	Model         string        `yaml:"model" json:"model"`
	PollInterval  time.Duration `yaml:"poll_interval" json:"poll_interval"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MaxConcurrent int64         `yaml:"max_concurrent" json:"max_concurrent"`
}

// DefaultTryOnConfig returns production defaults.
func DefaultTryOnConfig() TryOnConfig {
	return TryOnConfig{
		Model:         "kolors-virtual-try-on-v1",
		PollInterval:  2 * time.Second,
		Timeout:       60 * time.Second,
		MaxConcurrent: 2,
	}
}

// TryOnRenderer is the task-based rendering client. Implements
// core.TryOnRenderer.
type TryOnRenderer struct {
	cfg    TryOnConfig
	http   *http.Client
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewTryOnRenderer builds the rendering client.
func NewTryOnRenderer(cfg TryOnConfig, logger *slog.Logger) (*TryOnRenderer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: try-on base url is required", core.ErrValidation)
	}
	def := DefaultTryOnConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TryOnRenderer{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger,
	}, nil
}

type tryOnEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tryOnSubmitData struct {
	TaskID string `json:"task_id"`
}

type tryOnStatusData struct {
	TaskStatus    string `json:"task_status"`
	TaskStatusMsg string `json:"task_status_msg"`
	TaskResult    struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"task_result"`
}

// Render submits a try-on task, polls it to completion and returns the
// rendered image bytes. Failures are retryable; the caller keeps its garment
// selection.
func (r *TryOnRenderer) Render(ctx context.Context, req core.TryOnRequest) ([]byte, error) {
	if len(req.PersonImage) == 0 {
		return nil, fmt.Errorf("%w: person image is required", core.ErrValidation)
	}
	if req.GarmentRef == "" {
		return nil, fmt.Errorf("%w: garment reference is required", core.ErrValidation)
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCollaborator, err)
	}
	defer r.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	taskID, err := r.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("tryon task submitted", "task_id", taskID)

	resultURL, err := r.poll(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return r.download(ctx, resultURL)
}

func (r *TryOnRenderer) submit(ctx context.Context, req core.TryOnRequest) (string, error) {
	payload := map[string]any{
		"model_name":  r.cfg.Model,
		"human_image": base64.StdEncoding.EncodeToString(req.PersonImage),
		"cloth_image": req.GarmentRef,
	}
	if !req.RandomizeSeed {
		payload["seed"] = req.Seed
	}

	var data tryOnSubmitData
	if err := r.call(ctx, http.MethodPost, r.taskURL(""), payload, &data); err != nil {
		return "", err
	}
	if data.TaskID == "" {
		return "", fmt.Errorf("%w: no task id in response", core.ErrCollaborator)
	}
	return data.TaskID, nil
}

func (r *TryOnRenderer) poll(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var status tryOnStatusData
		if err := r.call(ctx, http.MethodGet, r.taskURL(taskID), nil, &status); err != nil {
			return "", err
		}

		switch status.TaskStatus {
		case "succeed":
			if len(status.TaskResult.Images) == 0 {
				return "", fmt.Errorf("%w: no result images", core.ErrCollaborator)
			}
			return status.TaskResult.Images[0].URL, nil
		case "failed":
			return "", fmt.Errorf("%w: render failed: %s", core.ErrCollaborator, status.TaskStatusMsg)
		case "submitted", "processing":
		default:
			return "", fmt.Errorf("%w: unknown task status %q", core.ErrCollaborator, status.TaskStatus)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: render timed out: %v", core.ErrCollaborator, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *TryOnRenderer) call(ctx context.Context, method, url string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrCollaborator, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrCollaborator, err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrCollaborator, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrCollaborator, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: upstream status %d", core.ErrCollaborator, resp.StatusCode)
	}

	var env tryOnEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: malformed response: %v", core.ErrCollaborator, err)
	}
	if env.Code != 0 {
		return fmt.Errorf("%w: %s (code %d)", core.ErrCollaborator, env.Message, env.Code)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: malformed task data: %v", core.ErrCollaborator, err)
		}
	}
	return nil
}

func (r *TryOnRenderer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCollaborator, err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: result download: %v", core.ErrCollaborator, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: result download status %d", core.ErrCollaborator, resp.StatusCode)
	}
	img, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCollaborator, err)
	}
	return img, nil
}

func (r *TryOnRenderer) taskURL(taskID string) string {
	base := strings.TrimRight(r.cfg.BaseURL, "/") + "/v1/images/kolors-virtual-try-on"
	if taskID == "" {
		return base
	}
	return base + "/" + taskID
}
