// Package gemini writes short digests of tagged chat messages using Google's
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/scribrbot/internal/config"
	"github.com/edgard/scribrbot/internal/database"
	"github.com/edgard/scribrbot/internal/logger"
	"github.com/edgard/scribrbot/internal/resilience"
)

// contentGenerator is the subset of *genai.Models the digester calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Digester produces one-paragraph digests for summary pages.
type Digester struct {
	models        contentGenerator
	breaker       *resilience.CircuitBreaker
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	timeout       time.Duration
	maxRetries    int
	retryDelay    time.Duration
}

// NewDigester creates a Gemini-backed Digester. It fails when no API key is configured.
func NewDigester(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*Digester, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	d := newDigester(gi.Models, cfg, log)
	d.log.Info("Gemini digester initialized successfully", "model", cfg.ModelName)
	return d, nil
}

func newDigester(models contentGenerator, cfg config.GeminiConfig, log *slog.Logger) *Digester {
	if log == nil {
		log = logger.Discard()
	}
	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if cfg.SystemInstruction != "" {
		baseCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}}
	}

	log = log.With("component", "gemini_digester")
	return &Digester{
		models: models,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        "gemini",
			MaxFailures: cfg.BreakerFailures,
			Cooldown:    cfg.BreakerCooldown,
			Logger:      log,
		}),
		log:           log,
		contentConfig: baseCfg,
		modelName:     cfg.ModelName,
		timeout:       cfg.Timeout,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
	}
}

// Digest summarizes messages tagged with hashtag in one paragraph.
func (d *Digester) Digest(ctx context.Context, hashtag string, messages []*database.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to digest")
	}
	d.log.DebugContext(ctx, "Generating digest", "hashtag", hashtag, "message_count", len(messages))

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	contents := []*genai.Content{genai.NewContentFromText(buildPrompt(hashtag, messages), genai.RoleUser)}
	var text string
	err := d.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := d.generateContentWithRetries(ctx, contents)
		if err != nil {
			return err
		}
		text, err = d.extractText(ctx, resp)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func buildPrompt(hashtag string, messages []*database.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Messages tagged #%s, oldest first:\n", hashtag)
	for _, m := range messages {
		sb.WriteString(formatMessage(m))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatMessage(m *database.Message) string {
	name := m.UserFirstName
	if name == "" {
		name = "someone"
	}
	return fmt.Sprintf("[%s] %s: %s", m.SentAt().UTC().Format("2006-01-02 15:04:05"), name, m.Text)
}

func (d *Digester) generateContentWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var err error
	for i := 0; i <= d.maxRetries; i++ {
		var resp *genai.GenerateContentResponse
		resp, err = d.models.GenerateContent(ctx, d.modelName, contents, d.contentConfig)
		if err == nil {
			return resp, nil
		}

		code, retriable := retriableCode(err)
		if !retriable {
			d.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
			return nil, fmt.Errorf("gemini API call failed: %w", err)
		}
		if i == d.maxRetries {
			break
		}

		d.log.WarnContext(ctx, "Retrying Gemini API call", "attempt", i+1, "max_retries", d.maxRetries, "code", code, "delay", d.retryDelay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.retryDelay):
		}
	}
	d.log.ErrorContext(ctx, "Gemini API call failed after max retries", "error", err)
	return nil, fmt.Errorf("gemini API call failed after %d retries: %w", d.maxRetries, err)
}

// retriableCode reports whether err is a server-side APIError worth retrying.
func retriableCode(err error) (int, bool) {
	var code int
	var valErr genai.APIError
	var ptrErr *genai.APIError
	switch {
	case errors.As(err, &valErr):
		code = valErr.Code
	case errors.As(err, &ptrErr):
		code = ptrErr.Code
	default:
		return 0, false
	}
	return code, code == http.StatusInternalServerError || code == http.StatusServiceUnavailable
}

func (d *Digester) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("gemini returned no response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := string(resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		d.log.ErrorContext(ctx, "Gemini request blocked", "reason", reason)
		return "", fmt.Errorf("digest blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = string(resp.Candidates[0].FinishReason)
		}
		d.log.WarnContext(ctx, "Gemini response missing content", "finish_reason", finishReason)
		return "", fmt.Errorf("digest returned no content, finish reason: %s", finishReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("digest returned empty text")
	}
	return text, nil
}
