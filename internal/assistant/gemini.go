package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const geminiBase = "https://generativelanguage.googleapis.com"

var (
	// ErrQuotaExhausted means the provider rejected the call for quota reasons
	ErrQuotaExhausted = errors.New("text generation quota exhausted")
	// ErrUnavailable covers every other failure, including a missing key
	ErrUnavailable = errors.New("text generation unavailable")
)

// Generator produces text for a prompt under an optional system instruction
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// GeminiClient calls the Gemini generateContent endpoint, trying each
// configured model in order until one answers
type GeminiClient struct {
	apiKey  string
	models  []string
	client  *resty.Client
	apiBase string
}

// Ensure GeminiClient implements Generator
var _ Generator = (*GeminiClient)(nil)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(apiKey string, models []string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		apiKey: apiKey,
		models: models,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		apiBase: geminiBase,
	}
}

// NewGenerator returns a Gemini client, or nil when no key is configured
func NewGenerator(apiKey string, models []string, timeout time.Duration) Generator {
	if apiKey == "" {
		return nil
	}
	return NewGeminiClient(apiKey, models, timeout)
}

// Generate returns ErrQuotaExhausted as soon as any model reports quota
// exhaustion, and ErrUnavailable once every model has failed otherwise
func (g *GeminiClient) Generate(ctx context.Context, prompt, system string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("%w: no API key", ErrUnavailable)
	}

	var lastErr error
	for _, model := range g.models {
		text, err := g.generate(ctx, model, prompt, system)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ErrQuotaExhausted) {
			logrus.WithField("model", model).Warnf("Gemini quota exhausted: %v", err)
			return "", err
		}

		logrus.WithField("model", model).Infof("Gemini model failed, trying next: %v", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no models configured")
	}
	logrus.Errorf("All Gemini models failed: %v", lastErr)
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (g *GeminiClient) generate(ctx context.Context, model, prompt, system string) (string, error) {
	req := geminiRequest{}

	// gemini-pro predates system instructions
	if system != "" && model == "gemini-pro" {
		prompt = "System: " + system + "\n\n" + prompt
	} else if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	req.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(req).
		Post(fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.apiBase, model))

	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		var apiErr geminiError
		_ = json.Unmarshal(resp.Body(), &apiErr)

		if resp.StatusCode() == http.StatusTooManyRequests || apiErr.Error.Status == "RESOURCE_EXHAUSTED" {
			return "", fmt.Errorf("%w: %s", ErrQuotaExhausted, apiErr.Error.Message)
		}
		return "", fmt.Errorf("model %s returned status %d: %s", model, resp.StatusCode(), apiErr.Error.Message)
	}

	var out geminiResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var text strings.Builder
	for _, c := range out.Candidates {
		for _, p := range c.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("model %s returned no text", model)
	}

	return strings.TrimSpace(text.String()), nil
}
