// File: internal/perception/gemini.go
package perception

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/droidpilot-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GeminiPerceiver implements Perceiver on top of the Gemini generateContent
// REST API, sending each frame as inline PNG data and asking for a JSON map
// of per-label probabilities.
type GeminiPerceiver struct {
	apiKey     string
	endpoint   string
	maxElapsed time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// -- Gemini API request/response structures (internal to this file) --

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobPart `json:"inline_data,omitempty"`
}

type geminiBlobPart struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
}

type geminiRequestPayload struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// NewGeminiPerceiver initializes the perceiver.
func NewGeminiPerceiver(cfg config.PerceptionConfig, logger *zap.Logger) (*GeminiPerceiver, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	maxElapsed := cfg.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = 2 * time.Minute
	}

	return &GeminiPerceiver{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		maxElapsed: maxElapsed,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("perception.gemini"),
	}, nil
}

// Classify sends the frame to the Gemini API and returns the per-label
// probabilities, with retries on transient failures.
func (g *GeminiPerceiver) Classify(ctx context.Context, frame []byte, labels []string) (map[string]float64, error) {
	payload := g.buildRequestPayload(frame, labels)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = g.maxElapsed
	b.MaxInterval = 30 * time.Second

	var scores map[string]float64

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", g.apiKey)

		startTime := time.Now()
		resp, err := g.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			g.logger.Warn("Network error during classification request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return g.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload geminiResponsePayload
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}

		if len(responsePayload.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}

		candidate := responsePayload.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
		}

		parsed, err := parseScores(candidate.Content.Parts[0].Text, labels)
		if err != nil {
			return backoff.Permanent(err)
		}

		g.logger.Debug("Frame classification complete",
			zap.Duration("duration", duration),
			zap.Int("labels_scored", len(parsed)),
		)

		scores = parsed
		return nil
	}

	if err = backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	return scores, nil
}

func (g *GeminiPerceiver) buildRequestPayload(frame []byte, labels []string) geminiRequestPayload {
	prompt := fmt.Sprintf(
		"Classify this Android screenshot against the following labels: %s. "+
			"Respond with a single JSON object mapping each plausible label to a "+
			"probability between 0 and 1. Omit labels with negligible probability.",
		strings.Join(labels, ", "),
	)

	return geminiRequestPayload{
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{
						InlineData: &geminiBlobPart{
							MimeType: "image/png",
							Data:     base64.StdEncoding.EncodeToString(frame),
						},
					},
					{Text: prompt},
				},
			},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	}
}

func (g *GeminiPerceiver) handleAPIError(statusCode int, body []byte) error {
	g.logger.Error("Gemini API returned error status", zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("gemini API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient errors, retry.
	default:
		return backoff.Permanent(err) // Permanent errors.
	}
}

// parseScores decodes the model's JSON reply and keeps only entries from the
// requested vocabulary with probabilities in [0,1].
func parseScores(text string, labels []string) (map[string]float64, error) {
	var raw map[string]float64
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse classification response %q: %w", text, err)
	}

	vocab := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		vocab[l] = struct{}{}
	}

	scores := make(map[string]float64, len(raw))
	for label, p := range raw {
		if _, ok := vocab[label]; !ok {
			continue
		}
		if p < 0 || p > 1 {
			continue
		}
		scores[label] = p
	}
	return scores, nil
}
