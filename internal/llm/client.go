package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Completer is the completion capability consumed by the evaluation pipeline.
// Implementations may fail or be slow; callers bound every call with a context
// deadline.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// VisionAnalyzer analyzes submitted photos and returns a free-text description
// of detected condition and improvements.
type VisionAnalyzer interface {
	AnalyzeImages(ctx context.Context, images []string, prompt string) (string, error)
}

// Client talks to an OpenAI-compatible chat completion API.
type Client struct {
	logger      *logrus.Logger
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	visionModel string
}

func NewClient(logger *logrus.Logger, baseURL, apiKey, model, visionModel string) *Client {
	return &Client{
		logger:      logger,
		client:      &http.Client{Timeout: 120 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		visionModel: visionModel,
	}
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return c.chat(ctx, c.model, []chatMessage{{Role: "user", Content: prompt}}, maxTokens)
}

func (c *Client) AnalyzeImages(ctx context.Context, images []string, prompt string) (string, error) {
	parts := []contentPart{{Type: "text", Text: prompt}}
	for _, img := range images {
		if !strings.HasPrefix(img, "data:") {
			img = "data:image/jpeg;base64," + img
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: img}})
	}
	return c.chat(ctx, c.visionModel, []chatMessage{{Role: "user", Content: parts}}, 800)
}

func (c *Client) chat(ctx context.Context, model string, messages []chatMessage, maxTokens int) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", summarizeHTTPError(resp.StatusCode, body)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("completion API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("completion API returned no choices")
	}

	c.logger.WithFields(logrus.Fields{
		"model":       model,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Completion call finished")

	return result.Choices[0].Message.Content, nil
}

// summarizeHTTPError maps upstream failures to short error summaries so raw
// provider payloads never leak into job errors.
func summarizeHTTPError(status int, body []byte) error {
	var parsed chatResponse
	detail := ""
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
		detail = ": " + parsed.Error.Message
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("completion API rejected credentials%s", detail)
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return fmt.Errorf("completion API quota exhausted%s", detail)
	default:
		return fmt.Errorf("completion API returned status %d%s", status, detail)
	}
}
