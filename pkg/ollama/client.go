package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/headshot/pkg/client"
	"github.com/menta2k/headshot/pkg/types"
)

// DefaultTimeout applies when the caller's context has no deadline
const DefaultTimeout = 2 * time.Minute

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs scheme and host", ollamaURL)
	}

	// Drop any path such as /api/chat; the SDK adds its own
	baseURL := &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}

	return &Client{client: api.NewClient(baseURL, http.DefaultClient)}, nil
}

// LocateFaces asks the model for face boxes. The model is asked for JSON only.
func (c *Client) LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceReport, error) {
	// Localisation wants a low temperature
	options := map[string]any{"temperature": 0.1}
	if strings.Contains(strings.ToLower(model), "minicpm") {
		options["num_ctx"] = 4096
	}

	answer, err := c.chat(ctx, model, prompt, imgB64, options)
	if err != nil {
		return nil, err
	}
	if answer == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}
	return client.ParseFaceReport(answer), nil
}

func (c *Client) chat(ctx context.Context, model, prompt, imgB64 string, options map[string]any) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 image: %w", err)
	}

	stream := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream:  &stream,
		Options: options,
	}

	var content strings.Builder
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	return content.String(), nil
}
