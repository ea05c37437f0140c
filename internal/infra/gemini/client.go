package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
)

const DefaultModel = "gemini-2.0-flash"

// Client answers the classification prompt through the Gemini API directly.
type Client struct {
	client *genai.Client
	model  string
	maxTok int32
}

type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	// BaseURL overrides the Gemini API host.
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{client: client, model: cfg.Model, maxTok: int32(cfg.MaxTokens)}, nil
}

func (c *Client) Name() string {
	return "Gemini"
}

func (c *Client) Complete(ctx context.Context, req usecase.VisionRequest) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(req.Prompt),
			genai.NewPartFromBytes(req.Image, req.MimeType),
		}, genai.RoleUser),
	}

	var config *genai.GenerateContentConfig
	if c.maxTok > 0 {
		config = &genai.GenerateContentConfig{MaxOutputTokens: c.maxTok}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.Code, Message: apiErr.Message}
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) {
			return "", &StatusError{Code: apiErrPtr.Code, Message: apiErrPtr.Message}
		}
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// StatusError carries the HTTP status of a failed Gemini call.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API Error: %d %s", e.Code, e.Message)
}

func (e *StatusError) StatusCode() int {
	return e.Code
}
