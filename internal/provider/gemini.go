// Package provider holds the upstream Gemini client. The provider API key
// lives on the gateway; desktop clients never see it.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Cost estimation, Gemini 2.5 Flash paid tier, converted to VND per token.
// Input $0.30/1M tokens, output $2.50/1M tokens, at 25,300 VND/USD.
const (
	costPerInputTokenVND  = 0.00759
	costPerOutputTokenVND = 0.06325
)

// Client calls the Gemini generateContent API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewClient creates a new Gemini client
func NewClient(apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint. Used by
// tests to point at a stub server.
func NewClientWithBaseURL(apiKey, model, baseURL string, timeout time.Duration) *Client {
	c := NewClient(apiKey, model, timeout)
	c.baseURL = baseURL
	return c
}

// Response is the provider outcome the metering core consumes: the generated
// text plus the token counts and estimated cost that become a usage event.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCostVND float64
}

// GenerateParams shape a text generation call.
type GenerateParams struct {
	Prompt            string
	SystemInstruction string
	Temperature       *float64
	MaxOutputTokens   int
}

// VisionParams shape an image/PDF call.
type VisionParams struct {
	Prompt          string
	Base64Data      string
	MimeType        string
	MaxOutputTokens int
}

// Wire types for the Gemini REST API.

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate runs a text-only generation call.
func (c *Client) Generate(ctx context.Context, params GenerateParams) (*Response, error) {
	temperature := 0.7
	if params.Temperature != nil {
		temperature = *params.Temperature
	}

	req := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: params.Prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     temperature,
			MaxOutputTokens: params.MaxOutputTokens,
		},
	}
	if params.SystemInstruction != "" {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: params.SystemInstruction}},
		}
	}

	return c.call(ctx, req)
}

// GenerateVision runs a call with an inline image or PDF attachment.
func (c *Client) GenerateVision(ctx context.Context, params VisionParams) (*Response, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{
				{Text: params.Prompt},
				{InlineData: &geminiInlineData{MimeType: params.MimeType, Data: params.Base64Data}},
			}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     0.1,
			MaxOutputTokens: params.MaxOutputTokens,
		},
	}

	return c.call(ctx, req)
}

func (c *Client) call(ctx context.Context, body geminiRequest) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	text := ""
	if len(parsed.Candidates) > 0 && len(parsed.Candidates[0].Content.Parts) > 0 {
		text = parsed.Candidates[0].Content.Parts[0].Text
	}

	usage := parsed.UsageMetadata
	return &Response{
		Text:             text,
		PromptTokens:     usage.PromptTokenCount,
		CompletionTokens: usage.CandidatesTokenCount,
		TotalTokens:      usage.TotalTokenCount,
		EstimatedCostVND: float64(usage.PromptTokenCount)*costPerInputTokenVND +
			float64(usage.CandidatesTokenCount)*costPerOutputTokenVND,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
