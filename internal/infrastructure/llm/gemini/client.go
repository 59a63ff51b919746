// Package gemini implements the text-generation gateway against a
// Gemini-style generateContent REST endpoint. The gateway sends exactly
// one request per Generate call and classifies failures into the domain
// taxonomy; retrying is the caller's policy, never the gateway's.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stitchworks/atelier/internal/core/prompt"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	model      string
	apiKey     string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient httpDoer
}

type Options struct {
	// Timeout is the hard upper bound on one generation call.
	Timeout time.Duration
	// RequestsPerMinute throttles calls client-side before the service
	// has a chance to answer 429. Zero disables throttling.
	RequestsPerMinute int
}

func New(baseURL, model, apiKey string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if options.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(options.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		timeout:    timeout,
		limiter:    limiter,
		httpClient: newHTTPClient(timeout),
	}
}

type generateContentRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Generate sends one built request and returns the raw response text.
func (c *Client) Generate(ctx context.Context, req prompt.Request) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", wrapDomainError("generate", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.User}}}},
		GenerationConfig: generationConfig{
			Temperature:      req.Temperature,
			MaxOutputTokens:  req.MaxOutputTokens,
			ResponseMimeType: "application/json",
		},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", c.model)
	var response generateContentResponse
	if err := c.postJSON(callCtx, path, body, &response, "generate"); err != nil {
		return "", wrapDomainError("generate", err)
	}

	text := responseText(response)
	if strings.TrimSpace(text) == "" {
		return "", wrapDomainError("generate", fmt.Errorf("empty candidate text"))
	}
	return text, nil
}

func responseText(response generateContentResponse) string {
	var b strings.Builder
	for _, candidate := range response.Candidates {
		for _, p := range candidate.Content.Parts {
			b.WriteString(p.Text)
		}
		break
	}
	return b.String()
}
