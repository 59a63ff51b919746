package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stitchworks/atelier/internal/core/domain"
	"github.com/stitchworks/atelier/internal/core/prompt"
)

type fakeDoer struct {
	requests []*http.Request
	bodies   [][]byte

	status int
	body   string
	err    error
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, raw)
	}
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
	}, nil
}

func candidateResponse(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func newTestClient(doer *fakeDoer) *Client {
	c := New("https://example.test", "gemini-2.0-flash", "secret", Options{Timeout: time.Second})
	c.httpClient = doer
	return c
}

func TestGenerateSendsPromptAndReturnsText(t *testing.T) {
	doer := &fakeDoer{body: candidateResponse(`{"compatible":true}`)}
	c := newTestClient(doer)

	text, err := c.Generate(context.Background(), prompt.Request{
		System:          "judge compatibility",
		User:            "Fabric: nylon",
		MaxOutputTokens: 1024,
		Temperature:     0.1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"compatible":true}` {
		t.Fatalf("unexpected text: %q", text)
	}

	req := doer.requests[0]
	if req.URL.Path != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Fatalf("unexpected path: %s", req.URL.Path)
	}
	if req.Header.Get("x-goog-api-key") != "secret" {
		t.Fatal("expected api key header")
	}

	var sent generateContentRequest
	if err := json.Unmarshal(doer.bodies[0], &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.SystemInstruction == nil || sent.SystemInstruction.Parts[0].Text != "judge compatibility" {
		t.Fatalf("system instruction not carried: %+v", sent.SystemInstruction)
	}
	if sent.GenerationConfig.MaxOutputTokens != 1024 || sent.GenerationConfig.Temperature != 0.1 {
		t.Fatalf("generation config not carried: %+v", sent.GenerationConfig)
	}
	if sent.GenerationConfig.ResponseMimeType != "application/json" {
		t.Fatalf("expected JSON response mime type, got %q", sent.GenerationConfig.ResponseMimeType)
	}
}

func TestGenerateClassifiesRateLimit(t *testing.T) {
	doer := &fakeDoer{status: http.StatusTooManyRequests, body: "quota exhausted"}
	c := newTestClient(doer)

	_, err := c.Generate(context.Background(), prompt.Request{User: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(doer.requests) != 1 {
		t.Fatalf("the gateway must not retry, got %d requests", len(doer.requests))
	}
}

func TestGenerateClassifiesServerError(t *testing.T) {
	doer := &fakeDoer{status: http.StatusInternalServerError, body: "boom"}
	c := newTestClient(doer)

	_, err := c.Generate(context.Background(), prompt.Request{User: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if domain.RetryableGeneration(err) {
		t.Fatal("a hard generation failure must not be retryable")
	}
}

func TestGenerateClassifiesTimeout(t *testing.T) {
	doer := &fakeDoer{err: context.DeadlineExceeded}
	c := newTestClient(doer)

	_, err := c.Generate(context.Background(), prompt.Request{User: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrGenerationTimeout) {
		t.Fatalf("expected ErrGenerationTimeout, got %v", err)
	}
	if !domain.RetryableGeneration(err) {
		t.Fatal("timeouts are retryable by caller policy")
	}
}

func TestGeneratePassesCancellationThrough(t *testing.T) {
	doer := &fakeDoer{err: context.Canceled}
	c := newTestClient(doer)

	_, err := c.Generate(context.Background(), prompt.Request{User: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation must pass through unclassified, got %v", err)
	}
}

func TestGenerateEmptyCandidateIsFailure(t *testing.T) {
	doer := &fakeDoer{body: `{"candidates":[]}`}
	c := newTestClient(doer)

	_, err := c.Generate(context.Background(), prompt.Request{User: "hi"})
	if err == nil {
		t.Fatal("expected error for empty candidates")
	}
	if !domain.IsKind(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}
