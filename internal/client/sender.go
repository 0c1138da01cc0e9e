package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CompletionRequest is the payload sent to the completion endpoint.
type CompletionRequest struct {
	LessonID         string `json:"lesson_id"`
	PhaseNumber      int    `json:"phase_number"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
	IdempotencyKey   string `json:"idempotency_key"`
}

// CompletionResponse is the server's acknowledgment of a completion.
type CompletionResponse struct {
	PhaseID           string     `json:"phase_id"`
	PhaseNumber       int        `json:"phase_number"`
	CompletedAt       *time.Time `json:"completed_at"`
	NextPhaseUnlocked bool       `json:"next_phase_unlocked"`
	Message           string     `json:"message"`
	Replayed          bool       `json:"-"`
}

// Sender submits one completion request on behalf of a user.
type Sender interface {
	Send(ctx context.Context, userID string, req CompletionRequest) (*CompletionResponse, error)
}

// HTTPSender posts completions to the backend API.
//
// Responses carrying a non-2xx status become *APIError (classified by status);
// transport failures stay plain errors and classify as transient.
type HTTPSender struct {
	// BaseURL is the API root including the base path, e.g.
	// "https://api.example.com/api/v1".
	BaseURL string

	// Token, when set, is sent as a Bearer credential. Otherwise the
	// X-User-ID header carries the identity.
	Token string

	// Client defaults to a 15s-timeout http.Client.
	Client *http.Client
}

func (s *HTTPSender) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, userID string, req CompletionRequest) (*CompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode completion: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/phases/complete", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.Token)
	} else if userID != "" {
		httpReq.Header.Set("X-User-ID", userID)
	}

	resp, err := s.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	var out CompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	out.Replayed = resp.Header.Get("X-Idempotent-Replay") == "true"
	return &out, nil
}
