package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSender_Success(t *testing.T) {
	var gotPath, gotUser string
	var gotReq CompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser = r.Header.Get("X-User-ID")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		now := time.Now().UTC()
		_ = json.NewEncoder(w).Encode(CompletionResponse{
			PhaseID:           "p1",
			PhaseNumber:       2,
			CompletedAt:       &now,
			NextPhaseUnlocked: true,
			Message:           "Phase 2 completed. Phase 3 unlocked.",
		})
	}))
	defer srv.Close()

	s := &HTTPSender{BaseURL: srv.URL + "/api/v1"}
	res, err := s.Send(context.Background(), "u1", CompletionRequest{
		LessonID: "l1", PhaseNumber: 2, TimeSpentSeconds: 77, IdempotencyKey: "k1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/api/v1/phases/complete" {
		t.Fatalf("posted to %q", gotPath)
	}
	if gotUser != "u1" {
		t.Fatalf("X-User-ID = %q", gotUser)
	}
	if gotReq.IdempotencyKey != "k1" || gotReq.TimeSpentSeconds != 77 {
		t.Fatalf("request body mismatch: %+v", gotReq)
	}
	if !res.NextPhaseUnlocked || res.Replayed {
		t.Fatalf("response mismatch: %+v", res)
	}
}

func TestHTTPSender_ReplayHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Idempotent-Replay", "true")
		now := time.Now().UTC()
		_ = json.NewEncoder(w).Encode(CompletionResponse{PhaseNumber: 1, CompletedAt: &now})
	}))
	defer srv.Close()

	s := &HTTPSender{BaseURL: srv.URL}
	res, err := s.Send(context.Background(), "u1", CompletionRequest{LessonID: "l1", PhaseNumber: 1, IdempotencyKey: "k"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Replayed {
		t.Fatalf("expected Replayed from header")
	}
}

func TestHTTPSender_BearerTokenPreferredOverHeader(t *testing.T) {
	var auth, user string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		user = r.Header.Get("X-User-ID")
		_ = json.NewEncoder(w).Encode(CompletionResponse{PhaseNumber: 1})
	}))
	defer srv.Close()

	s := &HTTPSender{BaseURL: srv.URL, Token: "tok123"}
	if _, err := s.Send(context.Background(), "u1", CompletionRequest{LessonID: "l1", PhaseNumber: 1, IdempotencyKey: "k"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if auth != "Bearer tok123" {
		t.Fatalf("Authorization = %q", auth)
	}
	if user != "" {
		t.Fatalf("token auth should not also send X-User-ID, got %q", user)
	}
}

func TestHTTPSender_ErrorEnvelopeBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"phase_locked","message":"Previous phase must be completed"}`))
	}))
	defer srv.Close()

	s := &HTTPSender{BaseURL: srv.URL}
	_, err := s.Send(context.Background(), "u1", CompletionRequest{LessonID: "l1", PhaseNumber: 3, IdempotencyKey: "k"})
	if err == nil {
		t.Fatalf("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Code != "phase_locked" {
		t.Fatalf("APIError mismatch: %+v", apiErr)
	}
	if Classify(err) != KindAccessDenied {
		t.Fatalf("403 should classify access_denied")
	}
}

func TestHTTPSender_NonJSONErrorBodyStillClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	s := &HTTPSender{BaseURL: srv.URL}
	_, err := s.Send(context.Background(), "u1", CompletionRequest{LessonID: "l1", PhaseNumber: 1, IdempotencyKey: "k"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
	if Classify(err) != KindTransient {
		t.Fatalf("502 should classify transient")
	}
}

func TestHTTPSender_NetworkFailureIsPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // immediately, to force connection refused

	s := &HTTPSender{BaseURL: srv.URL, Client: &http.Client{Timeout: time.Second}}
	_, err := s.Send(context.Background(), "u1", CompletionRequest{LessonID: "l1", PhaseNumber: 1, IdempotencyKey: "k"})
	if err == nil {
		t.Fatalf("expected network failure")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("network failure must not carry a status")
	}
	if Classify(err) != KindTransient {
		t.Fatalf("network failure should classify transient")
	}
}
