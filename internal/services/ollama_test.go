package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ollama-relay/internal/models"
)

func TestOllamaService_Chat_SendsSingleUserMessage(t *testing.T) {
	var got models.InferenceRequest
	var contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode outbound request: %v", err)
		}
		w.Write([]byte(`{"model":"llama3.2:3b","message":{"role":"assistant","content":"hello"},"done":true}`))
	}))
	defer srv.Close()

	svc := NewOllamaService(srv.URL, "llama3.2:3b", time.Second)
	reply, err := svc.Chat(context.Background(), "hi there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("expected reply %q, got %q", "hello", reply)
	}

	if contentType != "application/json" {
		t.Errorf("expected JSON content type, got %q", contentType)
	}
	if got.Model != "llama3.2:3b" || got.Stream {
		t.Errorf("unexpected model/stream: %q/%v", got.Model, got.Stream)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "hi there" {
		t.Errorf("unexpected outbound messages: %+v", got.Messages)
	}
}

func TestOllamaService_Chat_EmptyContentIsEmptyReply(t *testing.T) {
	for _, body := range []string{`{"message":{"content":""}}`, `{"message":{}}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		reply, err := NewOllamaService(srv.URL, "m", time.Second).Chat(context.Background(), "x")
		srv.Close()

		if err != nil {
			t.Fatalf("body %s: unexpected error: %v", body, err)
		}
		if reply != "" {
			t.Fatalf("body %s: expected empty reply, got %q", body, reply)
		}
	}
}

func TestOllamaService_Chat_MissingMessageIsRequestError(t *testing.T) {
	for _, body := range []string{`{}`, `{"message":null}`, `null`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		_, err := NewOllamaService(srv.URL, "m", time.Second).Chat(context.Background(), "x")
		srv.Close()

		var be *BackendError
		if !errors.As(err, &be) || be.Kind != KindRequest {
			t.Fatalf("body %s: expected KindRequest, got %v", body, err)
		}
		if !strings.Contains(be.Error(), "response has no message") {
			t.Fatalf("body %s: unexpected error text %q", body, be.Error())
		}
	}
}

func TestOllamaService_Chat_StatusError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"json body is compacted", http.StatusServiceUnavailable, "{ \"error\" : \"overloaded\" }\n", `{"error":"overloaded"}`},
		{"text body is quoted", http.StatusNotFound, "model not found", `"model not found"`},
		{"empty body", http.StatusBadGateway, "", `""`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewOllamaService(srv.URL, "m", time.Second).Chat(context.Background(), "x")

			var be *BackendError
			if !errors.As(err, &be) {
				t.Fatalf("expected *BackendError, got %v", err)
			}
			if be.Kind != KindStatus {
				t.Fatalf("expected KindStatus, got %s", be.Kind)
			}
			if be.StatusCode != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, be.StatusCode)
			}
			if be.Body != tc.expected {
				t.Errorf("expected body %s, got %s", tc.expected, be.Body)
			}
		})
	}
}

func TestOllamaService_Chat_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewOllamaService(url, "m", time.Second).Chat(context.Background(), "x")

	var be *BackendError
	if !errors.As(err, &be) || be.Kind != KindUnreachable {
		t.Fatalf("expected KindUnreachable, got %v", err)
	}
}

func TestOllamaService_Chat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewOllamaService(srv.URL, "m", 50*time.Millisecond).Chat(context.Background(), "x")

	var be *BackendError
	if !errors.As(err, &be) || be.Kind != KindUnreachable {
		t.Fatalf("expected KindUnreachable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not enforced, call took %s", elapsed)
	}
}

func TestOllamaService_Chat_InvalidURL(t *testing.T) {
	_, err := NewOllamaService("http://[::1", "m", time.Second).Chat(context.Background(), "x")

	var be *BackendError
	if !errors.As(err, &be) || be.Kind != KindRequest {
		t.Fatalf("expected KindRequest, got %v", err)
	}
}

func TestOllamaService_Chat_UndecodableReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>proxy page</html>"))
	}))
	defer srv.Close()

	_, err := NewOllamaService(srv.URL, "m", time.Second).Chat(context.Background(), "x")

	var be *BackendError
	if !errors.As(err, &be) || be.Kind != KindRequest {
		t.Fatalf("expected KindRequest, got %v", err)
	}
}

func TestBackendErrorKind_String(t *testing.T) {
	cases := map[BackendErrorKind]string{
		KindStatus:          "backend_status",
		KindUnreachable:     "backend_unreachable",
		KindRequest:         "request_error",
		BackendErrorKind(0): "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("kind %d: expected %q, got %q", int(kind), want, got)
		}
	}
}
