package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ollama-relay/internal/models"
)

// maxResponseBytes caps how much of a backend reply is read into memory.
const maxResponseBytes = 10 << 20

type OllamaService struct {
	url        string
	model      string
	httpClient *http.Client
}

func NewOllamaService(url, model string, timeout time.Duration) *OllamaService {
	return &OllamaService{
		url:        url,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Model returns the model identifier sent with every request.
func (s *OllamaService) Model() string {
	return s.model
}

// Chat sends content as a single user message and returns the assistant reply.
// An empty string with a nil error means the backend replied with a message
// that has no content.
// Every failure is a *BackendError.
func (s *OllamaService) Chat(ctx context.Context, content string) (string, error) {
	reqBody := models.InferenceRequest{
		Model:  s.model,
		Stream: false,
		Messages: []models.ChatMessage{
			{Role: "user", Content: content},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &BackendError{Kind: KindRequest, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(jsonData))
	if err != nil {
		return "", &BackendError{Kind: KindRequest, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &BackendError{Kind: KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The status alone is enough to report; a broken body is relayed as empty.
		return "", &BackendError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Body:       serializeBody(body),
			Err:        readErr,
		}
	}

	if readErr != nil {
		return "", &BackendError{Kind: KindUnreachable, Err: fmt.Errorf("failed to read response: %w", readErr)}
	}

	var apiResp models.InferenceResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", &BackendError{Kind: KindRequest, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	if apiResp.Message == nil {
		return "", &BackendError{Kind: KindRequest, Err: errors.New("response has no message")}
	}
	return apiResp.Message.Content, nil
}

// serializeBody renders a backend error body as JSON text: JSON bodies are
// compacted, anything else is quoted as a JSON string.
func serializeBody(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	quoted, _ := json.Marshal(string(body))
	return string(quoted)
}
