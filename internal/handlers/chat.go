package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"ollama-relay/internal/metrics"
	"ollama-relay/internal/middleware"
	"ollama-relay/internal/models"
	"ollama-relay/internal/services"
)

const (
	msgMessagesRequired = `the "messages" field is required.`
	msgMessagesEmpty    = `the "messages" field must contain at least one message.`
	msgInvalidBody      = "invalid request body."
	msgTooLarge         = "request entity too large."
	msgNoResponse       = "no response received from backend API."

	prefixBackendError = "error in backend API: "
	prefixRequestError = "error configuring request: "

	// FallbackAnswer is relayed when the backend replies without content.
	FallbackAnswer = "could not process your message."
)

type chatService interface {
	Chat(ctx context.Context, content string) (string, error)
	Model() string
}

type ChatHandler struct {
	chatService chatService
	logger      *slog.Logger
	collector   *metrics.Collector
}

func NewChatHandler(chatService chatService, logger *slog.Logger, collector *metrics.Collector) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
		collector:   collector,
	}
}

// Generate relays the last message of the conversation to the backend and
// returns its reply as {"answer": ...}.
func (h *ChatHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	// Bodies that are not declared as JSON are ignored, leaving req empty.
	if isJSONContent(r) {
		if status, msg, ok := decodeBody(r.Body, &req); !ok {
			writeJSON(w, status, errorResp(msg))
			return
		}
	}

	if req.Messages == nil {
		writeJSON(w, http.StatusBadRequest, errorResp(msgMessagesRequired))
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp(msgMessagesEmpty))
		return
	}

	content := req.Messages[len(req.Messages)-1].Content

	start := time.Now()
	reply, err := h.chatService.Chat(r.Context(), content)
	duration := time.Since(start)

	if err != nil {
		h.handleBackendError(w, r, err, duration)
		return
	}

	outcome := metrics.OutcomeSuccess
	if reply == "" {
		reply = FallbackAnswer
		outcome = metrics.OutcomeFallback
	}
	h.observe(outcome, duration)

	writeJSON(w, http.StatusOK, models.RelayResponse{Answer: reply})
}

func (h *ChatHandler) handleBackendError(w http.ResponseWriter, r *http.Request, err error, duration time.Duration) {
	requestID := middleware.GetRequestID(r.Context())

	var be *services.BackendError
	if !errors.As(err, &be) {
		be = &services.BackendError{Kind: services.KindRequest, Err: err}
	}
	h.observe(be.Kind.String(), duration)

	switch be.Kind {
	case services.KindStatus:
		h.logger.Error("backend API error",
			"request_id", requestID,
			"status", be.StatusCode,
			"body", be.Body,
		)
		writeJSON(w, be.StatusCode, errorResp(prefixBackendError+be.Body))

	case services.KindUnreachable:
		h.logger.Error("no response received from backend API",
			"request_id", requestID,
			"error", be.Err,
		)
		writeJSON(w, http.StatusInternalServerError, errorResp(msgNoResponse))

	default:
		h.logger.Error("error configuring backend request",
			"request_id", requestID,
			"error", be.Err,
		)
		writeJSON(w, http.StatusInternalServerError, errorResp(prefixRequestError+errorText(be.Err)))
	}
}

func (h *ChatHandler) observe(outcome string, duration time.Duration) {
	if h.collector != nil {
		h.collector.ObserveBackendCall(h.chatService.Model(), outcome, duration)
	}
}

// decodeBody decodes exactly one JSON value; anything after it is rejected.
// An empty body leaves v untouched.
func decodeBody(body io.Reader, v interface{}) (int, string, bool) {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, "", true
		}
		return decodeFailure(err)
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			return http.StatusBadRequest, msgInvalidBody, false
		}
		return decodeFailure(err)
	}
	return 0, "", true
}

func decodeFailure(err error) (int, string, bool) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, msgTooLarge, false
	}
	return http.StatusBadRequest, msgInvalidBody, false
}

func isJSONContent(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
