// Package protocol serves the command envelope over HTTP.
package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"bandkeeper/internal/core"
	"bandkeeper/pkg/domain"
)

const (
	// CommandsPath accepts POSTed request envelopes.
	CommandsPath = "/api/v1/commands"
	// RequestIDHeader carries the correlation id in both directions.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

// Dispatcher executes one request envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.Request) domain.Response
}

// Handler routes HTTP requests to the dispatcher.
type Handler struct {
	Dispatcher Dispatcher
	Logger     core.Logger
	// Metrics, when set, is served on /metrics.
	Metrics http.Handler
}

// NewHandler constructs a protocol handler.
func NewHandler(d Dispatcher, logger core.Logger) *Handler {
	return &Handler{Dispatcher: d, Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch path {
	case CommandsPath:
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, failure(domain.KindMalformedRequest, "method not allowed"))
			return
		}
		h.handleCommand(w, r)
	case "/healthz":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case "/metrics":
		if h.Metrics == nil {
			http.NotFound(w, r)
			return
		}
		h.Metrics.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, failure(domain.KindMalformedRequest, "read request: "+err.Error()))
		return
	}
	var req domain.Request
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failure(domain.KindMalformedRequest, "decode request: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.User.Login) == "" {
		writeJSON(w, http.StatusBadRequest, failure(domain.KindMalformedRequest, "request user login is required"))
		return
	}

	resp := h.Dispatcher.Dispatch(r.Context(), req)
	if h.Logger != nil && resp.Failed() {
		h.Logger.Debug("command response", "request_id", requestID, "command", req.Command, "error_kind", string(resp.ErrorKind))
	}
	writeJSON(w, StatusFor(resp), resp)
}

// StatusFor maps a response to its HTTP status code.
func StatusFor(resp domain.Response) int {
	if !resp.Failed() {
		return http.StatusOK
	}
	switch resp.ErrorKind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindIndexOutOfRange, domain.KindMalformedRequest:
		return http.StatusBadRequest
	case domain.KindDuplicateIDDetected:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func failure(kind domain.ErrorKind, message string) domain.Response {
	return domain.Response{Status: domain.StatusError, ErrorKind: kind, Message: message}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
