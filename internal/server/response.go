package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mailbridge/internal/bridge"
)

// Result is the success envelope. Kind says which one of the other fields is set.
type Result struct {
	Kind    string   `json:"kind"`
	Record  any      `json:"record,omitempty"`
	Records any      `json:"records,omitempty"`
	EntryID string   `json:"entry_id,omitempty"`
	Success bool     `json:"success,omitempty"`
	Paths   []string `json:"paths,omitempty"`
}

func recordResult(v any) Result      { return Result{Kind: "record", Record: v} }
func recordsResult(v any) Result     { return Result{Kind: "records", Records: v} }
func entryIDResult(id string) Result { return Result{Kind: "entry_id", EntryID: id} }
func successResult() Result          { return Result{Kind: "success", Success: true} }
func pathsResult(p []string) Result  { return Result{Kind: "paths", Paths: p} }

func sendResult(r bridge.SendResult) Result {
	if r.EntryID != "" {
		return entryIDResult(r.EntryID)
	}
	return successResult()
}

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

func writeJSONResponse(w http.ResponseWriter, log *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(data)
	if err != nil {
		log.Error("failed to marshal JSON", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		log.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, status int, code, message string, details map[string]any) {
	writeJSONResponse(w, log, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}}, status)
}

// statusFor maps the bridge error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch bridge.KindOf(err) {
	case bridge.ErrNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case bridge.ErrValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case bridge.ErrConnection:
		return http.StatusServiceUnavailable, "CONNECTION_ERROR"
	case bridge.ErrOperation:
		return http.StatusBadGateway, "OPERATION_FAILED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func writeBridgeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, code := statusFor(err)
	details := map[string]any{}
	var be *bridge.Error
	if errors.As(err, &be) {
		if be.Op != "" {
			details["operation"] = be.Op
		}
		if be.ID != "" {
			details["entry_id"] = be.ID
		}
		if be.Field != "" {
			details["field"] = be.Field
		}
	}
	if len(details) == 0 {
		details = nil
	}
	if status >= 500 {
		log.Warn("operation failed", "status", status, "error", err)
	}
	writeError(w, log, status, code, err.Error(), details)
}
