package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eta-study/eta-server/internal/core"
)

// Services bundles the core services the routes call.
type Services struct {
	Users   *core.UserService
	Context *core.ContextService
	Chat    *core.ChatService
	Study   *core.StudyService
	Voice   *core.VoiceService
}

type APIHandler struct {
	svc    Services
	logger *zap.Logger
}

func NewAPIHandler(svc Services, logger *zap.Logger) *APIHandler {
	return &APIHandler{svc: svc, logger: logger}
}

// handlerFunc is a handler that reports failure by returning an error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts fn and maps its errors to JSON responses.
func (h *APIHandler) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		writeError(w, status, msg)
	}
}

func statusFor(err error) (int, string) {
	switch core.KindOf(err) {
	case core.KindInvalidInput:
		return http.StatusBadRequest, err.Error()
	case core.KindNotFound:
		return http.StatusNotFound, err.Error()
	case core.KindUpstream:
		return http.StatusBadGateway, err.Error()
	case core.KindStorage:
		return http.StatusInternalServerError, "storage failure"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// writeJSON always returns nil: once the header is out there is nothing left
// to report to the client.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return core.InvalidInput("invalid request body: %v", err)
}

// threadRef carries the identifiers clients send under either spelling.
type threadRef struct {
	EtaID       string `json:"eta_id"`
	EtaIDCamel  string `json:"etaId"`
	ChatID      string `json:"chatID"`
	ChatIDCamel string `json:"chatId"`
}

func (t threadRef) etaID() string  { return firstNonEmpty(t.EtaID, t.EtaIDCamel) }
func (t threadRef) chatID() string { return firstNonEmpty(t.ChatID, t.ChatIDCamel) }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// queryParam returns the first non-empty query value among names.
func queryParam(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, n := range names {
		if v := strings.TrimSpace(q.Get(n)); v != "" {
			return v
		}
	}
	return ""
}

func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
