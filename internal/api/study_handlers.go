package api

import (
	"context"
	"net/http"

	"github.com/eta-study/eta-server/internal/core"
)

type studyRequest struct {
	threadRef
	Message string `json:"message"`
}

type studyFunc func(ctx context.Context, req core.StudyRequest) (*core.StudyResult, error)

// study serves one study tool; resultKey names the field holding its text.
func (h *APIHandler) study(fn studyFunc, resultKey string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req studyRequest
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		res, err := fn(r.Context(), core.StudyRequest{
			EtaID:  req.etaID(),
			ChatID: req.chatID(),
			Focus:  req.Message,
		})
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, map[string]any{
			"thread":  res.Thread,
			resultKey: res.Text,
		})
	}
}
