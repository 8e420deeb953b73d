package api

import (
	"net/http"
	"strconv"

	"github.com/eta-study/eta-server/internal/core"
)

type voiceRequest struct {
	threadRef
	Question string `json:"question"`
	Persona  string `json:"persona"`
}

// VoiceResponse writes the synthesized reply as audio/mpeg with the avatar
// animation in X-Animation.
func (h *APIHandler) VoiceResponse(w http.ResponseWriter, r *http.Request) error {
	var req voiceRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	res, err := h.svc.Voice.Respond(r.Context(), core.VoiceRequest{
		Question: req.Question,
		Persona:  req.Persona,
		EtaID:    req.etaID(),
		ChatID:   req.chatID(),
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio)))
	w.Header().Set("X-Animation", res.Animation)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio)
	return nil
}
