package api

import (
	"net/http"

	"github.com/eta-study/eta-server/internal/core"
	"github.com/eta-study/eta-server/internal/history"
)

type threadResponse struct {
	Thread *history.Thread `json:"thread"`
}

type createThreadRequest struct {
	threadRef
	Title string `json:"title"`
}

func (h *APIHandler) CreateThread(w http.ResponseWriter, r *http.Request) error {
	var req createThreadRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	th, err := h.svc.Chat.CreateThread(r.Context(), core.CreateThreadRequest{
		EtaID:  req.etaID(),
		ChatID: req.chatID(),
		Title:  req.Title,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, threadResponse{Thread: th})
}

func (h *APIHandler) GetThread(w http.ResponseWriter, r *http.Request) error {
	th, err := h.svc.Chat.GetThread(r.Context(),
		queryParam(r, "eta_id", "etaId"),
		queryParam(r, "chatID", "chatId", "chat_id"),
	)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, threadResponse{Thread: th})
}

type addMessageRequest struct {
	threadRef
	Message string `json:"message"`
	Persona string `json:"persona"`
}

type addMessageResponse struct {
	Thread           *history.Thread `json:"thread"`
	AssistantMessage string          `json:"assistant_message"`
}

func (h *APIHandler) AddMessage(w http.ResponseWriter, r *http.Request) error {
	var req addMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	res, err := h.svc.Chat.AddMessage(r.Context(), core.AddMessageRequest{
		EtaID:   req.etaID(),
		ChatID:  req.chatID(),
		Message: req.Message,
		Persona: req.Persona,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, addMessageResponse{Thread: res.Thread, AssistantMessage: res.AssistantMessage})
}
