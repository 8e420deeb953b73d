package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eta-study/eta-server/internal/core"
)

type generateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Auth0Sub string `json:"auth0_sub"`
}

type userResponse struct {
	EtaID      string     `json:"eta_id"`
	UploadDate string     `json:"upload_date"`
	User       *core.User `json:"user"`
	Created    *bool      `json:"created,omitempty"`
}

func (h *APIHandler) GenerateUser(w http.ResponseWriter, r *http.Request) error {
	var req generateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	u, err := h.svc.Users.CreateUser(r.Context(), core.CreateUserRequest{
		Name:     req.Name,
		Email:    req.Email,
		Auth0Sub: req.Auth0Sub,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, userResponse{EtaID: u.EtaID, UploadDate: u.UploadDate, User: u})
}

func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) error {
	u, err := h.svc.Users.GetUser(r.Context(), chi.URLParam(r, "etaID"), queryParam(r, "upload_date", "uploadDate"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, u)
}

type syncUserRequest struct {
	EtaID      string `json:"eta_id"`
	EtaIDCamel string `json:"etaId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Auth0Sub   string `json:"auth0_sub"`
}

func (h *APIHandler) SyncUser(w http.ResponseWriter, r *http.Request) error {
	var req syncUserRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	res, err := h.svc.Users.SyncUser(r.Context(), core.SyncRequest{
		EtaID:    firstNonEmpty(req.EtaID, req.EtaIDCamel),
		Name:     req.Name,
		Email:    req.Email,
		Auth0Sub: req.Auth0Sub,
	})
	if err != nil {
		return err
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return writeJSON(w, status, userResponse{
		EtaID:      res.User.EtaID,
		UploadDate: res.User.UploadDate,
		User:       res.User,
		Created:    &res.Created,
	})
}

func (h *APIHandler) GetContext(w http.ResponseWriter, r *http.Request) error {
	etaID := chi.URLParam(r, "etaID")
	entries, err := h.svc.Users.GetContext(r.Context(), etaID, queryParam(r, "upload_date", "uploadDate"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"eta_id": etaID, "context": entries})
}
