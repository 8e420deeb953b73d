package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	provider      Provider
	sessions      *Sessions
	frontendURL   string
	secureCookies bool
	logger        *zap.Logger
}

// NewHandler serves the login routes. After login and logout the browser is
// sent to frontendURL, or "/" when it is empty.
func NewHandler(p Provider, s *Sessions, frontendURL string, logger *zap.Logger) *Handler {
	return &Handler{
		provider:      p,
		sessions:      s,
		frontendURL:   frontendURL,
		secureCookies: strings.HasPrefix(frontendURL, "https://"),
		logger:        logger,
	}
}

func (h *Handler) home() string {
	if h.frontendURL == "" {
		return "/"
	}
	return h.frontendURL
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	h.setCookie(w, StateCookie, state, stateTTL)
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, "login failed: "+e)
		return
	}
	c, err := r.Cookie(StateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	h.clearCookie(w, StateCookie)

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}
	tok, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("oauth exchange failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to complete login")
		return
	}
	info, err := h.provider.UserInfo(r.Context(), tok)
	if err != nil {
		h.logger.Warn("userinfo request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to load user profile")
		return
	}

	signed, err := h.sessions.Sign(Session{
		User:        info,
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      tok.Expiry,
	})
	if err != nil {
		h.logger.Error("failed to sign session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.setCookie(w, SessionCookie, signed, h.sessions.TTL())
	http.Redirect(w, r, h.home(), http.StatusFound)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, SessionCookie)
	returnTo := h.frontendURL
	if returnTo == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		returnTo = scheme + "://" + r.Host + "/"
	}
	http.Redirect(w, r, h.provider.LogoutURL(returnTo), http.StatusFound)
}

// User returns the signed-in user's profile.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	sess := h.CurrentSession(r)
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"user": sess.User})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
