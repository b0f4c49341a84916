package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sau-dev/something-about-us/pkg/authsession"
	"github.com/sau-dev/something-about-us/pkg/idp"
	"github.com/sau-dev/something-about-us/pkg/loginflow"
)

// Handle translates the OAuth HTTP surface to flow calls: it owns cookie
// handling and status mapping, nothing else.
type Handle struct {
	flow    *loginflow.Service
	cookies *authsession.CookieManager
}

func NewHandle(flow *loginflow.Service, cookies *authsession.CookieManager) *Handle {
	return &Handle{flow: flow, cookies: cookies}
}

type errorResponse struct {
	Error string `json:"error"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// renderFlowError maps an error class to a status with a generic body.
// Failure detail stays in the logs.
func renderFlowError(w http.ResponseWriter, r *http.Request, err error) {
	var flowErr *loginflow.Error
	if !errors.As(err, &flowErr) {
		flowErr = &loginflow.Error{Class: loginflow.ClassInternal, Err: err}
	}

	switch flowErr.Class {
	case loginflow.ClassValidation:
		slog.Info("rejected oauth request", "error", flowErr.Err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "invalid request"})
	case loginflow.ClassAuth:
		slog.Info("authentication failed", "error", flowErr.Err)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, errorResponse{Error: "authentication failed"})
	default:
		slog.Error("login flow failed", "error", flowErr.Err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "internal error"})
	}
}

func providerFromRequest(r *http.Request) (idp.Idp, error) {
	return idp.Parse(chi.URLParam(r, "idp"))
}

// Login handles GET /api/v1/oauth/{idp}/login. On success the session
// cookie is set and the client is redirected to the provider.
func (h *Handle) Login(w http.ResponseWriter, r *http.Request) {
	provider, err := providerFromRequest(r)
	if err != nil {
		slog.Info("rejected oauth request", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "invalid request"})
		return
	}

	result, err := h.flow.Login(r.Context(), provider)
	if err != nil {
		renderFlowError(w, r, err)
		return
	}

	h.cookies.SetSessionCookie(w, result.SessionID)
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback handles GET /api/v1/oauth/{idp}/callback. The cookie is
// cleared only once the flow reports the session consumed; an attacker
// probing the callback cannot burn a victim's pending login cookie.
func (h *Handle) Callback(w http.ResponseWriter, r *http.Request) {
	provider, err := providerFromRequest(r)
	if err != nil {
		slog.Info("rejected oauth request", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "invalid request"})
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "invalid request"})
		return
	}

	sessionID, hasSession, err := authsession.SessionIDFromRequest(r)
	if err != nil {
		// A cookie that does not hold a UUID is junk either way.
		h.cookies.ClearSessionCookie(w)
		slog.Info("authentication failed", "error", err)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, errorResponse{Error: "authentication failed"})
		return
	}

	result, err := h.flow.Callback(r.Context(), provider, loginflow.CallbackRequest{
		SessionID:  sessionID,
		HasSession: hasSession,
		Code:       code,
		State:      state,
	})
	if result.SessionConsumed {
		h.cookies.ClearSessionCookie(w)
	}
	if err != nil {
		renderFlowError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, tokenResponse{AccessToken: result.AccessToken})
}

// Routes returns the router for the OAuth endpoints.
func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{idp}/login", h.Login)
	r.Get("/{idp}/callback", h.Callback)
	return r
}
