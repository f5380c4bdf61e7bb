package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/doorpasses/trustcore/pkg/client"
	"github.com/doorpasses/trustcore/pkg/errors"
	"github.com/doorpasses/trustcore/pkg/impersonate"
	"github.com/doorpasses/trustcore/pkg/token"
)

// Handle exposes the impersonation endpoints
type Handle struct {
	service      *impersonate.Service
	tokenService *token.Service
	cookieSetter token.CookieSetter
}

func NewHandle(service *impersonate.Service, tokenService *token.Service, cookieSetter token.CookieSetter) *Handle {
	return &Handle{
		service:      service,
		tokenService: tokenService,
		cookieSetter: cookieSetter,
	}
}

// Routes mounts the impersonation endpoints on a router. The router is
// expected to already carry token verification and AuthUser middleware.
func (h *Handle) Routes(r chi.Router) {
	r.Post("/impersonate", h.CreateImpersonate)
	r.Post("/impersonate/back", h.CreateImpersonateBack)
}

type CreateImpersonateRequest struct {
	TargetUserID string `json:"target_user_id"`
	TargetName   string `json:"target_name"`
}

type ImpersonateResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CreateImpersonate handles POST /impersonate. It attaches an impersonation
// marker to the caller's session and re-issues tokens for the target user.
func (h *Handle) CreateImpersonate(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.FromContext(r.Context())
	if !ok {
		slog.Error("Failed getting AuthUser from context")
		renderError(w, r, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	adminUserID, err := uuid.Parse(authUser.UserId)
	if err != nil {
		slog.Error("Invalid admin user id", "user_id", authUser.UserId, "err", err)
		renderError(w, r, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var data CreateImpersonateRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, http.StatusBadRequest, ErrorResponse{Error: "unable to parse body"})
		return
	}

	targetUserID, err := uuid.Parse(data.TargetUserID)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, ErrorResponse{Error: "invalid target user id"})
		return
	}

	err = h.service.StartImpersonation(r.Context(), authUser.SessionUuid, impersonate.ImpersonationSession{
		AdminUserID:  adminUserID,
		AdminName:    authUser.DisplayName,
		TargetUserID: targetUserID,
		TargetName:   data.TargetName,
	})
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	pair, err := h.tokenService.GenerateTokens(targetUserID.String(), map[string]interface{}{
		"session_id":   authUser.SessionId,
		"display_name": data.TargetName,
	})
	if err != nil {
		slog.Error("Failed to generate impersonation tokens", "target", targetUserID, "err", err)
		renderError(w, r, http.StatusInternalServerError, ErrorResponse{Error: "Failed to generate tokens"})
		return
	}

	if err := h.cookieSetter.SetTokensCookie(w, pair); err != nil {
		slog.Error("Failed to set token cookies", "err", err)
		renderError(w, r, http.StatusInternalServerError, ErrorResponse{Error: "Failed to set cookies"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ImpersonateResponse{
		Message: "Impersonation started",
		Status:  "success",
	})
}

// CreateImpersonateBack handles POST /impersonate/back. It ends the active
// impersonation session and re-issues tokens under a fresh session identity
// for the administrator.
func (h *Handle) CreateImpersonateBack(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.FromContext(r.Context())
	if !ok {
		slog.Error("Failed getting AuthUser from context")
		renderError(w, r, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	result, err := h.service.EndImpersonation(r.Context(), authUser.SessionUuid)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	pair, err := h.tokenService.GenerateTokens(result.Identity.UserID.String(), map[string]interface{}{
		"session_id":   authUser.SessionId,
		"identity_id":  result.Identity.ID.String(),
		"display_name": authUser.DisplayName,
	})
	if err != nil {
		slog.Error("Failed to generate handback tokens", "user", result.Identity.UserID, "err", err)
		renderError(w, r, http.StatusInternalServerError, ErrorResponse{Error: "Failed to generate tokens"})
		return
	}

	if err := h.cookieSetter.SetTokensCookie(w, pair); err != nil {
		slog.Error("Failed to set token cookies", "err", err)
		renderError(w, r, http.StatusInternalServerError, ErrorResponse{Error: "Failed to set cookies"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ImpersonateResponse{
		Message: "Impersonation ended",
		Status:  "success",
	})
}

func renderError(w http.ResponseWriter, r *http.Request, status int, body ErrorResponse) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// renderServiceError maps structured service errors onto HTTP responses.
// Crypto and persistence failures collapse into a generic 500 so no
// internal detail leaks to the caller.
func renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := errors.MapErrorCodeToHTTPStatus(code)
	body := ErrorResponse{Code: string(code)}
	if status >= http.StatusInternalServerError {
		slog.Error("Impersonation request failed", "code", code, "err", err)
		body.Error = http.StatusText(status)
	} else {
		body.Error = err.Error()
	}
	renderError(w, r, status, body)
}
