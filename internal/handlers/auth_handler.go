package handlers

import (
	"net/http"

	"familysync/internal/models"
	"familysync/internal/security"
	"familysync/internal/service"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService          *service.AuthService
	csrf                 *security.CSRFGenerator
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, csrf *security.CSRFGenerator, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL string) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		csrf:                 csrf,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// sessionResponse describes the signed-in caller. Family is nil while onboarding.
type sessionResponse struct {
	Account      *models.Account `json:"account"`
	Member       *models.Member  `json:"member"`
	Family       *models.Family  `json:"family"`
	NeedsOnboard bool            `json:"needs_onboarding"`
	CSRFToken    string          `json:"csrf_token"`
}

// Register handles account creation and signs the new account in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	if _, _, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Name); err != nil {
		respondServiceError(w, err, "Error registering account")
		return
	}

	// Auto-login after registration
	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err, "Error signing in after registration")
		return
	}

	h.startSession(w, r, session, http.StatusCreated)
}

// Login handles email and password sign-in
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err, "Error signing in")
		return
	}

	h.startSession(w, r, session, http.StatusOK)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, session *models.Session, status int) {
	identity, err := h.authService.ResolveIdentity(r.Context(), session.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error resolving new session", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, session.ID, session.ExpiresAt))
	respondJSON(w, status, h.sessionBody(identity, session.ID))
}

func (h *AuthHandler) sessionBody(identity *models.Identity, sessionID string) sessionResponse {
	token, _ := h.csrf.GenerateToken(sessionID)
	return sessionResponse{
		Account:      identity.Account,
		Member:       identity.Member,
		Family:       identity.Family,
		NeedsOnboard: identity.Family == nil,
		CSRFToken:    token,
	}
}

// Session returns the signed-in caller and a CSRF token for mutating requests
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())
	respondJSON(w, http.StatusOK, h.sessionBody(identity, sessionIDFromContext(r.Context())))
}

// Providers lists the configured OAuth sign-in options
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.oauthProviderViews(r))
}
