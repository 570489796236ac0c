package handlers

import (
	"net/http"

	"familysync/internal/security"
	"familysync/internal/service"
)

// ProfileHandler handles a member's own profile, settings and sign-out
type ProfileHandler struct {
	profileService *service.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type updateLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PlaceName string  `json:"place_name"`
}

// UpdateProfile changes the caller's display name and color
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	member, err := h.profileService.UpdateProfile(r.Context(), GetIdentityFromContext(r.Context()), req.Name, req.Color)
	if err != nil {
		respondServiceError(w, err, "Error updating profile")
		return
	}

	respondJSON(w, http.StatusOK, member)
}

// UpdatePreferences stores notification and location sharing settings
func (h *ProfileHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var input service.PreferencesInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	member, err := h.profileService.UpdatePreferences(r.Context(), GetIdentityFromContext(r.Context()), input)
	if err != nil {
		respondServiceError(w, err, "Error updating preferences")
		return
	}

	respondJSON(w, http.StatusOK, member)
}

// UpdateLocation records the caller's shared position
func (h *ProfileHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req updateLocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	member, err := h.profileService.UpdateLocation(r.Context(), GetIdentityFromContext(r.Context()), req.Latitude, req.Longitude, req.PlaceName)
	if err != nil {
		respondServiceError(w, err, "Error updating location")
		return
	}

	respondJSON(w, http.StatusOK, member)
}

// Logout ends the current session and clears its cookie
func (h *ProfileHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.profileService.SignOut(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error signing out", err)
		return
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
	w.WriteHeader(http.StatusNoContent)
}
