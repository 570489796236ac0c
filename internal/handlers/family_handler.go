package handlers

import (
	"net/http"

	"familysync/internal/service"
)

// FamilyHandler handles family onboarding and administration
type FamilyHandler struct {
	familyService  *service.FamilyService
	profileService *service.ProfileService
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *service.FamilyService, profileService *service.ProfileService) *FamilyHandler {
	return &FamilyHandler{
		familyService:  familyService,
		profileService: profileService,
	}
}

type createFamilyRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type joinFamilyRequest struct {
	InviteCode string `json:"invite_code"`
	Color      string `json:"color"`
}

type updateFamilyRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type inviteEmailRequest struct {
	Email string `json:"email"`
}

// CreateFamily founds a family with the caller as its admin
func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req createFamilyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	family, err := h.familyService.CreateFamily(r.Context(), GetIdentityFromContext(r.Context()), req.Name, req.Color)
	if err != nil {
		respondServiceError(w, err, "Error creating family")
		return
	}

	respondJSON(w, http.StatusCreated, family)
}

// JoinFamily adds the caller to the family owning an invite code
func (h *FamilyHandler) JoinFamily(w http.ResponseWriter, r *http.Request) {
	var req joinFamilyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	family, err := h.familyService.JoinFamily(r.Context(), GetIdentityFromContext(r.Context()), req.InviteCode, req.Color)
	if err != nil {
		respondServiceError(w, err, "Error joining family")
		return
	}

	respondJSON(w, http.StatusOK, family)
}

// GetFamily returns the caller's family and its members
func (h *FamilyHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	family, err := h.familyService.GetFamily(identity)
	if err != nil {
		respondServiceError(w, err, "Error loading family")
		return
	}

	members, err := h.familyService.ListMembers(r.Context(), identity)
	if err != nil {
		respondServiceError(w, err, "Error loading family members")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"family":  family,
		"members": members,
	})
}

// UpdateFamily renames the family or changes its timezone. Admins only.
func (h *FamilyHandler) UpdateFamily(w http.ResponseWriter, r *http.Request) {
	var req updateFamilyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	family, err := h.familyService.UpdateFamily(r.Context(), GetIdentityFromContext(r.Context()), req.Name, req.Timezone)
	if err != nil {
		respondServiceError(w, err, "Error updating family")
		return
	}

	respondJSON(w, http.StatusOK, family)
}

// InviteCode returns the code other members use to join
func (h *FamilyHandler) InviteCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.profileService.GetInviteCode(GetIdentityFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Error loading invite code")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"invite_code": code})
}

// SendInvite emails the invite code to someone outside the family
func (h *FamilyHandler) SendInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	if err := h.familyService.EmailInviteCode(r.Context(), GetIdentityFromContext(r.Context()), req.Email); err != nil {
		respondServiceError(w, err, "Error sending invite email")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
