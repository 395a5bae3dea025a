package dto

import (
	"time"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// IdentityResponse is the caller as the token describes it.
type IdentityResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	Name       string `json:"name,omitempty"`
	SchoolID   string `json:"schoolId,omitempty"`
	SchoolName string `json:"schoolName,omitempty"`
	District   string `json:"district,omitempty"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Identity  IdentityResponse `json:"identity"`
}

// NewIdentityResponse maps an identity.
func NewIdentityResponse(i domain.Identity) IdentityResponse {
	return IdentityResponse{
		ID:         i.ID,
		Username:   i.Username,
		Role:       i.Role.String(),
		Name:       i.Name,
		SchoolID:   i.SchoolID,
		SchoolName: i.SchoolName,
		District:   i.District,
	}
}
