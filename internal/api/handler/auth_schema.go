package handler

import (
	"time"

	"github.com/clinicflow/rdv-api/internal/core/domain"
)

type registerRequest struct {
	Username string `json:"username" validate:"max=64"`
	Email    string `json:"email"    validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"max=72"`
	Role     string `json:"role"     validate:"max=32"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type registerResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type loginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  loginUser `json:"user"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role.String(),
		CreatedAt: u.CreatedAt,
	}
}
