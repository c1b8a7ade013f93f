package dto

import (
	"time"

	"github.com/opsdesk/ticketflow/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSummary response.
type UserSummary struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Role      domain.UserRole `json:"role"`
	ManagerID *string         `json:"manager_id,omitempty"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

// NewUserSummary maps a domain user.
func NewUserSummary(user *domain.User) UserSummary {
	return UserSummary{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		ManagerID: user.ManagerID,
	}
}
