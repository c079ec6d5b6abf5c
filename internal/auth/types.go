// Package auth provides JWT authentication for the ledger API. Roles gate
// the privileged period operations: only admins may close or reopen a
// period.
package auth

// Roles known to the service.
const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
)

// UserClaims represents the JWT claims for a user
type UserClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the claims carry the admin role.
func (c *UserClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
	TokenType   string `json:"token_type"` // always "Bearer"
}

// AuthError is an authentication failure with a stable code.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

// Common authentication errors
var (
	ErrInvalidCredentials = AuthError{Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
	ErrInvalidToken       = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired       = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized       = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden          = AuthError{Code: "FORBIDDEN", Message: "access forbidden"}
	ErrWeakPassword       = AuthError{Code: "WEAK_PASSWORD", Message: "password does not meet requirements"}
)
