package dto

import "github.com/spec-kit/identity-service/internal/token"

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ClaimResponse is a single (type, value) claim pair. Types repeat for role
// claims, which is why claims serialize as a list rather than an object.
type ClaimResponse struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// UserTokenResponse projects the identity embedded in the issued token.
type UserTokenResponse struct {
	ID     string          `json:"id"`
	Email  string          `json:"email"`
	Claims []ClaimResponse `json:"claims"`
}

// TokenResponse is the standard body for successful register/login calls.
type TokenResponse struct {
	AccessToken string            `json:"access_token"`
	ExpiresIn   int64             `json:"expires_in"`
	UserToken   UserTokenResponse `json:"user_token"`
}

// NewTokenResponse maps an issued token summary to its wire form.
func NewTokenResponse(issued token.Issued) TokenResponse {
	claims := make([]ClaimResponse, 0, len(issued.UserToken.Claims))
	for _, claim := range issued.UserToken.Claims {
		claims = append(claims, ClaimResponse{Type: claim.Type, Value: claim.Value})
	}
	return TokenResponse{
		AccessToken: issued.AccessToken,
		ExpiresIn:   issued.ExpiresIn,
		UserToken: UserTokenResponse{
			ID:     issued.UserToken.ID,
			Email:  issued.UserToken.Email,
			Claims: claims,
		},
	}
}
