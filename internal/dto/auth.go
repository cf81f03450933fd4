package dto

// LoginRequest captures credential input.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token. SponsorIDs is only set for
// sponsor portal accounts.
type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
	Role        string   `json:"role"`
	SponsorIDs  []string `json:"sponsor_ids,omitempty"`
}
