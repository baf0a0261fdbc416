package model

// Tokens is what login and refresh hand back to the client inside the
// `data` envelope. RefreshToken is empty after a refresh exchange.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "Bearer"
