package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the session identity
type SessionClaims struct {
	jwt.RegisteredClaims
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"` // Issuance in unix milliseconds
}
