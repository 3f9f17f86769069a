package core

import (
	"errors"
	"fmt"
)

// Wallet errors
var (
	ErrNoProvider     = errors.New("no wallet provider available")
	ErrUserRejected   = errors.New("user rejected the connection")
	ErrRequestPending = errors.New("please check your wallet - connection request pending")
	ErrNoSigner       = errors.New("wallet not connected")
)

// Entitlement errors
var (
	ErrEntitlement  = errors.New("failed to verify NFT ownership")
	ErrNoContract   = errors.New("wallet not connected or contract not available")
	ErrNotEntitled  = errors.New("address does not hold the access NFT")
	ErrNoCredential = errors.New("no stored credential")
)

// Verifier errors
var (
	ErrBadRequest           = errors.New("bad request")
	ErrMissingCredentials   = fmt.Errorf("%w: address and signature are required", ErrBadRequest)
	ErrMissingTimestamp     = fmt.Errorf("%w: timestamp is required", ErrBadRequest)
	ErrMalformedAddress     = fmt.Errorf("%w: malformed address", ErrBadRequest)
	ErrMalformedSignature   = fmt.Errorf("%w: malformed signature", ErrBadRequest)
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrChallengeExpired     = errors.New("challenge expired")
	ErrNoToken              = errors.New("no token provided")
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token has expired")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// ConnectionError is returned by a wallet connect that failed for a reason
// other than rejection or a pending request.
type ConnectionError struct {
	Code    int
	Message string
}

func (e *ConnectionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("connection failed: %d %s", e.Code, e.Message)
	}
	return "connection failed: " + e.Message
}
