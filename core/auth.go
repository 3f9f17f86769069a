package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChallengePrefix is the fixed text every challenge message starts with.
const ChallengePrefix = "I want to access the premium dashboard."

// DefaultSessionTTL is the lifetime of a session credential.
const DefaultSessionTTL = 24 * time.Hour

// Challenge binds an address to the moment it was issued
type Challenge struct {
	Address        string // Address exactly as it will appear in the message
	IssuedAtMillis int64  // Unix milliseconds chosen by the client
}

// NewChallenge creates a challenge for address issued at now
func NewChallenge(address string, now time.Time) Challenge {
	return Challenge{Address: address, IssuedAtMillis: now.UnixMilli()}
}

// Message renders the exact string the wallet signs.
func (c Challenge) Message() string {
	return fmt.Sprintf("%s Address: %s. Timestamp: %d", ChallengePrefix, c.Address, c.IssuedAtMillis)
}

// IssuedAt returns the issuance time of the challenge
func (c Challenge) IssuedAt() time.Time {
	return time.UnixMilli(c.IssuedAtMillis)
}

// SignedChallenge is what the client sends to the verifier's login endpoint
type SignedChallenge struct {
	Address        string `json:"address"`
	Signature      string `json:"signature"`
	IssuedAtMillis int64  `json:"timestamp"`
}

// Challenge returns the challenge the signature was produced over
func (s SignedChallenge) Challenge() Challenge {
	return Challenge{Address: s.Address, IssuedAtMillis: s.IssuedAtMillis}
}

// Session is the decoded content of a session credential
type Session struct {
	Address   string    // Lower-cased address of the authenticated wallet
	IssuedAt  time.Time // When the credential was issued
	ExpiresAt time.Time // When the credential stops being accepted
}

// Claim projects the session into its user-visible form
func (s *Session) Claim() SessionClaim {
	return SessionClaim{
		Address:       s.Address,
		Authenticated: true,
		Timestamp:     s.IssuedAt.UnixMilli(),
	}
}

// SessionClaim is the identity claim returned by login and verify
type SessionClaim struct {
	Address       string `json:"address"`
	Authenticated bool   `json:"authenticated"`
	Timestamp     int64  `json:"timestamp"`
}

// LoginResult is the body of a successful login
type LoginResult struct {
	Token string       `json:"token"`
	User  SessionClaim `json:"user"`
}

// WalletIdentity is the connected wallet of a client
type WalletIdentity struct {
	Address    common.Address
	ChainEpoch uint64 // Incremented on every chain change
}

// Hex returns the checksummed address
func (w WalletIdentity) Hex() string {
	return w.Address.Hex()
}

// EntitlementStatus is the last known answer of the entitlement oracle for an address
type EntitlementStatus struct {
	Address       common.Address
	Granted       bool
	LastCheckedAt time.Time
}

// CanonicalAddress returns the lower-cased form used inside credentials.
func CanonicalAddress(address string) string {
	return strings.ToLower(address)
}

// AuthEventKind names an entry of the verifier's audit stream
type AuthEventKind string

const (
	AuthEventLogin         AuthEventKind = "login"
	AuthEventLoginRejected AuthEventKind = "login_rejected"
)

// AuthEvent is published by the verifier after every login decision
type AuthEvent struct {
	Kind    AuthEventKind `json:"kind"`
	Address string        `json:"address"`
	Reason  string        `json:"reason,omitempty"`
	At      time.Time     `json:"at"`
}
