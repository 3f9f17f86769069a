package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/internal/eth"
	"github.com/layer-3/nftgate/ports"
)

// Verifier exchanges signed challenges for session credentials and validates
// credentials. It holds no session table: everything lives in the token.
type Verifier struct {
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	sessionTTL      time.Duration
	maxChallengeAge time.Duration
}

// Option configures a Verifier
type Option func(*Verifier)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithSessionTTL overrides the credential lifetime
func WithSessionTTL(ttl time.Duration) Option {
	return func(v *Verifier) { v.sessionTTL = ttl }
}

// WithMaxChallengeAge rejects challenges whose timestamp is older than age.
// Zero disables the check.
func WithMaxChallengeAge(age time.Duration) Option {
	return func(v *Verifier) { v.maxChallengeAge = age }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// NewVerifier creates a new verifier
func NewVerifier(tokenizer ports.Tokenizer, eventPub ports.EventPublisher, opts ...Option) *Verifier {
	v := &Verifier{
		tokenizer:  tokenizer,
		eventPub:   eventPub,
		logger:     slog.Default(),
		now:        time.Now,
		sessionTTL: core.DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Login authenticates a wallet using its signed challenge
func (v *Verifier) Login(ctx context.Context, signed core.SignedChallenge) (*core.LoginResult, error) {
	if err := v.checkSignature(signed); err != nil {
		v.publish(ctx, core.AuthEvent{
			Kind:    core.AuthEventLoginRejected,
			Address: core.CanonicalAddress(signed.Address),
			Reason:  err.Error(),
			At:      v.now(),
		})
		return nil, err
	}

	now := v.now()
	session := &core.Session{
		Address:   core.CanonicalAddress(signed.Address),
		IssuedAt:  now,
		ExpiresAt: now.Add(v.sessionTTL),
	}

	token, err := v.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	v.publish(ctx, core.AuthEvent{Kind: core.AuthEventLogin, Address: session.Address, At: now})
	v.logger.InfoContext(ctx, "session issued", slog.String("address", session.Address))

	return &core.LoginResult{Token: token, User: session.Claim()}, nil
}

// Verify validates a session credential and returns its claim
func (v *Verifier) Verify(ctx context.Context, token string) (*core.SessionClaim, error) {
	if token == "" {
		return nil, core.ErrNoToken
	}

	session, err := v.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	// exp has second granularity; the millisecond issuance bounds the rest
	expiresAt := session.IssuedAt.Add(v.sessionTTL)
	if session.ExpiresAt.Before(expiresAt) {
		expiresAt = session.ExpiresAt
	}
	if !v.now().Before(expiresAt) {
		return nil, core.ErrTokenExpired
	}

	claim := session.Claim()
	return &claim, nil
}

// checkSignature rebuilds the challenge message and makes sure its
// personal_sign signer is the claimed address
func (v *Verifier) checkSignature(signed core.SignedChallenge) error {
	if signed.Address == "" || signed.Signature == "" {
		return core.ErrMissingCredentials
	}
	if signed.IssuedAtMillis <= 0 {
		return core.ErrMissingTimestamp
	}

	claimed, err := eth.ParseAddress(signed.Address)
	if err != nil {
		return core.ErrMalformedAddress
	}

	sig, err := eth.DecodeSignature(signed.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedSignature, err)
	}

	if v.maxChallengeAge > 0 && v.now().Sub(signed.Challenge().IssuedAt()) > v.maxChallengeAge {
		return core.ErrChallengeExpired
	}

	message := signed.Challenge().Message()
	recovered, err := eth.RecoverAddress([]byte(message), sig)
	if err != nil {
		if errors.Is(err, eth.ErrInvalidRecoveryID) {
			return fmt.Errorf("%w: %v", core.ErrMalformedSignature, err)
		}
		return fmt.Errorf("signature verification failed: %w", core.ErrInvalidSignature)
	}

	// Byte comparison, so the claimed address casing does not matter
	if recovered != claimed {
		return core.ErrInvalidSignature
	}

	return nil
}

func (v *Verifier) publish(ctx context.Context, event core.AuthEvent) {
	if v.eventPub == nil {
		return
	}
	// The login decision stands even if the audit stream is unavailable
	if err := v.eventPub.PublishAuthEvent(ctx, event); err != nil {
		v.logger.WarnContext(ctx, "failed to publish auth event",
			slog.String("kind", string(event.Kind)),
			slog.String("error", err.Error()))
	}
}

var _ ports.Verifier = (*Verifier)(nil)
