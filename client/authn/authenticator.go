// Package authn runs the challenge-response login of a connected wallet.
package authn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/nftgate/core"
)

// Wallet is the part of the wallet manager the authenticator needs
type Wallet interface {
	Identity() *core.WalletIdentity
	Sign(ctx context.Context, message string) (string, error)
}

// Entitlement reports the recorded entitlement of an address
type Entitlement interface {
	Granted(address common.Address) bool
}

// Sessions commits a login result
type Sessions interface {
	Login(ctx context.Context, signed core.SignedChallenge, guard func() bool) (*core.LoginResult, error)
}

// Authenticator proves control of the connected address to the verifier
type Authenticator struct {
	wallet      Wallet
	entitlement Entitlement
	sessions    Sessions
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithClock overrides the time source used for challenge timestamps
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) { a.logger = logger }
}

// New creates an authenticator
func New(wallet Wallet, entitlement Entitlement, sessions Sessions, opts ...Option) *Authenticator {
	a := &Authenticator{
		wallet:      wallet,
		entitlement: entitlement,
		sessions:    sessions,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate signs a fresh challenge with the connected wallet and logs in.
// The wallet is never asked to sign for an address that is not entitled.
// Every failure is reported as ErrAuthenticationFailed wrapping the cause.
func (a *Authenticator) Authenticate(ctx context.Context) (*core.LoginResult, error) {
	identity := a.wallet.Identity()
	if identity == nil {
		return nil, failed(core.ErrNoSigner)
	}
	if !a.entitlement.Granted(identity.Address) {
		return nil, failed(core.ErrNotEntitled)
	}

	challenge := core.NewChallenge(identity.Hex(), a.now())
	signature, err := a.wallet.Sign(ctx, challenge.Message())
	if err != nil {
		a.logger.WarnContext(ctx, "challenge not signed", slog.String("error", err.Error()))
		return nil, failed(err)
	}

	// Entitlement or account may change while the verifier is answering
	guard := func() bool {
		current := a.wallet.Identity()
		return current != nil &&
			current.Address == identity.Address &&
			current.ChainEpoch == identity.ChainEpoch &&
			a.entitlement.Granted(identity.Address)
	}

	result, err := a.sessions.Login(ctx, core.SignedChallenge{
		Address:        challenge.Address,
		Signature:      signature,
		IssuedAtMillis: challenge.IssuedAtMillis,
	}, guard)
	if err != nil {
		a.logger.WarnContext(ctx, "login failed", slog.String("error", err.Error()))
		return nil, failed(err)
	}

	a.logger.InfoContext(ctx, "authenticated", slog.String("address", result.User.Address))
	return result, nil
}

func failed(err error) error {
	return fmt.Errorf("%w: %w", core.ErrAuthenticationFailed, err)
}
