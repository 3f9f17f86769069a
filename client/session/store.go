// Package session keeps the client's login state and its persisted credential.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
)

// State of the client session
type State int

const (
	LoggedOut State = iota
	LoggingIn
	LoggedIn
	LoginFailed
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case LoggingIn:
		return "logging_in"
	case LoggedIn:
		return "logged_in"
	case LoginFailed:
		return "login_failed"
	default:
		return "unknown"
	}
}

// ErrCommitAborted is returned when a login result arrives after the
// conditions it was requested under stopped holding
var ErrCommitAborted = errors.New("login no longer applicable")

// Snapshot is a consistent view of the store
type Snapshot struct {
	State State
	Claim *core.SessionClaim
	Err   error // cause of LoginFailed
}

// Store owns the session state machine. Credentials are persisted only
// through the credential store.
type Store struct {
	verifier    ports.Verifier
	credentials ports.CredentialStore
	logger      *slog.Logger

	mu    sync.Mutex
	state State
	claim *core.SessionClaim
	token string
	err   error
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a logged out store
func NewStore(verifier ports.Verifier, credentials ports.CredentialStore, opts ...Option) *Store {
	s := &Store{
		verifier:    verifier,
		credentials: credentials,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login sends signed to the verifier and persists the credential. guard, if
// set, is evaluated when the answer arrives; a false result aborts the
// commit. A failed login never replaces a session that is held when it
// completes, and never revives one dropped while it was in flight.
func (s *Store) Login(ctx context.Context, signed core.SignedChallenge, guard func() bool) (*core.LoginResult, error) {
	s.mu.Lock()
	s.state = LoggingIn
	s.err = nil
	s.mu.Unlock()

	result, err := s.verifier.Login(ctx, signed)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil && guard != nil && !guard() {
		err = ErrCommitAborted
	}
	if err == nil {
		if saveErr := s.credentials.Save(ctx, result.Token); saveErr != nil {
			err = fmt.Errorf("failed to persist credential: %w", saveErr)
		}
	}

	if err != nil {
		s.fail(err)
		return nil, err
	}

	user := result.User
	s.state = LoggedIn
	s.claim = &user
	s.token = result.Token
	s.err = nil
	return result, nil
}

// fail settles a failed login against the state as it is now. Only a login
// still pending is affected: a held session is restored, otherwise the
// failure is recorded. A logout or another commit in between wins.
func (s *Store) fail(err error) {
	if s.state != LoggingIn {
		return
	}
	if s.claim != nil && s.token != "" {
		s.state = LoggedIn
		return
	}
	s.state = LoginFailed
	s.err = err
}

// Logout drops the session and its persisted credential
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	if err := s.credentials.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// VerifyToken validates the persisted credential with the verifier. Without
// a credential the verifier is not contacted. Any failure clears the
// credential and leaves the store logged out.
func (s *Store) VerifyToken(ctx context.Context) bool {
	return s.verifyFor(ctx, "")
}

// verifyFor is VerifyToken that also rejects a credential issued to any
// address other than owner. An empty owner accepts any address.
func (s *Store) verifyFor(ctx context.Context, owner string) bool {
	token, err := s.credentials.Load(ctx)
	if err != nil {
		if !errors.Is(err, core.ErrNoCredential) {
			s.logger.WarnContext(ctx, "failed to load credential", slog.String("error", err.Error()))
		}
		s.mu.Lock()
		s.reset()
		s.mu.Unlock()
		return false
	}

	claim, err := s.verifier.Verify(ctx, token)
	if err == nil && owner != "" && core.CanonicalAddress(claim.Address) != owner {
		err = fmt.Errorf("%w: credential issued to %s", core.ErrInvalidToken, claim.Address)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.InfoContext(ctx, "stored credential rejected", slog.String("error", err.Error()))
		s.reset()
		if clearErr := s.credentials.Clear(ctx); clearErr != nil {
			s.logger.WarnContext(ctx, "failed to clear credential", slog.String("error", clearErr.Error()))
		}
		return false
	}

	s.state = LoggedIn
	s.claim = claim
	s.token = token
	s.err = nil
	return true
}

// Reconcile revalidates a stored credential once a wallet is connected and
// drops a session that belongs to another address
func (s *Store) Reconcile(ctx context.Context, identity *core.WalletIdentity) bool {
	if identity == nil {
		return s.Snapshot().State == LoggedIn
	}
	owner := core.CanonicalAddress(identity.Hex())

	s.mu.Lock()
	if s.state == LoggedIn && s.claim != nil && s.claim.Address != owner {
		s.reset()
		s.mu.Unlock()
		if err := s.credentials.Clear(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to clear credential", slog.String("error", err.Error()))
		}
		return false
	}
	busy := s.state == LoggedIn || s.state == LoggingIn
	s.mu.Unlock()

	if busy {
		return s.Snapshot().State == LoggedIn
	}

	if _, err := s.credentials.Load(ctx); err != nil {
		return false
	}
	return s.verifyFor(ctx, owner)
}

// Reload forgets the in-memory session so it is rebuilt from storage
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Acknowledge moves a failed login back to logged out
func (s *Store) Acknowledge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == LoginFailed {
		s.state = LoggedOut
		s.err = nil
	}
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{State: s.state, Err: s.err}
	if s.claim != nil {
		claim := *s.claim
		snap.Claim = &claim
	}
	return snap
}

// Token returns the credential of a logged in session
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != LoggedIn {
		return ""
	}
	return s.token
}

func (s *Store) reset() {
	s.state = LoggedOut
	s.claim = nil
	s.token = ""
	s.err = nil
}
