// Package gate decides which stage of the premium flow a client is in and
// drives the wallet, entitlement and session components through it.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/layer-3/nftgate/client/authn"
	"github.com/layer-3/nftgate/client/entitlement"
	"github.com/layer-3/nftgate/client/session"
	"github.com/layer-3/nftgate/client/wallet"
	"github.com/layer-3/nftgate/core"
)

// Stage of the access flow
type Stage int

const (
	StageConnect Stage = iota
	StageVerify
	StageDashboard
	StageDenied
)

func (s Stage) String() string {
	switch s {
	case StageConnect:
		return "connect"
	case StageVerify:
		return "verify"
	case StageDashboard:
		return "dashboard"
	case StageDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Evaluate maps the three facts of the flow to a stage
func Evaluate(connected, authenticated, granted bool) Stage {
	switch {
	case !connected:
		return StageConnect
	case !authenticated:
		return StageVerify
	case granted:
		return StageDashboard
	default:
		return StageDenied
	}
}

// Status texts shown to the user
const (
	StatusNoProvider     = "No wallet provider available"
	StatusRejected       = "User rejected the connection"
	StatusPending        = "Please check your wallet - connection request pending"
	StatusRestoreFailed  = "Failed to check wallet connection"
	StatusNotConnected   = "Wallet not connected or contract not available"
	StatusCheckFailed    = "Failed to verify NFT ownership"
	StatusNotEntitled    = "You don't own the required NFT"
	StatusAuthFailed     = "Failed to authenticate"
	StatusConnectFailure = "Failed to connect wallet"
)

// View is what a front end renders
type View struct {
	Stage    Stage
	Address  string // checksummed, empty when disconnected
	Granted  bool
	Checking bool
	Session  session.State
	Claim    *core.SessionClaim
	Status   string // last error, empty when none
}

// Gate ties the client components together
type Gate struct {
	wallet   *wallet.Manager
	checker  *entitlement.Checker
	sessions *session.Store
	auth     *authn.Authenticator
	logger   *slog.Logger

	mu          sync.Mutex
	status      string
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

// Option configures a Gate
type Option func(*Gate)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// New creates a gate. The authenticator is built from the other components.
func New(w *wallet.Manager, checker *entitlement.Checker, sessions *session.Store, opts ...Option) *Gate {
	g := &Gate{
		wallet:   w,
		checker:  checker,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.auth = authn.New(w, checker, sessions, authn.WithLogger(g.logger))
	return g
}

// Start subscribes to wallet events, restores an authorized wallet and
// revalidates a stored credential
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.cancel != nil {
		g.mu.Unlock()
		return nil
	}
	g.ctx, g.cancel = context.WithCancel(context.WithoutCancel(ctx))
	g.unsubscribe = g.wallet.Subscribe(g.handle)
	g.mu.Unlock()

	if err := g.wallet.Start(); err != nil {
		return err
	}

	if _, err := g.wallet.RestoreIfAuthorized(ctx); err != nil {
		g.logger.WarnContext(ctx, "wallet restore failed", slog.String("error", err.Error()))
		g.setStatus(StatusRestoreFailed)
	}
	g.reconcile(ctx)
	return nil
}

// Close stops following wallet events
func (g *Gate) Close() {
	g.mu.Lock()
	cancel, unsubscribe := g.cancel, g.unsubscribe
	g.cancel, g.unsubscribe = nil, nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	g.wallet.Close()
}

// Connect asks the wallet for account access
func (g *Gate) Connect(ctx context.Context) View {
	g.sessions.Acknowledge()
	g.setStatus("")

	if _, err := g.wallet.Connect(ctx); err != nil {
		g.logger.InfoContext(ctx, "connect failed", slog.String("error", err.Error()))
		g.setStatus(connectStatus(err))
	}
	return g.View()
}

// VerifyAndLogin re-checks entitlement and, when granted, signs a challenge
// and logs in
func (g *Gate) VerifyAndLogin(ctx context.Context) View {
	g.sessions.Acknowledge()
	g.setStatus("")

	identity := g.wallet.Identity()
	if identity == nil {
		g.setStatus(StatusNotConnected)
		return g.View()
	}

	if !g.checker.Check(ctx, identity.Address) {
		if _, err := g.checker.Status(); err != nil {
			g.setStatus(checkStatus(err))
		} else {
			g.setStatus(StatusNotEntitled)
		}
		return g.View()
	}

	if _, err := g.auth.Authenticate(ctx); err != nil {
		g.setStatus(StatusAuthFailed)
	}
	return g.View()
}

// Logout ends the session and disconnects the wallet
func (g *Gate) Logout(ctx context.Context) View {
	g.setStatus("")
	if err := g.sessions.Logout(ctx); err != nil {
		g.logger.WarnContext(ctx, "logout failed", slog.String("error", err.Error()))
	}
	g.wallet.Disconnect()
	return g.View()
}

// View returns the current stage and what to show with it
func (g *Gate) View() View {
	identity := g.wallet.Identity()
	snap := g.sessions.Snapshot()

	view := View{
		Session:  snap.State,
		Claim:    snap.Claim,
		Checking: g.checker.Checking(),
	}
	if identity != nil {
		view.Address = identity.Hex()
		view.Granted = g.checker.Granted(identity.Address)
	}
	view.Stage = Evaluate(identity != nil, snap.State == session.LoggedIn, view.Granted)

	g.mu.Lock()
	view.Status = g.status
	g.mu.Unlock()
	return view
}

// Token returns the credential of the current session
func (g *Gate) Token() string {
	return g.sessions.Token()
}

// Checker exposes the entitlement checker for informational queries
func (g *Gate) Checker() *entitlement.Checker {
	return g.checker
}

func (g *Gate) handle(event wallet.Event) {
	g.mu.Lock()
	ctx := g.ctx
	g.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	g.logger.DebugContext(ctx, "wallet event", slog.String("kind", event.Kind.String()))

	if event.Kind == wallet.EventChainChanged {
		// Full reload: nothing observed on the previous chain is kept
		g.checker.Reset()
		g.sessions.Reload()
		g.setStatus("")
		if _, err := g.wallet.RestoreIfAuthorized(ctx); err != nil {
			g.setStatus(StatusRestoreFailed)
		}
		return
	}

	g.reconcile(ctx)
}

// reconcile brings entitlement and session in line with the wallet identity
func (g *Gate) reconcile(ctx context.Context) {
	identity := g.wallet.Identity()
	g.checker.Sync(ctx, identity)
	g.sessions.Reconcile(ctx, identity)
}

func (g *Gate) setStatus(status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

func connectStatus(err error) string {
	var connErr *core.ConnectionError
	switch {
	case errors.Is(err, core.ErrNoProvider):
		return StatusNoProvider
	case errors.Is(err, core.ErrUserRejected):
		return StatusRejected
	case errors.Is(err, core.ErrRequestPending):
		return StatusPending
	case errors.As(err, &connErr):
		if connErr.Code != 0 {
			return connErr.Error()
		}
		return StatusConnectFailure
	default:
		return StatusConnectFailure
	}
}

func checkStatus(err error) string {
	if errors.Is(err, core.ErrNoContract) {
		return StatusNotConnected
	}
	return StatusCheckFailed
}
