package gate

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/nftgate/adapters/agent"
	"github.com/layer-3/nftgate/adapters/events"
	"github.com/layer-3/nftgate/adapters/store"
	"github.com/layer-3/nftgate/adapters/tokenizer"
	"github.com/layer-3/nftgate/client/entitlement"
	"github.com/layer-3/nftgate/client/session"
	"github.com/layer-3/nftgate/client/wallet"
	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/internal/eth"
	"github.com/layer-3/nftgate/ports"
	"github.com/layer-3/nftgate/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		connected, authenticated, granted bool
		want                              Stage
	}{
		{false, false, false, StageConnect},
		{false, true, true, StageConnect},
		{true, false, false, StageVerify},
		{true, false, true, StageVerify},
		{true, true, true, StageDashboard},
		{true, true, false, StageDenied},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Evaluate(tt.connected, tt.authenticated, tt.granted),
			"connected=%v authenticated=%v granted=%v", tt.connected, tt.authenticated, tt.granted)
	}
}

type fakeOracle struct {
	mu      sync.Mutex
	holders map[common.Address]bool
	err     error
}

func (f *fakeOracle) set(fn func(*fakeOracle)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeOracle) CheckAccess(_ context.Context, address common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.holders[address], nil
}

func (f *fakeOracle) BalanceOf(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeOracle) OwnerOf(context.Context, *big.Int) (common.Address, error) {
	return common.Address{}, nil
}

// countingAgent records signing requests
type countingAgent struct {
	*agent.KeyAgent
	signs atomic.Int32
}

func (c *countingAgent) SignMessage(ctx context.Context, address, message string) (string, error) {
	c.signs.Add(1)
	return c.KeyAgent.SignMessage(ctx, address, message)
}

// countingVerifier records verify round trips
type countingVerifier struct {
	ports.Verifier
	verifies atomic.Int32
}

func (c *countingVerifier) Verify(ctx context.Context, token string) (*core.SessionClaim, error) {
	c.verifies.Add(1)
	return c.Verifier.Verify(ctx, token)
}

type harness struct {
	signer   *eth.LocalSigner
	agent    *countingAgent
	oracle   *fakeOracle
	verifier *countingVerifier
	creds    ports.CredentialStore
}

func newHarness(t *testing.T, opts ...agent.KeyAgentOption) *harness {
	t.Helper()
	signer, err := eth.GenerateLocalSigner()
	require.NoError(t, err)
	tk, err := tokenizer.NewJWTTokenizer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	return &harness{
		signer:   signer,
		agent:    &countingAgent{KeyAgent: agent.NewKeyAgent([]*eth.LocalSigner{signer}, opts...)},
		oracle:   &fakeOracle{holders: map[common.Address]bool{signer.Address(): true}},
		verifier: &countingVerifier{Verifier: service.NewVerifier(tk, events.NopPublisher{})},
		creds:    store.NewMemoryStore(),
	}
}

func (h *harness) gate(t *testing.T) *Gate {
	t.Helper()
	g := New(
		wallet.NewManager(h.agent),
		entitlement.NewChecker(h.oracle),
		session.NewStore(h.verifier, h.creds),
	)
	require.NoError(t, g.Start(context.Background()))
	t.Cleanup(g.Close)
	return g
}

func TestFullFlow(t *testing.T) {
	h := newHarness(t)
	g := h.gate(t)
	ctx := context.Background()

	assert.Equal(t, StageConnect, g.View().Stage)

	view := g.Connect(ctx)
	assert.Equal(t, StageVerify, view.Stage)
	assert.Equal(t, h.signer.Address().Hex(), view.Address)
	assert.True(t, view.Granted)
	assert.Empty(t, view.Status)

	view = g.VerifyAndLogin(ctx)
	assert.Equal(t, StageDashboard, view.Stage)
	assert.Equal(t, session.LoggedIn, view.Session)
	require.NotNil(t, view.Claim)
	assert.Equal(t, core.CanonicalAddress(h.signer.Address().Hex()), view.Claim.Address)
	assert.NotEmpty(t, g.Token())
	assert.Equal(t, int32(1), h.agent.signs.Load())

	stored, err := h.creds.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, g.Token(), stored)

	view = g.Logout(ctx)
	assert.Equal(t, StageConnect, view.Stage)
	assert.False(t, view.Granted)
	_, err = h.creds.Load(ctx)
	assert.ErrorIs(t, err, core.ErrNoCredential)
}

func TestNotEntitledNeverSigns(t *testing.T) {
	h := newHarness(t)
	h.oracle.set(func(o *fakeOracle) { o.holders = nil })
	g := h.gate(t)
	ctx := context.Background()

	g.Connect(ctx)
	view := g.VerifyAndLogin(ctx)

	assert.Equal(t, StageVerify, view.Stage)
	assert.False(t, view.Granted)
	assert.Equal(t, StatusNotEntitled, view.Status)
	assert.Zero(t, h.agent.signs.Load())
	assert.Equal(t, session.LoggedOut, view.Session)
}

func TestOracleFailureReadsAsDenied(t *testing.T) {
	h := newHarness(t)
	g := h.gate(t)
	ctx := context.Background()
	g.Connect(ctx)

	h.oracle.set(func(o *fakeOracle) { o.err = errors.New("rpc timeout") })
	view := g.VerifyAndLogin(ctx)

	assert.False(t, view.Granted)
	assert.Equal(t, StatusCheckFailed, view.Status)
	assert.Zero(t, h.agent.signs.Load())
}

func TestWalletRevokedClearsIdentity(t *testing.T) {
	h := newHarness(t)
	g := h.gate(t)
	ctx := context.Background()
	g.Connect(ctx)
	require.True(t, g.View().Granted)

	h.agent.Revoke()

	view := g.View()
	assert.Equal(t, StageConnect, view.Stage)
	assert.Empty(t, view.Address)
	assert.False(t, view.Granted)
	assert.Equal(t, session.LoggedOut, view.Session)
}

func TestStoredCredentialRestoresSession(t *testing.T) {
	h := newHarness(t, agent.PreAuthorized())
	ctx := context.Background()

	first := h.gate(t)
	first.VerifyAndLogin(ctx)
	require.Equal(t, StageDashboard, first.View().Stage)
	first.Close()

	signs := h.agent.signs.Load()
	second := h.gate(t)

	view := second.View()
	assert.Equal(t, StageDashboard, view.Stage)
	assert.Equal(t, signs, h.agent.signs.Load())
}

func TestNoCredentialNoVerifierCall(t *testing.T) {
	h := newHarness(t, agent.PreAuthorized())
	g := h.gate(t)

	assert.Equal(t, StageVerify, g.View().Stage)
	assert.Zero(t, h.verifier.verifies.Load())
}

func TestChainChangeReloads(t *testing.T) {
	h := newHarness(t)
	g := h.gate(t)
	ctx := context.Background()
	g.Connect(ctx)
	g.VerifyAndLogin(ctx)
	require.Equal(t, StageDashboard, g.View().Stage)

	// The wallet stays authorized, so the reload restores identity and session
	h.agent.SwitchChain("0x89")

	view := g.View()
	assert.Equal(t, StageDashboard, view.Stage)
	assert.Equal(t, h.signer.Address().Hex(), view.Address)
}

func TestEntitlementLostAfterLogin(t *testing.T) {
	h := newHarness(t)
	g := h.gate(t)
	ctx := context.Background()
	g.Connect(ctx)
	g.VerifyAndLogin(ctx)

	h.oracle.set(func(o *fakeOracle) { o.holders = nil })
	view := g.VerifyAndLogin(ctx)

	assert.Equal(t, StageDenied, view.Stage)
	assert.Equal(t, StatusNotEntitled, view.Status)
}

func TestConnectStatus(t *testing.T) {
	h := newHarness(t, agent.WithApproval(func(context.Context) error {
		return &ports.AgentError{Code: ports.CodeUserRejected, Message: "User rejected the request."}
	}))
	g := h.gate(t)

	view := g.Connect(context.Background())
	assert.Equal(t, StageConnect, view.Stage)
	assert.Equal(t, StatusRejected, view.Status)

	noWallet := New(wallet.NewManager(nil), entitlement.NewChecker(nil), session.NewStore(h.verifier, h.creds))
	require.NoError(t, noWallet.Start(context.Background()))
	defer noWallet.Close()
	assert.Equal(t, StatusNoProvider, noWallet.Connect(context.Background()).Status)
	assert.Equal(t, StatusNotConnected, noWallet.VerifyAndLogin(context.Background()).Status)
}
