// Package wallet tracks the connected wallet of a client and reacts to the
// signing agent's account and chain notifications.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
)

// EventKind distinguishes identity events
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventAccountChanged
	EventChainChanged
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventAccountChanged:
		return "account_changed"
	case EventChainChanged:
		return "chain_changed"
	default:
		return "unknown"
	}
}

// Event is delivered to observers whenever the identity changes
type Event struct {
	Kind     EventKind
	Identity *core.WalletIdentity // nil when no wallet is connected
}

// Manager owns the wallet identity of a client
type Manager struct {
	agent  ports.SigningAgent
	logger *slog.Logger

	mu          sync.Mutex
	identity    *core.WalletIdentity
	epoch       uint64
	connecting  bool
	restored    bool
	unsubscribe func()

	observers map[int]func(Event)
	nextID    int
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a manager for agent. A nil agent behaves like a missing
// wallet extension.
func NewManager(agent ports.SigningAgent, opts ...Option) *Manager {
	m := &Manager{
		agent:     agent,
		logger:    slog.Default(),
		observers: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect asks the agent for account access and adopts the first account
func (m *Manager) Connect(ctx context.Context) (*core.WalletIdentity, error) {
	if m.agent == nil {
		return nil, core.ErrNoProvider
	}

	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		return nil, core.ErrRequestPending
	}
	m.connecting = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.connecting = false
		m.mu.Unlock()
	}()

	accounts, err := m.agent.RequestAccounts(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	if len(accounts) == 0 {
		return nil, &core.ConnectionError{Message: "wallet returned no accounts"}
	}

	address, err := parseAccount(accounts[0])
	if err != nil {
		return nil, &core.ConnectionError{Message: err.Error()}
	}

	identity := m.adopt(address, EventConnected)
	m.logger.InfoContext(ctx, "wallet connected", slog.String("address", identity.Hex()))
	return identity, nil
}

// Disconnect forgets the identity. The agent is not contacted.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		return
	}
	m.identity = nil
	m.mu.Unlock()

	m.emit(Event{Kind: EventDisconnected})
}

// RestoreIfAuthorized adopts an already authorized account without
// prompting. It runs once per client lifetime; a chain change starts a new one.
func (m *Manager) RestoreIfAuthorized(ctx context.Context) (*core.WalletIdentity, error) {
	m.mu.Lock()
	if m.restored || m.agent == nil {
		identity := m.copyIdentity()
		m.mu.Unlock()
		return identity, nil
	}
	m.restored = true
	m.mu.Unlock()

	accounts, err := m.agent.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check wallet connection: %w", err)
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	address, err := parseAccount(accounts[0])
	if err != nil {
		return nil, fmt.Errorf("failed to check wallet connection: %w", err)
	}

	return m.adopt(address, EventConnected), nil
}

// Sign asks the agent to personal_sign message with the current account
func (m *Manager) Sign(ctx context.Context, message string) (string, error) {
	identity := m.Identity()
	if identity == nil || m.agent == nil {
		return "", core.ErrNoSigner
	}

	sig, err := m.agent.SignMessage(ctx, identity.Hex(), message)
	if err != nil {
		var agentErr *ports.AgentError
		if errors.As(err, &agentErr) && agentErr.Code == ports.CodeUserRejected {
			return "", fmt.Errorf("failed to sign: %w", core.ErrUserRejected)
		}
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// Identity returns a copy of the current identity, nil when disconnected
func (m *Manager) Identity() *core.WalletIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyIdentity()
}

// Subscribe registers fn for identity events
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.observers[id] = fn

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// Start listens to the agent's notifications until Close
func (m *Manager) Start() error {
	if m.agent == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		return nil
	}

	unsubscribe, err := m.agent.Subscribe(m.handleAgentEvent)
	if err != nil {
		return fmt.Errorf("failed to subscribe to wallet: %w", err)
	}
	m.unsubscribe = unsubscribe
	return nil
}

// Close stops listening to the agent
func (m *Manager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Manager) handleAgentEvent(event ports.AgentEvent) {
	switch event.Kind {
	case ports.AgentAccountsChanged:
		m.accountsChanged(event.Accounts)
	case ports.AgentChainChanged:
		m.chainChanged(event.ChainID)
	}
}

func (m *Manager) accountsChanged(accounts []string) {
	m.mu.Lock()
	// Only a connected client follows account switches
	if m.identity == nil {
		m.mu.Unlock()
		return
	}

	if len(accounts) == 0 {
		m.identity = nil
		m.mu.Unlock()
		m.logger.Info("wallet disconnected by agent")
		m.emit(Event{Kind: EventDisconnected})
		return
	}

	address, err := parseAccount(accounts[0])
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("ignoring invalid account", slog.String("account", accounts[0]))
		return
	}
	if m.identity.Address == address {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	identity := m.adopt(address, EventAccountChanged)
	m.logger.Info("wallet account changed", slog.String("address", identity.Hex()))
}

// chainChanged is a full reload: everything derived from the previous chain
// is dropped and restore may run again
func (m *Manager) chainChanged(chainID string) {
	m.mu.Lock()
	m.identity = nil
	m.epoch++
	m.restored = false
	m.mu.Unlock()

	m.logger.Info("wallet chain changed", slog.String("chain_id", chainID))
	m.emit(Event{Kind: EventChainChanged})
}

func (m *Manager) adopt(address common.Address, kind EventKind) *core.WalletIdentity {
	m.mu.Lock()
	m.identity = &core.WalletIdentity{Address: address, ChainEpoch: m.epoch}
	identity := m.copyIdentity()
	m.mu.Unlock()

	m.emit(Event{Kind: kind, Identity: identity})
	return identity
}

func (m *Manager) copyIdentity() *core.WalletIdentity {
	if m.identity == nil {
		return nil
	}
	identity := *m.identity
	return &identity
}

func (m *Manager) emit(event Event) {
	m.mu.Lock()
	observers := make([]func(Event), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	for _, fn := range observers {
		fn(event)
	}
}

func parseAccount(account string) (common.Address, error) {
	if !common.IsHexAddress(account) {
		return common.Address{}, fmt.Errorf("invalid account %q", account)
	}
	return common.HexToAddress(account), nil
}

// connectError maps agent failures of eth_requestAccounts to wallet errors
func connectError(err error) error {
	var agentErr *ports.AgentError
	if !errors.As(err, &agentErr) {
		return &core.ConnectionError{Message: err.Error()}
	}
	switch agentErr.Code {
	case ports.CodeUserRejected:
		return core.ErrUserRejected
	case ports.CodeRequestPending:
		return core.ErrRequestPending
	default:
		return &core.ConnectionError{Code: agentErr.Code, Message: agentErr.Message}
	}
}
