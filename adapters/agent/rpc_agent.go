package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/nftgate/ports"
)

// DefaultPollInterval is how often the RPC agent looks for account and chain changes
const DefaultPollInterval = 2 * time.Second

// RPCAgent is a signing agent backed by a wallet exposing the Ethereum
// JSON-RPC account methods. Notifications are derived by polling.
type RPCAgent struct {
	client   *rpc.Client
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	handlers map[int]func(ports.AgentEvent)
	nextID   int
	cancel   context.CancelFunc
}

// RPCAgentOption configures an RPCAgent
type RPCAgentOption func(*RPCAgent)

// WithPollInterval sets the notification polling interval
func WithPollInterval(d time.Duration) RPCAgentOption {
	return func(a *RPCAgent) { a.interval = d }
}

// WithAgentLogger sets the logger
func WithAgentLogger(logger *slog.Logger) RPCAgentOption {
	return func(a *RPCAgent) { a.logger = logger }
}

// NewRPCAgent wraps an rpc client
func NewRPCAgent(client *rpc.Client, opts ...RPCAgentOption) *RPCAgent {
	a := &RPCAgent{
		client:   client,
		interval: DefaultPollInterval,
		logger:   slog.Default(),
		handlers: make(map[int]func(ports.AgentEvent)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DialRPCAgent connects to the wallet endpoint at url
func DialRPCAgent(ctx context.Context, url string, opts ...RPCAgentOption) (*RPCAgent, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet: %w", err)
	}
	return NewRPCAgent(client, opts...), nil
}

// RequestAccounts calls eth_requestAccounts
func (a *RPCAgent) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := a.client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, agentError(err)
	}
	return accounts, nil
}

// Accounts calls eth_accounts
func (a *RPCAgent) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := a.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, agentError(err)
	}
	return accounts, nil
}

// SignMessage calls personal_sign with the utf-8 message hex encoded
func (a *RPCAgent) SignMessage(ctx context.Context, address, message string) (string, error) {
	var sig string
	if err := a.client.CallContext(ctx, &sig, "personal_sign", hexutil.Encode([]byte(message)), address); err != nil {
		return "", agentError(err)
	}
	return sig, nil
}

// Subscribe registers handler. Polling runs while at least one handler is registered.
func (a *RPCAgent) Subscribe(handler func(ports.AgentEvent)) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.handlers[id] = handler

	if a.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		go a.poll(ctx)
	}

	var once sync.Once
	return func() {
		once.Do(func() { a.unsubscribe(id) })
	}, nil
}

// Close stops polling and closes the rpc client
func (a *RPCAgent) Close() {
	a.mu.Lock()
	a.handlers = make(map[int]func(ports.AgentEvent))
	a.mu.Unlock()
	a.stopPolling()
	a.client.Close()
}

func (a *RPCAgent) unsubscribe(id int) {
	a.mu.Lock()
	delete(a.handlers, id)
	last := len(a.handlers) == 0
	a.mu.Unlock()

	if last {
		a.stopPolling()
	}
}

func (a *RPCAgent) stopPolling() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (a *RPCAgent) poll(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	var (
		accounts []string
		chainID  string
		primed   bool
	)
	for {
		nextAccounts, nextChainID, err := a.snapshot(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				a.logger.WarnContext(ctx, "wallet poll failed", slog.String("error", err.Error()))
			}
		case !primed:
			accounts, chainID, primed = nextAccounts, nextChainID, true
		default:
			if nextChainID != chainID {
				a.emit(ports.AgentEvent{Kind: ports.AgentChainChanged, ChainID: nextChainID})
			}
			if !slices.Equal(accounts, nextAccounts) {
				a.emit(ports.AgentEvent{Kind: ports.AgentAccountsChanged, Accounts: nextAccounts})
			}
			accounts, chainID = nextAccounts, nextChainID
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *RPCAgent) snapshot(ctx context.Context) ([]string, string, error) {
	accounts, err := a.Accounts(ctx)
	if err != nil {
		return nil, "", err
	}
	var chainID string
	if err := a.client.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		return nil, "", agentError(err)
	}
	if accounts == nil {
		accounts = []string{}
	}
	return accounts, chainID, nil
}

func (a *RPCAgent) emit(event ports.AgentEvent) {
	a.mu.Lock()
	handlers := make([]func(ports.AgentEvent), 0, len(a.handlers))
	for _, h := range a.handlers {
		handlers = append(handlers, h)
	}
	a.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

// agentError keeps the provider code of json-rpc errors
func agentError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &ports.AgentError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}
	return err
}

var _ ports.SigningAgent = (*RPCAgent)(nil)
