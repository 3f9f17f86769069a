// Package agent provides signing agents: an in-process key agent and a
// JSON-RPC agent talking to an external wallet.
package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/nftgate/internal/eth"
	"github.com/layer-3/nftgate/ports"
)

// CodeUnauthorized is returned when signing is requested for an account the
// agent has not exposed (EIP-1193)
const CodeUnauthorized = 4100

// Approval decides an account access request. Returning an error rejects it.
type Approval func(ctx context.Context) error

// KeyAgent is a signing agent holding private keys in memory
type KeyAgent struct {
	mu         sync.Mutex
	signers    []*eth.LocalSigner
	authorized bool
	chainID    string
	approve    Approval

	handlers map[int]func(ports.AgentEvent)
	nextID   int
}

// KeyAgentOption configures a KeyAgent
type KeyAgentOption func(*KeyAgent)

// WithApproval sets the callback deciding account access requests
func WithApproval(approve Approval) KeyAgentOption {
	return func(k *KeyAgent) { k.approve = approve }
}

// WithChainID sets the initial chain id
func WithChainID(chainID string) KeyAgentOption {
	return func(k *KeyAgent) { k.chainID = chainID }
}

// PreAuthorized marks the accounts as already exposed, as a wallet that
// remembers a previous connection does
func PreAuthorized() KeyAgentOption {
	return func(k *KeyAgent) { k.authorized = true }
}

// NewKeyAgent creates an agent exposing signers in order
func NewKeyAgent(signers []*eth.LocalSigner, opts ...KeyAgentOption) *KeyAgent {
	k := &KeyAgent{
		signers:  signers,
		chainID:  "0x1",
		handlers: make(map[int]func(ports.AgentEvent)),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// RequestAccounts grants account access if approved
func (k *KeyAgent) RequestAccounts(ctx context.Context) ([]string, error) {
	k.mu.Lock()
	approve := k.approve
	k.mu.Unlock()

	if approve != nil {
		if err := approve(ctx); err != nil {
			return nil, err
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.authorized = true
	return k.accounts(), nil
}

// Accounts returns the exposed accounts, empty until access is granted
func (k *KeyAgent) Accounts(context.Context) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.authorized {
		return []string{}, nil
	}
	return k.accounts(), nil
}

// SignMessage signs message as a personal message with the key of address
func (k *KeyAgent) SignMessage(_ context.Context, address, message string) (string, error) {
	k.mu.Lock()
	var signer *eth.LocalSigner
	if k.authorized {
		for _, s := range k.signers {
			if strings.EqualFold(s.Address().Hex(), address) {
				signer = s
				break
			}
		}
	}
	k.mu.Unlock()

	if signer == nil {
		return "", &ports.AgentError{Code: CodeUnauthorized, Message: "account not authorized: " + address}
	}

	sig, err := signer.SignMessage([]byte(message))
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// Subscribe registers handler for account and chain notifications
func (k *KeyAgent) Subscribe(handler func(ports.AgentEvent)) (func(), error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	id := k.nextID
	k.nextID++
	k.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.handlers, id)
			k.mu.Unlock()
		})
	}, nil
}

// SelectAccount moves the signer of index to the front, as a user switching
// accounts in the wallet
func (k *KeyAgent) SelectAccount(index int) {
	k.mu.Lock()
	if index <= 0 || index >= len(k.signers) {
		k.mu.Unlock()
		return
	}
	selected := k.signers[index]
	rest := append([]*eth.LocalSigner{}, k.signers[:index]...)
	rest = append(rest, k.signers[index+1:]...)
	k.signers = append([]*eth.LocalSigner{selected}, rest...)
	event := ports.AgentEvent{Kind: ports.AgentAccountsChanged, Accounts: k.accounts()}
	authorized := k.authorized
	k.mu.Unlock()

	if authorized {
		k.emit(event)
	}
}

// Revoke withdraws account access
func (k *KeyAgent) Revoke() {
	k.mu.Lock()
	k.authorized = false
	k.mu.Unlock()

	k.emit(ports.AgentEvent{Kind: ports.AgentAccountsChanged, Accounts: []string{}})
}

// SwitchChain changes the active chain
func (k *KeyAgent) SwitchChain(chainID string) {
	k.mu.Lock()
	if k.chainID == chainID {
		k.mu.Unlock()
		return
	}
	k.chainID = chainID
	k.mu.Unlock()

	k.emit(ports.AgentEvent{Kind: ports.AgentChainChanged, ChainID: chainID})
}

// ChainID returns the active chain
func (k *KeyAgent) ChainID() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.chainID
}

func (k *KeyAgent) accounts() []string {
	accounts := make([]string, len(k.signers))
	for i, s := range k.signers {
		accounts[i] = s.Address().Hex()
	}
	return accounts
}

func (k *KeyAgent) emit(event ports.AgentEvent) {
	k.mu.Lock()
	handlers := make([]func(ports.AgentEvent), 0, len(k.handlers))
	for _, h := range k.handlers {
		handlers = append(handlers, h)
	}
	k.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

var _ ports.SigningAgent = (*KeyAgent)(nil)
