package ports

import (
	"context"
	"fmt"
)

// Wallet provider error codes (EIP-1193 / JSON-RPC)
const (
	CodeUserRejected   = 4001
	CodeRequestPending = -32002
)

// AgentEventKind distinguishes notifications pushed by a signing agent
type AgentEventKind int

const (
	AgentAccountsChanged AgentEventKind = iota
	AgentChainChanged
)

// AgentEvent is a notification pushed by a signing agent
type AgentEvent struct {
	Kind     AgentEventKind
	Accounts []string // set for AgentAccountsChanged
	ChainID  string   // set for AgentChainChanged
}

// AgentError is an error reported by the signing agent with a provider code
type AgentError struct {
	Code    int
	Message string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error %d: %s", e.Code, e.Message)
}

// SigningAgent is the local wallet holding the user's keys
type SigningAgent interface {
	// RequestAccounts asks the user for account access (eth_requestAccounts)
	RequestAccounts(ctx context.Context) ([]string, error)

	// Accounts lists already authorized accounts without prompting (eth_accounts)
	Accounts(ctx context.Context) ([]string, error)

	// SignMessage signs message with the key of address (personal_sign)
	SignMessage(ctx context.Context, address, message string) (string, error)

	// Subscribe registers handler for account and chain notifications.
	// The returned function removes the registration.
	Subscribe(handler func(AgentEvent)) (unsubscribe func(), err error)
}
