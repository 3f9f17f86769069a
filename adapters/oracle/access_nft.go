package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
)

// AccessNFTABI is the read-only surface of the access NFT contract
const AccessNFTABI = `[
	{"type":"function","name":"checkAccess","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"hasAccess","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

// ErrNoCode is returned when the configured address holds no contract
var ErrNoCode = errors.New("no contract code at given address")

// AccessNFT queries the access NFT contract through eth_call
type AccessNFT struct {
	caller   ethereum.ContractCaller
	contract common.Address
	abi      abi.ABI
}

// NewAccessNFT binds the contract at address using caller
func NewAccessNFT(caller ethereum.ContractCaller, address common.Address) (*AccessNFT, error) {
	if caller == nil || address == (common.Address{}) {
		return nil, core.ErrNoContract
	}
	parsed, err := abi.JSON(strings.NewReader(AccessNFTABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract abi: %w", err)
	}
	return &AccessNFT{caller: caller, contract: address, abi: parsed}, nil
}

// Dial connects to an Ethereum JSON-RPC endpoint and binds the contract
func Dial(ctx context.Context, rpcURL string, address common.Address) (*AccessNFT, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	nft, err := NewAccessNFT(client, address)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return nft, client, nil
}

// CheckAccess reports whether holder currently holds a valid access NFT
func (a *AccessNFT) CheckAccess(ctx context.Context, holder common.Address) (bool, error) {
	out, err := a.call(ctx, "checkAccess", holder)
	if err != nil {
		return false, err
	}
	granted, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("checkAccess: unexpected result type %T", out[0])
	}
	return granted, nil
}

// BalanceOf returns the number of access NFTs held by holder
func (a *AccessNFT) BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	out, err := a.call(ctx, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: unexpected result type %T", out[0])
	}
	return balance, nil
}

// OwnerOf returns the owner of tokenID
func (a *AccessNFT) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	out, err := a.call(ctx, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("ownerOf: unexpected result type %T", out[0])
	}
	return owner, nil
}

func (a *AccessNFT) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := a.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to pack call: %w", method, err)
	}

	raw, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &a.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: call failed: %w", method, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: %w", method, ErrNoCode)
	}

	out, err := a.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to unpack result: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: expected 1 result, got %d", method, len(out))
	}
	return out, nil
}

var _ ports.EntitlementOracle = (*AccessNFT)(nil)
