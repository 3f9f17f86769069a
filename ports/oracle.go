package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EntitlementOracle is the read-only surface of the access NFT contract
type EntitlementOracle interface {
	CheckAccess(ctx context.Context, holder common.Address) (bool, error)
	BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
}
