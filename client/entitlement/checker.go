// Package entitlement answers whether a wallet holds the access NFT.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Checker queries the entitlement oracle and keeps the last answer for the
// current address. Failures never escape: they read as not granted.
type Checker struct {
	oracle ports.EntitlementOracle
	logger *slog.Logger
	now    func() time.Time

	queryTimeout time.Duration
	group        singleflight.Group

	mu         sync.Mutex
	generation uint64
	status     core.EntitlementStatus
	checking   bool
	lastErr    error
}

// Option configures a Checker
type Option func(*Checker)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// WithQueryTimeout bounds a shared oracle query
func WithQueryTimeout(timeout time.Duration) Option {
	return func(c *Checker) { c.queryTimeout = timeout }
}

// DefaultQueryTimeout bounds an oracle query when no timeout is configured
const DefaultQueryTimeout = 30 * time.Second

// NewChecker creates a checker. A nil oracle means no contract is configured.
func NewChecker(oracle ports.EntitlementOracle, opts ...Option) *Checker {
	c := &Checker{
		oracle:       oracle,
		logger:       slog.Default(),
		now:          time.Now,
		queryTimeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check asks the oracle whether address holds a valid access NFT. Concurrent
// checks for the same address share one query; only the most recently started
// check updates the recorded status.
func (c *Checker) Check(ctx context.Context, address common.Address) bool {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.checking = true
	c.mu.Unlock()

	if c.oracle == nil {
		c.record(gen, address, false, core.ErrNoContract)
		return false
	}

	// Shared queries run detached from any one caller's cancellation
	ch := c.group.DoChan(address.Hex(), func() (interface{}, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.queryTimeout)
		defer cancel()
		return c.oracle.CheckAccess(qctx, address)
	})

	var (
		v   interface{}
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	granted := false
	var recorded error
	if err != nil {
		c.logger.WarnContext(ctx, "entitlement check failed",
			slog.String("address", address.Hex()),
			slog.String("error", err.Error()))
		recorded = fmt.Errorf("%w: %v", core.ErrEntitlement, err)
	} else {
		granted = v.(bool)
	}

	c.record(gen, address, granted, recorded)
	return granted
}

// Sync follows the wallet identity: nil clears the status at once, a new
// address is checked
func (c *Checker) Sync(ctx context.Context, identity *core.WalletIdentity) bool {
	if identity == nil {
		c.Reset()
		return false
	}
	return c.Check(ctx, identity.Address)
}

// Reset forgets the recorded status and discards in-flight results
func (c *Checker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.status = core.EntitlementStatus{}
	c.checking = false
	c.lastErr = nil
}

// Granted reports whether the last completed check granted address
func (c *Checker) Granted(address common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Granted && c.status.Address == address
}

// Status returns the last recorded answer and the error of the check that
// produced it
func (c *Checker) Status() (core.EntitlementStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.lastErr
}

// Checking reports whether a check is in flight
func (c *Checker) Checking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checking
}

// CheckBalance returns how many access NFTs address holds, zero on failure
func (c *Checker) CheckBalance(ctx context.Context, address common.Address) decimal.Decimal {
	if c.oracle == nil {
		return decimal.Zero
	}
	balance, err := c.oracle.BalanceOf(ctx, address)
	if err != nil {
		c.logger.WarnContext(ctx, "balance check failed",
			slog.String("address", address.Hex()),
			slog.String("error", err.Error()))
		return decimal.Zero
	}
	return decimal.NewFromBigInt(balance, 0)
}

// OwnerOf returns the holder of tokenID
func (c *Checker) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	if c.oracle == nil {
		return common.Address{}, core.ErrNoContract
	}
	owner, err := c.oracle.OwnerOf(ctx, tokenID)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", core.ErrEntitlement, err)
	}
	return owner, nil
}

func (c *Checker) record(gen uint64, address common.Address, granted bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer check or a reset superseded this one
	if gen != c.generation {
		return
	}
	c.status = core.EntitlementStatus{
		Address:       address,
		Granted:       granted,
		LastCheckedAt: c.now(),
	}
	c.checking = false
	c.lastErr = err
}
