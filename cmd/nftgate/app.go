package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/nftgate/adapters/agent"
	"github.com/layer-3/nftgate/adapters/oracle"
	"github.com/layer-3/nftgate/adapters/store"
	"github.com/layer-3/nftgate/adapters/verifierclient"
	"github.com/layer-3/nftgate/client/entitlement"
	"github.com/layer-3/nftgate/client/gate"
	"github.com/layer-3/nftgate/client/session"
	"github.com/layer-3/nftgate/client/wallet"
	"github.com/layer-3/nftgate/config"
	"github.com/layer-3/nftgate/internal/eth"
	"github.com/layer-3/nftgate/ports"
	"github.com/redis/go-redis/v9"
)

// app wires the client components for one command run
type app struct {
	gate     *gate.Gate
	verifier *verifierclient.Client
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Client) (*app, error) {
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)
	a := &app{verifier: verifierclient.New(cfg.VerifierURL)}

	signingAgent, err := a.signingAgent(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	nft, ethClient, err := oracle.Dial(ctx, cfg.RPCURL, common.HexToAddress(cfg.ContractAddress))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, ethClient.Close)

	credentials, err := a.credentialStore(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.gate = gate.New(
		wallet.NewManager(signingAgent, wallet.WithLogger(logger)),
		entitlement.NewChecker(nft, entitlement.WithLogger(logger), entitlement.WithQueryTimeout(cfg.RPCTimeout)),
		session.NewStore(a.verifier, credentials, session.WithLogger(logger)),
		gate.WithLogger(logger),
	)
	if err := a.gate.Start(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.gate.Close)

	return a, nil
}

func (a *app) signingAgent(ctx context.Context, cfg *config.Client, logger *slog.Logger) (ports.SigningAgent, error) {
	if cfg.WalletKey != "" {
		signer, err := eth.NewLocalSignerFromHex(cfg.WalletKey)
		if err != nil {
			return nil, err
		}
		// A configured key is a wallet that already granted access
		return agent.NewKeyAgent([]*eth.LocalSigner{signer}, agent.PreAuthorized()), nil
	}

	rpcAgent, err := agent.DialRPCAgent(ctx, cfg.WalletRPCURL, agent.WithAgentLogger(logger))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rpcAgent.Close)
	return rpcAgent, nil
}

func (a *app) credentialStore(cfg *config.Client) (ports.CredentialStore, error) {
	if cfg.RedisURL == "" {
		return store.NewFileStore(filepath.Join(cfg.CredentialPath, store.CredentialFileName))
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, func() { _ = client.Close() })
	return store.NewRedisStore(client, cfg.ClientID), nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
