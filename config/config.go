// Package config loads the server and client settings from the environment.
// An optional .env file is read first; variables already set win.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Server configures the verifier service
type Server struct {
	Addr            string        `env:"NFTGATE_ADDR,default=:9000" validate:"required"`
	JWTSecret       string        `env:"NFTGATE_JWT_SECRET" validate:"required,min=16"`
	SessionTTL      time.Duration `env:"NFTGATE_SESSION_TTL,default=24h"`
	ChallengeMaxAge time.Duration `env:"NFTGATE_CHALLENGE_MAX_AGE,default=0s"`
	RedisURL        string        `env:"REDIS_URL" validate:"omitempty,url"`
	SentryDSN       string        `env:"SENTRY_DSN" validate:"omitempty,url"`
	CORSOrigins     []string      `env:"NFTGATE_CORS_ORIGINS,default=*"`
	LoginRate       float64       `env:"NFTGATE_LOGIN_RATE,default=1" validate:"gte=0"`
	LoginBurst      int           `env:"NFTGATE_LOGIN_BURST,default=5" validate:"gte=1"`
	LogLevel        string        `env:"NFTGATE_LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
}

// Client configures the nftgate command line client
type Client struct {
	RPCURL          string        `env:"NFTGATE_RPC_URL,default=http://127.0.0.1:8545" validate:"required,url"`
	ContractAddress string        `env:"NFTGATE_CONTRACT_ADDRESS" validate:"required,eth_addr"`
	VerifierURL     string        `env:"NFTGATE_VERIFIER_URL,default=http://localhost:9000" validate:"required,url"`
	CredentialPath  string        `env:"NFTGATE_CREDENTIAL_PATH"`
	RedisURL        string        `env:"NFTGATE_CREDENTIAL_REDIS_URL" validate:"omitempty,url"`
	ClientID        string        `env:"NFTGATE_CLIENT_ID,default=default" validate:"required"`
	WalletKey       string        `env:"NFTGATE_WALLET_KEY" validate:"required_without=WalletRPCURL"`
	WalletRPCURL    string        `env:"NFTGATE_WALLET_RPC_URL" validate:"omitempty,url"`
	RPCTimeout      time.Duration `env:"NFTGATE_RPC_TIMEOUT,default=30s" validate:"gt=0"`
	LogLevel        string        `env:"NFTGATE_LOG_LEVEL,default=warn" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// LoadServer reads the server configuration
func LoadServer(envFiles ...string) (*Server, error) {
	var cfg Server
	if err := load(&cfg, envFiles); err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("invalid config: NFTGATE_SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.ChallengeMaxAge < 0 {
		return nil, fmt.Errorf("invalid config: NFTGATE_CHALLENGE_MAX_AGE must not be negative, got %s", cfg.ChallengeMaxAge)
	}
	return &cfg, nil
}

// LoadClient reads the client configuration
func LoadClient(envFiles ...string) (*Client, error) {
	var cfg Client
	if err := load(&cfg, envFiles); err != nil {
		return nil, err
	}
	if cfg.CredentialPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config dir: %w", err)
		}
		cfg.CredentialPath = filepath.Join(dir, "nftgate")
	}
	return &cfg, nil
}

func load(cfg interface{}, envFiles []string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NewLogger builds the JSON logger used by the binaries
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
