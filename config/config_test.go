package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serverVars = []string{
	"NFTGATE_ADDR", "NFTGATE_JWT_SECRET", "NFTGATE_SESSION_TTL", "NFTGATE_CHALLENGE_MAX_AGE",
	"REDIS_URL", "SENTRY_DSN", "NFTGATE_CORS_ORIGINS", "NFTGATE_LOGIN_RATE", "NFTGATE_LOGIN_BURST",
	"NFTGATE_LOG_LEVEL",
}

var clientVars = []string{
	"NFTGATE_RPC_URL", "NFTGATE_CONTRACT_ADDRESS", "NFTGATE_VERIFIER_URL", "NFTGATE_CREDENTIAL_PATH",
	"NFTGATE_CREDENTIAL_REDIS_URL", "NFTGATE_CLIENT_ID", "NFTGATE_WALLET_KEY", "NFTGATE_WALLET_RPC_URL",
	"NFTGATE_LOG_LEVEL",
}

// unsetenv clears keys for the duration of the test
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadServerDefaults(t *testing.T) {
	unsetenv(t, serverVars...)
	t.Setenv("NFTGATE_JWT_SECRET", "0123456789abcdef")

	cfg, err := LoadServer(missingFile(t))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Zero(t, cfg.ChallengeMaxAge)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 1.0, cfg.LoginRate)
	assert.Equal(t, 5, cfg.LoginBurst)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadServerRequiresSecret(t *testing.T) {
	unsetenv(t, serverVars...)

	_, err := LoadServer(missingFile(t))
	assert.ErrorContains(t, err, "JWTSecret")

	t.Setenv("NFTGATE_JWT_SECRET", "short")
	_, err = LoadServer(missingFile(t))
	assert.ErrorContains(t, err, "JWTSecret")
}

func TestLoadServerFromEnvFile(t *testing.T) {
	unsetenv(t, serverVars...)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"NFTGATE_JWT_SECRET=from-file-secret-value\n"+
			"NFTGATE_CHALLENGE_MAX_AGE=5m\n"+
			"NFTGATE_CORS_ORIGINS=https://a.example,https://b.example\n"+
			"REDIS_URL=redis://localhost:6379/1\n"), 0o600))

	// Variables already in the environment win over the file
	t.Setenv("NFTGATE_ADDR", ":8080")

	cfg, err := LoadServer(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file-secret-value", cfg.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeMaxAge)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoadServerRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"NFTGATE_SESSION_TTL":       "0s",
		"NFTGATE_CHALLENGE_MAX_AGE": "-1m",
		"NFTGATE_LOG_LEVEL":         "verbose",
		"NFTGATE_LOGIN_BURST":       "0",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			unsetenv(t, serverVars...)
			t.Setenv("NFTGATE_JWT_SECRET", "0123456789abcdef")
			t.Setenv(key, value)

			_, err := LoadServer(missingFile(t))
			assert.Error(t, err)
		})
	}
}

func TestLoadClient(t *testing.T) {
	unsetenv(t, clientVars...)
	t.Setenv("NFTGATE_CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	t.Setenv("NFTGATE_WALLET_KEY", "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	dir := t.TempDir()
	t.Setenv("NFTGATE_CREDENTIAL_PATH", dir)

	cfg, err := LoadClient(missingFile(t))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPCURL)
	assert.Equal(t, "http://localhost:9000", cfg.VerifierURL)
	assert.Equal(t, dir, cfg.CredentialPath)
	assert.Equal(t, "default", cfg.ClientID)
	assert.Equal(t, 30*time.Second, cfg.RPCTimeout)
}

func TestLoadClientValidation(t *testing.T) {
	unsetenv(t, clientVars...)
	t.Setenv("NFTGATE_WALLET_KEY", "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")

	_, err := LoadClient(missingFile(t))
	assert.ErrorContains(t, err, "ContractAddress")

	t.Setenv("NFTGATE_CONTRACT_ADDRESS", "0x1234")
	_, err = LoadClient(missingFile(t))
	assert.ErrorContains(t, err, "ContractAddress")

	// A wallet is required, either a key or an rpc endpoint
	t.Setenv("NFTGATE_CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	require.NoError(t, os.Unsetenv("NFTGATE_WALLET_KEY"))
	_, err = LoadClient(missingFile(t))
	assert.ErrorContains(t, err, "WalletKey")

	t.Setenv("NFTGATE_WALLET_RPC_URL", "http://127.0.0.1:1248")
	_, err = LoadClient(missingFile(t))
	assert.NoError(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
