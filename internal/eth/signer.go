// Package eth holds the EIP-191 personal_sign primitives shared by the
// verifier and the in-process signing agent.
package eth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidAddress    = errors.New("invalid ethereum address")
	ErrSignatureLength   = errors.New("signature must be 65 bytes")
	ErrInvalidRecoveryID = errors.New("invalid signature recovery id")
)

// Signer signs personal messages with a secp256k1 key
type Signer interface {
	Address() common.Address
	SignMessage(message []byte) ([]byte, error)
}

// LocalSigner is a Signer backed by an in-memory private key
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner wraps key
func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewLocalSignerFromHex parses a hex private key, with or without 0x prefix
func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewLocalSigner(key), nil
}

// GenerateLocalSigner creates a signer with a fresh random key
func GenerateLocalSigner() (*LocalSigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return NewLocalSigner(key), nil
}

// Address returns the address of the key
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignMessage produces a 65 byte [R || S || V] personal_sign signature with V in {27, 28}
func (s *LocalSigner) SignMessage(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
