package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChallengeMessage(t *testing.T) {
	c := Challenge{Address: "0xABCfabcfabcfabcfabcfabcfabcfabcfabcfabc", IssuedAtMillis: 1700000000000}

	assert.Equal(t,
		"I want to access the premium dashboard. Address: 0xABCfabcfabcfabcfabcfabcfabcfabcfabcfabc. Timestamp: 1700000000000",
		c.Message())
}

func TestNewChallengeUsesMillis(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	c := NewChallenge("0x1", now)

	assert.Equal(t, int64(1700000000123), c.IssuedAtMillis)
	assert.True(t, c.IssuedAt().Equal(now))
}

func TestSignedChallengeRoundTrip(t *testing.T) {
	s := SignedChallenge{Address: "0xAbC", Signature: "0x00", IssuedAtMillis: 42}

	assert.Equal(t, Challenge{Address: "0xAbC", IssuedAtMillis: 42}, s.Challenge())
}

func TestSessionClaim(t *testing.T) {
	s := &Session{Address: "0xabc", IssuedAt: time.UnixMilli(1700000000000)}

	assert.Equal(t, SessionClaim{Address: "0xabc", Authenticated: true, Timestamp: 1700000000000}, s.Claim())
}

func TestConnectionError(t *testing.T) {
	assert.Equal(t, "connection failed: -32603 internal", (&ConnectionError{Code: -32603, Message: "internal"}).Error())
	assert.Equal(t, "connection failed: boom", (&ConnectionError{Message: "boom"}).Error())
}
