package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/nftgate/adapters/tokenizer"
	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/internal/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type recordingPublisher struct {
	events []core.AuthEvent
	err    error
}

func (r *recordingPublisher) PublishAuthEvent(_ context.Context, event core.AuthEvent) error {
	r.events = append(r.events, event)
	return r.err
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestVerifier(t *testing.T, c *clock, opts ...Option) (*Verifier, *recordingPublisher) {
	t.Helper()
	tk, err := tokenizer.NewJWTTokenizer(testSecret, tokenizer.WithClock(c.Now))
	require.NoError(t, err)
	pub := &recordingPublisher{}
	return NewVerifier(tk, pub, append([]Option{WithClock(c.Now)}, opts...)...), pub
}

func sign(t *testing.T, signer *eth.LocalSigner, address string, issuedAt int64) core.SignedChallenge {
	t.Helper()
	challenge := core.Challenge{Address: address, IssuedAtMillis: issuedAt}
	sig, err := signer.SignMessage([]byte(challenge.Message()))
	require.NoError(t, err)
	return core.SignedChallenge{Address: address, Signature: hexutil.Encode(sig), IssuedAtMillis: issuedAt}
}

func TestLoginAndVerify(t *testing.T) {
	c := &clock{now: time.UnixMilli(1700000000000)}
	v, pub := newTestVerifier(t, c)
	signer, err := eth.GenerateLocalSigner()
	require.NoError(t, err)

	address := signer.Address().Hex()
	result, err := v.Login(context.Background(), sign(t, signer, address, 1700000000000))
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	assert.Equal(t, core.SessionClaim{
		Address:       strings.ToLower(address),
		Authenticated: true,
		Timestamp:     1700000000000,
	}, result.User)

	claim, err := v.Verify(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User, *claim)

	require.Len(t, pub.events, 1)
	assert.Equal(t, core.AuthEventLogin, pub.events[0].Kind)
	assert.Equal(t, strings.ToLower(address), pub.events[0].Address)
}

func TestLoginAddressCaseInsensitive(t *testing.T) {
	c := &clock{now: time.Now()}
	v, _ := newTestVerifier(t, c)
	signer, err := eth.GenerateLocalSigner()
	require.NoError(t, err)

	// The wallet may hand out lower-cased accounts; the signed message carries them verbatim
	lower := strings.ToLower(signer.Address().Hex())
	result, err := v.Login(context.Background(), sign(t, signer, lower, c.now.UnixMilli()))
	require.NoError(t, err)
	assert.Equal(t, lower, result.User.Address)
}

func TestLoginRejectsForeignSignature(t *testing.T) {
	c := &clock{now: time.Now()}
	v, pub := newTestVerifier(t, c)
	alice, err := eth.GenerateLocalSigner()
	require.NoError(t, err)
	mallory, err := eth.GenerateLocalSigner()
	require.NoError(t, err)

	// Mallory signs a challenge claiming Alice's address
	signed := sign(t, mallory, alice.Address().Hex(), c.now.UnixMilli())
	result, err := v.Login(context.Background(), signed)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
	assert.Nil(t, result)

	require.Len(t, pub.events, 1)
	assert.Equal(t, core.AuthEventLoginRejected, pub.events[0].Kind)
}

func TestLoginRejectsDifferentTimestamp(t *testing.T) {
	c := &clock{now: time.Now()}
	v, _ := newTestVerifier(t, c)
	signer, err := eth.GenerateLocalSigner()
	require.NoError(t, err)

	signed := sign(t, signer, signer.Address().Hex(), 1700000000000)
	signed.IssuedAtMillis++

	_, err = v.Login(context.Background(), signed)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestLoginBadRequests(t *testing.T) {
	c := &clock{now: time.Now()}
	v, _ := newTestVerifier(t, c)
	signer, err := eth.GenerateLocalSigner()
	require.NoError(t, err)
	valid := sign(t, signer, signer.Address().Hex(), c.now.UnixMilli())

	tests := []struct {
		name   string
		mutate func(*core.SignedChallenge)
		want   error
	}{
		{"missing address", func(s *core.SignedChallenge) { s.Address = "" }, core.ErrMissingCredentials},
		{"missing signature", func(s *core.SignedChallenge) { s.Signature = "" }, core.ErrMissingCredentials},
		{"missing timestamp", func(s *core.SignedChallenge) { s.IssuedAtMillis = 0 }, core.ErrMissingTimestamp},
		{"malformed address", func(s *core.SignedChallenge) { s.Address = "0x1234" }, core.ErrMalformedAddress},
		{"non hex signature", func(s *core.SignedChallenge) { s.Signature = "zz" }, core.ErrMalformedSignature},
		{"short signature", func(s *core.SignedChallenge) { s.Signature = "0x" + strings.Repeat("00", 64) }, core.ErrMalformedSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed := valid
			tt.mutate(&signed)

			_, err := v.Login(context.Background(), signed)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, core.ErrBadRequest)
		})
	}
}

func TestLoginChallengeWindow(t *testing.T) {
	c := &clock{now: time.UnixMilli(1700000000000)}
	signer, err := eth.GenerateLocalSigner()
	require.NoError(t, err)
	signed := sign(t, signer, signer.Address().Hex(), 1700000000000)

	c.now = c.now.Add(10 * time.Minute)

	// Disabled by default
	open, _ := newTestVerifier(t, c)
	_, err = open.Login(context.Background(), signed)
	require.NoError(t, err)

	bounded, _ := newTestVerifier(t, c, WithMaxChallengeAge(5*time.Minute))
	_, err = bounded.Login(context.Background(), signed)
	assert.ErrorIs(t, err, core.ErrChallengeExpired)
}

func TestVerifyExpiry(t *testing.T) {
	issued := time.UnixMilli(1700000000000)
	c := &clock{now: issued}
	v, _ := newTestVerifier(t, c)
	signer, err := eth.GenerateLocalSigner()
	require.NoError(t, err)

	result, err := v.Login(context.Background(), sign(t, signer, signer.Address().Hex(), issued.UnixMilli()))
	require.NoError(t, err)

	c.now = issued.Add(23*time.Hour + 59*time.Minute)
	_, err = v.Verify(context.Background(), result.Token)
	require.NoError(t, err)

	c.now = issued.Add(24*time.Hour + time.Second)
	_, err = v.Verify(context.Background(), result.Token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestVerifyExpiryMillisecondIssuance(t *testing.T) {
	issued := time.UnixMilli(1700000000900)
	c := &clock{now: issued}
	v, _ := newTestVerifier(t, c)
	signer, err := eth.GenerateLocalSigner()
	require.NoError(t, err)

	result, err := v.Login(context.Background(), sign(t, signer, signer.Address().Hex(), issued.UnixMilli()))
	require.NoError(t, err)

	c.now = issued.Add(24*time.Hour - 500*time.Millisecond)
	_, err = v.Verify(context.Background(), result.Token)
	require.NoError(t, err)

	c.now = issued.Add(24*time.Hour - time.Millisecond)
	_, err = v.Verify(context.Background(), result.Token)
	require.NoError(t, err)

	c.now = issued.Add(24 * time.Hour)
	_, err = v.Verify(context.Background(), result.Token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestVerifyRejects(t *testing.T) {
	c := &clock{now: time.Now()}
	v, _ := newTestVerifier(t, c)

	_, err := v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrNoToken)

	_, err = v.Verify(context.Background(), "garbage")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestLoginSurvivesPublisherFailure(t *testing.T) {
	c := &clock{now: time.Now()}
	v, pub := newTestVerifier(t, c)
	pub.err = errors.New("redis down")
	signer, err := eth.GenerateLocalSigner()
	require.NoError(t, err)

	_, err = v.Login(context.Background(), sign(t, signer, signer.Address().Hex(), c.now.UnixMilli()))
	assert.NoError(t, err)
}
