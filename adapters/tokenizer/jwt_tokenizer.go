package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
)

// AudienceSession marks tokens minted for the premium dashboard session
const AudienceSession = "nftgate:session"

// MinSecretLength is the shortest accepted HMAC secret
const MinSecretLength = 16

// ErrSecretTooShort is returned for secrets shorter than MinSecretLength
var ErrSecretTooShort = errors.New("secret key too short")

// JWTTokenizer implements the Tokenizer interface using HS256 JWTs
type JWTTokenizer struct {
	secret []byte
	now    func() time.Time
}

// Option configures a JWTTokenizer
type Option func(*JWTTokenizer)

// WithClock overrides the time source used to validate expiry
func WithClock(now func() time.Time) Option {
	return func(j *JWTTokenizer) { j.now = now }
}

// NewJWTTokenizer creates a new JWT tokenizer signing with secret
func NewJWTTokenizer(secret []byte, opts ...Option) (ports.Tokenizer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	j := &JWTTokenizer{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// SessionToToken converts a Session to a signed JWT
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address,
			ExpiresAt: jwt.NewNumericDate(ceilSecond(session.ExpiresAt)),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Address:   session.Address,
		Timestamp: session.IssuedAt.UnixMilli(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// ceilSecond rounds t up to a whole second. NumericDate truncates, which
// would end a session up to a second before its millisecond expiry.
func ceilSecond(t time.Time) time.Time {
	whole := t.Truncate(time.Second)
	if whole.Before(t) {
		return whole.Add(time.Second)
	}
	return whole
}

// TokenToSession validates signature, audience and expiry of a JWT and
// returns the session it carries
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(AudienceSession),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.Address == "" {
		return nil, core.ErrInvalidToken
	}

	return &core.Session{
		Address:   claims.Address,
		IssuedAt:  time.UnixMilli(claims.Timestamp),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
