package ports

import (
	"context"

	"github.com/layer-3/nftgate/core"
)

// Verifier exchanges signed challenges for session credentials and validates
// them. It is implemented in-process by service.Verifier and remotely by
// verifierclient.Client.
type Verifier interface {
	Login(ctx context.Context, signed core.SignedChallenge) (*core.LoginResult, error)
	Verify(ctx context.Context, token string) (*core.SessionClaim, error)
}
