package ports

import "context"

// CredentialStore persists the client's session credential across restarts.
// Load returns core.ErrNoCredential when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
