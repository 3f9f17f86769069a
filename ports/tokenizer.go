package ports

import "github.com/layer-3/nftgate/core"

// Tokenizer converts between sessions and session credentials
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}
