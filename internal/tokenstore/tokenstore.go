// Package tokenstore persists the access token between runs.
//
// The token is read afresh on every use so a login or logout in another
// process takes effect on the next request.
package tokenstore

import "context"

// DefaultKey is the key the access token is stored under.
const DefaultKey = "accessToken"

// Source provides the current access token. An empty token with a nil error
// means no one is logged in.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// Store is a Source that can also be written by login and logout.
type Store interface {
	Source
	SetToken(ctx context.Context, token string) error
	DeleteToken(ctx context.Context) error
}
