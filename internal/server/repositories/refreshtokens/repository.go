// Package refreshtokens keeps the single live refresh token per user.
//
// Storing a token replaces any previous one for the same user, so at most one
// refresh token is valid per identity at any time.
package refreshtokens

import "context"

type Repository interface {
	// Set stores token as the live refresh token for userID. It returns
	// common.ErrorNotFound when the user does not exist.
	Set(ctx context.Context, userID, token string) error
	// Get returns the stored token or "" when the user has no session.
	Get(ctx context.Context, userID string) (string, error)
	// Clear removes the stored token. Clearing an absent session is not an error.
	Clear(ctx context.Context, userID string) error
}
