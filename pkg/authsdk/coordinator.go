package authsdk

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// refreshResult is what a resolved refresh attempt hands to every waiter.
type refreshResult struct {
	token *TokenResponse
	err   error
}

// RefreshTicket represents one in-flight refresh attempt. Every caller that
// needs a fresh token while the attempt is running receives the same ticket
// and therefore the same outcome. A ticket is discarded once resolved; a
// later refresh with the same refresh-token value gets a new ticket.
type RefreshTicket struct {
	// issuedFor is the refresh token value the attempt was started with.
	issuedFor string

	ch <-chan singleflight.Result
}

// wait blocks until the shared attempt resolves or ctx is done. Abandoning
// the wait does not cancel the attempt, since other callers may still be
// waiting on it.
func (t RefreshTicket) wait(ctx context.Context) (refreshResult, error) {
	select {
	case <-ctx.Done():
		return refreshResult{}, ctx.Err()
	case res := <-t.ch:
		return res.Val.(refreshResult), nil
	}
}

// refreshCoordinator guarantees at most one in-flight refresh network
// attempt per refresh-token value, under both cooperative scheduling and
// true parallelism.
type refreshCoordinator struct {
	group singleflight.Group
}

// acquire joins the in-flight attempt for refreshToken, starting one with fn
// if none exists. fn runs exactly once per ticket and must not panic; its
// outcome is broadcast to every holder of the ticket.
func (rc *refreshCoordinator) acquire(refreshToken string, fn func() refreshResult) RefreshTicket {
	ch := rc.group.DoChan(refreshToken, func() (any, error) {
		return fn(), nil
	})

	return RefreshTicket{issuedFor: refreshToken, ch: ch}
}
