/*
Package authsdk manages the authentication session for clients of the
Listora platform.

# Overview

The package implements the client-side session lifecycle around the
platform's identity endpoints: issuing a credential pair (short-lived access
token plus longer-lived refresh token), persisting it, proactively renewing
it before expiry, and revoking it on logout. One SessionManager exists per
running client instance; the rest of the application never touches tokens
directly.

# SessionManager vs IssuerClient

The package is organized around two main types:

  - IssuerClient: a thin, stateless wrapper over the identity endpoints
    (login, register, refresh, revoke). No retries, no policy.
  - SessionManager: the state machine that owns all policy — persistence,
    proactive renewal, retry with backoff, and failure classification.

Construct them explicitly so tests can run independent sessions:

	issuer := authsdk.NewIssuerClient("https://api.listora.dev")
	store, _ := credstore.Open(path, nil)
	session := authsdk.NewSessionManager(issuer, store)

	user, err := session.Login(ctx, "seller@example.com", "password")

# Obtaining tokens

GetValidAccessToken is the single entry point every outbound authenticated
request must use:

	token, err := session.GetValidAccessToken(ctx)

If the cached access token's remaining lifetime exceeds the safety margin it
is returned immediately with no I/O. Otherwise the caller suspends while a
refresh runs. Concurrent callers that all observe a stale token share one
network refresh: the refresh coordinator guarantees a single in-flight
attempt per refresh token, and every waiter receives its outcome.

# Proactive renewal

On every successful token issuance the manager arms a timer for
expiresAt minus a safety margin (a fraction of the token lifetime by
default, see WithMarginFraction and WithRefreshMargin). The timer shares the
reactive renewal path, so it never races a caller-triggered refresh.

# Failure handling

Every failure is classified into an AuthError with a category, severity,
retryability and optional server backoff hint. Network, server and
rate-limit failures are retried transparently with jittered exponential
backoff up to a bounded attempt count; authentication, permission and
validation failures surface immediately. A terminal refresh failure expires
the session and clears the store — the application should treat that exactly
like a logout.

Logout always succeeds locally. The server-side revoke call is best effort;
its failure is logged and swallowed.

# State observation

UI layers bind to the session through read-only snapshots:

	unsubscribe := session.Subscribe(func(snap authsdk.Snapshot) {
		render(snap.Status, snap.User, snap.LastError)
	})
	defer unsubscribe()

Snapshots are copies; observers cannot mutate session state.

# Thread safety

SessionManager is safe for concurrent use from any number of goroutines.
The single-flight guarantee holds under true parallelism, not just
interleaved scheduling.
*/
package authsdk
