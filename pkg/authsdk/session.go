package authsdk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/listora/listora-go/pkg/slogx"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusRefreshing     Status = "refreshing"
	StatusExpired        Status = "expired"
)

// defaultMarginFraction reserves the last portion of a token's lifetime for
// proactive renewal.
const defaultMarginFraction = 0.15

// Snapshot is a read-only view of the session for UI binding. Mutating a
// snapshot has no effect on the session.
type Snapshot struct {
	Status    Status
	User      *UserProfile
	LastError *AuthError
}

// Option configures a SessionManager.
type Option func(*SessionManager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *SessionManager) { s.logger = l }
}

// WithRetryPolicy overrides the transparent-retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *SessionManager) { s.retry = p }
}

// WithRefreshMargin fixes the safety margin to an absolute duration instead
// of a fraction of the token lifetime.
func WithRefreshMargin(d time.Duration) Option {
	return func(s *SessionManager) { s.margin = d }
}

// WithMarginFraction sets the fraction of the token lifetime reserved for
// proactive renewal.
func WithMarginFraction(f float64) Option {
	return func(s *SessionManager) { s.marginFraction = f }
}

// withNow overrides the clock in tests.
func withNow(now func() time.Time) Option {
	return func(s *SessionManager) { s.now = now }
}

// SessionManager owns the one session of a running client instance: it
// issues, persists, proactively renews and revokes the token pair, and is
// the only type the rest of the application talks to for credentials.
//
// All mutation of the session and the credential store happens inside the
// manager; external code observes state through Snapshot, Subscribe and the
// read accessors.
type SessionManager struct {
	issuer   TokenIssuer
	store    CredentialStore
	logger   *slog.Logger
	validate *validator.Validate
	retry    RetryPolicy

	margin         time.Duration // fixed safety margin; 0 means use fraction
	marginFraction float64
	now            func() time.Time

	flight refreshCoordinator
	sched  renewScheduler

	mu           sync.Mutex
	status       Status
	user         *UserProfile
	accessToken  string
	refreshToken string
	issuedAt     time.Time
	expiresAt    time.Time
	lastErr      *AuthError

	// epoch increments whenever the session identity changes (login,
	// logout, hydrate). A refresh outcome is applied only if the epoch it
	// started under is still current, so a ticket that resolves after
	// logout can never re-authenticate the session.
	epoch uint64

	obsMu     sync.Mutex
	observers map[uint64]func(Snapshot)
	obsSeq    uint64
}

// NewSessionManager builds a session manager. A nil store degrades to an
// in-memory store that does not survive restarts.
func NewSessionManager(issuer TokenIssuer, store CredentialStore, opts ...Option) *SessionManager {
	if store == nil {
		store = NewMemoryStore()
	}

	s := &SessionManager{
		issuer:         issuer,
		store:          store,
		logger:         slogx.Nop(),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		marginFraction: defaultMarginFraction,
		now:            time.Now,
		status:         StatusAnonymous,
		observers:      make(map[uint64]func(Snapshot)),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.retry = s.retry.withDefaults()

	return s
}

// Close disarms the proactive renewal timer. The session state itself is
// left untouched.
func (s *SessionManager) Close() {
	s.sched.Disarm()
}

// ----------------------------------------------------------------------------
// Read-only observation
// ----------------------------------------------------------------------------

// Snapshot returns the current state for UI binding.
func (s *SessionManager) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IsAuthenticated reports whether the session holds usable credentials. A
// session that is mid-renewal still counts as signed in.
func (s *SessionManager) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusAuthenticated || s.status == StatusRefreshing
}

// CurrentUser returns a copy of the signed-in user's profile, or nil.
func (s *SessionManager) CurrentUser() *UserProfile {
	return s.Snapshot().User
}

// LastError returns the most recent classified failure, or nil.
func (s *SessionManager) LastError() *AuthError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe registers fn to run on every state change with a fresh
// snapshot. It returns an unsubscribe func. Callbacks run synchronously on
// the mutating goroutine and must not call back into the manager's mutating
// operations.
func (s *SessionManager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.obsSeq++
	id := s.obsSeq
	s.observers[id] = fn

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *SessionManager) snapshotLocked() Snapshot {
	var user *UserProfile
	if s.user != nil {
		cp := *s.user
		user = &cp
	}
	return Snapshot{Status: s.status, User: user, LastError: s.lastErr}
}

func (s *SessionManager) notify() {
	snap := s.Snapshot()

	s.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// ----------------------------------------------------------------------------
// Login / Register / Logout / Hydrate
// ----------------------------------------------------------------------------

// Login authenticates with email/password credentials. On success the
// session is Authenticated, the token pair is persisted and proactive
// renewal is armed. Validation and authentication failures are returned
// immediately; network, server and rate-limit failures are retried per the
// retry policy before surfacing.
func (s *SessionManager) Login(ctx context.Context, email, password string) (*UserProfile, error) {
	if err := s.validate.Struct(LoginRequest{Email: email, Password: password}); err != nil {
		ae := errValidation("Enter a valid email address and a password.")
		s.setError(ae)
		return nil, ae
	}

	return s.authenticate(ctx, func(ctx context.Context) (*TokenResponse, error) {
		return s.issuer.Login(ctx, email, password)
	})
}

// Register creates an account and signs it in.
func (s *SessionManager) Register(ctx context.Context, req RegisterRequest) (*UserProfile, error) {
	if err := s.validate.Struct(req); err != nil {
		ae := errValidation("Check the registration details and try again.")
		s.setError(ae)
		return nil, ae
	}

	return s.authenticate(ctx, func(ctx context.Context) (*TokenResponse, error) {
		return s.issuer.Register(ctx, req)
	})
}

func (s *SessionManager) authenticate(ctx context.Context, call func(context.Context) (*TokenResponse, error)) (*UserProfile, error) {
	s.mu.Lock()
	prev := s.status
	s.status = StatusAuthenticating
	s.mu.Unlock()
	s.notify()

	resp, err := s.withRetries(ctx, call)
	if err != nil {
		ae := coerceAuthError(err)
		s.mu.Lock()
		if s.status == StatusAuthenticating {
			s.status = prev
		}
		s.lastErr = ae
		s.mu.Unlock()
		s.notify()
		return nil, ae
	}

	user, ae := s.adopt(ctx, resp)
	if ae != nil {
		s.mu.Lock()
		if s.status == StatusAuthenticating {
			s.status = prev
		}
		s.lastErr = ae
		s.mu.Unlock()
		s.notify()
		return nil, ae
	}

	return user, nil
}

// adopt installs a freshly issued token pair as the new session identity:
// persist, transition to Authenticated, arm the scheduler.
func (s *SessionManager) adopt(ctx context.Context, resp *TokenResponse) (*UserProfile, *AuthError) {
	issuedAt, expiresAt, err := tokenTimes(resp, s.now())
	if err != nil {
		return nil, &AuthError{
			Category: CategoryUnknown,
			Severity: SeverityMedium,
			Code:     CodeUnknownError,
			Message:  "The service returned an unusable credential.",
			cause:    err,
		}
	}

	rec := Record{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	s.persist(ctx, rec)

	s.mu.Lock()
	s.status = StatusAuthenticated
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.issuedAt = issuedAt
	s.expiresAt = expiresAt
	if resp.User != nil {
		s.user = resp.User
	}
	s.lastErr = nil
	s.epoch++
	var user *UserProfile
	if s.user != nil {
		cp := *s.user
		user = &cp
	}
	s.mu.Unlock()

	s.armScheduler(issuedAt, expiresAt)
	s.notify()

	return user, nil
}

// Logout ends the session. Local state clearing is the authoritative action
// and always succeeds; the server-side revoke call is best effort and its
// failure is only logged. Safe to call repeatedly.
func (s *SessionManager) Logout(ctx context.Context) {
	s.mu.Lock()
	refreshToken := s.refreshToken
	s.status = StatusAnonymous
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.issuedAt = time.Time{}
	s.expiresAt = time.Time{}
	s.lastErr = nil
	s.epoch++
	s.mu.Unlock()

	s.sched.Disarm()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("credential store clear failed", "err", err)
	}
	s.notify()

	if refreshToken != "" {
		if err := s.issuer.Revoke(ctx, refreshToken); err != nil {
			s.logger.Warn("best-effort token revoke failed", "err", err)
		}
	}
}

// Hydrate restores a session from the credential store, renewing through
// the refresh token when the persisted access token is stale. It reports
// whether a session was restored; store unavailability is not an error.
func (s *SessionManager) Hydrate(ctx context.Context) (bool, error) {
	rec, ok, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("credential store load failed", "err", err)
		return false, nil
	}
	if !ok || rec.RefreshToken == "" {
		return false, nil
	}

	// Fast path: the persisted access token is still comfortably valid.
	if rec.AccessToken != "" {
		if issuedAt, expiresAt, err := tokenLifetime(rec.AccessToken); err == nil {
			if issuedAt.IsZero() {
				issuedAt = s.now()
			}
			lifetime := expiresAt.Sub(issuedAt)
			if s.now().Before(expiresAt.Add(-s.marginFor(lifetime))) {
				s.mu.Lock()
				s.status = StatusAuthenticated
				s.accessToken = rec.AccessToken
				s.refreshToken = rec.RefreshToken
				s.issuedAt = issuedAt
				s.expiresAt = expiresAt
				s.user = rec.User
				s.lastErr = nil
				s.epoch++
				s.mu.Unlock()

				s.armScheduler(issuedAt, expiresAt)
				s.notify()
				return true, nil
			}
		}
	}

	// Stale or missing access token: renew with the persisted refresh token.
	s.mu.Lock()
	s.status = StatusRefreshing
	s.accessToken = ""
	s.refreshToken = rec.RefreshToken
	s.user = rec.User
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	res := s.joinRefresh(ctx, rec.RefreshToken, epoch)
	if res.err != nil {
		return false, res.err
	}
	return true, nil
}

// ----------------------------------------------------------------------------
// Token access and renewal
// ----------------------------------------------------------------------------

// GetValidAccessToken is the single entry point for obtaining a bearer
// credential. If the cached access token's remaining lifetime exceeds the
// safety margin it is returned without I/O; otherwise the caller joins the
// (single) in-flight refresh and suspends until it resolves.
func (s *SessionManager) GetValidAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	switch s.status {
	case StatusAuthenticated:
		if s.now().Before(s.renewAtLocked()) {
			token := s.accessToken
			s.mu.Unlock()
			return token, nil
		}
	case StatusRefreshing:
		// Join the in-flight attempt below.
	default:
		s.mu.Unlock()
		return "", errNotAuthenticated()
	}

	refreshToken := s.refreshToken
	epoch := s.epoch
	changed := s.status != StatusRefreshing
	s.status = StatusRefreshing
	s.mu.Unlock()

	if changed {
		s.notify()
	}

	res := s.joinRefresh(ctx, refreshToken, epoch)
	if res.err != nil {
		return "", res.err
	}
	return res.token.AccessToken, nil
}

// joinRefresh routes a renewal through the single-flight coordinator and
// waits for the shared outcome. Abandoning the wait (caller context done)
// does not cancel the attempt for the other waiters.
func (s *SessionManager) joinRefresh(ctx context.Context, refreshToken string, epoch uint64) refreshResult {
	ticket := s.flight.acquire(refreshToken, func() refreshResult {
		// The attempt outlives any single caller.
		return s.executeRefresh(context.WithoutCancel(ctx), refreshToken, epoch)
	})

	res, err := ticket.wait(ctx)
	if err != nil {
		return refreshResult{err: err}
	}
	return res
}

// executeRefresh is the body of a single-flight refresh attempt: it retries
// retryable failures per policy, then applies the outcome to the session
// exactly once.
func (s *SessionManager) executeRefresh(ctx context.Context, refreshToken string, epoch uint64) refreshResult {
	// Another attempt may have renewed the pair between this caller reading
	// its state and the flight starting. Serve the current token instead of
	// spending the (single-use) refresh token again.
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return refreshResult{err: errSessionClosed()}
	}
	if s.refreshToken != refreshToken {
		if s.accessToken != "" {
			res := refreshResult{token: &TokenResponse{
				AccessToken:  s.accessToken,
				RefreshToken: s.refreshToken,
			}}
			s.status = StatusAuthenticated
			s.mu.Unlock()
			return res
		}
		s.mu.Unlock()
		return refreshResult{err: errSessionClosed()}
	}
	s.mu.Unlock()

	resp, err := s.withRetries(ctx, func(ctx context.Context) (*TokenResponse, error) {
		return s.issuer.Refresh(ctx, refreshToken)
	})
	if err != nil {
		ae := coerceAuthError(err)
		s.expire(ctx, epoch, ae)
		return refreshResult{err: ae}
	}

	if !s.applyRefresh(ctx, resp, epoch) {
		return refreshResult{err: errSessionClosed()}
	}
	return refreshResult{token: resp}
}

// applyRefresh installs a successful refresh outcome unless the session
// epoch moved on (logout or re-login) while the attempt was in flight.
func (s *SessionManager) applyRefresh(ctx context.Context, resp *TokenResponse, epoch uint64) bool {
	issuedAt, expiresAt, err := tokenTimes(resp, s.now())
	if err != nil {
		s.expire(ctx, epoch, coerceAuthError(err))
		return false
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("discarding stale refresh result")
		return false
	}

	s.status = StatusAuthenticated
	s.accessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		s.refreshToken = resp.RefreshToken
	}
	s.issuedAt = issuedAt
	s.expiresAt = expiresAt
	s.lastErr = nil
	rec := Record{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		User:         s.user,
	}
	s.mu.Unlock()

	s.persist(ctx, rec)
	s.armScheduler(issuedAt, expiresAt)
	s.notify()
	return true
}

// expire handles a terminal refresh failure: the session is cleared exactly
// as if the user had logged out, and must be re-authenticated.
func (s *SessionManager) expire(ctx context.Context, epoch uint64, ae *AuthError) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("discarding stale refresh failure")
		return
	}

	s.status = StatusExpired
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.issuedAt = time.Time{}
	s.expiresAt = time.Time{}
	s.lastErr = ae
	s.mu.Unlock()

	s.sched.Disarm()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("credential store clear failed", "err", err)
	}
	s.logger.Warn("session expired", "category", ae.Category, "code", ae.Code)
	s.notify()
}

// onTimer is the proactive renewal path. It shares the reactive path's
// coordinator, so a timer firing while a caller-triggered refresh is in
// flight joins it instead of starting a second one.
func (s *SessionManager) onTimer() {
	s.mu.Lock()
	if s.status != StatusAuthenticated {
		s.mu.Unlock()
		return
	}
	refreshToken := s.refreshToken
	epoch := s.epoch
	s.status = StatusRefreshing
	s.mu.Unlock()
	s.notify()

	res := s.joinRefresh(context.Background(), refreshToken, epoch)
	if res.err != nil {
		s.logger.Warn("scheduled token renewal failed", "err", res.err)
	}
}

func (s *SessionManager) armScheduler(issuedAt, expiresAt time.Time) {
	lifetime := expiresAt.Sub(issuedAt)
	renewAt := expiresAt.Add(-s.marginFor(lifetime))
	s.sched.Arm(renewAt.Sub(s.now()), s.onTimer)
}

func (s *SessionManager) renewAtLocked() time.Time {
	lifetime := s.expiresAt.Sub(s.issuedAt)
	return s.expiresAt.Add(-s.marginFor(lifetime))
}

func (s *SessionManager) marginFor(lifetime time.Duration) time.Duration {
	if s.margin > 0 {
		return s.margin
	}
	if lifetime <= 0 {
		return 0
	}
	return time.Duration(float64(lifetime) * s.marginFraction)
}

// ----------------------------------------------------------------------------
// Shared plumbing
// ----------------------------------------------------------------------------

// withRetries runs call, transparently retrying retryable failures with
// jittered exponential backoff up to the policy's attempt bound. Terminal
// failures and exhausted budgets surface the last error.
func (s *SessionManager) withRetries(ctx context.Context, call func(context.Context) (*TokenResponse, error)) (*TokenResponse, error) {
	// Downstream clients log through the session's logger.
	ctx = slogx.WithContext(ctx, s.logger)

	for attempt := 0; ; attempt++ {
		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}

		ae, ok := AsAuthError(err)
		if !ok || !ae.Retryable || attempt+1 >= s.retry.MaxAttempts {
			return nil, err
		}

		delay := s.retry.Delay(attempt, ae.RetryAfter)
		s.logger.Warn("auth call failed, retrying",
			"category", ae.Category,
			"attempt", attempt+1,
			"delay", delay,
		)
		if serr := sleep(ctx, delay); serr != nil {
			return nil, err
		}
	}
}

// persist writes the record through to the credential store. Store failures
// degrade the session to in-memory only and are never surfaced.
func (s *SessionManager) persist(ctx context.Context, rec Record) {
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Warn("credential store save failed, continuing in memory", "err", err)
	}
}

func (s *SessionManager) setError(ae *AuthError) {
	s.mu.Lock()
	s.lastErr = ae
	s.mu.Unlock()
	s.notify()
}

func coerceAuthError(err error) *AuthError {
	if ae, ok := AsAuthError(err); ok {
		return ae
	}
	return &AuthError{
		Category: CategoryUnknown,
		Severity: SeverityMedium,
		Code:     CodeUnknownError,
		Message:  "Something unexpected went wrong.",
		cause:    err,
	}
}
