package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

// DefaultLead is how long before expiry the access token is refreshed.
const DefaultLead = 3 * time.Second

// State is the lifecycle state of a [Manager].
type State int

const (
	Unauthenticated State = iota
	Authorizing
	Fresh
	NearExpiry
	Refreshing
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authorizing:
		return "authorizing"
	case Fresh:
		return "authenticated-fresh"
	case NearExpiry:
		return "authenticated-near-expiry"
	case Refreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Authenticated reports whether a token is held in state s.
func (s State) Authenticated() bool {
	return s == Fresh || s == NearExpiry || s == Refreshing
}

// Authorizer turns an OAuth redirect into a token grant.
type Authorizer interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, redirectURL string) (models.TokenGrant, error)
}

// Refresher trades a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenGrant, error)
}

// ConsentRequiredError is returned by [Manager.Login] when the user has to grant
// access in the browser. URL is the consent page.
type ConsentRequiredError struct {
	URL string
	Err error
}

func (e *ConsentRequiredError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spotify consent required: %v", e.Err)
	}
	return "spotify consent required"
}

func (e *ConsentRequiredError) Unwrap() error { return e.Err }

// Timer is a scheduled call that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d.
type Scheduler func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Options configures a [Manager]. Zero values use defaults.
type Options struct {
	Lead       time.Duration
	OAuthState string
	Now        func() time.Time
	Schedule   Scheduler
	Logger     *log.Logger
}

// Manager owns the cached token record and its scheduled refresh.
type Manager struct {
	mu sync.Mutex

	store     Store
	auth      Authorizer
	refresher Refresher

	record *models.TokenRecord
	state  State
	err    error

	timer  Timer
	cancel context.CancelFunc
	gen    int

	lead       time.Duration
	oauthState string
	now        func() time.Time
	schedule   Scheduler
	logger     *log.Logger
}

// NewManager loads the cached record from store. A record that has not expired
// arms the refresh task without any network call; an expired one is ignored.
func NewManager(store Store, auth Authorizer, refresher Refresher, opts Options) (*Manager, error) {
	m := &Manager{
		store:      store,
		auth:       auth,
		refresher:  refresher,
		lead:       opts.Lead,
		oauthState: opts.OAuthState,
		now:        opts.Now,
		schedule:   opts.Schedule,
		logger:     opts.Logger,
	}
	if m.lead <= 0 {
		m.lead = DefaultLead
	}
	if m.oauthState == "" {
		m.oauthState = shared.GenerateID()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.schedule == nil {
		m.schedule = afterFunc
	}
	if m.logger == nil {
		m.logger = shared.NewLogger(nil)
	}
	m.logger = shared.WithLogger(m.logger, "component", "token")

	record, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load token record: %w", err)
	}

	if record != nil && record.Live(m.now()) {
		m.mu.Lock()
		m.record = record
		m.state = Fresh
		m.arm()
		m.mu.Unlock()
		m.logger.Debug("restored cached token", "expires_at", record.Expiry())
	}

	return m, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error of the last failed refresh, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Record returns a copy of the held token record.
func (m *Manager) Record() (models.TokenRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return models.TokenRecord{}, false
	}
	return *m.record, true
}

// AccessToken returns the held access token.
func (m *Manager) AccessToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil || !m.state.Authenticated() {
		return "", shared.ErrNotAuthenticated
	}
	return m.record.AccessToken, nil
}

// ConsentURL returns the Spotify consent page for this manager's OAuth state.
func (m *Manager) ConsentURL() string {
	return m.auth.AuthURL(m.oauthState)
}

// Login completes authorization with the redirect URL Spotify sent the user back to.
//
// It is a no-op when a token is already held. An empty redirectURL or a failed
// exchange yields a [ConsentRequiredError] pointing at the consent page.
func (m *Manager) Login(ctx context.Context, redirectURL string) error {
	m.mu.Lock()
	if m.state.Authenticated() {
		m.mu.Unlock()
		return nil
	}
	m.state = Authorizing
	m.mu.Unlock()

	if redirectURL == "" {
		m.setState(Unauthenticated)
		return &ConsentRequiredError{URL: m.ConsentURL()}
	}

	grant, err := m.auth.Exchange(ctx, redirectURL)
	if err != nil {
		m.setState(Unauthenticated)
		m.logger.Warn("authorization failed", "error", err)
		return &ConsentRequiredError{URL: m.ConsentURL(), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.apply(grant); err != nil {
		m.state = Unauthenticated
		m.record = nil
		return err
	}
	m.err = nil
	m.logger.Info("spotify authorized", "expires_at", m.record.Expiry())
	return nil
}

// Refresh refreshes the access token now and re-arms the scheduled refresh.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	return m.refresh(ctx, gen)
}

// Stop cancels the scheduled refresh and any refresh in flight.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disarm()
}

// Logout stops the manager and forgets the in-memory token. The persisted record is kept.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disarm()
	m.record = nil
	m.err = nil
	m.state = Unauthenticated
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// refresh runs one refresh cycle unless the manager was stopped since gen.
func (m *Manager) refresh(ctx context.Context, gen int) error {
	m.mu.Lock()
	if gen != m.gen || m.record == nil {
		m.mu.Unlock()
		return shared.ErrNotAuthenticated
	}
	if m.record.RefreshToken == "" {
		m.state = NearExpiry
		m.err = shared.ErrNoRefreshToken
		m.mu.Unlock()
		m.logger.Error("cannot refresh token", "error", shared.ErrNoRefreshToken)
		return shared.ErrNoRefreshToken
	}
	m.state = Refreshing
	refreshToken := m.record.RefreshToken
	m.mu.Unlock()

	grant, err := m.refresher.Refresh(ctx, refreshToken)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return context.Canceled
	}

	if err != nil {
		m.state = NearExpiry
		m.err = fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		m.logger.Error("failed to refresh token", "error", err)
		return m.err
	}

	if err := m.apply(grant); err != nil {
		m.state = NearExpiry
		m.err = err
		return err
	}
	m.err = nil
	m.logger.Debug("token refreshed", "expires_at", m.record.Expiry())
	return nil
}

// apply stores a new grant, persists it and re-arms the refresh task. Callers hold m.mu.
func (m *Manager) apply(grant models.TokenGrant) error {
	previous := ""
	if m.record != nil {
		previous = m.record.RefreshToken
	}

	record := grant.Record(m.now(), previous)
	if err := m.store.Save(record); err != nil {
		m.logger.Error("failed to persist token record", "error", err)
		return fmt.Errorf("failed to persist token record: %w", err)
	}

	m.record = &record
	m.state = Fresh
	m.arm()
	return nil
}

// arm schedules the refresh at expiry minus the lead time. Callers hold m.mu.
func (m *Manager) arm() {
	m.disarm()

	delay := m.record.Expiry().Sub(m.now()) - m.lead
	if delay < 0 {
		delay = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	gen := m.gen
	m.cancel = cancel
	m.timer = m.schedule(delay, func() {
		_ = m.refresh(ctx, gen)
	})
}

// disarm stops the pending timer and invalidates callbacks already fired. Callers hold m.mu.
func (m *Manager) disarm() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
}
