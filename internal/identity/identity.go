// Package identity holds user accounts, sign-in flows, and the session
// transition callback consumed by the screen coordinator.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/marselab/equalizerd/internal/eq"
)

// Screen names the two top-level screens the shell switches between.
type Screen int

const (
	ScreenAuth Screen = iota
	ScreenMain
)

func (s Screen) String() string {
	if s == ScreenMain {
		return "main"
	}
	return "auth"
}

// TransitionFunc is the explicit session-transition callback: invoked with
// ScreenMain after a successful sign-in and ScreenAuth after sign-out.
type TransitionFunc func(Screen)

var (
	ErrInvalidCredentials = errors.New("identity: invalid email or password")
	ErrEmailTaken         = errors.New("identity: email already registered")
	ErrCancelled          = errors.New("identity: provider sign-in cancelled")
	ErrNotSignedIn        = errors.New("identity: no signed-in user")
)

// User is one account. The stable uuid ID is the persistence key; it never
// derives from the credential string. Gains is nil until the first save.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash []byte // empty for provider accounts
	Provider     string // "password" or "oauth"
	Subject      string // provider subject, set for oauth accounts
	Gains        eq.GainVector
	CreatedAt    time.Time
}

// Manager registers accounts, authenticates them, and tracks the current
// session. Explicitly constructed and injected, never a process global.
type Manager struct {
	log      *zap.SugaredLogger
	verifier *TokenVerifier // nil disables provider sign-in

	mu         sync.Mutex
	byEmail    map[string]*User
	bySubject  map[string]*User
	current    *User
	transition TransitionFunc
}

// NewManager creates an account manager. verifier may be nil when no OAuth
// provider is configured.
func NewManager(verifier *TokenVerifier, log *zap.SugaredLogger) *Manager {
	return &Manager{
		log:       log,
		verifier:  verifier,
		byEmail:   make(map[string]*User),
		bySubject: make(map[string]*User),
	}
}

// SetTransitionFunc registers the screen coordinator's callback.
func (m *Manager) SetTransitionFunc(fn TransitionFunc) {
	m.mu.Lock()
	m.transition = fn
	m.mu.Unlock()
}

// SignUp registers a new email/password account and signs it in.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.byEmail[email]; exists {
		m.mu.Unlock()
		return nil, ErrEmailTaken
	}
	u := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Provider:     "password",
		CreatedAt:    time.Now().UTC(),
	}
	m.byEmail[email] = u
	m.current = u
	fn := m.transition
	m.mu.Unlock()

	m.log.Infow("account created", "user", u.ID, "email", email)
	if fn != nil {
		fn(ScreenMain)
	}
	return u, nil
}

// SignIn authenticates an email/password account. Failures are non-fatal:
// the caller surfaces them and the user retries.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)

	m.mu.Lock()
	u, ok := m.byEmail[email]
	m.mu.Unlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	m.mu.Lock()
	m.current = u
	fn := m.transition
	m.mu.Unlock()

	m.log.Infow("signed in", "user", u.ID)
	if fn != nil {
		fn(ScreenMain)
	}
	return u, nil
}

// SignInWithToken authenticates an opaque provider token. An empty token is
// a cancelled provider flow and reported as such, informational only.
func (m *Manager) SignInWithToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrCancelled
	}
	if m.verifier == nil {
		return nil, errors.New("identity: no token verifier configured")
	}

	ident, err := m.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	u, ok := m.bySubject[ident.Subject]
	if !ok {
		u = &User{
			ID:        uuid.New(),
			Email:     normalizeEmail(ident.Email),
			Provider:  "oauth",
			Subject:   ident.Subject,
			CreatedAt: time.Now().UTC(),
		}
		m.bySubject[ident.Subject] = u
	}
	m.current = u
	fn := m.transition
	m.mu.Unlock()

	m.log.Infow("signed in via provider", "user", u.ID, "subject", ident.Subject)
	if fn != nil {
		fn(ScreenMain)
	}
	return u, nil
}

// SignOut clears the session and moves the shell back to the auth screen.
func (m *Manager) SignOut() {
	m.mu.Lock()
	u := m.current
	m.current = nil
	fn := m.transition
	m.mu.Unlock()

	if u != nil {
		m.log.Infow("signed out", "user", u.ID)
	}
	if fn != nil {
		fn(ScreenAuth)
	}
}

// Current returns the signed-in user, or nil.
func (m *Manager) Current() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
