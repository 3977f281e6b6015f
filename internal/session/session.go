// Package session binds the signed-in identity, the audio graph, and the
// persistence gateway: gains load when the equalizer session attaches and
// snapshot back to the store when it detaches.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/marselab/equalizerd/internal/engine"
	"github.com/marselab/equalizerd/internal/eq"
	"github.com/marselab/equalizerd/internal/identity"
	"github.com/marselab/equalizerd/internal/store"
)

// Session wires one identity to the engine's filter chains. Persistence is
// snapshot-on-exit: nothing is written while sliders move.
type Session struct {
	ids *identity.Manager
	eng *engine.Engine
	gw  *store.Gateway
	log *zap.SugaredLogger
}

// New creates the session binder.
func New(ids *identity.Manager, eng *engine.Engine, gw *store.Gateway, log *zap.SugaredLogger) *Session {
	return &Session{ids: ids, eng: eng, gw: gw, log: log}
}

// Attach is the view-enter path: load the identity's saved vector, split it
// onto both chains. An absent vector resets every band to its default, so a
// fresh account never inherits the previous session's gains. Any other
// failure leaves the chains untouched and is returned for retry.
func (s *Session) Attach(ctx context.Context) error {
	u := s.ids.Current()
	if u == nil {
		return identity.ErrNotSignedIn
	}

	v, err := s.gw.Load(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		u.Gains = nil
		if err := s.eng.ApplyVector(eq.Flat()); err != nil {
			return fmt.Errorf("session attach: %w", err)
		}
		s.log.Infow("no saved gains, using defaults", "user", u.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("session attach: %w", err)
	}

	if err := s.eng.ApplyVector(v); err != nil {
		return fmt.Errorf("session attach: %w", err)
	}
	u.Gains = v
	s.log.Infow("gains restored", "user", u.ID)
	return nil
}

// Detach is the view-exit path: merge the chains' current gains, store the
// vector on the identity, and request an asynchronous save.
func (s *Session) Detach() error {
	u := s.ids.Current()
	if u == nil {
		return identity.ErrNotSignedIn
	}

	v := s.eng.Gains()
	u.Gains = v
	s.gw.SaveAsync(u.ID, v)
	s.log.Infow("gains snapshot requested", "user", u.ID)
	return nil
}

// Coordinator is the single screen owner: it consumes the identity
// manager's transition callback instead of a broadcast notification.
type Coordinator struct {
	log *zap.SugaredLogger

	mu     sync.Mutex
	screen identity.Screen
}

// NewCoordinator starts on the auth screen.
func NewCoordinator(log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{log: log, screen: identity.ScreenAuth}
}

// HandleTransition is registered with identity.Manager.SetTransitionFunc.
func (c *Coordinator) HandleTransition(s identity.Screen) {
	c.mu.Lock()
	c.screen = s
	c.mu.Unlock()
	c.log.Infow("screen switched", "screen", s)
}

// Screen returns the active screen.
func (c *Coordinator) Screen() identity.Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen
}
