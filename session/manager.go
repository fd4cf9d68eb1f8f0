package session

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/api"
)

// Navigator moves the user to an application path.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Navigate(ctx context.Context, path string) {
	f(ctx, path)
}

// Backend is the part of api.Client the manager drives.
type Backend interface {
	Me(ctx context.Context) (api.Member, error)
	Logout(ctx context.Context) error
}

// Config names the profile key and navigation targets. Empty fields take defaults.
type Config struct {
	Key            string
	LoginPath      string
	HomePath       string
	LoginErrorPath string
}

func (c Config) withDefaults() Config {
	if c.Key == "" {
		c.Key = "default"
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.HomePath == "" {
		c.HomePath = "/"
	}
	if c.LoginErrorPath == "" {
		c.LoginErrorPath = "/auth/login?error=true"
	}
	return c
}

// Manager owns the signed-in state of one session key.
type Manager struct {
	cfg     Config
	store   Store
	backend Backend
	nav     Navigator
	logger  *log.Logger

	terminations atomic.Uint64
}

// NewManager wires a Manager. A nil Navigator discards navigation; a nil
// logger uses log.Default().
func NewManager(store Store, backend Backend, nav Navigator, cfg Config, logger *log.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store required")
	}
	if backend == nil {
		return nil, errors.New("session backend required")
	}
	if nav == nil {
		nav = NavigatorFunc(func(context.Context, string) {})
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		cfg:     cfg.withDefaults(),
		store:   store,
		backend: backend,
		nav:     nav,
		logger:  logger,
	}, nil
}

// OnSessionTerminated clears the profile and sends the user to the login page.
func (m *Manager) OnSessionTerminated(ctx context.Context, t goAuthClient.SessionTermination) {
	m.terminations.Add(1)

	if err := m.store.Clear(ctx, m.cfg.Key); err != nil {
		m.logger.Printf("session: clear profile after termination: %v", err)
	}

	target := t.LoginPath
	if target == "" {
		target = m.cfg.LoginPath
	}
	m.nav.Navigate(ctx, target)
}

// CompleteLogin runs after the OAuth callback set the credential cookies: it
// fetches the profile, stores it and navigates home. On failure it navigates
// to the login error page and returns the error.
func (m *Manager) CompleteLogin(ctx context.Context) (api.Member, error) {
	member, err := m.backend.Me(ctx)
	if err != nil {
		m.nav.Navigate(ctx, m.cfg.LoginErrorPath)
		return api.Member{}, err
	}
	if err := m.store.Save(ctx, m.cfg.Key, member); err != nil {
		m.nav.Navigate(ctx, m.cfg.LoginErrorPath)
		return api.Member{}, err
	}
	m.nav.Navigate(ctx, m.cfg.HomePath)
	return member, nil
}

// Logout ends the server session, then clears local state and navigates home.
// A failed server logout leaves local state untouched.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.backend.Logout(ctx); err != nil {
		return err
	}
	if err := m.store.Clear(ctx, m.cfg.Key); err != nil {
		return err
	}
	m.nav.Navigate(ctx, m.cfg.HomePath)
	return nil
}

// Current returns the stored profile or ErrNoProfile.
func (m *Manager) Current(ctx context.Context) (api.Member, error) {
	return m.store.Load(ctx, m.cfg.Key)
}

// LoggedIn reports whether a profile is stored. Store failures read as logged out.
func (m *Manager) LoggedIn(ctx context.Context) bool {
	_, err := m.store.Load(ctx, m.cfg.Key)
	return err == nil
}

// Terminations returns how many termination notifications were handled.
func (m *Manager) Terminations() uint64 {
	return m.terminations.Load()
}
