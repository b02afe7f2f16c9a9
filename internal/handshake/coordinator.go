package handshake

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// The sign-in handshake races two delivery channels: a cross-window
// message from the provider callback page, and a bounded fallback poll
// of the shared token store. Whichever fires first resolves the state
// machine; the loser is cancelled so it cannot produce a late effect.

type State int

const (
	StateIdle State = iota
	StateAwaitingSurface
	StateAwaitingCredential
	StateResolved
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSurface:
		return "awaiting_surface"
	case StateAwaitingCredential:
		return "awaiting_credential"
	case StateResolved:
		return "resolved"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type Role string

const (
	RoleController Role = "controller"
	RoleHost       Role = "host"
)

// Destination returns the dashboard view for the role.
func (r Role) Destination() string {
	if r == RoleHost {
		return "/dashboards/host/host-dashboard.html"
	}
	return "/dashboards/controller/controller-dashboard.html"
}

var (
	ErrSurfaceBlocked = errors.New("sign-in window could not be opened")
	ErrTimedOut       = errors.New("sign-in timed out")
	ErrCancelled      = errors.New("sign-in cancelled")
)

// Message is a cross-window credential delivery. Only AUTH_SUCCESS
// payloads from trusted origins are acted upon.
type Message struct {
	Origin string
	Type   string
	Token  string
}

const MessageTypeAuthSuccess = "AUTH_SUCCESS"

// SurfaceOpener opens the independent top-level sign-in surface.
type SurfaceOpener interface {
	Open(ctx context.Context, url string) error
}

// TokenStore is the shared persisted store both the callback surface
// and the fallback poll read and write.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
}

// Navigator moves the caller's view to the role destination after a
// resolved handshake.
type Navigator interface {
	Navigate(dest string) error
}

type Config struct {
	ServerBaseURL  string
	TrustedOrigins []string
	// ReceiverURL, when set, rides along on the sign-in URL as the
	// receiver parameter; the callback page posts the credential back
	// to it. Used by callers with no window to receive postMessage.
	ReceiverURL string
	Timeout     time.Duration
	GraceDelay  time.Duration
}

type Coordinator struct {
	cfg       Config
	opener    SurfaceOpener
	store     TokenStore
	navigator Navigator

	mu       sync.Mutex
	state    State
	messages chan Message
}

func NewCoordinator(cfg Config, opener SurfaceOpener, store TokenStore, navigator Navigator) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.GraceDelay < 0 {
		cfg.GraceDelay = 0
	}
	return &Coordinator{
		cfg:       cfg,
		opener:    opener,
		store:     store,
		navigator: navigator,
		state:     StateIdle,
		messages:  make(chan Message, 4),
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) terminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateResolved || c.state == StateTimedOut || c.state == StateCancelled
}

// Deliver hands a cross-window message to the coordinator. Messages
// arriving after the machine reached a terminal state are dropped,
// which is what makes a duplicate AUTH_SUCCESS a no-op.
func (c *Coordinator) Deliver(msg Message) {
	if c.terminal() {
		return
	}
	select {
	case c.messages <- msg:
	default:
	}
}

// Run drives the handshake to a terminal state and returns the
// credential on success.
func (c *Coordinator) Run(ctx context.Context, role Role) (string, error) {
	c.setState(StateAwaitingSurface)
	surface := c.cfg.ServerBaseURL + "/auth/google?role=" + string(role)
	if c.cfg.ReceiverURL != "" {
		surface += "&receiver=" + url.QueryEscape(c.cfg.ReceiverURL)
	}
	if err := c.opener.Open(ctx, surface); err != nil {
		c.setState(StateIdle)
		return "", ErrSurfaceBlocked
	}
	c.setState(StateAwaitingCredential)

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.setState(StateCancelled)
			return "", ErrCancelled
		case msg := <-c.messages:
			if !c.accepts(msg) {
				continue
			}
			// Winning channel: the timer is stopped before any
			// further effect so it cannot fire after resolution.
			timer.Stop()
			return c.resolve(ctx, role, msg.Token)
		case <-timer.C:
			token, err := c.store.Load()
			if err == nil && token != "" {
				return c.resolve(ctx, role, token)
			}
			c.setState(StateTimedOut)
			return "", ErrTimedOut
		}
	}
}

func (c *Coordinator) accepts(msg Message) bool {
	if msg.Type != MessageTypeAuthSuccess || msg.Token == "" {
		return false
	}
	for _, origin := range c.cfg.TrustedOrigins {
		if msg.Origin == origin {
			return true
		}
	}
	return false
}

func (c *Coordinator) resolve(ctx context.Context, role Role, token string) (string, error) {
	// Persistence is best effort: the credential is still usable
	// in-memory even if the shared store write fails.
	if err := c.store.Save(token); err != nil {
		slog.Warn("persist credential", "error", err)
	}
	c.setState(StateResolved)

	if c.cfg.GraceDelay > 0 {
		select {
		case <-ctx.Done():
			return token, nil
		case <-time.After(c.cfg.GraceDelay):
		}
	}
	if c.navigator != nil {
		_ = c.navigator.Navigate(role.Destination())
	}
	return token, nil
}
