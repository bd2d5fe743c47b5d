package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodav/pkg/dav"
)

// Config bounds lock lifetimes.
type Config struct {
	// DefaultTimeout applies when the client requests none
	DefaultTimeout time.Duration `mapstructure:"default_timeout" validate:"gte=0" yaml:"default_timeout"`

	// MaxTimeout caps every granted timeout (0 means no cap)
	MaxTimeout time.Duration `mapstructure:"max_timeout" validate:"gte=0" yaml:"max_timeout"`

	// AllowInfiniteTimeout honours "Timeout: Infinite" requests; otherwise
	// they are granted MaxTimeout
	AllowInfiniteTimeout bool `mapstructure:"allow_infinite_timeout" yaml:"allow_infinite_timeout"`
}

// DefaultConfig returns the lock limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 10 * time.Minute,
		MaxTimeout:     time.Hour,
	}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithTokenGenerator replaces the token source.
func WithTokenGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newToken = gen
	}
}

// Manager holds the locks of one mount.
//
// Thread Safety:
// Every method runs under a single mutex, so conflict detection and lock
// creation are atomic with respect to each other.
type Manager struct {
	mu       sync.Mutex
	locks    map[string]Lock
	config   Config
	now      func() time.Time
	newToken func() string
}

// NewManager creates an empty lock manager.
func NewManager(config Config, opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]Lock),
		config: config,
		now:    time.Now,
		newToken: func() string {
			return "urn:uuid:" + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// sweepLocked drops expired locks. Caller must hold m.mu.
func (m *Manager) sweepLocked(now time.Time) {
	for token, l := range m.locks {
		if l.expired(now) {
			delete(m.locks, token)
		}
	}
}

// grant resolves a requested timeout against the configured limits.
func (m *Manager) grant(requested time.Duration) time.Duration {
	if requested != Infinite && requested <= 0 {
		requested = m.config.DefaultTimeout
		if requested <= 0 {
			requested = Infinite
		}
	}

	if requested == Infinite {
		switch {
		case m.config.AllowInfiniteTimeout:
			return Infinite
		case m.config.MaxTimeout > 0:
			return m.config.MaxTimeout
		case m.config.DefaultTimeout > 0:
			return m.config.DefaultTimeout
		}
		return Infinite
	}

	if m.config.MaxTimeout > 0 && requested > m.config.MaxTimeout {
		return m.config.MaxTimeout
	}
	return requested
}

func (m *Manager) expiry(now time.Time, timeout time.Duration) time.Time {
	if timeout == Infinite {
		return time.Time{}
	}
	return now.Add(timeout)
}

// Acquire grants a new lock.
//
// Parameters:
//   - ctx: Context for cancellation
//   - d: Lock request; Root must be a clean tree path
//
// Returns:
//   - Lock: The granted lock, with its effective timeout
//   - error: dav.ErrLocked naming the conflicting lock's root, or
//     dav.ErrBadRequest for an unsupported depth
func (m *Manager) Acquire(ctx context.Context, d Details) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return Lock{}, err
	}
	if d.Depth != dav.DepthZero && d.Depth != dav.DepthInfinity {
		return Lock{}, dav.NewBadRequestError("lock depth must be 0 or infinity")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)

	for _, existing := range m.sortedLocked() {
		if existing.conflictsWith(d) {
			return Lock{}, dav.NewLockedError(existing.Root)
		}
	}

	d.Timeout = m.grant(d.Timeout)
	l := Lock{
		Details: d,
		Token:   m.newToken(),
		Expires: m.expiry(now, d.Timeout),
	}
	m.locks[l.Token] = l
	return l, nil
}

// Refresh extends a live lock.
//
// Returns dav.ErrPreconditionFailed if the token names no live lock.
func (m *Manager) Refresh(ctx context.Context, token string, timeout time.Duration) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return Lock{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)

	l, ok := m.locks[token]
	if !ok {
		return Lock{}, dav.NewError(dav.ErrPreconditionFailed, "no such lock", token)
	}

	l.Timeout = m.grant(timeout)
	l.Expires = m.expiry(now, l.Timeout)
	m.locks[token] = l
	return l, nil
}

// Release destroys a lock.
//
// Returns dav.ErrConflict if the token names no live lock.
func (m *Manager) Release(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())

	if _, ok := m.locks[token]; !ok {
		return dav.NewConflictError("no such lock", token)
	}
	delete(m.locks, token)
	return nil
}

// Lookup returns the live lock identified by token.
func (m *Manager) Lookup(ctx context.Context, token string) (Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())
	l, ok := m.locks[token]
	return l, ok
}

// Discover returns the live locks covering p, ordered by root then token.
func (m *Manager) Discover(ctx context.Context, p string) []Lock {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())

	var result []Lock
	for _, l := range m.sortedLocked() {
		if l.Covers(p) {
			result = append(result, l)
		}
	}
	return result
}

// Conflicts returns the roots of the locks that forbid modifying p without
// further tokens.
//
// The applicable locks are those covering p and, when recursive is true,
// those rooted below p. They are grouped by root; a group is satisfied when
// at least one of its tokens was presented.
func (m *Manager) Conflicts(ctx context.Context, p string, recursive bool, tokens []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())

	presented := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		presented[t] = true
	}

	satisfied := make(map[string]bool)
	applicable := make(map[string]bool)
	for _, l := range m.locks {
		if !l.Covers(p) && !(recursive && dav.IsAncestor(p, l.Root)) {
			continue
		}
		applicable[l.Root] = true
		if presented[l.Token] {
			satisfied[l.Root] = true
		}
	}

	var roots []string
	for root := range applicable {
		if !satisfied[root] {
			roots = append(roots, root)
		}
	}
	sort.Strings(roots)
	return roots
}

// Check returns dav.ErrLocked if p may not be modified with the presented
// tokens. See Conflicts for the rules.
func (m *Manager) Check(ctx context.Context, p string, recursive bool, tokens []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if roots := m.Conflicts(ctx, p, recursive, tokens); len(roots) > 0 {
		return dav.NewLockedError(roots[0])
	}
	return nil
}

// Purge drops every lock rooted at or below p and returns how many were
// dropped.
func (m *Manager) Purge(ctx context.Context, p string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for token, l := range m.locks {
		if dav.IsWithin(p, l.Root) {
			delete(m.locks, token)
			count++
		}
	}
	return count
}

// Count returns the number of live locks.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())
	return len(m.locks)
}

// sortedLocked returns the locks ordered by root then token. Caller must hold
// m.mu.
func (m *Manager) sortedLocked() []Lock {
	result := make([]Lock, 0, len(m.locks))
	for _, l := range m.locks {
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Root != result[j].Root {
			return result[i].Root < result[j].Root
		}
		return result[i].Token < result[j].Token
	})
	return result
}
