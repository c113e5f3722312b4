package comments

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry holds the live form instances of a server, keyed by browser
// session and post. Forms untouched for longer than the idle timeout are
// dropped by a background sweep.
type Registry struct {
	mu       sync.Mutex
	forms    map[string]*Form
	endpoint Endpoint
	logger   zerolog.Logger
	idle     time.Duration

	stop chan struct{}
	once sync.Once
}

// DefaultIdleTimeout is used when NewRegistry gets a non-positive timeout.
const DefaultIdleTimeout = 30 * time.Minute

// NewRegistry creates a Registry whose forms submit to ep.
func NewRegistry(ep Endpoint, idle time.Duration, logger zerolog.Logger) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	r := &Registry{
		forms:    make(map[string]*Form),
		endpoint: ep,
		logger:   logger,
		idle:     idle,
		stop:     make(chan struct{}),
	}
	go r.cleanup()
	return r
}

// Key builds the registry key for a session's form on a post.
func Key(sessionID, postID string) string {
	return sessionID + "/" + postID
}

// Form returns the form for key, creating an Idle one on first use.
func (r *Registry) Form(key string) *Form {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.forms[key]
	if !ok {
		f = NewForm(r.endpoint, r.logger)
		r.forms[key] = f
	}
	return f
}

// Len returns the number of live forms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

// Close stops the background sweep.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.stop) })
}

func (r *Registry) cleanup() {
	ticker := time.NewTicker(r.idle)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.evict(now)
		}
	}
}

// evict drops forms idle for at least the timeout. Forms with a submission
// in flight are kept.
func (r *Registry) evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, f := range r.forms {
		if d, ok := f.idleSince(now); ok && d >= r.idle {
			delete(r.forms, key)
			n++
		}
	}
	return n
}
