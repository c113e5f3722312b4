package comments

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Form is one comment form instance. Submissions on a Form are serialised:
// while one is in flight, further calls fail fast with ErrInFlight.
type Form struct {
	mu       sync.Mutex
	state    State
	lastUsed time.Time

	endpoint Endpoint
	logger   zerolog.Logger
}

// NewForm returns an Idle form that submits to ep.
func NewForm(ep Endpoint, logger zerolog.Logger) *Form {
	return &Form{endpoint: ep, logger: logger, lastUsed: time.Now()}
}

// State returns the current state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submit validates in and, when every required field is present, hands it
// to the endpoint. Validation failures return the field messages with no
// endpoint call and no state change. Endpoint failures move the form to
// Failed; the error is logged and returned so callers can pick a response,
// but the reader is never shown it.
func (f *Form) Submit(ctx context.Context, in Input) (FieldErrors, error) {
	f.mu.Lock()
	if f.state == Submitting {
		f.mu.Unlock()
		return nil, ErrInFlight
	}
	f.lastUsed = time.Now()
	if fe := Validate(in); fe != nil {
		f.mu.Unlock()
		return fe, nil
	}
	f.state = Submitting
	f.mu.Unlock()

	err := f.endpoint.Submit(ctx, in)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUsed = time.Now()
	if err != nil {
		f.state = Failed
		f.logger.Error().Err(err).Str("post", in.PostID).Msg("comment submission failed")
		return nil, err
	}
	f.state = Submitted
	return nil, nil
}

func (f *Form) idleSince(now time.Time) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Submitting {
		return 0, false
	}
	return now.Sub(f.lastUsed), true
}
