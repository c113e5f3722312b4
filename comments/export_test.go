package comments

// reset returns a finished form to Idle. It is a no-op while submitting.
func (f *Form) reset() {
	f.mu.Lock()
	if f.state != Submitting {
		f.state = Idle
	}
	f.mu.Unlock()
}

// lookup returns the form for key without creating it.
func (r *Registry) lookup(key string) (*Form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.forms[key]
	return f, ok
}
