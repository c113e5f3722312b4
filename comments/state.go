package comments

// State is the lifecycle of one comment form instance.
type State int

const (
	Idle State = iota
	Submitting
	Submitted
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ShowForm reports whether the form is displayed. Only Submitted replaces
// it with the acknowledgment panel.
func (s State) ShowForm() bool {
	return s != Submitted
}
