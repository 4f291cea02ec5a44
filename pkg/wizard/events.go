package wizard

import (
	"github.com/goliatone/go-formwizard/pkg/submission"
)

// Phase is the navigator state. Every request starts and ends in PhaseIdle;
// the intermediate phases are reported to listeners as they happen.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseBlocked
	PhaseAdvancing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseBlocked:
		return "blocked"
	case PhaseAdvancing:
		return "advancing"
	default:
		return "unknown"
	}
}

// OutcomeKind classifies the result of RequestAdvance.
type OutcomeKind int

const (
	// Advanced means the step validated and the wizard moved forward.
	Advanced OutcomeKind = iota
	// Blocked means validation failed; Outcome.Errors lists the messages.
	Blocked
	// Submitted means the final step validated and the sink accepted it.
	Submitted
	// SubmitFailed means the sink could not be reached or rejected the
	// request. Form state is untouched.
	SubmitFailed
	// SubmitPending means a submission is already in flight and the request
	// was ignored.
	SubmitPending
)

func (k OutcomeKind) String() string {
	switch k {
	case Advanced:
		return "advanced"
	case Blocked:
		return "blocked"
	case Submitted:
		return "submitted"
	case SubmitFailed:
		return "submit_failed"
	case SubmitPending:
		return "submit_pending"
	default:
		return "unknown"
	}
}

// Outcome is the result of one RequestAdvance call.
type Outcome struct {
	Kind         OutcomeKind
	Step         int
	Errors       map[string]string
	Result       *submission.Result
	Confirmation string
	Message      string
	Err          error
}

// EventKind names the notifications sent to listeners.
type EventKind string

const (
	EventPhaseChanged EventKind = "phase_changed"
	EventStepChanged  EventKind = "step_changed"
	EventBlocked      EventKind = "blocked"
	EventSubmitting   EventKind = "submitting"
	EventSubmitted    EventKind = "submitted"
	EventSubmitFailed EventKind = "submit_failed"
	EventReset        EventKind = "reset"
)

// Event describes something that happened inside the wizard. Side effects
// such as toasts or redirects belong to listeners, not the engine.
type Event struct {
	Kind    EventKind
	Form    string
	Phase   Phase
	Step    int
	Errors  map[string]string
	Result  *submission.Result
	Message string
	Err     error
}

// Listener receives events after the wizard has released its lock, so it may
// call back into the wizard.
type Listener func(Event)
