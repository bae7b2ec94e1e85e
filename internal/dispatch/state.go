package dispatch

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is a step of the link pipeline.
type State int

const (
	AwaitingValidation State = iota
	AwaitingFormats
	AutoResolving
	AwaitingUserChoice
	Resolving
	Delivered
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingValidation:
		return "awaiting_validation"
	case AwaitingFormats:
		return "awaiting_formats"
	case AutoResolving:
		return "auto_resolving"
	case AwaitingUserChoice:
		return "awaiting_user_choice"
	case Resolving:
		return "resolving"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Delivered || s == Failed
}

var transitions = map[State][]State{
	AwaitingValidation: {AwaitingFormats},
	AwaitingFormats:    {AutoResolving, AwaitingUserChoice, Resolving},
	AutoResolving:      {Resolving},
	AwaitingUserChoice: {Resolving},
	Resolving:          {Delivered},
}

// CanTransition reports whether from → to is a legal step. Failed is
// reachable from every non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == Failed {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// request tracks one pass through the pipeline for logging.
type request struct {
	id     string
	state  State
	logger *zap.Logger
}

func newRequest(logger *zap.Logger, start State) *request {
	id := uuid.NewString()
	return &request{
		id:     id,
		state:  start,
		logger: logger.With(zap.String("request_id", id)),
	}
}

// to moves the request to next. An illegal step is a programming error and
// panics; serve turns the panic into the generic failure reply.
func (r *request) to(next State) {
	if !CanTransition(r.state, next) {
		panic(fmt.Sprintf("dispatch: illegal transition %s -> %s", r.state, next))
	}
	r.logger.Debug("state transition",
		zap.Stringer("from", r.state),
		zap.Stringer("to", next),
	)
	r.state = next
}
