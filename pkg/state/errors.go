package state

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPath        = errors.New("state: invalid path")
	ErrUnknownGroup       = errors.New("state: unknown repeating group")
	ErrIndexOutOfRange    = errors.New("state: item index out of range")
	ErrStepOutOfRange     = errors.New("state: step out of range")
	ErrMinimumCardinality = errors.New("state: minimum cardinality violation")
	ErrMaximumCardinality = errors.New("state: maximum cardinality reached")
)

// CardinalityError is returned when adding or removing an item would break a
// group's declared bounds. The store is left unchanged.
type CardinalityError struct {
	Group string
	Size  int
	Limit int
	err   error
}

func (e *CardinalityError) Error() string {
	if errors.Is(e.err, ErrMaximumCardinality) {
		return fmt.Sprintf("state: group %q allows at most %d item(s)", e.Group, e.Limit)
	}
	return fmt.Sprintf("state: group %q requires at least %d item(s)", e.Group, e.Limit)
}

func (e *CardinalityError) Unwrap() error { return e.err }
