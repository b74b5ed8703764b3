package domain

import "github.com/pkg/errors"

// Invariant violations. These indicate a programming or persistence
// corruption defect: the cycle must abort without applying further intents,
// never repair silently.
var (
	ErrNegativeCash      = errors.New("invariant violation: negative cash")
	ErrDuplicatePosition = errors.New("invariant violation: more than one active position")
	ErrPeakRegression    = errors.New("invariant violation: peak equity decreased")
)
