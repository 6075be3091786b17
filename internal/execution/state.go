// internal/execution/state.go
package execution

import (
	"fmt"
	"time"

	"github.com/rovshanmuradov/swap-router/internal/types"
)

// Transition is one recorded state change of an execution.
type Transition struct {
	From types.TxStatus
	To   types.TxStatus
	At   time.Time
	// Kind is set when the transition is a failure.
	Kind types.ErrorKind
}

var allowed = map[types.TxStatus][]types.TxStatus{
	types.TxBuilt:     {types.TxSigned, types.TxFailed},
	types.TxSigned:    {types.TxSubmitted, types.TxFailed},
	types.TxSubmitted: {types.TxConfirmed, types.TxFailed},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// Confirmed and failed are terminal.
func CanTransition(from, to types.TxStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine tracks one transaction through its lifecycle.
type machine struct {
	state   types.TxStatus
	history []Transition
	now     func() time.Time
}

func newMachine(now func() time.Time) *machine {
	return &machine{state: types.TxBuilt, now: now}
}

func (m *machine) move(to types.TxStatus, kind types.ErrorKind) error {
	if !CanTransition(m.state, to) {
		return fmt.Errorf("illegal transition %s -> %s", m.state, to)
	}
	m.history = append(m.history, Transition{From: m.state, To: to, At: m.now(), Kind: kind})
	m.state = to
	return nil
}
