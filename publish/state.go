package publish

import "fmt"

// State is a step of a publish attempt.
//
//	Idle -> Encrypting (paid only) -> Uploading -> TransactionBuilt -> Submitted -> Confirmed
//
// Any step may end in Failed.
type State int

const (
	Idle State = iota
	Encrypting
	Uploading
	TransactionBuilt
	Submitted
	Confirmed
	Failed
)

var stateNames = [...]string{
	Idle:             "Idle",
	Encrypting:       "Encrypting",
	Uploading:        "Uploading",
	TransactionBuilt: "TransactionBuilt",
	Submitted:        "Submitted",
	Confirmed:        "Confirmed",
	Failed:           "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Confirmed || s == Failed }

// Observer is told about every transition of an attempt.
type Observer interface {
	Transition(a *Attempt, from, to State)
}

type ObserverFunc func(a *Attempt, from, to State)

func (f ObserverFunc) Transition(a *Attempt, from, to State) { f(a, from, to) }
