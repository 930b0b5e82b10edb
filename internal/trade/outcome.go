package trade

type State string

const (
	Skipped     State = "skipped"
	Filled      State = "filled"
	Unconfirmed State = "unconfirmed"
	Rejected    State = "rejected"
	Failed      State = "failed"
)

// Outcome is the terminal state of one trade action. Err is set for
// Unconfirmed, Rejected and Failed.
type Outcome struct {
	State      State
	Order      *Order
	Protective []Order
	Err        error
}

// Changed reports whether the action may have moved the position.
func (o Outcome) Changed() bool {
	return o.State == Filled || o.State == Unconfirmed
}
