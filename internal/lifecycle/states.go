// Package lifecycle owns the per-user phishing-simulation compliance state
// machine: validated transitions, auto-chaining, and a full audit trail.
package lifecycle

// State is a user's position in the simulated-phishing lifecycle. CLEAN is
// the implicit initial state; COMPLIANT is recurrent, not absorbing.
type State string

const (
	StateClean             State = "CLEAN"
	StatePhishSent         State = "PHISH_SENT"
	StatePhishClicked      State = "PHISH_CLICKED"
	StateMicroRequired     State = "MICRO_TRAINING_REQUIRED"
	StateMicroCompleted    State = "MICRO_TRAINING_COMPLETED"
	StateMandatoryRequired State = "MANDATORY_TRAINING_REQUIRED"
	StateCompliant         State = "COMPLIANT"
)

// States lists every valid state, in lifecycle order.
var States = []State{
	StateClean,
	StatePhishSent,
	StatePhishClicked,
	StateMicroRequired,
	StateMicroCompleted,
	StateMandatoryRequired,
	StateCompliant,
}

// Trigger is an external or chained event that may move a user between states.
type Trigger string

const (
	TriggerEmailSent          Trigger = "email_sent"
	TriggerPhishClicked       Trigger = "phish_clicked"
	TriggerPhishReported      Trigger = "phish_reported"
	TriggerPhishIgnored       Trigger = "phish_ignored"
	TriggerMicroAssigned      Trigger = "micro_training_assigned"
	TriggerMicroCompleted     Trigger = "micro_completed"
	TriggerMandatoryAssigned  Trigger = "mandatory_assigned"
	TriggerMandatoryCompleted Trigger = "mandatory_completed"
)

// Triggers lists every trigger the machine understands.
var Triggers = []Trigger{
	TriggerEmailSent,
	TriggerPhishClicked,
	TriggerPhishReported,
	TriggerPhishIgnored,
	TriggerMicroAssigned,
	TriggerMicroCompleted,
	TriggerMandatoryAssigned,
	TriggerMandatoryCompleted,
}

// KnownTrigger reports whether t is a trigger the machine understands,
// regardless of whether any state currently accepts it.
func KnownTrigger(t Trigger) bool {
	for _, known := range Triggers {
		if t == known {
			return true
		}
	}
	return false
}

type transitionKey struct {
	from    State
	trigger Trigger
}

// transitions is the full (state, trigger) → state table. The table is
// acyclic under chained triggers, so auto-chaining always terminates.
var transitions = map[transitionKey]State{
	{StateClean, TriggerEmailSent}:                      StatePhishSent,
	{StatePhishSent, TriggerPhishClicked}:               StatePhishClicked,
	{StatePhishSent, TriggerPhishReported}:              StateCompliant,
	{StatePhishSent, TriggerPhishIgnored}:               StateCompliant,
	{StatePhishClicked, TriggerMicroAssigned}:           StateMicroRequired,
	{StateMicroRequired, TriggerMicroCompleted}:         StateMicroCompleted,
	{StateMicroCompleted, TriggerMandatoryAssigned}:     StateMandatoryRequired,
	{StateMandatoryRequired, TriggerMandatoryCompleted}: StateCompliant,
	// Re-phishing compliant users starts a new cycle.
	{StateCompliant, TriggerEmailSent}: StatePhishSent,
}

// chained maps a just-entered state to the trigger the machine immediately
// self-applies, with its synthetic audit reason.
var chained = map[State]struct {
	trigger Trigger
	reason  string
}{
	StatePhishClicked:   {TriggerMicroAssigned, "Auto-assigned on phish click"},
	StateMicroCompleted: {TriggerMandatoryAssigned, "Auto-assigned after micro-training"},
}

// CanReceiveEmail reports whether a user in the given state may be sent a
// new simulated-phishing email. Users mid-cycle are not eligible.
func CanReceiveEmail(s State) bool {
	return s == StateClean || s == StateCompliant
}
