package chat

import (
	"github.com/qmuntal/stateless"
)

// State of a Session's exchange.
type State string

const (
	StateIdle       State = "Idle"
	StateSubmitting State = "Submitting" // request dispatched, nothing received yet
	StateStreaming  State = "Streaming"
)

type trigger string

const (
	triggerSubmit   trigger = "Submit"
	triggerReceive  trigger = "Receive"
	triggerComplete trigger = "Complete"
	triggerFail     trigger = "Fail"
	triggerClear    trigger = "Clear"
)

// newStateMachine wires the exchange lifecycle:
//
//	Idle -Submit-> Submitting -Receive-> Streaming
//	Submitting|Streaming -Complete|Fail-> Idle
//
// Clear is only accepted in Idle, so a reply can never stream into a
// conversation that was emptied under it.
func newStateMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(StateIdle)

	sm.Configure(StateIdle).
		Permit(triggerSubmit, StateSubmitting).
		PermitReentry(triggerClear)

	sm.Configure(StateSubmitting).
		Permit(triggerReceive, StateStreaming).
		Permit(triggerComplete, StateIdle).
		Permit(triggerFail, StateIdle)

	sm.Configure(StateStreaming).
		Ignore(triggerReceive).
		Permit(triggerComplete, StateIdle).
		Permit(triggerFail, StateIdle)

	return sm
}
