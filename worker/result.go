package worker

import "github.com/peacprotocol/tap-go/tap"

// Action is the runtime-neutral disposition of one request.
type Action string

const (
	// ActionPass lets the request through without verification (bypass).
	ActionPass Action = "pass"

	// ActionChallenge asks the client to present payment evidence (402).
	ActionChallenge Action = "challenge"

	// ActionError rejects the request with the attached problem.
	ActionError Action = "error"

	// ActionForward lets the verified request through, with evidence.
	ActionForward Action = "forward"
)

// Result is what a deployment adapter turns into its runtime's response: a
// terminal action plus the status, problem payload, control entry, and
// warning that go with it.
type Result struct {
	Action Action

	// Status is the HTTP status to emit for challenge and error actions.
	Status int

	// Code is the machine-readable error code for error/challenge
	// actions.
	Code tap.Code

	// Problem is the structured error payload for error/challenge
	// actions.
	Problem *Problem

	// ControlEntry carries verification evidence on the forward path.
	ControlEntry *tap.ControlEntry

	// Warning is set when an unsafe override weakened verification; it is
	// suitable for a Warning response header.
	Warning string

	// RequestID correlates this result with log lines.
	RequestID string
}
