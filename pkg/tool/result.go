package tool

// Alert is an out-of-band notification a tool attaches to its result.
// The copilot surfaces alerts to the operator; the agent only sees the
// payload.
type Alert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	// Kind is one of "info", "success", "warning".
	Kind string `json:"kind"`
}

// Result pairs a tool payload with an optional alert. Handlers that have
// nothing to announce return their payload directly instead.
type Result struct {
	Payload any
	Alert   *Alert
}
