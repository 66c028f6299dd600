package events

// BindingEvent reports a bound-state transition of a binding.
type BindingEvent struct {
	Flavour  string `json:"flavour"`
	Key      string `json:"key"`
	Binding  string `json:"binding"`
	State    string `json:"state"`
	Previous string `json:"previous"`
}

// PopulateEvent reports the end of a populate pass.
type PopulateEvent struct {
	Scope string `json:"scope"`
	Error string `json:"error,omitempty"`
}

// ReplayEvent reports the end of a replay pass after a reconnect.
type ReplayEvent struct {
	Error string `json:"error,omitempty"`
}
