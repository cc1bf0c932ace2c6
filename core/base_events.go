package core

// WarningEvent reports a degraded but working session, e.g. a diagnostic log that could not be opened.
type WarningEvent struct {
	Error string `json:"error"`
}

func (e *WarningEvent) GetId() string {
	return "shared.warning"
}

// StatusEvent carries a prefixed, user-visible status line such as "[System] Stopped AI response.".
type StatusEvent struct {
	Line string `json:"line"`
}

func (e *StatusEvent) GetId() string {
	return "shared.status"
}
