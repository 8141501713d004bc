package types

// Event represents a typed record emitted during a ledger state transition.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
