package types

// Event is a structured record of a state change observable by off-ledger
// tooling. Attributes are flat string pairs so events serialise the same way
// regardless of transport.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
