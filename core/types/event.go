package types

// Event is the wire shape of a marketplace state change: a dotted type name
// (e.g. "marketplace.offer.sale") plus flat string attributes, so downstream
// indexers need no per-event schema.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
