package crdt

import "encoding/json"

// OpKind distinguishes the two Message variants the transport carries.
type OpKind int8

const (
	// KindInsert names a Symbol insertion. Encoded on the wire as +1.
	KindInsert OpKind = 1
	// KindDelete names a Symbol deletion. Encoded on the wire as -1.
	KindDelete OpKind = -1
)

func (k OpKind) String() string {
	switch k {
	case KindInsert:
		return "INSERT"
	case KindDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Message is the sum type sent across the transport: an INSERT or DELETE of
// exactly one Symbol, tagged with the siteId of the replica that emitted
// it. The core never inspects OriginSiteID itself; the transport uses it to
// avoid echoing a Message back to its own origin (§5).
type Message struct {
	Kind         OpKind
	Symbol       Symbol
	OriginSiteID int
}

// MarshalJSON renders Message in the §6 wire shape.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind         OpKind     `json:"kind"`
		Symbol       wireSymbol `json:"symbol"`
		OriginSiteID int        `json:"originSiteId"`
	}{
		Kind:         m.Kind,
		Symbol:       m.Symbol.toWire(),
		OriginSiteID: m.OriginSiteID,
	})
}

// UnmarshalJSON parses the §6 wire shape back into a Message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Kind         OpKind     `json:"kind"`
		Symbol       wireSymbol `json:"symbol"`
		OriginSiteID int        `json:"originSiteId"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	sym, err := wire.Symbol.toSymbol()
	if err != nil {
		return err
	}
	m.Kind = wire.Kind
	m.Symbol = sym
	m.OriginSiteID = wire.OriginSiteID
	return nil
}

// MarshalJSON renders a Symbol in the §6 wire shape directly, for callers
// that serialize a bare Symbol (e.g. document snapshots) rather than a
// full Message.
func (s Symbol) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.toWire())
}

// UnmarshalJSON parses the §6 wire shape directly into a Symbol.
func (s *Symbol) UnmarshalJSON(data []byte) error {
	var w wireSymbol
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	sym, err := w.toSymbol()
	if err != nil {
		return err
	}
	*s = sym
	return nil
}
