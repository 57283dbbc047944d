package crdt

import (
	"fmt"
	"strconv"
	"strings"
)

// SymbolID globally and uniquely identifies a Symbol: the site that minted
// it, plus that site's local counter value at the moment of minting.
type SymbolID struct {
	SiteID  int
	Counter int
}

// Less orders SymbolIDs lexicographically on (SiteID, Counter). This is the
// deterministic tiebreak used when two Symbols compare equal on Position —
// the only way that can happen is the equal-Position collision described in
// the allocator design notes, and ordering (never mutation) is how it is
// resolved.
func (id SymbolID) Less(other SymbolID) bool {
	if id.SiteID != other.SiteID {
		return id.SiteID < other.SiteID
	}
	return id.Counter < other.Counter
}

// Equal reports whether id and other name the same Symbol.
func (id SymbolID) Equal(other SymbolID) bool {
	return id.SiteID == other.SiteID && id.Counter == other.Counter
}

// String renders id in the wire form "{siteId}_{counter}".
func (id SymbolID) String() string {
	return fmt.Sprintf("%d_%d", id.SiteID, id.Counter)
}

// ParseSymbolID parses the "{siteId}_{counter}" wire form produced by
// SymbolID.String.
func ParseSymbolID(s string) (SymbolID, error) {
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return SymbolID{}, fmt.Errorf("crdt: malformed symbol id %q", s)
	}
	siteID, err := strconv.Atoi(parts[0])
	if err != nil {
		return SymbolID{}, fmt.Errorf("crdt: malformed symbol id %q: %w", s, err)
	}
	counter, err := strconv.Atoi(parts[1])
	if err != nil {
		return SymbolID{}, fmt.Errorf("crdt: malformed symbol id %q: %w", s, err)
	}
	return SymbolID{SiteID: siteID, Counter: counter}, nil
}

// Symbol is one character of the document together with its globally
// unique identity and its Position in the total order.
type Symbol struct {
	Value    byte
	ID       SymbolID
	Position Position
}

// Less orders Symbols by Position, falling back to ID when two Symbols
// carry an identical Position (see the allocator collision note).
func (s Symbol) Less(other Symbol) bool {
	switch s.Position.Compare(other.Position) {
	case -1:
		return true
	case 1:
		return false
	default:
		return s.ID.Less(other.ID)
	}
}

// wireSymbol is the JSON wire shape from §6: value as a one-character
// string, id as "{siteId}_{counter}", position as a plain int array.
type wireSymbol struct {
	Value    string `json:"value"`
	ID       string `json:"id"`
	Position []int  `json:"position"`
}

func (s Symbol) toWire() wireSymbol {
	return wireSymbol{
		Value:    string(s.Value),
		ID:       s.ID.String(),
		Position: []int(s.Position),
	}
}

func (w wireSymbol) toSymbol() (Symbol, error) {
	if len(w.Value) != 1 {
		return Symbol{}, fmt.Errorf("crdt: symbol value must be one byte, got %q", w.Value)
	}
	id, err := ParseSymbolID(w.ID)
	if err != nil {
		return Symbol{}, err
	}
	return Symbol{Value: w.Value[0], ID: id, Position: Position(w.Position)}, nil
}
