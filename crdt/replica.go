package crdt

import "math/rand"

// Replica is one participating instance holding the full state of a single
// document: its site identity, local edit counters, line-indexed document,
// and position allocator (§3). A Replica is single-threaded — it exposes no
// internal locking and every entry point (LocalInsert, LocalErase, Process)
// runs synchronously to completion (§5). A caller sharing a Replica across
// goroutines must serialize access externally.
type Replica struct {
	// SiteID is assigned by the transport at connect (§6).
	SiteID int

	// Counter tracks the net number of local insertions observed, for
	// caller use (e.g. a UI edit indicator). It is adjusted only by
	// LocalInsert and LocalErase — remote operations never touch it.
	Counter int

	// localIDCounter mints unique SymbolIDs for locally-originated
	// Symbols. Per the design notes (§9), this repo takes the cleaner
	// re-architecture: a single monotone counter that is never adjusted
	// by the remote apply path (unlike the source's idCounter, which was
	// decremented on remote insert to compensate for touching a counter
	// meant to be local-only).
	localIDCounter int

	doc   *Document
	alloc *Allocator
	base  int
}

// NewReplica constructs a fresh Replica for siteID with an empty document,
// using base/boundary as the allocator's capacity and clustering
// parameters (§GLOSSARY) and rng as its injectable random source (§9).
func NewReplica(siteID, base, boundary int, rng *rand.Rand) *Replica {
	return &Replica{
		SiteID: siteID,
		doc:    NewDocument(base),
		alloc:  NewAllocator(base, boundary, rng),
		base:   base,
	}
}

// NewReplicaDefault constructs a Replica using DefaultBase/DefaultBoundary
// and the given random source.
func NewReplicaDefault(siteID int, rng *rand.Rand) *Replica {
	return NewReplica(siteID, DefaultBase, DefaultBoundary, rng)
}

// String returns the flat logical document, including '\n' characters
// (§6 toString).
func (r *Replica) String() string {
	return r.doc.String()
}

// LineCount returns the number of Lines currently in the document.
func (r *Replica) LineCount() int {
	return len(r.doc.Lines)
}

// Line returns a copy of the values (not Symbols) on the given Line, for
// callers that only need the text.
func (r *Replica) Line(index int) string {
	ln := r.doc.Lines[index]
	buf := make([]byte, len(ln))
	for i, sym := range ln {
		buf[i] = sym.Value
	}
	return string(buf)
}

// Process dispatches an incoming Message to the remote edit engine (§4.6).
func (r *Replica) Process(msg Message) error {
	switch msg.Kind {
	case KindInsert:
		return r.remoteInsert(msg.Symbol)
	case KindDelete:
		r.remoteErase(msg.Symbol)
		return nil
	default:
		return ErrUnknownOperationKind
	}
}
