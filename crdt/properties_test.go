package crdt

import (
	"math/rand"
	"testing"
)

// Scenario 2 / P1: two sites concurrently inserting at the end of a
// shared document converge to the same string after cross-delivery.
func TestConcurrentInsertAtEndConverges(t *testing.T) {
	a := newTestReplica(0, 21)
	b := newTestReplica(1, 22)

	seed := []byte("hi\n")
	for i, ch := range seed {
		msg, err := a.LocalInsert(0, i, ch)
		if err != nil {
			t.Fatalf("seed insert error: %v", err)
		}
		if err := b.Process(msg); err != nil {
			t.Fatalf("seed apply error: %v", err)
		}
	}
	if a.String() != "hi\n" || b.String() != "hi\n" {
		t.Fatalf("seed mismatch: a=%q b=%q", a.String(), b.String())
	}

	mA, err := a.LocalInsert(1, 0, 'X')
	if err != nil {
		t.Fatalf("A insert error: %v", err)
	}
	mB, err := b.LocalInsert(1, 0, 'Y')
	if err != nil {
		t.Fatalf("B insert error: %v", err)
	}

	if err := a.Process(mB); err != nil {
		t.Fatalf("A apply B error: %v", err)
	}
	if err := b.Process(mA); err != nil {
		t.Fatalf("B apply A error: %v", err)
	}

	if a.String() != b.String() {
		t.Fatalf("replicas diverged: a=%q b=%q", a.String(), b.String())
	}
	if a.String() != "hi\nXY" && a.String() != "hi\nYX" {
		t.Fatalf("unexpected converged text: %q", a.String())
	}
}

// P2: applying two concurrent Messages in either order converges.
func TestCommutativityOfConcurrentMessages(t *testing.T) {
	origin := newTestReplica(0, 31)
	m1, err := origin.LocalInsert(0, 0, 'p')
	if err != nil {
		t.Fatalf("insert error: %v", err)
	}
	other := newTestReplica(1, 32)
	m2, err := other.LocalInsert(0, 0, 'q')
	if err != nil {
		t.Fatalf("insert error: %v", err)
	}

	s1 := newTestReplica(2, 33)
	if err := s1.Process(m1); err != nil {
		t.Fatal(err)
	}
	if err := s1.Process(m2); err != nil {
		t.Fatal(err)
	}

	s2 := newTestReplica(2, 34)
	if err := s2.Process(m2); err != nil {
		t.Fatal(err)
	}
	if err := s2.Process(m1); err != nil {
		t.Fatal(err)
	}

	if s1.String() != s2.String() {
		t.Fatalf("order-dependent result: %q vs %q", s1.String(), s2.String())
	}
}

// P3: DELETE is idempotent.
func TestDeleteIdempotence(t *testing.T) {
	origin := newTestReplica(0, 41)
	insMsg, err := origin.LocalInsert(0, 0, 'k')
	if err != nil {
		t.Fatal(err)
	}

	other := newTestReplica(1, 42)
	if err := other.Process(insMsg); err != nil {
		t.Fatal(err)
	}
	delMsgs, err := origin.LocalErase(0, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(delMsgs) != 1 {
		t.Fatalf("expected one delete message, got %d", len(delMsgs))
	}
	del := delMsgs[0]

	if err := other.Process(del); err != nil {
		t.Fatal(err)
	}
	once := other.String()
	if err := other.Process(del); err != nil {
		t.Fatal(err)
	}
	twice := other.String()
	if once != twice {
		t.Fatalf("delete not idempotent: %q then %q", once, twice)
	}
}

// Equal-Position collision: a replica that receives two Symbols carrying
// the same Position keeps both of them (ordering falls back to SymbolID)
// rather than dropping or overwriting one.
func TestEqualPositionCollisionResolves(t *testing.T) {
	a := newTestReplica(0, 51)
	b := newTestReplica(1, 52)

	seedMsg, err := a.LocalInsert(0, 0, 'm')
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Process(seedMsg); err != nil {
		t.Fatal(err)
	}

	// Force a collision: both sites mint a Symbol with the exact same
	// Position by constructing Messages manually rather than allocating.
	collidingPos := Position{1, 5}
	m1 := Message{Kind: KindInsert, Symbol: Symbol{Value: 'x', ID: SymbolID{SiteID: 0, Counter: 99}, Position: collidingPos}, OriginSiteID: 0}
	m2 := Message{Kind: KindInsert, Symbol: Symbol{Value: 'y', ID: SymbolID{SiteID: 1, Counter: 99}, Position: collidingPos}, OriginSiteID: 1}

	s1 := newTestReplica(2, 53)
	if err := s1.Process(seedMsg); err != nil {
		t.Fatal(err)
	}
	if err := s1.Process(m1); err != nil {
		t.Fatal(err)
	}
	if err := s1.Process(m2); err != nil {
		t.Fatal(err)
	}

	total := 0
	for _, ln := range s1.doc.Lines {
		total += len(ln)
	}
	if total != 3 {
		t.Fatalf("expected 3 live symbols after collision, got %d", total)
	}
}

func TestAllocatorSeedDeterminism(t *testing.T) {
	rng1 := rand.New(rand.NewSource(99))
	rng2 := rand.New(rand.NewSource(99))
	a1 := NewAllocator(DefaultBase, DefaultBoundary, rng1)
	a2 := NewAllocator(DefaultBase, DefaultBoundary, rng2)

	q1, err := a1.Allocate(Position{0}, Position{DefaultBase})
	if err != nil {
		t.Fatal(err)
	}
	q2, err := a2.Allocate(Position{0}, Position{DefaultBase})
	if err != nil {
		t.Fatal(err)
	}
	if !q1.Equal(q2) {
		t.Errorf("same seed produced different allocations: %v vs %v", q1, q2)
	}
}
