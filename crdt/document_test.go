package crdt

import "testing"

func TestFindPosBeforeAfterSentinels(t *testing.T) {
	d := NewDocument(DefaultBase)
	before, err := d.findPosBefore(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !before.Equal(Position{0}) {
		t.Errorf("findPosBefore(0,0) = %v, want [0]", before)
	}
	after, err := d.findPosAfter(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !after.Equal(Position{DefaultBase}) {
		t.Errorf("findPosAfter(0,0) = %v, want [%d]", after, DefaultBase)
	}
}

func TestFindPosOutOfRange(t *testing.T) {
	d := NewDocument(DefaultBase)
	if _, err := d.findPosBefore(3, 0); err != ErrOutOfRange {
		t.Errorf("findPosBefore OOB error = %v, want ErrOutOfRange", err)
	}
	if _, err := d.findPosAfter(0, 5); err != ErrOutOfRange {
		t.Errorf("findPosAfter OOB error = %v, want ErrOutOfRange", err)
	}
}

func TestInsertSymbolSplitsAtEndOfLine(t *testing.T) {
	d := NewDocument(DefaultBase)
	d.insertSymbol(0, 0, Symbol{Value: 'a', Position: Position{5}})
	d.insertSymbol(0, 1, Symbol{Value: 'b', Position: Position{10}})
	d.insertSymbol(0, 2, Symbol{Value: '\n', Position: Position{15}})
	if len(d.Lines) != 2 {
		t.Fatalf("len(Lines) = %d, want 2", len(d.Lines))
	}
	if len(d.Lines[1]) != 0 {
		t.Errorf("trailing line not empty: %v", d.Lines[1])
	}
	if d.String() != "ab\n" {
		t.Errorf("String() = %q, want %q", d.String(), "ab\n")
	}
}

func TestMergeWithNextAndNormalize(t *testing.T) {
	d := NewDocument(DefaultBase)
	d.insertSymbol(0, 0, Symbol{Value: 'a', Position: Position{5}})
	d.insertSymbol(0, 1, Symbol{Value: '\n', Position: Position{10}})
	d.insertSymbol(1, 0, Symbol{Value: 'b', Position: Position{20}})
	if d.String() != "a\nb" {
		t.Fatalf("setup String() = %q, want %q", d.String(), "a\nb")
	}

	// Remove the newline directly and merge.
	d.removeAt(0, 1)
	d.mergeWithNext(0)
	if d.String() != "ab" {
		t.Errorf("String() after merge = %q, want %q", d.String(), "ab")
	}
	if len(d.Lines) != 1 {
		t.Errorf("len(Lines) = %d, want 1", len(d.Lines))
	}
}

func TestDocumentNeverEmpty(t *testing.T) {
	d := NewDocument(DefaultBase)
	d.insertSymbol(0, 0, Symbol{Value: 'a', Position: Position{5}})
	d.removeAt(0, 0)
	d.Lines = d.Lines[:0]
	d.normalize()
	if len(d.Lines) != 1 {
		t.Fatalf("len(Lines) = %d, want 1 after normalize", len(d.Lines))
	}
	if d.String() != "" {
		t.Errorf("String() = %q, want empty", d.String())
	}
}
