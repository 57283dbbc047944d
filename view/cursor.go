// Package view adapts between the flat character offsets a UI naturally
// works with and the (line, col) cursor pairs crdt.Replica's LocalInsert
// and LocalErase expect. Grounded on the teacher's original agent/op.go,
// whose Op addressed a document by a single flat Index into a []string —
// a comment there notes that representation is "NOT a true CRDT (it's a
// stepping stone)". crdt.Replica is that true CRDT; Cursor is the adapter
// letting a flat-offset UI keep talking to it.
package view

// Cursor is a flat character offset into a document's logical text,
// counting '\n' as one character per line break (§6 toString's shape).
type Cursor int

// Replica is the subset of *crdt.Replica's read surface Resolve needs.
type Replica interface {
	LineCount() int
	Line(index int) string
}

// Resolve converts c into the (line, col) pair crdt.Replica.LocalInsert
// and LocalErase take, by walking r's lines and counting characters.
// Replica.Line already includes each non-final line's trailing '\n'
// symbol (I2), so a line's length needs no adjustment here. A cursor that
// lands exactly past a non-final line's trailing '\n' is normalized to
// (line+1, 0), matching LocalInsert's own normalizeInsertCursor. An
// offset at or past the end of the document resolves to the end of the
// last line.
func Resolve(r Replica, c Cursor) (line, col int) {
	remaining := int(c)
	n := r.LineCount()
	for i := 0; i < n; i++ {
		text := r.Line(i)
		if remaining < len(text) {
			return i, remaining
		}
		if remaining == len(text) {
			if i < n-1 {
				return i + 1, 0
			}
			return i, remaining
		}
		remaining -= len(text)
	}
	if n == 0 {
		return 0, 0
	}
	return n - 1, len(r.Line(n - 1))
}

// Offset converts a (line, col) pair back into a flat Cursor, the
// inverse of Resolve.
func Offset(r Replica, line, col int) Cursor {
	offset := 0
	for i := 0; i < line; i++ {
		offset += len(r.Line(i))
	}
	return Cursor(offset + col)
}
