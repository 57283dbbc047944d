package crdt

import "testing"

func TestPositionCompare(t *testing.T) {
	cases := []struct {
		a, b Position
		want int
	}{
		{Position{3}, Position{3, 0}, -1},
		{Position{3, 0}, Position{3}, 1},
		{Position{1, 2}, Position{1, 3}, -1},
		{Position{5}, Position{5}, 0},
		{Position{5, 1}, Position{4, 9}, 1},
	}
	for _, c := range cases {
		if got := c.a.Compare(c.b); got != c.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestPositionLess(t *testing.T) {
	if !(Position{3}.Less(Position{3, 0})) {
		t.Error("[3] should be less than [3,0]")
	}
	if (Position{3, 0}).Less(Position{3}) {
		t.Error("[3,0] should not be less than [3]")
	}
}

func TestAtDualDefault(t *testing.T) {
	p := Position{5}
	if got := at(p, 1, 32, false); got != 0 {
		t.Errorf("left default at(p,1) = %d, want 0", got)
	}
	if got := at(p, 1, 32, true); got != 64 {
		t.Errorf("right default at(p,1) = %d, want 64", got)
	}
	if got := at(p, 0, 32, false); got != 5 {
		t.Errorf("at(p,0) = %d, want 5", got)
	}
}
