package chs

import "testing"

func TestSizeBytes(t *testing.T) {
	cases := map[uint8]int{0: 128, 1: 256, 2: 512, 3: 1024, 4: 2048, 5: 4096}
	for n, want := range cases {
		if got := SizeBytes(n); got != want {
			t.Errorf("SizeBytes(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestCHSNSize(t *testing.T) {
	c := CHSN{Cylinder: 1, Head: 0, Sector: 3, N: 2}
	if got := c.Size(); got != 512 {
		t.Errorf("Size() = %d, want 512", got)
	}
	if got := c.CHS(); got != (CHS{Cylinder: 1, Head: 0, Sector: 3}) {
		t.Errorf("CHS() = %+v, want {1 0 3}", got)
	}
}

func TestSectorIdQueryMatchesN(t *testing.T) {
	q := NewSectorIdQuery(CHS{Cylinder: 0, Head: 0, Sector: 1}, 2)
	if !q.MatchesN(2) {
		t.Error("MatchesN(2) = false, want true")
	}
	if q.MatchesN(3) {
		t.Error("MatchesN(3) = true, want false")
	}

	any := NewSectorIdQueryAnySize(CHS{Cylinder: 0, Head: 0, Sector: 1})
	if !any.MatchesN(0) || !any.MatchesN(7) {
		t.Error("any-size query should match every N")
	}
}

func TestCHSString(t *testing.T) {
	got := CHS{Cylinder: 2, Head: 1, Sector: 5}.String()
	want := "c:2 h:1 s:5"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
