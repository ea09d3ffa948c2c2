package metasector

import (
	"github.com/fluxfox-go/fluxfox/chs"
)

// matchDiagnostics are the flags accumulated across every sector visited
// while matching, independent of whether that sector matched (spec.md
// §4.3).
type matchDiagnostics struct {
	wrongCylinder bool
	badCylinder   bool
	wrongHead     bool
	sizes         map[uint8]bool
}

func newMatchDiagnostics() matchDiagnostics {
	return matchDiagnostics{sizes: make(map[uint8]bool)}
}

func (d *matchDiagnostics) visit(id chs.CHSN, query chs.CHS, matched bool) {
	if id.Cylinder != query.Cylinder {
		d.wrongCylinder = true
	}
	if id.Cylinder == chs.BadCylinder {
		d.badCylinder = true
	}
	if id.Head != query.Head {
		d.wrongHead = true
	}
	if matched {
		d.sizes[id.N] = true
	}
}

// sectorMatches reports whether sector id satisfies query under the given
// N constraint and debug mode (spec.md §4.3).
func sectorMatches(id chs.CHSN, query chs.CHS, n *uint8, debug bool) bool {
	if id.Sector != query.Sector {
		return false
	}
	if debug {
		return true
	}
	if id.Cylinder != query.Cylinder || id.Head != query.Head {
		return false
	}
	return n == nil || id.N == *n
}

// SectorMatch is the transient, read-only result of matching a query
// against a track's sectors: the matching sectors in original physical
// order, plus the diagnostic flags accumulated across every sector
// visited. It borrows into the track and must not outlive it.
type SectorMatch struct {
	Sectors       []*MetaSector
	Sizes         map[uint8]bool
	WrongCylinder bool
	BadCylinder   bool
	WrongHead     bool
}

// matchSectorsImmutable runs the matching algorithm over a read-only
// sector slice, for the read/scan path.
func matchSectorsImmutable(sectors []MetaSector, query chs.CHS, n *uint8, debug bool) SectorMatch {
	diag := newMatchDiagnostics()
	var matches []*MetaSector
	for i := range sectors {
		s := &sectors[i]
		m := sectorMatches(s.IDChsn, query, n, debug)
		diag.visit(s.IDChsn, query, m)
		if m {
			matches = append(matches, s)
		}
	}
	return SectorMatch{
		Sectors:       matches,
		Sizes:         diag.sizes,
		WrongCylinder: diag.wrongCylinder,
		BadCylinder:   diag.badCylinder,
		WrongHead:     diag.wrongHead,
	}
}

// SectorMatchMut is the mutable counterpart used by the write path: it
// carries indices into the track's sector slice rather than pointers, so a
// single write can be applied without aliasing the immutable read path.
type SectorMatchMut struct {
	Indices       []int
	Sizes         map[uint8]bool
	WrongCylinder bool
	BadCylinder   bool
	WrongHead     bool
}

func matchSectorsMutable(sectors []MetaSector, query chs.CHS, n *uint8, debug bool) SectorMatchMut {
	diag := newMatchDiagnostics()
	var indices []int
	for i := range sectors {
		s := &sectors[i]
		m := sectorMatches(s.IDChsn, query, n, debug)
		diag.visit(s.IDChsn, query, m)
		if m {
			indices = append(indices, i)
		}
	}
	return SectorMatchMut{
		Indices:       indices,
		Sizes:         diag.sizes,
		WrongCylinder: diag.wrongCylinder,
		BadCylinder:   diag.badCylinder,
		WrongHead:     diag.wrongHead,
	}
}
