package metasector

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fluxfox-go/fluxfox/chs"
	"github.com/fluxfox-go/fluxfox/track"
)

func sector(cyl, head, sec uint8, n uint8, data []byte) SectorDescriptor {
	return SectorDescriptor{
		IDChsn: chs.CHSN{Cylinder: cyl, Head: head, Sector: sec, N: n},
		Data:   data,
	}
}

func fill(n uint8, b byte) []byte {
	buf := make([]byte, chs.SizeBytes(n))
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestAddSectorAndReadSector(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(0, 0, 1, 2, fill(2, 0xaa)), false)
	tr.AddSector(sector(0, 0, 2, 2, fill(2, 0xbb)), false)

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 2}, 2)
	res, err := tr.ReadSector(q, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if res.NotFound {
		t.Fatal("expected sector to be found")
	}
	if !bytes.Equal(res.ReadBuf, fill(2, 0xbb)) {
		t.Errorf("ReadBuf = %x, want all 0xbb", res.ReadBuf)
	}
}

func TestReadSectorNotFound(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(0, 0, 1, 2, fill(2, 0)), false)

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 5}, 2)
	res, err := tr.ReadSector(q, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !res.NotFound {
		t.Error("expected NotFound for nonexistent sector")
	}
}

func TestWriteSectorZeroMatchesSucceedsWithDefaultedFlags(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(0, 0, 1, 2, fill(2, 0)), false)

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 9}, 2)
	res, err := tr.WriteSector(q, fill(2, 0xff), track.ScopeDataOnly, false, false)
	if err != nil {
		t.Fatalf("WriteSector: %v", err)
	}
	if res.NotFound {
		t.Error("zero-match write should succeed with NotFound == false (spec.md §4.6 item 3)")
	}
	if res.WrongCylinder || res.BadCylinder || res.WrongHead {
		t.Error("no diagnostic flag should fire when every sector on the track shares the query's cylinder/head")
	}
}

func TestWriteSectorZeroMatchesCarriesWrongCylinderDiagnostic(t *testing.T) {
	// S2 analogue for the write path: the track's only sector claims
	// cylinder 11 while the query addresses cylinder 10, so wrong_cylinder
	// must be set even though the write itself reports zero matches.
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 10, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(11, 0, 1, 2, fill(2, 0)), false)

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 10, Head: 0, Sector: 1}, 2)
	res, err := tr.WriteSector(q, fill(2, 0xff), track.ScopeDataOnly, false, false)
	if err != nil {
		t.Fatalf("WriteSector: %v", err)
	}
	if res.NotFound {
		t.Error("zero-match write should still report NotFound == false")
	}
	if !res.WrongCylinder {
		t.Error("expected WrongCylinder to be carried through from the zero-match write path")
	}
}

// TestWrongCylinderFlag mirrors spec.md §8 scenario S2: a track at physical
// CH=(10,0) holding a sector whose id_chsn claims cylinder 11. Querying the
// track's own physical cylinder should miss with wrong_cylinder=true;
// querying the cylinder the sector actually claims should hit cleanly.
func TestWrongCylinderFlag(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 10, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(11, 0, 1, 2, fill(2, 0xaa)), false)

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 10, Head: 0, Sector: 1}, 2)
	res, err := tr.ReadSector(q, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !res.NotFound {
		t.Error("expected NotFound when querying the track's own cylinder against a sector claiming a different one")
	}
	if !res.WrongCylinder {
		t.Error("expected WrongCylinder to be set")
	}

	q2 := chs.NewSectorIdQuery(chs.CHS{Cylinder: 11, Head: 0, Sector: 1}, 2)
	res2, err := tr.ReadSector(q2, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if res2.NotFound {
		t.Error("expected the sector to be found when querying the cylinder it actually claims")
	}
	if res2.WrongCylinder {
		t.Error("expected WrongCylinder to be false on a matching query")
	}
}

// TestProlokStyleHoleRereadDiverges mirrors spec.md §8 scenario S3 and the
// ground-truth test_prolok (original_source/tests/prolok.rs): a sector with
// a hole mask reads back different bytes every time, even immediately after
// writing back exactly what was just read, and the non-masked bytes are
// unaffected.
func TestProlokStyleHoleRereadDiverges(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 39, Head: 0}, track.EncodingMFM, track.DataRate(250))
	sd := sector(39, 0, 5, 2, fill(2, 0x55))
	holeMask := make([]byte, chs.SizeBytes(2))
	for i := 0; i < 8; i++ {
		holeMask[i] = 0xff
	}
	sd.HoleMask = holeMask
	tr.AddSector(sd, false)

	restore := randomByte
	var calls byte
	randomByte = func() byte {
		calls++
		return calls
	}
	defer func() { randomByte = restore }()

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 39, Head: 0, Sector: 5}, 2)
	res1, err := tr.ReadSector(q, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector (first): %v", err)
	}
	buf1 := append([]byte(nil), res1.ReadBuf...)

	if _, err := tr.WriteSector(q, buf1, track.ScopeDataOnly, false, false); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}

	res2, err := tr.ReadSector(q, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector (second): %v", err)
	}
	buf2 := res2.ReadBuf

	if bytes.Equal(buf1, buf2) {
		t.Fatal("expected the hole-masked bytes to differ between reads (no hole detected)")
	}
	for i := 8; i < len(buf1); i++ {
		if buf1[i] != buf2[i] {
			t.Fatalf("non-masked byte %d changed: %#x != %#x", i, buf1[i], buf2[i])
		}
	}
}

func TestWriteSectorDuplicateIDReturnsErrUniqueID(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(0, 0, 1, 2, fill(2, 0)), false)
	tr.AddSector(sector(0, 0, 1, 2, fill(2, 1)), false)

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 1}, 2)
	_, err := tr.WriteSector(q, fill(2, 0xff), track.ScopeDataOnly, false, false)
	if !errors.Is(err, track.ErrUniqueID) {
		t.Fatalf("expected ErrUniqueID, got %v", err)
	}
}

func TestWriteSectorUpdatesDataAndDeletedMark(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(0, 0, 1, 2, fill(2, 0)), false)

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 1}, 2)
	if _, err := tr.WriteSector(q, fill(2, 0x42), track.ScopeDataOnly, true, false); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}

	res, err := tr.ReadSector(q, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(res.ReadBuf, fill(2, 0x42)) {
		t.Errorf("ReadBuf = %x, want all 0x42", res.ReadBuf)
	}
	if !res.DeletedMark {
		t.Error("expected DeletedMark to be set after write")
	}
}

func TestAddSectorAlternateMergesIntoWeakMask(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(0, 0, 1, 2, fill(2, 0xff)), false)

	second := fill(2, 0x0f)
	tr.AddSector(sector(0, 0, 1, 2, second), true)

	if len(tr.Sectors()) != 1 {
		t.Fatalf("alternate merge should not append, got %d sectors", len(tr.Sectors()))
	}
	if !tr.Sectors()[0].HasWeakBits() {
		t.Error("expected weak bits from XOR of differing reads")
	}
}

func TestMissingDataSectorReadsEmpty(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, track.DataRate(250))
	sd := sector(0, 0, 1, 2, fill(2, 0xaa))
	sd.MissingData = true
	tr.AddSector(sd, false)

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 1}, 2)
	res, err := tr.ReadSector(q, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if len(res.ReadBuf) != 0 {
		t.Errorf("ReadBuf = %x, want empty for MissingData sector", res.ReadBuf)
	}
}

func TestGetNextIDWrapsAround(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(0, 0, 1, 2, fill(2, 0)), false)
	tr.AddSector(sector(0, 0, 2, 2, fill(2, 0)), false)

	next := tr.GetNextID(chs.CHS{Cylinder: 0, Head: 0, Sector: 2})
	if next == nil || next.Sector != 1 {
		t.Fatalf("GetNextID after last sector should wrap to sector 1, got %+v", next)
	}
}

// TestWriteSectorBufferSizeMismatch mirrors spec.md §8 scenario S5: a
// write buffer of the wrong length for the sector's size code must fail
// with ErrParameter and leave the sector's data untouched.
func TestWriteSectorBufferSizeMismatch(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(0, 0, 1, 2, fill(2, 0xaa)), false)

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 1}, 2)
	_, err := tr.WriteSector(q, make([]byte, 256), track.ScopeDataOnly, false, false)
	if !errors.Is(err, track.ErrParameter) {
		t.Fatalf("WriteSector with a mismatched buffer length: got %v, want an error wrapping ErrParameter", err)
	}

	res, err := tr.ReadSector(q, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(res.ReadBuf, fill(2, 0xaa)) {
		t.Error("sector data should be unchanged after a rejected write")
	}
}

func TestGetTrackConsistencyDetectsMixedSizes(t *testing.T) {
	tr := NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, track.DataRate(250))
	tr.AddSector(sector(0, 0, 1, 2, fill(2, 0)), false)
	tr.AddSector(sector(0, 0, 2, 3, fill(3, 0)), false)

	c := tr.GetTrackConsistency()
	if c.ConsistentSectorSize != nil {
		t.Error("expected ConsistentSectorSize to be nil for mixed sector sizes")
	}
	if c.SectorCount != 2 {
		t.Errorf("SectorCount = %d, want 2", c.SectorCount)
	}
}
