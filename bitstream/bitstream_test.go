package bitstream

import (
	"bytes"
	"testing"

	"github.com/fluxfox-go/fluxfox/chs"
	"github.com/fluxfox-go/fluxfox/track"
)

func TestFormatThenReadSectorRoundTrip(t *testing.T) {
	tr := NewTrack(chs.CH{Cylinder: 0, Head: 0}, track.DataRate(250), 0, nil)

	layout := []chs.CHSN{
		{Cylinder: 0, Head: 0, Sector: 1, N: 2},
		{Cylinder: 0, Head: 0, Sector: 2, N: 2},
	}
	if err := tr.Format(layout, 0x4e); err != nil {
		t.Fatalf("Format: %v", err)
	}

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 2}, 2)
	res, err := tr.ReadSector(q, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if res.NotFound {
		t.Fatal("expected sector 2 to be found after Format")
	}
	if !bytes.Equal(res.ReadBuf, bytes.Repeat([]byte{0x4e}, 512)) {
		t.Errorf("ReadBuf not filled with gapFill byte as expected")
	}
}

func TestFormatRejectsNonStandardSectorSize(t *testing.T) {
	tr := NewTrack(chs.CH{Cylinder: 0, Head: 0}, track.DataRate(250), 0, nil)
	layout := []chs.CHSN{{Cylinder: 0, Head: 0, Sector: 1, N: 3}}
	if err := tr.Format(layout, 0); err == nil {
		t.Fatal("expected error for non-512-byte sector size")
	}
}

func TestWriteSectorUnsupported(t *testing.T) {
	tr := NewTrack(chs.CH{Cylinder: 0, Head: 0}, track.DataRate(250), 0, nil)
	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 1}, 2)
	_, err := tr.WriteSector(q, make([]byte, 512), track.ScopeDataOnly, false, false)
	if err == nil {
		t.Fatal("expected WriteSector to be unsupported for bitstream tracks")
	}
}

func TestHashIsDeterministic(t *testing.T) {
	tr := NewTrack(chs.CH{Cylinder: 0, Head: 0}, track.DataRate(250), 0, []byte{1, 2, 3})
	h1, err := tr.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, _ := tr.Hash()
	if !bytes.Equal(h1, h2) {
		t.Error("Hash should be deterministic for unchanged data")
	}
}

func TestReadTrackReturnsRawBitstream(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}
	tr := NewTrack(chs.CH{Cylinder: 0, Head: 0}, track.DataRate(250), 0, data)
	got, err := tr.ReadTrack()
	if err != nil {
		t.Fatalf("ReadTrack: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadTrack() = %x, want %x", got, data)
	}
}
