package diskimage

import (
	"errors"
	"testing"

	"github.com/fluxfox-go/fluxfox/chs"
	"github.com/fluxfox-go/fluxfox/metasector"
	"github.com/fluxfox-go/fluxfox/track"
)

func newTrack(cyl, head uint8) *metasector.MetaSectorTrack {
	t := metasector.NewMetaSectorTrack(chs.CH{Cylinder: cyl, Head: head}, track.EncodingMFM, track.DataRate(250))
	data := make([]byte, chs.SizeBytes(2))
	t.AddSector(metasector.SectorDescriptor{
		IDChsn: chs.CHSN{Cylinder: cyl, Head: head, Sector: 1, N: 2},
		Data:   data,
	}, false)
	return t
}

func TestAddTrackAndLookup(t *testing.T) {
	d := New()
	tr := newTrack(0, 0)
	d.AddTrack(tr)

	if got := d.Track(chs.CH{Cylinder: 0, Head: 0}); got == nil {
		t.Fatal("Track lookup returned nil for registered track")
	}
	if got := d.Track(chs.CH{Cylinder: 1, Head: 0}); got != nil {
		t.Error("Track lookup should return nil for unregistered address")
	}
}

func TestAddTrackReplacesAtSameAddress(t *testing.T) {
	d := New()
	d.AddTrack(newTrack(0, 0))
	d.AddTrack(newTrack(0, 0))

	if len(d.Tracks()) != 1 {
		t.Fatalf("Tracks() = %d entries, want 1 (second AddTrack should relocate, not append)", len(d.Tracks()))
	}
}

func TestTracksPreservesInsertionOrder(t *testing.T) {
	d := New()
	d.AddTrack(newTrack(1, 0))
	d.AddTrack(newTrack(0, 0))

	all := d.Tracks()
	if len(all) != 2 || all[0].CH().Cylinder != 1 || all[1].CH().Cylinder != 0 {
		t.Fatalf("Tracks() did not preserve insertion order: %+v", all)
	}
}

func TestReadSectorForwardsToTrack(t *testing.T) {
	d := New()
	d.AddTrack(newTrack(0, 0))

	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 1}, 2)
	res, err := d.ReadSector(chs.CH{Cylinder: 0, Head: 0}, q, track.ScopeDataOnly, false)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if res.NotFound {
		t.Error("expected sector to be found via forwarded ReadSector")
	}
}

func TestReadSectorMissingTrackReturnsErrSeek(t *testing.T) {
	d := New()
	q := chs.NewSectorIdQuery(chs.CHS{Cylinder: 0, Head: 0, Sector: 1}, 2)
	_, err := d.ReadSector(chs.CH{Cylinder: 5, Head: 0}, q, track.ScopeDataOnly, false)
	if !errors.Is(err, track.ErrSeek) {
		t.Fatalf("expected ErrSeek for a track address with no registered track, got %v", err)
	}
}
