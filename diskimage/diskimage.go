// Package diskimage implements the DiskImage façade: the public,
// representation-agnostic sector read/write/scan entry point a caller uses
// instead of talking to tracks directly.
package diskimage

import (
	"fmt"

	"github.com/fluxfox-go/fluxfox/chs"
	"github.com/fluxfox-go/fluxfox/track"
)

// DiskImage exclusively owns its tracks, keyed by physical CH. It applies
// no policy beyond dispatch: the track's result record is returned
// verbatim (spec.md §4.11).
type DiskImage struct {
	tracks map[chs.CH]track.Track
	order  []chs.CH // insertion order, for enumeration
}

// New returns an empty DiskImage.
func New() *DiskImage {
	return &DiskImage{tracks: make(map[chs.CH]track.Track)}
}

// AddTrack registers a track at its own physical address. A second call
// for the same CH replaces the track at that address (relocation).
func (d *DiskImage) AddTrack(t track.Track) {
	ch := t.CH()
	if _, exists := d.tracks[ch]; !exists {
		d.order = append(d.order, ch)
	}
	d.tracks[ch] = t
}

// Track returns the track at physical address ch, or nil if absent.
func (d *DiskImage) Track(ch chs.CH) track.Track {
	return d.tracks[ch]
}

// Tracks returns every track in insertion order.
func (d *DiskImage) Tracks() []track.Track {
	out := make([]track.Track, 0, len(d.order))
	for _, ch := range d.order {
		out = append(out, d.tracks[ch])
	}
	return out
}

func (d *DiskImage) lookup(ch chs.CH) (track.Track, error) {
	t, ok := d.tracks[ch]
	if !ok {
		return nil, fmt.Errorf("diskimage: %w: no track at %s", track.ErrSeek, ch)
	}
	return t, nil
}

// ReadSector looks up the track at physical address ch and forwards the
// read (spec.md §4.11).
func (d *DiskImage) ReadSector(ch chs.CH, q chs.SectorIdQuery, scope track.RWScope, debug bool) (track.ReadSectorResult, error) {
	t, err := d.lookup(ch)
	if err != nil {
		return track.ReadSectorResult{}, err
	}
	return t.ReadSector(q, scope, debug)
}

// ScanSector looks up the track at physical address ch and forwards the
// scan.
func (d *DiskImage) ScanSector(ch chs.CH, q chs.SectorIdQuery, debug bool) (track.ScanSectorResult, error) {
	t, err := d.lookup(ch)
	if err != nil {
		return track.ScanSectorResult{}, err
	}
	return t.ScanSector(q, debug)
}

// WriteSector looks up the track at physical address ch and forwards the
// write.
func (d *DiskImage) WriteSector(ch chs.CH, q chs.SectorIdQuery, buf []byte, scope track.RWScope, writeDeleted bool, debug bool) (track.WriteSectorResult, error) {
	t, err := d.lookup(ch)
	if err != nil {
		return track.WriteSectorResult{}, err
	}
	return t.WriteSector(q, buf, scope, writeDeleted, debug)
}

// ReadAllSectors looks up the track at physical address ch and forwards
// the "Read Track" command.
func (d *DiskImage) ReadAllSectors(ch chs.CH, n uint8, trackLen int) (track.ReadTrackResult, error) {
	t, err := d.lookup(ch)
	if err != nil {
		return track.ReadTrackResult{}, err
	}
	return t.ReadAllSectors(n, trackLen)
}
