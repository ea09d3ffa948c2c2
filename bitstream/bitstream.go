// Package bitstream implements the flux/bit-granular Track representation:
// a raw MFM bitstream for one physical track, decoded sector-by-sector on
// demand. It exists so the Track contract (spec.md §9, "polymorphic track
// variants") has more than one real implementation to be polymorphic
// over — the MetaSector representation is this spec's subject, BitStream
// is the external collaborator it must stay interchangeable with.
package bitstream

import (
	"crypto/sha1"
	"fmt"

	"github.com/fluxfox-go/fluxfox/chs"
	"github.com/fluxfox-go/fluxfox/mfm"
	"github.com/fluxfox-go/fluxfox/track"
)

// defaultMaxHalfBits is a 250kbps/300rpm track's worth of half-bits,
// matching the fixed gap layout mfm.Writer.EncodeTrackIBMPC assumes.
const defaultMaxHalfBits = 100_000

// ibmPCSectorSize is the only sector size mfm.Writer.EncodeTrackIBMPC
// knows how to lay out (size code 2, 512 bytes).
const ibmPCSectorSize = 512

// Track holds the raw MFM bitstream for one physical track (IBM PC
// encoding only — the one the retained mfm codec supports).
type Track struct {
	ch       chs.CH
	rate     track.DataRate
	sectors  int // sectorsPerTrack, for Format/round-trip
	data     []byte
}

// NewTrack wraps a raw MFM bitstream (as produced by a flux adapter or an
// HFE-style container) in the Track contract.
func NewTrack(ch chs.CH, rate track.DataRate, sectorsPerTrack int, data []byte) *Track {
	return &Track{ch: ch, rate: rate, sectors: sectorsPerTrack, data: data}
}

func (t *Track) CH() chs.CH               { return t.ch }
func (t *Track) Encoding() track.Encoding { return track.EncodingMFM }
func (t *Track) DataRate() track.DataRate { return t.rate }

// SectorMap decodes every sector currently present on the track. Because
// the underlying decoder (mfm.Reader) silently skips headers that fail
// their CRC rather than reporting them, a bitstream track cannot surface
// address_crc_error/data_crc_error in its map the way a MetaSector track
// can from its descriptor metadata — it only ever reports what it could
// actually decode.
func (t *Track) SectorMap() []track.SectorMapEntry {
	count := mfm.NewReader(t.data).CountSectorsIBMPC()
	entries := make([]track.SectorMapEntry, 0, count)
	reader := mfm.NewReader(t.data)
	for s := 1; s <= count; s++ {
		sectorNum, _, err := reader.ReadSectorIBMPC(int(t.ch.Cylinder), int(t.ch.Head))
		if err != nil {
			break
		}
		entries = append(entries, track.SectorMapEntry{
			ID: chs.CHSN{Cylinder: t.ch.Cylinder, Head: t.ch.Head, Sector: uint8(sectorNum + 1), N: 2},
		})
	}
	return entries
}

// ReadSector decodes sectors from the start of the bitstream until the
// requested one is found. ScopeDataBlock is accepted (meaningful for a
// bitstream track, unlike MetaSector) but this decoder does not retain
// address-mark/CRC bytes separately from the payload, so both scopes
// currently return the same 512-byte payload.
func (t *Track) ReadSector(q chs.SectorIdQuery, scope track.RWScope, debug bool) (track.ReadSectorResult, error) {
	if !q.MatchesN(2) && !debug {
		return track.ReadSectorResult{NotFound: true}, nil
	}

	reader := mfm.NewReader(t.data)
	for {
		sectorNum, data, err := reader.ReadSectorIBMPC(int(q.Cylinder), int(q.Head))
		if err != nil {
			return track.ReadSectorResult{NotFound: true}, nil
		}
		if uint8(sectorNum+1) == q.Sector {
			id := chs.CHSN{Cylinder: q.Cylinder, Head: q.Head, Sector: q.Sector, N: 2}
			return track.ReadSectorResult{
				ID:      &id,
				DataLen: len(data),
				ReadBuf: data,
			}, nil
		}
	}
}

// ScanSector is ReadSector without the payload.
func (t *Track) ScanSector(q chs.SectorIdQuery, debug bool) (track.ScanSectorResult, error) {
	result, err := t.ReadSector(q, track.ScopeDataOnly, debug)
	if err != nil {
		return track.ScanSectorResult{}, err
	}
	return track.ScanSectorResult{NotFound: result.NotFound}, nil
}

// WriteSector is unsupported: rewriting one sector in place within a raw
// MFM bitstream would require re-threading bit phase through the rest of
// the track, which this decoder does not model. Use Format to rewrite the
// whole track instead.
func (t *Track) WriteSector(q chs.SectorIdQuery, buf []byte, scope track.RWScope, writeDeleted bool, debug bool) (track.WriteSectorResult, error) {
	return track.WriteSectorResult{}, fmt.Errorf("bitstream: %w: in-place sector write", track.ErrUnsupportedFormat)
}

// ReadAllSectors concatenates every sector this track can decode, in
// physical order, up to trackLen of them.
func (t *Track) ReadAllSectors(n uint8, trackLen int) (track.ReadTrackResult, error) {
	reader := mfm.NewReader(t.data)
	var result track.ReadTrackResult
	for result.SectorsRead < trackLen {
		_, data, err := reader.ReadSectorIBMPC(int(t.ch.Cylinder), int(t.ch.Head))
		if err != nil {
			break
		}
		result.ReadBuf = append(result.ReadBuf, data...)
		result.SectorsRead++
	}
	if result.SectorsRead == 0 {
		result.NotFound = true
	}
	result.ReadLenBytes = len(result.ReadBuf)
	result.ReadLenBits = result.ReadLenBytes * 16
	return result, nil
}

// GetNextID decodes the track from the start looking for query.Sector,
// then decodes one more sector to find its physical successor.
func (t *Track) GetNextID(query chs.CHS) *chs.CHSN {
	reader := mfm.NewReader(t.data)
	for {
		sectorNum, _, err := reader.ReadSectorIBMPC(int(t.ch.Cylinder), int(t.ch.Head))
		if err != nil {
			return nil
		}
		if uint8(sectorNum+1) == query.Sector {
			nextNum, _, err := reader.ReadSectorIBMPC(int(t.ch.Cylinder), int(t.ch.Head))
			if err != nil {
				// wrap: the match was the last sector on the track
				reader = mfm.NewReader(t.data)
				nextNum, _, err = reader.ReadSectorIBMPC(int(t.ch.Cylinder), int(t.ch.Head))
				if err != nil {
					return nil
				}
			}
			id := chs.CHSN{Cylinder: t.ch.Cylinder, Head: t.ch.Head, Sector: uint8(nextNum + 1), N: 2}
			return &id
		}
	}
}

// HasWeakBits is always false: this decoder has no weak-bit model of its
// own (MFM flux timing variation is a BitStream-native concept the
// retained codec does not currently expose as a mask).
func (t *Track) HasWeakBits() bool {
	return false
}

// GetTrackConsistency decodes the track once to build the same summary
// MetaSectorTrack computes from its descriptors.
func (t *Track) GetTrackConsistency() track.TrackConsistency {
	entries := t.SectorMap()
	var c track.TrackConsistency
	c.SectorCount = len(entries)
	n := uint8(2)
	consistent := len(entries) > 0
	for i, e := range entries {
		if int(e.ID.Sector) != i+1 {
			c.NonconsecutiveSectors = true
		}
		if e.ID.N != n {
			consistent = false
		}
	}
	if consistent {
		c.ConsistentSectorSize = &n
	}
	return c
}

// Hash returns the SHA-1 digest of the raw bitstream bytes.
func (t *Track) Hash() ([]byte, error) {
	sum := sha1.Sum(t.data)
	return sum[:], nil
}

// ReadTrack returns the raw MFM bitstream.
func (t *Track) ReadTrack() ([]byte, error) {
	return t.data, nil
}

// Format rewrites the whole track from a sector layout, using the
// retained mfm.Writer IBM-PC encoder. Only size code 2 (512 bytes) is
// supported, matching that encoder.
func (t *Track) Format(layout []chs.CHSN, gapFill byte) error {
	sectors := make([][]byte, len(layout))
	for i, id := range layout {
		if id.N != 2 {
			return fmt.Errorf("bitstream: %w: only 512-byte sectors are supported by the IBM PC encoder, got N=%d", track.ErrParameter, id.N)
		}
		buf := make([]byte, ibmPCSectorSize)
		for j := range buf {
			buf[j] = gapFill
		}
		sectors[i] = buf
	}

	w := mfm.NewWriter(defaultMaxHalfBits)
	t.data = w.EncodeTrackIBMPC(sectors, int(t.ch.Cylinder), int(t.ch.Head), len(sectors))
	t.sectors = len(sectors)
	return nil
}

var _ track.Track = (*Track)(nil)
