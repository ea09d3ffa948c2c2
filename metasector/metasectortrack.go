// Package metasector implements the sector-granular Track representation:
// an ordered collection of MetaSectors forming one physical track, together
// with the System/34-style sector-matching algorithm and weak-bit/hole-mask
// read semantics that make it behave like a real floppy controller over
// damaged or copy-protected media.
package metasector

import (
	"crypto/sha1"
	"fmt"

	"github.com/fluxfox-go/fluxfox/chs"
	"github.com/fluxfox-go/fluxfox/track"
)

// MetaSectorTrack is an ordered sequence of MetaSectors forming one
// physical track. The order is the physical angular order on the disk and
// is preserved across every mutation; duplicate id_chsn values are
// permitted, a well-formed property of some copy-protected disks.
//
// No sector may be mutated except through AddSector (append / alternate
// merge) or WriteSector (data and deleted_mark only).
type MetaSectorTrack struct {
	ch       chs.CH
	encoding track.Encoding
	dataRate track.DataRate
	sectors  []MetaSector
}

// NewMetaSectorTrack creates an empty track at the given physical address.
func NewMetaSectorTrack(ch chs.CH, encoding track.Encoding, rate track.DataRate) *MetaSectorTrack {
	return &MetaSectorTrack{ch: ch, encoding: encoding, dataRate: rate}
}

func (t *MetaSectorTrack) CH() chs.CH             { return t.ch }
func (t *MetaSectorTrack) Encoding() track.Encoding { return t.encoding }
func (t *MetaSectorTrack) DataRate() track.DataRate { return t.dataRate }

// Sectors returns the track's sectors in physical order. Callers must not
// mutate the returned slice's elements directly; use AddSector/WriteSector.
func (t *MetaSectorTrack) Sectors() []MetaSector {
	return t.sectors
}

// SectorMap enumerates the track's sectors for the Track contract.
func (t *MetaSectorTrack) SectorMap() []track.SectorMapEntry {
	out := make([]track.SectorMapEntry, len(t.sectors))
	for i, s := range t.sectors {
		out[i] = track.SectorMapEntry{
			ID:              s.IDChsn,
			AddressCRCError: s.AddressCRCError,
			DataCRCError:    s.DataCRCError,
			DeletedMark:     s.DeletedMark,
			NoDAM:           s.MissingData,
		}
	}
	return out
}

// AddSector appends a new sector, or, in alternate mode, merges a second
// read of an existing sector by XOR-ing the two data buffers into the
// existing sector's weak mask (spec.md §4.7). This is how multi-read
// dumps of copy-protected disks fold read-to-read instability into weak
// bits.
func (t *MetaSectorTrack) AddSector(sd SectorDescriptor, alternate bool) {
	if alternate {
		for i := range t.sectors {
			existing := &t.sectors[i]
			if existing.IDChsn == sd.IDChsn {
				newData := make([]byte, len(existing.Data))
				copy(newData, sd.Data)
				xor := make([]byte, len(existing.Data))
				for j := range xor {
					var nb byte
					if j < len(newData) {
						nb = newData[j]
					}
					xor[j] = existing.Data[j] ^ nb
				}
				existing.WeakMask.OrSlice(xor)
				return
			}
		}
	}
	t.sectors = append(t.sectors, NewMetaSector(sd))
}

// ReadSector implements the Track contract. Only ScopeDataOnly is
// supported: ScopeDataBlock (address mark + CRC bytes) is meaningful only
// for BitStream tracks, which retain the underlying bit-level
// representation.
func (t *MetaSectorTrack) ReadSector(q chs.SectorIdQuery, scope track.RWScope, debug bool) (track.ReadSectorResult, error) {
	if scope != track.ScopeDataOnly {
		return track.ReadSectorResult{}, fmt.Errorf("metasector: %w: scope %v", track.ErrParameter, scope)
	}

	m := matchSectorsImmutable(t.sectors, q.CHS(), q.N, debug)

	result := track.ReadSectorResult{
		WrongCylinder: m.WrongCylinder,
		BadCylinder:   m.BadCylinder,
		WrongHead:     m.WrongHead,
	}

	if len(m.Sectors) == 0 {
		result.NotFound = true
		return result, nil
	}
	if len(m.Sectors) > 1 {
		fmt.Printf("Warning: %d sectors matched %s on track %s, using the first in physical order\n", len(m.Sectors), q, t.ch)
	}

	s := m.Sectors[0]
	id := s.IDChsn
	result.ID = &id
	result.ReadBuf = s.ReadData()
	result.DataLen = len(s.Data)
	result.DataIdx = 0
	result.DeletedMark = s.DeletedMark
	result.NoDAM = s.MissingData
	result.AddressCRCError = s.AddressCRCError
	result.DataCRCError = s.DataCRCError
	return result, nil
}

// ScanSector is ReadSector without materializing the data.
func (t *MetaSectorTrack) ScanSector(q chs.SectorIdQuery, debug bool) (track.ScanSectorResult, error) {
	m := matchSectorsImmutable(t.sectors, q.CHS(), q.N, debug)

	result := track.ScanSectorResult{
		WrongCylinder: m.WrongCylinder,
		BadCylinder:   m.BadCylinder,
		WrongHead:     m.WrongHead,
	}
	if len(m.Sectors) == 0 {
		result.NotFound = true
		return result, nil
	}

	s := m.Sectors[0]
	result.DeletedMark = s.DeletedMark
	result.NoDAM = s.MissingData
	result.AddressCRCError = s.AddressCRCError
	result.DataCRCError = s.DataCRCError
	return result, nil
}

// WriteSector implements the Track contract (spec.md §4.6). More than one
// match is refused with ErrUniqueID, since writing to a disk with
// duplicate IDs has ambiguous semantics on real hardware. Zero matches
// succeed with defaulted flags, mirroring a controller that reports
// sector-not-found via status bits rather than refusing the command. A
// sector with MissingData or AddressCRCError silently suppresses the
// write (Prolok-style copy protection) but still reports success.
func (t *MetaSectorTrack) WriteSector(q chs.SectorIdQuery, buf []byte, scope track.RWScope, writeDeleted bool, debug bool) (track.WriteSectorResult, error) {
	if scope != track.ScopeDataOnly {
		return track.WriteSectorResult{}, fmt.Errorf("metasector: %w: scope %v", track.ErrParameter, scope)
	}

	m := matchSectorsMutable(t.sectors, q.CHS(), q.N, debug)

	if len(m.Indices) == 0 {
		// Zero matches succeed with every flag at its default, mirroring a
		// controller that reports sector-not-found via status bits rather
		// than refusing the command (spec.md §4.6 item 3); NotFound itself
		// stays false, and the per-track wrong_cylinder/bad_cylinder/
		// wrong_head diagnostics accumulated while matching are still
		// carried through, same as read/scan.
		return track.WriteSectorResult{
			WrongCylinder: m.WrongCylinder,
			BadCylinder:   m.BadCylinder,
			WrongHead:     m.WrongHead,
		}, nil
	}
	if len(m.Indices) > 1 {
		return track.WriteSectorResult{}, fmt.Errorf("metasector: %w: %d sectors matched %s on track %s", track.ErrUniqueID, len(m.Indices), q, t.ch)
	}

	s := &t.sectors[m.Indices[0]]
	if len(buf) != s.IDChsn.Size() {
		return track.WriteSectorResult{}, fmt.Errorf("metasector: %w: write buffer is %d bytes, sector is %d", track.ErrParameter, len(buf), s.IDChsn.Size())
	}

	if s.MissingData || s.AddressCRCError {
		return track.WriteSectorResult{
			NoDAM:           s.MissingData,
			AddressCRCError: s.AddressCRCError,
		}, nil
	}

	copy(s.Data, buf)
	s.DeletedMark = writeDeleted
	return track.WriteSectorResult{}, nil
}

// ReadAllSectors concatenates up to trackLen sectors' effective data in
// physical order, the "Read Track" FDC command (spec.md §4.8). It stops
// before reading the sector after the trackLen-th — the chosen resolution
// of the "at or after EOT" ambiguity noted in spec.md §4.8/§9. n mirrors the
// real FDC command's N parameter for interface parity with Track; a
// MetaSector track has no per-sector size filtering in this command, so it
// is accepted and otherwise unused.
func (t *MetaSectorTrack) ReadAllSectors(n uint8, trackLen int) (track.ReadTrackResult, error) {
	if len(t.sectors) == 0 {
		return track.ReadTrackResult{NotFound: true}, nil
	}

	var result track.ReadTrackResult
	count := trackLen
	if count > len(t.sectors) {
		count = len(t.sectors)
	}
	for i := 0; i < count; i++ {
		s := &t.sectors[i]
		result.ReadBuf = append(result.ReadBuf, s.ReadData()...)
		result.AddressCRCError = result.AddressCRCError || s.AddressCRCError
		result.DataCRCError = result.DataCRCError || s.DataCRCError
		result.DeletedMark = result.DeletedMark || s.DeletedMark
		result.SectorsRead++
	}
	result.ReadLenBytes = len(result.ReadBuf)
	result.ReadLenBits = result.ReadLenBytes * 16 // MFM nominal
	return result, nil
}

// GetNextID returns the id_chsn of the sector physically following the
// first sector whose id.Sector == query.Sector, wrapping to the first
// sector when the match is the last (spec.md §4.9).
func (t *MetaSectorTrack) GetNextID(query chs.CHS) *chs.CHSN {
	for i, s := range t.sectors {
		if s.IDChsn.Sector == query.Sector {
			next := t.sectors[(i+1)%len(t.sectors)].IDChsn
			return &next
		}
	}
	return nil
}

// HasWeakBits reports whether any sector on the track carries weak-bit
// overlay.
func (t *MetaSectorTrack) HasWeakBits() bool {
	for i := range t.sectors {
		if t.sectors[i].HasWeakBits() {
			return true
		}
	}
	return false
}

// GetTrackConsistency computes TrackConsistency in a single pass over the
// track's sectors (spec.md §4.10).
func (t *MetaSectorTrack) GetTrackConsistency() track.TrackConsistency {
	var c track.TrackConsistency
	c.SectorCount = len(t.sectors)

	var commonN *uint8
	consistent := true

	for i, s := range t.sectors {
		if int(s.IDChsn.Sector) != i+1 {
			c.NonconsecutiveSectors = true
		}
		if s.DataCRCError {
			c.BadDataCRC = true
		}
		if s.AddressCRCError {
			c.BadAddressCRC = true
		}
		if s.DeletedMark {
			c.DeletedData = true
		}
		n := s.IDChsn.N
		if commonN == nil {
			commonN = &n
		} else if *commonN != n {
			consistent = false
		}
	}
	if consistent {
		c.ConsistentSectorSize = commonN
	}
	return c
}

// Hash returns the SHA-1 digest of ReadAllSectors(0xff, 0xff) — everything
// on the track. Because mask bits randomize ReadData, the hash is stable
// only for tracks with HasWeakBits() == false (spec.md §4.9).
func (t *MetaSectorTrack) Hash() ([]byte, error) {
	result, err := t.ReadAllSectors(0xff, 0xff)
	if err != nil {
		return nil, err
	}
	sum := sha1.Sum(result.ReadBuf)
	return sum[:], nil
}

// ReadTrack is unsupported for MetaSector tracks: there is no underlying
// bitstream to return.
func (t *MetaSectorTrack) ReadTrack() ([]byte, error) {
	return nil, fmt.Errorf("metasector: %w: read_track", track.ErrUnsupportedFormat)
}

// Format is unsupported for MetaSector tracks: there is no bit-level
// layout to rewrite.
func (t *MetaSectorTrack) Format(layout []chs.CHSN, gapFill byte) error {
	return fmt.Errorf("metasector: %w: format", track.ErrUnsupportedFormat)
}

var _ track.Track = (*MetaSectorTrack)(nil)
