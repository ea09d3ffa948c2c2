// Package track defines the polymorphic Track contract that every track
// representation (sector-granular MetaSector, flux-granular BitStream, ...)
// must satisfy, plus the result/record types and error kinds shared across
// representations. A DiskImage holds a homogeneous sequence of Tracks keyed
// by physical cylinder/head and never knows which concrete kind it is
// talking to.
package track

import (
	"errors"

	"github.com/fluxfox-go/fluxfox/chs"
)

// Sentinel errors. Everything a real controller would surface as a status
// flag (CRC errors, missing DAMs, wrong cylinder/head, deleted marks,
// sector-not-found) is reported via the result records below, never as an
// error. These four are reserved for requests the core cannot even attempt.
var (
	// ErrSeek is returned when a physical CH has no corresponding track.
	ErrSeek = errors.New("track: no track at that physical address")
	// ErrUniqueID is returned when a write matched more than one sector.
	ErrUniqueID = errors.New("track: write matched more than one sector with that ID")
	// ErrParameter is returned for a malformed request: wrong buffer size,
	// or a scope the track variant cannot honor.
	ErrParameter = errors.New("track: invalid parameter")
	// ErrUnsupportedFormat is returned by operations a track variant does
	// not implement (e.g. read_track/format on a MetaSector track).
	ErrUnsupportedFormat = errors.New("track: operation not supported by this track variant")
)

// Encoding names the bit-cell encoding a track was recorded with.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingFM
	EncodingMFM
	EncodingGCR
)

func (e Encoding) String() string {
	switch e {
	case EncodingFM:
		return "FM"
	case EncodingMFM:
		return "MFM"
	case EncodingGCR:
		return "GCR"
	default:
		return "unknown"
	}
}

// DataRate is a track's nominal bit rate in kbps (e.g. 250, 300, 500).
type DataRate int

// RWScope selects how much of a sector a read/write operation touches.
type RWScope int

const (
	// ScopeDataOnly reads/writes only the sector's data payload.
	ScopeDataOnly RWScope = iota
	// ScopeDataBlock additionally includes the address mark and CRC bytes
	// around the data — meaningful only for BitStream tracks, since a
	// MetaSector track has no underlying bit-level representation of
	// those bytes to return.
	ScopeDataBlock
)

// SectorMapEntry describes one sector as reported by a track's sector map,
// independent of representation.
type SectorMapEntry struct {
	ID               chs.CHSN
	AddressCRCError  bool
	DataCRCError     bool
	DeletedMark      bool
	NoDAM            bool
}

// TrackConsistency summarizes one pass over a track's sectors.
type TrackConsistency struct {
	SectorCount            int
	NonconsecutiveSectors  bool
	BadDataCRC             bool
	BadAddressCRC          bool
	DeletedData            bool
	// ConsistentSectorSize is non-nil iff every sector on the track shares
	// the same size code.
	ConsistentSectorSize *uint8
}

// ReadSectorResult is the output of Track.ReadSector.
type ReadSectorResult struct {
	ID               *chs.CHSN
	DataIdx          int
	DataLen          int
	ReadBuf          []byte
	DeletedMark      bool
	NotFound         bool
	NoDAM            bool
	AddressCRCError  bool
	DataCRCError     bool
	WrongCylinder    bool
	BadCylinder      bool
	WrongHead        bool
}

// ScanSectorResult is the output of Track.ScanSector: the same diagnostic
// flags as ReadSectorResult, without the data.
type ScanSectorResult struct {
	NotFound         bool
	NoDAM            bool
	DeletedMark      bool
	AddressCRCError  bool
	DataCRCError     bool
	WrongCylinder    bool
	BadCylinder      bool
	WrongHead        bool
}

// WriteSectorResult is the output of Track.WriteSector.
type WriteSectorResult struct {
	NotFound         bool
	NoDAM            bool
	AddressCRCError  bool
	WrongCylinder    bool
	BadCylinder      bool
	WrongHead        bool
}

// ReadTrackResult is the output of Track.ReadAllSectors / the "Read Track"
// FDC command.
type ReadTrackResult struct {
	NotFound         bool
	SectorsRead      int
	ReadBuf          []byte
	DeletedMark      bool
	AddressCRCError  bool
	DataCRCError     bool
	ReadLenBits      int
	ReadLenBytes     int
}

// Track is the contract every track representation must satisfy so a
// DiskImage can hold a homogeneous, representation-agnostic sequence of
// them.
type Track interface {
	// CH returns the track's physical address.
	CH() chs.CH
	// Encoding returns the track's recording encoding.
	Encoding() Encoding
	// DataRate returns the track's nominal bit rate in kbps.
	DataRate() DataRate
	// SectorMap enumerates the sectors this track reports, in physical
	// angular order.
	SectorMap() []SectorMapEntry

	ReadSector(q chs.SectorIdQuery, scope RWScope, debug bool) (ReadSectorResult, error)
	ScanSector(q chs.SectorIdQuery, debug bool) (ScanSectorResult, error)
	WriteSector(q chs.SectorIdQuery, buf []byte, scope RWScope, writeDeleted bool, debug bool) (WriteSectorResult, error)
	ReadAllSectors(n uint8, trackLen int) (ReadTrackResult, error)

	// GetNextID returns the id_chsn of the sector physically following the
	// first sector whose id.Sector == query sector, wrapping to the first
	// sector when the match is the last. nil if no sector matches.
	GetNextID(query chs.CHS) *chs.CHSN

	HasWeakBits() bool
	GetTrackConsistency() TrackConsistency
	Hash() ([]byte, error)

	// ReadTrack returns the raw bitstream of the track (address marks, CRC
	// bytes, gaps — everything). Unsupported by sector-granular tracks.
	ReadTrack() ([]byte, error)
	// Format rewrites the entire track from a sector layout. Unsupported
	// by sector-granular tracks.
	Format(layout []chs.CHSN, gapFill byte) error
}
