package metasector

import (
	"math/rand"

	"github.com/fluxfox-go/fluxfox/chs"
)

// randomByte is swappable so tests can make read_data deterministic without
// touching the global math/rand state (spec.md §9, "expose an injectable
// RNG hook for deterministic testing").
var randomByte = func() byte {
	return byte(rand.Intn(256))
}

// SectorDescriptor is the full external contract a format parser uses to
// feed one sector into a MetaSectorTrack via AddSector.
type SectorDescriptor struct {
	IDChsn          chs.CHSN
	AddressCRCError bool
	DataCRCError    bool
	DeletedMark     bool
	MissingData     bool
	Data            []byte
	WeakMask        []byte // optional; same length as Data
	HoleMask        []byte // optional; same length as Data
}

// MetaSector is a single sector record: its claimed ID, the four controller
// flags, its data, and its weak/hole mask overlays.
//
// Invariant: len(Data) == len(WeakMask) == len(HoleMask) == 128*2^IDChsn.N.
// If MissingData, the sector is unreadable (ReadData yields empty) and
// unwritable.
type MetaSector struct {
	IDChsn          chs.CHSN
	AddressCRCError bool
	DataCRCError    bool
	DeletedMark     bool
	MissingData     bool
	Data            []byte
	WeakMask        MetaMask
	HoleMask        MetaMask
}

// NewMetaSector builds a MetaSector from a descriptor, filling absent masks
// with empty ones of the right length.
func NewMetaSector(sd SectorDescriptor) MetaSector {
	size := sd.IDChsn.Size()
	data := make([]byte, size)
	copy(data, sd.Data)

	var weak, hole MetaMask
	if sd.WeakMask != nil {
		weak = MaskFrom(sd.WeakMask)
	} else {
		weak = EmptyMask(size)
	}
	if sd.HoleMask != nil {
		hole = MaskFrom(sd.HoleMask)
	} else {
		hole = EmptyMask(size)
	}

	return MetaSector{
		IDChsn:          sd.IDChsn,
		AddressCRCError: sd.AddressCRCError,
		DataCRCError:    sd.DataCRCError,
		DeletedMark:     sd.DeletedMark,
		MissingData:     sd.MissingData,
		Data:            data,
		WeakMask:        weak,
		HoleMask:        hole,
	}
}

// HasWeakBits reports whether the sector carries any weak-bit overlay.
func (s *MetaSector) HasWeakBits() bool {
	return s.WeakMask.HasBits()
}

// HasHoleBits reports whether the sector carries any hole overlay.
func (s *MetaSector) HasHoleBits() bool {
	return s.HoleMask.HasBits()
}

// ReadData returns a fresh byte slice representing the sector as a
// controller would observe it right now. Weak and hole mask bits are
// merged by OR; for every masked bit, a freshly drawn random bit replaces
// the stored one, so repeated calls on a masked sector differ from call to
// call — the property copy-protection detection depends on.
func (s *MetaSector) ReadData() []byte {
	if s.MissingData {
		return []byte{}
	}

	out := make([]byte, len(s.Data))
	copy(out, s.Data)

	for i := range out {
		m := s.WeakMask.At(i) | s.HoleMask.At(i)
		if m != 0 {
			r := randomByte()
			out[i] = (s.Data[i] & ^m) | (r & m)
		}
	}
	return out
}
