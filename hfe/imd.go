package hfe

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fluxfox-go/fluxfox/chs"
	"github.com/fluxfox-go/fluxfox/diskimage"
	"github.com/fluxfox-go/fluxfox/metasector"
	"github.com/fluxfox-go/fluxfox/track"
)

// IMD (Dave Dunfield's ImageDisk) sector status byte values, as stored in
// the per-sector flag byte of a track record.
const (
	imdSectorUnavailable       = 0 // no data could be read for this sector
	imdSectorNormal            = 1
	imdSectorCompressed        = 2 // all bytes equal, data field holds one fill byte
	imdSectorDeleted           = 3
	imdSectorDeletedCompressed = 4
	imdSectorError             = 5 // data CRC error
	imdSectorErrorCompressed   = 6
	imdSectorDeletedError      = 7
	imdSectorDeletedErrorCompressed = 8
)

// imdCommentTerminator is the byte (ASCII SUB / EOF) that ends the free-form
// comment block at the start of an IMD file.
const imdCommentTerminator = 0x1A

// imdSector is a single sector record within an IMD track: its status flag
// and payload (expanded, never left as a single fill byte).
type imdSector struct {
	Flag       byte
	Compressed bool
	Deleted    bool
	Bad        bool
	Data       []byte
}

// imdTrack is one track record: mode byte, physical cylinder/head (with the
// optional cylinder-map/head-map presence bits folded into Head), sector
// count, size code, the sector numbering map and optional cylinder/head
// remap tables, and the sectors themselves in the order they were recorded.
type imdTrack struct {
	Mode      byte
	Cylinder  byte
	Head      byte // bit7: cylinder map follows; bit6: head map follows; low bits: physical head
	Nsec      byte
	Ssize     byte
	SectorMap []byte
	CylMap    []byte
	HeadMap   []byte
	Sectors   []imdSector
}

// rawImdFile is the low-level parse of an IMD file: the comment block and
// its track records, before any mapping onto MetaSectorTrack.
type rawImdFile struct {
	Comment   []byte
	FloppyRPM uint16
	Tracks    []imdTrack
}

// imdSectorSize returns the payload length in bytes for IMD size code n,
// 128*2^n, the same encoding System/34 CHSN uses.
func imdSectorSize(n byte) int {
	return chs.SizeBytes(n)
}

// imdEncodingAndRate decodes an IMD mode byte into track encoding and data
// rate. Modes 0-2 are FM at 500/300/250 kbps, modes 3-5 are MFM at the same
// three rates.
func imdEncodingAndRate(mode byte) (track.Encoding, track.DataRate) {
	var enc track.Encoding
	if mode <= 2 {
		enc = track.EncodingFM
	} else {
		enc = track.EncodingMFM
	}
	var rate track.DataRate
	switch mode % 3 {
	case 0:
		rate = 500
	case 1:
		rate = 300
	default:
		rate = 250
	}
	return enc, rate
}

// imdRPMForMode guesses rotation speed from the mode byte and sector count,
// since IMD carries no explicit RPM field. 500 kbps with 15+ sectors/track
// is the 5.25" high-density (360 RPM) case; everything else runs at 300.
func imdRPMForMode(mode byte, nsec int) uint16 {
	if mode%3 == 0 && nsec >= 15 {
		return 360
	}
	return 300
}

// ReadIMDFile parses the low-level structure of an IMD file without
// building a DiskImage, for callers that want the raw per-track/per-sector
// records (diagnostics, format conversion by hand).
func ReadIMDFile(filename string) (*rawImdFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	term := bytes.IndexByte(data, imdCommentTerminator)
	if term < 0 {
		return nil, fmt.Errorf("IMD comment block has no terminator byte")
	}
	img := &rawImdFile{Comment: data[:term]}
	pos := term + 1

	var firstMode byte
	var firstNsec int
	first := true

	for pos < len(data) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("truncated track header at offset %d", pos)
		}
		t := imdTrack{
			Mode:     data[pos],
			Cylinder: data[pos+1],
			Head:     data[pos+2],
			Nsec:     data[pos+3],
		}
		pos += 4
		if pos >= len(data) {
			return nil, fmt.Errorf("truncated track header (ssize) at offset %d", pos)
		}
		t.Ssize = data[pos]
		pos++

		nsec := int(t.Nsec)
		if pos+nsec > len(data) {
			return nil, fmt.Errorf("truncated sector numbering map at offset %d", pos)
		}
		t.SectorMap = append([]byte(nil), data[pos:pos+nsec]...)
		pos += nsec

		if t.Head&0x80 != 0 {
			if pos+nsec > len(data) {
				return nil, fmt.Errorf("truncated cylinder map at offset %d", pos)
			}
			t.CylMap = append([]byte(nil), data[pos:pos+nsec]...)
			pos += nsec
		}
		if t.Head&0x40 != 0 {
			if pos+nsec > len(data) {
				return nil, fmt.Errorf("truncated head map at offset %d", pos)
			}
			t.HeadMap = append([]byte(nil), data[pos:pos+nsec]...)
			pos += nsec
		}

		sizes := make([]int, nsec)
		if t.Ssize == 0xFF {
			if pos+nsec > len(data) {
				return nil, fmt.Errorf("truncated per-sector size table at offset %d", pos)
			}
			for i := 0; i < nsec; i++ {
				sizes[i] = int(data[pos]) | int(data[pos+1])<<8
				pos += 2
			}
		} else {
			size := imdSectorSize(t.Ssize)
			for i := range sizes {
				sizes[i] = size
			}
		}

		t.Sectors = make([]imdSector, nsec)
		for i := 0; i < nsec; i++ {
			if pos >= len(data) {
				return nil, fmt.Errorf("truncated sector record at offset %d", pos)
			}
			flag := data[pos]
			pos++
			sec := imdSector{Flag: flag}

			switch flag {
			case imdSectorUnavailable:
				// no data field at all
			case imdSectorNormal, imdSectorDeleted, imdSectorError, imdSectorDeletedError:
				if pos+sizes[i] > len(data) {
					return nil, fmt.Errorf("truncated sector data at offset %d", pos)
				}
				sec.Data = append([]byte(nil), data[pos:pos+sizes[i]]...)
				pos += sizes[i]
			case imdSectorCompressed, imdSectorDeletedCompressed, imdSectorErrorCompressed, imdSectorDeletedErrorCompressed:
				if pos >= len(data) {
					return nil, fmt.Errorf("truncated compressed sector fill byte at offset %d", pos)
				}
				fill := data[pos]
				pos++
				sec.Data = bytes.Repeat([]byte{fill}, sizes[i])
			default:
				return nil, fmt.Errorf("unknown IMD sector flag 0x%02X", flag)
			}

			sec.Compressed = flag == imdSectorCompressed || flag == imdSectorDeletedCompressed ||
				flag == imdSectorErrorCompressed || flag == imdSectorDeletedErrorCompressed
			sec.Deleted = flag == imdSectorDeleted || flag == imdSectorDeletedCompressed ||
				flag == imdSectorDeletedError || flag == imdSectorDeletedErrorCompressed
			sec.Bad = flag == imdSectorError || flag == imdSectorErrorCompressed ||
				flag == imdSectorDeletedError || flag == imdSectorDeletedErrorCompressed

			t.Sectors[i] = sec
		}

		if first {
			firstMode, firstNsec, first = t.Mode, nsec, false
		}
		img.Tracks = append(img.Tracks, t)
	}

	img.FloppyRPM = imdRPMForMode(firstMode, firstNsec)
	return img, nil
}

// ReadIMDImage reads an IMD file into a DiskImage of MetaSectorTracks,
// mapping the per-sector status byte onto the controller flags MetaSector
// exposes: flag 0 becomes MissingData, a "bad" flag becomes DataCRCError,
// a "deleted" flag becomes DeletedMark.
func ReadIMDImage(filename string) (*diskimage.DiskImage, error) {
	raw, err := ReadIMDFile(filename)
	if err != nil {
		return nil, err
	}

	img := diskimage.New()
	for _, t := range raw.Tracks {
		enc, rate := imdEncodingAndRate(t.Mode)
		head := t.Head & 0x0F
		mt := metasector.NewMetaSectorTrack(chs.CH{Cylinder: t.Cylinder, Head: head}, enc, rate)
		for i, sec := range t.Sectors {
			secNum := t.SectorMap[i]
			cyl := t.Cylinder
			if len(t.CylMap) > i {
				cyl = t.CylMap[i]
			}
			h := head
			if len(t.HeadMap) > i {
				h = t.HeadMap[i]
			}
			mt.AddSector(metasector.SectorDescriptor{
				IDChsn:       chs.CHSN{Cylinder: cyl, Head: h, Sector: secNum, N: t.Ssize},
				DataCRCError: sec.Bad,
				DeletedMark:  sec.Deleted,
				MissingData:  sec.Flag == imdSectorUnavailable,
				Data:         sec.Data,
			}, false)
		}
		img.AddTrack(mt)
	}
	return img, nil
}

// WriteIMDImage writes a DiskImage out as an IMD file, reading every sector
// 1..sectorsPerTrack off each track via ReadSector and recording it
// uncompressed (IMD's run-length fill optimization is not attempted here).
func WriteIMDImage(filename string, img *diskimage.DiskImage, cylinders, heads, sectorsPerTrack, sectorSize int) error {
	n, err := sizeCodeForBytes(sectorSize)
	if err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	comment := []byte(fmt.Sprintf("IMD written by fluxfox\r\n"))
	if _, err := file.Write(comment); err != nil {
		return fmt.Errorf("failed to write comment: %w", err)
	}
	if _, err := file.Write([]byte{imdCommentTerminator}); err != nil {
		return err
	}

	mode := byte(3) // 500 kbps MFM; conservative default for a synthesized image
	for c := 0; c < cylinders; c++ {
		for h := 0; h < heads; h++ {
			ch := chs.CH{Cylinder: uint8(c), Head: uint8(h)}
			header := []byte{mode, byte(c), byte(h), byte(sectorsPerTrack), n}
			if _, err := file.Write(header); err != nil {
				return fmt.Errorf("failed to write track header: %w", err)
			}
			secMap := make([]byte, sectorsPerTrack)
			for s := 0; s < sectorsPerTrack; s++ {
				secMap[s] = byte(s + 1)
			}
			if _, err := file.Write(secMap); err != nil {
				return fmt.Errorf("failed to write sector map: %w", err)
			}

			for s := 1; s <= sectorsPerTrack; s++ {
				q := chs.NewSectorIdQuery(chs.CHS{Cylinder: uint8(c), Head: uint8(h), Sector: uint8(s)}, n)
				res, err := img.ReadSector(ch, q, track.ScopeDataOnly, false)
				if err != nil {
					return fmt.Errorf("track %s: %w", ch, err)
				}

				var flag byte
				switch {
				case res.NotFound || res.NoDAM:
					flag = imdSectorUnavailable
				case res.DataCRCError && res.DeletedMark:
					flag = imdSectorDeletedError
				case res.DataCRCError:
					flag = imdSectorError
				case res.DeletedMark:
					flag = imdSectorDeleted
				default:
					flag = imdSectorNormal
				}

				if _, err := file.Write([]byte{flag}); err != nil {
					return err
				}
				if flag != imdSectorUnavailable {
					data := res.ReadBuf
					if len(data) < sectorSize {
						padded := make([]byte, sectorSize)
						copy(padded, data)
						data = padded
					}
					if _, err := file.Write(data[:sectorSize]); err != nil {
						return fmt.Errorf("failed to write sector %d of track %s: %w", s, ch, err)
					}
				}
			}
		}
	}
	return nil
}

// ReadIMD reads a file in IMD format and returns a Disk structure by first
// building a DiskImage and MFM-encoding it as an IBM PC bitstream.
func ReadIMD(filename string) (*Disk, error) {
	img, err := ReadIMDImage(filename)
	if err != nil {
		return nil, err
	}
	raw, err := ReadIMDFile(filename)
	if err != nil {
		return nil, err
	}
	if len(raw.Tracks) == 0 {
		return nil, fmt.Errorf("IMD file has no tracks")
	}
	cylinders := 0
	heads := 1
	for _, t := range raw.Tracks {
		if int(t.Cylinder)+1 > cylinders {
			cylinders = int(t.Cylinder) + 1
		}
		if int(t.Head&0x0F)+1 > heads {
			heads = int(t.Head&0x0F) + 1
		}
	}
	sectorsPerTrack := int(raw.Tracks[0].Nsec)
	_, rate := imdEncodingAndRate(raw.Tracks[0].Mode)
	return ToBitstreamDiskIBMPC(img, cylinders, heads, sectorsPerTrack, uint16(rate), raw.FloppyRPM)
}

// WriteIMD writes a Disk structure to an IMD format file. Converting a raw
// bitstream Disk back into discrete sector records is not attempted here;
// callers that already have a DiskImage should use WriteIMDImage directly.
func WriteIMD(filename string, disk *Disk) error {
	return fmt.Errorf("WriteIMD: converting a bitstream Disk to IMD is not supported, use WriteIMDImage with a DiskImage")
}
