package hfe

import (
	"fmt"

	"github.com/fluxfox-go/fluxfox/chs"
	"github.com/fluxfox-go/fluxfox/diskimage"
	"github.com/fluxfox-go/fluxfox/metasector"
	"github.com/fluxfox-go/fluxfox/mfm"
	"github.com/fluxfox-go/fluxfox/track"
)

// ReadSectorImage reads a sector-oriented container (ADF, IMD, IMG/IMA,
// PRI) into a DiskImage of MetaSectorTracks. Bitstream formats (HFE, MFM,
// SCP, ...) are not accepted here; use Read instead.
func ReadSectorImage(filename string) (*diskimage.DiskImage, error) {
	format := DetectImageFormat(filename)
	switch format {
	case ImageFormatADF:
		return ReadADFImage(filename)
	case ImageFormatIMD:
		return ReadIMDImage(filename)
	case ImageFormatIMG:
		return ReadIMGImage(filename)
	case ImageFormatPRI:
		return ReadPRIImage(filename)
	default:
		return nil, fmt.Errorf("%s is not a sector-oriented image format", format)
	}
}

// WriteSectorImage writes a DiskImage to a sector-oriented container file,
// the geometry given explicitly since DiskImage carries no format header.
func WriteSectorImage(filename string, img *diskimage.DiskImage, cylinders, heads, sectorsPerTrack, sectorSize int) error {
	format := DetectImageFormat(filename)
	switch format {
	case ImageFormatADF:
		return WriteADFImage(filename, img)
	case ImageFormatIMD:
		return WriteIMDImage(filename, img, cylinders, heads, sectorsPerTrack, sectorSize)
	case ImageFormatIMG:
		return WriteIMGImage(filename, img, cylinders, heads, sectorsPerTrack, sectorSize)
	case ImageFormatPRI:
		return WritePRIImage(filename, img, cylinders, heads, sectorsPerTrack, sectorSize)
	default:
		return fmt.Errorf("%s is not a sector-oriented image format", format)
	}
}

// buildFlatDiskImage turns a headerless sequence of fixed-size sectors,
// ordered cylinder-major/head-minor/sector-minor starting at sector 1, into
// a DiskImage of MetaSectorTracks. Used by the IMG and ADF readers, whose
// on-disk layout carries no explicit sector IDs.
func buildFlatDiskImage(data []byte, cylinders, heads, sectorsPerTrack, sectorSize int, encoding track.Encoding, rate track.DataRate) (*diskimage.DiskImage, error) {
	need := cylinders * heads * sectorsPerTrack * sectorSize
	if len(data) < need {
		return nil, fmt.Errorf("short image: have %d bytes, need %d", len(data), need)
	}

	n, err := sizeCodeForBytes(sectorSize)
	if err != nil {
		return nil, err
	}

	img := diskimage.New()
	pos := 0
	for c := 0; c < cylinders; c++ {
		for h := 0; h < heads; h++ {
			t := metasector.NewMetaSectorTrack(chs.CH{Cylinder: uint8(c), Head: uint8(h)}, encoding, rate)
			for s := 1; s <= sectorsPerTrack; s++ {
				sector := data[pos : pos+sectorSize]
				pos += sectorSize
				t.AddSector(metasector.SectorDescriptor{
					IDChsn: chs.CHSN{Cylinder: uint8(c), Head: uint8(h), Sector: uint8(s), N: n},
					Data:   sector,
				}, false)
			}
			img.AddTrack(t)
		}
	}
	return img, nil
}

// flattenDiskImage is the inverse of buildFlatDiskImage: it reads every
// sector 1..sectorsPerTrack off each track via the public ReadSector
// contract and concatenates the data in cylinder-major/head-minor order.
func flattenDiskImage(img *diskimage.DiskImage, cylinders, heads, sectorsPerTrack, sectorSize int) ([]byte, error) {
	n, err := sizeCodeForBytes(sectorSize)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, cylinders*heads*sectorsPerTrack*sectorSize)
	for c := 0; c < cylinders; c++ {
		for h := 0; h < heads; h++ {
			ch := chs.CH{Cylinder: uint8(c), Head: uint8(h)}
			for s := 1; s <= sectorsPerTrack; s++ {
				q := chs.NewSectorIdQuery(chs.CHS{Cylinder: uint8(c), Head: uint8(h), Sector: uint8(s)}, n)
				res, err := img.ReadSector(ch, q, track.ScopeDataOnly, false)
				if err != nil {
					return nil, fmt.Errorf("track %s: %w", ch, err)
				}
				if res.NotFound {
					return nil, fmt.Errorf("missing sector %s", chs.CHS{Cylinder: uint8(c), Head: uint8(h), Sector: uint8(s)})
				}
				data := res.ReadBuf
				if len(data) < sectorSize {
					padded := make([]byte, sectorSize)
					copy(padded, data)
					data = padded
				}
				out = append(out, data[:sectorSize]...)
			}
		}
	}
	return out, nil
}

// sizeCodeForBytes recovers the System/34 size code N from a byte count,
// the inverse of chs.SizeBytes.
func sizeCodeForBytes(size int) (uint8, error) {
	for n := uint8(0); n <= 7; n++ {
		if chs.SizeBytes(n) == size {
			return n, nil
		}
	}
	return 0, fmt.Errorf("sector size %d is not a valid 128*2^N size", size)
}

// ToBitstreamDiskIBMPC MFM-encodes every track of a sector-oriented
// DiskImage into an hfe.Disk, for conversion into HFE/MFM/SCP output.
// Only IBM PC 512-byte sectors (size code 2) are supported, matching
// mfm.Writer.EncodeTrackIBMPC's fixed gap layout.
func ToBitstreamDiskIBMPC(img *diskimage.DiskImage, cylinders, heads, sectorsPerTrack int, bitRateKbps, rpm uint16) (*Disk, error) {
	if sectorsPerTrack <= 0 {
		return nil, fmt.Errorf("invalid sectors per track: %d", sectorsPerTrack)
	}
	maxHalfBits := int(bitRateKbps) * 1000 * 60 / int(rpm) * 2

	disk := &Disk{
		Header: Header{
			NumberOfTrack: uint8(cylinders),
			NumberOfSide:  uint8(heads),
			TrackEncoding: ENC_ISOIBM_MFM,
			BitRate:       bitRateKbps,
			FloppyRPM:     rpm,
		},
		Tracks: make([]TrackData, cylinders),
	}

	for c := 0; c < cylinders; c++ {
		for h := 0; h < heads; h++ {
			ch := chs.CH{Cylinder: uint8(c), Head: uint8(h)}
			sectors := make([][]byte, sectorsPerTrack)
			for s := 1; s <= sectorsPerTrack; s++ {
				q := chs.NewSectorIdQuery(chs.CHS{Cylinder: uint8(c), Head: uint8(h), Sector: uint8(s)}, 2)
				res, err := img.ReadSector(ch, q, track.ScopeDataOnly, false)
				if err != nil {
					return nil, fmt.Errorf("track %s: %w", ch, err)
				}
				data := res.ReadBuf
				if len(data) < ibmPCSectorSize {
					padded := make([]byte, ibmPCSectorSize)
					copy(padded, data)
					data = padded
				}
				sectors[s-1] = data[:ibmPCSectorSize]
			}
			writer := mfm.NewWriter(maxHalfBits)
			mfmData := writer.EncodeTrackIBMPC(sectors, c, h, sectorsPerTrack)
			if h == 0 {
				disk.Tracks[c].Side0 = mfmData
			} else {
				disk.Tracks[c].Side1 = mfmData
			}
		}
	}
	return disk, nil
}
